package bill

import "context"

// RemoteStore is the persistence service for bills and receipt files.
// Rejections by the service come back as *NetworkError.
type RemoteStore interface {
	// List returns the bills owned by email. An empty email lists every bill.
	List(ctx context.Context, email string) ([]*Bill, error)

	// Create persists a new bill and returns the stored record
	Create(ctx context.Context, b *Bill) (*Bill, error)

	// Upload stores a receipt file for email and returns its URL and key
	Upload(ctx context.Context, f File, email string) (*UploadResult, error)
}

// SessionStore gives read access to the logged in user
type SessionStore interface {
	CurrentUser() (User, error)
}

// Route names a page of the application
type Route string

const (
	RouteLogin     Route = "/"
	RouteBills     Route = "/employee/bills"
	RouteNewBill   Route = "/employee/bill/new"
	RouteDashboard Route = "/admin/dashboard"
)

// Navigator moves the UI to another page
type Navigator interface {
	Navigate(route Route)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route Route)

func (f NavigatorFunc) Navigate(route Route) {
	f(route)
}

// Presenter displays a receipt in an overlay
type Presenter interface {
	ShowReceipt(fileURL string)
}

// PresenterFunc adapts a function to Presenter
type PresenterFunc func(fileURL string)

func (f PresenterFunc) ShowReceipt(fileURL string) {
	f(fileURL)
}
