package bill

// Status is the review state of a bill
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// Bill is a single expense record
type Bill struct {
	ID           string  `json:"id,omitempty"`
	Type         string  `json:"type"`
	Name         string  `json:"name"`
	Date         string  `json:"date"` // ISO 8601 (YYYY-MM-DD)
	Amount       float64 `json:"amount"`
	VAT          string  `json:"vat"`
	Pct          int     `json:"pct"`
	Commentary   string  `json:"commentary,omitempty"`
	FileURL      string  `json:"fileUrl,omitempty"`
	FileName     string  `json:"fileName,omitempty"`
	Status       Status  `json:"status"`
	Email        string  `json:"email"`
	CommentAdmin string  `json:"commentAdmin,omitempty"`
}

// UserType identifies the kind of logged in user
type UserType string

const (
	UserEmployee UserType = "Employee"
	UserAdmin    UserType = "Admin"
)

// User is the session identity
type User struct {
	Type  UserType `json:"type"`
	Email string   `json:"email"`
}

// File is a receipt picked by the user, before upload
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult is what the remote store returns for an uploaded receipt
type UploadResult struct {
	FileURL string `json:"fileUrl"`
	Key     string `json:"key"`
}

// Row is a bill prepared for display
type Row struct {
	*Bill
	DisplayDate   string
	DisplayStatus string
}

// Form holds the raw values of the new bill form
type Form struct {
	Type       string
	Name       string
	Date       string
	Amount     string
	VAT        string
	Pct        string
	Commentary string
}

// ExpenseTypes are the categories offered by the new bill form
var ExpenseTypes = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}
