package bill

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// BillList lists the session user's bills and opens receipts
type BillList struct {
	store     RemoteStore
	session   SessionStore
	navigator Navigator
	presenter Presenter
}

// NewBillList creates a BillList. store may be nil, in which case Load
// returns no rows.
func NewBillList(store RemoteStore, session SessionStore, navigator Navigator, presenter Presenter) *BillList {
	return &BillList{
		store:     store,
		session:   session,
		navigator: navigator,
		presenter: presenter,
	}
}

// Load fetches the bills and returns them newest first, ready for display.
// A store failure is returned as a *NetworkError carrying the store's message.
func (l *BillList) Load(ctx context.Context) ([]*Row, error) {
	if l.store == nil {
		return []*Row{}, nil
	}

	user, err := l.session.CurrentUser()
	if err != nil {
		return nil, fmt.Errorf("reading session user: %w", err)
	}

	email := user.Email
	if user.Type == UserAdmin {
		email = ""
	}

	bills, err := l.store.List(ctx, email)
	if err != nil {
		slog.Error("Error listing bills", "email", email, "error", err)
		return nil, asNetworkError(err)
	}

	SortByDateDesc(bills)

	rows := make([]*Row, 0, len(bills))
	for _, b := range bills {
		rows = append(rows, toRow(b))
	}
	return rows, nil
}

// HandleViewReceipt shows the receipt at fileURL
func (l *BillList) HandleViewReceipt(fileURL string) {
	if l.presenter != nil {
		l.presenter.ShowReceipt(fileURL)
	}
}

// HandleClickNewBill goes to the new bill page
func (l *BillList) HandleClickNewBill() {
	l.navigator.Navigate(RouteNewBill)
}

// toRow formats a bill for display. A date that cannot be formatted is
// kept as stored.
func toRow(b *Bill) *Row {
	date, err := FormatDate(b.Date)
	if err != nil {
		slog.Warn("Keeping unformatted bill date", "id", b.ID, "date", b.Date, "error", err)
		date = b.Date
	}
	return &Row{
		Bill:          b,
		DisplayDate:   date,
		DisplayStatus: FormatStatus(b.Status),
	}
}

// SortByDateDesc orders bills newest first. Equal dates keep their order and
// bills with an unreadable date go last.
func SortByDateDesc(bills []*Bill) {
	type keyed struct {
		bill *Bill
		date time.Time
		ok   bool
	}
	keys := make([]keyed, len(bills))
	for i, b := range bills {
		t, err := time.Parse(DateLayout, b.Date)
		keys[i] = keyed{bill: b, date: t, ok: err == nil}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case !a.ok && !b.ok:
			return 0
		}
		return b.date.Compare(a.date)
	})

	for i, k := range keys {
		bills[i] = k.bill
	}
}
