package billing

import (
	"time"

	"github.com/zombor/billed/internal/bill"
)

// Record is a bill as stored by the API
type Record struct {
	bill.Bill
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReceiptFile describes an uploaded receipt
type ReceiptFile struct {
	Key         string    `json:"key"`
	Filename    string    `json:"filename"` // path inside Storage
	Original    string    `json:"original"` // name as uploaded
	ContentType string    `json:"content_type"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review is an admin decision on a bill
type Review struct {
	Status       bill.Status `json:"status"`
	CommentAdmin string      `json:"commentAdmin"`
}
