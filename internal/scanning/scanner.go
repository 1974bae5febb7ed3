package scanning

import "context"

// Suggestion holds new bill fields read from a receipt
type Suggestion struct {
	Type   string  `json:"type,omitempty"`
	Name   string  `json:"name"`
	Date   string  `json:"date,omitempty"` // ISO 8601 format
	Amount float64 `json:"amount"`
}

// Scanner reads a receipt image and suggests new bill fields
type Scanner interface {
	// ScanReceipt analyzes a receipt image and extracts bill fields
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*Suggestion, error)
	// Close closes the scanner and releases resources
	Close() error
}
