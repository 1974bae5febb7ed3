package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/scanning"
)

var (
	// ErrScannerDisabled is returned by ScanReceipt when no scanner is configured
	ErrScannerDisabled = errors.New("receipt scanning is not enabled")

	// ErrBillExists is returned when creating a bill whose ID is taken
	ErrBillExists = errors.New("bill already exists")
)

// IDGenerator generates unique IDs for bills and receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles bill and receipt operations for the API
type Service struct {
	db          DB
	storage     Storage
	scanner     scanning.Scanner
	publicURL   string
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service. scanner may be nil to disable receipt
// scanning. publicURL prefixes the receipt file URLs handed to clients.
func NewService(db DB, storage Storage, scanner scanning.Scanner, publicURL string) *Service {
	return NewServiceWithDeps(db, storage, scanner, publicURL, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, scanner scanning.Scanner, publicURL string, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		scanner:     scanner,
		publicURL:   strings.TrimRight(publicURL, "/"),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and truncates long phone names
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// FileURL is the public URL of an uploaded receipt
func (s *Service) FileURL(key string) string {
	return fmt.Sprintf("%s/api/bills/files/%s", s.publicURL, key)
}

// UploadReceipt stores a receipt file for email and returns its URL and key
func (s *Service) UploadReceipt(filename string, data []byte, contentType, email string) (*bill.UploadResult, error) {
	if email == "" {
		return nil, &bill.ValidationError{Field: "email", Message: "email is required"}
	}
	if !bill.IsAcceptedFile(filename, contentType) {
		return nil, &bill.ValidationError{Field: "file", Message: bill.InvalidFileMessage}
	}
	if len(data) == 0 {
		return nil, &bill.ValidationError{Field: "file", Message: "file is empty"}
	}

	key := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", key, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	receipt := &ReceiptFile{
		Key:         key,
		Filename:    savedPath,
		Original:    filename,
		ContentType: contentType,
		Email:       email,
		CreatedAt:   now,
	}
	if err := s.db.SaveReceipt(receipt); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	return &bill.UploadResult{FileURL: s.FileURL(key), Key: key}, nil
}

// GetReceiptFile returns a receipt's bytes and content type
func (s *Service) GetReceiptFile(key string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(key)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}
	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.ContentType, nil
}

// ScanReceipt suggests bill fields for a receipt image
func (s *Service) ScanReceipt(ctx context.Context, filename string, data []byte, contentType string) (*scanning.Suggestion, error) {
	if s.scanner == nil {
		return nil, ErrScannerDisabled
	}
	if !bill.IsAcceptedFile(filename, contentType) {
		return nil, &bill.ValidationError{Field: "file", Message: bill.InvalidFileMessage}
	}
	suggestion, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}
	return suggestion, nil
}

// CreateBill validates and saves a new bill. A bill carrying the key of an
// uploaded receipt keeps it as its ID.
func (s *Service) CreateBill(b *bill.Bill) (*Record, error) {
	switch {
	case strings.TrimSpace(b.Email) == "":
		return nil, &bill.ValidationError{Field: "email", Message: "email is required"}
	case strings.TrimSpace(b.Type) == "":
		return nil, &bill.ValidationError{Field: "type", Message: "expense type is required"}
	case strings.TrimSpace(b.Name) == "":
		return nil, &bill.ValidationError{Field: "name", Message: "expense name is required"}
	}
	if _, err := time.Parse(bill.DateLayout, b.Date); err != nil {
		return nil, &bill.ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q", b.Date)}
	}
	if b.Amount < 0 {
		return nil, &bill.ValidationError{Field: "amount", Message: "amount must not be negative"}
	}

	record := &Record{Bill: *b}
	if record.ID == "" {
		record.ID = s.idGenerator.Generate()
	} else if _, err := s.db.GetBill(record.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBillExists, record.ID)
	}

	if receipt, err := s.db.GetReceipt(record.ID); err == nil {
		if receipt.Email != record.Email {
			return nil, &bill.ValidationError{Field: "email", Message: "receipt belongs to another user"}
		}
		if record.FileURL == "" {
			record.FileURL = s.FileURL(receipt.Key)
		}
		if record.FileName == "" {
			record.FileName = receipt.Original
		}
	}

	// New bills always start pending; only a review changes the status
	record.Status = bill.StatusPending
	record.CommentAdmin = ""

	now := s.timeSource.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.db.SaveBill(record); err != nil {
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}
	slog.Info("Bill created", "id", record.ID, "email", record.Email, "type", record.Type)
	return record, nil
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(id string) (*Record, error) {
	record, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return record, nil
}

// ListBills returns the bills owned by email, or every bill when email is empty
func (s *Service) ListBills(email string) ([]*Record, error) {
	records, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	if email == "" {
		return records, nil
	}
	owned := make([]*Record, 0, len(records))
	for _, r := range records {
		if r.Email == email {
			owned = append(owned, r)
		}
	}
	return owned, nil
}

// ReviewBill records an admin decision on a bill
func (s *Service) ReviewBill(id string, review Review) (*Record, error) {
	switch review.Status {
	case bill.StatusPending, bill.StatusAccepted, bill.StatusRefused:
	default:
		return nil, &bill.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", review.Status)}
	}

	record, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	record.Status = review.Status
	record.CommentAdmin = review.CommentAdmin
	record.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(record); err != nil {
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}
	return record, nil
}

// DeleteBill removes a bill and its receipt
func (s *Service) DeleteBill(id string) error {
	if _, err := s.db.GetBill(id); err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if receipt, err := s.db.GetReceipt(id); err == nil {
		if err := s.storage.Delete(receipt.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
		}
		if err := s.db.DeleteReceipt(id); err != nil {
			slog.Warn("Failed to delete receipt record", "key", id, "error", err)
		}
	}

	if err := s.db.DeleteBill(id); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}
