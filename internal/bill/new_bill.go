package bill

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// State is the progress of a new bill submission
type State string

const (
	StateIdle         State = "idle"
	StateFileSelected State = "file_selected"
	StateFileRejected State = "file_rejected"
	StateSubmitting   State = "submitting"
	StateSubmitted    State = "submitted"
	StateSubmitFailed State = "submit_failed"
)

var acceptedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

var acceptedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// IsAcceptedFile reports whether a receipt may be uploaded. The extension
// decides; the content type is only consulted when the name has none.
func IsAcceptedFile(name, contentType string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(baseName(name)), "."))
	if ext != "" {
		return acceptedExtensions[ext]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return acceptedContentTypes[contentType]
}

// baseName strips any directory part, including browser "C:\fakepath\" prefixes
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

// NewBill validates a receipt and submits a new bill. It is safe for
// concurrent use; only one submission runs at a time.
type NewBill struct {
	store     RemoteStore
	session   SessionStore
	navigator Navigator

	mu           sync.Mutex
	state        State
	file         *File
	errorVisible bool
}

// NewNewBill creates a NewBill in the Idle state
func NewNewBill(store RemoteStore, session SessionStore, navigator Navigator) *NewBill {
	return &NewBill{
		store:     store,
		session:   session,
		navigator: navigator,
		state:     StateIdle,
	}
}

// State returns the current state
func (n *NewBill) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// ErrorVisible reports whether the invalid file message is displayed
func (n *NewBill) ErrorVisible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.errorVisible
}

// ErrorMessage returns the invalid file message when it is displayed
func (n *NewBill) ErrorMessage() string {
	if n.ErrorVisible() {
		return InvalidFileMessage
	}
	return ""
}

// SubmitEnabled reports whether the submit control is active
func (n *NewBill) SubmitEnabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.file != nil && (n.state == StateFileSelected || n.state == StateSubmitFailed)
}

// SelectedFile returns the retained receipt, or nil
func (n *NewBill) SelectedFile() *File {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.file
}

// Reset returns to Idle, dropping the file and hiding the error
func (n *NewBill) Reset() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateSubmitting {
		return &StateError{State: n.state, Message: "cannot reset during submission"}
	}
	n.state = StateIdle
	n.file = nil
	n.errorVisible = false
	return nil
}

// HandleChangeFile checks the picked receipt. An accepted file is kept for
// upload; a rejected one is dropped, the error is shown and submit is
// disabled.
func (n *NewBill) HandleChangeFile(f File) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateSubmitting, StateSubmitted:
		return &StateError{State: n.state, Message: "cannot change file"}
	}

	if !IsAcceptedFile(f.Name, f.ContentType) {
		slog.Info("Rejected receipt file", "filename", f.Name, "content_type", f.ContentType)
		n.state = StateFileRejected
		n.file = nil
		n.errorVisible = true
		return &ValidationError{Field: "file", Message: InvalidFileMessage}
	}

	f.Name = baseName(f.Name)
	n.file = &f
	n.state = StateFileSelected
	n.errorVisible = false
	return nil
}

// HandleSubmit uploads the selected receipt, creates the bill and then
// navigates to the bill list. The upload always completes before the create
// call is made.
func (n *NewBill) HandleSubmit(ctx context.Context, form Form) (*Bill, error) {
	file, err := n.beginSubmit()
	if err != nil {
		return nil, err
	}

	b, err := n.buildBill(form)
	if err != nil {
		n.abortSubmit()
		return nil, err
	}

	upload, err := n.store.Upload(ctx, *file, b.Email)
	if err != nil {
		slog.Error("Error uploading receipt", "filename", file.Name, "error", err)
		n.finishSubmit(StateSubmitFailed)
		return nil, storeError("uploading receipt", err)
	}
	b.ID = upload.Key
	b.FileURL = upload.FileURL
	b.FileName = file.Name

	created, err := n.store.Create(ctx, b)
	if err != nil {
		slog.Error("Error creating bill", "key", upload.Key, "error", err)
		n.finishSubmit(StateSubmitFailed)
		return nil, storeError("creating bill", err)
	}

	n.finishSubmit(StateSubmitted)
	n.navigator.Navigate(RouteBills)
	return created, nil
}

// beginSubmit moves to Submitting, guarding against a second submission
func (n *NewBill) beginSubmit() (*File, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateSubmitting:
		return nil, &StateError{State: n.state, Message: "submission already in progress"}
	case StateSubmitted:
		return nil, &StateError{State: n.state, Message: "bill already submitted"}
	}
	if n.file == nil {
		return nil, &StateError{State: n.state, Message: "no receipt file selected"}
	}
	if n.store == nil {
		return nil, &StateError{State: n.state, Message: "no remote store configured"}
	}

	n.state = StateSubmitting
	return n.file, nil
}

// abortSubmit returns from Submitting to FileSelected when nothing was sent
func (n *NewBill) abortSubmit() {
	n.finishSubmit(StateFileSelected)
}

func (n *NewBill) finishSubmit(state State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = state
}

// buildBill turns form values and the session email into a pending bill
func (n *NewBill) buildBill(form Form) (*Bill, error) {
	user, err := n.session.CurrentUser()
	if err != nil {
		return nil, fmt.Errorf("reading session user: %w", err)
	}
	if user.Email == "" {
		return nil, &StateError{State: StateSubmitting, Message: "session user has no email"}
	}

	form.Type = strings.TrimSpace(form.Type)
	form.Name = strings.TrimSpace(form.Name)
	if form.Type == "" {
		return nil, &ValidationError{Field: "type", Message: "expense type is required"}
	}
	if form.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "expense name is required"}
	}
	if _, err := time.Parse(DateLayout, form.Date); err != nil {
		return nil, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q", form.Date)}
	}

	amount, err := ParseAmount(form.Amount)
	if err != nil {
		return nil, err
	}
	pct, err := ParsePct(form.Pct)
	if err != nil {
		return nil, err
	}

	return &Bill{
		Type:       form.Type,
		Name:       form.Name,
		Date:       form.Date,
		Amount:     amount,
		VAT:        strings.TrimSpace(form.VAT),
		Pct:        pct,
		Commentary: form.Commentary,
		Status:     StatusPending,
		Email:      user.Email,
	}, nil
}
