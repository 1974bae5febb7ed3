package bill

import (
	"errors"
	"fmt"
)

// InvalidFileMessage is the message shown when a receipt has the wrong extension
const InvalidFileMessage = "Fichier incorrect. JPEG, JPG ou PNG uniquement."

// ValidationError reports user input that was rejected before any network call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NetworkError reports a failed remote store call. Message is shown to the
// user as is.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	return e.Message
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StateError reports an operation attempted in a state that does not allow it
type StateError struct {
	State   State
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s (state %s)", e.Message, e.State)
}

// asNetworkError keeps an existing NetworkError message, or wraps err in one
func asNetworkError(err error) *NetworkError {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne
	}
	return &NetworkError{Message: err.Error(), Err: err}
}

// storeError passes a store rejection through unchanged. Any other failure is
// local to this process and is wrapped with op for context.
func storeError(op string, err error) error {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne
	}
	return fmt.Errorf("%s: %w", op, err)
}
