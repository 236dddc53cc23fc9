package submissions

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get/Update for an unknown id.
	ErrNotFound = errors.New("submission not found")
	// ErrStaleUpdate means a patch precondition did not hold; the writer lost
	// the race and its change was discarded.
	ErrStaleUpdate = errors.New("submission changed by another writer")
)

// ValidationError is returned before any record is created.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StoreIOError wraps persistence failures. The operation that produced it
// left no partial state behind.
type StoreIOError struct {
	Op  string
	Err error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreIOError) Unwrap() error { return e.Err }

// NotFound wraps ErrNotFound with the offending id.
func NotFound(id ID) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreIO reports whether err carries a *StoreIOError.
func IsStoreIO(err error) bool {
	var se *StoreIOError
	return errors.As(err, &se)
}
