package sentinel

import (
	"errors"
	"fmt"
)

// Error kinds shared by stores, services and handlers. Callers match them with
// errors.Is; lower layers wrap them with context via fmt.Errorf("...: %w").
var (
	ErrInvalidNationalID   = errors.New("invalid national id")
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrDuplicateNationalID = errors.New("national id already registered")
	ErrNotFound            = errors.New("not found")
	ErrForbiddenOperation  = errors.New("forbidden operation")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrStorage             = errors.New("storage failure")
)

// storageError keeps the engine error reachable for errors.Is/As while also
// matching ErrStorage.
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *storageError) Unwrap() []error {
	return []error{ErrStorage, e.err}
}

// Storage classifies err as a storage failure raised by op. Errors that
// already carry a kind from this package are returned with op context only.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &storageError{op: op, err: err}
}

// Classified reports whether err carries one of the kinds above.
func Classified(err error) bool {
	for _, kind := range []error{
		ErrInvalidNationalID, ErrInvalidPhone, ErrInvalidEmail,
		ErrDuplicateNationalID, ErrNotFound, ErrForbiddenOperation,
		ErrInvalidArgument, ErrStorage,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
