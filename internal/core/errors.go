package core

import (
	"errors"
	"fmt"
)

// Error classes. Every refinement below wraps exactly one class so callers
// can classify with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateName       = errors.New("category already exists")
	ErrUnauthenticated     = errors.New("missing credentials")
	ErrInvalidSession      = errors.New("invalid or expired session")
	ErrNotFoundOrForbidden = errors.New("transaction not found")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrExportFailure       = errors.New("export failed")
)

var (
	ErrInvalidType     = fmt.Errorf("%w: type must be income or expense", ErrInvalidInput)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be a positive number", ErrInvalidInput)
	ErrInvalidCategory = fmt.Errorf("%w: category is required", ErrInvalidInput)
	ErrInvalidDate     = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	ErrInvalidMonth    = fmt.Errorf("%w: month must be YYYY-MM", ErrInvalidInput)
	ErrInvalidKind     = fmt.Errorf("%w: kind must be income, expense or both", ErrInvalidInput)
	ErrEmptyName       = fmt.Errorf("%w: name is required", ErrInvalidInput)
	ErrEmptyEmoji      = fmt.Errorf("%w: emoji is required", ErrInvalidInput)
	ErrInvalidID       = fmt.Errorf("%w: invalid id", ErrInvalidInput)
)

// IsAuthError reports whether err should be answered with 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidSession)
}
