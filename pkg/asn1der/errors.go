package asn1der

import (
	"errors"
	"fmt"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Error represents an encoding or decoding error with structured context.
// It supports errors.Is() and errors.As() for improved error handling.
type Error struct {
	Op  string // Operation: "encode", "parse", "build", or a type name
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("asn1 %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// Sentinel errors.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrMalformedEncoding indicates truncated or invalid tag/length bytes,
	// or a value outside the range its type allows.
	ErrMalformedEncoding = tlv.ErrMalformed

	// ErrInvalidValue indicates a construction input outside the type's range.
	ErrInvalidValue = fmt.Errorf("%w: invalid value", ErrMalformedEncoding)

	// ErrUnsupportedType indicates a tag or identifier the catalogue does not know.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrMissingField indicates a mandatory field is absent at encode time.
	ErrMissingField = errors.New("missing mandatory field")

	// ErrConstructionConflict indicates more than one mutually exclusive
	// construction input was supplied.
	ErrConstructionConflict = errors.New("conflicting construction parameters")
)
