package tlv

import (
	"errors"
	"fmt"
)

// Sentinel errors for TLV decoding.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrMalformed indicates the buffer is not a well-formed definite-length TLV.
	ErrMalformed = errors.New("malformed DER encoding")

	// ErrIndefiniteLength indicates a BER indefinite length (0x80) was found.
	ErrIndefiniteLength = fmt.Errorf("%w: indefinite length not supported", ErrMalformed)

	// ErrTruncated indicates a declared length runs past the end of the buffer.
	ErrTruncated = fmt.Errorf("%w: truncated", ErrMalformed)

	// ErrHighTagNumber indicates a multi-byte tag (low five bits all set).
	ErrHighTagNumber = fmt.Errorf("%w: high tag number form not supported", ErrMalformed)
)

// DecodeError records where in the buffer decoding failed.
type DecodeError struct {
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("tlv at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(off int, err error) error {
	return &DecodeError{Offset: off, Err: err}
}
