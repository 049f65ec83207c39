// Package tsp implements the RFC 3161 Time-Stamp Protocol structures:
// requests, TSTInfo and timestamp tokens.
package tsp

import (
	"errors"
	"fmt"
)

// TSPError represents a Time-Stamp Protocol operation error with structured context.
// It supports errors.Is() and errors.As() for improved error handling.
type TSPError struct {
	Op  string // Operation: "request", "tstinfo", "token", "verify"
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *TSPError) Error() string {
	return fmt.Sprintf("tsp %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TSPError) Unwrap() error { return e.Err }

// NewTSPError creates a new TSPError with the given operation and error.
func NewTSPError(op string, err error) *TSPError {
	return &TSPError{Op: op, Err: err}
}

// Sentinel errors for TSP operations.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrInvalidRequest indicates the timestamp request is malformed.
	ErrInvalidRequest = errors.New("invalid timestamp request")

	// ErrInvalidTSTInfo indicates a TSTInfo that does not match its schema.
	ErrInvalidTSTInfo = errors.New("invalid TSTInfo")

	// ErrInvalidToken indicates the timestamp token is invalid.
	ErrInvalidToken = errors.New("invalid timestamp token")

	// ErrUnsupportedHashAlgorithm indicates the hash algorithm is not supported.
	ErrUnsupportedHashAlgorithm = errors.New("unsupported hash algorithm")
)
