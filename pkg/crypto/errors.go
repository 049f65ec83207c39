package crypto

import (
	"errors"
	"fmt"
)

// EngineError represents a signature engine error with structured context.
type EngineError struct {
	Op        string // Operation: "sign", "verify", "parse", "generate"
	Algorithm string
	Err       error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Algorithm == "" {
		return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("crypto %s %s: %v", e.Op, e.Algorithm, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EngineError) Unwrap() error { return e.Err }

// Sentinel errors for the signature engine.
var (
	// ErrUnsupportedAlgorithm indicates an algorithm or hash name the engine does not know.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrKeyMismatch indicates the key type does not fit the algorithm.
	ErrKeyMismatch = errors.New("key type does not match algorithm")

	// ErrUnsupportedKey indicates a key type the engine cannot handle.
	ErrUnsupportedKey = errors.New("unsupported key type")
)
