package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound means no session row exists for the lookup key.
	ErrSessionNotFound = errors.New("chat: session not found")

	// ErrConflict means an insert lost to an existing row on a unique key.
	// Callers decide whether to fetch the winner instead.
	ErrConflict = errors.New("chat: session already exists")

	// ErrUnknownThread means a message referenced a thread with no
	// session row. Indicates a caller-side fault, not a storage fault.
	ErrUnknownThread = errors.New("chat: unknown thread")

	ErrInvalidMode = errors.New("chat: invalid mode")
	ErrInvalidRole = errors.New("chat: invalid role")
)

// StorageError wraps a persistence failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("chat: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// GenerationError means the assistant kept returning unusable structured
// output after every allowed attempt. Cause holds the last failure seen,
// remote or parse.
type GenerationError struct {
	Attempts int
	Cause    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("chat: generation failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }
