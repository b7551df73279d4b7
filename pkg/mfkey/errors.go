package mfkey

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput means no nonces were handed to the attack.
	ErrMissingInput = errors.New("no nonces supplied")
	// ErrNoWorkRemaining means every nonce was already solved by a
	// dictionary key.
	ErrNoWorkRemaining = errors.New("all nonces already solved by dictionary keys")
	// ErrInsufficientMemory means not even the reduced workspace fits.
	ErrInsufficientMemory = errors.New("insufficient memory for search workspace")
)

// MemoryError reports a workspace that did not fit in the available memory.
type MemoryError struct {
	Tier      Tier
	Need      uint64 // Workspace bytes required
	Available uint64 // Bytes reported by the memory probe
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("%s workspace needs %d bytes, %d available", e.Tier, e.Need, e.Available)
}

func (e *MemoryError) Unwrap() error {
	return ErrInsufficientMemory
}

// IsInsufficientMemory checks if an error is a workspace allocation failure.
func IsInsufficientMemory(err error) bool {
	return errors.Is(err, ErrInsufficientMemory)
}
