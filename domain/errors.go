package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session id resolves to neither
// a transient session nor a stored transcript record.
var ErrSessionNotFound = errors.New("session not found")

// StoreUnavailableError wraps a record store failure that survived the
// recreate-and-retry attempt in the store adapter.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("record store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
