package session

import (
	"errors"
	"fmt"
)

// ErrVersionConflict is returned by stores when an optimistic write loses to
// a concurrent editor. The caller should reload and retry.
var ErrVersionConflict = errors.New("session was modified concurrently")

// ConflictError means an operation targeted a transaction or match that is
// not in the expected pool or state. The session is left unchanged.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError means a referenced session, match, or adjustment id does not
// exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ImmutableStateError means a mutation was attempted on an approved session.
type ImmutableStateError struct {
	Status Status
}

func (e *ImmutableStateError) Error() string {
	return fmt.Sprintf("session is %s and can no longer be modified", e.Status)
}
