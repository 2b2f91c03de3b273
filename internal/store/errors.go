package store

import (
	"errors"

	"peakpartner/backend/internal/domain"
)

var (
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrPendingReschedule = errors.New("reschedule already pending")
	ErrLockTimeout       = errors.New("lock timeout")
	ErrDuplicateID       = errors.New("duplicate id")
)

// ConflictError names the participant whose slot is already taken. It matches
// ErrConflict under errors.Is.
type ConflictError struct {
	Role domain.Role
}

func (e *ConflictError) Error() string {
	return string(e.Role) + " already booked"
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
