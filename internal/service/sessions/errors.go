package sessions

import (
	"errors"
	"fmt"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/lock"
	"peakpartner/backend/internal/store"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindInvalidState
	KindBadRequest
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidState:
		return "invalid_state"
	case KindBadRequest:
		return "bad_request"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	}
	return "internal"
}

// Error is a failure the caller can act on. Role is set for conflicts and
// names the participant whose slot is taken.
type Error struct {
	Kind Kind
	Msg  string
	Role domain.Role
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal for anything that is not
// an *Error.
func KindOf(err error) Kind {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Kind
	}
	return KindInternal
}

func notFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }
func invalidState(msg string) error { return &Error{Kind: KindInvalidState, Msg: msg} }
func badRequest(msg string) error   { return &Error{Kind: KindBadRequest, Msg: msg} }

func conflict(role domain.Role) error {
	return &Error{Kind: KindConflict, Msg: string(role) + " already booked", Role: role}
}

// translate maps storage failures onto the error kinds callers see. A
// constraint violation caught at commit comes out exactly like the
// proactive overlap check.
func translate(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}

	var sErr *Error
	if errors.As(err, &sErr) {
		return err
	}

	var cErr *store.ConflictError
	switch {
	case errors.As(err, &cErr):
		return &Error{Kind: KindConflict, Msg: string(cErr.Role) + " already booked", Role: cErr.Role, Err: err}
	case errors.Is(err, store.ErrConflict):
		return &Error{Kind: KindConflict, Msg: "slot already booked", Err: err}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Msg: notFoundMsg, Err: err}
	case errors.Is(err, store.ErrPendingReschedule):
		return &Error{Kind: KindBadRequest, Msg: "reschedule already pending", Err: err}
	case errors.Is(err, store.ErrDuplicateID):
		return &Error{Kind: KindBadRequest, Msg: "idempotency_key already used", Err: err}
	case errors.Is(err, store.ErrLockTimeout), errors.Is(err, lock.ErrTimeout):
		return &Error{Kind: KindUnavailable, Msg: "slot is busy, retry", Err: err}
	}
	return fmt.Errorf("sessions: %w", err)
}
