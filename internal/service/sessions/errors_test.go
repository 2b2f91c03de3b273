package sessions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/lock"
	"peakpartner/backend/internal/store"
)

type fakeStore struct {
	inTxFn                 func(ctx context.Context, fn func(ctx context.Context, tx store.SessionTx) error) error
	getRelationshipFn      func(ctx context.Context, id uuid.UUID) (domain.Relationship, error)
	getBookingFn           func(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	listBookingsFn         func(ctx context.Context, filter store.BookingFilter) ([]domain.Booking, error)
	getRescheduleFn        func(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error)
	listReschedulesFn      func(ctx context.Context, bookingID uuid.UUID) ([]domain.RescheduleRequest, error)
	listAwaitingResponseFn func(ctx context.Context, participantID uuid.UUID) ([]domain.RescheduleRequest, error)
}

func (f *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx store.SessionTx) error) error {
	if f.inTxFn == nil {
		panic("InTx not configured")
	}
	return f.inTxFn(ctx, fn)
}

func (f *fakeStore) GetRelationship(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
	if f.getRelationshipFn == nil {
		panic("GetRelationship not configured")
	}
	return f.getRelationshipFn(ctx, id)
}

func (f *fakeStore) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if f.getBookingFn == nil {
		panic("GetBooking not configured")
	}
	return f.getBookingFn(ctx, id)
}

func (f *fakeStore) ListBookings(ctx context.Context, filter store.BookingFilter) ([]domain.Booking, error) {
	if f.listBookingsFn == nil {
		panic("ListBookings not configured")
	}
	return f.listBookingsFn(ctx, filter)
}

func (f *fakeStore) GetReschedule(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error) {
	if f.getRescheduleFn == nil {
		panic("GetReschedule not configured")
	}
	return f.getRescheduleFn(ctx, id)
}

func (f *fakeStore) ListReschedules(ctx context.Context, bookingID uuid.UUID) ([]domain.RescheduleRequest, error) {
	if f.listReschedulesFn == nil {
		panic("ListReschedules not configured")
	}
	return f.listReschedulesFn(ctx, bookingID)
}

func (f *fakeStore) ListAwaitingResponse(ctx context.Context, participantID uuid.UUID) ([]domain.RescheduleRequest, error) {
	if f.listAwaitingResponseFn == nil {
		panic("ListAwaitingResponse not configured")
	}
	return f.listAwaitingResponseFn(ctx, participantID)
}

func activeRelationship() domain.Relationship {
	return domain.Relationship{
		ID:        uuid.New(),
		TrainerID: uuid.New(),
		ClientID:  uuid.New(),
		Status:    domain.RelationshipStatusActive,
	}
}

// A commit rejected by the storage constraint must look like the proactive check.
func TestCreateBooking_StorageConflictBecomesConflict(t *testing.T) {
	rel := activeRelationship()
	svc := NewService(&fakeStore{
		getRelationshipFn: func(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
			return rel, nil
		},
		inTxFn: func(ctx context.Context, fn func(ctx context.Context, tx store.SessionTx) error) error {
			return &store.ConflictError{Role: domain.RoleClient}
		},
	})

	_, err := svc.CreateBooking(context.Background(), CreateInput{
		RequesterID:    rel.ClientID,
		RelationshipID: rel.ID,
		Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Start:          9 * 60,
		End:            10 * 60,
	})
	var sErr *Error
	if !errors.As(err, &sErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if sErr.Kind != KindConflict || sErr.Role != domain.RoleClient {
		t.Fatalf("got %s/%s, want conflict/client", sErr.Kind, sErr.Role)
	}
	if sErr.Error() != "client already booked" {
		t.Fatalf("error = %q, want %q", sErr.Error(), "client already booked")
	}
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected errors.Is(err, store.ErrConflict)")
	}
}

// Two creates with one key can race past the replay lookup when they lock
// different slots. The loser replays the winner or is told the key is taken.
func TestCreateBooking_DuplicateIDAtCommit(t *testing.T) {
	rel := activeRelationship()
	otherRel := activeRelationship()
	in := CreateInput{
		RequesterID:    rel.ClientID,
		RelationshipID: rel.ID,
		Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Start:          9 * 60,
		End:            10 * 60,
		IdempotencyKey: "k1",
	}

	newSvc := func(winner domain.Booking) *Service {
		return NewService(&fakeStore{
			getRelationshipFn: func(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
				return rel, nil
			},
			inTxFn: func(ctx context.Context, fn func(ctx context.Context, tx store.SessionTx) error) error {
				return fmt.Errorf("%w: booking %s", store.ErrDuplicateID, winner.ID)
			},
			getBookingFn: func(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
				if id != winner.ID {
					t.Fatalf("lookup id = %s, want %s", id, winner.ID)
				}
				return winner, nil
			},
		})
	}
	keyID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("peakpartner:create_booking:"+rel.ClientID.String()+":k1"))

	same := domain.Booking{ID: keyID, RelationshipID: rel.ID, Status: domain.BookingStatusBooked}
	got, err := newSvc(same).CreateBooking(context.Background(), in)
	if err != nil {
		t.Fatalf("same relationship should replay, got %v", err)
	}
	if got.ID != keyID {
		t.Fatalf("replayed id = %s, want %s", got.ID, keyID)
	}

	other := domain.Booking{ID: keyID, RelationshipID: otherRel.ID, Status: domain.BookingStatusBooked}
	_, err = newSvc(other).CreateBooking(context.Background(), in)
	sErr := wantKind(t, err, KindBadRequest)
	if sErr.Msg != "idempotency_key already used" {
		t.Fatalf("msg = %q", sErr.Msg)
	}
}

func TestTranslate(t *testing.T) {
	boom := errors.New("connection reset")
	tests := []struct {
		name string
		in   error
		want Kind
		msg  string
	}{
		{name: "not found", in: store.ErrNotFound, want: KindNotFound, msg: "booking not found"},
		{name: "wrapped not found", in: fmt.Errorf("get: %w", store.ErrNotFound), want: KindNotFound, msg: "booking not found"},
		{name: "pending", in: store.ErrPendingReschedule, want: KindBadRequest, msg: "reschedule already pending"},
		{name: "duplicate id", in: fmt.Errorf("%w: booking x", store.ErrDuplicateID), want: KindBadRequest, msg: "idempotency_key already used"},
		{name: "db lock timeout", in: fmt.Errorf("%w: canceling statement", store.ErrLockTimeout), want: KindUnavailable},
		{name: "lease timeout", in: lock.ErrTimeout, want: KindUnavailable},
		{name: "bare conflict", in: store.ErrConflict, want: KindConflict, msg: "slot already booked"},
		{name: "trainer conflict", in: &store.ConflictError{Role: domain.RoleTrainer}, want: KindConflict, msg: "trainer already booked"},
		{name: "service error passes", in: invalidState("booking is cancelled"), want: KindInvalidState, msg: "booking is cancelled"},
		{name: "other", in: boom, want: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in, "booking not found")
			if KindOf(got) != tt.want {
				t.Fatalf("kind = %s, want %s", KindOf(got), tt.want)
			}
			if tt.msg != "" && got.Error() != tt.msg {
				t.Fatalf("msg = %q, want %q", got.Error(), tt.msg)
			}
			if tt.want == KindInternal && !errors.Is(got, boom) {
				t.Fatalf("internal error should wrap the cause")
			}
		})
	}
	if translate(nil, "x") != nil {
		t.Fatalf("translate(nil) should be nil")
	}
}

func TestCreateBooking_LeaseTimeoutIsUnavailable(t *testing.T) {
	rel := activeRelationship()
	calls := 0
	svc := NewService(&fakeStore{
		getRelationshipFn: func(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
			return rel, nil
		},
		inTxFn: func(ctx context.Context, fn func(ctx context.Context, tx store.SessionTx) error) error {
			calls++
			return nil
		},
	}, WithLocker(lockerFunc(func(ctx context.Context, keys ...string) (func(), error) {
		if len(keys) != 2 {
			t.Fatalf("keys = %v, want trainer and client slot", keys)
		}
		return nil, lock.ErrTimeout
	})))

	_, err := svc.CreateBooking(context.Background(), CreateInput{
		RequesterID:    rel.TrainerID,
		RelationshipID: rel.ID,
		Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Start:          9 * 60,
		End:            10 * 60,
	})
	if KindOf(err) != KindUnavailable {
		t.Fatalf("kind = %s, want unavailable (%v)", KindOf(err), err)
	}
	if calls != 0 {
		t.Fatalf("transaction ran without the lease")
	}
}

type lockerFunc func(ctx context.Context, keys ...string) (func(), error)

func (f lockerFunc) Acquire(ctx context.Context, keys ...string) (func(), error) {
	return f(ctx, keys...)
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		KindInternal:     "internal",
		KindNotFound:     "not_found",
		KindUnauthorized: "unauthorized",
		KindInvalidState: "invalid_state",
		KindBadRequest:   "bad_request",
		KindConflict:     "conflict",
		KindUnavailable:  "unavailable",
	} {
		if k.String() != want {
			t.Fatalf("%d.String() = %q, want %q", k, k.String(), want)
		}
	}
}
