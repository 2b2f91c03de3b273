package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"peakpartner/backend/internal/domain"
)

// SlotKey identifies one participant's calendar date. Writers that check and
// then commit a slot hold the key for the whole transaction.
type SlotKey struct {
	ParticipantID uuid.UUID
	Date          time.Time
}

func (k SlotKey) String() string {
	return "slot:" + k.ParticipantID.String() + ":" + k.Date.Format(domain.DateLayout)
}

// SlotKeys returns the deduplicated keys for a trainer and client on date in
// a stable order, so concurrent writers always acquire them the same way.
func SlotKeys(trainerID, clientID uuid.UUID, date time.Time) []SlotKey {
	return NormalizeSlotKeys([]SlotKey{
		{ParticipantID: trainerID, Date: domain.DateOf(date)},
		{ParticipantID: clientID, Date: domain.DateOf(date)},
	})
}

func NormalizeSlotKeys(keys []SlotKey) []SlotKey {
	seen := make(map[string]struct{}, len(keys))
	out := make([]SlotKey, 0, len(keys))
	for _, k := range keys {
		k.Date = domain.DateOf(k.Date)
		s := k.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

type BookingFilter struct {
	ParticipantID uuid.UUID
	From          *time.Time
	To            *time.Time
	Status        *domain.BookingStatus
	// Ascending orders by date and start time ascending; the default is newest first.
	Ascending bool
}

// SessionTx is the view of the store inside one all-or-nothing transaction.
// Lock order within a transaction is booking row, then reschedule rows, then
// slot keys.
type SessionTx interface {
	LockSlots(ctx context.Context, keys ...SlotKey) error

	GetRelationship(ctx context.Context, id uuid.UUID) (domain.Relationship, error)

	GetBooking(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Booking, error)
	ListActiveBookings(ctx context.Context, role domain.Role, participantID uuid.UUID, date time.Time) ([]domain.Booking, error)
	InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)

	GetReschedule(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.RescheduleRequest, error)
	ListPendingReschedules(ctx context.Context, bookingID uuid.UUID) ([]domain.RescheduleRequest, error)
	InsertReschedule(ctx context.Context, r domain.RescheduleRequest) (domain.RescheduleRequest, error)
	UpdateReschedule(ctx context.Context, r domain.RescheduleRequest) (domain.RescheduleRequest, error)
}

type SessionStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx SessionTx) error) error

	GetRelationship(ctx context.Context, id uuid.UUID) (domain.Relationship, error)
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	GetReschedule(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error)
	// ListReschedules returns every request for a booking, newest first.
	ListReschedules(ctx context.Context, bookingID uuid.UUID) ([]domain.RescheduleRequest, error)
	// ListAwaitingResponse returns pending requests on the participant's
	// bookings that someone else proposed, newest first.
	ListAwaitingResponse(ctx context.Context, participantID uuid.UUID) ([]domain.RescheduleRequest, error)
}
