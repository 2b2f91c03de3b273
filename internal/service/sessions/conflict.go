package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/store"
)

type activeBookingLister interface {
	ListActiveBookings(ctx context.Context, role domain.Role, participantID uuid.UUID, date time.Time) ([]domain.Booking, error)
}

// hasOverlap reports whether participantID already holds a booked slot on
// slot.Date that intersects slot. exclude, when not nil, is left out.
func hasOverlap(ctx context.Context, tx activeBookingLister, participantID uuid.UUID, role domain.Role, slot domain.Slot, exclude uuid.UUID) (bool, error) {
	rows, err := tx.ListActiveBookings(ctx, role, participantID, slot.Date)
	if err != nil {
		return false, err
	}
	for _, b := range rows {
		if exclude != uuid.Nil && b.ID == exclude {
			continue
		}
		if b.Status.Active() && slot.Overlaps(b.Slot()) {
			return true, nil
		}
	}
	return false, nil
}

// checkSlot runs the overlap check for both sides. The caller must already
// hold the slot keys for trainerID and clientID on slot.Date.
func checkSlot(ctx context.Context, tx activeBookingLister, trainerID, clientID uuid.UUID, slot domain.Slot, exclude uuid.UUID) error {
	busy, err := hasOverlap(ctx, tx, trainerID, domain.RoleTrainer, slot, exclude)
	if err != nil {
		return translate(err, "booking not found")
	}
	if busy {
		return conflict(domain.RoleTrainer)
	}

	busy, err = hasOverlap(ctx, tx, clientID, domain.RoleClient, slot, exclude)
	if err != nil {
		return translate(err, "booking not found")
	}
	if busy {
		return conflict(domain.RoleClient)
	}
	return nil
}

// HasOverlap checks one participant's calendar without writing anything.
// The answer may be stale by the time the caller acts on it; writers re-check
// under the slot lock.
func (s *Service) HasOverlap(ctx context.Context, participantID uuid.UUID, role domain.Role, slot domain.Slot, exclude uuid.UUID) (bool, error) {
	if !role.Valid() {
		return false, badRequest("unknown role")
	}
	if _, err := domain.NewSlot(slot.Date, slot.Start, slot.End); err != nil {
		return false, badRequest(err.Error())
	}

	var busy bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.SessionTx) error {
		var err error
		busy, err = hasOverlap(ctx, tx, participantID, role, slot, exclude)
		return err
	})
	if err != nil {
		return false, translate(err, "booking not found")
	}
	return busy, nil
}
