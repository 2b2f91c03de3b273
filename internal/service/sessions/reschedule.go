package sessions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/store"
)

type ProposeInput struct {
	RequesterID uuid.UUID
	BookingID   uuid.UUID
	Date        time.Time
	Start       domain.ClockTime
	End         domain.ClockTime
	Reason      string
}

// ProposeReschedule opens a request to move a booked session. Only one
// request per booking may be pending.
func (s *Service) ProposeReschedule(ctx context.Context, in ProposeInput) (domain.RescheduleRequest, error) {
	if in.RequesterID == uuid.Nil {
		return domain.RescheduleRequest{}, badRequest("requester_id is required")
	}
	if in.BookingID == uuid.Nil {
		return domain.RescheduleRequest{}, badRequest("booking_id is required")
	}
	slot, err := domain.NewSlot(in.Date, in.Start, in.End)
	if err != nil {
		return domain.RescheduleRequest{}, badRequest(err.Error())
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) > maxTextLen {
		return domain.RescheduleRequest{}, badRequest("reason too long")
	}

	var out domain.RescheduleRequest
	err = s.store.InTx(ctx, func(ctx context.Context, tx store.SessionTx) error {
		b, err := tx.GetBooking(ctx, in.BookingID, true)
		if err != nil {
			return translate(err, "booking not found")
		}
		if _, ok := b.RoleOf(in.RequesterID); !ok {
			return unauthorized("not a participant of this booking")
		}
		if b.Status != domain.BookingStatusBooked {
			return invalidState("booking is " + string(b.Status))
		}
		if _, err := engaged(ctx, tx, b.RelationshipID); err != nil {
			return err
		}

		pending, err := tx.ListPendingReschedules(ctx, b.ID)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return badRequest("reschedule already pending")
		}

		rr, err := tx.InsertReschedule(ctx, domain.RescheduleRequest{
			BookingID:     b.ID,
			RequestedBy:   in.RequesterID,
			ProposedDate:  slot.Date,
			ProposedStart: slot.Start,
			ProposedEnd:   slot.End,
			Reason:        reason,
			Status:        domain.RescheduleStatusPending,
		})
		if err != nil {
			return err
		}
		out = rr
		return nil
	})
	if err != nil {
		return domain.RescheduleRequest{}, translate(err, "booking not found")
	}
	return out, nil
}

type RespondResult struct {
	Request domain.RescheduleRequest
	Booking domain.Booking
}

// RespondReschedule lets the other participant accept or decline a pending
// request. A rejected accept rolls back whole, so the request stays pending
// and the booking keeps its slot.
func (s *Service) RespondReschedule(ctx context.Context, responderID, requestID uuid.UUID, accept bool) (RespondResult, error) {
	if responderID == uuid.Nil {
		return RespondResult{}, badRequest("responder_id is required")
	}
	if requestID == uuid.Nil {
		return RespondResult{}, badRequest("request_id is required")
	}

	var keys []store.SlotKey
	if accept {
		rr, err := s.store.GetReschedule(ctx, requestID)
		if err != nil {
			return RespondResult{}, translate(err, "reschedule request not found")
		}
		b, err := s.store.GetBooking(ctx, rr.BookingID)
		if err != nil {
			return RespondResult{}, translate(err, "booking not found")
		}
		if _, ok := b.RoleOf(responderID); ok && rr.RequestedBy != responderID && !rr.Status.Terminal() {
			if err := s.checkAvailability(ctx, b.TrainerID, rr.ProposedSlot()); err != nil {
				return RespondResult{}, err
			}
		}
		keys = store.SlotKeys(b.TrainerID, b.ClientID, rr.ProposedDate)
	}

	var out RespondResult
	err := s.withLease(ctx, keys, func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx store.SessionTx) error {
			b, rr, err := lockRequest(ctx, tx, requestID)
			if err != nil {
				return err
			}
			if _, ok := b.RoleOf(responderID); !ok {
				return unauthorized("not a participant of this booking")
			}
			if rr.RequestedBy == responderID {
				return badRequest("cannot respond to own request")
			}
			if rr.Status.Terminal() {
				return invalidState("reschedule request is " + string(rr.Status))
			}
			if b.Status != domain.BookingStatusBooked {
				return invalidState("booking is " + string(b.Status))
			}

			now := s.now()
			if !accept {
				rr.Status = domain.RescheduleStatusDeclined
				rr.RespondedAt = &now
				updated, err := tx.UpdateReschedule(ctx, rr)
				if err != nil {
					return err
				}
				out = RespondResult{Request: updated, Booking: b}
				return nil
			}

			if _, err := engaged(ctx, tx, b.RelationshipID); err != nil {
				return err
			}
			slot := rr.ProposedSlot()
			if err := tx.LockSlots(ctx, store.SlotKeys(b.TrainerID, b.ClientID, slot.Date)...); err != nil {
				return err
			}
			moved, err := s.applyReschedule(ctx, tx, b, slot)
			if err != nil {
				return err
			}

			rr.Status = domain.RescheduleStatusAccepted
			rr.RespondedAt = &now
			updated, err := tx.UpdateReschedule(ctx, rr)
			if err != nil {
				return err
			}
			out = RespondResult{Request: updated, Booking: moved}
			return nil
		})
	})
	if err != nil {
		return RespondResult{}, translate(err, "reschedule request not found")
	}
	return out, nil
}

// CancelReschedule withdraws a pending request. Only its requester may do so.
func (s *Service) CancelReschedule(ctx context.Context, requesterID, requestID uuid.UUID) (domain.RescheduleRequest, error) {
	if requestID == uuid.Nil {
		return domain.RescheduleRequest{}, badRequest("request_id is required")
	}

	var out domain.RescheduleRequest
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.SessionTx) error {
		b, rr, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if _, ok := b.RoleOf(requesterID); !ok {
			return unauthorized("not a participant of this booking")
		}
		if rr.RequestedBy != requesterID {
			return unauthorized("only the requester can withdraw a reschedule request")
		}
		if rr.Status.Terminal() {
			return invalidState("reschedule request is " + string(rr.Status))
		}

		now := s.now()
		rr.Status = domain.RescheduleStatusCancelled
		rr.RespondedAt = &now
		updated, err := tx.UpdateReschedule(ctx, rr)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.RescheduleRequest{}, translate(err, "reschedule request not found")
	}
	return out, nil
}

// lockRequest locks the owning booking before the request so it takes
// locks in the same order as cancel and propose.
func lockRequest(ctx context.Context, tx store.SessionTx, requestID uuid.UUID) (domain.Booking, domain.RescheduleRequest, error) {
	peek, err := tx.GetReschedule(ctx, requestID, false)
	if err != nil {
		return domain.Booking{}, domain.RescheduleRequest{}, translate(err, "reschedule request not found")
	}
	b, err := tx.GetBooking(ctx, peek.BookingID, true)
	if err != nil {
		return domain.Booking{}, domain.RescheduleRequest{}, translate(err, "booking not found")
	}
	rr, err := tx.GetReschedule(ctx, requestID, true)
	if err != nil {
		return domain.Booking{}, domain.RescheduleRequest{}, translate(err, "reschedule request not found")
	}
	return b, rr, nil
}

func (s *Service) GetReschedule(ctx context.Context, actorID, requestID uuid.UUID) (domain.RescheduleRequest, error) {
	rr, err := s.store.GetReschedule(ctx, requestID)
	if err != nil {
		return domain.RescheduleRequest{}, translate(err, "reschedule request not found")
	}
	if _, err := s.GetBooking(ctx, actorID, rr.BookingID); err != nil {
		return domain.RescheduleRequest{}, err
	}
	return rr, nil
}

// ListReschedules returns a booking's negotiation history, newest first.
func (s *Service) ListReschedules(ctx context.Context, actorID, bookingID uuid.UUID) ([]domain.RescheduleRequest, error) {
	if _, err := s.GetBooking(ctx, actorID, bookingID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListReschedules(ctx, bookingID)
	if err != nil {
		return nil, translate(err, "booking not found")
	}
	return rows, nil
}

// ListAwaitingResponse returns pending requests the actor is expected to answer.
func (s *Service) ListAwaitingResponse(ctx context.Context, actorID uuid.UUID) ([]domain.RescheduleRequest, error) {
	if actorID == uuid.Nil {
		return nil, badRequest("participant_id is required")
	}
	rows, err := s.store.ListAwaitingResponse(ctx, actorID)
	if err != nil {
		return nil, translate(err, "reschedule request not found")
	}
	return rows, nil
}
