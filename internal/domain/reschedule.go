package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RescheduleStatus string

const (
	RescheduleStatusPending   RescheduleStatus = "pending"
	RescheduleStatusAccepted  RescheduleStatus = "accepted"
	RescheduleStatusDeclined  RescheduleStatus = "declined"
	RescheduleStatusCancelled RescheduleStatus = "cancelled"
)

func (s RescheduleStatus) Valid() bool {
	switch s {
	case RescheduleStatusPending, RescheduleStatusAccepted, RescheduleStatusDeclined, RescheduleStatusCancelled:
		return true
	}
	return false
}

func (s RescheduleStatus) Terminal() bool {
	switch s {
	case RescheduleStatusPending:
		return false
	case RescheduleStatusAccepted, RescheduleStatusDeclined, RescheduleStatusCancelled:
		return true
	}
	return true
}

// RescheduleRequest proposes moving one booking to a new slot. At most one
// request per booking is pending at a time.
type RescheduleRequest struct {
	bun.BaseModel `bun:"table:reschedule_requests,alias:rr"`

	ID            uuid.UUID        `bun:"id,pk,type:uuid"`
	BookingID     uuid.UUID        `bun:"booking_id,notnull,type:uuid"`
	RequestedBy   uuid.UUID        `bun:"requested_by,notnull,type:uuid"`
	ProposedDate  time.Time        `bun:"proposed_date,notnull,type:date"`
	ProposedStart ClockTime        `bun:"proposed_start_minute,notnull"`
	ProposedEnd   ClockTime        `bun:"proposed_end_minute,notnull"`
	Reason        string           `bun:"reason,nullzero"`
	Status        RescheduleStatus `bun:"status,notnull"`
	RespondedAt   *time.Time       `bun:"responded_at"`
	CreatedAt     time.Time        `bun:"created_at,notnull"`
}

func (r RescheduleRequest) ProposedSlot() Slot {
	return Slot{Date: DateOf(r.ProposedDate), Start: r.ProposedStart, End: r.ProposedEnd}
}

func (r *RescheduleRequest) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}
