package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown booking status %q", s)
	}
	return st, nil
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusBooked, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// Active reports whether a booking in this status occupies its slot.
func (s BookingStatus) Active() bool {
	switch s {
	case BookingStatusBooked:
		return true
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return false
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s. Only booked
// bookings move; every other status is terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusBooked:
		switch next {
		case BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
			return true
		case BookingStatusBooked:
			return false
		}
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return false
	}
	return false
}

type SessionMode string

const (
	SessionModeInPerson SessionMode = "in_person"
	SessionModeVirtual  SessionMode = "virtual"
)

// ParseSessionMode defaults an empty value to in-person.
func ParseSessionMode(s string) (SessionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "in_person", "in-person":
		return SessionModeInPerson, nil
	case "virtual":
		return SessionModeVirtual, nil
	}
	return "", fmt.Errorf("unknown session mode %q", s)
}

type Booking struct {
	bun.BaseModel `bun:"table:session_bookings,alias:sb"`

	ID             uuid.UUID     `bun:"id,pk,type:uuid"`
	RelationshipID uuid.UUID     `bun:"relationship_id,notnull,type:uuid"`
	TrainerID      uuid.UUID     `bun:"trainer_id,notnull,type:uuid"`
	ClientID       uuid.UUID     `bun:"client_id,notnull,type:uuid"`
	Date           time.Time     `bun:"session_date,notnull,type:date"`
	Start          ClockTime     `bun:"start_minute,notnull"`
	End            ClockTime     `bun:"end_minute,notnull"`
	Mode           SessionMode   `bun:"mode,notnull"`
	Status         BookingStatus `bun:"status,notnull"`
	Notes          string        `bun:"notes,nullzero"`
	CancelReason   string        `bun:"cancel_reason,nullzero"`
	CancelledBy    *uuid.UUID    `bun:"cancelled_by,type:uuid"`
	CreatedAt      time.Time     `bun:"created_at,notnull"`
	UpdatedAt      time.Time     `bun:"updated_at,notnull"`
}

func (b Booking) Slot() Slot {
	return Slot{Date: DateOf(b.Date), Start: b.Start, End: b.End}
}

func (b Booking) RoleOf(id uuid.UUID) (Role, bool) {
	switch id {
	case b.TrainerID:
		return RoleTrainer, true
	case b.ClientID:
		return RoleClient, true
	}
	return "", false
}

func (b Booking) Participant(role Role) uuid.UUID {
	switch role {
	case RoleTrainer:
		return b.TrainerID
	case RoleClient:
		return b.ClientID
	}
	return uuid.Nil
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}
