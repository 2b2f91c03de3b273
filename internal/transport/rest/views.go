package rest

import (
	"time"

	"peakpartner/backend/internal/domain"
)

type bookingView struct {
	ID             string    `json:"id"`
	RelationshipID string    `json:"relationship_id"`
	TrainerID      string    `json:"trainer_id"`
	ClientID       string    `json:"client_id"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	Mode           string    `json:"mode"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	CancelReason   string    `json:"cancel_reason,omitempty"`
	CancelledBy    string    `json:"cancelled_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type rescheduleView struct {
	ID                string     `json:"id"`
	BookingID         string     `json:"booking_id"`
	RequestedBy       string     `json:"requested_by"`
	ProposedDate      string     `json:"proposed_date"`
	ProposedStartTime string     `json:"proposed_start_time"`
	ProposedEndTime   string     `json:"proposed_end_time"`
	Reason            string     `json:"reason,omitempty"`
	Status            string     `json:"status"`
	RespondedAt       *time.Time `json:"responded_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type respondView struct {
	Request rescheduleView `json:"request"`
	Booking bookingView    `json:"booking"`
}

type listResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func newList[T any, V any](rows []T, view func(T) V) listResponse[V] {
	out := make([]V, 0, len(rows))
	for _, r := range rows {
		out = append(out, view(r))
	}
	return listResponse[V]{Data: out, Total: len(out)}
}

func viewBooking(b domain.Booking) bookingView {
	v := bookingView{
		ID:             b.ID.String(),
		RelationshipID: b.RelationshipID.String(),
		TrainerID:      b.TrainerID.String(),
		ClientID:       b.ClientID.String(),
		Date:           b.Date.Format(domain.DateLayout),
		StartTime:      b.Start.String(),
		EndTime:        b.End.String(),
		Mode:           string(b.Mode),
		Status:         string(b.Status),
		Notes:          b.Notes,
		CancelReason:   b.CancelReason,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	if b.CancelledBy != nil {
		v.CancelledBy = b.CancelledBy.String()
	}
	return v
}

func viewReschedule(r domain.RescheduleRequest) rescheduleView {
	return rescheduleView{
		ID:                r.ID.String(),
		BookingID:         r.BookingID.String(),
		RequestedBy:       r.RequestedBy.String(),
		ProposedDate:      r.ProposedDate.Format(domain.DateLayout),
		ProposedStartTime: r.ProposedStart.String(),
		ProposedEndTime:   r.ProposedEnd.String(),
		Reason:            r.Reason,
		Status:            string(r.Status),
		RespondedAt:       r.RespondedAt,
		CreatedAt:         r.CreatedAt,
	}
}
