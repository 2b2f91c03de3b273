package grpc

import (
	"time"

	"peakpartner/backend/internal/domain"
)

type Booking struct {
	ID             string
	RelationshipID string
	TrainerID      string
	ClientID       string
	Date           string
	StartTime      string
	EndTime        string
	Mode           string
	Status         string
	Notes          string
	CancelReason   string
	CancelledBy    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RescheduleRequest struct {
	ID                string
	BookingID         string
	RequestedBy       string
	ProposedDate      string
	ProposedStartTime string
	ProposedEndTime   string
	Reason            string
	Status            string
	RespondedAt       *time.Time
	CreatedAt         time.Time
}

// Every request names the acting participant. The rate limiter keys on it.

type CreateBookingRequest struct {
	ParticipantID  string
	RelationshipID string
	Date           string
	StartTime      string
	EndTime        string
	Mode           string
	Notes          string
}

type BookingRequest struct {
	ParticipantID string
	BookingID     string
}

type CancelBookingRequest struct {
	ParticipantID string
	BookingID     string
	Reason        string
}

type ListBookingsRequest struct {
	ParticipantID string
	Scope         string
	From          string
	To            string
	Status        string
}

type ParticipantRequest struct {
	ParticipantID string
}

type BookingResponse struct {
	Booking *Booking
}

type ListBookingsResponse struct {
	Bookings []*Booking
}

type ProposeRescheduleRequest struct {
	ParticipantID string
	BookingID     string
	Date          string
	StartTime     string
	EndTime       string
	Reason        string
}

type RespondRescheduleRequest struct {
	ParticipantID string
	RequestID     string
	Accept        bool
}

type RescheduleRequestRef struct {
	ParticipantID string
	RequestID     string
}

type RescheduleResponse struct {
	Request *RescheduleRequest
	Booking *Booking
}

type ListReschedulesResponse struct {
	Requests []*RescheduleRequest
}

func (r *CreateBookingRequest) GetParticipantId() string     { return r.ParticipantID }
func (r *BookingRequest) GetParticipantId() string           { return r.ParticipantID }
func (r *CancelBookingRequest) GetParticipantId() string     { return r.ParticipantID }
func (r *ListBookingsRequest) GetParticipantId() string      { return r.ParticipantID }
func (r *ParticipantRequest) GetParticipantId() string       { return r.ParticipantID }
func (r *ProposeRescheduleRequest) GetParticipantId() string { return r.ParticipantID }
func (r *RespondRescheduleRequest) GetParticipantId() string { return r.ParticipantID }
func (r *RescheduleRequestRef) GetParticipantId() string     { return r.ParticipantID }

func toBooking(b domain.Booking) *Booking {
	out := &Booking{
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
		out.CancelledBy = b.CancelledBy.String()
	}
	return out
}

func toBookings(rows []domain.Booking) []*Booking {
	out := make([]*Booking, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBooking(b))
	}
	return out
}

func toReschedule(r domain.RescheduleRequest) *RescheduleRequest {
	return &RescheduleRequest{
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

func toReschedules(rows []domain.RescheduleRequest) []*RescheduleRequest {
	out := make([]*RescheduleRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, toReschedule(r))
	}
	return out
}
