package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/service/sessions"
)

type sessionsService interface {
	CreateBooking(ctx context.Context, in sessions.CreateInput) (domain.Booking, error)
	GetBooking(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, actorID uuid.UUID, f sessions.ListFilter) ([]domain.Booking, error)
	NextBooking(ctx context.Context, actorID uuid.UUID) (domain.Booking, error)
	CancelBooking(ctx context.Context, requesterID, bookingID uuid.UUID, reason string) (domain.Booking, error)
	CompleteBooking(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error)
	MarkNoShow(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error)
	ProposeReschedule(ctx context.Context, in sessions.ProposeInput) (domain.RescheduleRequest, error)
	RespondReschedule(ctx context.Context, responderID, requestID uuid.UUID, accept bool) (sessions.RespondResult, error)
	CancelReschedule(ctx context.Context, requesterID, requestID uuid.UUID) (domain.RescheduleRequest, error)
	ListReschedules(ctx context.Context, actorID, bookingID uuid.UUID) ([]domain.RescheduleRequest, error)
	ListAwaitingResponse(ctx context.Context, actorID uuid.UUID) ([]domain.RescheduleRequest, error)
}

type SessionsHandler struct {
	svc sessionsService
	log *slog.Logger
	now func() time.Time
}

type createBookingBody struct {
	RelationshipID string `json:"relationship_id" binding:"required"`
	Date           string `json:"date" binding:"required"`
	StartTime      string `json:"start_time" binding:"required"`
	EndTime        string `json:"end_time" binding:"required"`
	Mode           string `json:"mode"`
	Notes          string `json:"notes"`
}

type cancelBody struct {
	Reason string `json:"reason"`
}

type proposeBody struct {
	BookingID string `json:"booking_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Reason    string `json:"reason"`
}

func (h *SessionsHandler) Create(c *gin.Context) {
	var body createBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "relationship_id, date, start_time and end_time are required")
		return
	}
	relID, err := uuid.Parse(strings.TrimSpace(body.RelationshipID))
	if err != nil {
		badRequest(c, "relationship_id must be a UUID")
		return
	}
	slot, ok := bindSlot(c, body.Date, body.StartTime, body.EndTime)
	if !ok {
		return
	}
	mode, err := domain.ParseSessionMode(body.Mode)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.svc.CreateBooking(c.Request.Context(), sessions.CreateInput{
		RequesterID:    participantID(c),
		RelationshipID: relID,
		Date:           slot.Date,
		Start:          slot.Start,
		End:            slot.End,
		Mode:           mode,
		Notes:          body.Notes,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		fail(c, h.log, "booking create", err)
		return
	}

	h.log.Info("booking created",
		slog.String("booking_id", b.ID.String()),
		slog.String("slot", b.Slot().String()),
	)
	c.JSON(http.StatusCreated, viewBooking(b))
}

func (h *SessionsHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.svc.GetBooking(c.Request.Context(), participantID(c), id)
	if err != nil {
		fail(c, h.log, "booking get", err)
		return
	}
	c.JSON(http.StatusOK, viewBooking(b))
}

// List serves GET /sessions with optional scope, from, to and status
// query parameters.
func (h *SessionsHandler) List(c *gin.Context) {
	f := sessions.ListFilter{Scope: sessions.Scope(strings.ToLower(strings.TrimSpace(c.Query("scope"))))}
	var ok bool
	if f.From, ok = queryDate(c, "from"); !ok {
		return
	}
	if f.To, ok = queryDate(c, "to"); !ok {
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		st, err := domain.ParseBookingStatus(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		f.Status = &st
	}
	h.list(c, f)
}

func (h *SessionsHandler) Today(c *gin.Context) {
	today := domain.DateOf(h.now())
	h.list(c, sessions.ListFilter{From: &today, To: &today})
}

func (h *SessionsHandler) Upcoming(c *gin.Context) {
	h.list(c, sessions.ListFilter{Scope: sessions.ScopeUpcoming})
}

func (h *SessionsHandler) list(c *gin.Context, f sessions.ListFilter) {
	rows, err := h.svc.ListBookings(c.Request.Context(), participantID(c), f)
	if err != nil {
		fail(c, h.log, "bookings list", err)
		return
	}
	c.JSON(http.StatusOK, newList(rows, viewBooking))
}

func (h *SessionsHandler) Next(c *gin.Context) {
	b, err := h.svc.NextBooking(c.Request.Context(), participantID(c))
	if err != nil {
		fail(c, h.log, "next booking", err)
		return
	}
	c.JSON(http.StatusOK, viewBooking(b))
}

func (h *SessionsHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body cancelBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "body must be a JSON object")
			return
		}
	}
	b, err := h.svc.CancelBooking(c.Request.Context(), participantID(c), id, body.Reason)
	if err != nil {
		fail(c, h.log, "booking cancel", err)
		return
	}
	h.log.Info("booking cancelled", slog.String("booking_id", b.ID.String()))
	c.JSON(http.StatusOK, viewBooking(b))
}

func (h *SessionsHandler) Complete(c *gin.Context) {
	h.close(c, "booking complete", h.svc.CompleteBooking)
}

func (h *SessionsHandler) NoShow(c *gin.Context) {
	h.close(c, "booking no-show", h.svc.MarkNoShow)
}

func (h *SessionsHandler) close(c *gin.Context, op string, call func(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := call(c.Request.Context(), participantID(c), id)
	if err != nil {
		fail(c, h.log, op, err)
		return
	}
	h.log.Info("booking closed", slog.String("booking_id", b.ID.String()), slog.String("status", string(b.Status)))
	c.JSON(http.StatusOK, viewBooking(b))
}

func (h *SessionsHandler) Propose(c *gin.Context) {
	var body proposeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "booking_id, date, start_time and end_time are required")
		return
	}
	bookingID, err := uuid.Parse(strings.TrimSpace(body.BookingID))
	if err != nil {
		badRequest(c, "booking_id must be a UUID")
		return
	}
	slot, ok := bindSlot(c, body.Date, body.StartTime, body.EndTime)
	if !ok {
		return
	}

	rr, err := h.svc.ProposeReschedule(c.Request.Context(), sessions.ProposeInput{
		RequesterID: participantID(c),
		BookingID:   bookingID,
		Date:        slot.Date,
		Start:       slot.Start,
		End:         slot.End,
		Reason:      body.Reason,
	})
	if err != nil {
		fail(c, h.log, "reschedule propose", err)
		return
	}
	h.log.Info("reschedule proposed", slog.String("reschedule_id", rr.ID.String()), slog.String("booking_id", rr.BookingID.String()))
	c.JSON(http.StatusCreated, viewReschedule(rr))
}

func (h *SessionsHandler) Accept(c *gin.Context)  { h.respond(c, true) }
func (h *SessionsHandler) Decline(c *gin.Context) { h.respond(c, false) }

func (h *SessionsHandler) respond(c *gin.Context, accept bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.RespondReschedule(c.Request.Context(), participantID(c), id, accept)
	if err != nil {
		fail(c, h.log, "reschedule respond", err)
		return
	}
	h.log.Info("reschedule answered", slog.String("reschedule_id", res.Request.ID.String()), slog.String("status", string(res.Request.Status)))
	c.JSON(http.StatusOK, respondView{Request: viewReschedule(res.Request), Booking: viewBooking(res.Booking)})
}

func (h *SessionsHandler) Withdraw(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rr, err := h.svc.CancelReschedule(c.Request.Context(), participantID(c), id)
	if err != nil {
		fail(c, h.log, "reschedule cancel", err)
		return
	}
	c.JSON(http.StatusOK, viewReschedule(rr))
}

func (h *SessionsHandler) Reschedules(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListReschedules(c.Request.Context(), participantID(c), id)
	if err != nil {
		fail(c, h.log, "reschedules list", err)
		return
	}
	c.JSON(http.StatusOK, newList(rows, viewReschedule))
}

func (h *SessionsHandler) Pending(c *gin.Context) {
	rows, err := h.svc.ListAwaitingResponse(c.Request.Context(), participantID(c))
	if err != nil {
		fail(c, h.log, "awaiting list", err)
		return
	}
	c.JSON(http.StatusOK, newList(rows, viewReschedule))
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		badRequest(c, key+" must be YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}

func bindSlot(c *gin.Context, date, start, end string) (domain.Slot, bool) {
	d, err := domain.ParseDate(strings.TrimSpace(date))
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return domain.Slot{}, false
	}
	st, err := domain.ParseClockTime(start)
	if err != nil {
		badRequest(c, "start_time must be HH:MM")
		return domain.Slot{}, false
	}
	en, err := domain.ParseClockTime(end)
	if err != nil {
		badRequest(c, "end_time must be HH:MM")
		return domain.Slot{}, false
	}
	return domain.Slot{Date: d, Start: st, End: en}, true
}
