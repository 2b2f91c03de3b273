package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/service/sessions"
)

// ConflictRoleTrailer carries the participant role whose slot was taken.
const ConflictRoleTrailer = "x-conflict-role"

type SessionsServer struct {
	svc sessionsService
	log *slog.Logger
}

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

var _ SessionsServiceServer = (*SessionsServer)(nil)

func NewSessionsServer(svc sessionsService, log *slog.Logger) *SessionsServer {
	if log == nil {
		log = slog.Default()
	}
	return &SessionsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.sessions")),
	}
}

func (s *SessionsServer) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, err := parseID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, invalid(log, err)
	}
	relID, err := parseID("relationship_id", req.RelationshipID)
	if err != nil {
		return nil, invalid(log, err)
	}
	slot, err := parseSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, invalid(log, err, slog.String("participant_id", req.ParticipantID))
	}
	mode, err := domain.ParseSessionMode(req.Mode)
	if err != nil {
		return nil, invalid(log, err, slog.String("participant_id", req.ParticipantID))
	}

	b, err := s.svc.CreateBooking(ctx, sessions.CreateInput{
		RequesterID:    actor,
		RelationshipID: relID,
		Date:           slot.Date,
		Start:          slot.Start,
		End:            slot.End,
		Mode:           mode,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.fail(ctx, log, "booking create", err,
			slog.String("participant_id", req.ParticipantID),
			slog.String("relationship_id", req.RelationshipID),
			slog.String("slot", slot.String()),
		)
	}

	log.Info("booking created",
		slog.String("booking_id", b.ID.String()),
		slog.String("trainer_id", b.TrainerID.String()),
		slog.String("client_id", b.ClientID.String()),
		slog.String("slot", b.Slot().String()),
	)
	return &BookingResponse{Booking: toBooking(b)}, nil
}

func (s *SessionsServer) GetBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "GetBooking"))

	actor, bookingID, err := bookingRef(req)
	if err != nil {
		return nil, invalid(log, err)
	}
	b, err := s.svc.GetBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, s.fail(ctx, log, "booking get", err, slog.String("booking_id", req.BookingID))
	}
	return &BookingResponse{Booking: toBooking(b)}, nil
}

func (s *SessionsServer) ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListBookings"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, err := parseID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, invalid(log, err)
	}
	filter, err := parseListFilter(req.Scope, req.From, req.To, req.Status)
	if err != nil {
		return nil, invalid(log, err, slog.String("participant_id", req.ParticipantID))
	}

	rows, err := s.svc.ListBookings(ctx, actor, filter)
	if err != nil {
		return nil, s.fail(ctx, log, "bookings list", err, slog.String("participant_id", req.ParticipantID))
	}

	log.Debug("bookings listed",
		slog.String("participant_id", req.ParticipantID),
		slog.String("scope", req.Scope),
		slog.Int("count", len(rows)),
	)
	return &ListBookingsResponse{Bookings: toBookings(rows)}, nil
}

func (s *SessionsServer) NextBooking(ctx context.Context, req *ParticipantRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "NextBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, err := parseID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, invalid(log, err)
	}
	b, err := s.svc.NextBooking(ctx, actor)
	if err != nil {
		return nil, s.fail(ctx, log, "next booking", err, slog.String("participant_id", req.ParticipantID))
	}
	return &BookingResponse{Booking: toBooking(b)}, nil
}

func (s *SessionsServer) CancelBooking(ctx context.Context, req *CancelBookingRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, bookingID, err := bookingRef(&BookingRequest{ParticipantID: req.ParticipantID, BookingID: req.BookingID})
	if err != nil {
		return nil, invalid(log, err)
	}

	b, err := s.svc.CancelBooking(ctx, actor, bookingID, req.Reason)
	if err != nil {
		return nil, s.fail(ctx, log, "booking cancel", err,
			slog.String("booking_id", req.BookingID),
			slog.String("participant_id", req.ParticipantID),
		)
	}

	log.Info("booking cancelled", slog.String("booking_id", b.ID.String()), slog.String("cancelled_by", req.ParticipantID))
	return &BookingResponse{Booking: toBooking(b)}, nil
}

func (s *SessionsServer) CompleteBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	return s.closeBooking(ctx, "CompleteBooking", req, s.svc.CompleteBooking)
}

func (s *SessionsServer) MarkNoShow(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	return s.closeBooking(ctx, "MarkNoShow", req, s.svc.MarkNoShow)
}

func (s *SessionsServer) closeBooking(ctx context.Context, rpc string, req *BookingRequest, call func(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error)) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", rpc))

	actor, bookingID, err := bookingRef(req)
	if err != nil {
		return nil, invalid(log, err)
	}
	b, err := call(ctx, actor, bookingID)
	if err != nil {
		return nil, s.fail(ctx, log, "booking close", err,
			slog.String("booking_id", req.BookingID),
			slog.String("participant_id", req.ParticipantID),
		)
	}

	log.Info("booking closed", slog.String("booking_id", b.ID.String()), slog.String("status", string(b.Status)))
	return &BookingResponse{Booking: toBooking(b)}, nil
}

func (s *SessionsServer) ProposeReschedule(ctx context.Context, req *ProposeRescheduleRequest) (*RescheduleResponse, error) {
	log := s.log.With(slog.String("rpc", "ProposeReschedule"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, bookingID, err := bookingRef(&BookingRequest{ParticipantID: req.ParticipantID, BookingID: req.BookingID})
	if err != nil {
		return nil, invalid(log, err)
	}
	slot, err := parseSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, invalid(log, err, slog.String("booking_id", req.BookingID))
	}

	rr, err := s.svc.ProposeReschedule(ctx, sessions.ProposeInput{
		RequesterID: actor,
		BookingID:   bookingID,
		Date:        slot.Date,
		Start:       slot.Start,
		End:         slot.End,
		Reason:      req.Reason,
	})
	if err != nil {
		return nil, s.fail(ctx, log, "reschedule propose", err,
			slog.String("booking_id", req.BookingID),
			slog.String("participant_id", req.ParticipantID),
		)
	}

	log.Info("reschedule proposed",
		slog.String("reschedule_id", rr.ID.String()),
		slog.String("booking_id", rr.BookingID.String()),
		slog.String("slot", rr.ProposedSlot().String()),
	)
	return &RescheduleResponse{Request: toReschedule(rr)}, nil
}

func (s *SessionsServer) RespondReschedule(ctx context.Context, req *RespondRescheduleRequest) (*RescheduleResponse, error) {
	log := s.log.With(slog.String("rpc", "RespondReschedule"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, requestID, err := requestRef(&RescheduleRequestRef{ParticipantID: req.ParticipantID, RequestID: req.RequestID})
	if err != nil {
		return nil, invalid(log, err)
	}

	res, err := s.svc.RespondReschedule(ctx, actor, requestID, req.Accept)
	if err != nil {
		return nil, s.fail(ctx, log, "reschedule respond", err,
			slog.String("reschedule_id", req.RequestID),
			slog.String("participant_id", req.ParticipantID),
			slog.Bool("accept", req.Accept),
		)
	}

	log.Info("reschedule answered",
		slog.String("reschedule_id", res.Request.ID.String()),
		slog.String("status", string(res.Request.Status)),
	)
	return &RescheduleResponse{Request: toReschedule(res.Request), Booking: toBooking(res.Booking)}, nil
}

func (s *SessionsServer) CancelReschedule(ctx context.Context, req *RescheduleRequestRef) (*RescheduleResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelReschedule"))

	actor, requestID, err := requestRef(req)
	if err != nil {
		return nil, invalid(log, err)
	}
	rr, err := s.svc.CancelReschedule(ctx, actor, requestID)
	if err != nil {
		return nil, s.fail(ctx, log, "reschedule cancel", err, slog.String("reschedule_id", req.RequestID))
	}

	log.Info("reschedule withdrawn", slog.String("reschedule_id", rr.ID.String()))
	return &RescheduleResponse{Request: toReschedule(rr)}, nil
}

func (s *SessionsServer) ListReschedules(ctx context.Context, req *BookingRequest) (*ListReschedulesResponse, error) {
	log := s.log.With(slog.String("rpc", "ListReschedules"))

	actor, bookingID, err := bookingRef(req)
	if err != nil {
		return nil, invalid(log, err)
	}
	rows, err := s.svc.ListReschedules(ctx, actor, bookingID)
	if err != nil {
		return nil, s.fail(ctx, log, "reschedules list", err, slog.String("booking_id", req.BookingID))
	}
	return &ListReschedulesResponse{Requests: toReschedules(rows)}, nil
}

func (s *SessionsServer) ListAwaitingResponse(ctx context.Context, req *ParticipantRequest) (*ListReschedulesResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAwaitingResponse"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	actor, err := parseID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, invalid(log, err)
	}
	rows, err := s.svc.ListAwaitingResponse(ctx, actor)
	if err != nil {
		return nil, s.fail(ctx, log, "awaiting list", err, slog.String("participant_id", req.ParticipantID))
	}
	return &ListReschedulesResponse{Requests: toReschedules(rows)}, nil
}

// fail logs err at a level matching its kind and converts it to a status.
func (s *SessionsServer) fail(ctx context.Context, log *slog.Logger, op string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn(op+" timed out", args...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, "request cancelled")
	}

	var sErr *sessions.Error
	if !errors.As(err, &sErr) {
		log.Error(op+" failed", args...)
		return status.Error(codes.Internal, "internal error")
	}

	switch sErr.Kind {
	case sessions.KindConflict:
		log.Info(op+" conflict", args...)
		if sErr.Role != "" {
			_ = grpc.SetTrailer(ctx, metadata.Pairs(ConflictRoleTrailer, string(sErr.Role)))
		}
		return status.Error(codes.Aborted, sErr.Msg)
	case sessions.KindNotFound:
		log.Info(op+" not found", args...)
		return status.Error(codes.NotFound, sErr.Msg)
	case sessions.KindUnauthorized:
		log.Warn(op+" not permitted", args...)
		return status.Error(codes.PermissionDenied, sErr.Msg)
	case sessions.KindInvalidState:
		log.Info(op+" rejected", args...)
		return status.Error(codes.FailedPrecondition, sErr.Msg)
	case sessions.KindBadRequest:
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, sErr.Msg)
	case sessions.KindUnavailable:
		log.Warn(op+" lock wait timed out", args...)
		return status.Error(codes.Unavailable, sErr.Msg)
	}
	log.Error(op+" failed", args...)
	return status.Error(codes.Internal, "internal error")
}

func invalid(log *slog.Logger, err error, attrs ...any) error {
	log.Warn("invalid request", append([]any{slog.Any("err", err)}, attrs...)...)
	return status.Error(codes.InvalidArgument, err.Error())
}

type fieldError struct {
	msg string
}

func (e *fieldError) Error() string { return e.msg }

func parseID(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, &fieldError{msg: field + " is required"}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &fieldError{msg: field + " must be a UUID"}
	}
	return id, nil
}

func bookingRef(req *BookingRequest) (uuid.UUID, uuid.UUID, error) {
	if req == nil {
		return uuid.Nil, uuid.Nil, &fieldError{msg: "request is required"}
	}
	actor, err := parseID("participant_id", req.ParticipantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := parseID("booking_id", req.BookingID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return actor, id, nil
}

func requestRef(req *RescheduleRequestRef) (uuid.UUID, uuid.UUID, error) {
	if req == nil {
		return uuid.Nil, uuid.Nil, &fieldError{msg: "request is required"}
	}
	actor, err := parseID("participant_id", req.ParticipantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := parseID("request_id", req.RequestID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return actor, id, nil
}

// parseSlot reads "YYYY-MM-DD" and "HH:MM" fields. Ordering of start and end
// is left to the service.
func parseSlot(date, start, end string) (domain.Slot, error) {
	d, err := domain.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return domain.Slot{}, &fieldError{msg: "date must be YYYY-MM-DD"}
	}
	st, err := domain.ParseClockTime(strings.TrimSpace(start))
	if err != nil {
		return domain.Slot{}, &fieldError{msg: "start_time must be HH:MM"}
	}
	en, err := domain.ParseClockTime(strings.TrimSpace(end))
	if err != nil {
		return domain.Slot{}, &fieldError{msg: "end_time must be HH:MM"}
	}
	return domain.Slot{Date: d, Start: st, End: en}, nil
}

func parseListFilter(scope, from, to, st string) (sessions.ListFilter, error) {
	f := sessions.ListFilter{Scope: sessions.Scope(strings.ToLower(strings.TrimSpace(scope)))}
	if from = strings.TrimSpace(from); from != "" {
		d, err := domain.ParseDate(from)
		if err != nil {
			return sessions.ListFilter{}, &fieldError{msg: "from must be YYYY-MM-DD"}
		}
		f.From = &d
	}
	if to = strings.TrimSpace(to); to != "" {
		d, err := domain.ParseDate(to)
		if err != nil {
			return sessions.ListFilter{}, &fieldError{msg: "to must be YYYY-MM-DD"}
		}
		f.To = &d
	}
	if st = strings.TrimSpace(st); st != "" {
		bs, err := domain.ParseBookingStatus(st)
		if err != nil {
			return sessions.ListFilter{}, &fieldError{msg: err.Error()}
		}
		f.Status = &bs
	}
	return f, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
