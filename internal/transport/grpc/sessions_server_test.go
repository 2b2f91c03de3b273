package grpc

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/service/sessions"
)

type fakeSessionsService struct {
	createFn       func(ctx context.Context, in sessions.CreateInput) (domain.Booking, error)
	getFn          func(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error)
	listFn         func(ctx context.Context, actorID uuid.UUID, f sessions.ListFilter) ([]domain.Booking, error)
	nextFn         func(ctx context.Context, actorID uuid.UUID) (domain.Booking, error)
	cancelFn       func(ctx context.Context, requesterID, bookingID uuid.UUID, reason string) (domain.Booking, error)
	completeFn     func(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error)
	noShowFn       func(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error)
	proposeFn      func(ctx context.Context, in sessions.ProposeInput) (domain.RescheduleRequest, error)
	respondFn      func(ctx context.Context, responderID, requestID uuid.UUID, accept bool) (sessions.RespondResult, error)
	cancelRRFn     func(ctx context.Context, requesterID, requestID uuid.UUID) (domain.RescheduleRequest, error)
	listRRFn       func(ctx context.Context, actorID, bookingID uuid.UUID) ([]domain.RescheduleRequest, error)
	listAwaitingFn func(ctx context.Context, actorID uuid.UUID) ([]domain.RescheduleRequest, error)
}

func (f *fakeSessionsService) CreateBooking(ctx context.Context, in sessions.CreateInput) (domain.Booking, error) {
	if f.createFn == nil {
		panic("CreateBooking not configured")
	}
	return f.createFn(ctx, in)
}

func (f *fakeSessionsService) GetBooking(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error) {
	if f.getFn == nil {
		panic("GetBooking not configured")
	}
	return f.getFn(ctx, actorID, bookingID)
}

func (f *fakeSessionsService) ListBookings(ctx context.Context, actorID uuid.UUID, filter sessions.ListFilter) ([]domain.Booking, error) {
	if f.listFn == nil {
		panic("ListBookings not configured")
	}
	return f.listFn(ctx, actorID, filter)
}

func (f *fakeSessionsService) NextBooking(ctx context.Context, actorID uuid.UUID) (domain.Booking, error) {
	if f.nextFn == nil {
		panic("NextBooking not configured")
	}
	return f.nextFn(ctx, actorID)
}

func (f *fakeSessionsService) CancelBooking(ctx context.Context, requesterID, bookingID uuid.UUID, reason string) (domain.Booking, error) {
	if f.cancelFn == nil {
		panic("CancelBooking not configured")
	}
	return f.cancelFn(ctx, requesterID, bookingID, reason)
}

func (f *fakeSessionsService) CompleteBooking(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error) {
	if f.completeFn == nil {
		panic("CompleteBooking not configured")
	}
	return f.completeFn(ctx, trainerID, bookingID)
}

func (f *fakeSessionsService) MarkNoShow(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error) {
	if f.noShowFn == nil {
		panic("MarkNoShow not configured")
	}
	return f.noShowFn(ctx, trainerID, bookingID)
}

func (f *fakeSessionsService) ProposeReschedule(ctx context.Context, in sessions.ProposeInput) (domain.RescheduleRequest, error) {
	if f.proposeFn == nil {
		panic("ProposeReschedule not configured")
	}
	return f.proposeFn(ctx, in)
}

func (f *fakeSessionsService) RespondReschedule(ctx context.Context, responderID, requestID uuid.UUID, accept bool) (sessions.RespondResult, error) {
	if f.respondFn == nil {
		panic("RespondReschedule not configured")
	}
	return f.respondFn(ctx, responderID, requestID, accept)
}

func (f *fakeSessionsService) CancelReschedule(ctx context.Context, requesterID, requestID uuid.UUID) (domain.RescheduleRequest, error) {
	if f.cancelRRFn == nil {
		panic("CancelReschedule not configured")
	}
	return f.cancelRRFn(ctx, requesterID, requestID)
}

func (f *fakeSessionsService) ListReschedules(ctx context.Context, actorID, bookingID uuid.UUID) ([]domain.RescheduleRequest, error) {
	if f.listRRFn == nil {
		panic("ListReschedules not configured")
	}
	return f.listRRFn(ctx, actorID, bookingID)
}

func (f *fakeSessionsService) ListAwaitingResponse(ctx context.Context, actorID uuid.UUID) ([]domain.RescheduleRequest, error) {
	if f.listAwaitingFn == nil {
		panic("ListAwaitingResponse not configured")
	}
	return f.listAwaitingFn(ctx, actorID)
}

func TestIdempotencyKey_ReadsHeadersAndTrims(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "  abc  "))
	if got := idempotencyKey(ctx); got != "abc" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "abc")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-idempotency-key", "xyz"))
	if got := idempotencyKey(ctx); got != "xyz" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "xyz")
	}
}

func TestCreateBooking_RejectsMalformedInput(t *testing.T) {
	srv := NewSessionsServer(&fakeSessionsService{
		createFn: func(ctx context.Context, in sessions.CreateInput) (domain.Booking, error) {
			t.Fatalf("service should not be called")
			return domain.Booking{}, nil
		},
	}, slog.Default())

	valid := CreateBookingRequest{
		ParticipantID:  uuid.NewString(),
		RelationshipID: uuid.NewString(),
		Date:           "2024-03-01",
		StartTime:      "09:00",
		EndTime:        "10:00",
	}
	tests := []struct {
		name   string
		mutate func(r *CreateBookingRequest)
	}{
		{name: "missing participant", mutate: func(r *CreateBookingRequest) { r.ParticipantID = "" }},
		{name: "bad relationship", mutate: func(r *CreateBookingRequest) { r.RelationshipID = "nope" }},
		{name: "bad date", mutate: func(r *CreateBookingRequest) { r.Date = "03/01/2024" }},
		{name: "bad start", mutate: func(r *CreateBookingRequest) { r.StartTime = "25:00" }},
		{name: "bad mode", mutate: func(r *CreateBookingRequest) { r.Mode = "carrier-pigeon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := srv.CreateBooking(context.Background(), &req)
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
			}
		})
	}

	if _, err := srv.CreateBooking(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("nil request code = %s", status.Code(err))
	}
}

func TestCreateBooking_PassesInputAndIdempotencyKey(t *testing.T) {
	actor := uuid.New()
	rel := uuid.New()
	var got sessions.CreateInput

	srv := NewSessionsServer(&fakeSessionsService{
		createFn: func(ctx context.Context, in sessions.CreateInput) (domain.Booking, error) {
			got = in
			return domain.Booking{
				ID:     uuid.MustParse("00000000-0000-0000-0000-000000000010"),
				Date:   in.Date,
				Start:  in.Start,
				End:    in.End,
				Mode:   in.Mode,
				Status: domain.BookingStatusBooked,
			}, nil
		},
	}, slog.Default())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "k1"))
	resp, err := srv.CreateBooking(ctx, &CreateBookingRequest{
		ParticipantID:  actor.String(),
		RelationshipID: rel.String(),
		Date:           "2024-03-01",
		StartTime:      "09:00",
		EndTime:        "10:30",
		Mode:           "virtual",
	})
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	if got.RequesterID != actor || got.RelationshipID != rel {
		t.Fatalf("ids not passed through: %+v", got)
	}
	if got.Start != 9*60 || got.End != 10*60+30 || got.Mode != domain.SessionModeVirtual {
		t.Fatalf("slot/mode = %s-%s %s", got.Start, got.End, got.Mode)
	}
	if got.IdempotencyKey != "k1" {
		t.Fatalf("idempotency_key = %q, want %q", got.IdempotencyKey, "k1")
	}
	if resp.Booking.StartTime != "09:00" || resp.Booking.EndTime != "10:30" || resp.Booking.Date != "2024-03-01" {
		t.Fatalf("response booking = %+v", resp.Booking)
	}
}

func TestFail_MapsKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
		msg  string
	}{
		{name: "conflict", err: &sessions.Error{Kind: sessions.KindConflict, Msg: "trainer already booked", Role: domain.RoleTrainer}, want: codes.Aborted, msg: "trainer already booked"},
		{name: "not found", err: &sessions.Error{Kind: sessions.KindNotFound, Msg: "booking not found"}, want: codes.NotFound, msg: "booking not found"},
		{name: "unauthorized", err: &sessions.Error{Kind: sessions.KindUnauthorized, Msg: "not a participant of this booking"}, want: codes.PermissionDenied, msg: "not a participant of this booking"},
		{name: "invalid state", err: &sessions.Error{Kind: sessions.KindInvalidState, Msg: "booking is cancelled"}, want: codes.FailedPrecondition, msg: "booking is cancelled"},
		{name: "bad request", err: &sessions.Error{Kind: sessions.KindBadRequest, Msg: "reschedule already pending"}, want: codes.InvalidArgument, msg: "reschedule already pending"},
		{name: "own request", err: &sessions.Error{Kind: sessions.KindBadRequest, Msg: "cannot respond to own request"}, want: codes.InvalidArgument, msg: "cannot respond to own request"},
		{name: "unavailable", err: &sessions.Error{Kind: sessions.KindUnavailable, Msg: "slot is busy, retry"}, want: codes.Unavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{name: "internal", err: errors.New("db down"), want: codes.Internal, msg: "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewSessionsServer(&fakeSessionsService{
				getFn: func(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error) {
					return domain.Booking{}, tt.err
				},
			}, slog.Default())

			_, err := srv.GetBooking(context.Background(), &BookingRequest{
				ParticipantID: uuid.NewString(),
				BookingID:     uuid.NewString(),
			})
			st, _ := status.FromError(err)
			if st.Code() != tt.want {
				t.Fatalf("code = %s, want %s", st.Code(), tt.want)
			}
			if tt.msg != "" && st.Message() != tt.msg {
				t.Fatalf("message = %q, want %q", st.Message(), tt.msg)
			}
		})
	}
}

func TestRespondReschedule_ReturnsRequestAndBooking(t *testing.T) {
	responder := uuid.New()
	requestID := uuid.New()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	srv := NewSessionsServer(&fakeSessionsService{
		respondFn: func(ctx context.Context, gotResponder, gotRequest uuid.UUID, accept bool) (sessions.RespondResult, error) {
			if gotResponder != responder || gotRequest != requestID || !accept {
				t.Fatalf("unexpected args %s %s %v", gotResponder, gotRequest, accept)
			}
			return sessions.RespondResult{
				Request: domain.RescheduleRequest{ID: requestID, Status: domain.RescheduleStatusAccepted, RespondedAt: &now},
				Booking: domain.Booking{ID: uuid.New(), Start: 11 * 60, End: 12 * 60, Status: domain.BookingStatusBooked},
			}, nil
		},
	}, slog.Default())

	resp, err := srv.RespondReschedule(context.Background(), &RespondRescheduleRequest{
		ParticipantID: responder.String(),
		RequestID:     requestID.String(),
		Accept:        true,
	})
	if err != nil {
		t.Fatalf("RespondReschedule error: %v", err)
	}
	if resp.Request.Status != "accepted" || resp.Request.RespondedAt == nil {
		t.Fatalf("request = %+v", resp.Request)
	}
	if resp.Booking == nil || resp.Booking.StartTime != "11:00" {
		t.Fatalf("booking = %+v", resp.Booking)
	}
}

func TestParseListFilter(t *testing.T) {
	f, err := parseListFilter(" Upcoming ", "2024-03-01", "", "booked")
	if err != nil {
		t.Fatalf("parseListFilter error: %v", err)
	}
	if f.Scope != sessions.ScopeUpcoming || f.From == nil || f.To != nil || f.Status == nil || *f.Status != domain.BookingStatusBooked {
		t.Fatalf("filter = %+v", f)
	}

	if _, err := parseListFilter("", "yesterday", "", ""); err == nil {
		t.Fatalf("expected error for bad from")
	}
	if _, err := parseListFilter("", "", "", "lost"); err == nil {
		t.Fatalf("expected error for bad status")
	}
}
