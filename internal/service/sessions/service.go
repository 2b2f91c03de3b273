// Package sessions books training sessions between a trainer and a client
// and negotiates moving them. Every write checks both participants' calendars
// while holding their slot keys, so two writers can never both pass the check
// for the same participant and date.
package sessions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/lock"
	"peakpartner/backend/internal/store"
)

const maxTextLen = 2000

// Availability is the trainer's yes/no signal for taking a booking in a slot.
type Availability interface {
	AcceptsBookings(ctx context.Context, trainerID uuid.UUID, slot domain.Slot) (bool, error)
}

type AvailabilityFunc func(ctx context.Context, trainerID uuid.UUID, slot domain.Slot) (bool, error)

func (f AvailabilityFunc) AcceptsBookings(ctx context.Context, trainerID uuid.UUID, slot domain.Slot) (bool, error) {
	return f(ctx, trainerID, slot)
}

type alwaysAvailable struct{}

func (alwaysAvailable) AcceptsBookings(context.Context, uuid.UUID, domain.Slot) (bool, error) {
	return true, nil
}

type Service struct {
	store        store.SessionStore
	log          *slog.Logger
	now          func() time.Time
	locker       lock.Locker
	availability Availability

	cancelPendingOnClose bool
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocker adds a lease around each write, taken before the transaction
// starts. The store's own slot locks are still taken inside it.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithAvailability(a Availability) Option {
	return func(s *Service) {
		if a != nil {
			s.availability = a
		}
	}
}

// WithCancelPendingOnClose controls whether cancelling, completing or marking
// a booking as a no-show also cancels its pending reschedule request.
func WithCancelPendingOnClose(on bool) Option {
	return func(s *Service) { s.cancelPendingOnClose = on }
}

func NewService(st store.SessionStore, opts ...Option) *Service {
	s := &Service{
		store:                st,
		log:                  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:                  func() time.Time { return time.Now().UTC() },
		availability:         alwaysAvailable{},
		cancelPendingOnClose: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	RequesterID    uuid.UUID
	RelationshipID uuid.UUID
	Date           time.Time
	Start          domain.ClockTime
	End            domain.ClockTime
	Mode           domain.SessionMode
	Notes          string
	// IdempotencyKey makes a retried create return the booking the first
	// attempt made instead of conflicting with it.
	IdempotencyKey string
}

func (s *Service) CreateBooking(ctx context.Context, in CreateInput) (domain.Booking, error) {
	if in.RequesterID == uuid.Nil {
		return domain.Booking{}, badRequest("requester_id is required")
	}
	if in.RelationshipID == uuid.Nil {
		return domain.Booking{}, badRequest("relationship_id is required")
	}
	slot, err := domain.NewSlot(in.Date, in.Start, in.End)
	if err != nil {
		return domain.Booking{}, badRequest(err.Error())
	}
	mode := in.Mode
	if mode == "" {
		mode = domain.SessionModeInPerson
	}
	if _, err := domain.ParseSessionMode(string(mode)); err != nil {
		return domain.Booking{}, badRequest(err.Error())
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxTextLen {
		return domain.Booking{}, badRequest("notes too long")
	}

	var id uuid.UUID
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Booking{}, badRequest("idempotency_key too long")
		}
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("peakpartner:create_booking:"+in.RequesterID.String()+":"+key))
	}

	rel, err := engaged(ctx, s.store, in.RelationshipID)
	if err != nil {
		return domain.Booking{}, err
	}
	if _, ok := rel.RoleOf(in.RequesterID); !ok {
		return domain.Booking{}, unauthorized("not a participant of this relationship")
	}
	if err := s.checkAvailability(ctx, rel.TrainerID, slot); err != nil {
		return domain.Booking{}, err
	}

	var out domain.Booking
	err = s.withLease(ctx, store.SlotKeys(rel.TrainerID, rel.ClientID, slot.Date), func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx store.SessionTx) error {
			rel, err := engaged(ctx, tx, in.RelationshipID)
			if err != nil {
				return err
			}
			if err := tx.LockSlots(ctx, store.SlotKeys(rel.TrainerID, rel.ClientID, slot.Date)...); err != nil {
				return err
			}

			if id != uuid.Nil {
				prev, err := tx.GetBooking(ctx, id, false)
				switch {
				case err == nil:
					if prev.RelationshipID != rel.ID {
						return badRequest("idempotency_key already used")
					}
					out = prev
					return nil
				case !isNotFound(err):
					return err
				}
			}

			if err := checkSlot(ctx, tx, rel.TrainerID, rel.ClientID, slot, uuid.Nil); err != nil {
				return err
			}

			b, err := tx.InsertBooking(ctx, domain.Booking{
				ID:             id,
				RelationshipID: rel.ID,
				TrainerID:      rel.TrainerID,
				ClientID:       rel.ClientID,
				Date:           slot.Date,
				Start:          slot.Start,
				End:            slot.End,
				Mode:           mode,
				Status:         domain.BookingStatusBooked,
				Notes:          notes,
			})
			if err != nil {
				return err
			}
			out = b
			return nil
		})
	})
	if errors.Is(err, store.ErrDuplicateID) {
		// A concurrent create with the same key committed first.
		if prev, gerr := s.store.GetBooking(ctx, id); gerr == nil && prev.RelationshipID == in.RelationshipID {
			return prev, nil
		}
	}
	if err != nil {
		return domain.Booking{}, translate(err, "relationship not found")
	}
	return out, nil
}

func (s *Service) CancelBooking(ctx context.Context, requesterID, bookingID uuid.UUID, reason string) (domain.Booking, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxTextLen {
		return domain.Booking{}, badRequest("reason too long")
	}
	return s.close(ctx, bookingID, func(b *domain.Booking) error {
		if _, ok := b.RoleOf(requesterID); !ok {
			return unauthorized("not a participant of this booking")
		}
		if !b.Status.CanTransitionTo(domain.BookingStatusCancelled) {
			return invalidState("booking is " + string(b.Status))
		}
		by := requesterID
		b.Status = domain.BookingStatusCancelled
		b.CancelReason = reason
		b.CancelledBy = &by
		return nil
	})
}

func (s *Service) CompleteBooking(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error) {
	return s.close(ctx, bookingID, trainerOnly(trainerID, domain.BookingStatusCompleted))
}

func (s *Service) MarkNoShow(ctx context.Context, trainerID, bookingID uuid.UUID) (domain.Booking, error) {
	return s.close(ctx, bookingID, trainerOnly(trainerID, domain.BookingStatusNoShow))
}

func trainerOnly(trainerID uuid.UUID, next domain.BookingStatus) func(b *domain.Booking) error {
	return func(b *domain.Booking) error {
		role, ok := b.RoleOf(trainerID)
		if !ok {
			return unauthorized("not a participant of this booking")
		}
		if role != domain.RoleTrainer {
			return unauthorized("only the trainer can mark a booking " + string(next))
		}
		if !b.Status.CanTransitionTo(next) {
			return invalidState("booking is " + string(b.Status))
		}
		b.Status = next
		return nil
	}
}

// close moves a booked booking to a terminal status under its row lock and,
// when configured, cancels the pending reschedule in the same transaction.
func (s *Service) close(ctx context.Context, bookingID uuid.UUID, mutate func(b *domain.Booking) error) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, badRequest("booking_id is required")
	}

	var out domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.SessionTx) error {
		b, err := tx.GetBooking(ctx, bookingID, true)
		if err != nil {
			return err
		}
		if err := mutate(&b); err != nil {
			return err
		}
		updated, err := tx.UpdateBooking(ctx, b)
		if err != nil {
			return err
		}
		if s.cancelPendingOnClose {
			if err := s.cancelPending(ctx, tx, updated.ID); err != nil {
				return err
			}
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Booking{}, translate(err, "booking not found")
	}
	return out, nil
}

func (s *Service) cancelPending(ctx context.Context, tx store.SessionTx, bookingID uuid.UUID) error {
	pending, err := tx.ListPendingReschedules(ctx, bookingID)
	if err != nil {
		return err
	}
	now := s.now()
	for _, rr := range pending {
		rr.Status = domain.RescheduleStatusCancelled
		rr.RespondedAt = &now
		if _, err := tx.UpdateReschedule(ctx, rr); err != nil {
			return err
		}
		s.log.Info("pending reschedule closed with booking",
			slog.String("booking_id", bookingID.String()),
			slog.String("reschedule_id", rr.ID.String()),
		)
	}
	return nil
}

// applyReschedule moves b to slot. The caller holds b's row lock and the slot
// keys for both participants on slot.Date.
func (s *Service) applyReschedule(ctx context.Context, tx store.SessionTx, b domain.Booking, slot domain.Slot) (domain.Booking, error) {
	if b.Status != domain.BookingStatusBooked {
		return domain.Booking{}, invalidState("booking is " + string(b.Status))
	}
	if err := checkSlot(ctx, tx, b.TrainerID, b.ClientID, slot, b.ID); err != nil {
		return domain.Booking{}, err
	}
	b.Date = slot.Date
	b.Start = slot.Start
	b.End = slot.End
	return tx.UpdateBooking(ctx, b)
}

func (s *Service) GetBooking(ctx context.Context, actorID, bookingID uuid.UUID) (domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, translate(err, "booking not found")
	}
	if _, ok := b.RoleOf(actorID); !ok {
		return domain.Booking{}, unauthorized("not a participant of this booking")
	}
	return b, nil
}

type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeUpcoming Scope = "upcoming"
)

type ListFilter struct {
	Scope  Scope
	From   *time.Time
	To     *time.Time
	Status *domain.BookingStatus
}

// ListBookings returns the actor's bookings. The upcoming scope keeps booked
// sessions that have not started yet, soonest first; otherwise the newest
// date comes first.
func (s *Service) ListBookings(ctx context.Context, actorID uuid.UUID, f ListFilter) ([]domain.Booking, error) {
	if actorID == uuid.Nil {
		return nil, badRequest("participant_id is required")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, badRequest("to must not be before from")
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, badRequest("unknown status")
	}

	filter := store.BookingFilter{ParticipantID: actorID, From: f.From, To: f.To, Status: f.Status}
	switch f.Scope {
	case "", ScopeAll:
	case ScopeUpcoming:
		now := s.now()
		today := domain.DateOf(now)
		if filter.From == nil || filter.From.Before(today) {
			filter.From = &today
		}
		booked := domain.BookingStatusBooked
		filter.Status = &booked
		filter.Ascending = true
	default:
		return nil, badRequest("unknown scope")
	}

	rows, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, translate(err, "booking not found")
	}
	if f.Scope != ScopeUpcoming {
		return rows, nil
	}

	now := s.now()
	out := rows[:0]
	for _, b := range rows {
		if notStarted(b, now) {
			out = append(out, b)
		}
	}
	return out, nil
}

// NextBooking returns the actor's soonest booked session that has not started.
func (s *Service) NextBooking(ctx context.Context, actorID uuid.UUID) (domain.Booking, error) {
	rows, err := s.ListBookings(ctx, actorID, ListFilter{Scope: ScopeUpcoming})
	if err != nil {
		return domain.Booking{}, err
	}
	if len(rows) == 0 {
		return domain.Booking{}, notFound("no upcoming booking")
	}
	return rows[0], nil
}

func notStarted(b domain.Booking, now time.Time) bool {
	today := domain.DateOf(now)
	if b.Date.After(today) {
		return true
	}
	if b.Date.Before(today) {
		return false
	}
	return int(b.Start) >= now.Hour()*60+now.Minute()
}

func (s *Service) checkAvailability(ctx context.Context, trainerID uuid.UUID, slot domain.Slot) error {
	ok, err := s.availability.AcceptsBookings(ctx, trainerID, slot)
	if err != nil {
		return err
	}
	if !ok {
		return invalidState("trainer is not accepting bookings")
	}
	return nil
}

// withLease runs fn while holding the optional distributed lease on keys.
func (s *Service) withLease(ctx context.Context, keys []store.SlotKey, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
	}
	release, err := s.locker.Acquire(ctx, names...)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
