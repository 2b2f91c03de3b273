package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/store"
)

var (
	trainerID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	clientID  = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	client2ID = uuid.MustParse("00000000-0000-0000-0000-0000000000c2")
	day       = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func booking(trainer, client uuid.UUID, start, end domain.ClockTime) domain.Booking {
	return domain.Booking{
		TrainerID: trainer,
		ClientID:  client,
		Date:      day,
		Start:     start,
		End:       end,
		Mode:      domain.SessionModeInPerson,
		Status:    domain.BookingStatusBooked,
	}
}

func insert(t *testing.T, s *Store, b domain.Booking) domain.Booking {
	t.Helper()
	var out domain.Booking
	err := s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
		var err error
		out, err = tx.InsertBooking(ctx, b)
		return err
	})
	require.NoError(t, err)
	return out
}

func TestCommitRejectsOverlapAsBackstop(t *testing.T) {
	s := New()
	insert(t, s, booking(trainerID, clientID, 9*60, 10*60))

	err := s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
		_, err := tx.InsertBooking(ctx, booking(trainerID, client2ID, 9*60+30, 10*60+30))
		return err
	})
	var cErr *store.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, domain.RoleTrainer, cErr.Role)
	assert.ErrorIs(t, err, store.ErrConflict)

	rows, err := s.ListBookings(context.Background(), store.BookingFilter{ParticipantID: trainerID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCommitReportsClientConflict(t *testing.T) {
	s := New()
	other := uuid.New()
	insert(t, s, booking(other, clientID, 9*60, 10*60))

	err := s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
		_, err := tx.InsertBooking(ctx, booking(trainerID, clientID, 9*60, 10*60))
		return err
	})
	var cErr *store.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, domain.RoleClient, cErr.Role)
}

func TestCommitAllowsTouchingAndInactive(t *testing.T) {
	s := New()
	first := insert(t, s, booking(trainerID, clientID, 9*60, 10*60))
	insert(t, s, booking(trainerID, client2ID, 10*60, 11*60))

	cancelled := booking(trainerID, client2ID, 12*60, 13*60)
	cancelled.Status = domain.BookingStatusCancelled
	insert(t, s, cancelled)
	insert(t, s, booking(trainerID, client2ID, 12*60, 13*60))

	got, err := s.GetBooking(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	s := New()
	boom := errors.New("boom")

	err := s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
		b, err := tx.InsertBooking(ctx, booking(trainerID, clientID, 9*60, 10*60))
		if err != nil {
			return err
		}
		active, err := tx.ListActiveBookings(ctx, domain.RoleTrainer, trainerID, day)
		if err != nil {
			return err
		}
		if len(active) != 1 || active[0].ID != b.ID {
			return errors.New("staged booking not visible inside the transaction")
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := s.ListBookings(context.Background(), store.BookingFilter{ParticipantID: trainerID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCommitRejectsIDInsertedConcurrently(t *testing.T) {
	s := New()
	id := uuid.New()
	other := uuid.MustParse("00000000-0000-0000-0000-0000000000a2")

	staged := make(chan struct{})
	release := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
			b := booking(trainerID, clientID, 9*60, 10*60)
			b.ID = id
			if _, err := tx.InsertBooking(ctx, b); err != nil {
				return err
			}
			close(staged)
			<-release
			return nil
		})
	}()

	<-staged
	winner := booking(other, client2ID, 14*60, 15*60)
	winner.ID = id
	insert(t, s, winner)
	close(release)

	err := <-errc
	require.ErrorIs(t, err, store.ErrDuplicateID)

	got, err := s.GetBooking(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, other, got.TrainerID, "later commit must not overwrite the first")

	err = s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
		_, err := tx.InsertBooking(ctx, winner)
		return err
	})
	assert.ErrorIs(t, err, store.ErrDuplicateID)
}

func TestSinglePendingReschedulePerBooking(t *testing.T) {
	s := New()
	b := insert(t, s, booking(trainerID, clientID, 9*60, 10*60))

	propose := func() error {
		return s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
			_, err := tx.InsertReschedule(ctx, domain.RescheduleRequest{
				BookingID:     b.ID,
				RequestedBy:   clientID,
				ProposedDate:  day,
				ProposedStart: 11 * 60,
				ProposedEnd:   12 * 60,
				Status:        domain.RescheduleStatusPending,
			})
			return err
		})
	}

	require.NoError(t, propose())
	require.ErrorIs(t, propose(), store.ErrPendingReschedule)

	rows, err := s.ListReschedules(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	awaiting, err := s.ListAwaitingResponse(context.Background(), trainerID)
	require.NoError(t, err)
	assert.Len(t, awaiting, 1)

	mine, err := s.ListAwaitingResponse(context.Background(), clientID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestListBookingsOrderingAndFilters(t *testing.T) {
	s := New()
	early := insert(t, s, booking(trainerID, clientID, 8*60, 9*60))
	late := insert(t, s, booking(trainerID, clientID, 15*60, 16*60))
	next := booking(trainerID, clientID, 7*60, 8*60)
	next.Date = day.AddDate(0, 0, 1)
	nextDay := insert(t, s, next)

	desc, err := s.ListBookings(context.Background(), store.BookingFilter{ParticipantID: clientID})
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, []uuid.UUID{nextDay.ID, late.ID, early.ID}, []uuid.UUID{desc[0].ID, desc[1].ID, desc[2].ID})

	from := day.AddDate(0, 0, 1)
	status := domain.BookingStatusBooked
	asc, err := s.ListBookings(context.Background(), store.BookingFilter{
		ParticipantID: trainerID,
		From:          &from,
		Status:        &status,
		Ascending:     true,
	})
	require.NoError(t, err)
	require.Len(t, asc, 1)
	assert.Equal(t, nextDay.ID, asc[0].ID)
}

func TestLockSlotsTimesOut(t *testing.T) {
	s := New(WithLockTimeout(20 * time.Millisecond))
	keys := store.SlotKeys(trainerID, clientID, day)

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
			if err := tx.LockSlots(ctx, keys...); err != nil {
				return err
			}
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding

	err := s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
		return tx.LockSlots(ctx, store.SlotKey{ParticipantID: trainerID, Date: day})
	})
	close(done)
	require.ErrorIs(t, err, store.ErrLockTimeout)
}

func TestLockSlotsIsReentrantWithinTransaction(t *testing.T) {
	s := New(WithLockTimeout(20 * time.Millisecond))
	err := s.InTx(context.Background(), func(ctx context.Context, tx store.SessionTx) error {
		keys := store.SlotKeys(trainerID, clientID, day)
		if err := tx.LockSlots(ctx, keys...); err != nil {
			return err
		}
		return tx.LockSlots(ctx, keys...)
	})
	require.NoError(t, err)
}
