package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/store"
)

type SessionRepo struct {
	db          *bun.DB
	lockTimeout time.Duration
}

// NewSessionRepo returns a repository whose transactions give up waiting for
// a lock after lockTimeout. Zero leaves the server default in place.
func NewSessionRepo(db *bun.DB, lockTimeout time.Duration) *SessionRepo {
	return &SessionRepo{db: db, lockTimeout: lockTimeout}
}

var _ store.SessionStore = (*SessionRepo)(nil)

type sessionTx struct {
	tx bun.Tx
}

func (r *SessionRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx store.SessionTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if r.lockTimeout > 0 {
			ms := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
			if _, err := tx.NewRaw("SELECT set_config('lock_timeout', ?, true)", ms).Exec(ctx); err != nil {
				return err
			}
		}
		return fn(ctx, sessionTx{tx: tx})
	})
	return translateError(err)
}

func (r *SessionRepo) GetRelationship(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
	var rel domain.Relationship
	err := r.db.NewSelect().Model(&rel).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Relationship{}, translateError(err)
	}
	return rel, nil
}

func (r *SessionRepo) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().Model(&b).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Booking{}, translateError(err)
	}
	return b, nil
}

func (r *SessionRepo) ListBookings(ctx context.Context, filter store.BookingFilter) ([]domain.Booking, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().
		Model(&rows).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("trainer_id = ?", filter.ParticipantID).WhereOr("client_id = ?", filter.ParticipantID)
		})
	if filter.From != nil {
		q = q.Where("session_date >= ?", filter.From.Format(domain.DateLayout))
	}
	if filter.To != nil {
		q = q.Where("session_date <= ?", filter.To.Format(domain.DateLayout))
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Ascending {
		q = q.OrderExpr("session_date ASC, start_minute ASC")
	} else {
		q = q.OrderExpr("session_date DESC, start_minute DESC")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SessionRepo) GetReschedule(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error) {
	var rr domain.RescheduleRequest
	err := r.db.NewSelect().Model(&rr).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.RescheduleRequest{}, translateError(err)
	}
	return rr, nil
}

func (r *SessionRepo) ListReschedules(ctx context.Context, bookingID uuid.UUID) ([]domain.RescheduleRequest, error) {
	var rows []domain.RescheduleRequest
	err := r.db.NewSelect().
		Model(&rows).
		Where("booking_id = ?", bookingID).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SessionRepo) ListAwaitingResponse(ctx context.Context, participantID uuid.UUID) ([]domain.RescheduleRequest, error) {
	var rows []domain.RescheduleRequest
	err := r.db.NewSelect().
		Model(&rows).
		Join("JOIN session_bookings AS sb ON sb.id = rr.booking_id").
		Where("rr.status = ?", domain.RescheduleStatusPending).
		Where("(sb.trainer_id = ? OR sb.client_id = ?)", participantID, participantID).
		Where("rr.requested_by <> ?", participantID).
		OrderExpr("rr.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LockSlots takes a transaction-scoped advisory lock per key. Keys are
// normalized first so every writer acquires them in the same order.
func (t sessionTx) LockSlots(ctx context.Context, keys ...store.SlotKey) error {
	for _, k := range store.NormalizeSlotKeys(keys) {
		if _, err := t.tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", k.String()).Exec(ctx); err != nil {
			return translateError(err)
		}
	}
	return nil
}

func (t sessionTx) GetRelationship(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
	var rel domain.Relationship
	err := t.tx.NewSelect().Model(&rel).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Relationship{}, translateError(err)
	}
	return rel, nil
}

func (t sessionTx) GetBooking(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Booking, error) {
	var b domain.Booking
	q := t.tx.NewSelect().Model(&b).Where("id = ?", id).Limit(1)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Booking{}, translateError(err)
	}
	return b, nil
}

func (t sessionTx) ListActiveBookings(ctx context.Context, role domain.Role, participantID uuid.UUID, date time.Time) ([]domain.Booking, error) {
	var column string
	switch role {
	case domain.RoleTrainer:
		column = "trainer_id"
	case domain.RoleClient:
		column = "client_id"
	default:
		return nil, fmt.Errorf("list active bookings: unknown role %q", role)
	}

	var rows []domain.Booking
	err := t.tx.NewSelect().
		Model(&rows).
		Where("? = ?", bun.Ident(column), participantID).
		Where("session_date = ?", domain.DateOf(date).Format(domain.DateLayout)).
		Where("status = ?", domain.BookingStatusBooked).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (t sessionTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	m.Date = domain.DateOf(b.Date)
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, translateError(err)
	}
	return m, nil
}

func (t sessionTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	m.Date = domain.DateOf(b.Date)
	res, err := t.tx.NewUpdate().Model(&m).WherePK().Exec(ctx)
	if err != nil {
		return domain.Booking{}, translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return m, nil
}

func (t sessionTx) GetReschedule(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.RescheduleRequest, error) {
	var rr domain.RescheduleRequest
	q := t.tx.NewSelect().Model(&rr).Where("id = ?", id).Limit(1)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.RescheduleRequest{}, translateError(err)
	}
	return rr, nil
}

func (t sessionTx) ListPendingReschedules(ctx context.Context, bookingID uuid.UUID) ([]domain.RescheduleRequest, error) {
	var rows []domain.RescheduleRequest
	err := t.tx.NewSelect().
		Model(&rows).
		Where("booking_id = ?", bookingID).
		Where("status = ?", domain.RescheduleStatusPending).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (t sessionTx) InsertReschedule(ctx context.Context, r domain.RescheduleRequest) (domain.RescheduleRequest, error) {
	m := r
	m.ProposedDate = domain.DateOf(r.ProposedDate)
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.RescheduleRequest{}, translateError(err)
	}
	return m, nil
}

func (t sessionTx) UpdateReschedule(ctx context.Context, r domain.RescheduleRequest) (domain.RescheduleRequest, error) {
	m := r
	res, err := t.tx.NewUpdate().Model(&m).WherePK().Exec(ctx)
	if err != nil {
		return domain.RescheduleRequest{}, translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.RescheduleRequest{}, err
	}
	if affected == 0 {
		return domain.RescheduleRequest{}, store.ErrNotFound
	}
	return m, nil
}
