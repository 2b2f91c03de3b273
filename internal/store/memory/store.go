// Package memory is an in-process SessionStore. Writes are staged per
// transaction and applied at commit, where the same non-overlap and
// single-pending rules as the Postgres constraints are enforced.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/lock"
	"peakpartner/backend/internal/store"
)

type Store struct {
	slots *lock.KeyedMutex
	rows  *lock.KeyedMutex
	now   func() time.Time

	mu            sync.RWMutex
	relationships map[uuid.UUID]domain.Relationship
	bookings      map[uuid.UUID]domain.Booking
	reschedules   map[uuid.UUID]domain.RescheduleRequest
}

type Option func(*Store)

// WithLockTimeout bounds how long a transaction waits for a slot or row lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.slots = lock.NewKeyedMutex(d)
		s.rows = lock.NewKeyedMutex(d)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		slots:         lock.NewKeyedMutex(0),
		rows:          lock.NewKeyedMutex(0),
		now:           func() time.Time { return time.Now().UTC() },
		relationships: make(map[uuid.UUID]domain.Relationship),
		bookings:      make(map[uuid.UUID]domain.Booking),
		reschedules:   make(map[uuid.UUID]domain.RescheduleRequest),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.SessionStore = (*Store)(nil)

// PutRelationship records a relationship as the connections feature would.
func (s *Store) PutRelationship(rel domain.Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}
	rel.UpdatedAt = now
	s.relationships[rel.ID] = rel
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.SessionTx) error) error {
	tx := &memTx{
		s:           s,
		held:        make(map[string]struct{}),
		bookings:    make(map[uuid.UUID]domain.Booking),
		inserted:    make(map[uuid.UUID]struct{}),
		reschedules: make(map[uuid.UUID]domain.RescheduleRequest),
	}
	defer tx.releaseAll()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) GetRelationship(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.relationships[id]
	if !ok {
		return domain.Relationship{}, store.ErrNotFound
	}
	return rel, nil
}

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context, filter store.BookingFilter) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if b.TrainerID != filter.ParticipantID && b.ClientID != filter.ParticipantID {
			continue
		}
		if filter.From != nil && b.Date.Before(domain.DateOf(*filter.From)) {
			continue
		}
		if filter.To != nil && b.Date.After(domain.DateOf(*filter.To)) {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if filter.Ascending {
			return startsBefore(out[i], out[j])
		}
		return startsBefore(out[j], out[i])
	})
	return out, nil
}

func (s *Store) GetReschedule(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rr, ok := s.reschedules[id]
	if !ok {
		return domain.RescheduleRequest{}, store.ErrNotFound
	}
	return rr, nil
}

func (s *Store) ListReschedules(ctx context.Context, bookingID uuid.UUID) ([]domain.RescheduleRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RescheduleRequest, 0)
	for _, rr := range s.reschedules {
		if rr.BookingID == bookingID {
			out = append(out, rr)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) ListAwaitingResponse(ctx context.Context, participantID uuid.UUID) ([]domain.RescheduleRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RescheduleRequest, 0)
	for _, rr := range s.reschedules {
		if rr.Status != domain.RescheduleStatusPending || rr.RequestedBy == participantID {
			continue
		}
		b, ok := s.bookings[rr.BookingID]
		if !ok {
			continue
		}
		if b.TrainerID == participantID || b.ClientID == participantID {
			out = append(out, rr)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func startsBefore(a, b domain.Booking) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Start < b.Start
}

func sortNewestFirst(rows []domain.RescheduleRequest) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID.String() > rows[j].ID.String()
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
}

// commit re-validates staged writes against committed state under the write
// lock and applies them all, or none.
func (s *Store) commit(tx *memTx) error {
	if len(tx.bookings) == 0 && len(tx.reschedules) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.inserted {
		if _, ok := s.bookings[id]; ok {
			return fmt.Errorf("%w: booking %s", store.ErrDuplicateID, id)
		}
	}

	merged := make(map[uuid.UUID]domain.Booking, len(s.bookings)+len(tx.bookings))
	for id, b := range s.bookings {
		merged[id] = b
	}
	for id, b := range tx.bookings {
		merged[id] = b
	}
	for id := range tx.bookings {
		if err := checkExclusion(merged, merged[id]); err != nil {
			return err
		}
	}

	pending := make(map[uuid.UUID]uuid.UUID)
	for id, rr := range s.reschedules {
		if staged, ok := tx.reschedules[id]; ok {
			rr = staged
		}
		if rr.Status == domain.RescheduleStatusPending {
			pending[rr.BookingID] = id
		}
	}
	for id, rr := range tx.reschedules {
		if rr.Status != domain.RescheduleStatusPending {
			continue
		}
		if other, ok := pending[rr.BookingID]; ok && other != id {
			return store.ErrPendingReschedule
		}
		pending[rr.BookingID] = id
	}

	for id, b := range tx.bookings {
		s.bookings[id] = b
	}
	for id, rr := range tx.reschedules {
		s.reschedules[id] = rr
	}
	return nil
}

func checkExclusion(all map[uuid.UUID]domain.Booking, b domain.Booking) error {
	if !b.Status.Active() {
		return nil
	}
	for id, o := range all {
		if id == b.ID || !o.Status.Active() || !b.Slot().Overlaps(o.Slot()) {
			continue
		}
		if o.TrainerID == b.TrainerID {
			return &store.ConflictError{Role: domain.RoleTrainer}
		}
		if o.ClientID == b.ClientID {
			return &store.ConflictError{Role: domain.RoleClient}
		}
	}
	return nil
}

type memTx struct {
	s        *Store
	held     map[string]struct{}
	releases []func()

	bookings    map[uuid.UUID]domain.Booking
	inserted    map[uuid.UUID]struct{}
	reschedules map[uuid.UUID]domain.RescheduleRequest
}

func (t *memTx) releaseAll() {
	for i := len(t.releases) - 1; i >= 0; i-- {
		t.releases[i]()
	}
	t.releases = nil
}

func (t *memTx) acquire(ctx context.Context, m *lock.KeyedMutex, keys ...string) error {
	want := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := t.held[k]; !ok {
			want = append(want, k)
		}
	}
	if len(want) == 0 {
		return nil
	}
	release, err := m.Acquire(ctx, want...)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", store.ErrLockTimeout, err)
		}
		return err
	}
	for _, k := range want {
		t.held[k] = struct{}{}
	}
	t.releases = append(t.releases, release)
	return nil
}

func (t *memTx) LockSlots(ctx context.Context, keys ...store.SlotKey) error {
	names := make([]string, 0, len(keys))
	for _, k := range store.NormalizeSlotKeys(keys) {
		names = append(names, k.String())
	}
	return t.acquire(ctx, t.s.slots, names...)
}

func (t *memTx) GetRelationship(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
	return t.s.GetRelationship(ctx, id)
}

func (t *memTx) GetBooking(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Booking, error) {
	if forUpdate {
		if err := t.acquire(ctx, t.s.rows, "booking:"+id.String()); err != nil {
			return domain.Booking{}, err
		}
	}
	if b, ok := t.bookings[id]; ok {
		return b, nil
	}
	return t.s.GetBooking(ctx, id)
}

func (t *memTx) ListActiveBookings(ctx context.Context, role domain.Role, participantID uuid.UUID, date time.Time) ([]domain.Booking, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("list active bookings: unknown role %q", role)
	}
	day := domain.DateOf(date)

	t.s.mu.RLock()
	candidates := make(map[uuid.UUID]domain.Booking, len(t.s.bookings))
	for id, b := range t.s.bookings {
		candidates[id] = b
	}
	t.s.mu.RUnlock()
	for id, b := range t.bookings {
		candidates[id] = b
	}

	out := make([]domain.Booking, 0)
	for _, b := range candidates {
		if b.Participant(role) != participantID || !b.Date.Equal(day) || b.Status != domain.BookingStatusBooked {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (t *memTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Booking{}, err
		}
		b.ID = id
	}
	if _, ok := t.bookings[b.ID]; ok {
		return domain.Booking{}, fmt.Errorf("%w: booking %s", store.ErrDuplicateID, b.ID)
	}
	if _, err := t.s.GetBooking(ctx, b.ID); err == nil {
		return domain.Booking{}, fmt.Errorf("%w: booking %s", store.ErrDuplicateID, b.ID)
	}
	now := t.s.now()
	b.Date = domain.DateOf(b.Date)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	t.bookings[b.ID] = b
	t.inserted[b.ID] = struct{}{}
	return b, nil
}

func (t *memTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if _, err := t.GetBooking(ctx, b.ID, false); err != nil {
		return domain.Booking{}, err
	}
	b.Date = domain.DateOf(b.Date)
	b.UpdatedAt = t.s.now()
	t.bookings[b.ID] = b
	return b, nil
}

func (t *memTx) GetReschedule(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.RescheduleRequest, error) {
	if forUpdate {
		if err := t.acquire(ctx, t.s.rows, "reschedule:"+id.String()); err != nil {
			return domain.RescheduleRequest{}, err
		}
	}
	if rr, ok := t.reschedules[id]; ok {
		return rr, nil
	}
	return t.s.GetReschedule(ctx, id)
}

func (t *memTx) ListPendingReschedules(ctx context.Context, bookingID uuid.UUID) ([]domain.RescheduleRequest, error) {
	t.s.mu.RLock()
	candidates := make(map[uuid.UUID]domain.RescheduleRequest)
	for id, rr := range t.s.reschedules {
		if rr.BookingID == bookingID {
			candidates[id] = rr
		}
	}
	t.s.mu.RUnlock()
	for id, rr := range t.reschedules {
		if rr.BookingID == bookingID {
			candidates[id] = rr
		}
	}

	out := make([]domain.RescheduleRequest, 0)
	for id, rr := range candidates {
		if rr.Status != domain.RescheduleStatusPending {
			continue
		}
		if err := t.acquire(ctx, t.s.rows, "reschedule:"+id.String()); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	sortNewestFirst(out)
	return out, nil
}

func (t *memTx) InsertReschedule(ctx context.Context, rr domain.RescheduleRequest) (domain.RescheduleRequest, error) {
	if rr.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.RescheduleRequest{}, err
		}
		rr.ID = id
	}
	rr.ProposedDate = domain.DateOf(rr.ProposedDate)
	if rr.CreatedAt.IsZero() {
		rr.CreatedAt = t.s.now()
	}
	t.reschedules[rr.ID] = rr
	return rr, nil
}

func (t *memTx) UpdateReschedule(ctx context.Context, rr domain.RescheduleRequest) (domain.RescheduleRequest, error) {
	if _, err := t.GetReschedule(ctx, rr.ID, false); err != nil {
		return domain.RescheduleRequest{}, err
	}
	t.reschedules[rr.ID] = rr
	return rr, nil
}
