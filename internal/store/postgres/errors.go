package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"peakpartner/backend/internal/domain"
	"peakpartner/backend/internal/store"
)

const (
	constraintTrainerNoOverlap = "session_bookings_trainer_no_overlap"
	constraintClientNoOverlap  = "session_bookings_client_no_overlap"
	indexOnePendingReschedule  = "reschedule_requests_one_pending"
	constraintBookingsPkey     = "session_bookings_pkey"
)

// translateError maps driver errors onto the store sentinels. Exclusion
// violations become the same conflict the proactive check reports.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23P01":
		switch pgErr.ConstraintName {
		case constraintTrainerNoOverlap:
			return &store.ConflictError{Role: domain.RoleTrainer}
		case constraintClientNoOverlap:
			return &store.ConflictError{Role: domain.RoleClient}
		}
		return store.ErrConflict
	case "23505":
		switch pgErr.ConstraintName {
		case indexOnePendingReschedule:
			return store.ErrPendingReschedule
		case constraintBookingsPkey:
			return fmt.Errorf("%w: %s", store.ErrDuplicateID, pgErr.Detail)
		}
	case "55P03", "40P01", "40001":
		return fmt.Errorf("%w: %s", store.ErrLockTimeout, pgErr.Message)
	}
	return err
}
