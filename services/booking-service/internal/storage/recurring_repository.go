package storage

import (
	"context"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type RecurringRepository struct {
	pool *db.Pool
}

func NewRecurringRepository(pool *db.Pool) *RecurringRepository {
	return &RecurringRepository{pool: pool}
}

func (r *RecurringRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *RecurringRepository) Create(ctx context.Context, tx pgx.Tx, rb domain.RecurringBooking) (domain.RecurringBooking, error) {
	rb.ID = uuid.NewString()
	rb.Status = domain.RecurringActive
	err := tx.QueryRow(ctx, `
		INSERT INTO recurring_bookings
			(id, coach_id, member_id, weekday, start_minute, end_minute, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, rb.ID, rb.CoachID, rb.MemberID, rb.Weekday, int(rb.Start), int(rb.End),
		rb.StartDate, rb.EndDate, rb.Status).Scan(&rb.CreatedAt)
	if err != nil {
		return domain.RecurringBooking{}, err
	}
	return rb, nil
}

func (r *RecurringRepository) Get(ctx context.Context, id string) (domain.RecurringBooking, error) {
	var rb domain.RecurringBooking
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, coach_id::text, member_id::text, weekday, start_minute, end_minute,
			start_date, end_date, status, created_at
		FROM recurring_bookings
		WHERE id = $1
	`, id).Scan(&rb.ID, &rb.CoachID, &rb.MemberID, &rb.Weekday, &rb.Start, &rb.End,
		&rb.StartDate, &rb.EndDate, &rb.Status, &rb.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.RecurringBooking{}, domain.ErrNotFound
	}
	return rb, err
}

// Cancel deactivates the recurring booking and cancels its generated sessions
// starting at or after now, plus their bookings; past occurrences keep their history.
func (r *RecurringRepository) Cancel(ctx context.Context, tx pgx.Tx, id string, now time.Time, by domain.BookingStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE recurring_bookings
		SET status = $2
		WHERE id = $1 AND status = $3
	`, id, domain.RecurringCancelled, domain.RecurringActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $3, cancelled_at = now()
		WHERE status = $4 AND session_id IN (
			SELECT id FROM training_sessions
			WHERE recurring_booking_id = $1 AND start_time >= $2 AND status = $5
		)
	`, id, now, by, domain.BookingConfirmed, domain.SessionScheduled); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE training_sessions
		SET status = $3, updated_at = now()
		WHERE recurring_booking_id = $1 AND start_time >= $2 AND status = $4
	`, id, now, domain.SessionCancelled, domain.SessionScheduled)
	return err
}
