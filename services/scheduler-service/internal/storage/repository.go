package storage

import (
	"context"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository is the scheduler's view of the booking schema: read schedules
// and recurring bookings, write generated sessions.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListActiveRecurringBookings(ctx context.Context) ([]domain.RecurringBooking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, coach_id::text, member_id::text, weekday, start_minute, end_minute,
			start_date, end_date, status, created_at
		FROM recurring_bookings
		WHERE status = $1
		ORDER BY created_at ASC
	`, domain.RecurringActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecurringBooking
	for rows.Next() {
		var rb domain.RecurringBooking
		if err := rows.Scan(&rb.ID, &rb.CoachID, &rb.MemberID, &rb.Weekday, &rb.Start, &rb.End,
			&rb.StartDate, &rb.EndDate, &rb.Status, &rb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rb)
	}
	return out, rows.Err()
}

func (r *Repository) GetRecurringBooking(ctx context.Context, id string) (domain.RecurringBooking, error) {
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

func (r *Repository) ListCoaches(ctx context.Context) ([]domain.Coach, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name
		FROM coaches
		WHERE is_active
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Coach
	for rows.Next() {
		var c domain.Coach
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetSettings(ctx context.Context, coachID string) (domain.CoachSettings, bool, error) {
	var s domain.CoachSettings
	err := r.pool.QueryRow(ctx, `
		SELECT coach_id::text, COALESCE(default_room_id::text, ''), slot_duration_minutes, group_capacity
		FROM coach_settings
		WHERE coach_id = $1
	`, coachID).Scan(&s.CoachID, &s.DefaultRoomID, &s.SlotDurationMins, &s.GroupCapacity)
	if err == pgx.ErrNoRows {
		return domain.CoachSettings{CoachID: coachID}, false, nil
	}
	if err != nil {
		return domain.CoachSettings{}, false, err
	}
	return s, true, nil
}

func (r *Repository) ListWeekly(ctx context.Context, coachID string) ([]domain.WeeklyAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, coach_id::text, weekday, start_minute, end_minute,
			is_individual, is_group, COALESCE(room_id::text, ''), COALESCE(duration_minutes, 0)
		FROM weekly_availability
		WHERE coach_id = $1
		ORDER BY weekday ASC, start_minute ASC
	`, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WeeklyAvailability
	for rows.Next() {
		var w domain.WeeklyAvailability
		if err := rows.Scan(&w.ID, &w.CoachID, &w.Weekday, &w.Start, &w.End,
			&w.Individual, &w.Group, &w.RoomID, &w.DurationMins); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repository) ListAdditions(ctx context.Context, coachID string, from, to time.Time) ([]domain.AvailabilityAddition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, coach_id::text, start_time, end_time,
			is_individual, is_group, COALESCE(room_id::text, ''), COALESCE(reason, '')
		FROM availability_additions
		WHERE coach_id = $1 AND end_time > $2 AND start_time < $3
		ORDER BY start_time ASC
	`, coachID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AvailabilityAddition
	for rows.Next() {
		var a domain.AvailabilityAddition
		if err := rows.Scan(&a.ID, &a.CoachID, &a.Start, &a.End,
			&a.Individual, &a.Group, &a.RoomID, &a.Reason); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) ListBlocks(ctx context.Context, coachID string, from, to time.Time) ([]domain.BlockedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, coach_id::text, start_time, end_time, COALESCE(reason, '')
		FROM blocked_slots
		WHERE coach_id = $1 AND end_time > $2 AND start_time < $3
		ORDER BY start_time ASC
	`, coachID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BlockedSlot
	for rows.Next() {
		var b domain.BlockedSlot
		if err := rows.Scan(&b.ID, &b.CoachID, &b.Start, &b.End, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) ListSessionStarts(ctx context.Context, coachID string, from, to time.Time) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time
		FROM training_sessions
		WHERE coach_id = $1 AND start_time >= $2 AND start_time < $3 AND status <> $4
	`, coachID, from, to, domain.SessionCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	starts := make(map[int64]struct{})
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts[t.Unix()] = struct{}{}
	}
	return starts, rows.Err()
}

// InsertSessions writes generated sessions, letting the partial unique index
// on (coach_id, start_time) swallow anything a concurrent run already wrote.
func (r *Repository) InsertSessions(ctx context.Context, sessions []domain.TrainingSession) (int, error) {
	var inserted int
	for _, s := range sessions {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO training_sessions
				(id, coach_id, room_id, member_id, recurring_booking_id, title, description,
				 session_type, capacity, start_time, end_time, status, is_recurring)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7,
				$8, $9, $10, $11, $12, $13)
			ON CONFLICT DO NOTHING
		`, uuid.NewString(), s.CoachID, s.RoomID, s.MemberID, s.RecurringBookingID, s.Title, s.Description,
			s.Type, s.Capacity, s.Start, s.End, domain.SessionScheduled, s.Recurring)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// CompletePastSessions flips scheduled sessions whose end has passed to
// completed. No-shows stay manual: only a coach can claim one.
func (r *Repository) CompletePastSessions(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE training_sessions
		SET status = $1, updated_at = now()
		WHERE status = $2 AND end_time <= $3
	`, domain.SessionCompleted, domain.SessionScheduled, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
