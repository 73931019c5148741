package storage

import (
	"context"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AvailabilityRepository owns the coach-side schedule data: weekly template
// rows, one-off additions, blocks, and per-coach settings.
type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

func (r *AvailabilityRepository) ListCoaches(ctx context.Context) ([]domain.Coach, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name
		FROM coaches
		WHERE is_active
		ORDER BY name ASC
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

func (r *AvailabilityRepository) GetCoach(ctx context.Context, coachID string) (domain.Coach, error) {
	var c domain.Coach
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name
		FROM coaches
		WHERE id = $1
	`, coachID).Scan(&c.ID, &c.Name)
	if err == pgx.ErrNoRows {
		return domain.Coach{}, domain.ErrNotFound
	}
	return c, err
}

func (r *AvailabilityRepository) GetSettings(ctx context.Context, coachID string) (domain.CoachSettings, bool, error) {
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

func (r *AvailabilityRepository) ListWeekly(ctx context.Context, coachID string) ([]domain.WeeklyAvailability, error) {
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

// ReplaceWeekday swaps out every template row for one weekday in a single
// transaction ("replace all slots for day X").
func (r *AvailabilityRepository) ReplaceWeekday(ctx context.Context, coachID string, weekday int, slots []domain.WeeklyAvailability) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM weekly_availability
		WHERE coach_id = $1 AND weekday = $2
	`, coachID, weekday); err != nil {
		return err
	}

	for _, s := range slots {
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_availability
				(id, coach_id, weekday, start_minute, end_minute, is_individual, is_group, room_id, duration_minutes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, 0))
		`, uuid.NewString(), coachID, weekday, int(s.Start), int(s.End),
			s.Individual, s.Group, s.RoomID, s.DurationMins); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *AvailabilityRepository) ListAdditions(ctx context.Context, coachID string, from, to time.Time) ([]domain.AvailabilityAddition, error) {
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

func (r *AvailabilityRepository) CreateAddition(ctx context.Context, a domain.AvailabilityAddition) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_additions
			(id, coach_id, start_time, end_time, is_individual, is_group, room_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
	`, id, a.CoachID, a.Start, a.End, a.Individual, a.Group, a.RoomID, a.Reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AvailabilityRepository) DeleteAddition(ctx context.Context, coachID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_additions
		WHERE id = $1 AND coach_id = $2
	`, id, coachID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AvailabilityRepository) ListBlocks(ctx context.Context, coachID string, from, to time.Time) ([]domain.BlockedSlot, error) {
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

func (r *AvailabilityRepository) CreateBlock(ctx context.Context, b domain.BlockedSlot) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_slots (id, coach_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, id, b.CoachID, b.Start, b.End, b.Reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AvailabilityRepository) DeleteBlock(ctx context.Context, coachID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocked_slots
		WHERE id = $1 AND coach_id = $2
	`, id, coachID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
