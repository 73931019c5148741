package storage

import (
	"context"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `
	id::text, coach_id::text, COALESCE(room_id::text, ''), COALESCE(member_id::text, ''),
	COALESCE(recurring_booking_id::text, ''), COALESCE(title, ''), COALESCE(description, ''),
	session_type, capacity, start_time, end_time, status, is_recurring, created_at
`

// SessionRepository owns training sessions and their bookings. Writes that
// must be atomic with a capacity or conflict check run inside a caller-held
// transaction.
type SessionRepository struct {
	pool *db.Pool
}

func NewSessionRepository(pool *db.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func scanSession(row pgx.Row) (domain.TrainingSession, error) {
	var s domain.TrainingSession
	err := row.Scan(&s.ID, &s.CoachID, &s.RoomID, &s.MemberID,
		&s.RecurringBookingID, &s.Title, &s.Description,
		&s.Type, &s.Capacity, &s.Start, &s.End, &s.Status, &s.Recurring, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.TrainingSession{}, domain.ErrNotFound
	}
	return s, err
}

// CreateSession inserts a new session inside tx. The partial unique index on
// (coach_id, start_time) for non-cancelled rows turns a double-book race into
// domain.ErrConflict.
func (r *SessionRepository) CreateSession(ctx context.Context, tx pgx.Tx, s domain.TrainingSession) (domain.TrainingSession, error) {
	s.ID = uuid.NewString()
	if s.Status == "" {
		s.Status = domain.SessionScheduled
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO training_sessions
			(id, coach_id, room_id, member_id, recurring_booking_id, title, description,
			 session_type, capacity, start_time, end_time, status, is_recurring)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7,
			$8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`, s.ID, s.CoachID, s.RoomID, s.MemberID, s.RecurringBookingID, s.Title, s.Description,
		s.Type, s.Capacity, s.Start, s.End, s.Status, s.Recurring).Scan(&s.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return domain.TrainingSession{}, domain.ErrConflict
		}
		return domain.TrainingSession{}, err
	}
	return s, nil
}

// InsertSessions bulk-inserts generated sessions, silently skipping rows whose
// (coach_id, start_time) already exists. Returns the number actually written.
func (r *SessionRepository) InsertSessions(ctx context.Context, sessions []domain.TrainingSession) (int, error) {
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

func (r *SessionRepository) GetSession(ctx context.Context, id string) (domain.TrainingSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM training_sessions
		WHERE id = $1
	`, id))
}

// GetSessionForUpdate locks the session row for the duration of tx so a
// concurrent booking on the same GROUP session serializes behind it.
func (r *SessionRepository) GetSessionForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.TrainingSession, error) {
	return scanSession(tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM training_sessions
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (r *SessionRepository) CountActiveBookings(ctx context.Context, tx pgx.Tx, sessionID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE session_id = $1 AND status = $2
	`, sessionID, domain.BookingConfirmed).Scan(&n)
	return n, err
}

func (r *SessionRepository) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) (domain.Booking, error) {
	b.ID = uuid.NewString()
	if b.Status == "" {
		b.Status = domain.BookingConfirmed
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings (id, session_id, member_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, b.ID, b.SessionID, b.MemberID, b.Status).Scan(&b.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return domain.Booking{}, domain.ErrConflict
		}
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *SessionRepository) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	var b domain.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, session_id::text, member_id::text, status, created_at, cancelled_at
		FROM bookings
		WHERE id = $1
	`, id).Scan(&b.ID, &b.SessionID, &b.MemberID, &b.Status, &b.CreatedAt, &b.CancelledAt)
	if err == pgx.ErrNoRows {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func (r *SessionRepository) ListBookingsByMember(ctx context.Context, memberID string, from time.Time) ([]domain.Booking, []domain.TrainingSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id::text, b.session_id::text, b.member_id::text, b.status, b.created_at, b.cancelled_at,
			s.id::text, s.coach_id::text, COALESCE(s.room_id::text, ''), COALESCE(s.member_id::text, ''),
			COALESCE(s.recurring_booking_id::text, ''), COALESCE(s.title, ''), COALESCE(s.description, ''),
			s.session_type, s.capacity, s.start_time, s.end_time, s.status, s.is_recurring, s.created_at
		FROM bookings b
		JOIN training_sessions s ON s.id = b.session_id
		WHERE b.member_id = $1 AND s.start_time >= $2
		ORDER BY s.start_time ASC
	`, memberID, from)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	var sessions []domain.TrainingSession
	for rows.Next() {
		var b domain.Booking
		var s domain.TrainingSession
		if err := rows.Scan(&b.ID, &b.SessionID, &b.MemberID, &b.Status, &b.CreatedAt, &b.CancelledAt,
			&s.ID, &s.CoachID, &s.RoomID, &s.MemberID,
			&s.RecurringBookingID, &s.Title, &s.Description,
			&s.Type, &s.Capacity, &s.Start, &s.End, &s.Status, &s.Recurring, &s.CreatedAt); err != nil {
			return nil, nil, err
		}
		bookings = append(bookings, b)
		sessions = append(sessions, s)
	}
	return bookings, sessions, rows.Err()
}

// UpdateSessionStatus writes the new status inside tx. Transition legality is
// checked by the caller against the current locked row.
func (r *SessionRepository) UpdateSessionStatus(ctx context.Context, tx pgx.Tx, id string, status domain.SessionStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE training_sessions
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CancelActiveBookings marks every confirmed booking on the session cancelled.
func (r *SessionRepository) CancelActiveBookings(ctx context.Context, tx pgx.Tx, sessionID string, status domain.BookingStatus) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2, cancelled_at = now()
		WHERE session_id = $1 AND status = $3
	`, sessionID, status, domain.BookingConfirmed)
	return err
}

func (r *SessionRepository) CancelBooking(ctx context.Context, tx pgx.Tx, bookingID string, status domain.BookingStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2, cancelled_at = now()
		WHERE id = $1 AND status = $3
	`, bookingID, status, domain.BookingConfirmed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) ListSessionsInRange(ctx context.Context, coachID string, from, to time.Time) ([]domain.TrainingSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM training_sessions
		WHERE coach_id = $1 AND end_time > $2 AND start_time < $3
		ORDER BY start_time ASC
	`, coachID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListSessionStarts returns the unix start times of non-cancelled sessions in
// range, the shape the projector and planners dedupe against.
func (r *SessionRepository) ListSessionStarts(ctx context.Context, coachID string, from, to time.Time) (map[int64]struct{}, error) {
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

func (r *SessionRepository) ListScheduledByCoach(ctx context.Context, coachID string, from time.Time) ([]domain.TrainingSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM training_sessions
		WHERE coach_id = $1 AND start_time >= $2 AND status = $3
		ORDER BY start_time ASC
	`, coachID, from, domain.SessionScheduled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]domain.TrainingSession, error) {
	var out []domain.TrainingSession
	for rows.Next() {
		var s domain.TrainingSession
		if err := rows.Scan(&s.ID, &s.CoachID, &s.RoomID, &s.MemberID,
			&s.RecurringBookingID, &s.Title, &s.Description,
			&s.Type, &s.Capacity, &s.Start, &s.End, &s.Status, &s.Recurring, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
