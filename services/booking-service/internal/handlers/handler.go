package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/services/booking-service/internal/outbox"
)

// availabilityStore is the slice of the availability repository the handlers
// use: coach directory, weekly template, one-off additions and blocks.
type availabilityStore interface {
	ListCoaches(ctx context.Context) ([]domain.Coach, error)
	GetCoach(ctx context.Context, coachID string) (domain.Coach, error)
	GetSettings(ctx context.Context, coachID string) (domain.CoachSettings, bool, error)
	ListWeekly(ctx context.Context, coachID string) ([]domain.WeeklyAvailability, error)
	ReplaceWeekday(ctx context.Context, coachID string, weekday int, slots []domain.WeeklyAvailability) error
	ListAdditions(ctx context.Context, coachID string, from, to time.Time) ([]domain.AvailabilityAddition, error)
	CreateAddition(ctx context.Context, a domain.AvailabilityAddition) (string, error)
	DeleteAddition(ctx context.Context, coachID, id string) error
	ListBlocks(ctx context.Context, coachID string, from, to time.Time) ([]domain.BlockedSlot, error)
	CreateBlock(ctx context.Context, b domain.BlockedSlot) (string, error)
	DeleteBlock(ctx context.Context, coachID, id string) error
}

// sessionStore is the session and booking surface of the storage layer.
type sessionStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateSession(ctx context.Context, tx pgx.Tx, s domain.TrainingSession) (domain.TrainingSession, error)
	InsertSessions(ctx context.Context, sessions []domain.TrainingSession) (int, error)
	GetSession(ctx context.Context, id string) (domain.TrainingSession, error)
	GetSessionForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.TrainingSession, error)
	CountActiveBookings(ctx context.Context, tx pgx.Tx, sessionID string) (int, error)
	CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) (domain.Booking, error)
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	ListBookingsByMember(ctx context.Context, memberID string, from time.Time) ([]domain.Booking, []domain.TrainingSession, error)
	UpdateSessionStatus(ctx context.Context, tx pgx.Tx, id string, status domain.SessionStatus) error
	CancelActiveBookings(ctx context.Context, tx pgx.Tx, sessionID string, status domain.BookingStatus) error
	CancelBooking(ctx context.Context, tx pgx.Tx, bookingID string, status domain.BookingStatus) error
	ListSessionsInRange(ctx context.Context, coachID string, from, to time.Time) ([]domain.TrainingSession, error)
	ListSessionStarts(ctx context.Context, coachID string, from, to time.Time) (map[int64]struct{}, error)
	ListScheduledByCoach(ctx context.Context, coachID string, from time.Time) ([]domain.TrainingSession, error)
}

type recurringStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, rb domain.RecurringBooking) (domain.RecurringBooking, error)
	Get(ctx context.Context, id string) (domain.RecurringBooking, error)
	Cancel(ctx context.Context, tx pgx.Tx, id string, now time.Time, by domain.BookingStatus) error
}

type eventOutbox interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Handler serves the booking API. Member-facing methods live in booking.go
// and recurring.go; coach-facing methods in availability.go, sessions.go and
// conflicts.go.
type Handler struct {
	avail      availabilityStore
	sessions   sessionStore
	recurring  recurringStore
	outboxRepo eventOutbox
	logger     *slog.Logger
	now        func() time.Time
}

func New(avail availabilityStore, sessions sessionStore, recurring recurringStore, outboxRepo eventOutbox, logger *slog.Logger) *Handler {
	return &Handler{
		avail:      avail,
		sessions:   sessions,
		recurring:  recurring,
		outboxRepo: outboxRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

const (
	dateLayout   = "2006-01-02"
	maxRangeDays = 31
)
