package generate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/schedule"
	"github.com/coachbook/coachbook/internal/timegrid"
)

// Store is the persistence surface the materializer works against.
type Store interface {
	ListActiveRecurringBookings(ctx context.Context) ([]domain.RecurringBooking, error)
	GetRecurringBooking(ctx context.Context, id string) (domain.RecurringBooking, error)
	ListCoaches(ctx context.Context) ([]domain.Coach, error)
	GetSettings(ctx context.Context, coachID string) (domain.CoachSettings, bool, error)
	ListWeekly(ctx context.Context, coachID string) ([]domain.WeeklyAvailability, error)
	ListAdditions(ctx context.Context, coachID string, from, to time.Time) ([]domain.AvailabilityAddition, error)
	ListBlocks(ctx context.Context, coachID string, from, to time.Time) ([]domain.BlockedSlot, error)
	ListSessionStarts(ctx context.Context, coachID string, from, to time.Time) (map[int64]struct{}, error)
	InsertSessions(ctx context.Context, sessions []domain.TrainingSession) (int, error)
	CompletePastSessions(ctx context.Context, before time.Time) (int, error)
}

// Result reports one generation run.
type Result struct {
	TotalGenerated           int `json:"total_generated"`
	FromRecurringBookings    int `json:"from_recurring_bookings"`
	FromAvailabilityTemplate int `json:"from_availability_template"`
	MarkedCompleted          int `json:"marked_completed"`
	SkippedNoRoom            int `json:"skipped_no_room"`
}

// Materializer turns recurring bookings and group-flagged template windows
// into concrete training sessions up to a rolling horizon. Runs are
// idempotent: sessions that already exist at a start time are skipped here
// and again by the unique index on insert.
type Materializer struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewMaterializer(store Store, logger *slog.Logger) *Materializer {
	return &Materializer{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// coachData is everything coach-scoped a run needs, loaded once per coach.
type coachData struct {
	settings  domain.CoachSettings
	weekly    []domain.WeeklyAvailability
	additions []domain.AvailabilityAddition
	blocks    []domain.BlockedSlot
	existing  map[int64]struct{}
}

func (m *Materializer) loadCoach(ctx context.Context, coachID string, from, to time.Time) (*coachData, error) {
	settings, _, err := m.store.GetSettings(ctx, coachID)
	if err != nil {
		return nil, err
	}
	weekly, err := m.store.ListWeekly(ctx, coachID)
	if err != nil {
		return nil, err
	}
	additions, err := m.store.ListAdditions(ctx, coachID, from, to)
	if err != nil {
		return nil, err
	}
	blocks, err := m.store.ListBlocks(ctx, coachID, from, to)
	if err != nil {
		return nil, err
	}
	existing, err := m.store.ListSessionStarts(ctx, coachID, from, to)
	if err != nil {
		return nil, err
	}
	return &coachData{
		settings:  settings,
		weekly:    weekly,
		additions: additions,
		blocks:    blocks,
		existing:  existing,
	}, nil
}

// GenerateAll runs a full generation pass: complete past sessions, extend
// every active recurring booking, then materialize group classes from the
// templates. A failure on one booking or coach is logged and skipped so the
// rest of the run proceeds.
func (m *Materializer) GenerateAll(ctx context.Context, weeksAhead int) (Result, error) {
	if weeksAhead <= 0 {
		weeksAhead = 6
	}
	now := m.now()
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, weeksAhead*7)

	var res Result
	completed, err := m.store.CompletePastSessions(ctx, now)
	if err != nil {
		return res, err
	}
	res.MarkedCompleted = completed

	bookings, err := m.store.ListActiveRecurringBookings(ctx)
	if err != nil {
		return res, err
	}

	cache := map[string]*coachData{}
	coachOf := func(coachID string) (*coachData, error) {
		if data, ok := cache[coachID]; ok {
			return data, nil
		}
		data, err := m.loadCoach(ctx, coachID, from, to)
		if err != nil {
			return nil, err
		}
		cache[coachID] = data
		return data, nil
	}

	for _, rb := range bookings {
		data, err := coachOf(rb.CoachID)
		if err != nil {
			m.logger.Error("coach data load failed", "coach_id", rb.CoachID, "err", err)
			continue
		}
		n, err := m.generateForBooking(ctx, rb, data, from, to, now)
		if err != nil {
			var cfgErr *domain.ConfigurationError
			if errors.As(err, &cfgErr) {
				m.logger.Warn("recurring booking skipped", "recurring_booking_id", rb.ID, "reason", cfgErr.Reason)
				res.SkippedNoRoom++
				continue
			}
			m.logger.Error("recurring booking generation failed", "recurring_booking_id", rb.ID, "err", err)
			continue
		}
		res.FromRecurringBookings += n
	}

	coaches, err := m.store.ListCoaches(ctx)
	if err != nil {
		return res, err
	}
	for _, coach := range coaches {
		data, err := coachOf(coach.ID)
		if err != nil {
			m.logger.Error("coach data load failed", "coach_id", coach.ID, "err", err)
			continue
		}
		n, skipped, err := m.generateTemplateClasses(ctx, coach.ID, data, from, to, now)
		if err != nil {
			m.logger.Error("template generation failed", "coach_id", coach.ID, "err", err)
			continue
		}
		res.FromAvailabilityTemplate += n
		res.SkippedNoRoom += skipped
	}

	res.TotalGenerated = res.FromRecurringBookings + res.FromAvailabilityTemplate
	return res, nil
}

// GenerateForBooking extends a single recurring booking, the event-driven
// path taken right after a member registers one.
func (m *Materializer) GenerateForBooking(ctx context.Context, recurringBookingID string, weeksAhead int) (int, error) {
	if weeksAhead <= 0 {
		weeksAhead = 6
	}
	now := m.now()
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, weeksAhead*7)

	rb, err := m.store.GetRecurringBooking(ctx, recurringBookingID)
	if err != nil {
		return 0, err
	}
	data, err := m.loadCoach(ctx, rb.CoachID, from, to)
	if err != nil {
		return 0, err
	}
	return m.generateForBooking(ctx, rb, data, from, to, now)
}

func (m *Materializer) generateForBooking(ctx context.Context, rb domain.RecurringBooking, data *coachData, from, to, now time.Time) (int, error) {
	roomID := m.roomFor(data, rb.Weekday, rb.Start)
	if roomID == "" {
		return 0, &domain.ConfigurationError{CoachID: rb.CoachID, Reason: "no room configured for generated sessions"}
	}

	ivs := schedule.PlanRecurringSessions(schedule.PlanInput{
		Booking:   rb,
		From:      from,
		To:        to,
		Weekly:    data.weekly,
		Additions: data.additions,
		Blocks:    data.blocks,
		Existing:  data.existing,
		Now:       now,
	})
	if len(ivs) == 0 {
		return 0, nil
	}

	sessions := make([]domain.TrainingSession, 0, len(ivs))
	for _, iv := range ivs {
		sessions = append(sessions, domain.TrainingSession{
			CoachID:            rb.CoachID,
			RoomID:             roomID,
			MemberID:           rb.MemberID,
			RecurringBookingID: rb.ID,
			Type:               domain.TypeOneToOne,
			Capacity:           1,
			Start:              iv.Start,
			End:                iv.End,
			Recurring:          true,
		})
		data.existing[iv.Start.Unix()] = struct{}{}
	}
	return m.store.InsertSessions(ctx, sessions)
}

func (m *Materializer) generateTemplateClasses(ctx context.Context, coachID string, data *coachData, from, to, now time.Time) (int, int, error) {
	ivs := schedule.PlanTemplateSessions(schedule.TemplatePlanInput{
		CoachID:  coachID,
		Weekly:   data.weekly,
		Blocks:   data.blocks,
		Existing: data.existing,
		From:     from,
		To:       to,
		Now:      now,
	})
	if len(ivs) == 0 {
		return 0, 0, nil
	}

	capacity := data.settings.GroupCapacity
	if capacity <= 0 {
		capacity = domain.DefaultGroupCapacity
	}

	var skipped int
	sessions := make([]domain.TrainingSession, 0, len(ivs))
	for _, iv := range ivs {
		roomID := m.roomFor(data, int(iv.Start.Weekday()), timegrid.TimeOfDayOf(iv.Start))
		if roomID == "" {
			skipped++
			continue
		}
		sessions = append(sessions, domain.TrainingSession{
			CoachID:   coachID,
			RoomID:    roomID,
			Type:      domain.TypeGroup,
			Capacity:  capacity,
			Start:     iv.Start,
			End:       iv.End,
			Title:     "Group class",
			Recurring: true,
		})
		data.existing[iv.Start.Unix()] = struct{}{}
	}
	if len(sessions) == 0 {
		return 0, skipped, nil
	}
	n, err := m.store.InsertSessions(ctx, sessions)
	return n, skipped, err
}

// roomFor picks the template row's room covering the start when set, falling
// back to the coach's default room. Empty means no room is configured at all.
func (m *Materializer) roomFor(data *coachData, weekday int, start timegrid.TimeOfDay) string {
	for _, row := range data.weekly {
		if row.Weekday == weekday && start >= row.Start && start < row.End && row.RoomID != "" {
			return row.RoomID
		}
	}
	return data.settings.DefaultRoomID
}
