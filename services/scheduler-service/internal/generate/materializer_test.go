package generate

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/timegrid"
)

type fakeStore struct {
	coaches  []domain.Coach
	settings map[string]domain.CoachSettings
	weekly   map[string][]domain.WeeklyAvailability
	blocks   map[string][]domain.BlockedSlot
	bookings []domain.RecurringBooking
	sessions []domain.TrainingSession
	pastDone int
}

func (f *fakeStore) ListActiveRecurringBookings(context.Context) ([]domain.RecurringBooking, error) {
	var out []domain.RecurringBooking
	for _, rb := range f.bookings {
		if rb.Status == domain.RecurringActive {
			out = append(out, rb)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRecurringBooking(_ context.Context, id string) (domain.RecurringBooking, error) {
	for _, rb := range f.bookings {
		if rb.ID == id {
			return rb, nil
		}
	}
	return domain.RecurringBooking{}, domain.ErrNotFound
}

func (f *fakeStore) ListCoaches(context.Context) ([]domain.Coach, error) {
	return f.coaches, nil
}

func (f *fakeStore) GetSettings(_ context.Context, coachID string) (domain.CoachSettings, bool, error) {
	s, ok := f.settings[coachID]
	if !ok {
		return domain.CoachSettings{CoachID: coachID}, false, nil
	}
	return s, true, nil
}

func (f *fakeStore) ListWeekly(_ context.Context, coachID string) ([]domain.WeeklyAvailability, error) {
	return f.weekly[coachID], nil
}

func (f *fakeStore) ListAdditions(_ context.Context, _ string, _, _ time.Time) ([]domain.AvailabilityAddition, error) {
	return nil, nil
}

func (f *fakeStore) ListBlocks(_ context.Context, coachID string, _, _ time.Time) ([]domain.BlockedSlot, error) {
	return f.blocks[coachID], nil
}

func (f *fakeStore) ListSessionStarts(_ context.Context, coachID string, from, to time.Time) (map[int64]struct{}, error) {
	starts := make(map[int64]struct{})
	for _, s := range f.sessions {
		if s.CoachID == coachID && !s.Start.Before(from) && s.Start.Before(to) {
			starts[s.Start.Unix()] = struct{}{}
		}
	}
	return starts, nil
}

func (f *fakeStore) InsertSessions(_ context.Context, sessions []domain.TrainingSession) (int, error) {
	var inserted int
	for _, s := range sessions {
		dup := false
		for _, existing := range f.sessions {
			if existing.CoachID == s.CoachID && existing.Start.Equal(s.Start) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		s.Status = domain.SessionScheduled
		f.sessions = append(f.sessions, s)
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) CompletePastSessions(_ context.Context, before time.Time) (int, error) {
	var n int
	for i, s := range f.sessions {
		if s.Status == domain.SessionScheduled && !s.End.After(before) {
			f.sessions[i].Status = domain.SessionCompleted
			n++
		}
	}
	f.pastDone += n
	return n, nil
}

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func tod(t *testing.T, s string) timegrid.TimeOfDay {
	t.Helper()
	v, err := timegrid.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func newFixture(t *testing.T) (*fakeStore, *Materializer) {
	store := &fakeStore{
		coaches: []domain.Coach{{ID: "coach-1", Name: "Dana"}},
		settings: map[string]domain.CoachSettings{
			"coach-1": {CoachID: "coach-1", DefaultRoomID: "room-1", SlotDurationMins: 60, GroupCapacity: 8},
		},
		weekly: map[string][]domain.WeeklyAvailability{
			"coach-1": {
				{CoachID: "coach-1", Weekday: 1, Start: tod(t, "09:00"), End: tod(t, "12:00"), Individual: true},
				{CoachID: "coach-1", Weekday: 1, Start: tod(t, "18:00"), End: tod(t, "19:00"), Group: true},
			},
		},
		blocks: map[string][]domain.BlockedSlot{},
		bookings: []domain.RecurringBooking{{
			ID:        "rb-1",
			CoachID:   "coach-1",
			MemberID:  "member-1",
			Weekday:   1,
			Start:     tod(t, "10:00"),
			End:       tod(t, "11:00"),
			StartDate: monday,
			Status:    domain.RecurringActive,
		}},
	}
	m := NewMaterializer(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.now = func() time.Time { return monday.Add(-time.Hour) }
	return store, m
}

func TestGenerateAll(t *testing.T) {
	store, m := newFixture(t)

	res, err := m.GenerateAll(context.Background(), 4)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if res.FromRecurringBookings != 4 {
		t.Fatalf("from_recurring_bookings = %d, want 4", res.FromRecurringBookings)
	}
	if res.FromAvailabilityTemplate != 4 {
		t.Fatalf("from_availability_template = %d, want 4", res.FromAvailabilityTemplate)
	}
	if res.TotalGenerated != 8 {
		t.Fatalf("total_generated = %d, want 8", res.TotalGenerated)
	}

	for _, s := range store.sessions {
		if s.RoomID != "room-1" {
			t.Fatalf("session without default room: %+v", s)
		}
		if s.Type == domain.TypeGroup && s.Capacity != 8 {
			t.Fatalf("group capacity = %d, want 8", s.Capacity)
		}
		if s.Type == domain.TypeOneToOne && s.MemberID != "member-1" {
			t.Fatalf("1:1 session not attached to member: %+v", s)
		}
	}
}

func TestGenerateAll_DefaultHorizonIsSixWeeks(t *testing.T) {
	_, m := newFixture(t)

	res, err := m.GenerateAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if res.FromRecurringBookings != 6 {
		t.Fatalf("from_recurring_bookings = %d, want 6", res.FromRecurringBookings)
	}
	if res.FromAvailabilityTemplate != 6 {
		t.Fatalf("from_availability_template = %d, want 6", res.FromAvailabilityTemplate)
	}
	if res.TotalGenerated != 12 {
		t.Fatalf("total_generated = %d, want 12", res.TotalGenerated)
	}
}

func TestGenerateAll_SecondRunGeneratesNothing(t *testing.T) {
	_, m := newFixture(t)

	if _, err := m.GenerateAll(context.Background(), 4); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := m.GenerateAll(context.Background(), 4)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.TotalGenerated != 0 {
		t.Fatalf("second run generated %d sessions", res.TotalGenerated)
	}
}

func TestGenerateAll_RoomlessCoachSkippedWithoutError(t *testing.T) {
	store, m := newFixture(t)
	store.settings["coach-1"] = domain.CoachSettings{CoachID: "coach-1", SlotDurationMins: 60}

	res, err := m.GenerateAll(context.Background(), 4)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if res.FromRecurringBookings != 0 {
		t.Fatalf("roomless coach produced %d sessions", res.FromRecurringBookings)
	}
	if res.SkippedNoRoom == 0 {
		t.Fatal("expected skipped_no_room to be reported")
	}
	if len(store.sessions) != 0 {
		t.Fatalf("sessions written for roomless coach: %d", len(store.sessions))
	}
}

func TestGenerateAll_CompletesPastSessions(t *testing.T) {
	store, m := newFixture(t)
	store.sessions = append(store.sessions, domain.TrainingSession{
		ID:      "old",
		CoachID: "coach-1",
		Start:   monday.AddDate(0, 0, -7).Add(10 * time.Hour),
		End:     monday.AddDate(0, 0, -7).Add(11 * time.Hour),
		Status:  domain.SessionScheduled,
	})

	res, err := m.GenerateAll(context.Background(), 4)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if res.MarkedCompleted != 1 {
		t.Fatalf("marked_completed = %d, want 1", res.MarkedCompleted)
	}
	if store.sessions[0].Status != domain.SessionCompleted {
		t.Fatalf("past session status = %s", store.sessions[0].Status)
	}
}

func TestGenerateForBooking(t *testing.T) {
	store, m := newFixture(t)

	n, err := m.GenerateForBooking(context.Background(), "rb-1", 2)
	if err != nil {
		t.Fatalf("GenerateForBooking: %v", err)
	}
	if n != 2 {
		t.Fatalf("generated %d sessions, want 2", n)
	}
	for _, s := range store.sessions {
		if s.RecurringBookingID != "rb-1" || !s.Recurring {
			t.Fatalf("session not linked to recurring booking: %+v", s)
		}
	}

	if _, err := m.GenerateForBooking(context.Background(), "missing", 2); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateAll_BlockedWeekSkipped(t *testing.T) {
	store, m := newFixture(t)
	store.blocks["coach-1"] = []domain.BlockedSlot{{
		CoachID: "coach-1",
		Start:   monday.AddDate(0, 0, 7),
		End:     monday.AddDate(0, 0, 8),
	}}

	res, err := m.GenerateAll(context.Background(), 4)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if res.FromRecurringBookings != 3 {
		t.Fatalf("from_recurring_bookings = %d, want 3 (blocked Monday skipped)", res.FromRecurringBookings)
	}
	if res.FromAvailabilityTemplate != 3 {
		t.Fatalf("from_availability_template = %d, want 3 (blocked Monday skipped)", res.FromAvailabilityTemplate)
	}
}
