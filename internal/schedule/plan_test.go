package schedule

import (
	"testing"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
)

func activeBooking(t *testing.T) domain.RecurringBooking {
	return domain.RecurringBooking{
		ID:        "rb1",
		CoachID:   "coach-1",
		MemberID:  "member-1",
		Weekday:   1, // Monday
		Start:     tod(t, "10:00"),
		End:       tod(t, "11:00"),
		StartDate: monday,
		Status:    domain.RecurringActive,
	}
}

func TestPlanRecurringSessions_FourWeeks(t *testing.T) {
	in := PlanInput{
		Booking:  activeBooking(t),
		From:     monday,
		To:       monday.AddDate(0, 0, 27),
		Weekly:   mondayTemplate(t),
		Existing: map[int64]struct{}{},
		Now:      monday.Add(-time.Hour),
	}
	ivs := PlanRecurringSessions(in)
	if len(ivs) != 4 {
		t.Fatalf("expected 4 occurrences, got %d", len(ivs))
	}
	for i, iv := range ivs {
		want := monday.AddDate(0, 0, 7*i).Add(10 * time.Hour)
		if !iv.Start.Equal(want) {
			t.Fatalf("occurrence %d at %s, want %s", i, iv.Start, want)
		}
	}
}

func TestPlanRecurringSessions_SecondRunPlansNothing(t *testing.T) {
	in := PlanInput{
		Booking:  activeBooking(t),
		From:     monday,
		To:       monday.AddDate(0, 0, 27),
		Weekly:   mondayTemplate(t),
		Existing: map[int64]struct{}{},
		Now:      monday.Add(-time.Hour),
	}
	first := PlanRecurringSessions(in)
	for _, iv := range first {
		in.Existing[iv.Start.Unix()] = struct{}{}
	}
	if again := PlanRecurringSessions(in); len(again) != 0 {
		t.Fatalf("second run planned %d duplicates", len(again))
	}
}

func TestPlanRecurringSessions_SkipsBlockedWeek(t *testing.T) {
	in := PlanInput{
		Booking: activeBooking(t),
		From:    monday,
		To:      monday.AddDate(0, 0, 13),
		Weekly:  mondayTemplate(t),
		Blocks: []domain.BlockedSlot{{
			Start: monday.AddDate(0, 0, 7).Add(9 * time.Hour),
			End:   monday.AddDate(0, 0, 7).Add(12 * time.Hour),
		}},
		Existing: map[int64]struct{}{},
		Now:      monday.Add(-time.Hour),
	}
	ivs := PlanRecurringSessions(in)
	if len(ivs) != 1 {
		t.Fatalf("expected the blocked Monday skipped, got %d occurrences", len(ivs))
	}
	if !ivs[0].Start.Equal(monday.Add(10 * time.Hour)) {
		t.Fatalf("wrong surviving occurrence: %s", ivs[0].Start)
	}
}

func TestPlanRecurringSessions_OutsideTemplateNotCreated(t *testing.T) {
	b := activeBooking(t)
	b.Start = tod(t, "13:00") // template covers 09:00-12:00 only
	b.End = tod(t, "14:00")
	in := PlanInput{
		Booking:  b,
		From:     monday,
		To:       monday.AddDate(0, 0, 7),
		Weekly:   mondayTemplate(t),
		Existing: map[int64]struct{}{},
		Now:      monday.Add(-time.Hour),
	}
	if ivs := PlanRecurringSessions(in); len(ivs) != 0 {
		t.Fatalf("occurrences outside availability must not be planned, got %d", len(ivs))
	}
}

func TestPlanRecurringSessions_AdditionAllows(t *testing.T) {
	b := activeBooking(t)
	b.Start = tod(t, "13:00")
	b.End = tod(t, "14:00")
	in := PlanInput{
		Booking: b,
		From:    monday,
		To:      monday.AddDate(0, 0, 7),
		Weekly:  mondayTemplate(t),
		Additions: []domain.AvailabilityAddition{{
			Start: monday.Add(13 * time.Hour), End: monday.Add(14 * time.Hour), Individual: true,
		}},
		Existing: map[int64]struct{}{},
		Now:      monday.Add(-time.Hour),
	}
	ivs := PlanRecurringSessions(in)
	if len(ivs) != 1 {
		t.Fatalf("addition should allow exactly the covered Monday, got %d", len(ivs))
	}
}

func TestPlanRecurringSessions_RespectsEndDateAndPast(t *testing.T) {
	b := activeBooking(t)
	end := monday.AddDate(0, 0, 7)
	b.EndDate = &end
	in := PlanInput{
		Booking:  b,
		From:     monday,
		To:       monday.AddDate(0, 0, 41),
		Weekly:   mondayTemplate(t),
		Existing: map[int64]struct{}{},
		// First Monday's 10:00 is already past.
		Now: monday.Add(10*time.Hour + 5*time.Minute),
	}
	ivs := PlanRecurringSessions(in)
	if len(ivs) != 1 {
		t.Fatalf("expected only the second Monday, got %d", len(ivs))
	}
	if !ivs[0].Start.Equal(end.Add(10 * time.Hour)) {
		t.Fatalf("wrong occurrence: %s", ivs[0].Start)
	}
}

func TestPlanRecurringSessions_CancelledBookingPlansNothing(t *testing.T) {
	b := activeBooking(t)
	b.Status = domain.RecurringCancelled
	in := PlanInput{
		Booking:  b,
		From:     monday,
		To:       monday.AddDate(0, 0, 27),
		Weekly:   mondayTemplate(t),
		Existing: map[int64]struct{}{},
		Now:      monday.Add(-time.Hour),
	}
	if ivs := PlanRecurringSessions(in); len(ivs) != 0 {
		t.Fatalf("cancelled booking planned %d occurrences", len(ivs))
	}
}

func TestPlanTemplateSessions_GroupClasses(t *testing.T) {
	weekly := []domain.WeeklyAvailability{{
		CoachID: "coach-1",
		Weekday: 1,
		Start:   tod(t, "18:00"),
		End:     tod(t, "19:00"),
		Group:   true,
	}}
	in := TemplatePlanInput{
		CoachID:  "coach-1",
		Weekly:   weekly,
		Existing: map[int64]struct{}{monday.Add(18 * time.Hour).Unix(): {}},
		From:     monday,
		To:       monday.AddDate(0, 0, 13),
		Now:      monday.Add(-time.Hour),
	}
	ivs := PlanTemplateSessions(in)
	if len(ivs) != 1 {
		t.Fatalf("expected 1 new class (first already generated), got %d", len(ivs))
	}
	if !ivs[0].Start.Equal(monday.AddDate(0, 0, 7).Add(18 * time.Hour)) {
		t.Fatalf("wrong class occurrence: %s", ivs[0].Start)
	}
}
