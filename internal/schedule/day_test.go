package schedule

import (
	"testing"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/timegrid"
)

func tod(t *testing.T, s string) timegrid.TimeOfDay {
	t.Helper()
	v, err := timegrid.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

// monday is a known Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func mondayTemplate(t *testing.T) []domain.WeeklyAvailability {
	return []domain.WeeklyAvailability{{
		ID:         "w1",
		CoachID:    "coach-1",
		Weekday:    1,
		Start:      tod(t, "09:00"),
		End:        tod(t, "12:00"),
		Individual: true,
	}}
}

func TestBuildDaySlots_TemplateWalk(t *testing.T) {
	slots := BuildDaySlots(DayInput{
		Date:        monday,
		Weekly:      mondayTemplate(t),
		DefaultMins: 60,
	})
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	for i, want := range []int{9, 10, 11} {
		if slots[i].Start.Hour() != want {
			t.Fatalf("slot %d starts %s, want %02d:00", i, slots[i].Start, want)
		}
		if slots[i].Status != SlotFree {
			t.Fatalf("slot %d status %s, want FREE", i, slots[i].Status)
		}
		if !slots[i].Template {
			t.Fatalf("slot %d should be template-sourced", i)
		}
	}
}

func TestBuildDaySlots_BookedAndBlocked(t *testing.T) {
	sess := domain.TrainingSession{
		ID: "s1", CoachID: "coach-1", Type: domain.TypeOneToOne,
		Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour),
		Status: domain.SessionScheduled,
	}
	// Block 10:30-11:30 straddles the 10:00 and 11:00 slots.
	blk := domain.BlockedSlot{
		ID: "b1", CoachID: "coach-1",
		Start: monday.Add(10*time.Hour + 30*time.Minute),
		End:   monday.Add(11*time.Hour + 30*time.Minute),
	}

	slots := BuildDaySlots(DayInput{
		Date:        monday,
		Weekly:      mondayTemplate(t),
		Blocks:      []domain.BlockedSlot{blk},
		Sessions:    []domain.TrainingSession{sess},
		DefaultMins: 60,
	})
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if slots[0].Status != SlotBooked || slots[0].Session == nil || slots[0].Session.ID != "s1" {
		t.Fatalf("09:00 should be BOOKED by s1, got %s", slots[0].Status)
	}
	if slots[1].Status != SlotBlocked || slots[2].Status != SlotBlocked {
		t.Fatalf("10:00 and 11:00 should be BLOCKED, got %s and %s", slots[1].Status, slots[2].Status)
	}
	if slots[1].Block == nil || slots[1].Block.ID != "b1" {
		t.Fatal("blocked slot should carry the owning block")
	}
}

func TestBuildDaySlots_SessionBeatsBlock(t *testing.T) {
	// Inconsistent data: a session inside a block. The booked session wins.
	sess := domain.TrainingSession{
		ID: "s1", CoachID: "coach-1",
		Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour),
		Status: domain.SessionScheduled,
	}
	blk := domain.BlockedSlot{
		ID: "b1", CoachID: "coach-1",
		Start: monday.Add(9 * time.Hour), End: monday.Add(12 * time.Hour),
	}
	slots := BuildDaySlots(DayInput{
		Date:        monday,
		Weekly:      mondayTemplate(t),
		Blocks:      []domain.BlockedSlot{blk},
		Sessions:    []domain.TrainingSession{sess},
		DefaultMins: 60,
	})
	if slots[1].Status != SlotBooked {
		t.Fatalf("10:00 should surface the booked session, got %s", slots[1].Status)
	}
}

func TestBuildDaySlots_AdditionOverridesTemplate(t *testing.T) {
	add := domain.AvailabilityAddition{
		ID: "a1", CoachID: "coach-1",
		Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour),
		Group: true,
	}
	slots := BuildDaySlots(DayInput{
		Date:        monday,
		Weekly:      mondayTemplate(t),
		Additions:   []domain.AvailabilityAddition{add},
		DefaultMins: 60,
	})
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if slots[1].Status != SlotExceptional || !slots[1].Exception {
		t.Fatalf("10:00 should be the addition's EXCEPTIONAL slot, got %s", slots[1].Status)
	}
	if slots[0].Status != SlotFree || slots[2].Status != SlotFree {
		t.Fatal("surrounding template slots should stay FREE")
	}
}

func TestBuildDaySlots_AdditionOutsideTemplate(t *testing.T) {
	add := domain.AvailabilityAddition{
		ID: "a1", CoachID: "coach-1",
		Start: monday.Add(18 * time.Hour), End: monday.Add(19 * time.Hour),
	}
	slots := BuildDaySlots(DayInput{
		Date:        monday,
		Additions:   []domain.AvailabilityAddition{add},
		DefaultMins: 60,
	})
	if len(slots) != 1 || slots[0].Status != SlotExceptional {
		t.Fatalf("expected one EXCEPTIONAL slot, got %+v", slots)
	}
}

func TestBuildDaySlots_StandaloneBlockEmitted(t *testing.T) {
	blk := domain.BlockedSlot{
		ID: "b1", CoachID: "coach-1",
		Start: monday.Add(15 * time.Hour), End: monday.Add(17 * time.Hour),
	}
	slots := BuildDaySlots(DayInput{
		Date:        monday,
		Weekly:      mondayTemplate(t),
		Blocks:      []domain.BlockedSlot{blk},
		DefaultMins: 60,
	})
	if len(slots) != 4 {
		t.Fatalf("expected 3 template slots + 1 standalone block, got %d", len(slots))
	}
	last := slots[3]
	if last.Status != SlotBlocked || !last.Start.Equal(blk.Start) {
		t.Fatalf("standalone block missing, got %+v", last)
	}
	if got := last.End.Sub(last.Start); got != standaloneBlockWidth {
		t.Fatalf("standalone block width = %s, want %s", got, standaloneBlockWidth)
	}
}

func TestBuildDaySlots_CancelledSessionFreesSlot(t *testing.T) {
	sess := domain.TrainingSession{
		ID: "s1", CoachID: "coach-1",
		Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour),
		Status: domain.SessionCancelled,
	}
	slots := BuildDaySlots(DayInput{
		Date:        monday,
		Weekly:      mondayTemplate(t),
		Sessions:    []domain.TrainingSession{sess},
		DefaultMins: 60,
	})
	if slots[0].Status != SlotFree {
		t.Fatalf("cancelled session must not occupy the slot, got %s", slots[0].Status)
	}
}
