package schedule

import (
	"testing"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
)

func TestOpenSlots_RoundTrip(t *testing.T) {
	// Monday 09:00-12:00, 60 min: booking view three weeks out shows exactly
	// three slots, and a booked 10:00 disappears while the others remain.
	now := monday.Add(-21 * 24 * time.Hour)
	in := ProjectInput{
		Coach:         domain.Coach{ID: "coach-1", Name: "Dana"},
		Weekly:        mondayTemplate(t),
		SessionStarts: map[int64]struct{}{},
		From:          monday,
		To:            monday,
		Now:           now,
		DefaultMins:   60,
	}

	slots := OpenSlots(in)
	if len(slots) != 3 {
		t.Fatalf("expected 3 open slots, got %d", len(slots))
	}
	for i, want := range []int{9, 10, 11} {
		if slots[i].Start.Hour() != want {
			t.Fatalf("slot %d at %s, want %02d:00", i, slots[i].Start, want)
		}
	}

	in.SessionStarts[monday.Add(10*time.Hour).Unix()] = struct{}{}
	slots = OpenSlots(in)
	if len(slots) != 2 {
		t.Fatalf("expected 2 open slots after booking, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 9 || slots[1].Start.Hour() != 11 {
		t.Fatalf("wrong remaining slots: %s, %s", slots[0].Start, slots[1].Start)
	}
}

func TestOpenSlots_BlockNeverOffered(t *testing.T) {
	now := monday.Add(-7 * 24 * time.Hour)
	slots := OpenSlots(ProjectInput{
		Coach:  domain.Coach{ID: "coach-1"},
		Weekly: mondayTemplate(t),
		Blocks: []domain.BlockedSlot{{
			Start: monday.Add(10*time.Hour + 30*time.Minute),
			End:   monday.Add(11*time.Hour + 30*time.Minute),
		}},
		From:        monday,
		To:          monday,
		Now:         now,
		DefaultMins: 60,
	})
	if len(slots) != 1 {
		t.Fatalf("expected only 09:00 to survive the block, got %d slots", len(slots))
	}
	if slots[0].Start.Hour() != 9 {
		t.Fatalf("surviving slot at %s, want 09:00", slots[0].Start)
	}
}

func TestOpenSlots_PastAndGroupRowsSkipped(t *testing.T) {
	weekly := append(mondayTemplate(t), domain.WeeklyAvailability{
		Weekday: 1,
		Start:   tod(t, "14:00"),
		End:     tod(t, "16:00"),
		Group:   true, // group-only row contributes no 1:1 slots
	})
	now := monday.Add(9*time.Hour + 30*time.Minute) // 09:00 already started
	slots := OpenSlots(ProjectInput{
		Coach:       domain.Coach{ID: "coach-1"},
		Weekly:      weekly,
		From:        monday,
		To:          monday,
		Now:         now,
		DefaultMins: 60,
	})
	if len(slots) != 2 {
		t.Fatalf("expected 10:00 and 11:00 only, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 10 || slots[1].Start.Hour() != 11 {
		t.Fatalf("wrong slots: %s, %s", slots[0].Start, slots[1].Start)
	}
}

func TestOpenSlots_MultiDaySorted(t *testing.T) {
	now := monday.Add(-24 * time.Hour)
	slots := OpenSlots(ProjectInput{
		Coach:       domain.Coach{ID: "coach-1"},
		Weekly:      mondayTemplate(t),
		From:        monday,
		To:          monday.AddDate(0, 0, 7),
		Now:         now,
		DefaultMins: 60,
	})
	if len(slots) != 6 {
		t.Fatalf("two Mondays should yield 6 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Start.Before(slots[i-1].Start) {
			t.Fatal("slots must be sorted ascending")
		}
	}
}
