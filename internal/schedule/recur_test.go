package schedule

import (
	"testing"
	"time"
)

func TestDaysCursor(t *testing.T) {
	c := Days(monday, monday.AddDate(0, 0, 2))
	var n int
	for d, ok := c.Next(); ok; d, ok = c.Next() {
		if d.Hour() != 0 {
			t.Fatalf("cursor must yield midnights, got %s", d)
		}
		n++
	}
	if n != 3 {
		t.Fatalf("expected 3 days, got %d", n)
	}

	c.Reset()
	if d, ok := c.Next(); !ok || !d.Equal(monday) {
		t.Fatalf("reset cursor should restart at %s, got %s", monday, d)
	}
}

func TestExpand_WeeklyAndBiweekly(t *testing.T) {
	// Mondays weekly over four weeks.
	dates := Expand([]time.Weekday{time.Monday}, monday, monday.AddDate(0, 0, 27), 1)
	if len(dates) != 4 {
		t.Fatalf("expected 4 Mondays, got %d", len(dates))
	}

	// Biweekly skips every other occurrence.
	dates = Expand([]time.Weekday{time.Monday}, monday, monday.AddDate(0, 0, 27), 2)
	if len(dates) != 2 {
		t.Fatalf("expected 2 biweekly Mondays, got %d", len(dates))
	}
	if !dates[1].Equal(monday.AddDate(0, 0, 14)) {
		t.Fatalf("second biweekly date %s, want %s", dates[1], monday.AddDate(0, 0, 14))
	}
}

func TestExpand_MultipleWeekdaysSorted(t *testing.T) {
	// Start on a Wednesday; Monday occurrences begin the following week.
	wednesday := monday.AddDate(0, 0, 2)
	dates := Expand([]time.Weekday{time.Friday, time.Monday}, wednesday, wednesday.AddDate(0, 0, 13), 1)
	if len(dates) != 4 {
		t.Fatalf("expected 4 dates, got %d", len(dates))
	}
	for i := 1; i < len(dates); i++ {
		if dates[i].Before(dates[i-1]) {
			t.Fatal("dates must be sorted ascending")
		}
	}
	if dates[0].Weekday() != time.Friday {
		t.Fatalf("first occurrence should be the Friday of the start week, got %s", dates[0].Weekday())
	}
}
