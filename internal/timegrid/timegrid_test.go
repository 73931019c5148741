package timegrid

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in   string
		want TimeOfDay
		ok   bool
	}{
		{"09:00", 540, true},
		{"9:00", 540, true},
		{"23:59", 1439, true},
		{"0:05", 5, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := ParseTimeOfDay(c.in)
		if c.ok && err != nil {
			t.Fatalf("ParseTimeOfDay(%q) failed: %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseTimeOfDay(%q) should fail", c.in)
		}
		if c.ok && got != c.want {
			t.Fatalf("ParseTimeOfDay(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTimeOfDayString(t *testing.T) {
	if s := TimeOfDay(540).String(); s != "09:00" {
		t.Fatalf("expected 09:00, got %s", s)
	}
}

func TestIntervalOverlaps(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	a := Interval{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}

	// Touching end-to-start does not overlap (half-open).
	b := Interval{Start: day.Add(11 * time.Hour), End: day.Add(12 * time.Hour)}
	if a.Overlaps(b) {
		t.Fatal("adjacent intervals must not overlap")
	}

	c := Interval{Start: day.Add(10*time.Hour + 30*time.Minute), End: day.Add(11*time.Hour + 30*time.Minute)}
	if !a.Overlaps(c) {
		t.Fatal("expected overlap")
	}

	if !a.Contains(a.Start) {
		t.Fatal("interval must contain its start")
	}
	if a.Contains(a.End) {
		t.Fatal("interval must not contain its end")
	}
}

func TestIntervalIndexFind(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	items := []Interval{
		{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
		{Start: day.Add(14*time.Hour + 20*time.Minute), End: day.Add(14*time.Hour + 50*time.Minute)},
	}
	ix := NewIntervalIndex(items)

	if _, ok := ix.Find(Interval{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}); ok {
		t.Fatal("no interval should match 10:00-11:00")
	}

	// Unaligned record still found via precise overlap check inside buckets.
	i, ok := ix.Find(Interval{Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)})
	if !ok || i != 1 {
		t.Fatalf("expected item 1, got %d ok=%v", i, ok)
	}

	i, ok = ix.Find(Interval{Start: day.Add(9*time.Hour + 45*time.Minute), End: day.Add(10*time.Hour + 45*time.Minute)})
	if !ok || i != 0 {
		t.Fatalf("expected item 0, got %d ok=%v", i, ok)
	}
}
