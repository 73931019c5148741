package schedule

import (
	"sort"
	"time"

	"github.com/coachbook/coachbook/internal/timegrid"
)

// DayCursor walks calendar days lazily over a closed date range. Long
// horizons never materialize a full day list.
type DayCursor struct {
	start time.Time
	cur   time.Time
	end   time.Time
}

// Days returns a cursor over every calendar day from from to to, inclusive.
func Days(from, to time.Time) *DayCursor {
	start := timegrid.Midnight(from)
	return &DayCursor{start: start, cur: start, end: timegrid.Midnight(to)}
}

// Next yields the next day, or ok=false when the range is exhausted.
func (c *DayCursor) Next() (time.Time, bool) {
	if c.cur.After(c.end) {
		return time.Time{}, false
	}
	d := c.cur
	c.cur = c.cur.AddDate(0, 0, 1)
	return d, true
}

// Reset rewinds the cursor to the first day.
func (c *DayCursor) Reset() {
	c.cur = c.start
}

// firstOnOrAfter returns the first occurrence of weekday on or after start.
func firstOnOrAfter(start time.Time, weekday time.Weekday) time.Time {
	d := timegrid.Midnight(start)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// Expand turns a weekday selection into concrete dates: for each selected
// weekday, its first occurrence on/after start, then steps of
// 7*frequencyWeeks days until end (inclusive). Dates are returned sorted.
// Both generation paths share this expansion; whether the result is then
// checked against blocks and availability is the caller's policy.
func Expand(weekdays []time.Weekday, start, end time.Time, frequencyWeeks int) []time.Time {
	if frequencyWeeks <= 0 {
		frequencyWeeks = 1
	}
	endDay := timegrid.Midnight(end)
	step := 7 * frequencyWeeks

	var dates []time.Time
	for _, wd := range weekdays {
		for d := firstOnOrAfter(start, wd); !d.After(endDay); d = d.AddDate(0, 0, step) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
