package schedule

import (
	"sort"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/timegrid"
)

type SlotStatus string

const (
	SlotFree        SlotStatus = "FREE"
	SlotBooked      SlotStatus = "BOOKED"
	SlotBlocked     SlotStatus = "BLOCKED"
	SlotExceptional SlotStatus = "EXCEPTIONAL"
)

// Slot is one computed candidate window on a coach's day. Exactly one of
// Session/Block is set for BOOKED/BLOCKED; both are nil for FREE and
// EXCEPTIONAL.
type Slot struct {
	Start     time.Time
	End       time.Time
	Status    SlotStatus
	Session   *domain.TrainingSession
	Block     *domain.BlockedSlot
	Exception bool // produced by (or replaced by) a one-off addition
	Template  bool // produced by the recurring weekly template
}

// standaloneBlockWidth caps the synthetic slot emitted for a block that falls
// outside every template/addition window, so it stays visible on the grid.
const standaloneBlockWidth = 60 * time.Minute

// DayInput is everything the calculus needs for one coach-day. All record
// sets are pre-filtered to ranges intersecting the date; the calculus itself
// performs no I/O.
type DayInput struct {
	Date        time.Time // any instant on the day; truncated to midnight
	Weekly      []domain.WeeklyAvailability
	Additions   []domain.AvailabilityAddition
	Blocks      []domain.BlockedSlot
	Sessions    []domain.TrainingSession
	DefaultMins int // fallback slot duration when a row carries none
}

// BuildDaySlots projects the weekly template, one-off additions, blocks, and
// scheduled sessions for a single date into an ordered slot list.
//
// Precedence per slot window: session > block > free. A session inside a
// block should not exist, but when data disagrees the booked session is
// surfaced so the member-facing side stays truthful. Addition slots replace
// template slots sharing the same start instant.
func BuildDaySlots(in DayInput) []Slot {
	day := timegrid.Midnight(in.Date)
	weekday := int(day.Weekday())
	defaultDur := durationOrDefault(in.DefaultMins)

	sessions := activeSessions(in.Sessions)
	sessionIx := timegrid.NewIntervalIndex(intervalsOfSessions(sessions))
	blockIx := timegrid.NewIntervalIndex(intervalsOfBlocks(in.Blocks))

	byStart := make(map[int64]int) // unix start -> position in slots
	var slots []Slot

	emit := func(s Slot) {
		key := s.Start.Unix()
		if i, ok := byStart[key]; ok {
			slots[i] = s // exception overrides template
			return
		}
		byStart[key] = len(slots)
		slots = append(slots, s)
	}

	classify := func(iv timegrid.Interval) (SlotStatus, *domain.TrainingSession, *domain.BlockedSlot) {
		if i, ok := sessionIx.Find(iv); ok {
			return SlotBooked, &sessions[i], nil
		}
		if i, ok := blockIx.Find(iv); ok {
			return SlotBlocked, nil, &in.Blocks[i]
		}
		return SlotFree, nil, nil
	}

	for _, row := range in.Weekly {
		if row.Weekday != weekday {
			continue
		}
		dur := defaultDur
		if row.DurationMins > 0 {
			dur = time.Duration(row.DurationMins) * time.Minute
		}
		windowEnd := row.End.On(day)
		for start := row.Start.On(day); !start.Add(dur).After(windowEnd); start = start.Add(dur) {
			iv := timegrid.Interval{Start: start, End: start.Add(dur)}
			status, sess, blk := classify(iv)
			emit(Slot{Start: iv.Start, End: iv.End, Status: status, Session: sess, Block: blk, Template: true})
		}
	}

	for i := range in.Additions {
		add := in.Additions[i]
		if !timegrid.SameDate(add.Start, day) {
			continue
		}
		for start := add.Start; !start.Add(defaultDur).After(add.End); start = start.Add(defaultDur) {
			iv := timegrid.Interval{Start: start, End: start.Add(defaultDur)}
			status, sess, blk := classify(iv)
			if status == SlotFree {
				status = SlotExceptional
			}
			emit(Slot{Start: iv.Start, End: iv.End, Status: status, Session: sess, Block: blk, Exception: true})
		}
	}

	// Blocks outside every emitted window still show up on the grid.
	for i := range in.Blocks {
		blk := in.Blocks[i]
		iv := timegrid.Interval{Start: blk.Start, End: blk.End}
		if !iv.Valid() || !iv.Overlaps(dayInterval(day)) {
			continue
		}
		if overlapsAnySlot(slots, iv) {
			continue
		}
		end := blk.Start.Add(standaloneBlockWidth)
		if blk.End.Before(end) {
			end = blk.End
		}
		emit(Slot{Start: blk.Start, End: end, Status: SlotBlocked, Block: &in.Blocks[i]})
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

func durationOrDefault(mins int) time.Duration {
	if mins <= 0 {
		mins = domain.DefaultSlotDurationMins
	}
	return time.Duration(mins) * time.Minute
}

// activeSessions drops cancelled sessions; they neither book nor block a slot.
func activeSessions(sessions []domain.TrainingSession) []domain.TrainingSession {
	out := make([]domain.TrainingSession, 0, len(sessions))
	for _, s := range sessions {
		if s.Status == domain.SessionCancelled {
			continue
		}
		out = append(out, s)
	}
	return out
}

func intervalsOfSessions(sessions []domain.TrainingSession) []timegrid.Interval {
	out := make([]timegrid.Interval, len(sessions))
	for i, s := range sessions {
		out[i] = timegrid.Interval{Start: s.Start, End: s.End}
	}
	return out
}

func intervalsOfBlocks(blocks []domain.BlockedSlot) []timegrid.Interval {
	out := make([]timegrid.Interval, len(blocks))
	for i, b := range blocks {
		out[i] = timegrid.Interval{Start: b.Start, End: b.End}
	}
	return out
}

func overlapsAnySlot(slots []Slot, iv timegrid.Interval) bool {
	for _, s := range slots {
		if iv.Overlaps(timegrid.Interval{Start: s.Start, End: s.End}) {
			return true
		}
	}
	return false
}

func dayInterval(day time.Time) timegrid.Interval {
	return timegrid.Interval{Start: day, End: day.AddDate(0, 0, 1)}
}
