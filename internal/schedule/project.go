package schedule

import (
	"sort"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/timegrid"
)

// OpenSlot is a bookable 1:1 window offered to members.
type OpenSlot struct {
	CoachID   string
	CoachName string
	Start     time.Time
	End       time.Time
}

// ProjectInput carries one coach's data for the open-slot projection.
type ProjectInput struct {
	Coach         domain.Coach
	Weekly        []domain.WeeklyAvailability
	Blocks        []domain.BlockedSlot
	SessionStarts map[int64]struct{} // unix starts of existing non-cancelled sessions
	From, To      time.Time          // closed date range
	Now           time.Time
	DefaultMins   int
}

// OpenSlots walks each day of the range and returns every individual-training
// slot that is strictly in the future, not overlapped by a block, and without
// an existing session at its exact start. Output is sorted by start time.
func OpenSlots(in ProjectInput) []OpenSlot {
	defaultDur := durationOrDefault(in.DefaultMins)
	blockIvs := intervalsOfBlocks(in.Blocks)

	var out []OpenSlot
	days := Days(in.From, in.To)
	for day, ok := days.Next(); ok; day, ok = days.Next() {
		weekday := int(day.Weekday())
		for _, row := range in.Weekly {
			if row.Weekday != weekday || !row.Individual {
				continue
			}
			dur := defaultDur
			if row.DurationMins > 0 {
				dur = time.Duration(row.DurationMins) * time.Minute
			}
			windowEnd := row.End.On(day)
			for start := row.Start.On(day); !start.Add(dur).After(windowEnd); start = start.Add(dur) {
				if !start.After(in.Now) {
					continue
				}
				if _, taken := in.SessionStarts[start.Unix()]; taken {
					continue
				}
				iv := timegrid.Interval{Start: start, End: start.Add(dur)}
				if timegrid.OverlapsAny(iv, blockIvs) {
					continue
				}
				out = append(out, OpenSlot{
					CoachID:   in.Coach.ID,
					CoachName: in.Coach.Name,
					Start:     iv.Start,
					End:       iv.End,
				})
			}
		}
	}
	SortOpenSlots(out)
	return out
}

// SortOpenSlots orders slots ascending by start time; merge results from
// several coaches and re-sort before returning them to a member.
func SortOpenSlots(slots []OpenSlot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
}
