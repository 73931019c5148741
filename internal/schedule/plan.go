package schedule

import (
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/timegrid"
)

// PlanInput is the data needed to extend one active recurring booking.
// Weekly/Additions/Blocks are the coach's records restricted to the window.
type PlanInput struct {
	Booking   domain.RecurringBooking
	From, To  time.Time // generation window, usually [today, horizon]
	Weekly    []domain.WeeklyAvailability
	Additions []domain.AvailabilityAddition
	Blocks    []domain.BlockedSlot
	Existing  map[int64]struct{} // unix starts of sessions already generated for this booking's coach
	Now       time.Time
}

// PlanRecurringSessions returns the occurrence intervals the materializer
// should insert for the booking. Re-running over an overlapping window plans
// nothing new: existing starts are skipped, which is what makes the
// materializer idempotent.
//
// An occurrence is planned iff its start is in the future, no session exists
// at that exact start, it overlaps no block, and the interval is allowed by
// the current weekly template or by an addition covering it. Occurrences the
// template no longer allows are simply not created; previously created ones
// are the conflict detector's business.
func PlanRecurringSessions(in PlanInput) []timegrid.Interval {
	b := in.Booking
	if b.Status != domain.RecurringActive {
		return nil
	}

	from := in.From
	if b.StartDate.After(from) {
		from = b.StartDate
	}
	to := in.To
	if b.EndDate != nil && b.EndDate.Before(to) {
		to = *b.EndDate
	}

	blockIvs := intervalsOfBlocks(in.Blocks)

	var out []timegrid.Interval
	days := Days(from, to)
	for day, ok := days.Next(); ok; day, ok = days.Next() {
		if int(day.Weekday()) != b.Weekday {
			continue
		}
		iv := timegrid.Interval{Start: b.Start.On(day), End: b.End.On(day)}
		if !iv.Start.After(in.Now) {
			continue
		}
		if _, taken := in.Existing[iv.Start.Unix()]; taken {
			continue
		}
		if timegrid.OverlapsAny(iv, blockIvs) {
			continue
		}
		if !allowedByTemplate(iv, b.Weekday, in.Weekly) && !allowedByAddition(iv, in.Additions) {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// allowedByTemplate checks minute containment against the weekly rows for the
// booking's weekday: slot start >= row start and slot end <= row end.
func allowedByTemplate(iv timegrid.Interval, weekday int, weekly []domain.WeeklyAvailability) bool {
	startMin := timegrid.TimeOfDayOf(iv.Start)
	endMin := timegrid.TimeOfDayOf(iv.End)
	for _, row := range weekly {
		if row.Weekday != weekday {
			continue
		}
		if startMin >= row.Start && endMin <= row.End {
			return true
		}
	}
	return false
}

func allowedByAddition(iv timegrid.Interval, additions []domain.AvailabilityAddition) bool {
	for _, add := range additions {
		if (timegrid.Interval{Start: add.Start, End: add.End}).Covers(iv) {
			return true
		}
	}
	return false
}

// TemplatePlanInput is the data needed to materialize group classes straight
// from a coach's weekly template.
type TemplatePlanInput struct {
	CoachID  string
	Weekly   []domain.WeeklyAvailability
	Blocks   []domain.BlockedSlot
	Existing map[int64]struct{} // unix starts of the coach's existing sessions
	From, To time.Time
	Now      time.Time
}

// PlanTemplateSessions returns one class occurrence per group-flagged weekly
// row per matching date: the row's full window is the class window. The same
// past/duplicate/block guards apply as for recurring bookings.
func PlanTemplateSessions(in TemplatePlanInput) []timegrid.Interval {
	blockIvs := intervalsOfBlocks(in.Blocks)

	var out []timegrid.Interval
	days := Days(in.From, in.To)
	for day, ok := days.Next(); ok; day, ok = days.Next() {
		weekday := int(day.Weekday())
		for _, row := range in.Weekly {
			if row.Weekday != weekday || !row.Group {
				continue
			}
			iv := timegrid.Interval{Start: row.Start.On(day), End: row.End.On(day)}
			if !iv.Start.After(in.Now) {
				continue
			}
			if _, taken := in.Existing[iv.Start.Unix()]; taken {
				continue
			}
			if timegrid.OverlapsAny(iv, blockIvs) {
				continue
			}
			out = append(out, iv)
		}
	}
	return out
}
