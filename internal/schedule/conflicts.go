package schedule

import (
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/timegrid"
)

// OutsideAvailability returns the scheduled sessions whose weekday and
// time-of-day no longer fit any window of the coach's current weekly
// template, and which no addition covers. The coach edited their schedule
// after the sessions were created; the caller resolves each one by absorbing
// it as an addition or cancelling.
func OutsideAvailability(sessions []domain.TrainingSession, weekly []domain.WeeklyAvailability, additions []domain.AvailabilityAddition) []domain.TrainingSession {
	var out []domain.TrainingSession
	for _, s := range sessions {
		if s.Status != domain.SessionScheduled {
			continue
		}
		iv := timegrid.Interval{Start: s.Start, End: s.End}
		if allowedByTemplate(iv, int(s.Start.Weekday()), weekly) {
			continue
		}
		if allowedByAddition(iv, additions) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// WithinTemplate reports whether [start, end) fits inside a weekly template
// window for that weekday.
func WithinTemplate(start, end time.Time, weekly []domain.WeeklyAvailability) bool {
	iv := timegrid.Interval{Start: start, End: end}
	return allowedByTemplate(iv, int(start.Weekday()), weekly)
}

// AdditionFor builds the one-off availability window that absorbs a drifted
// session back into allowed availability ("keep as exception").
func AdditionFor(s domain.TrainingSession) domain.AvailabilityAddition {
	return domain.AvailabilityAddition{
		CoachID:    s.CoachID,
		Start:      s.Start,
		End:        s.End,
		Individual: s.Type == domain.TypeOneToOne,
		Group:      s.Type == domain.TypeGroup,
		RoomID:     s.RoomID,
		Reason:     "kept after schedule change",
	}
}
