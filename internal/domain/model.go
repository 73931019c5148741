package domain

import (
	"time"

	"github.com/coachbook/coachbook/internal/timegrid"
)

type SessionType string

const (
	TypeOneToOne SessionType = "ONE_TO_ONE"
	TypeGroup    SessionType = "GROUP"
)

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionNoShow    SessionStatus = "no_show"
)

type BookingStatus string

const (
	BookingConfirmed         BookingStatus = "CONFIRMED"
	BookingCancelledByMember BookingStatus = "CANCELLED_BY_MEMBER"
	BookingCancelledByCoach  BookingStatus = "CANCELLED_BY_COACH"
)

type RecurringStatus string

const (
	RecurringActive    RecurringStatus = "ACTIVE"
	RecurringCancelled RecurringStatus = "CANCELLED"
)

// WeeklyAvailability is one recurring window of a coach's weekly template.
// A coach may have several rows per weekday; a row with DurationMins == 0
// falls back to the coach's default slot duration.
type WeeklyAvailability struct {
	ID           string
	CoachID      string
	Weekday      int // 0 = Sunday .. 6 = Saturday, matching time.Weekday
	Start        timegrid.TimeOfDay
	End          timegrid.TimeOfDay
	Individual   bool
	Group        bool
	RoomID       string
	DurationMins int
}

// AvailabilityAddition is a one-off window outside the weekly template,
// valid only for the calendar date of Start. For a timestamp covered by both
// an addition and the template, the addition wins.
type AvailabilityAddition struct {
	ID         string
	CoachID    string
	Start      time.Time
	End        time.Time
	Individual bool
	Group      bool
	RoomID     string
	Reason     string
}

// BlockedSlot is an explicit unavailability override. It beats the template
// and additions for any overlapping instant.
type BlockedSlot struct {
	ID      string
	CoachID string
	Start   time.Time
	End     time.Time
	Reason  string
}

// TrainingSession is the materialized bookable unit. Sessions are never
// deleted; cancellation is a status change.
type TrainingSession struct {
	ID                 string
	CoachID            string
	RoomID             string
	MemberID           string
	RecurringBookingID string
	Title              string
	Description        string
	Type               SessionType
	Capacity           int
	Start              time.Time
	End                time.Time
	Status             SessionStatus
	Recurring          bool
	CreatedAt          time.Time
}

// Booking links a member to a session. A GROUP session holds up to Capacity
// confirmed bookings; a ONE_TO_ONE session at most one.
type Booking struct {
	ID          string
	SessionID   string
	MemberID    string
	Status      BookingStatus
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// RecurringBooking is a member's standing weekly reservation. The
// materializer extends its generated sessions up to the rolling horizon.
type RecurringBooking struct {
	ID        string
	CoachID   string
	MemberID  string
	Weekday   int
	Start     timegrid.TimeOfDay
	End       timegrid.TimeOfDay
	StartDate time.Time
	EndDate   *time.Time // nil = open-ended, bounded by the horizon
	Status    RecurringStatus
	CreatedAt time.Time
}

type Coach struct {
	ID   string
	Name string
}

// CoachSettings carries per-coach generation defaults. A coach without a
// default room cannot receive generated sessions.
type CoachSettings struct {
	CoachID          string
	DefaultRoomID    string
	SlotDurationMins int
	GroupCapacity    int
}

const (
	DefaultSlotDurationMins = 60
	DefaultGroupCapacity    = 10
)

func (s CoachSettings) SlotDuration() time.Duration {
	mins := s.SlotDurationMins
	if mins <= 0 {
		mins = DefaultSlotDurationMins
	}
	return time.Duration(mins) * time.Minute
}
