package outbox

import (
	"encoding/json"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
)

// Topic names. One event type per topic; the Kafka topic equals EventType.
const (
	TopicSessionBooked      = "booking.session.booked.v1"
	TopicSessionCancelled   = "booking.session.cancelled.v1"
	TopicBookingCancelled   = "booking.booking.cancelled.v1"
	TopicRecurringCreated   = "booking.recurring.created.v1"
	TopicRecurringCancelled = "booking.recurring.cancelled.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type sessionPayload struct {
	SessionID string    `json:"session_id"`
	BookingID string    `json:"booking_id,omitempty"`
	CoachID   string    `json:"coach_id"`
	MemberID  string    `json:"member_id,omitempty"`
	Type      string    `json:"session_type"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func SessionBooked(s domain.TrainingSession, b domain.Booking) Event {
	payload, _ := json.Marshal(sessionPayload{
		SessionID: s.ID,
		BookingID: b.ID,
		CoachID:   s.CoachID,
		MemberID:  b.MemberID,
		Type:      string(s.Type),
		StartTime: s.Start,
		EndTime:   s.End,
	})
	return Event{
		AggregateType: "training_session",
		AggregateID:   s.ID,
		EventType:     TopicSessionBooked,
		Payload:       payload,
	}
}

func SessionCancelled(s domain.TrainingSession, memberID string) Event {
	payload, _ := json.Marshal(sessionPayload{
		SessionID: s.ID,
		CoachID:   s.CoachID,
		MemberID:  memberID,
		Type:      string(s.Type),
		StartTime: s.Start,
		EndTime:   s.End,
	})
	return Event{
		AggregateType: "training_session",
		AggregateID:   s.ID,
		EventType:     TopicSessionCancelled,
		Payload:       payload,
	}
}

// BookingCancelled is emitted when a member leaves a session that stays
// scheduled for its remaining participants. Cancelling the whole session
// emits SessionCancelled instead.
func BookingCancelled(s domain.TrainingSession, b domain.Booking) Event {
	payload, _ := json.Marshal(sessionPayload{
		SessionID: s.ID,
		BookingID: b.ID,
		CoachID:   s.CoachID,
		MemberID:  b.MemberID,
		Type:      string(s.Type),
		StartTime: s.Start,
		EndTime:   s.End,
	})
	return Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     TopicBookingCancelled,
		Payload:       payload,
	}
}

type recurringPayload struct {
	RecurringBookingID string     `json:"recurring_booking_id"`
	CoachID            string     `json:"coach_id"`
	MemberID           string     `json:"member_id"`
	Weekday            int        `json:"weekday"`
	StartTime          string     `json:"start_time"`
	EndTime            string     `json:"end_time"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            *time.Time `json:"end_date,omitempty"`
}

func RecurringCreated(rb domain.RecurringBooking) Event {
	return recurringEvent(rb, TopicRecurringCreated)
}

func RecurringCancelled(rb domain.RecurringBooking) Event {
	return recurringEvent(rb, TopicRecurringCancelled)
}

func recurringEvent(rb domain.RecurringBooking, eventType string) Event {
	payload, _ := json.Marshal(recurringPayload{
		RecurringBookingID: rb.ID,
		CoachID:            rb.CoachID,
		MemberID:           rb.MemberID,
		Weekday:            rb.Weekday,
		StartTime:          rb.Start.String(),
		EndTime:            rb.End.String(),
		StartDate:          rb.StartDate,
		EndDate:            rb.EndDate,
	})
	return Event{
		AggregateType: "recurring_booking",
		AggregateID:   rb.ID,
		EventType:     eventType,
		Payload:       payload,
	}
}
