package domain

// Actor identifies who initiates a cancellation.
type Actor string

const (
	ActorMember Actor = "member"
	ActorCoach  Actor = "coach"
)

// CanTransition reports whether a session may move from one status to
// another. scheduled is the only non-terminal state.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s != SessionScheduled {
		return false
	}
	switch next {
	case SessionCompleted, SessionCancelled, SessionNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave this status.
func (s SessionStatus) Terminal() bool {
	return s != SessionScheduled
}

// CancelledStatusFor maps the cancelling actor to the booking status the
// cancellation records. History is preserved: bookings are never deleted.
func CancelledStatusFor(actor Actor) BookingStatus {
	if actor == ActorCoach {
		return BookingCancelledByCoach
	}
	return BookingCancelledByMember
}

// Active reports whether the booking still occupies session capacity.
func (b BookingStatus) Active() bool {
	return b == BookingConfirmed
}
