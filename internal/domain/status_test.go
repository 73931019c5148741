package domain

import "testing"

func TestSessionTransitions(t *testing.T) {
	for _, next := range []SessionStatus{SessionCompleted, SessionCancelled, SessionNoShow} {
		if !SessionScheduled.CanTransition(next) {
			t.Fatalf("scheduled -> %s should be allowed", next)
		}
	}
	for _, terminal := range []SessionStatus{SessionCompleted, SessionCancelled, SessionNoShow} {
		for _, next := range []SessionStatus{SessionScheduled, SessionCompleted, SessionCancelled, SessionNoShow} {
			if terminal.CanTransition(next) {
				t.Fatalf("%s -> %s should be rejected", terminal, next)
			}
		}
		if !terminal.Terminal() {
			t.Fatalf("%s should be terminal", terminal)
		}
	}
	if SessionScheduled.CanTransition(SessionScheduled) {
		t.Fatal("scheduled -> scheduled should be rejected")
	}
}

func TestCancelledStatusFor(t *testing.T) {
	if got := CancelledStatusFor(ActorMember); got != BookingCancelledByMember {
		t.Fatalf("member cancel = %s", got)
	}
	if got := CancelledStatusFor(ActorCoach); got != BookingCancelledByCoach {
		t.Fatalf("coach cancel = %s", got)
	}
	if BookingCancelledByMember.Active() || BookingCancelledByCoach.Active() {
		t.Fatal("cancelled bookings must not count against capacity")
	}
	if !BookingConfirmed.Active() {
		t.Fatal("confirmed booking must count against capacity")
	}
}
