package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/schedule"
	"github.com/coachbook/coachbook/services/booking-service/internal/outbox"
)

// Conflicts lists the coach's scheduled sessions that no longer fit the
// weekly template, typically after a schedule edit.
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	coachID, ok := h.coachID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	sessions, err := h.sessions.ListScheduledByCoach(ctx, coachID, h.now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	weekly, err := h.avail.ListWeekly(ctx, coachID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	additions, err := h.avail.ListAdditions(ctx, coachID, h.now(), h.now().AddDate(1, 0, 0))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	conflicts := schedule.OutsideAvailability(sessions, weekly, additions)
	items := make([]*sessionItem, 0, len(conflicts))
	for _, s := range conflicts {
		items = append(items, sessionView(s))
	}
	writeData(w, http.StatusOK, items)
}

type resolveConflictRequest struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"` // keep_exception | cancel
}

// ResolveConflict settles one drifted session: keep_exception absorbs it via
// a one-off availability addition, cancel cancels it and its bookings.
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	claims, ok := requireRole(w, r, RoleCoach)
	if !ok {
		return
	}

	var req resolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Action = strings.TrimSpace(req.Action)
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "session_id required")
		return
	}

	ctx := r.Context()
	session, err := h.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if session.CoachID != claims.Sub && claims.Role != RoleAdmin {
		writeDomainError(w, domain.ErrForbidden)
		return
	}

	switch req.Action {
	case "keep_exception":
		id, err := h.avail.CreateAddition(ctx, schedule.AdditionFor(session))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{
			"session_id":  session.ID,
			"addition_id": id,
			"resolution":  "kept",
		})
	case "cancel":
		tx, err := h.sessions.Begin(ctx)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		defer func() { _ = tx.Rollback(ctx) }()

		locked, err := h.sessions.GetSessionForUpdate(ctx, tx, session.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !locked.Status.CanTransition(domain.SessionCancelled) {
			writeDomainError(w, domain.ErrInvalidTransition)
			return
		}
		if err := h.sessions.UpdateSessionStatus(ctx, tx, locked.ID, domain.SessionCancelled); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := h.sessions.CancelActiveBookings(ctx, tx, locked.ID, domain.BookingCancelledByCoach); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.SessionCancelled(locked, "")); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			writeDomainError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{
			"session_id": session.ID,
			"resolution": "cancelled",
		})
	default:
		writeDomainError(w, domain.Invalid("action", "must be keep_exception or cancel"))
	}
}
