package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/timegrid"
	"github.com/coachbook/coachbook/services/booking-service/internal/outbox"
)

type createRecurringRequest struct {
	CoachID   string `json:"coach_id"`
	Weekday   int    `json:"weekday"`
	Start     string `json:"start"`
	End       string `json:"end"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type recurringItem struct {
	ID        string `json:"id"`
	CoachID   string `json:"coach_id"`
	MemberID  string `json:"member_id"`
	Weekday   int    `json:"weekday"`
	Start     string `json:"start"`
	End       string `json:"end"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Status    string `json:"status"`
}

// CreateRecurring registers a standing weekly reservation. The sessions
// themselves are materialized asynchronously by the scheduler, triggered by
// the created event.
func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	claims, ok := requireRole(w, r, RoleMember)
	if !ok {
		return
	}

	var req createRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}
	req.CoachID = strings.TrimSpace(req.CoachID)
	if req.CoachID == "" {
		writeDomainError(w, domain.Invalid("coach_id", "required"))
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		writeDomainError(w, domain.Invalid("weekday", "must be 0..6"))
		return
	}
	start, err := timegrid.ParseTimeOfDay(req.Start)
	if err != nil {
		writeDomainError(w, domain.Invalid("start", err.Error()))
		return
	}
	end, err := timegrid.ParseTimeOfDay(req.End)
	if err != nil {
		writeDomainError(w, domain.Invalid("end", err.Error()))
		return
	}
	if end <= start {
		writeDomainError(w, domain.Invalid("end", "must be after start"))
		return
	}

	startDate := h.now().Truncate(24 * time.Hour)
	if raw := strings.TrimSpace(req.StartDate); raw != "" {
		startDate, err = time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			writeDomainError(w, domain.Invalid("start_date", "expected YYYY-MM-DD"))
			return
		}
	}
	var endDate *time.Time
	if raw := strings.TrimSpace(req.EndDate); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			writeDomainError(w, domain.Invalid("end_date", "expected YYYY-MM-DD"))
			return
		}
		if parsed.Before(startDate) {
			writeDomainError(w, domain.Invalid("end_date", "must not precede start_date"))
			return
		}
		endDate = &parsed
	}

	ctx := r.Context()
	if _, err := h.avail.GetCoach(ctx, req.CoachID); err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.recurring.Begin(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rb, err := h.recurring.Create(ctx, tx, domain.RecurringBooking{
		CoachID:   req.CoachID,
		MemberID:  claims.Sub,
		Weekday:   req.Weekday,
		Start:     start,
		End:       end,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.RecurringCreated(rb)); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, recurringView(rb))
}

type cancelRecurringRequest struct {
	RecurringBookingID string `json:"recurring_booking_id"`
}

// CancelRecurring deactivates the reservation and cancels only its future
// sessions; past occurrences keep their history.
func (h *Handler) CancelRecurring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	claims, ok := requireRole(w, r, RoleMember, RoleCoach)
	if !ok {
		return
	}

	var req cancelRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}
	req.RecurringBookingID = strings.TrimSpace(req.RecurringBookingID)
	if req.RecurringBookingID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "recurring_booking_id required")
		return
	}

	ctx := r.Context()
	rb, err := h.recurring.Get(ctx, req.RecurringBookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	by := domain.CancelledStatusFor(domain.ActorMember)
	switch claims.Role {
	case RoleMember:
		if rb.MemberID != claims.Sub {
			writeDomainError(w, domain.ErrForbidden)
			return
		}
	case RoleCoach:
		if rb.CoachID != claims.Sub {
			writeDomainError(w, domain.ErrForbidden)
			return
		}
		by = domain.CancelledStatusFor(domain.ActorCoach)
	}

	tx, err := h.recurring.Begin(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.recurring.Cancel(ctx, tx, rb.ID, h.now(), by); err != nil {
		writeDomainError(w, err)
		return
	}
	rb.Status = domain.RecurringCancelled
	if err := h.outboxRepo.Insert(ctx, tx, outbox.RecurringCancelled(rb)); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, recurringView(rb))
}

func recurringView(rb domain.RecurringBooking) recurringItem {
	item := recurringItem{
		ID:        rb.ID,
		CoachID:   rb.CoachID,
		MemberID:  rb.MemberID,
		Weekday:   rb.Weekday,
		Start:     rb.Start.String(),
		End:       rb.End.String(),
		StartDate: rb.StartDate.UTC().Format(dateLayout),
		Status:    string(rb.Status),
	}
	if rb.EndDate != nil {
		item.EndDate = rb.EndDate.UTC().Format(dateLayout)
	}
	return item
}
