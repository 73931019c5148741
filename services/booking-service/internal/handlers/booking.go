package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/schedule"
	"github.com/coachbook/coachbook/services/booking-service/internal/outbox"
	"github.com/coachbook/coachbook/services/booking-service/internal/storage"
)

type slotItem struct {
	CoachID   string `json:"coach_id"`
	CoachName string `json:"coach_name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Slots lists open 1:1 slots, for one coach or across all active coaches.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	from, to, err := parseDateRange(r, h.now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	coaches, err := h.resolveCoaches(r.Context(), strings.TrimSpace(r.URL.Query().Get("coach_id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var all []schedule.OpenSlot
	for _, coach := range coaches {
		slots, err := h.openSlotsFor(r.Context(), coach, from, to)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		all = append(all, slots...)
	}
	schedule.SortOpenSlots(all)

	items := make([]slotItem, 0, len(all))
	for _, s := range all {
		items = append(items, slotItem{
			CoachID:   s.CoachID,
			CoachName: s.CoachName,
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	writeData(w, http.StatusOK, items)
}

func (h *Handler) resolveCoaches(ctx context.Context, coachID string) ([]domain.Coach, error) {
	if coachID == "" {
		return h.avail.ListCoaches(ctx)
	}
	coach, err := h.avail.GetCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	return []domain.Coach{coach}, nil
}

func (h *Handler) openSlotsFor(ctx context.Context, coach domain.Coach, from, to time.Time) ([]schedule.OpenSlot, error) {
	weekly, err := h.avail.ListWeekly(ctx, coach.ID)
	if err != nil {
		return nil, err
	}
	blocks, err := h.avail.ListBlocks(ctx, coach.ID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	starts, err := h.sessions.ListSessionStarts(ctx, coach.ID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	settings, _, err := h.avail.GetSettings(ctx, coach.ID)
	if err != nil {
		return nil, err
	}
	return schedule.OpenSlots(schedule.ProjectInput{
		Coach:         coach,
		Weekly:        weekly,
		Blocks:        blocks,
		SessionStarts: starts,
		From:          from,
		To:            to,
		Now:           h.now(),
		DefaultMins:   int(settings.SlotDuration() / time.Minute),
	}), nil
}

type bookRequest struct {
	CoachID   string `json:"coach_id"`
	StartTime string `json:"start_time"`
	SessionID string `json:"session_id"`
}

type bookingItem struct {
	BookingID   string `json:"booking_id"`
	SessionID   string `json:"session_id"`
	CoachID     string `json:"coach_id"`
	Type        string `json:"session_type"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

// Book creates a booking. A coach_id plus start_time books a fresh 1:1 slot;
// a session_id joins an existing group class.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	claims, ok := requireRole(w, r, RoleMember)
	if !ok {
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}
	req.CoachID = strings.TrimSpace(req.CoachID)
	req.SessionID = strings.TrimSpace(req.SessionID)

	switch {
	case req.SessionID != "":
		h.joinGroupSession(w, r, claims.Sub, req.SessionID)
	case req.CoachID != "":
		h.bookSlot(w, r, claims.Sub, req)
	default:
		writeError(w, http.StatusBadRequest, "validation_error", "coach_id or session_id required")
	}
}

func (h *Handler) bookSlot(w http.ResponseWriter, r *http.Request, memberID string, req bookRequest) {
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid start_time")
		return
	}
	start = start.UTC()
	if !start.After(h.now()) {
		writeError(w, http.StatusBadRequest, "validation_error", "start_time must be in the future")
		return
	}

	ctx := r.Context()
	coach, err := h.avail.GetCoach(ctx, req.CoachID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Re-project the day to confirm the requested slot is genuinely open.
	day := start.Truncate(24 * time.Hour)
	open, err := h.openSlotsFor(ctx, coach, day, day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var slot *schedule.OpenSlot
	for i := range open {
		if open[i].Start.Equal(start) {
			slot = &open[i]
			break
		}
	}
	if slot == nil {
		writeDomainError(w, domain.ErrConflict)
		return
	}

	roomID, err := h.resolveRoom(ctx, coach.ID, start)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.sessions.Begin(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, err := h.sessions.CreateSession(ctx, tx, domain.TrainingSession{
		CoachID:  coach.ID,
		RoomID:   roomID,
		MemberID: memberID,
		Type:     domain.TypeOneToOne,
		Capacity: 1,
		Start:    slot.Start,
		End:      slot.End,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	booking, err := h.sessions.CreateBooking(ctx, tx, domain.Booking{
		SessionID: session.ID,
		MemberID:  memberID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.SessionBooked(session, booking)); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, bookingView(booking, session))
}

// resolveRoom picks the room of the template row covering the start instant,
// falling back to the coach's default room.
func (h *Handler) resolveRoom(ctx context.Context, coachID string, start time.Time) (string, error) {
	weekly, err := h.avail.ListWeekly(ctx, coachID)
	if err != nil {
		return "", err
	}
	weekday := int(start.Weekday())
	minute := start.Hour()*60 + start.Minute()
	for _, row := range weekly {
		if row.Weekday == weekday && minute >= int(row.Start) && minute < int(row.End) && row.RoomID != "" {
			return row.RoomID, nil
		}
	}
	settings, _, err := h.avail.GetSettings(ctx, coachID)
	if err != nil {
		return "", err
	}
	return settings.DefaultRoomID, nil
}

func (h *Handler) joinGroupSession(w http.ResponseWriter, r *http.Request, memberID, sessionID string) {
	ctx := r.Context()
	tx, err := h.sessions.Begin(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, err := h.sessions.GetSessionForUpdate(ctx, tx, sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if session.Type != domain.TypeGroup {
		writeError(w, http.StatusBadRequest, "validation_error", "session is not a group class")
		return
	}
	if session.Status != domain.SessionScheduled || !session.Start.After(h.now()) {
		writeDomainError(w, domain.ErrConflict)
		return
	}

	count, err := h.sessions.CountActiveBookings(ctx, tx, session.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if session.Capacity > 0 && count >= session.Capacity {
		writeDomainError(w, domain.ErrCapacityExceeded)
		return
	}

	booking, err := h.sessions.CreateBooking(ctx, tx, domain.Booking{
		SessionID: session.ID,
		MemberID:  memberID,
	})
	if err != nil {
		if storage.IsConflict(err) || err == domain.ErrConflict {
			writeError(w, http.StatusConflict, "already_booked", "member already booked on this session")
			return
		}
		writeDomainError(w, err)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.SessionBooked(session, booking)); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, bookingView(booking, session))
}

// MyBookings lists the caller's bookings whose sessions start after from
// (default: now).
func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	claims, ok := requireRole(w, r, RoleMember)
	if !ok {
		return
	}

	from := h.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid from date")
			return
		}
		from = parsed
	}

	bookings, sessions, err := h.sessions.ListBookingsByMember(r.Context(), claims.Sub, from)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]bookingItem, 0, len(bookings))
	for i := range bookings {
		items = append(items, bookingView(bookings[i], sessions[i]))
	}
	writeData(w, http.StatusOK, items)
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
}

// CancelBooking cancels a member's future booking. Cancelling the only
// booking of a 1:1 session cancels the session too; a group session stays
// scheduled for the other participants.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	claims, ok := requireRole(w, r, RoleMember)
	if !ok {
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "booking_id required")
		return
	}

	ctx := r.Context()
	booking, err := h.sessions.GetBooking(ctx, req.BookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if booking.MemberID != claims.Sub && claims.Role != RoleAdmin {
		writeDomainError(w, domain.ErrForbidden)
		return
	}

	tx, err := h.sessions.Begin(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, err := h.sessions.GetSessionForUpdate(ctx, tx, booking.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !session.Start.After(h.now()) {
		writeError(w, http.StatusConflict, "too_late", "session has already started")
		return
	}

	if err := h.sessions.CancelBooking(ctx, tx, booking.ID, domain.BookingCancelledByMember); err != nil {
		writeDomainError(w, err)
		return
	}
	evt := outbox.BookingCancelled(session, booking)
	if session.Type == domain.TypeOneToOne && session.Status == domain.SessionScheduled {
		if err := h.sessions.UpdateSessionStatus(ctx, tx, session.ID, domain.SessionCancelled); err != nil {
			writeDomainError(w, err)
			return
		}
		evt = outbox.SessionCancelled(session, booking.MemberID)
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{
		"booking_id": booking.ID,
		"status":     string(domain.BookingCancelledByMember),
	})
}

func bookingView(b domain.Booking, s domain.TrainingSession) bookingItem {
	item := bookingItem{
		BookingID: b.ID,
		SessionID: s.ID,
		CoachID:   s.CoachID,
		Type:      string(s.Type),
		StartTime: s.Start.UTC().Format(time.RFC3339),
		EndTime:   s.End.UTC().Format(time.RFC3339),
		Status:    string(b.Status),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func parseDateRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 13)

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Invalid("from", "expected YYYY-MM-DD")
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Invalid("to", "expected YYYY-MM-DD")
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, domain.Invalid("to", "must not precede from")
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, domain.Invalid("to", "range too wide")
	}
	return from, to, nil
}
