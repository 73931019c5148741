package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/schedule"
	"github.com/coachbook/coachbook/internal/timegrid"
	"github.com/coachbook/coachbook/services/booking-service/internal/outbox"
)

type daySlotItem struct {
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
	Status    string       `json:"status"`
	Session   *sessionItem `json:"session,omitempty"`
	Block     *blockItem   `json:"block,omitempty"`
	Exception bool         `json:"is_exception,omitempty"`
	Template  bool         `json:"from_template,omitempty"`
}

type sessionItem struct {
	ID        string `json:"id"`
	Type      string `json:"session_type"`
	MemberID  string `json:"member_id,omitempty"`
	Title     string `json:"title,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	Capacity  int    `json:"capacity,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
	Recurring bool   `json:"is_recurring,omitempty"`
}

// Day renders a coach's working day as an ordered slot list: template slots
// classified free/booked/blocked plus exceptional slots from additions and
// standalone blocks.
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	coachID, ok := h.coachID(w, r)
	if !ok {
		return
	}

	dateRaw := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateRaw == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "date required")
		return
	}
	date, err := time.ParseInLocation(dateLayout, dateRaw, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid date")
		return
	}

	ctx := r.Context()
	weekly, err := h.avail.ListWeekly(ctx, coachID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dayEnd := date.AddDate(0, 0, 1)
	additions, err := h.avail.ListAdditions(ctx, coachID, date, dayEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	blocks, err := h.avail.ListBlocks(ctx, coachID, date, dayEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sessions, err := h.sessions.ListSessionsInRange(ctx, coachID, date, dayEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	settings, _, err := h.avail.GetSettings(ctx, coachID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slots := schedule.BuildDaySlots(schedule.DayInput{
		Date:        date,
		Weekly:      weekly,
		Additions:   additions,
		Blocks:      blocks,
		Sessions:    sessions,
		DefaultMins: int(settings.SlotDuration() / time.Minute),
	})

	items := make([]daySlotItem, 0, len(slots))
	for _, s := range slots {
		item := daySlotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			Status:    string(s.Status),
			Exception: s.Exception,
			Template:  s.Template,
		}
		if s.Session != nil {
			item.Session = sessionView(*s.Session)
		}
		if s.Block != nil {
			item.Block = &blockItem{
				ID:        s.Block.ID,
				StartTime: s.Block.Start.UTC().Format(time.RFC3339),
				EndTime:   s.Block.End.UTC().Format(time.RFC3339),
				Reason:    s.Block.Reason,
			}
		}
		items = append(items, item)
	}
	writeData(w, http.StatusOK, items)
}

type updateStatusRequest struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// UpdateStatus moves a session through its lifecycle. Cancelling also cancels
// every confirmed booking on the session.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	claims, ok := requireRole(w, r, RoleCoach)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	next := domain.SessionStatus(strings.TrimSpace(req.Status))
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "session_id required")
		return
	}

	ctx := r.Context()
	tx, err := h.sessions.Begin(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, err := h.sessions.GetSessionForUpdate(ctx, tx, req.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if session.CoachID != claims.Sub && claims.Role != RoleAdmin {
		writeDomainError(w, domain.ErrForbidden)
		return
	}
	if !session.Status.CanTransition(next) {
		writeDomainError(w, domain.ErrInvalidTransition)
		return
	}

	if err := h.sessions.UpdateSessionStatus(ctx, tx, session.ID, next); err != nil {
		writeDomainError(w, err)
		return
	}
	if next == domain.SessionCancelled {
		if err := h.sessions.CancelActiveBookings(ctx, tx, session.ID, domain.BookingCancelledByCoach); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.SessionCancelled(session, "")); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		writeDomainError(w, err)
		return
	}
	session.Status = next
	writeData(w, http.StatusOK, sessionView(session))
}

type batchCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"session_type"`
	RoomID      string `json:"room_id"`
	Capacity    int    `json:"capacity"`
	Weekdays    []int  `json:"weekdays"`
	Start       string `json:"start"`
	End         string `json:"end"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	// Weeks between occurrences; 1 (the default) means every week.
	FrequencyWeeks int `json:"frequency_weeks"`
	// Ad-hoc sessions are placed exactly where the coach asks, even outside
	// the weekly template. Set to true to reject occurrences the template
	// does not cover.
	EnforceAvailability bool `json:"enforce_availability"`
}

// BatchCreate materializes ad-hoc sessions on a weekly pattern, e.g. a class
// every Tuesday and Thursday evening for the next quarter.
func (h *Handler) BatchCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	claims, ok := requireRole(w, r, RoleCoach)
	if !ok {
		return
	}
	coachID := claims.Sub
	if claims.Role == RoleAdmin {
		if id := strings.TrimSpace(r.URL.Query().Get("coach_id")); id != "" {
			coachID = id
		}
	}

	var req batchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}

	sessionType := domain.SessionType(strings.TrimSpace(req.Type))
	if sessionType != domain.TypeOneToOne && sessionType != domain.TypeGroup {
		writeDomainError(w, domain.Invalid("session_type", "must be ONE_TO_ONE or GROUP"))
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
	if len(req.Weekdays) == 0 {
		writeDomainError(w, domain.Invalid("weekdays", "at least one weekday required"))
		return
	}
	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, wd := range req.Weekdays {
		if wd < 0 || wd > 6 {
			writeDomainError(w, domain.Invalid("weekdays", "must be 0..6"))
			return
		}
		weekdays = append(weekdays, time.Weekday(wd))
	}

	startDate, err := time.ParseInLocation(dateLayout, strings.TrimSpace(req.StartDate), time.UTC)
	if err != nil {
		writeDomainError(w, domain.Invalid("start_date", "expected YYYY-MM-DD"))
		return
	}
	endDate := startDate.AddDate(0, 3, 0)
	if raw := strings.TrimSpace(req.EndDate); raw != "" {
		endDate, err = time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			writeDomainError(w, domain.Invalid("end_date", "expected YYYY-MM-DD"))
			return
		}
	}
	if endDate.Before(startDate) {
		writeDomainError(w, domain.Invalid("end_date", "must not precede start_date"))
		return
	}

	ctx := r.Context()
	settings, _, err := h.avail.GetSettings(ctx, coachID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		roomID = settings.DefaultRoomID
	}
	capacity := req.Capacity
	if sessionType == domain.TypeOneToOne {
		capacity = 1
	} else if capacity <= 0 {
		capacity = settings.GroupCapacity
		if capacity <= 0 {
			capacity = domain.DefaultGroupCapacity
		}
	}

	var weekly []domain.WeeklyAvailability
	if req.EnforceAvailability {
		weekly, err = h.avail.ListWeekly(ctx, coachID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	now := h.now()
	var toCreate []domain.TrainingSession
	var skippedPast, skippedOutside int
	for _, day := range schedule.Expand(weekdays, startDate, endDate, req.FrequencyWeeks) {
		sessionStart := start.On(day)
		if !sessionStart.After(now) {
			skippedPast++
			continue
		}
		if req.EnforceAvailability && !schedule.WithinTemplate(sessionStart, end.On(day), weekly) {
			skippedOutside++
			continue
		}
		toCreate = append(toCreate, domain.TrainingSession{
			CoachID:     coachID,
			RoomID:      roomID,
			Title:       strings.TrimSpace(req.Title),
			Description: strings.TrimSpace(req.Description),
			Type:        sessionType,
			Capacity:    capacity,
			Start:       sessionStart,
			End:         end.On(day),
		})
	}

	created, err := h.sessions.InsertSessions(ctx, toCreate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]int{
		"created":          created,
		"skipped_existing": len(toCreate) - created,
		"skipped_past":     skippedPast,
		"skipped_outside":  skippedOutside,
	})
}

func sessionView(s domain.TrainingSession) *sessionItem {
	return &sessionItem{
		ID:        s.ID,
		Type:      string(s.Type),
		MemberID:  s.MemberID,
		Title:     s.Title,
		RoomID:    s.RoomID,
		Capacity:  s.Capacity,
		StartTime: s.Start.UTC().Format(time.RFC3339),
		EndTime:   s.End.UTC().Format(time.RFC3339),
		Status:    string(s.Status),
		Recurring: s.Recurring,
	}
}
