package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/internal/timegrid"
)

type weeklySlotItem struct {
	ID           string `json:"id,omitempty"`
	Weekday      int    `json:"weekday"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Individual   bool   `json:"is_individual"`
	Group        bool   `json:"is_group"`
	RoomID       string `json:"room_id,omitempty"`
	DurationMins int    `json:"duration_minutes,omitempty"`
}

// coachID resolves whose schedule the request targets: the caller's own for
// coaches, any coach via query param for admins.
func (h *Handler) coachID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := requireRole(w, r, RoleCoach)
	if !ok {
		return "", false
	}
	if claims.Role == RoleAdmin {
		if id := strings.TrimSpace(r.URL.Query().Get("coach_id")); id != "" {
			return id, true
		}
	}
	return claims.Sub, true
}

// Weekly serves the coach's weekly template: GET lists it, PUT replaces all
// rows of one weekday atomically.
func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listWeekly(w, r)
	case http.MethodPut:
		h.replaceWeekday(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (h *Handler) listWeekly(w http.ResponseWriter, r *http.Request) {
	coachID, ok := h.coachID(w, r)
	if !ok {
		return
	}
	weekly, err := h.avail.ListWeekly(r.Context(), coachID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]weeklySlotItem, 0, len(weekly))
	for _, row := range weekly {
		items = append(items, weeklySlotItem{
			ID:           row.ID,
			Weekday:      row.Weekday,
			Start:        row.Start.String(),
			End:          row.End.String(),
			Individual:   row.Individual,
			Group:        row.Group,
			RoomID:       row.RoomID,
			DurationMins: row.DurationMins,
		})
	}
	writeData(w, http.StatusOK, items)
}

type replaceWeekdayRequest struct {
	Weekday int              `json:"weekday"`
	Slots   []weeklySlotItem `json:"slots"`
}

func (h *Handler) replaceWeekday(w http.ResponseWriter, r *http.Request) {
	coachID, ok := h.coachID(w, r)
	if !ok {
		return
	}
	var req replaceWeekdayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		writeDomainError(w, domain.Invalid("weekday", "must be 0..6"))
		return
	}

	rows := make([]domain.WeeklyAvailability, 0, len(req.Slots))
	for _, item := range req.Slots {
		start, err := timegrid.ParseTimeOfDay(item.Start)
		if err != nil {
			writeDomainError(w, domain.Invalid("start", err.Error()))
			return
		}
		end, err := timegrid.ParseTimeOfDay(item.End)
		if err != nil {
			writeDomainError(w, domain.Invalid("end", err.Error()))
			return
		}
		if end <= start {
			writeDomainError(w, domain.Invalid("end", "must be after start"))
			return
		}
		if !item.Individual && !item.Group {
			writeDomainError(w, domain.Invalid("slots", "each window must allow individual or group sessions"))
			return
		}
		rows = append(rows, domain.WeeklyAvailability{
			CoachID:      coachID,
			Weekday:      req.Weekday,
			Start:        start,
			End:          end,
			Individual:   item.Individual,
			Group:        item.Group,
			RoomID:       strings.TrimSpace(item.RoomID),
			DurationMins: item.DurationMins,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Start < rows[j].Start })
	for i := 1; i < len(rows); i++ {
		if rows[i].Start < rows[i-1].End {
			writeDomainError(w, domain.Invalid("slots", "windows overlap"))
			return
		}
	}

	if err := h.avail.ReplaceWeekday(r.Context(), coachID, req.Weekday, rows); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"weekday": req.Weekday, "slots": len(rows)})
}

type additionItem struct {
	ID         string `json:"id,omitempty"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Individual bool   `json:"is_individual"`
	Group      bool   `json:"is_group"`
	RoomID     string `json:"room_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Additions manages one-off availability windows.
func (h *Handler) Additions(w http.ResponseWriter, r *http.Request) {
	coachID, ok := h.coachID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		from, to, err := parseDateRange(r, h.now())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		additions, err := h.avail.ListAdditions(r.Context(), coachID, from, to.AddDate(0, 0, 1))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := make([]additionItem, 0, len(additions))
		for _, a := range additions {
			items = append(items, additionItem{
				ID:         a.ID,
				StartTime:  a.Start.UTC().Format(time.RFC3339),
				EndTime:    a.End.UTC().Format(time.RFC3339),
				Individual: a.Individual,
				Group:      a.Group,
				RoomID:     a.RoomID,
				Reason:     a.Reason,
			})
		}
		writeData(w, http.StatusOK, items)
	case http.MethodPost:
		var req additionItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
			return
		}
		start, end, err := parseInterval(req.StartTime, req.EndTime)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !timegrid.SameDate(start, end.Add(-time.Nanosecond)) {
			writeDomainError(w, domain.Invalid("end_time", "addition must stay within one calendar day"))
			return
		}
		id, err := h.avail.CreateAddition(r.Context(), domain.AvailabilityAddition{
			CoachID:    coachID,
			Start:      start,
			End:        end,
			Individual: req.Individual,
			Group:      req.Group,
			RoomID:     strings.TrimSpace(req.RoomID),
			Reason:     strings.TrimSpace(req.Reason),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]string{"id": id})
	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "id required")
			return
		}
		if err := h.avail.DeleteAddition(r.Context(), coachID, id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

type blockItem struct {
	ID        string `json:"id,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

// Blocks manages explicit unavailability overrides.
func (h *Handler) Blocks(w http.ResponseWriter, r *http.Request) {
	coachID, ok := h.coachID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		from, to, err := parseDateRange(r, h.now())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		blocks, err := h.avail.ListBlocks(r.Context(), coachID, from, to.AddDate(0, 0, 1))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items := make([]blockItem, 0, len(blocks))
		for _, b := range blocks {
			items = append(items, blockItem{
				ID:        b.ID,
				StartTime: b.Start.UTC().Format(time.RFC3339),
				EndTime:   b.End.UTC().Format(time.RFC3339),
				Reason:    b.Reason,
			})
		}
		writeData(w, http.StatusOK, items)
	case http.MethodPost:
		var req blockItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
			return
		}
		start, end, err := parseInterval(req.StartTime, req.EndTime)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		id, err := h.avail.CreateBlock(r.Context(), domain.BlockedSlot{
			CoachID: coachID,
			Start:   start,
			End:     end,
			Reason:  strings.TrimSpace(req.Reason),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]string{"id": id})
	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "id required")
			return
		}
		if err := h.avail.DeleteBlock(r.Context(), coachID, id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func parseInterval(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(startRaw))
	if err != nil {
		return time.Time{}, time.Time{}, domain.Invalid("start_time", "expected RFC3339")
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(endRaw))
	if err != nil {
		return time.Time{}, time.Time{}, domain.Invalid("end_time", "expected RFC3339")
	}
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return time.Time{}, time.Time{}, domain.Invalid("end_time", "must be after start_time")
	}
	return start, end, nil
}
