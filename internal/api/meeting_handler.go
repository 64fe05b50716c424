package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tkteam/meeting-assistant/internal/api/middleware"
	"github.com/tkteam/meeting-assistant/internal/storage"
)

// MeetingHandler serves meeting and action-item CRUD.
type MeetingHandler struct {
	meetings storage.MeetingStore
	items    storage.ActionItemStore
	users    storage.UserStore
	validate *validator.Validate
}

func NewMeetingHandler(meetings storage.MeetingStore, items storage.ActionItemStore, users storage.UserStore) *MeetingHandler {
	return &MeetingHandler{
		meetings: meetings,
		items:    items,
		users:    users,
		validate: validator.New(),
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// parseDate accepts an ISO date or datetime string, keeping the date part.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return nil
	}
	d, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return nil
	}
	return &d
}

func (h *MeetingHandler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.meetings.ListMeetings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if meetings == nil {
		meetings = []storage.Meeting{}
	}
	respondJSON(w, http.StatusOK, meetings)
}

func (h *MeetingHandler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid meeting id")
		return
	}

	meeting, err := h.meetings.GetMeeting(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "meeting not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, meeting)
}

type createMeetingRequest struct {
	Topic       string `json:"topic"        validate:"required"`
	MeetingDate string `json:"meeting_date" validate:"required"`
}

func (h *MeetingHandler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "topic and meeting_date are required")
		return
	}

	date, err := time.Parse(time.RFC3339, req.MeetingDate)
	if err != nil {
		if d := parseDate(req.MeetingDate); d != nil {
			date = *d
		} else {
			respondError(w, http.StatusBadRequest, "invalid date format for meeting_date")
			return
		}
	}

	var createdBy *int64
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		createdBy = &claims.UserID
	}

	meeting, err := h.meetings.CreateMeeting(r.Context(), req.Topic, date, createdBy)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, meeting)
}

func (h *MeetingHandler) ListActionItems(w http.ResponseWriter, r *http.Request) {
	meetingID, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid meeting id")
		return
	}
	if _, err := h.meetings.GetMeeting(r.Context(), meetingID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "meeting not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items, err := h.items.ListActionItemsByMeeting(r.Context(), meetingID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []storage.ActionItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

// actionItemRow tolerates the extractor's key variants: item or context,
// owner_id or an owner username, due_date or duedate.
type actionItemRow struct {
	MeetingID  int64  `json:"meeting_id"`
	Item       string `json:"item"`
	Context    string `json:"context"`
	Action     string `json:"action"`
	OwnerID    *int64 `json:"owner_id"`
	Owner      string `json:"owner"`
	DueDate    string `json:"due_date"`
	DueDateAlt string `json:"duedate"`
	Status     string `json:"status"`
}

// resolveOwnerID maps an owner username onto a user id; unknown names map
// to null, matching how previews are saved.
func (h *MeetingHandler) resolveOwnerID(ctx context.Context, owner string) *int64 {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil
	}
	user, err := h.users.GetUserByUsername(ctx, owner)
	if err != nil {
		return nil
	}
	return &user.ID
}

func (h *MeetingHandler) newActionItem(ctx context.Context, meetingID int64, row actionItemRow) storage.NewActionItem {
	itemText := strings.TrimSpace(row.Item)
	if itemText == "" {
		itemText = strings.TrimSpace(row.Context)
	}
	var item *string
	if itemText != "" {
		item = &itemText
	}

	ownerID := row.OwnerID
	if ownerID == nil {
		ownerID = h.resolveOwnerID(ctx, row.Owner)
	}

	due := row.DueDate
	if due == "" {
		due = row.DueDateAlt
	}

	status := strings.TrimSpace(row.Status)
	if status == "" {
		status = "pending"
	}

	return storage.NewActionItem{
		MeetingID: meetingID,
		Item:      item,
		Action:    strings.TrimSpace(row.Action),
		OwnerID:   ownerID,
		DueDate:   parseDate(due),
		Status:    status,
	}
}

// CreateActionItem creates a single action item.
func (h *MeetingHandler) CreateActionItem(w http.ResponseWriter, r *http.Request) {
	var row actionItemRow
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if row.MeetingID == 0 {
		respondError(w, http.StatusBadRequest, "meeting_id is required")
		return
	}
	if strings.TrimSpace(row.Action) == "" {
		respondError(w, http.StatusBadRequest, "action is required")
		return
	}
	if _, err := h.meetings.GetMeeting(r.Context(), row.MeetingID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "meeting not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	item, err := h.items.CreateActionItem(r.Context(), h.newActionItem(r.Context(), row.MeetingID, row))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

type batchCreateRequest struct {
	Items []actionItemRow `json:"items"`
}

// BatchCreateActionItems saves an AI preview in one call. Rows without an
// action are skipped rather than failing the batch.
func (h *MeetingHandler) BatchCreateActionItems(w http.ResponseWriter, r *http.Request) {
	meetingID, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid meeting id")
		return
	}

	var req batchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items must be a non-empty array")
		return
	}
	if _, err := h.meetings.GetMeeting(r.Context(), meetingID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "meeting not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	created := []storage.ActionItem{}
	for _, row := range req.Items {
		if strings.TrimSpace(row.Action) == "" {
			continue
		}
		payload := h.newActionItem(r.Context(), meetingID, row)
		payload.Status = "pending"
		item, err := h.items.CreateActionItem(r.Context(), payload)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		created = append(created, *item)
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *MeetingHandler) GetActionItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid action item id")
		return
	}

	item, err := h.items.GetActionItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "action item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, item)
}

type updateActionItemRequest struct {
	Item    *string `json:"item"`
	Action  *string `json:"action"`
	Status  *string `json:"status"`
	DueDate *string `json:"due_date"`
}

// UpdateActionItem applies a partial update; absent fields keep their value.
func (h *MeetingHandler) UpdateActionItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid action item id")
		return
	}

	item, err := h.items.GetActionItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "action item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req updateActionItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Item != nil {
		item.Item = req.Item
	}
	if req.Action != nil {
		item.Action = *req.Action
	}
	if req.Status != nil {
		item.Status = *req.Status
	}
	if req.DueDate != nil && *req.DueDate != "" {
		item.DueDate = parseDate(*req.DueDate)
	}

	if err := h.items.UpdateActionItem(r.Context(), item); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *MeetingHandler) DeleteActionItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid action item id")
		return
	}

	if err := h.items.DeleteActionItem(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "action item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"msg": "action item deleted"})
}
