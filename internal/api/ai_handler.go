package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/tkteam/meeting-assistant/internal/ai"
	"github.com/tkteam/meeting-assistant/internal/executor"
)

// AIHandler serves the synchronous assistant endpoints used for short texts
// where polling would be overkill.
type AIHandler struct {
	assistant     ai.Assistant
	translatorKey string
	summarizerKey string
	extractorKey  string
	validate      *validator.Validate
}

func NewAIHandler(assistant ai.Assistant, translatorKey, summarizerKey, extractorKey string) *AIHandler {
	return &AIHandler{
		assistant:     assistant,
		translatorKey: translatorKey,
		summarizerKey: summarizerKey,
		extractorKey:  extractorKey,
		validate:      validator.New(),
	}
}

type translateTextRequest struct {
	Text       string `json:"text" validate:"required"`
	TargetLang string `json:"target_lang"`
}

func (h *AIHandler) TranslateText(w http.ResponseWriter, r *http.Request) {
	var req translateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.TargetLang == "" {
		req.TargetLang = "English"
	}

	resp, err := h.assistant.Chat(r.Context(), h.translatorKey, ai.ChatRequest{
		Query:  "Target language: " + req.TargetLang + "\nText to translate:\n" + req.Text,
		UserID: userIDFrom(r),
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"translated": resp.Answer})
}

type summarizeTextRequest struct {
	Text string `json:"text" validate:"required"`
}

func (h *AIHandler) SummarizeText(w http.ResponseWriter, r *http.Request) {
	var req summarizeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.assistant.Chat(r.Context(), h.summarizerKey, ai.ChatRequest{
		Query:  "Summarize for English: " + req.Text,
		UserID: userIDFrom(r),
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"summary": resp.Answer})
}

// PreviewActionItemsSync extracts action items in one request and returns the
// parsed rows without creating anything.
func (h *AIHandler) PreviewActionItemsSync(w http.ResponseWriter, r *http.Request) {
	var req summarizeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.assistant.Chat(r.Context(), h.extractorKey, ai.ChatRequest{
		Query:  req.Text,
		UserID: userIDFrom(r),
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	items, err := executor.ParseActionItems(resp.Answer)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}
