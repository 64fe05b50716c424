package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tkteam/meeting-assistant/internal/api/middleware"
	"github.com/tkteam/meeting-assistant/internal/dispatch"
	"github.com/tkteam/meeting-assistant/internal/executor"
	"github.com/tkteam/meeting-assistant/internal/queue"
	"github.com/tkteam/meeting-assistant/internal/task"
	"github.com/tkteam/meeting-assistant/internal/taskstore"
)

// JobHandler serves the asynchronous job API: generic enqueue, the
// upload-bound job routes, status polling, cancellation and downloads.
type JobHandler struct {
	dispatcher *dispatch.Dispatcher
	store      *taskstore.Store
	queue      *queue.Queue
	uploadDir  string
	maxUpload  int64
	validate   *validator.Validate
}

func NewJobHandler(d *dispatch.Dispatcher, s *taskstore.Store, q *queue.Queue, uploadDir string, maxUpload int64) *JobHandler {
	return &JobHandler{
		dispatcher: d,
		store:      s,
		queue:      q,
		uploadDir:  uploadDir,
		maxUpload:  maxUpload,
		validate:   validator.New(),
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type enqueueResponse struct {
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
}

type createJobRequest struct {
	Kind string          `json:"kind"       validate:"required"`
	Args json.RawMessage `json:"args"       validate:"required"`
}

// CreateJob accepts {kind, args} and returns 202 immediately; execution
// happens in the worker pool and is observed by polling.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "kind and args are required")
		return
	}

	kind := task.Kind(req.Kind)
	if !kind.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown job kind %q", req.Kind))
		return
	}

	h.enqueue(w, r, kind, req.Args)
}

// enqueue runs the dispatcher and writes the 202 response, mapping the
// synchronous error taxonomy onto status codes.
func (h *JobHandler) enqueue(w http.ResponseWriter, r *http.Request, kind task.Kind, args any) {
	raw, err := json.Marshal(args)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	taskID, err := h.dispatcher.Enqueue(r.Context(), kind, raw)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrValidation):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, task.ErrInfrastructure):
			respondError(w, http.StatusBadGateway, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusAccepted, enqueueResponse{
		TaskID:    taskID,
		StatusURL: "/api/jobs/" + taskID,
	})
}

type jobStatusResponse struct {
	TaskID           string         `json:"task_id"`
	State            task.State     `json:"state"`
	Progress         *task.Progress `json:"progress,omitempty"`
	Result           *task.Result   `json:"result,omitempty"`
	Error            string         `json:"error,omitempty"`
	DownloadFilename string         `json:"download_filename,omitempty"`
}

// GetJob returns the task snapshot for polling clients.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "task not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := jobStatusResponse{
		TaskID:   t.ID,
		State:    t.State,
		Progress: t.Progress,
		Result:   t.Result,
		Error:    t.Error,
	}
	if t.State == task.StateSuccess && t.Result != nil && t.Result.ResultPath != "" {
		resp.DownloadFilename = executor.DownloadFilename(t.Result.ResultPath)
	}
	respondJSON(w, http.StatusOK, resp)
}

// CancelJob is best effort and idempotent: the store write wins or loses the
// race with natural completion, and the cancel signal stops an in-flight
// executor. The resulting terminal state is returned either way.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	final, err := h.store.MarkRevoked(r.Context(), id)
	if err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "task not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = h.queue.PublishCancel(r.Context(), id)

	respondJSON(w, http.StatusOK, map[string]task.State{"state": final})
}

// saveUploadedFile stores the multipart "file" part under a fresh uuid name
// and returns its path.
func (h *JobHandler) saveUploadedFile(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("no file part in request")
	}
	defer file.Close()

	if header.Filename == "" {
		return "", fmt.Errorf("no file selected")
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", err
	}
	name := uuid.New().String() + filepath.Ext(header.Filename)
	path := filepath.Join(h.uploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return path, nil
}

func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// ExtractAudio uploads a media file and enqueues an extract_audio job.
func (h *JobHandler) ExtractAudio(w http.ResponseWriter, r *http.Request) {
	inputPath, err := h.saveUploadedFile(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.enqueue(w, r, task.KindExtractAudio, task.ExtractAudioArgs{
		InputPath:  inputPath,
		OutputPath: trimExt(inputPath) + ".wav",
	})
}

// TranscribeAudio uploads an audio file and enqueues a transcribe job.
func (h *JobHandler) TranscribeAudio(w http.ResponseWriter, r *http.Request) {
	inputPath, err := h.saveUploadedFile(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = "auto"
	}
	h.enqueue(w, r, task.KindTranscribe, task.TranscribeArgs{
		AudioPath:  inputPath,
		OutputPath: trimExt(inputPath) + ".txt",
		Language:   language,
		UseDemucs:  r.FormValue("use_demucs") == "on",
	})
}

// TranslateText uploads a text file and enqueues a translate job.
func (h *JobHandler) TranslateText(w http.ResponseWriter, r *http.Request) {
	inputPath, err := h.saveUploadedFile(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	target := r.FormValue("target_language")
	if target == "" {
		target = "English"
	}
	h.enqueue(w, r, task.KindTranslate, task.TranslateArgs{
		InputPath:      inputPath,
		OutputPath:     trimExt(inputPath) + "_translated.txt",
		TargetLanguage: target,
	})
}

type summarizeRequest struct {
	TextContent         string `json:"text_content" validate:"required"`
	TargetLanguage      string `json:"target_language"`
	ConversationID      string `json:"conversation_id"`
	RevisionInstruction string `json:"revision_instruction"`
}

// SummarizeText enqueues a summarize job over raw text.
func (h *JobHandler) SummarizeText(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "text_content is required")
		return
	}
	if req.TargetLanguage == "" {
		req.TargetLanguage = "English"
	}

	h.enqueue(w, r, task.KindSummarize, task.SummarizeArgs{
		TextContent:         req.TextContent,
		TargetLanguage:      req.TargetLanguage,
		ConversationID:      req.ConversationID,
		RevisionInstruction: req.RevisionInstruction,
	})
}

type previewRequest struct {
	Text string `json:"text" validate:"required"`
}

// PreviewActionItems enqueues a preview_action_items job over raw text.
func (h *JobHandler) PreviewActionItems(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	h.enqueue(w, r, task.KindPreviewActionItems, task.PreviewActionItemsArgs{
		TextContent: req.Text,
	})
}

// Download serves a produced file as an attachment. Only base names are
// accepted so the upload dir cannot be escaped.
func (h *JobHandler) Download(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(chi.URLParam(r, "filename"))
	path := filepath.Join(h.uploadDir, filename)

	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	http.ServeFile(w, r, path)
}

// HealthCheck reports liveness.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// userIDFrom returns the authenticated user id as the external services'
// user field.
func userIDFrom(r *http.Request) string {
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		return fmt.Sprintf("%d", claims.UserID)
	}
	return "user"
}
