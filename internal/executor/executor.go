package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tkteam/meeting-assistant/internal/ai"
	"github.com/tkteam/meeting-assistant/internal/media"
	"github.com/tkteam/meeting-assistant/internal/task"
	"github.com/tkteam/meeting-assistant/internal/taskstore"
)

// Reporter publishes an executor's progress into the task store. Each call
// is also the cooperative cancellation check: once the record is terminal
// the update fails and the executor must abort.
type Reporter interface {
	Update(ctx context.Context, current, total int, msg string, extra map[string]string) error
}

type storeReporter struct {
	store  *taskstore.Store
	taskID string
}

// NewReporter binds a task id to the store for progress updates.
func NewReporter(store *taskstore.Store, taskID string) Reporter {
	return &storeReporter{store: store, taskID: taskID}
}

func (r *storeReporter) Update(ctx context.Context, current, total int, msg string, extra map[string]string) error {
	return r.store.UpdateProgress(ctx, r.taskID, task.Progress{
		Current:   current,
		Total:     total,
		StatusMsg: msg,
		Extra:     extra,
	})
}

// Set holds the external collaborators and runs one task kind to completion.
// Dispatch is a closed switch over the five kinds.
type Set struct {
	Media     media.Extractor
	STT       ai.Transcriber
	Assistant ai.Assistant

	TranslatorKey string
	SummarizerKey string
	ExtractorKey  string
}

// Run executes the task's work and returns its result. Any error is
// recorded by the caller as a FAILURE unless it came from a terminal-state
// store write, in which case the other side of a cancellation race already
// finished the task.
func (s *Set) Run(ctx context.Context, kind task.Kind, rawArgs json.RawMessage, rep Reporter) (task.Result, error) {
	args, err := task.ValidateArgs(kind, rawArgs)
	if err != nil {
		return task.Result{}, err
	}

	switch a := args.(type) {
	case task.ExtractAudioArgs:
		return s.extractAudio(ctx, a, rep)
	case task.TranscribeArgs:
		return s.transcribe(ctx, a, rep)
	case task.TranslateArgs:
		return s.translate(ctx, a, rep)
	case task.SummarizeArgs:
		return s.summarize(ctx, a, rep)
	case task.PreviewActionItemsArgs:
		return s.previewActionItems(ctx, a, rep)
	default:
		return task.Result{}, fmt.Errorf("no executor for task kind %q", kind)
	}
}

func (s *Set) extractAudio(ctx context.Context, a task.ExtractAudioArgs, rep Reporter) (task.Result, error) {
	if err := rep.Update(ctx, 0, 100, "Starting audio extraction...", nil); err != nil {
		return task.Result{}, err
	}
	if err := s.Media.ExtractAudio(ctx, a.InputPath, a.OutputPath); err != nil {
		return task.Result{}, err
	}
	if err := rep.Update(ctx, 100, 100, "Audio extracted successfully.", nil); err != nil {
		return task.Result{}, err
	}
	return task.Result{ResultPath: a.OutputPath}, nil
}

func (s *Set) transcribe(ctx context.Context, a task.TranscribeArgs, rep Reporter) (task.Result, error) {
	if err := rep.Update(ctx, 0, 100, "Loading model...", nil); err != nil {
		return task.Result{}, err
	}

	language := a.Language
	if language == "auto" {
		language = ""
	}

	if err := rep.Update(ctx, 20, 100, "Transcribing...", nil); err != nil {
		return task.Result{}, err
	}
	text, err := s.STT.Transcribe(ctx, a.AudioPath, language)
	if err != nil {
		return task.Result{}, err
	}
	if err := os.WriteFile(a.OutputPath, []byte(text), 0644); err != nil {
		return task.Result{}, err
	}

	if err := rep.Update(ctx, 100, 100, "Transcription complete.", nil); err != nil {
		return task.Result{}, err
	}
	return task.Result{ResultPath: a.OutputPath}, nil
}

func (s *Set) translate(ctx context.Context, a task.TranslateArgs, rep Reporter) (task.Result, error) {
	if err := rep.Update(ctx, 0, 100, "Starting translation...", nil); err != nil {
		return task.Result{}, err
	}

	content, err := os.ReadFile(a.InputPath)
	if err != nil {
		return task.Result{}, err
	}

	query := fmt.Sprintf("Target language: %s\nText to translate:\n%s", a.TargetLanguage, string(content))
	resp, err := s.Assistant.Chat(ctx, s.TranslatorKey, ai.ChatRequest{Query: query})
	if err != nil {
		return task.Result{}, err
	}

	if err := os.WriteFile(a.OutputPath, []byte(resp.Answer), 0644); err != nil {
		return task.Result{}, err
	}
	if err := rep.Update(ctx, 100, 100, "Translation complete.", nil); err != nil {
		return task.Result{}, err
	}
	return task.Result{ResultPath: a.OutputPath, Content: resp.Answer}, nil
}

func (s *Set) summarize(ctx context.Context, a task.SummarizeArgs, rep Reporter) (task.Result, error) {
	if err := rep.Update(ctx, 1, 100, "Preparing prompt...", nil); err != nil {
		return task.Result{}, err
	}

	prompt := fmt.Sprintf("Summarize for %s: %s", a.TargetLanguage, a.TextContent)
	if a.RevisionInstruction != "" {
		prompt = fmt.Sprintf("Revise based on '%s': %s", a.RevisionInstruction, a.TextContent)
	}

	if err := rep.Update(ctx, 20, 100, "Requesting summarizer...", nil); err != nil {
		return task.Result{}, err
	}
	resp, err := s.Assistant.Chat(ctx, s.SummarizerKey, ai.ChatRequest{
		Query:          prompt,
		ConversationID: a.ConversationID,
	})
	if err != nil {
		return task.Result{}, err
	}

	if err := rep.Update(ctx, 100, 100, "Summary generated.", nil); err != nil {
		return task.Result{}, err
	}
	return task.Result{Summary: resp.Answer, ConversationID: resp.ConversationID}, nil
}

func (s *Set) previewActionItems(ctx context.Context, a task.PreviewActionItemsArgs, rep Reporter) (task.Result, error) {
	if err := rep.Update(ctx, 10, 100, "Requesting action item extraction...", nil); err != nil {
		return task.Result{}, err
	}

	resp, err := s.Assistant.Chat(ctx, s.ExtractorKey, ai.ChatRequest{Query: a.TextContent})
	if err != nil {
		return task.Result{}, err
	}

	if err := rep.Update(ctx, 80, 100, "Parsing response...", nil); err != nil {
		return task.Result{}, err
	}
	items, err := ParseActionItems(resp.Answer)
	if err != nil {
		return task.Result{}, err
	}

	if err := rep.Update(ctx, 100, 100, "Action item preview generated.", nil); err != nil {
		return task.Result{}, err
	}
	return task.Result{ParsedItems: items}, nil
}

// DownloadFilename derives the client-facing filename from a result path.
func DownloadFilename(resultPath string) string {
	if resultPath == "" {
		return ""
	}
	return filepath.Base(resultPath)
}
