package task

import (
	"encoding/json"
	"fmt"
	"time"
)

type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
	StateRevoked  State = "REVOKED"
)

// Terminal reports whether no further state writes are permitted.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure || s == StateRevoked
}

type Kind string

const (
	KindExtractAudio       Kind = "extract_audio"
	KindTranscribe         Kind = "transcribe"
	KindTranslate          Kind = "translate"
	KindSummarize          Kind = "summarize"
	KindPreviewActionItems Kind = "preview_action_items"
)

// Valid reports whether k is one of the five known job kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindExtractAudio, KindTranscribe, KindTranslate, KindSummarize, KindPreviewActionItems:
		return true
	}
	return false
}

// Progress is written by the executor between discrete steps of an attempt.
// Current never decreases within one attempt and is bounded by Total.
type Progress struct {
	Current   int               `json:"current"`
	Total     int               `json:"total"`
	StatusMsg string            `json:"status_msg"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// ActionItemCandidate is one parsed row of a preview_action_items result.
type ActionItemCandidate struct {
	Item    string `json:"item"`
	Action  string `json:"action"`
	Owner   string `json:"owner"`
	DueDate string `json:"due_date"`
}

// Result holds the kind-specific output of a successful execution. Only the
// fields relevant to the task's kind are populated.
type Result struct {
	ResultPath     string                `json:"result_path,omitempty"`
	Content        string                `json:"content,omitempty"`
	Summary        string                `json:"summary,omitempty"`
	ConversationID string                `json:"conversation_id,omitempty"`
	ParsedItems    []ActionItemCandidate `json:"parsed_items,omitempty"`
}

// Task is one unit of asynchronous work tracked by id, state, progress and
// eventual result or error. Args are captured at enqueue time and immutable.
type Task struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Args      json.RawMessage `json:"args"`
	State     State           `json:"state"`
	Progress  *Progress       `json:"progress,omitempty"`
	Result    *Result         `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// New returns a fresh PENDING task record.
func New(id string, kind Kind, args json.RawMessage) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		Kind:      kind,
		Args:      args,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Typed argument payloads, one per kind.

type ExtractAudioArgs struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

type TranscribeArgs struct {
	AudioPath  string `json:"audio_path"`
	OutputPath string `json:"output_path"`
	// Language is a hint for the engine; "auto" lets it detect.
	Language  string `json:"language"`
	UseDemucs bool   `json:"use_demucs"`
}

type TranslateArgs struct {
	InputPath      string `json:"input_path"`
	OutputPath     string `json:"output_path"`
	TargetLanguage string `json:"target_language"`
}

type SummarizeArgs struct {
	TextContent    string `json:"text_content"`
	TargetLanguage string `json:"target_language"`
	// ConversationID threads multi-turn refinement; empty on the first call.
	ConversationID      string `json:"conversation_id,omitempty"`
	RevisionInstruction string `json:"revision_instruction,omitempty"`
}

type PreviewActionItemsArgs struct {
	TextContent string `json:"text_content"`
}

// ValidateArgs decodes raw args for the given kind and performs the
// structural checks mirrored from the call sites. The decoded typed value
// is returned so callers don't parse twice.
func ValidateArgs(kind Kind, raw json.RawMessage) (any, error) {
	switch kind {
	case KindExtractAudio:
		var a ExtractAudioArgs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if a.InputPath == "" || a.OutputPath == "" {
			return nil, fmt.Errorf("%w: input_path and output_path are required", ErrValidation)
		}
		return a, nil
	case KindTranscribe:
		var a TranscribeArgs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if a.AudioPath == "" || a.OutputPath == "" {
			return nil, fmt.Errorf("%w: audio_path and output_path are required", ErrValidation)
		}
		if a.Language == "" {
			return nil, fmt.Errorf("%w: language is required (use \"auto\" to autodetect)", ErrValidation)
		}
		return a, nil
	case KindTranslate:
		var a TranslateArgs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if a.InputPath == "" || a.OutputPath == "" || a.TargetLanguage == "" {
			return nil, fmt.Errorf("%w: input_path, output_path and target_language are required", ErrValidation)
		}
		return a, nil
	case KindSummarize:
		var a SummarizeArgs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if a.TextContent == "" {
			return nil, fmt.Errorf("%w: text_content is required", ErrValidation)
		}
		if a.TargetLanguage == "" {
			return nil, fmt.Errorf("%w: target_language is required", ErrValidation)
		}
		return a, nil
	case KindPreviewActionItems:
		var a PreviewActionItemsArgs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if a.TextContent == "" {
			return nil, fmt.Errorf("%w: text_content is required", ErrValidation)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: unknown task kind %q", ErrValidation, kind)
	}
}
