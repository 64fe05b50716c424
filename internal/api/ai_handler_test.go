package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkteam/meeting-assistant/internal/task"
)

func TestTranslateTextSync(t *testing.T) {
	s := newTestServer(t)
	s.assistant.Answer = "hello"

	rec := s.do(t, http.MethodPost, "/api/translate/text", map[string]string{
		"text":        "bonjour",
		"target_lang": "English",
	}, s.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "hello", resp["translated"])
}

func TestTranslateTextSync_MissingText(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/translate/text", map[string]string{}, s.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummarizeTextSync(t *testing.T) {
	s := newTestServer(t)
	s.assistant.Answer = "short version"

	rec := s.do(t, http.MethodPost, "/api/summarize/text", map[string]string{
		"text": "very long transcript",
	}, s.token)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "short version", resp["summary"])
}

func TestPreviewActionItemsSync(t *testing.T) {
	s := newTestServer(t)
	s.assistant.Answer = "```json\n" +
		`[{"item":"Budget","action":"Send numbers","owner":"alice","duedate":"2026-09-15"}]` +
		"\n```"

	rec := s.do(t, http.MethodPost, "/api/action-items/preview", map[string]string{
		"text": "meeting notes",
	}, s.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[map[string][]task.ActionItemCandidate](t, rec)
	require.Len(t, resp["items"], 1)
	assert.Equal(t, "Send numbers", resp["items"][0].Action)
	assert.Equal(t, "2026-09-15", resp["items"][0].DueDate)
}

func TestPreviewActionItemsSync_Unparseable(t *testing.T) {
	s := newTestServer(t)
	s.assistant.Answer = "I could not find any action items."

	rec := s.do(t, http.MethodPost, "/api/action-items/preview", map[string]string{
		"text": "meeting notes",
	}, s.token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
