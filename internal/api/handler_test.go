package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkteam/meeting-assistant/internal/ai"
	"github.com/tkteam/meeting-assistant/internal/auth"
	"github.com/tkteam/meeting-assistant/internal/dispatch"
	"github.com/tkteam/meeting-assistant/internal/queue"
	"github.com/tkteam/meeting-assistant/internal/task"
	"github.com/tkteam/meeting-assistant/internal/taskstore"
)

type testServer struct {
	router     http.Handler
	store      *taskstore.Store
	users      *fakeUserStore
	meetings   *fakeMeetingStore
	items      *fakeActionItemStore
	assistant  *ai.MockAssistant
	token      string
	adminToken string
}

func newTestServer(t *testing.T) *testServer {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := taskstore.New(client)
	q := queue.New(client)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := dispatch.New(store, q, logger)

	jwtSvc, err := auth.NewJWTService("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	users := newFakeUserStore()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	alice, err := users.CreateUser(context.Background(), "alice", hash, "user")
	require.NoError(t, err)
	root, err := users.CreateUser(context.Background(), "root", hash, "admin")
	require.NoError(t, err)

	token, err := jwtSvc.GenerateToken(alice.ID, alice.Role)
	require.NoError(t, err)
	adminToken, err := jwtSvc.GenerateToken(root.ID, root.Role)
	require.NoError(t, err)

	meetings := newFakeMeetingStore()
	items := newFakeActionItemStore()
	assistant := &ai.MockAssistant{Answer: "mock answer"}

	router := NewRouter(Handlers{
		Jobs:     NewJobHandler(dispatcher, store, q, t.TempDir(), 1<<20),
		Auth:     NewAuthHandler(users, jwtSvc),
		Meetings: NewMeetingHandler(meetings, items, users),
		AI:       NewAIHandler(assistant, "", "", ""),
		JWT:      jwtSvc,
	})

	return &testServer{
		router:     router,
		store:      store,
		users:      users,
		meetings:   meetings,
		items:      items,
		assistant:  assistant,
		token:      token,
		adminToken: adminToken,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateJob(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"kind": "summarize",
		"args": map[string]string{"text_content": "notes", "target_language": "English"},
	}, s.token)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	created := decode[enqueueResponse](t, rec)
	assert.NotEmpty(t, created.TaskID)
	assert.Equal(t, "/api/jobs/"+created.TaskID, created.StatusURL)

	rec = s.do(t, http.MethodGet, created.StatusURL, nil, s.token)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[jobStatusResponse](t, rec)
	assert.Equal(t, task.StatePending, status.State)
}

func TestCreateJob_UnknownKind(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"kind": "make_coffee",
		"args": map[string]string{},
	}, s.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateJob_InvalidArgs(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"kind": "summarize",
		"args": map[string]string{"text_content": ""},
	}, s.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/jobs/does-not-exist", nil, s.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJob_Idempotent(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"kind": "summarize",
		"args": map[string]string{"text_content": "notes", "target_language": "English"},
	}, s.token)
	require.Equal(t, http.StatusAccepted, rec.Code)
	created := decode[enqueueResponse](t, rec)

	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodPost, "/api/jobs/"+created.TaskID+"/cancel", nil, s.token)
		require.Equal(t, http.StatusOK, rec.Code)
		state := decode[map[string]task.State](t, rec)
		assert.Equal(t, task.StateRevoked, state["state"])
	}
}

func TestSummarizeTextRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/summarize_text", map[string]string{
		"text_content": "long transcript",
	}, s.token)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/summarize_text", map[string]string{}, s.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractAudioUpload(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "meeting.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake video bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract_audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	created := decode[enqueueResponse](t, rec)
	assert.NotEmpty(t, created.TaskID)
}

func TestExtractAudioUpload_NoFile(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract_audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownload_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/download/nope.txt", nil, s.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/meetings/", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/meetings/", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/admin/users", nil, s.token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/users", nil, s.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]map[string]any](t, rec)
	assert.Len(t, users, 2)
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
