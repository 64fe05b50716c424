package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatRequest is one blocking completion request against the language-model
// service. ConversationID threads multi-turn refinement and is empty on the
// first call of a conversation.
type ChatRequest struct {
	Query          string
	UserID         string
	ConversationID string
	Inputs         map[string]string
}

type ChatResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
}

// Assistant is the language-model completion service consumed by the
// executors. The API key selects the configured app (translator, summarizer
// or action extractor).
type Assistant interface {
	Chat(ctx context.Context, apiKey string, req ChatRequest) (*ChatResponse, error)
}

// DifyClient talks to a Dify-compatible chat-messages endpoint in blocking
// response mode.
type DifyClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewDifyClient(baseURL string) *DifyClient {
	return &DifyClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 20 * time.Minute},
	}
}

var _ Assistant = (*DifyClient)(nil)

func (c *DifyClient) Chat(ctx context.Context, apiKey string, req ChatRequest) (*ChatResponse, error) {
	if apiKey == "" || c.BaseURL == "" {
		return nil, fmt.Errorf("assistant api key or base url not configured")
	}

	userID := req.UserID
	if userID == "" {
		userID = "default-tk-user"
	}
	inputs := req.Inputs
	if inputs == nil {
		inputs = map[string]string{}
	}

	payload := map[string]any{
		"inputs":        inputs,
		"query":         req.Query,
		"user":          userID,
		"response_mode": "blocking",
	}
	if req.ConversationID != "" {
		payload["conversation_id"] = req.ConversationID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat-messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("assistant returned %d: %s", resp.StatusCode, string(b))
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode assistant response: %w", err)
	}
	return &out, nil
}

// MockAssistant returns canned answers for development and tests. ChatFunc,
// when set, overrides the canned behavior entirely.
type MockAssistant struct {
	Answer         string
	ConversationID string
	Err            error
	ChatFunc       func(ctx context.Context, apiKey string, req ChatRequest) (*ChatResponse, error)
}

var _ Assistant = (*MockAssistant)(nil)

func (m *MockAssistant) Chat(ctx context.Context, apiKey string, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, apiKey, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if req.Query == "" {
		return nil, fmt.Errorf("mock assistant: query is empty")
	}
	convID := m.ConversationID
	if convID == "" {
		convID = req.ConversationID
	}
	return &ChatResponse{Answer: m.Answer, ConversationID: convID}, nil
}
