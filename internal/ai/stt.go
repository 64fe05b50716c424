package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Transcriber converts an audio file into plain transcript text. An empty
// language means the engine detects it.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// WhisperClient calls an OpenAI-compatible transcription endpoint with a
// multipart audio upload.
type WhisperClient struct {
	URL        string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func NewWhisperClient(url, apiKey, model string) *WhisperClient {
	return &WhisperClient{
		URL:        url,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 30 * time.Minute},
	}
}

var _ Transcriber = (*WhisperClient)(nil)

func (c *WhisperClient) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	_ = writer.WriteField("model", c.Model)
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("stt returned %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode stt response: %w", err)
	}
	return result.Text, nil
}

// MockTranscriber returns a canned transcript. It still verifies the audio
// file exists so path errors behave like the real engine.
type MockTranscriber struct {
	Text string
	Err  error
}

var _ Transcriber = (*MockTranscriber)(nil)

func (m *MockTranscriber) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if audioPath == "" {
		return "", fmt.Errorf("mock stt: audio path is empty")
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("mock stt: %w", err)
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return "This is a mock transcript of the uploaded recording.", nil
}
