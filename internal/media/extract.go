package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Extractor demuxes the audio stream of a media file into outputPath.
type Extractor interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

// FFmpeg shells out to the ffmpeg binary.
type FFmpeg struct {
	Binary string
}

func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary}
}

var _ Extractor = (*FFmpeg)(nil)

func (f *FFmpeg) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return err
	}

	// -y overwrites any partial output from a redelivered attempt.
	cmd := exec.CommandContext(ctx, f.Binary, "-y", "-i", inputPath, "-vn", outputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %v: %s", err, stderr.String())
	}
	return nil
}

// MockExtractor writes a placeholder audio file, for development and tests.
type MockExtractor struct {
	Err error
}

var _ Extractor = (*MockExtractor)(nil)

func (m *MockExtractor) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if m.Err != nil {
		return m.Err
	}
	if _, err := os.Stat(inputPath); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("mock audio"), 0644)
}
