// Package ingest fetches episode audio and produces transcripts via an
// external speech-to-text tool.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var execCommandContext = exec.CommandContext

var httpClient = &http.Client{Timeout: 10 * time.Minute}

// Transcriber turns an audio file into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// WhisperCLI transcribes by shelling out to a whisper.cpp style binary.
type WhisperCLI struct {
	ModelPath string
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	cmd := execCommandContext(ctx, "whisper-cli",
		"-nt", // no timestamps
		"-np", // no progress output
		"-m", w.ModelPath,
		"-f", audioPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("whisper-cli failed for %s: %w", audioPath, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// DownloadEnclosure fetches an episode's enclosure into destDir, named
// by the episode GUID.
func DownloadEnclosure(ctx context.Context, url, destDir, guid string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download enclosure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("enclosure download returned %d", resp.StatusCode)
	}

	path := filepath.Join(destDir, guid+enclosureExt(url))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write enclosure: %w", err)
	}
	return path, nil
}

func enclosureExt(url string) string {
	ext := filepath.Ext(strings.SplitN(url, "?", 2)[0])
	if ext == "" {
		return ".mp3"
	}
	return ext
}
