// Package synth wraps the speech synthesis provider behind a capability
// interface so the coordinator can run against any concrete backend.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VoiceLine is one utterance assigned to a synthesizer voice.
type VoiceLine struct {
	VoiceID string `json:"voice"`
	Text    string `json:"text"`
}

// Synthesizer converts text into audio. Both calls fail when the text
// exceeds the provider's own limits.
type Synthesizer interface {
	Synthesize(ctx context.Context, model, voiceID, text string) ([]byte, error)
	SynthesizeDialogue(ctx context.Context, model string, lines []VoiceLine) ([]byte, error)
}

// Client talks to an HTTP speech API with single-voice and multi-voice
// endpoints, returning MP3 audio.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

type dialogueRequest struct {
	Model          string      `json:"model"`
	Lines          []VoiceLine `json:"lines"`
	ResponseFormat string      `json:"response_format"`
}

func (c *Client) Synthesize(ctx context.Context, model, voiceID, text string) ([]byte, error) {
	body := speechRequest{Model: model, Voice: voiceID, Input: text, ResponseFormat: "mp3"}
	return c.post(ctx, "/v1/audio/speech", body)
}

func (c *Client) SynthesizeDialogue(ctx context.Context, model string, lines []VoiceLine) ([]byte, error) {
	body := dialogueRequest{Model: model, Lines: lines, ResponseFormat: "mp3"}
	return c.post(ctx, "/v1/audio/speech/dialogue", body)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis provider returned %d: %s", resp.StatusCode, string(detail))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis provider returned empty audio")
	}
	return audio, nil
}
