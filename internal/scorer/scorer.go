// Package scorer rates episode transcripts against subscriber topics.
package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"podigest/internal/models"

	"google.golang.org/genai"
)

// ErrBadScorePayload is returned when the model answers with something
// that cannot be parsed into per-topic scores. Callers treat this as a
// data error rather than a transient one.
var ErrBadScorePayload = errors.New("unparseable relevance scores")

// Scorer rates a transcript against a topic list, returning a score in
// [0,1] per topic slug.
type Scorer interface {
	Score(ctx context.Context, transcript string, topics []models.Topic) (models.ScoreMap, error)
}

const scorePrompt = `You rate how relevant a podcast episode is to each of a set of topics.

Topics:
%s

Reply with a single JSON object mapping each topic slug to a relevance
score between 0.0 and 1.0, and nothing else. Example: {"ai-news": 0.8}

Transcript:
---
%s
---`

// GeminiScorer scores transcripts with the Gemini API.
type GeminiScorer struct {
	client *genai.Client
	model  string
}

func NewGeminiScorer(ctx context.Context, apiKey, model string) (*GeminiScorer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create scorer client: %w", err)
	}
	return &GeminiScorer{client: client, model: model}, nil
}

func (s *GeminiScorer) Score(ctx context.Context, transcript string, topics []models.Topic) (models.ScoreMap, error) {
	var topicLines []string
	for _, topic := range topics {
		topicLines = append(topicLines, fmt.Sprintf("- %s: %s", topic.Slug, topic.DisplayName))
	}
	prompt := fmt.Sprintf(scorePrompt, strings.Join(topicLines, "\n"), transcript)

	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("generate scores: %w", err)
	}

	text := responseText(result)
	if text == "" {
		return nil, fmt.Errorf("empty scorer response: %w", ErrBadScorePayload)
	}

	scores, err := parseScores(text, topics)
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// parseScores extracts the JSON object from the model's reply, tolerating
// code fences, and clamps every score to [0,1]. Topics the model omitted
// score zero.
func parseScores(text string, topics []models.Topic) (models.ScoreMap, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in scorer response: %w", ErrBadScorePayload)
	}

	raw := map[string]float64{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrBadScorePayload)
	}

	scores := models.ScoreMap{}
	for _, topic := range topics {
		score := raw[topic.Slug]
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[topic.Slug] = score
	}
	return scores, nil
}

func responseText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}
