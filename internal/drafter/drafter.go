// Package drafter turns a selected episode set into digest script text.
package drafter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"podigest/internal/models"

	"google.golang.org/genai"
)

// EpisodeSummary carries what the drafting model needs about one
// selected episode, in script position order.
type EpisodeSummary struct {
	Title      string
	Transcript string
	Score      float64
}

// Drafter produces the digest script for a topic's selected episodes.
type Drafter interface {
	Draft(ctx context.Context, topic models.Topic, episodes []EpisodeSummary, date time.Time) (string, error)
}

const dialoguePrompt = `Write a podcast digest script for the topic "%s", dated %s, covering the
episodes below in the given order.

Format it as a dialogue between exactly two speakers labeled %s and %s.
Every turn must start at the beginning of a line as "LABEL: utterance".
Use no other labels, headings or markup.

Episodes:
%s`

const narrativePrompt = `Write a podcast digest script for the topic "%s", dated %s, covering the
episodes below in the given order.

Write it as plain narrative prose for a single narrator, in paragraphs
separated by blank lines. Use no headings or markup.

Episodes:
%s`

// GeminiDrafter drafts scripts with the Gemini API.
type GeminiDrafter struct {
	client *genai.Client
	model  string
}

func NewGeminiDrafter(ctx context.Context, apiKey, model string) (*GeminiDrafter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create drafter client: %w", err)
	}
	return &GeminiDrafter{client: client, model: model}, nil
}

func (d *GeminiDrafter) Draft(ctx context.Context, topic models.Topic, episodes []EpisodeSummary, date time.Time) (string, error) {
	var sections []string
	for i, ep := range episodes {
		sections = append(sections, fmt.Sprintf("%d. %s (relevance %.2f)\n%s", i+1, ep.Title, ep.Score, ep.Transcript))
	}

	var prompt string
	if topic.Dialogue {
		labels := topic.Voices.Labels()
		if len(labels) != 2 {
			return "", fmt.Errorf("dialogue topic %s needs exactly two voices, has %d", topic.Slug, len(labels))
		}
		prompt = fmt.Sprintf(dialoguePrompt, topic.DisplayName, date.Format("2006-01-02"), labels[0], labels[1], strings.Join(sections, "\n\n"))
	} else {
		prompt = fmt.Sprintf(narrativePrompt, topic.DisplayName, date.Format("2006-01-02"), strings.Join(sections, "\n\n"))
	}

	result, err := d.client.Models.GenerateContent(ctx, d.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("draft script: %w", err)
	}

	script := strings.TrimSpace(responseText(result))
	if script == "" {
		return "", fmt.Errorf("empty script from drafting model")
	}
	return script, nil
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
