package feed

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/eduncan911/podcast"
	"podigest/internal/models"
)

// Item pairs a completed digest with its topic for feed rendering.
type Item struct {
	Digest models.Digest
	Topic  models.Topic
}

func getBaseURL(r *http.Request) string {
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		return baseURL
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS renders a subscriber's feed of narrated topic digests.
func GenerateRSS(subscriber *models.Subscriber, items []Item, r *http.Request) (string, error) {
	baseURL := getBaseURL(r)

	p := podcast.New(
		fmt.Sprintf("%s's Topic Digests", subscriber.TelegramUsername),
		fmt.Sprintf("%s/rss/%s", baseURL, subscriber.RSSUUID),
		"Narrated audio digests of podcast episodes, curated by topic.",
		&time.Time{}, &time.Time{},
	)

	for _, it := range items {
		if it.Digest.AudioPath == nil || it.Digest.AudioSizeBytes == nil {
			continue
		}
		createdAt := it.Digest.CreatedAt
		item := podcast.Item{
			Title:       fmt.Sprintf("%s — %s", it.Topic.DisplayName, it.Digest.Date.Format("2006-01-02")),
			Description: fmt.Sprintf("Topic digest for %s (%d words).", it.Topic.DisplayName, it.Digest.ScriptWordCount),
			PubDate:     &createdAt,
		}
		item.AddEnclosure(fmt.Sprintf("%s/audio/%s.mp3", baseURL, it.Digest.AudioUUID), podcast.MP3, *it.Digest.AudioSizeBytes)
		if it.Digest.AudioDuration != nil {
			item.AddDuration(int64(*it.Digest.AudioDuration))
		}
		if _, err := p.AddItem(item); err != nil {
			return "", err
		}
	}

	return p.String(), nil
}
