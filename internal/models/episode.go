package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScoreMap holds per-topic relevance scores, stored as JSONB.
type ScoreMap map[string]float64

func (s ScoreMap) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *ScoreMap) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ScoreMap", src)
	}
	return json.Unmarshal(b, s)
}

type Episode struct {
	ID            int        `db:"id"`
	GUID          string     `db:"guid"`
	FeedID        int        `db:"feed_id"`
	Title         *string    `db:"title"`
	EnclosureURL  *string    `db:"enclosure_url"`
	PublishedAt   *time.Time `db:"published_at"`
	AudioPath     *string    `db:"audio_path"`
	Transcript    *string    `db:"transcript"`
	Scores        ScoreMap   `db:"scores"`
	Status        string     `db:"status"`
	FailureCount  int        `db:"failure_count"`
	FailureReason *string    `db:"failure_reason"`
	LastFailureAt *time.Time `db:"last_failure_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// Score returns the episode's score for a topic slug, or ok=false if the
// episode has not been scored against that topic.
func (e *Episode) Score(slug string) (float64, bool) {
	if e.Scores == nil {
		return 0, false
	}
	score, ok := e.Scores[slug]
	return score, ok
}
