package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// VoiceMap maps a speaker label in a script to a synthesizer voice
// identity. Single-voice topics carry one entry, dialogue topics two.
type VoiceMap map[string]string

func (v VoiceMap) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Labels returns the configured speaker labels in a stable order.
func (v VoiceMap) Labels() []string {
	labels := make([]string, 0, len(v))
	for label := range v {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (v *VoiceMap) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into VoiceMap", src)
	}
	return json.Unmarshal(b, v)
}

// Topic is a subscriber-defined subject area with its own relevance
// threshold, episode-count bounds and voice configuration.
type Topic struct {
	ID             int       `db:"id"`
	Slug           string    `db:"slug"`
	DisplayName    string    `db:"display_name"`
	Active         bool      `db:"active"`
	ScoreThreshold *float64  `db:"score_threshold"`
	MinEpisodes    int       `db:"min_episodes"`
	MaxEpisodes    int       `db:"max_episodes"`
	Dialogue       bool      `db:"dialogue"`
	SynthModel     string    `db:"synth_model"`
	Voices         VoiceMap  `db:"voices"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Threshold resolves the topic's score threshold, falling back to the
// global default when no override is set.
func (t *Topic) Threshold(globalDefault float64) float64 {
	if t.ScoreThreshold != nil {
		return *t.ScoreThreshold
	}
	return globalDefault
}
