package models

import "time"

type Digest struct {
	ID              int       `db:"id"`
	TopicID         int       `db:"topic_id"`
	Date            time.Time `db:"date"`
	CreatedAt       time.Time `db:"created_at"`
	Script          string    `db:"script"`
	ScriptWordCount int       `db:"script_word_count"`
	AudioUUID       string    `db:"audio_uuid"`
	AudioPath       *string   `db:"audio_path"`
	AudioDuration   *int      `db:"audio_duration_seconds"`
	AudioSizeBytes  *int64    `db:"audio_size_bytes"`
	PublishRef      *string   `db:"publish_ref"`
}

// DigestEpisodeLink records why an episode was included in a digest: the
// topic it qualified for, its score at the time of selection and its
// position in the script.
type DigestEpisodeLink struct {
	ID        int     `db:"id"`
	DigestID  int     `db:"digest_id"`
	EpisodeID int     `db:"episode_id"`
	TopicSlug string  `db:"topic_slug"`
	Score     float64 `db:"score"`
	Position  int     `db:"position"`
}
