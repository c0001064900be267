package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"podigest/internal/models"

	"github.com/lib/pq"
)

const (
	StatusPending     = "PENDING"
	StatusDownloaded  = "DOWNLOADED"
	StatusTranscribed = "TRANSCRIBED"
	StatusScored      = "SCORED"
	StatusDigested    = "DIGESTED"
	StatusNotRelevant = "NOT_RELEVANT"
	StatusFailed      = "FAILED"
)

// ErrInvalidTransition is returned when a status change would move an
// episode backward or across the lifecycle graph.
var ErrInvalidTransition = errors.New("invalid episode status transition")

// ErrStaleStatus is returned when the episode's stored status no longer
// matches the expected source status of a transition.
var ErrStaleStatus = errors.New("episode status changed concurrently")

// transitions is the forward-only lifecycle graph. FAILED is reachable
// from every non-terminal state; the only backward path is the
// administrative ResetEpisode.
var transitions = map[string][]string{
	StatusPending:     {StatusDownloaded, StatusFailed},
	StatusDownloaded:  {StatusTranscribed, StatusFailed},
	StatusTranscribed: {StatusScored, StatusFailed},
	StatusScored:      {StatusDigested, StatusNotRelevant, StatusFailed},
	StatusDigested:    {StatusDigested},
	StatusNotRelevant: {},
	StatusFailed:      {},
}

// CanTransition reports whether from -> to is a legal forward transition.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionEpisode moves an episode from one status to the next. The
// update is guarded on the expected source status so overlapping runs
// cannot race an episode past a state.
func TransitionEpisode(guid, from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("episode %s: %s -> %s: %w", guid, from, to, ErrInvalidTransition)
	}
	res, err := DB.Exec(`UPDATE episodes SET status = $1, updated_at = NOW() WHERE guid = $2 AND status = $3`, to, guid, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("episode %s: expected status %s: %w", guid, from, ErrStaleStatus)
	}
	return nil
}

// MarkEpisodeFailed records a failure reason and increments the failure
// counter. Episodes already in a terminal state are left untouched.
func MarkEpisodeFailed(guid, reason string) error {
	_, err := DB.Exec(`
		UPDATE episodes
		SET status = $1, failure_reason = $2, failure_count = failure_count + 1, last_failure_at = NOW(), updated_at = NOW()
		WHERE guid = $3 AND status NOT IN ($4, $5)`,
		StatusFailed, reason, guid, StatusDigested, StatusNotRelevant)
	return err
}

// ResetEpisode is the administrative backward path: it forces an episode
// to an earlier status so it can be reprocessed. The failure counter is
// never reset.
func ResetEpisode(guid, to string) error {
	if _, ok := transitions[to]; !ok {
		return fmt.Errorf("episode %s: reset to unknown status %s: %w", guid, to, ErrInvalidTransition)
	}
	_, err := DB.Exec(`UPDATE episodes SET status = $1, failure_reason = NULL, updated_at = NOW() WHERE guid = $2`, to, guid)
	return err
}

func CreateEpisode(feedID int, guid, title, enclosureURL string, publishedAt time.Time) (models.Episode, error) {
	episode := models.Episode{}
	err := DB.Get(&episode, `
		INSERT INTO episodes (feed_id, guid, title, enclosure_url, published_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING *`,
		feedID, guid, title, enclosureURL, publishedAt)
	return episode, err
}

func GetEpisodeByGUID(guid string) (models.Episode, error) {
	episode := models.Episode{}
	err := DB.Get(&episode, "SELECT * FROM episodes WHERE guid = $1", guid)
	return episode, err
}

// GetEpisodesByStatus returns episodes in a given status in a
// deterministic order (newest published first, GUID as tie-break).
func GetEpisodesByStatus(status string, limit int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE status = $1
		ORDER BY published_at DESC NULLS LAST, guid
		LIMIT $2`, status, limit)
	return episodes, err
}

// GetScorableEpisodes returns episodes eligible for digest composition:
// scored episodes plus, when recomposing, already digested ones.
func GetScorableEpisodes(statuses []string) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE status = ANY($1)
		ORDER BY published_at DESC NULLS LAST, guid`, pq.Array(statuses))
	return episodes, err
}

// GetRetryableEpisodes returns failed episodes below the retry ceiling.
func GetRetryableEpisodes(maxFailures, limit int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE status = $1 AND failure_count < $2
		ORDER BY published_at DESC NULLS LAST, guid
		LIMIT $3`, StatusFailed, maxFailures, limit)
	return episodes, err
}

// UpdateEpisodeDownloaded stores the downloaded audio location and moves
// the episode to DOWNLOADED.
func UpdateEpisodeDownloaded(guid, audioPath string) error {
	res, err := DB.Exec(`
		UPDATE episodes SET status = $1, audio_path = $2, updated_at = NOW()
		WHERE guid = $3 AND status = $4`,
		StatusDownloaded, audioPath, guid, StatusPending)
	if err != nil {
		return err
	}
	return requireRow(res, guid, StatusPending)
}

// UpdateEpisodeTranscribed stores the transcript and moves the episode to
// TRANSCRIBED.
func UpdateEpisodeTranscribed(guid, transcript string) error {
	res, err := DB.Exec(`
		UPDATE episodes SET status = $1, transcript = $2, updated_at = NOW()
		WHERE guid = $3 AND status = $4`,
		StatusTranscribed, transcript, guid, StatusDownloaded)
	if err != nil {
		return err
	}
	return requireRow(res, guid, StatusDownloaded)
}

// SetEpisodeScores stores a scoring pass and moves the episode to SCORED.
// Rescoring an already scored episode overwrites the previous pass.
func SetEpisodeScores(guid string, scores models.ScoreMap) error {
	res, err := DB.Exec(`
		UPDATE episodes SET status = $1, scores = $2, updated_at = NOW()
		WHERE guid = $3 AND status IN ($4, $5)`,
		StatusScored, scores, guid, StatusTranscribed, StatusScored)
	if err != nil {
		return err
	}
	return requireRow(res, guid, StatusTranscribed)
}

func requireRow(res sql.Result, guid, expected string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("episode %s: expected status %s: %w", guid, expected, ErrStaleStatus)
	}
	return nil
}
