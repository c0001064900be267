package db

import (
	"fmt"
	"time"

	"podigest/internal/models"

	"github.com/google/uuid"
)

// SelectedEpisode is one episode chosen for a digest, with the score and
// script position recorded on its link row.
type SelectedEpisode struct {
	EpisodeID int
	GUID      string
	Score     float64
	Position  int
}

// CreateDigestWithLinks persists a digest, its episode links and the
// DIGESTED status of every included episode in a single transaction so a
// drafting or storage error leaves no partial writes.
func CreateDigestWithLinks(topicID int, topicSlug string, date time.Time, script string, wordCount int, selected []SelectedEpisode) (models.Digest, error) {
	digest := models.Digest{}

	tx, err := DB.Beginx()
	if err != nil {
		return digest, err
	}
	defer tx.Rollback()

	err = tx.Get(&digest, `
		INSERT INTO digests (topic_id, date, script, script_word_count, audio_uuid)
		VALUES ($1, $2, $3, $4, $5) RETURNING *`,
		topicID, date, script, wordCount, uuid.NewString())
	if err != nil {
		return digest, fmt.Errorf("failed to insert digest: %w", err)
	}

	for _, sel := range selected {
		_, err = tx.Exec(`
			INSERT INTO digest_episodes (digest_id, episode_id, topic_slug, score, position)
			VALUES ($1, $2, $3, $4, $5)`,
			digest.ID, sel.EpisodeID, topicSlug, sel.Score, sel.Position)
		if err != nil {
			return digest, fmt.Errorf("failed to link episode %s: %w", sel.GUID, err)
		}

		_, err = tx.Exec(`
			UPDATE episodes SET status = $1, updated_at = NOW()
			WHERE guid = $2 AND status IN ($3, $4)`,
			StatusDigested, sel.GUID, StatusScored, StatusDigested)
		if err != nil {
			return digest, fmt.Errorf("failed to mark episode %s digested: %w", sel.GUID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return digest, err
	}
	return digest, nil
}

func GetDigestByID(id int) (models.Digest, error) {
	digest := models.Digest{}
	err := DB.Get(&digest, "SELECT * FROM digests WHERE id = $1", id)
	return digest, err
}

// GetDigestsWithoutAudio returns digests awaiting synthesis in creation
// order.
func GetDigestsWithoutAudio(limit int) ([]models.Digest, error) {
	var digests []models.Digest
	err := DB.Select(&digests, `
		SELECT * FROM digests
		WHERE audio_path IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	return digests, err
}

// GetCompletedDigests returns digests with generated audio, newest first.
func GetCompletedDigests(limit int) ([]models.Digest, error) {
	var digests []models.Digest
	err := DB.Select(&digests, `
		SELECT * FROM digests
		WHERE audio_path IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	return digests, err
}

func GetDigestEpisodeLinks(digestID int) ([]models.DigestEpisodeLink, error) {
	var links []models.DigestEpisodeLink
	err := DB.Select(&links, `
		SELECT * FROM digest_episodes
		WHERE digest_id = $1
		ORDER BY position`, digestID)
	return links, err
}

// ClearDigestAudio removes the audio reference before regeneration so
// downstream publishing cannot pick up a stale file.
func ClearDigestAudio(id int) error {
	_, err := DB.Exec(`
		UPDATE digests
		SET audio_path = NULL, audio_duration_seconds = NULL, audio_size_bytes = NULL
		WHERE id = $1`, id)
	return err
}

func UpdateDigestAudio(id int, audioPath string, durationSeconds int, sizeBytes int64) error {
	_, err := DB.Exec(`
		UPDATE digests
		SET audio_path = $1, audio_duration_seconds = $2, audio_size_bytes = $3
		WHERE id = $4`,
		audioPath, durationSeconds, sizeBytes, id)
	return err
}

func SetDigestPublishRef(id int, ref string) error {
	_, err := DB.Exec("UPDATE digests SET publish_ref = $1 WHERE id = $2", ref, id)
	return err
}
