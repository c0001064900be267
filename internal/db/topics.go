package db

import (
	"log"

	"podigest/internal/models"
)

// GetActiveTopics returns active topics ordered by slug so phase runs
// visit them in a stable order.
func GetActiveTopics() ([]models.Topic, error) {
	var topics []models.Topic
	err := DB.Select(&topics, "SELECT * FROM topics WHERE active = TRUE ORDER BY slug")
	return topics, err
}

func GetAllTopics() ([]models.Topic, error) {
	var topics []models.Topic
	err := DB.Select(&topics, "SELECT * FROM topics ORDER BY slug")
	return topics, err
}

func GetTopicByID(id int) (models.Topic, error) {
	topic := models.Topic{}
	err := DB.Get(&topic, "SELECT * FROM topics WHERE id = $1", id)
	return topic, err
}

func GetTopicBySlug(slug string) (models.Topic, error) {
	topic := models.Topic{}
	err := DB.Get(&topic, "SELECT * FROM topics WHERE slug = $1", slug)
	return topic, err
}

func CreateTopic(t models.Topic) (models.Topic, error) {
	topic := models.Topic{}
	err := DB.Get(&topic, `
		INSERT INTO topics (slug, display_name, active, score_threshold, min_episodes, max_episodes, dialogue, synth_model, voices)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *`,
		t.Slug, t.DisplayName, t.Active, t.ScoreThreshold, t.MinEpisodes, t.MaxEpisodes, t.Dialogue, t.SynthModel, t.Voices)
	if err != nil {
		log.Printf("Error creating topic %s: %v", t.Slug, err)
		return topic, err
	}
	return topic, nil
}

func UpdateTopic(t models.Topic) error {
	_, err := DB.Exec(`
		UPDATE topics
		SET display_name = $1, active = $2, score_threshold = $3, min_episodes = $4, max_episodes = $5,
		    dialogue = $6, synth_model = $7, voices = $8, updated_at = NOW()
		WHERE id = $9`,
		t.DisplayName, t.Active, t.ScoreThreshold, t.MinEpisodes, t.MaxEpisodes, t.Dialogue, t.SynthModel, t.Voices, t.ID)
	if err != nil {
		log.Printf("Error updating topic %d: %v", t.ID, err)
	}
	return err
}

func DeleteTopic(id int) error {
	_, err := DB.Exec("DELETE FROM topics WHERE id = $1", id)
	if err != nil {
		log.Printf("Error deleting topic %d: %v", id, err)
	}
	return err
}
