package db

import (
	"log"

	"podigest/internal/models"
)

// UpsertSubscriber inserts a new subscriber or updates an existing one
// based on the Telegram ID.
func UpsertSubscriber(id int64, username string) (*models.Subscriber, error) {
	query := `
		INSERT INTO subscribers (id, telegram_username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			telegram_username = EXCLUDED.telegram_username,
			updated_at = NOW()
		RETURNING id, telegram_username, rss_uuid, created_at, updated_at
	`
	subscriber := &models.Subscriber{}
	err := DB.Get(subscriber, query, id, username)
	if err != nil {
		log.Printf("Error upserting subscriber: %v", err)
		return nil, err
	}
	return subscriber, nil
}

func GetSubscriberByRSSUUID(uuid string) (*models.Subscriber, error) {
	subscriber := &models.Subscriber{}
	err := DB.Get(subscriber, "SELECT * FROM subscribers WHERE rss_uuid = $1", uuid)
	if err != nil {
		return nil, err
	}
	return subscriber, nil
}
