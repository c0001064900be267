package models

import "time"

// Subscriber represents a subscriber in the database.
type Subscriber struct {
	ID               int64     `db:"id"`
	TelegramUsername string    `db:"telegram_username"`
	RSSUUID          string    `db:"rss_uuid"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
