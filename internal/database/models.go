package database

import (
	"database/sql"
	"time"
)

// SourceMessage is one post recorded from the source channel.
type SourceMessage struct {
	ID           int64     `db:"id"`
	ChatID       int64     `db:"chat_id"`
	MessageID    int64     `db:"message_id"`
	Text         string    `db:"text"`
	HasPhoto     bool      `db:"has_photo"`
	MediaIsImage bool      `db:"media_is_image"`
	FileID       string    `db:"file_id"`
	MimeType     string    `db:"mime_type"`
	PostedAt     time.Time `db:"posted_at"`
	CreatedAt    time.Time `db:"created_at"`
}

// Listing is the stored form of a published listing.
type Listing struct {
	ID              int64          `db:"id"`
	CustomID        string         `db:"custom_id"`
	SourceChatID    int64          `db:"source_chat_id"`
	SourceMessageID int64          `db:"source_message_id"`
	TargetMessageID sql.NullInt64  `db:"target_message_id"`
	Status          string         `db:"status"`
	Brand           string         `db:"brand"`
	Model           string         `db:"model"`
	Year            sql.NullInt64  `db:"year"`
	Price           sql.NullString `db:"price"`
	Currency        string         `db:"currency"`
	Mileage         sql.NullInt64  `db:"mileage"`
	EngineVolume    string         `db:"engine_volume"`
	Transmission    string         `db:"transmission"`
	DriveType       string         `db:"drive_type"`
	Description     string         `db:"description"`
	MediaURLs       string         `db:"media_urls"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// Stats summarises stored listings for the /stats command.
type Stats struct {
	Listings       int `db:"listings"`
	Published      int `db:"published"`
	Failed         int `db:"failed"`
	SourceMessages int `db:"source_messages"`
}
