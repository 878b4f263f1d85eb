package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vroommarket/listingbot/internal/extractor"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

// SettingMarkupPercent is the settings key of the persisted price markup.
const SettingMarkupPercent = "markup_percent"

// ErrDuplicateListing is returned by SaveListing when the source message or
// custom id is already stored.
var ErrDuplicateListing = errors.New("listing already stored")

// Store defines the database operations. Methods accept a context for
// cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveSourceMessage records a source channel post. Re-recording the same
	// post (an edit) updates it.
	SaveSourceMessage(ctx context.Context, msg *SourceMessage) error

	// ListSourceMessages returns up to limit posts of chatID with a message id
	// above afterID, oldest first.
	ListSourceMessages(ctx context.Context, chatID, afterID int64, limit int) ([]SourceMessage, error)

	// GetIngestCursor returns the last message id handled for chatID, 0 if none.
	GetIngestCursor(ctx context.Context, chatID int64) (int64, error)

	// SetIngestCursor moves the cursor of chatID forward. It never moves back.
	SetIngestCursor(ctx context.Context, chatID, lastMessageID int64) error

	// CheckDuplicate returns the stored record for a source message, or nil.
	CheckDuplicate(ctx context.Context, sourceMessageID int64) (*pipeline.Record, error)

	// GetListingByCustomID returns the listing published under customID, or
	// nil when there is none.
	GetListingByCustomID(ctx context.Context, customID string) (*Listing, error)

	// CustomIDExists reports whether a custom id has been persisted.
	CustomIDExists(ctx context.Context, customID string) (bool, error)

	// SaveListing persists a published listing.
	SaveListing(ctx context.Context, rec *pipeline.Record) error

	// GetSetting returns a setting value and whether it exists.
	GetSetting(ctx context.Context, key string) (string, bool, error)

	// SetSetting inserts or replaces a setting.
	SetSetting(ctx context.Context, key, value string) error

	// GetStats returns listing counts.
	GetStats(ctx context.Context) (*Stats, error)

	// PruneSourceMessages deletes posts already behind the ingest cursor and
	// posted before olderThan.
	PruneSourceMessages(ctx context.Context, olderThan time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ pipeline.Store = (*sqlxStore)(nil)

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveSourceMessage(ctx context.Context, msg *SourceMessage) error {
	if msg == nil {
		return errors.New("cannot save nil source message")
	}
	if msg.ChatID == 0 || msg.MessageID == 0 {
		return fmt.Errorf("source message must have chat_id and message_id, got %d/%d", msg.ChatID, msg.MessageID)
	}

	msg.CreatedAt = s.now()
	if msg.PostedAt.IsZero() {
		msg.PostedAt = msg.CreatedAt
	}
	msg.PostedAt = msg.PostedAt.UTC()

	query := `
        INSERT INTO source_messages (chat_id, message_id, text, has_photo, media_is_image, file_id, mime_type, posted_at, created_at)
        VALUES (:chat_id, :message_id, :text, :has_photo, :media_is_image, :file_id, :mime_type, :posted_at, :created_at)
        ON CONFLICT (chat_id, message_id) DO UPDATE SET
            text = excluded.text,
            has_photo = excluded.has_photo,
            media_is_image = excluded.media_is_image,
            file_id = excluded.file_id,
            mime_type = excluded.mime_type;
    `
	if _, err := s.db.NamedExecContext(ctx, query, msg); err != nil {
		s.logger.ErrorContext(ctx, "Error saving source message", "chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		return fmt.Errorf("failed to save source message (chat %d, message %d): %w", msg.ChatID, msg.MessageID, err)
	}

	s.logger.DebugContext(ctx, "Source message saved", "chat_id", msg.ChatID, "message_id", msg.MessageID, "has_photo", msg.HasPhoto)
	return nil
}

func (s *sqlxStore) ListSourceMessages(ctx context.Context, chatID, afterID int64, limit int) ([]SourceMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	var msgs []SourceMessage
	query := `
        SELECT id, chat_id, message_id, text, has_photo, media_is_image, file_id, mime_type, posted_at, created_at
        FROM source_messages
        WHERE chat_id = ? AND message_id > ?
        ORDER BY message_id ASC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &msgs, query, chatID, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to list source messages for chat %d: %w", chatID, err)
	}
	return msgs, nil
}

func (s *sqlxStore) GetIngestCursor(ctx context.Context, chatID int64) (int64, error) {
	var last int64
	err := s.db.GetContext(ctx, &last, `SELECT last_message_id FROM ingest_state WHERE chat_id = ?;`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get ingest cursor for chat %d: %w", chatID, err)
	}
	return last, nil
}

func (s *sqlxStore) SetIngestCursor(ctx context.Context, chatID, lastMessageID int64) error {
	query := `
        INSERT INTO ingest_state (chat_id, last_message_id, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (chat_id) DO UPDATE SET
            last_message_id = MAX(ingest_state.last_message_id, excluded.last_message_id),
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, chatID, lastMessageID, s.now()); err != nil {
		return fmt.Errorf("failed to set ingest cursor for chat %d: %w", chatID, err)
	}
	s.logger.DebugContext(ctx, "Ingest cursor updated", "chat_id", chatID, "last_message_id", lastMessageID)
	return nil
}

func (s *sqlxStore) CheckDuplicate(ctx context.Context, sourceMessageID int64) (*pipeline.Record, error) {
	var row Listing
	query := `
        SELECT id, custom_id, source_chat_id, source_message_id, target_message_id, status, brand, model, year,
               price, currency, mileage, engine_volume, transmission, drive_type, description, media_urls,
               created_at, updated_at
        FROM listings
        WHERE source_message_id = ?;
    `
	err := s.db.GetContext(ctx, &row, query, sourceMessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate for source message %d: %w", sourceMessageID, err)
	}

	rec, err := row.Record()
	if err != nil {
		return nil, fmt.Errorf("failed to decode listing %s: %w", row.CustomID, err)
	}
	return rec, nil
}

func (s *sqlxStore) GetListingByCustomID(ctx context.Context, customID string) (*Listing, error) {
	var row Listing
	query := `
        SELECT id, custom_id, source_chat_id, source_message_id, target_message_id, status, brand, model, year,
               price, currency, mileage, engine_volume, transmission, drive_type, description, media_urls,
               created_at, updated_at
        FROM listings
        WHERE custom_id = ?;
    `
	err := s.db.GetContext(ctx, &row, query, customID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing %s: %w", customID, err)
	}
	return &row, nil
}

func (s *sqlxStore) CustomIDExists(ctx context.Context, customID string) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM listings WHERE custom_id = ?);`, customID); err != nil {
		return false, fmt.Errorf("failed to check custom id %s: %w", customID, err)
	}
	return exists, nil
}

func (s *sqlxStore) SaveListing(ctx context.Context, rec *pipeline.Record) error {
	if rec == nil {
		return errors.New("cannot save nil listing")
	}
	if rec.CustomID == "" || rec.SourceMessageID == 0 {
		return fmt.Errorf("listing must have custom_id and source_message_id, got %q/%d", rec.CustomID, rec.SourceMessageID)
	}

	row, err := listingFromRecord(rec, s.now())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	query := `
        INSERT INTO listings (custom_id, source_chat_id, source_message_id, target_message_id, status, brand, model, year,
                              price, currency, mileage, engine_volume, transmission, drive_type, description, media_urls,
                              created_at, updated_at)
        VALUES (:custom_id, :source_chat_id, :source_message_id, :target_message_id, :status, :brand, :model, :year,
                :price, :currency, :mileage, :engine_volume, :transmission, :drive_type, :description, :media_urls,
                :created_at, :updated_at);
    `
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: source message %d, custom id %s", ErrDuplicateListing, rec.SourceMessageID, rec.CustomID)
		}
		s.logger.ErrorContext(ctx, "Error saving listing", "custom_id", rec.CustomID, "error", err)
		return fmt.Errorf("failed to save listing %s: %w", rec.CustomID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Listing saved", "custom_id", rec.CustomID, "source_message_id", rec.SourceMessageID)
	return nil
}

func (s *sqlxStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?;`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *sqlxStore) SetSetting(ctx context.Context, key, value string) error {
	query := `
        INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, key, value, s.now()); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func (s *sqlxStore) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	query := `
        SELECT
            (SELECT COUNT(*) FROM listings) AS listings,
            (SELECT COUNT(*) FROM listings WHERE status = 'published') AS published,
            (SELECT COUNT(*) FROM listings WHERE status = 'failed') AS failed,
            (SELECT COUNT(*) FROM source_messages) AS source_messages;
    `
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

func (s *sqlxStore) PruneSourceMessages(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
        DELETE FROM source_messages
        WHERE posted_at < ?
          AND message_id <= COALESCE(
              (SELECT last_message_id FROM ingest_state WHERE ingest_state.chat_id = source_messages.chat_id), 0);
    `
	res, err := s.db.ExecContext(ctx, query, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune source messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned source messages: %w", err)
	}
	s.logger.InfoContext(ctx, "Pruned source messages", "deleted", n)
	return n, nil
}

// RunSQLMaintenance runs ANALYZE and VACUUM.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (ANALYZE, VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.WarnContext(ctx, "ANALYZE failed", "error", err)
	}

	// VACUUM must run outside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func listingFromRecord(rec *pipeline.Record, now time.Time) (*Listing, error) {
	urls := rec.MediaURLs
	if urls == nil {
		urls = []string{}
	}
	mediaJSON, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode media urls: %w", err)
	}

	a := rec.Attributes
	row := &Listing{
		CustomID:        rec.CustomID,
		SourceChatID:    rec.SourceChatID,
		SourceMessageID: rec.SourceMessageID,
		Status:          string(rec.Status),
		Brand:           a.Brand,
		Model:           a.Model,
		Currency:        a.Currency,
		EngineVolume:    a.EngineVolume,
		Transmission:    a.Transmission.String(),
		DriveType:       a.DriveType.String(),
		Description:     rec.Text,
		MediaURLs:       string(mediaJSON),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if rec.TargetMessageID != nil {
		row.TargetMessageID = sql.NullInt64{Int64: int64(*rec.TargetMessageID), Valid: true}
	}
	if a.Year != nil {
		row.Year = sql.NullInt64{Int64: int64(*a.Year), Valid: true}
	}
	if a.Price != nil {
		row.Price = sql.NullString{String: a.Price.String(), Valid: true}
	}
	if a.Mileage != nil {
		row.Mileage = sql.NullInt64{Int64: int64(*a.Mileage), Valid: true}
	}
	return row, nil
}

// Record decodes the stored row into a publish record.
func (l *Listing) Record() (*pipeline.Record, error) {
	rec := &pipeline.Record{
		CustomID:        l.CustomID,
		SourceChatID:    l.SourceChatID,
		SourceMessageID: l.SourceMessageID,
		Status:          pipeline.Status(l.Status),
		Text:            l.Description,
		Attributes: extractor.CarAttributes{
			Brand:        l.Brand,
			Model:        l.Model,
			Currency:     l.Currency,
			EngineVolume: l.EngineVolume,
			Transmission: extractor.ParseTransmission(l.Transmission),
			DriveType:    extractor.ParseDriveType(l.DriveType),
		},
	}

	if l.TargetMessageID.Valid {
		id := int(l.TargetMessageID.Int64)
		rec.TargetMessageID = &id
	}
	if l.Year.Valid {
		y := int(l.Year.Int64)
		rec.Attributes.Year = &y
	}
	if l.Mileage.Valid {
		m := int(l.Mileage.Int64)
		rec.Attributes.Mileage = &m
	}
	if l.Price.Valid {
		p, err := decimal.NewFromString(l.Price.String)
		if err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", l.Price.String, err)
		}
		rec.Attributes.Price = &p
	}
	if l.MediaURLs != "" {
		if err := json.Unmarshal([]byte(l.MediaURLs), &rec.MediaURLs); err != nil {
			return nil, fmt.Errorf("invalid stored media urls: %w", err)
		}
	}
	return rec, nil
}
