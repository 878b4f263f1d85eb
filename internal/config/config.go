// Package config loads and validates the listingbot configuration.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config is the root configuration structure.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds the SQLite database settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	// SourceRetention is how long ingested source posts are kept.
	SourceRetention time.Duration `mapstructure:"source_retention" validate:"min=1h"`
}

// TelegramConfig holds the bot token and the chats the bot works with.
type TelegramConfig struct {
	Token        string `mapstructure:"token"          validate:"required"`
	AdminUserID  int64  `mapstructure:"admin_user_id"  validate:"required,gt=0"`
	SourceChatID int64  `mapstructure:"source_chat_id" validate:"required"`
	TargetChatID int64  `mapstructure:"target_chat_id" validate:"required,nefield=SourceChatID"`

	// BotInfo is filled at startup from GetMe.
	BotInfo *models.User `mapstructure:"-"`
}

// GeminiConfig configures the rewrite and OCR model calls.
type GeminiConfig struct {
	APIKey       string        `mapstructure:"api_key"       validate:"required"`
	ModelName    string        `mapstructure:"model_name"    validate:"required"`
	OCRModelName string        `mapstructure:"ocr_model_name"`
	Temperature  float32       `mapstructure:"temperature"   validate:"min=0,max=2"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"min=1s,max=10m"`
}

// CloudinaryConfig configures the media store.
type CloudinaryConfig struct {
	URL    string `mapstructure:"url"    validate:"required,startswith=cloudinary://"`
	Folder string `mapstructure:"folder"`
}

// IngestConfig bounds one ingestion run.
type IngestConfig struct {
	Limit       int    `mapstructure:"limit"         validate:"min=1,max=500"`
	StartFromID int64  `mapstructure:"start_from_id" validate:"min=0"`
	MaxPhotos   int    `mapstructure:"max_photos"    validate:"min=1,max=10"`
	TempDir     string `mapstructure:"temp_dir"      validate:"required"`
	ReadLimit   int    `mapstructure:"read_limit"    validate:"min=1,max=10000"`
}

// PipelineConfig tunes the publish orchestrator.
type PipelineConfig struct {
	Workers       int           `mapstructure:"workers"        validate:"min=1,max=8"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"   validate:"min=1s,max=10m"`
	MarkupPercent float64       `mapstructure:"markup_percent" validate:"min=0,max=500"`
	Footer        string        `mapstructure:"footer"`
}

// RetryConfig tunes retries and circuit breakers around remote calls.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"     validate:"min=1,max=10"`
	BaseDelay       time.Duration `mapstructure:"base_delay"       validate:"min=10ms"`
	MaxDelay        time.Duration `mapstructure:"max_delay"        validate:"gtefield=BaseDelay"`
	BreakerFailures uint32        `mapstructure:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"  validate:"min=1s"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig holds the schedule of one task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds the texts the bot replies with.
type MessagesConfig struct {
	Welcome       string `mapstructure:"welcome"        validate:"required"`
	Unauthorized  string `mapstructure:"unauthorized"   validate:"required"`
	GeneralError  string `mapstructure:"general_error"  validate:"required"`
	MarkupCurrent string `mapstructure:"markup_current" validate:"required"`
	MarkupUpdated string `mapstructure:"markup_updated" validate:"required"`
	MarkupInvalid string `mapstructure:"markup_invalid" validate:"required"`
	IngestStarted string `mapstructure:"ingest_started" validate:"required"`
	IngestBusy    string `mapstructure:"ingest_busy"    validate:"required"`
	IngestDone    string `mapstructure:"ingest_done"    validate:"required"`
	Stats         string `mapstructure:"stats"          validate:"required"`

	GetAutoUsage    string `mapstructure:"getauto_usage"     validate:"required"`
	GetAutoNotFound string `mapstructure:"getauto_not_found" validate:"required"`
	GetAutoNoPhotos string `mapstructure:"getauto_no_photos" validate:"required"`
}
