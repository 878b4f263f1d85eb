package handlers

import (
	"context"
	"log/slog"

	"github.com/vroommarket/listingbot/internal/config"
	"github.com/vroommarket/listingbot/internal/database"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

// Ingester starts a tracked background ingestion pass.
type Ingester interface {
	Go(ctx context.Context, done func(pipeline.Summary, error))
}

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  database.Store
	Ingest Ingester
	Markup *pipeline.Markup
}
