// Package tasks implements the scheduled tasks of the listing bot.
package tasks

import (
	"context"
	"log/slog"

	"github.com/vroommarket/listingbot/internal/config"
	"github.com/vroommarket/listingbot/internal/database"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// TaskDeps contains the dependencies of scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Ingest Ingester
	Config *config.Config
}
