package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/vroommarket/listingbot/internal/ingest"
)

// newIngestTask publishes listings recorded since the last run.
func newIngestTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "ingest")

	return func(ctx context.Context) error {
		summary, err := deps.Ingest.Run(ctx)
		if errors.Is(err, ingest.ErrBusy) {
			log.InfoContext(ctx, "Skipping scheduled ingest, a run is already in progress")
			return nil
		}
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		if summary.Total > 0 {
			log.InfoContext(ctx, "Scheduled ingest finished",
				"total", summary.Total,
				"published", summary.Published,
				"duplicate", summary.Duplicate,
				"failed", summary.Failed,
				"orphaned", summary.Orphaned,
				"cancelled", summary.Cancelled,
			)
		}
		return nil
	}
}
