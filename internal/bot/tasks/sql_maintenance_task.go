package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask prunes consumed source posts past their retention
// and then compacts the database.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled SQL maintenance task...")
		startTime := time.Now()

		cutoff := startTime.Add(-deps.Config.Database.SourceRetention)
		pruned, err := deps.Store.PruneSourceMessages(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Pruning source messages failed", "error", err)
			return fmt.Errorf("prune source messages: %w", err)
		}

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled SQL maintenance task completed successfully",
			"pruned", pruned,
			"cutoff", cutoff,
			"duration", time.Since(startTime),
		)
		return nil
	}
}
