package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vroommarket/listingbot/internal/ingest"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

// NewIngestHandler returns a handler for /ingest, which starts an
// ingestion pass in the background and reports its summary when done.
func NewIngestHandler(deps HandlerDeps) bot.HandlerFunc {
	return ingestHandler{deps}.Handle
}

type ingestHandler struct {
	deps HandlerDeps
}

func (h ingestHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "ingest")
	msgs := h.deps.Config.Messages
	chatID := update.Message.Chat.ID

	log.InfoContext(ctx, "Manual ingest requested", "chat_id", chatID)
	reply(ctx, b, h.deps, chatID, msgs.IngestStarted)

	// The update worker must stay free for channel posts while listings
	// are published.
	h.deps.Ingest.Go(ctx, func(summary pipeline.Summary, err error) {
		switch {
		case errors.Is(err, ingest.ErrBusy):
			reply(ctx, b, h.deps, chatID, msgs.IngestBusy)
		case err != nil:
			log.ErrorContext(ctx, "Manual ingest failed", "error", err)
			reply(ctx, b, h.deps, chatID, msgs.GeneralError)
		default:
			reply(ctx, b, h.deps, chatID, formatSummary(msgs.IngestDone, summary))
		}
	})
}

// formatSummary fills the done template with published, duplicate, failed
// and cancelled counts. Orphaned publications are counted as published.
func formatSummary(tmpl string, s pipeline.Summary) string {
	return fmt.Sprintf(tmpl, s.Published+s.Orphaned, s.Duplicate, s.Failed, s.Cancelled)
}
