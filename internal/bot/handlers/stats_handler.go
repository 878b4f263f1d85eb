package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStatsHandler returns a handler for /stats.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	stats, err := h.deps.Store.GetStats(ctx)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to load stats", "handler", "stats", "error", err)
		reply(ctx, b, h.deps, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, h.deps, chatID, fmt.Sprintf(h.deps.Config.Messages.Stats,
		stats.Listings, stats.Published, stats.Failed, stats.SourceMessages))
}
