package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vroommarket/listingbot/internal/database"
	"github.com/vroommarket/listingbot/internal/metrics"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

// NewMarkupHandler returns a handler for /markup. Without an argument it
// shows the current markup; with one it sets and persists it.
func NewMarkupHandler(deps HandlerDeps) bot.HandlerFunc {
	return markupHandler{deps}.Handle
}

type markupHandler struct {
	deps HandlerDeps
}

func (h markupHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "markup")
	msgs := h.deps.Config.Messages
	chatID := update.Message.Chat.ID

	arg := commandArgs(update.Message.Text)
	if arg == "" {
		reply(ctx, b, h.deps, chatID, fmt.Sprintf(msgs.MarkupCurrent, formatPercent(h.deps.Markup.Get())))
		return
	}

	percent, err := parseMarkup(arg)
	if err != nil {
		log.InfoContext(ctx, "Rejected markup value", "value", arg, "error", err)
		reply(ctx, b, h.deps, chatID, msgs.MarkupInvalid)
		return
	}

	value := formatPercent(percent)
	if err := h.deps.Store.SetSetting(ctx, database.SettingMarkupPercent, value); err != nil {
		log.ErrorContext(ctx, "Failed to persist markup", "error", err)
		reply(ctx, b, h.deps, chatID, msgs.GeneralError)
		return
	}
	if err := h.deps.Markup.Set(percent); err != nil {
		reply(ctx, b, h.deps, chatID, msgs.MarkupInvalid)
		return
	}
	metrics.MarkupPercent.Set(percent)

	log.InfoContext(ctx, "Markup updated", "percent", percent)
	reply(ctx, b, h.deps, chatID, fmt.Sprintf(msgs.MarkupUpdated, value))
}

// parseMarkup reads a percentage such as "15", "12,5" or "20%".
func parseMarkup(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if err := pipeline.ValidateMarkup(v); err != nil {
		return 0, err
	}
	return v, nil
}

// commandArgs returns the text after the command word.
func commandArgs(text string) string {
	_, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(args)
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
