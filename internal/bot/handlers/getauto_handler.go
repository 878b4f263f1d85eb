package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"

	"github.com/vroommarket/listingbot/internal/database"
	"github.com/vroommarket/listingbot/internal/idgen"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

const maxCardPhotos = 10

var statusEmoji = map[pipeline.Status]string{
	pipeline.StatusPublished: "✅",
	pipeline.StatusPending:   "⏳",
	pipeline.StatusFailed:    "⚠️",
}

// NewGetAutoHandler returns a handler for /getauto <custom_id>.
func NewGetAutoHandler(deps HandlerDeps) bot.HandlerFunc {
	return getAutoHandler{deps}.Handle
}

type getAutoHandler struct {
	deps HandlerDeps
}

func (h getAutoHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "getauto")
	chatID := update.Message.Chat.ID

	customID, ok := parseCustomID(commandArgs(update.Message.Text))
	if !ok {
		reply(ctx, b, h.deps, chatID, h.deps.Config.Messages.GetAutoUsage)
		return
	}

	listing, err := h.deps.Store.GetListingByCustomID(ctx, customID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load listing", "custom_id", customID, "error", err)
		reply(ctx, b, h.deps, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if listing == nil {
		reply(ctx, b, h.deps, chatID, fmt.Sprintf(h.deps.Config.Messages.GetAutoNotFound, customID))
		return
	}

	rec, err := listing.Record()
	if err != nil {
		log.ErrorContext(ctx, "Failed to decode listing", "custom_id", customID, "error", err)
		reply(ctx, b, h.deps, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	card := formatListingCard(listing, rec)
	if len(rec.MediaURLs) > 0 {
		if err := sendCardPhotos(ctx, b, chatID, rec.MediaURLs); err != nil {
			log.WarnContext(ctx, "Failed to send listing photos", "custom_id", customID, "error", err)
			card = h.deps.Config.Messages.GetAutoNoPhotos + "\n\n" + card
		}
	}

	log.InfoContext(ctx, "Listing card sent", "custom_id", customID, "photos", len(rec.MediaURLs))
	reply(ctx, b, h.deps, chatID, card)
}

// parseCustomID accepts a bare "123-456" or a pasted "ID: 123-456" header.
func parseCustomID(arg string) (string, bool) {
	if id := idgen.Extract(arg); id != "" {
		arg = id
	}
	return arg, idgen.Valid(arg)
}

// sendCardPhotos sends hosted photos by URL; Telegram fetches them itself.
func sendCardPhotos(ctx context.Context, b *bot.Bot, chatID int64, urls []string) error {
	urls = lo.Slice(urls, 0, maxCardPhotos)
	if len(urls) == 1 {
		_, err := b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: chatID,
			Photo:  &models.InputFileString{Data: urls[0]},
		})
		return err
	}
	_, err := b.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
		ChatID: chatID,
		Media: lo.Map(urls, func(u string, _ int) models.InputMedia {
			return &models.InputMediaPhoto{Media: u}
		}),
	})
	return err
}

// formatListingCard renders a stored listing for the admin chat. The
// description loses its "ID:" header since the card shows the id itself.
func formatListingCard(l *database.Listing, rec *pipeline.Record) string {
	var sb strings.Builder
	attrs := rec.Attributes

	sb.WriteString("🚗 ")
	sb.WriteString(strings.TrimSpace(attrs.Brand + " " + attrs.Model))
	if attrs.Year != nil {
		fmt.Fprintf(&sb, " (%d)", *attrs.Year)
	}
	sb.WriteString("\n\n")

	if attrs.Price != nil {
		fmt.Fprintf(&sb, "💰 Цена: %s %s\n\n", attrs.Price.StringFixed(0), attrs.Currency)
	}

	if desc := stripIDHeader(rec.Text); desc != "" {
		sb.WriteString("📝 Описание:\n")
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "🆔 ID: %s\n", rec.CustomID)
	emoji, ok := statusEmoji[rec.Status]
	if !ok {
		emoji = "❓"
	}
	fmt.Fprintf(&sb, "%s Статус: %s\n", emoji, rec.Status)
	fmt.Fprintf(&sb, "📅 Добавлено: %s", l.CreatedAt.Format("2006-01-02"))
	return sb.String()
}

func stripIDHeader(text string) string {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	if idgen.Extract(first) != "" {
		text = rest
	}
	return strings.TrimSpace(text)
}
