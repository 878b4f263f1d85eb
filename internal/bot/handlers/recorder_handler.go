package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"

	"github.com/vroommarket/listingbot/internal/database"
	"github.com/vroommarket/listingbot/internal/metrics"
)

// NewSourceRecorder returns the default handler. It stores posts of the
// source channel so ingestion can pair them later; everything else is
// ignored.
func NewSourceRecorder(deps HandlerDeps) bot.HandlerFunc {
	return recorderHandler{deps}.Handle
}

type recorderHandler struct {
	deps HandlerDeps
}

func (h recorderHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	post := update.ChannelPost
	if post == nil {
		post = update.EditedChannelPost
	}
	if post == nil || post.Chat.ID != h.deps.Config.Telegram.SourceChatID {
		return
	}

	log := h.deps.Logger.With("handler", "recorder")

	msg := sourceMessageFromPost(post)
	if msg.Text == "" && msg.FileID == "" {
		log.DebugContext(ctx, "Ignoring post without text or image", "message_id", post.ID)
		return
	}

	if err := h.deps.Store.SaveSourceMessage(ctx, msg); err != nil {
		log.ErrorContext(ctx, "Failed to record source post", "message_id", post.ID, "error", err)
		return
	}
	metrics.SourceMessagesRecorded.Inc()
	log.DebugContext(ctx, "Recorded source post", "message_id", post.ID, "has_photo", msg.HasPhoto, "text_len", len(msg.Text))
}

// sourceMessageFromPost maps a channel post onto a stored source message.
// Photos keep the largest size; image documents count as photos too.
func sourceMessageFromPost(post *models.Message) *database.SourceMessage {
	text := post.Text
	if text == "" {
		text = post.Caption
	}

	msg := &database.SourceMessage{
		ChatID:    post.Chat.ID,
		MessageID: int64(post.ID),
		Text:      strings.TrimSpace(text),
		PostedAt:  time.Unix(int64(post.Date), 0),
	}

	switch {
	case len(post.Photo) > 0:
		largest := lo.MaxBy(post.Photo, func(a, b models.PhotoSize) bool { return a.Width*a.Height > b.Width*b.Height })
		msg.HasPhoto = true
		msg.MediaIsImage = true
		msg.FileID = largest.FileID
		msg.MimeType = "image/jpeg"
	case post.Document != nil && strings.HasPrefix(post.Document.MimeType, "image/"):
		msg.MediaIsImage = true
		msg.FileID = post.Document.FileID
		msg.MimeType = post.Document.MimeType
	}
	return msg
}
