package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf16"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"

	"github.com/vroommarket/listingbot/internal/pipeline"
)

const (
	// MaxCaptionLength is the Bot API limit for media captions, in UTF-16
	// code units.
	MaxCaptionLength = 1024
	maxMediaGroup    = 10
)

// Sender is the subset of *bot.Bot the publisher needs.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendMediaGroup(ctx context.Context, params *bot.SendMediaGroupParams) ([]*models.Message, error)
}

// Publisher posts listings to the target channel.
type Publisher struct {
	sender Sender
	chatID int64
	log    *slog.Logger
}

var _ pipeline.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher posting to chatID.
func NewPublisher(sender Sender, chatID int64, log *slog.Logger) *Publisher {
	return &Publisher{
		sender: sender,
		chatID: chatID,
		log:    log.With("component", "publisher"),
	}
}

// publishPlan describes how a listing is laid out in the channel.
type publishPlan struct {
	// separateText is set when the text goes out as its own message before
	// the photos.
	separateText bool
	// groups are photo batches; a batch of one is sent with sendPhoto.
	groups [][]string
}

// captionLength counts text the way Telegram does: emoji outside the BMP
// take two units.
func captionLength(text string) int {
	return len(utf16.Encode([]rune(text)))
}

func planPublish(text string, photoPaths []string) publishPlan {
	return publishPlan{
		separateText: len(photoPaths) == 0 || captionLength(text) > MaxCaptionLength,
		groups:       lo.Chunk(photoPaths, maxMediaGroup),
	}
}

// Publish posts text with the photos at photoPaths. Text that fits a
// caption rides on the first photo; longer text is sent first as a plain
// message. The returned MessageID is the message carrying the text.
func (p *Publisher) Publish(ctx context.Context, text string, photoPaths []string) (pipeline.Publication, error) {
	plan := planPublish(text, photoPaths)
	var pub pipeline.Publication

	if plan.separateText {
		msg, err := p.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: p.chatID, Text: text})
		if err != nil {
			return pipeline.Publication{}, fmt.Errorf("send text: %w", classifyError(err))
		}
		pub.MessageID = msg.ID
	}

	for i, group := range plan.groups {
		caption := ""
		if !plan.separateText && i == 0 {
			caption = text
		}
		ids, err := p.sendGroup(ctx, group, caption)
		if err != nil {
			if pub.MessageID != 0 {
				// The text is already out; missing photos do not unpublish it.
				p.log.WarnContext(ctx, "Failed to send photos after text", "message_id", pub.MessageID, "group", i, "error", err)
				continue
			}
			return pipeline.Publication{}, err
		}
		if pub.MessageID == 0 && len(ids) > 0 {
			pub.MessageID = ids[0]
		}
		pub.MediaIDs = append(pub.MediaIDs, ids...)
	}

	p.log.InfoContext(ctx, "Listing published", "message_id", pub.MessageID, "photos", len(pub.MediaIDs))
	return pub, nil
}

func (p *Publisher) sendGroup(ctx context.Context, paths []string, caption string) ([]int, error) {
	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open photo %s: %w", path, err)
		}
		files = append(files, f)
	}

	if len(files) == 1 {
		msg, err := p.sender.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  p.chatID,
			Photo:   &models.InputFileUpload{Filename: filepath.Base(paths[0]), Data: files[0]},
			Caption: caption,
		})
		if err != nil {
			return nil, fmt.Errorf("send photo: %w", classifyError(err))
		}
		return []int{msg.ID}, nil
	}

	media := make([]models.InputMedia, len(files))
	for i, f := range files {
		name := fmt.Sprintf("photo%d%s", i, filepath.Ext(paths[i]))
		item := &models.InputMediaPhoto{
			Media:           "attach://" + name,
			MediaAttachment: io.Reader(f),
		}
		if i == 0 {
			item.Caption = caption
		}
		media[i] = item
	}

	msgs, err := p.sender.SendMediaGroup(ctx, &bot.SendMediaGroupParams{ChatID: p.chatID, Media: media})
	if err != nil {
		return nil, fmt.Errorf("send media group: %w", classifyError(err))
	}
	if len(msgs) == 0 {
		return nil, errors.New("send media group: no messages returned")
	}
	return lo.Map(msgs, func(m *models.Message, _ int) int { return m.ID }), nil
}
