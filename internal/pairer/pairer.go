// Package pairer rebuilds listings from a chronological stream of channel
// messages: photos accumulate until a plain text message closes them into
// one listing.
package pairer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultMaxPhotos is the per-listing photo cap.
const DefaultMaxPhotos = 8

// RawMessage is one message of the source stream. IDs only need to be
// increasing; gaps are fine.
type RawMessage struct {
	ID           int64
	ChatID       int64
	Text         string
	HasPhoto     bool
	MediaIsImage bool
	FileID       string
	MimeType     string
}

// IsPhoto reports whether the message carries an image, either as a photo or
// as a document with an image MIME type.
func (m RawMessage) IsPhoto() bool {
	return m.HasPhoto || m.MediaIsImage || strings.HasPrefix(strings.ToLower(m.MimeType), "image/")
}

// Listing is one reconstructed announcement: the closing text and the photos
// that preceded it. The receiver owns Scope and must release it.
type Listing struct {
	ChatID          int64
	AnchorMessageID int64
	Text            string
	PhotoPaths      []string
	PhotoMessageIDs []int64
	Scope           *TempScope
}

// Downloader fetches the image of msg into dest.
type Downloader interface {
	Download(ctx context.Context, msg RawMessage, dest string) error
}

// Window bounds one pairing run. Messages below StartFromID are skipped and
// at most Limit listings are produced; zero means no bound.
type Window struct {
	StartFromID int64
	Limit       int
}

// Pairer turns ordered messages into listings.
type Pairer struct {
	downloader Downloader
	root       string
	maxPhotos  int
	logger     *slog.Logger
}

// New creates a Pairer that keeps listing scopes under root.
func New(downloader Downloader, root string, maxPhotos int, logger *slog.Logger) *Pairer {
	if maxPhotos <= 0 {
		maxPhotos = DefaultMaxPhotos
	}
	return &Pairer{
		downloader: downloader,
		root:       root,
		maxPhotos:  maxPhotos,
		logger:     logger.With("component", "pairer"),
	}
}

// Chronological returns a copy of msgs sorted oldest first.
func Chronological(msgs []RawMessage) []RawMessage {
	out := slices.Clone(msgs)
	slices.SortStableFunc(out, func(a, b RawMessage) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

type pending struct {
	scope *TempScope
	paths []string
	ids   []int64
}

func photoExt(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	default:
		return ".jpg"
	}
}

// Pair runs the whole stream through PairWindow without bounds.
func (p *Pairer) Pair(ctx context.Context, msgs []RawMessage) []Listing {
	return p.PairWindow(ctx, msgs, Window{})
}

// PairWindow pairs msgs, which must be oldest first, in a single pass. It
// never fails: photos that cannot be stored are dropped, text without
// preceding photos is discarded, and trailing photos are released.
func (p *Pairer) PairWindow(ctx context.Context, msgs []RawMessage, w Window) []Listing {
	var (
		out []Listing
		buf *pending
	)

	defer func() {
		if buf != nil {
			p.logger.DebugContext(ctx, "Dropping trailing photos without text", "photos", len(buf.ids), "dir", buf.scope.Dir())
			if err := buf.scope.Release(); err != nil {
				p.logger.WarnContext(ctx, "Failed to release dangling scope", "dir", buf.scope.Dir(), "error", err)
			}
		}
	}()

	for _, msg := range msgs {
		if ctx.Err() != nil {
			p.logger.InfoContext(ctx, "Pairing interrupted", "listings", len(out))
			break
		}
		if msg.ID < w.StartFromID {
			continue
		}

		if msg.IsPhoto() {
			buf = p.addPhoto(ctx, buf, msg)
			continue
		}

		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		if buf == nil {
			p.logger.DebugContext(ctx, "Discarding text without photos", "message_id", msg.ID)
			continue
		}
		if len(buf.paths) == 0 {
			p.logger.WarnContext(ctx, "Discarding listing whose photos all failed to download", "message_id", msg.ID)
			_ = buf.scope.Release()
			buf = nil
			continue
		}

		out = append(out, Listing{
			ChatID:          msg.ChatID,
			AnchorMessageID: msg.ID,
			Text:            msg.Text,
			PhotoPaths:      buf.paths,
			PhotoMessageIDs: buf.ids,
			Scope:           buf.scope,
		})
		buf = nil

		if w.Limit > 0 && len(out) >= w.Limit {
			break
		}
	}

	return out
}

func (p *Pairer) addPhoto(ctx context.Context, buf *pending, msg RawMessage) *pending {
	if buf == nil {
		scope, err := NewTempScope(filepath.Join(p.root, fmt.Sprintf("listing-%d", msg.ID)))
		if err != nil {
			p.logger.WarnContext(ctx, "Dropping photo, cannot create scope", "message_id", msg.ID, "error", err)
			return nil
		}
		buf = &pending{scope: scope}
	}

	if len(buf.paths) >= p.maxPhotos {
		p.logger.DebugContext(ctx, "Photo cap reached, skipping", "message_id", msg.ID, "cap", p.maxPhotos)
		return buf
	}

	dest := filepath.Join(buf.scope.Dir(), fmt.Sprintf("photo_%d%s", msg.ID, photoExt(msg.MimeType)))
	if err := p.downloader.Download(ctx, msg, dest); err != nil {
		p.logger.WarnContext(ctx, "Dropping photo after failed download", "message_id", msg.ID, "error", err)
		return buf
	}

	buf.paths = append(buf.paths, dest)
	buf.ids = append(buf.ids, msg.ID)
	return buf
}
