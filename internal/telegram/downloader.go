package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vroommarket/listingbot/internal/pairer"
	"github.com/vroommarket/listingbot/internal/retry"
)

// FileSource resolves Telegram file ids to download links.
type FileSource interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// Downloader fetches photos recorded from the source channel.
type Downloader struct {
	files  FileSource
	client *http.Client
	policy *retry.Policy
	log    *slog.Logger
}

var _ pairer.Downloader = (*Downloader)(nil)

// NewDownloader creates a downloader. A nil client uses http.DefaultClient;
// a nil policy makes single attempts.
func NewDownloader(files FileSource, client *http.Client, policy *retry.Policy, log *slog.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{
		files:  files,
		client: client,
		policy: policy,
		log:    log.With("component", "photo_downloader"),
	}
}

// Download writes the photo of msg to dest.
func (d *Downloader) Download(ctx context.Context, msg pairer.RawMessage, dest string) error {
	if msg.FileID == "" {
		return fmt.Errorf("message %d has no file id", msg.ID)
	}

	err := d.policy.Do(ctx, "photo download", func(ctx context.Context) error {
		return d.download(ctx, msg.FileID, dest)
	})
	if err != nil {
		_ = os.Remove(dest)
		return err
	}
	d.log.DebugContext(ctx, "Photo downloaded", "message_id", msg.ID, "dest", dest)
	return nil
}

func (d *Downloader) download(ctx context.Context, fileID, dest string) error {
	file, err := d.files.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return fmt.Errorf("get file: %w", classifyError(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.files.FileDownloadLink(file), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch file: %w", retry.Classify(err))
	}
	defer resp.Body.Close()

	if classified := retry.FromStatus(resp.StatusCode, resp.Header.Get("Retry-After"), nil); classified != nil {
		return fmt.Errorf("fetch file: %w", classified)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", dest, retry.Classify(err))
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}
