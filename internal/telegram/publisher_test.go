package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vroommarket/listingbot/internal/pairer"
	"github.com/vroommarket/listingbot/internal/retry"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSender struct {
	mu       sync.Mutex
	nextID   int
	calls    []string
	captions []string
	groupErr error
	textErr  error
}

func (f *fakeSender) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "text")
	if f.textErr != nil {
		return nil, f.textErr
	}
	return &models.Message{ID: f.id(), Text: p.Text}, nil
}

func (f *fakeSender) SendPhoto(_ context.Context, p *bot.SendPhotoParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "photo")
	f.captions = append(f.captions, p.Caption)
	return &models.Message{ID: f.id()}, nil
}

func (f *fakeSender) SendMediaGroup(_ context.Context, p *bot.SendMediaGroupParams) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "group")
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	msgs := make([]*models.Message, len(p.Media))
	for i, m := range p.Media {
		if photo, ok := m.(*models.InputMediaPhoto); ok && i == 0 {
			f.captions = append(f.captions, photo.Caption)
		}
		msgs[i] = &models.Message{ID: f.id()}
	}
	return msgs, nil
}

func photos(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, "p"+string(rune('a'+i))+".jpg")
		if err := os.WriteFile(paths[i], []byte("jpeg"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func TestPlanPublish(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("я", MaxCaptionLength+1)
	tests := []struct {
		name         string
		text         string
		photos       int
		wantSeparate bool
		wantGroups   int
	}{
		{name: "text only", text: "BMW", photos: 0, wantSeparate: true, wantGroups: 0},
		{name: "caption fits", text: strings.Repeat("я", MaxCaptionLength), photos: 3, wantSeparate: false, wantGroups: 1},
		{name: "caption too long", text: long, photos: 3, wantSeparate: true, wantGroups: 1},
		{name: "emoji count twice", text: "🚗" + strings.Repeat("я", MaxCaptionLength-1), photos: 1, wantSeparate: true, wantGroups: 1},
		{name: "emoji within limit", text: "🚗" + strings.Repeat("я", MaxCaptionLength-2), photos: 1, wantSeparate: false, wantGroups: 1},
		{name: "more than one album", text: "BMW", photos: 12, wantSeparate: false, wantGroups: 2},
	}
	for _, tt := range tests {
		paths := make([]string, tt.photos)
		got := planPublish(tt.text, paths)
		if got.separateText != tt.wantSeparate || len(got.groups) != tt.wantGroups {
			t.Errorf("%s: plan = separate %v, %d groups; want %v, %d", tt.name, got.separateText, len(got.groups), tt.wantSeparate, tt.wantGroups)
		}
	}
}

func TestPublish(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		photos    int
		wantCalls string
		wantID    int
		wantMedia int
	}{
		{name: "text only", text: "BMW X5", wantCalls: "text", wantID: 1},
		{name: "single photo with caption", text: "BMW X5", photos: 1, wantCalls: "photo", wantID: 1, wantMedia: 1},
		{name: "album with caption", text: "BMW X5", photos: 3, wantCalls: "group", wantID: 1, wantMedia: 3},
		{name: "long text first", text: strings.Repeat("x", MaxCaptionLength+5), photos: 2, wantCalls: "text,group", wantID: 1, wantMedia: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &fakeSender{}
			pub, err := NewPublisher(s, -200, discard).Publish(context.Background(), tt.text, photos(t, tt.photos))
			if err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if got := strings.Join(s.calls, ","); got != tt.wantCalls {
				t.Errorf("calls = %s, want %s", got, tt.wantCalls)
			}
			if pub.MessageID != tt.wantID || len(pub.MediaIDs) != tt.wantMedia {
				t.Errorf("publication = %+v", pub)
			}
			for _, c := range s.captions {
				if c != "" && c != tt.text {
					t.Errorf("caption = %q", c)
				}
			}
		})
	}
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	t.Run("album failure without text", func(t *testing.T) {
		t.Parallel()
		s := &fakeSender{groupErr: &bot.TooManyRequestsError{Message: "slow down", RetryAfter: 7}}
		_, err := NewPublisher(s, -200, discard).Publish(context.Background(), "BMW", photos(t, 2))
		var limited *retry.RateLimitError
		if !errors.As(err, &limited) || limited.RetryAfter.Seconds() != 7 {
			t.Fatalf("Publish() error = %v, want RateLimitError with 7s", err)
		}
	})

	t.Run("album failure after text keeps publication", func(t *testing.T) {
		t.Parallel()
		s := &fakeSender{groupErr: errors.New("boom")}
		pub, err := NewPublisher(s, -200, discard).Publish(context.Background(), strings.Repeat("x", MaxCaptionLength+1), photos(t, 2))
		if err != nil || pub.MessageID == 0 {
			t.Fatalf("Publish() = %+v, %v; want text message id", pub, err)
		}
	})

	t.Run("forbidden is auth", func(t *testing.T) {
		t.Parallel()
		s := &fakeSender{textErr: bot.ErrorForbidden}
		_, err := NewPublisher(s, -200, discard).Publish(context.Background(), "BMW", nil)
		var auth *retry.AuthError
		if !errors.As(err, &auth) {
			t.Fatalf("Publish() error = %v, want AuthError", err)
		}
	})
}

type fakeFiles struct {
	url string
}

func (f fakeFiles) GetFile(_ context.Context, p *bot.GetFileParams) (*models.File, error) {
	return &models.File{FileID: p.FileID, FilePath: "photos/" + p.FileID + ".jpg"}, nil
}

func (f fakeFiles) FileDownloadLink(file *models.File) string {
	return f.url + "/" + file.FilePath
}

func TestDownload(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		switch {
		case strings.Contains(r.URL.Path, "missing"):
			w.WriteHeader(http.StatusNotFound)
		case strings.Contains(r.URL.Path, "flaky") && n == 1:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte("jpeg-bytes"))
		}
	}))
	t.Cleanup(srv.Close)

	policy := retry.New("download-test", retry.Config{MaxAttempts: 3, BaseDelay: 1, MaxDelay: 1}, discard)
	d := NewDownloader(fakeFiles{url: srv.URL}, srv.Client(), policy, discard)
	dir := t.TempDir()

	dest := filepath.Join(dir, "flaky.jpg")
	if err := d.Download(context.Background(), pairer.RawMessage{ID: 1, FileID: "flaky"}, dest); err != nil {
		t.Fatalf("Download(flaky) error = %v", err)
	}
	if data, err := os.ReadFile(dest); err != nil || string(data) != "jpeg-bytes" {
		t.Errorf("downloaded %q, %v", data, err)
	}

	dest = filepath.Join(dir, "missing.jpg")
	if err := d.Download(context.Background(), pairer.RawMessage{ID: 2, FileID: "missing"}, dest); err == nil {
		t.Error("Download(missing) error = nil")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}

	if err := d.Download(context.Background(), pairer.RawMessage{ID: 3}, filepath.Join(dir, "x.jpg")); err == nil {
		t.Error("Download(no file id) error = nil")
	}
}
