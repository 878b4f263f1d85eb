package pairer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/vroommarket/listingbot/internal/pairer"
)

type fakeDownloader struct {
	mu     sync.Mutex
	fail   map[int64]bool
	called []int64
}

func (f *fakeDownloader) Download(_ context.Context, msg pairer.RawMessage, dest string) error {
	f.mu.Lock()
	f.called = append(f.called, msg.ID)
	fail := f.fail[msg.ID]
	f.mu.Unlock()

	if fail {
		return errors.New("download failed")
	}
	return os.WriteFile(dest, []byte("jpeg"), 0o644)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func photo(id int64) pairer.RawMessage {
	return pairer.RawMessage{ID: id, ChatID: -100, HasPhoto: true, FileID: "f"}
}

func text(id int64, s string) pairer.RawMessage {
	return pairer.RawMessage{ID: id, ChatID: -100, Text: s}
}

func releaseAll(listings []pairer.Listing) {
	for _, l := range listings {
		_ = l.Scope.Release()
	}
}

func TestPairExampleStream(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := pairer.New(&fakeDownloader{}, root, 0, discardLogger())

	got := p.Pair(context.Background(), []pairer.RawMessage{
		photo(101), photo(102), text(103, "Car A"), photo(104), text(105, "Car B"),
	})
	defer releaseAll(got)

	if len(got) != 2 {
		t.Fatalf("Pair() returned %d listings, want 2", len(got))
	}

	tests := []struct {
		text   string
		anchor int64
		photos []int64
	}{
		{text: "Car A", anchor: 103, photos: []int64{101, 102}},
		{text: "Car B", anchor: 105, photos: []int64{104}},
	}
	for i, tt := range tests {
		l := got[i]
		if l.Text != tt.text || l.AnchorMessageID != tt.anchor {
			t.Errorf("listing %d = %q/%d, want %q/%d", i, l.Text, l.AnchorMessageID, tt.text, tt.anchor)
		}
		if !slices.Equal(l.PhotoMessageIDs, tt.photos) {
			t.Errorf("listing %d photos = %v, want %v", i, l.PhotoMessageIDs, tt.photos)
		}
		for _, path := range l.PhotoPaths {
			if filepath.Dir(path) != l.Scope.Dir() {
				t.Errorf("photo %s outside scope %s", path, l.Scope.Dir())
			}
			if _, err := os.Stat(path); err != nil {
				t.Errorf("photo %s missing: %v", path, err)
			}
		}
	}

	if got[0].Scope.Dir() == got[1].Scope.Dir() {
		t.Error("listings share a scope")
	}
	if want := filepath.Join(root, "listing-101", "photo_101.jpg"); got[0].PhotoPaths[0] != want {
		t.Errorf("first path = %s, want %s", got[0].PhotoPaths[0], want)
	}
}

func TestPairEdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msgs    []pairer.RawMessage
		anchors []int64
	}{
		{name: "empty stream", msgs: nil, anchors: nil},
		{name: "only photos", msgs: []pairer.RawMessage{photo(1), photo(2)}, anchors: nil},
		{name: "only text", msgs: []pairer.RawMessage{text(1, "a"), text(2, "b")}, anchors: nil},
		{
			name:    "text before photos is discarded",
			msgs:    []pairer.RawMessage{text(1, "orphan"), photo(2), text(3, "car")},
			anchors: []int64{3},
		},
		{
			name:    "trailing photos dropped",
			msgs:    []pairer.RawMessage{photo(1), text(2, "car"), photo(3), photo(4)},
			anchors: []int64{2},
		},
		{
			name:    "second text closes nothing",
			msgs:    []pairer.RawMessage{photo(1), text(2, "car"), text(3, "comment")},
			anchors: []int64{2},
		},
		{
			name:    "blank text is ignored",
			msgs:    []pairer.RawMessage{photo(1), text(2, "   "), photo(3), text(4, "car")},
			anchors: []int64{4},
		},
		{
			name: "image document counts as photo",
			msgs: []pairer.RawMessage{
				{ID: 1, MimeType: "image/png"},
				text(2, "car"),
			},
			anchors: []int64{2},
		},
		{
			name: "non-image document is skipped",
			msgs: []pairer.RawMessage{
				{ID: 1, MimeType: "application/pdf"},
				text(2, "car"),
			},
			anchors: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := pairer.New(&fakeDownloader{}, t.TempDir(), 0, discardLogger())
			got := p.Pair(context.Background(), tt.msgs)
			defer releaseAll(got)

			var anchors []int64
			for _, l := range got {
				anchors = append(anchors, l.AnchorMessageID)
			}
			if !slices.Equal(anchors, tt.anchors) {
				t.Errorf("anchors = %v, want %v", anchors, tt.anchors)
			}
		})
	}
}

func TestPairTrailingScopeReleased(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := pairer.New(&fakeDownloader{}, root, 0, discardLogger())

	got := p.Pair(context.Background(), []pairer.RawMessage{photo(1), text(2, "car"), photo(3)})
	defer releaseAll(got)

	if _, err := os.Stat(filepath.Join(root, "listing-3")); !os.IsNotExist(err) {
		t.Errorf("dangling scope still exists: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "listing-1")); err != nil {
		t.Errorf("listing scope missing: %v", err)
	}
}

func TestPairPhotoCap(t *testing.T) {
	t.Parallel()

	var msgs []pairer.RawMessage
	for id := int64(1); id <= 10; id++ {
		msgs = append(msgs, photo(id))
	}
	msgs = append(msgs, text(11, "car"))

	dl := &fakeDownloader{}
	p := pairer.New(dl, t.TempDir(), 8, discardLogger())
	got := p.Pair(context.Background(), msgs)
	defer releaseAll(got)

	if len(got) != 1 {
		t.Fatalf("Pair() returned %d listings, want 1", len(got))
	}
	if want := []int64{1, 2, 3, 4, 5, 6, 7, 8}; !slices.Equal(got[0].PhotoMessageIDs, want) {
		t.Errorf("photos = %v, want %v", got[0].PhotoMessageIDs, want)
	}
	if len(dl.called) != 8 {
		t.Errorf("downloads = %d, want 8", len(dl.called))
	}
}

func TestPairDownloadFailureDropsOnePhoto(t *testing.T) {
	t.Parallel()

	dl := &fakeDownloader{fail: map[int64]bool{2: true}}
	p := pairer.New(dl, t.TempDir(), 0, discardLogger())

	got := p.Pair(context.Background(), []pairer.RawMessage{photo(1), photo(2), photo(3), text(4, "car")})
	defer releaseAll(got)

	if len(got) != 1 {
		t.Fatalf("Pair() returned %d listings, want 1", len(got))
	}
	if want := []int64{1, 3}; !slices.Equal(got[0].PhotoMessageIDs, want) {
		t.Errorf("photos = %v, want %v", got[0].PhotoMessageIDs, want)
	}
}

func TestPairDeterministic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	msgs := []pairer.RawMessage{photo(10), photo(11), text(12, "A"), photo(13), text(14, "B")}
	p := pairer.New(&fakeDownloader{}, root, 0, discardLogger())

	first := p.Pair(context.Background(), msgs)
	second := p.Pair(context.Background(), msgs)
	defer releaseAll(second)

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text || !slices.Equal(first[i].PhotoPaths, second[i].PhotoPaths) {
			t.Errorf("listing %d differs between runs", i)
		}
	}
}

func TestPairWindow(t *testing.T) {
	t.Parallel()

	msgs := []pairer.RawMessage{
		photo(1), text(2, "A"),
		photo(3), text(4, "B"),
		photo(5), text(6, "C"),
		photo(7), text(8, "D"),
	}

	tests := []struct {
		name    string
		window  pairer.Window
		anchors []int64
	}{
		{name: "unbounded", window: pairer.Window{}, anchors: []int64{2, 4, 6, 8}},
		{name: "resume after cursor", window: pairer.Window{StartFromID: 3}, anchors: []int64{4, 6, 8}},
		{name: "limit takes oldest", window: pairer.Window{Limit: 2}, anchors: []int64{2, 4}},
		{name: "cursor and limit", window: pairer.Window{StartFromID: 5, Limit: 1}, anchors: []int64{6}},
		{name: "cursor mid listing drops its photos", window: pairer.Window{StartFromID: 4}, anchors: []int64{6, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dl := &fakeDownloader{}
			p := pairer.New(dl, t.TempDir(), 0, discardLogger())
			got := p.PairWindow(context.Background(), msgs, tt.window)
			defer releaseAll(got)

			var anchors []int64
			for _, l := range got {
				anchors = append(anchors, l.AnchorMessageID)
			}
			if !slices.Equal(anchors, tt.anchors) {
				t.Errorf("anchors = %v, want %v", anchors, tt.anchors)
			}
			if tt.window.Limit > 0 && len(dl.called) > tt.window.Limit {
				t.Errorf("downloaded %d photos past the limit", len(dl.called))
			}
		})
	}
}

func TestPairCountsClosingTexts(t *testing.T) {
	t.Parallel()

	// P = photo, T = text.
	streams := []string{"", "P", "T", "PT", "TPT", "PPTPPT", "PTTPT", "PTPPP", "TTPPPTTT", "PTPTPTPT"}

	for _, s := range streams {
		var msgs []pairer.RawMessage
		want := 0
		open := false
		for i, c := range s {
			id := int64(i + 1)
			if c == 'P' {
				msgs = append(msgs, photo(id))
				open = true
				continue
			}
			msgs = append(msgs, text(id, "t"))
			if open {
				want++
				open = false
			}
		}

		p := pairer.New(&fakeDownloader{}, t.TempDir(), 0, discardLogger())
		got := p.Pair(context.Background(), msgs)
		releaseAll(got)

		if len(got) != want {
			t.Errorf("stream %q produced %d listings, want %d", s, len(got), want)
		}
	}
}

func TestPairCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := t.TempDir()
	p := pairer.New(&fakeDownloader{}, root, 0, discardLogger())
	if got := p.Pair(ctx, []pairer.RawMessage{photo(1), text(2, "car")}); len(got) != 0 {
		releaseAll(got)
		t.Errorf("cancelled Pair() returned %d listings", len(got))
	}
}

func TestChronological(t *testing.T) {
	t.Parallel()

	in := []pairer.RawMessage{text(5, "b"), photo(4), text(3, "a"), photo(1)}
	got := pairer.Chronological(in)

	var ids []int64
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	if want := []int64{1, 3, 4, 5}; !slices.Equal(ids, want) {
		t.Errorf("Chronological() ids = %v, want %v", ids, want)
	}
	if in[0].ID != 5 {
		t.Error("Chronological() modified its input")
	}
}

func TestTempScopeReleaseIdempotent(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "scope")
	scope, err := pairer.NewTempScope(dir)
	if err != nil {
		t.Fatalf("NewTempScope() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if err := scope.Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("scope dir still exists: %v", err)
	}

	var nilScope *pairer.TempScope
	if err := nilScope.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}
