package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/vroommarket/listingbot/internal/database"
	"github.com/vroommarket/listingbot/internal/pairer"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	mu     sync.Mutex
	rows   []database.SourceMessage
	cursor int64
	after  int64
}

func (f *fakeSource) ListSourceMessages(_ context.Context, _ int64, afterID int64, limit int) ([]database.SourceMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.after = afterID
	var out []database.SourceMessage
	for _, r := range f.rows {
		if r.MessageID > afterID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) GetIngestCursor(context.Context, int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor, nil
}

func (f *fakeSource) SetIngestCursor(_ context.Context, _ int64, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = max(f.cursor, id)
	return nil
}

type fileDownloader struct{}

func (fileDownloader) Download(_ context.Context, _ pairer.RawMessage, dest string) error {
	return os.WriteFile(dest, []byte("jpeg"), 0o600)
}

// fakeRunner marks listings with an anchor in cancel as cancelled and the
// rest as published.
type fakeRunner struct {
	cancel  map[int64]bool
	started chan struct{}
	block   chan struct{}
	anchors []int64
}

func (f *fakeRunner) Run(_ context.Context, listings []pairer.Listing) pipeline.Summary {
	if f.block != nil {
		close(f.started)
		<-f.block
	}
	var s pipeline.Summary
	for _, l := range listings {
		f.anchors = append(f.anchors, l.AnchorMessageID)
		_ = l.Scope.Release()
		outcome := pipeline.OutcomePublished
		if f.cancel[l.AnchorMessageID] {
			outcome = pipeline.OutcomeCancelled
		}
		s.Results = append(s.Results, pipeline.Result{SourceMessageID: l.AnchorMessageID, Outcome: outcome})
	}
	s.Total = len(listings)
	return s
}

func photo(id int64) database.SourceMessage {
	return database.SourceMessage{ChatID: -100, MessageID: id, HasPhoto: true, MediaIsImage: true, FileID: "f"}
}

func text(id int64, s string) database.SourceMessage {
	return database.SourceMessage{ChatID: -100, MessageID: id, Text: s}
}

// stream: two complete listings (anchors 3 and 6), a lone text (7) and a
// trailing photo (8) still waiting for its text.
func stream() []database.SourceMessage {
	return []database.SourceMessage{
		photo(1), photo(2), text(3, "BMW X5 2018"),
		photo(4), photo(5), text(6, "Audi A6 2019"),
		text(7, "spam"),
		photo(8),
	}
}

func newService(t *testing.T, src *fakeSource, runner Runner, opts Options) *Service {
	t.Helper()
	opts.ChatID = -100
	return New(src, pairer.New(fileDownloader{}, t.TempDir(), 8, discard), runner, opts, discard)
}

func TestRunAdvancesCursor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        Options
		cancel      map[int64]bool
		cursor      int64
		wantAnchors []int64
		wantCursor  int64
		wantAfter   int64
	}{
		{
			name:        "whole window settles up to last text",
			wantAnchors: []int64{3, 6},
			wantCursor:  7,
		},
		{
			name:        "limit stops at last anchor",
			opts:        Options{Limit: 1},
			wantAnchors: []int64{3},
			wantCursor:  3,
		},
		{
			name:        "cancelled listing is revisited",
			cancel:      map[int64]bool{6: true},
			wantAnchors: []int64{3, 6},
			wantCursor:  3,
		},
		{
			name:        "first listing cancelled keeps cursor",
			cancel:      map[int64]bool{3: true},
			wantAnchors: []int64{3, 6},
			wantCursor:  0,
		},
		{
			name:        "start id skips older messages",
			opts:        Options{StartFromID: 4},
			wantAnchors: []int64{6},
			wantCursor:  7,
			wantAfter:   3,
		},
		{
			name:        "stored cursor wins over start id",
			opts:        Options{StartFromID: 2},
			cursor:      3,
			wantAnchors: []int64{6},
			wantCursor:  7,
			wantAfter:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := &fakeSource{rows: stream(), cursor: tt.cursor}
			runner := &fakeRunner{cancel: tt.cancel}
			s := newService(t, src, runner, tt.opts)

			if _, err := s.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(runner.anchors) != len(tt.wantAnchors) {
				t.Fatalf("anchors = %v, want %v", runner.anchors, tt.wantAnchors)
			}
			for i := range tt.wantAnchors {
				if runner.anchors[i] != tt.wantAnchors[i] {
					t.Errorf("anchors = %v, want %v", runner.anchors, tt.wantAnchors)
				}
			}
			if src.cursor != tt.wantCursor {
				t.Errorf("cursor = %d, want %d", src.cursor, tt.wantCursor)
			}
			if src.after != tt.wantAfter {
				t.Errorf("read after %d, want %d", src.after, tt.wantAfter)
			}
		})
	}
}

func TestRunPhotoOnlyWindow(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: []database.SourceMessage{photo(1), photo(2), photo(3)}}

	s := newService(t, src, &fakeRunner{}, Options{ReadLimit: 5})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if src.cursor != 0 {
		t.Errorf("cursor = %d, want 0 while photos wait for text", src.cursor)
	}

	s = newService(t, src, &fakeRunner{}, Options{ReadLimit: 3})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if src.cursor != 3 {
		t.Errorf("cursor = %d, want 3 for a full window without text", src.cursor)
	}
}

func TestRunBusy(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: stream()}
	runner := &fakeRunner{started: make(chan struct{}), block: make(chan struct{})}
	s := newService(t, src, runner, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()

	<-runner.started
	if _, err := s.Run(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Run() error = %v, want ErrBusy", err)
	}

	close(runner.block)
	if err := <-done; err != nil {
		t.Errorf("first Run() error = %v", err)
	}
}

func TestRunOrdersRows(t *testing.T) {
	t.Parallel()

	rows := stream()
	slices.Reverse(rows)
	src := &fakeSource{rows: rows}
	runner := &fakeRunner{}

	if _, err := newService(t, src, runner, Options{}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !slices.Equal(runner.anchors, []int64{3, 6}) || src.cursor != 7 {
		t.Errorf("anchors = %v, cursor = %d; want [3 6], 7", runner.anchors, src.cursor)
	}
}

func TestGoWaitsForBackgroundRun(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: stream()}
	runner := &fakeRunner{started: make(chan struct{}), block: make(chan struct{})}
	s := newService(t, src, runner, Options{})

	var got pipeline.Summary
	s.Go(context.Background(), func(summary pipeline.Summary, err error) {
		if err != nil {
			t.Errorf("background Run() error = %v", err)
		}
		got = summary
	})

	<-runner.started
	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait() returned while a run was in flight")
	default:
	}

	close(runner.block)
	<-waited
	if got.Total != 2 || src.cursor != 7 {
		t.Errorf("summary total = %d, cursor = %d; want 2, 7", got.Total, src.cursor)
	}
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	runner := &fakeRunner{}
	sum, err := newService(t, src, runner, Options{}).Run(context.Background())
	if err != nil || sum.Total != 0 || len(runner.anchors) != 0 {
		t.Errorf("Run() = %+v, %v; want empty summary", sum, err)
	}
}
