// Package ingest runs one ingestion pass: read recorded source posts after
// the cursor, pair them into listings, publish them and move the cursor.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/vroommarket/listingbot/internal/database"
	"github.com/vroommarket/listingbot/internal/metrics"
	"github.com/vroommarket/listingbot/internal/pairer"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

// ErrBusy is returned when a run is already in progress.
var ErrBusy = errors.New("ingestion already running")

// Source is the recorded source stream.
type Source interface {
	ListSourceMessages(ctx context.Context, chatID, afterID int64, limit int) ([]database.SourceMessage, error)
	GetIngestCursor(ctx context.Context, chatID int64) (int64, error)
	SetIngestCursor(ctx context.Context, chatID, lastMessageID int64) error
}

// Pairer groups ordered messages into listings.
type Pairer interface {
	PairWindow(ctx context.Context, msgs []pairer.RawMessage, w pairer.Window) []pairer.Listing
}

// Runner publishes listings.
type Runner interface {
	Run(ctx context.Context, listings []pairer.Listing) pipeline.Summary
}

// Options bound a run.
type Options struct {
	ChatID      int64
	Limit       int
	StartFromID int64
	ReadLimit   int
}

// Service serialises ingestion runs.
type Service struct {
	source Source
	pairer Pairer
	runner Runner
	opts   Options
	log    *slog.Logger
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// New creates an ingestion service.
func New(source Source, p Pairer, runner Runner, opts Options, log *slog.Logger) *Service {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 1000
	}
	return &Service{
		source: source,
		pairer: p,
		runner: runner,
		opts:   opts,
		log:    log.With("component", "ingest"),
	}
}

// Run performs one pass. It returns ErrBusy without doing anything when
// another pass holds the lock.
func (s *Service) Run(ctx context.Context) (pipeline.Summary, error) {
	if !s.mu.TryLock() {
		metrics.IngestRuns.WithLabelValues("busy").Inc()
		return pipeline.Summary{}, ErrBusy
	}
	defer s.mu.Unlock()

	summary, err := s.run(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IngestRuns.WithLabelValues(status).Inc()
	return summary, err
}

// Go starts Run in the background and hands its result to done. Wait blocks
// until every run started this way has returned.
func (s *Service) Go(ctx context.Context, done func(pipeline.Summary, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary, err := s.Run(ctx)
		if done != nil {
			done(summary, err)
		}
	}()
}

// Wait blocks until background runs started with Go have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context) (pipeline.Summary, error) {
	chatID := s.opts.ChatID

	cursor, err := s.source.GetIngestCursor(ctx, chatID)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("failed to read ingest cursor: %w", err)
	}
	after := max(cursor, s.opts.StartFromID-1)

	rows, err := s.source.ListSourceMessages(ctx, chatID, after, s.opts.ReadLimit)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("failed to list source messages: %w", err)
	}
	if len(rows) == 0 {
		s.log.DebugContext(ctx, "No new source messages", "chat_id", chatID, "after", after)
		return pipeline.Summary{}, nil
	}

	msgs := pairer.Chronological(lo.Map(rows, func(r database.SourceMessage, _ int) pairer.RawMessage { return toRaw(r) }))
	listings := s.pairer.PairWindow(ctx, msgs, pairer.Window{StartFromID: s.opts.StartFromID, Limit: s.opts.Limit})

	s.log.InfoContext(ctx, "Ingesting", "chat_id", chatID, "after", after, "messages", len(msgs), "listings", len(listings))

	summary := s.runner.Run(ctx, listings)

	next := nextCursor(after, msgs, listings, summary, s.opts.Limit, s.opts.ReadLimit, ctx.Err() != nil)
	if next > after {
		// The cursor write must land even when the run was cancelled.
		if err := s.source.SetIngestCursor(context.WithoutCancel(ctx), chatID, next); err != nil {
			return summary, fmt.Errorf("failed to advance ingest cursor: %w", err)
		}
		metrics.IngestCursor.WithLabelValues(strconv.FormatInt(chatID, 10)).Set(float64(next))
		s.log.InfoContext(ctx, "Ingest cursor advanced", "chat_id", chatID, "from", after, "to", next)
	}

	return summary, nil
}

// nextCursor picks the last message id whose fate is settled.
//
// A cancelled listing, and everything after it, must be seen again, so the
// cursor stops at the anchor of the last listing before it. When the run
// hit its listing limit the scan stopped at the last anchor. Otherwise the
// whole window was scanned and every message up to the last text is
// settled; photos after it may still be waiting for their text.
func nextCursor(after int64, msgs []pairer.RawMessage, listings []pairer.Listing, summary pipeline.Summary, limit, readLimit int, interrupted bool) int64 {
	cancelled := make(map[int64]bool)
	for _, r := range summary.Results {
		if r.Outcome == pipeline.OutcomeCancelled {
			cancelled[r.SourceMessageID] = true
		}
	}

	anchors := lo.Map(listings, func(l pairer.Listing, _ int) int64 { return l.AnchorMessageID })
	slices.Sort(anchors)

	settled := after
	for _, a := range anchors {
		if cancelled[a] {
			return settled
		}
		settled = a
	}
	if interrupted || (limit > 0 && len(listings) >= limit) {
		return settled
	}

	lastText := int64(0)
	for _, m := range msgs {
		if !m.IsPhoto() && strings.TrimSpace(m.Text) != "" {
			lastText = m.ID
		}
	}
	// A window full of photos with no text cannot ever close; skip it.
	if lastText == 0 && len(msgs) >= readLimit {
		lastText = msgs[len(msgs)-1].ID
	}
	return max(settled, lastText)
}

func toRaw(r database.SourceMessage) pairer.RawMessage {
	return pairer.RawMessage{
		ID:           r.MessageID,
		ChatID:       r.ChatID,
		Text:         r.Text,
		HasPhoto:     r.HasPhoto,
		MediaIsImage: r.MediaIsImage,
		FileID:       r.FileID,
		MimeType:     r.MimeType,
	}
}
