package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vroommarket/listingbot/internal/metrics"
	"github.com/vroommarket/listingbot/internal/pairer"
	"github.com/vroommarket/listingbot/internal/retry"
)

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Logger       *slog.Logger
	Extractor    AttributeExtractor
	IDs          IDGenerator
	OCR          OCR
	Rewriter     Rewriter
	Media        MediaStore
	Publisher    Publisher
	Store        Store
	Markup       *Markup
	RewriteRetry *retry.Policy
	OCRRetry     *retry.Policy
}

// Options tunes an Orchestrator.
type Options struct {
	Workers     int
	CallTimeout time.Duration
	Footer      string
}

// Orchestrator runs listings through the publish state machine.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	claimed map[int64]struct{}
}

// New creates an Orchestrator. Workers below one are raised to one.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if deps.Markup == nil {
		deps.Markup = NewMarkup(0)
	}
	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		logger:  deps.Logger.With("component", "orchestrator"),
		claimed: make(map[int64]struct{}),
	}
}

// claim marks a source message as in flight so a concurrent worker handling
// the same message treats it as a duplicate.
func (o *Orchestrator) claim(id int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.claimed[id]; busy {
		return false
	}
	o.claimed[id] = struct{}{}
	return true
}

func (o *Orchestrator) unclaim(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.claimed, id)
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.opts.CallTimeout)
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Process drives one listing to a terminal state. The listing's scope is
// released before Process returns, whatever the outcome.
func (o *Orchestrator) Process(ctx context.Context, l pairer.Listing) (res Result) {
	log := o.logger.With("source_message_id", l.AnchorMessageID)
	res = Result{SourceMessageID: l.AnchorMessageID, State: StateFetched}

	defer func() {
		if err := l.Scope.Release(); err != nil {
			log.WarnContext(ctx, "Failed to release listing scope", "dir", l.Scope.Dir(), "error", err)
		}
		metrics.ListingsProcessed.WithLabelValues(string(res.Outcome)).Inc()
	}()

	fail := func(err error) Result {
		res.State = StateFailed
		res.Outcome = OutcomeFailed
		res.Err = err
		if res.Record != nil {
			res.Record.Status = StatusFailed
		}
		if ctx.Err() != nil {
			res.Outcome = OutcomeCancelled
			log.InfoContext(ctx, "Listing cancelled", "error", err)
		} else {
			log.ErrorContext(ctx, "Listing failed", "error", err)
		}
		return res
	}

	// Deduped
	if !o.claim(l.AnchorMessageID) {
		log.InfoContext(ctx, "Listing already in flight, skipping")
		res.Outcome = OutcomeDuplicate
		return res
	}
	defer o.unclaim(l.AnchorMessageID)

	start := time.Now()
	existing, err := o.deps.Store.CheckDuplicate(ctx, l.AnchorMessageID)
	observe("dedup", start)
	if err != nil {
		return fail(fmt.Errorf("failed to check duplicate: %w", err))
	}
	if existing != nil {
		log.InfoContext(ctx, "Listing already published, skipping", "custom_id", existing.CustomID)
		res.State = StateDeduped
		res.Outcome = OutcomeDuplicate
		return res
	}
	res.State = StateDeduped
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Enriched
	start = time.Now()
	customID, err := o.deps.IDs.Next(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to generate custom id: %w", err))
	}
	keepID := false
	defer func() {
		if !keepID {
			o.deps.IDs.Release(customID)
		}
	}()
	log = log.With("custom_id", customID)

	seed := o.deps.Extractor.Extract(l.Text)
	ocrText := o.recognize(ctx, log, l.PhotoPaths)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	markup := o.deps.Markup.Get()
	rewritten, err := retry.Do(ctx, o.deps.RewriteRetry, "rewrite", func(ctx context.Context) (string, error) {
		return o.deps.Rewriter.Rewrite(ctx, l.Text, ocrText, customID, markup)
	})
	if err != nil {
		return fail(fmt.Errorf("failed to rewrite listing: %w", err))
	}
	if strings.TrimSpace(rewritten) == "" {
		return fail(errors.New("rewrite returned empty text"))
	}

	text := FinalizeText(rewritten, customID, o.opts.Footer)
	rec := &Record{
		CustomID:        customID,
		SourceChatID:    l.ChatID,
		SourceMessageID: l.AnchorMessageID,
		Status:          StatusPending,
		Attributes:      o.deps.Extractor.Extract(text).Merge(seed),
		Text:            text,
	}
	res.Record = rec
	res.State = StateEnriched
	observe("enrich", start)
	log.DebugContext(ctx, "Listing enriched", "brand", rec.Attributes.Brand, "model", rec.Attributes.Model)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// MediaUploaded
	start = time.Now()
	rec.MediaURLs = o.upload(ctx, log, customID, l.PhotoPaths)
	res.State = StateMediaUploaded
	observe("upload", start)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Published
	start = time.Now()
	pubCtx, cancel := o.callContext(ctx)
	pub, err := o.deps.Publisher.Publish(pubCtx, text, l.PhotoPaths)
	cancel()
	observe("publish", start)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrPublishFailed, err))
	}
	if pub.MessageID == 0 {
		return fail(fmt.Errorf("%w: no message id returned", ErrPublishFailed))
	}
	msgID := pub.MessageID
	rec.TargetMessageID = &msgID
	rec.Status = StatusPublished
	res.State = StatePublished
	log.InfoContext(ctx, "Listing published", "target_message_id", msgID, "photos", len(l.PhotoPaths), "uploaded", len(rec.MediaURLs))

	// Persisted. The post is live, so saving is attempted even during shutdown.
	start = time.Now()
	saveCtx, cancel := o.callContext(context.WithoutCancel(ctx))
	err = o.deps.Store.SaveListing(saveCtx, rec)
	cancel()
	observe("persist", start)
	if err != nil {
		// The id is visible in the channel but not stored; keep it reserved
		// so this process never issues it again.
		keepID = true
		metrics.OrphanedPublications.Inc()
		log.ErrorContext(ctx, "Published listing could not be saved; channel post is orphaned",
			"target_message_id", msgID,
			"error", err,
		)
		res.Outcome = OutcomeOrphaned
		res.Err = fmt.Errorf("failed to save published listing: %w", err)
		return res
	}

	res.State = StatePersisted
	res.Outcome = OutcomePublished
	return res
}

// recognize runs OCR over every photo. Failures and empty results are
// skipped; OCR never aborts a listing.
func (o *Orchestrator) recognize(ctx context.Context, log *slog.Logger, paths []string) string {
	if o.deps.OCR == nil {
		return ""
	}

	var texts []string
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		text, err := retry.Do(ctx, o.deps.OCRRetry, "ocr", func(ctx context.Context) (string, error) {
			return o.deps.OCR.ExtractText(ctx, path)
		})
		if err != nil {
			log.WarnContext(ctx, "OCR failed, continuing without it", "path", path, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n")
}

// upload sends each photo to the media store under car_<customID>_<n>.
// Failed uploads are skipped.
func (o *Orchestrator) upload(ctx context.Context, log *slog.Logger, customID string, paths []string) []string {
	urls := make([]string, 0, len(paths))
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		publicID := fmt.Sprintf("car_%s_%d", customID, i+1)

		callCtx, cancel := o.callContext(ctx)
		url, ok := o.deps.Media.Upload(callCtx, path, publicID)
		cancel()

		if !ok {
			metrics.MediaUploads.WithLabelValues("failed").Inc()
			log.WarnContext(ctx, "Photo upload failed, skipping", "public_id", publicID)
			continue
		}
		metrics.MediaUploads.WithLabelValues("ok").Inc()
		urls = append(urls, url)
	}
	return urls
}

// Run processes listings on a bounded worker pool. A failing listing never
// stops the others; listings not started before ctx is cancelled are
// released and reported as cancelled.
func (o *Orchestrator) Run(ctx context.Context, listings []pairer.Listing) Summary {
	runID := uuid.NewString()
	log := o.logger.With("run_id", runID)
	log.InfoContext(ctx, "Starting pipeline run", "listings", len(listings), "workers", o.opts.Workers)

	results := make([]Result, len(listings))
	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)

	for i, l := range listings {
		if ctx.Err() != nil {
			_ = l.Scope.Release()
			results[i] = Result{SourceMessageID: l.AnchorMessageID, State: StateFailed, Outcome: OutcomeCancelled, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			results[i] = o.Process(ctx, l)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Total: len(listings), Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomePublished:
			sum.Published++
		case OutcomeOrphaned:
			sum.Orphaned++
		case OutcomeDuplicate:
			sum.Duplicate++
		case OutcomeCancelled:
			sum.Cancelled++
		default:
			sum.Failed++
		}
	}

	log.InfoContext(ctx, "Pipeline run finished",
		"published", sum.Published,
		"duplicate", sum.Duplicate,
		"failed", sum.Failed,
		"cancelled", sum.Cancelled,
		"orphaned", sum.Orphaned,
	)
	return sum
}
