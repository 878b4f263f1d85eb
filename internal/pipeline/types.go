// Package pipeline drives reconstructed listings through enrichment, media
// upload, channel publication and persistence.
package pipeline

import (
	"context"
	"errors"

	"github.com/vroommarket/listingbot/internal/extractor"
)

// ErrPublishFailed means the channel did not accept the listing. Nothing is
// persisted for it.
var ErrPublishFailed = errors.New("publish failed")

// State is a step of the per-listing state machine.
type State int

const (
	StateFetched State = iota
	StateDeduped
	StateEnriched
	StateMediaUploaded
	StatePublished
	StatePersisted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFetched:
		return "fetched"
	case StateDeduped:
		return "deduped"
	case StateEnriched:
		return "enriched"
	case StateMediaUploaded:
		return "media_uploaded"
	case StatePublished:
		return "published"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the lifecycle of a PublishRecord.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Record is what gets persisted for a published listing.
type Record struct {
	CustomID        string
	SourceChatID    int64
	SourceMessageID int64
	TargetMessageID *int
	Status          Status
	Attributes      extractor.CarAttributes
	MediaURLs       []string
	Text            string
}

// Publication is the channel's answer to a publish call. A zero MessageID
// means the listing was not published.
type Publication struct {
	MessageID int
	MediaIDs  []int
}

// OCR reads text from an image; "" means the image carries no text.
type OCR interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Rewriter turns raw listing text into publish-ready text.
type Rewriter interface {
	Rewrite(ctx context.Context, rawText, ocrText, customID string, markupPercent float64) (string, error)
}

// MediaStore hosts listing photos. ok is false when this one upload failed.
type MediaStore interface {
	Upload(ctx context.Context, localPath, publicID string) (url string, ok bool)
}

// Publisher posts a listing to the destination channel.
type Publisher interface {
	Publish(ctx context.Context, text string, photoPaths []string) (Publication, error)
}

// Store persists publish records.
type Store interface {
	CheckDuplicate(ctx context.Context, sourceMessageID int64) (*Record, error)
	SaveListing(ctx context.Context, rec *Record) error
}

// IDGenerator hands out custom ids.
type IDGenerator interface {
	Next(ctx context.Context) (string, error)
	Release(id string)
}

// AttributeExtractor reads CarAttributes from text.
type AttributeExtractor interface {
	Extract(text string) extractor.CarAttributes
}

// Outcome is how one listing ended.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeOrphaned  Outcome = "orphaned"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Result reports the processing of one listing. State is the last state
// reached; Err is set for failed, cancelled and orphaned outcomes.
type Result struct {
	SourceMessageID int64
	State           State
	Outcome         Outcome
	Record          *Record
	Err             error
}

// Summary aggregates a Run.
type Summary struct {
	Total     int
	Published int
	Orphaned  int
	Duplicate int
	Failed    int
	Cancelled int
	Results   []Result
}
