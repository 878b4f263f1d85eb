package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vroommarket/listingbot/internal/extractor"
	"github.com/vroommarket/listingbot/internal/pipeline"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })
	return NewStore(db, nil)
}

func publishedRecord(customID string, sourceMessageID int64) *pipeline.Record {
	year, mileage, target := 2018, 80000, 501
	price := decimal.NewFromInt(17250)
	return &pipeline.Record{
		CustomID:        customID,
		SourceChatID:    -100,
		SourceMessageID: sourceMessageID,
		TargetMessageID: &target,
		Status:          pipeline.StatusPublished,
		Attributes: extractor.CarAttributes{
			Brand:        "BMW",
			Model:        "X5",
			Year:         &year,
			Price:        &price,
			Currency:     extractor.CurrencyUSD,
			Mileage:      &mileage,
			EngineVolume: "3.0",
			Transmission: extractor.TransmissionAutomatic,
			DriveType:    extractor.DriveAllWheel,
		},
		MediaURLs: []string{"https://cdn.example/car_1.jpg"},
		Text:      "ID: " + customID + "\nBMW X5 2018",
	}
}

func TestSaveListingRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if got, err := s.CheckDuplicate(ctx, 42); err != nil || got != nil {
		t.Fatalf("CheckDuplicate() on empty store = %v, %v; want nil, nil", got, err)
	}

	want := publishedRecord("123-456", 42)
	if err := s.SaveListing(ctx, want); err != nil {
		t.Fatalf("SaveListing() error = %v", err)
	}

	got, err := s.CheckDuplicate(ctx, 42)
	if err != nil || got == nil {
		t.Fatalf("CheckDuplicate() = %v, %v; want stored record", got, err)
	}
	if got.CustomID != want.CustomID || got.Status != pipeline.StatusPublished || *got.TargetMessageID != 501 {
		t.Errorf("record = %+v", got)
	}
	if got.Attributes.String() != want.Attributes.String() {
		t.Errorf("attributes = %s, want %s", got.Attributes, want.Attributes)
	}
	if len(got.MediaURLs) != 1 || got.MediaURLs[0] != want.MediaURLs[0] {
		t.Errorf("MediaURLs = %v", got.MediaURLs)
	}

	exists, err := s.CustomIDExists(ctx, "123-456")
	if err != nil || !exists {
		t.Errorf("CustomIDExists(123-456) = %v, %v; want true", exists, err)
	}
	exists, err = s.CustomIDExists(ctx, "999-999")
	if err != nil || exists {
		t.Errorf("CustomIDExists(999-999) = %v, %v; want false", exists, err)
	}
}

func TestGetListingByCustomID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if got, err := s.GetListingByCustomID(ctx, "123-456"); err != nil || got != nil {
		t.Fatalf("GetListingByCustomID() on empty store = %v, %v; want nil, nil", got, err)
	}

	if err := s.SaveListing(ctx, publishedRecord("123-456", 42)); err != nil {
		t.Fatalf("SaveListing() error = %v", err)
	}

	listing, err := s.GetListingByCustomID(ctx, "123-456")
	if err != nil || listing == nil {
		t.Fatalf("GetListingByCustomID() = %v, %v; want stored listing", listing, err)
	}
	if listing.SourceMessageID != 42 || listing.CreatedAt.IsZero() {
		t.Errorf("listing = %+v", listing)
	}

	rec, err := listing.Record()
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.Attributes.Brand != "BMW" || len(rec.MediaURLs) != 1 || rec.Text != "ID: 123-456\nBMW X5 2018" {
		t.Errorf("Record() = %+v", rec)
	}
}

func TestSaveListingRejectsDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SaveListing(ctx, publishedRecord("111-111", 7)); err != nil {
		t.Fatalf("SaveListing() error = %v", err)
	}

	tests := []struct {
		name string
		rec  *pipeline.Record
	}{
		{name: "same source message", rec: publishedRecord("222-222", 7)},
		{name: "same custom id", rec: publishedRecord("111-111", 8)},
	}
	for _, tt := range tests {
		if err := s.SaveListing(ctx, tt.rec); !errors.Is(err, ErrDuplicateListing) {
			t.Errorf("%s: SaveListing() error = %v, want ErrDuplicateListing", tt.name, err)
		}
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Listings != 1 || stats.Published != 1 {
		t.Errorf("stats = %+v, want one published listing", stats)
	}
}

func TestSaveListingMinimalAttributes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	rec := &pipeline.Record{
		CustomID:        "000-001",
		SourceChatID:    -100,
		SourceMessageID: 3,
		Status:          pipeline.StatusPublished,
		Attributes:      extractor.Extract(""),
	}
	if err := s.SaveListing(ctx, rec); err != nil {
		t.Fatalf("SaveListing() error = %v", err)
	}
	got, err := s.CheckDuplicate(ctx, 3)
	if err != nil {
		t.Fatalf("CheckDuplicate() error = %v", err)
	}
	if got.Attributes.Year != nil || got.Attributes.Price != nil || got.TargetMessageID != nil || len(got.MediaURLs) != 0 {
		t.Errorf("optional fields not nil: %+v", got)
	}
}

func TestSourceMessagesAndCursor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	for _, m := range []SourceMessage{
		{ChatID: -100, MessageID: 3, Text: "BMW X5"},
		{ChatID: -100, MessageID: 1, HasPhoto: true, MediaIsImage: true, FileID: "f1", MimeType: "image/jpeg"},
		{ChatID: -100, MessageID: 2, HasPhoto: true, MediaIsImage: true, FileID: "f2"},
		{ChatID: -200, MessageID: 1, Text: "other chat"},
	} {
		if err := s.SaveSourceMessage(ctx, &m); err != nil {
			t.Fatalf("SaveSourceMessage(%d) error = %v", m.MessageID, err)
		}
	}

	// An edit updates the stored text.
	if err := s.SaveSourceMessage(ctx, &SourceMessage{ChatID: -100, MessageID: 3, Text: "BMW X5 2018"}); err != nil {
		t.Fatalf("SaveSourceMessage(edit) error = %v", err)
	}

	msgs, err := s.ListSourceMessages(ctx, -100, 0, 10)
	if err != nil {
		t.Fatalf("ListSourceMessages() error = %v", err)
	}
	if len(msgs) != 3 || msgs[0].MessageID != 1 || msgs[2].MessageID != 3 {
		t.Fatalf("ListSourceMessages() = %+v, want ids 1,2,3", msgs)
	}
	if !msgs[0].HasPhoto || msgs[0].FileID != "f1" || msgs[2].Text != "BMW X5 2018" {
		t.Errorf("stored fields lost: %+v", msgs)
	}

	msgs, err = s.ListSourceMessages(ctx, -100, 1, 1)
	if err != nil || len(msgs) != 1 || msgs[0].MessageID != 2 {
		t.Errorf("ListSourceMessages(after 1, limit 1) = %+v, %v", msgs, err)
	}

	if cur, err := s.GetIngestCursor(ctx, -100); err != nil || cur != 0 {
		t.Errorf("GetIngestCursor() = %d, %v; want 0", cur, err)
	}
	for _, id := range []int64{3, 2} {
		if err := s.SetIngestCursor(ctx, -100, id); err != nil {
			t.Fatalf("SetIngestCursor(%d) error = %v", id, err)
		}
	}
	if cur, err := s.GetIngestCursor(ctx, -100); err != nil || cur != 3 {
		t.Errorf("GetIngestCursor() = %d, %v; want 3 (never moves back)", cur, err)
	}
}

func TestPruneSourceMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	old := time.Now().Add(-60 * 24 * time.Hour)
	for id := int64(1); id <= 4; id++ {
		if err := s.SaveSourceMessage(ctx, &SourceMessage{ChatID: -100, MessageID: id, Text: "x", PostedAt: old}); err != nil {
			t.Fatalf("SaveSourceMessage() error = %v", err)
		}
	}
	if err := s.SetIngestCursor(ctx, -100, 2); err != nil {
		t.Fatalf("SetIngestCursor() error = %v", err)
	}

	n, err := s.PruneSourceMessages(ctx, time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneSourceMessages() error = %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d, want 2 (only messages behind the cursor)", n)
	}
}

func TestSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if _, ok, err := s.GetSetting(ctx, SettingMarkupPercent); err != nil || ok {
		t.Fatalf("GetSetting() on empty store = ok %v, err %v", ok, err)
	}
	for _, v := range []string{"15", "20.5"} {
		if err := s.SetSetting(ctx, SettingMarkupPercent, v); err != nil {
			t.Fatalf("SetSetting(%s) error = %v", v, err)
		}
	}
	got, ok, err := s.GetSetting(ctx, SettingMarkupPercent)
	if err != nil || !ok || got != "20.5" {
		t.Errorf("GetSetting() = %q, %v, %v; want 20.5", got, ok, err)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()

	if err := newTestStore(t).RunSQLMaintenance(context.Background()); err != nil {
		t.Errorf("RunSQLMaintenance() error = %v", err)
	}
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{in: "listingbot.db", want: "listingbot.db"},
		{in: "file:data/listingbot.db?cache=shared", want: "data/listingbot.db"},
		{in: "file:my%20db.db", want: "my db.db"},
	}
	for _, tt := range tests {
		if got := ExtractDBNameFromPath(tt.in); got != tt.want {
			t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
