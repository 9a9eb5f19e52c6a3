package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/wikihashtags/hashtagd/internal/app/model"
	"github.com/wikihashtags/hashtagd/internal/stream"
)

func TestNewRow_NormalizesTimestamp(t *testing.T) {
	offset := time.FixedZone("CEST", 2*60*60)
	id := int64(7)
	change := &stream.RecentChange{
		Meta: stream.Meta{
			Domain: "de.wikipedia.org",
			DT:     time.Date(2024, 6, 1, 14, 30, 45, 987654321, offset),
		},
		ID:      &id,
		User:    "Beispiel",
		Title:   "Beispielseite",
		Comment: "#beispiel",
	}

	row := NewRow("beispiel", change, model.MediaFlags{})

	want := time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)
	if !row.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want whole-second UTC %v", row.Timestamp, want)
	}
	if row.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp zone = %v, want UTC", row.Timestamp.Location())
	}
}

func TestNewRow_TruncatesSummary(t *testing.T) {
	id := int64(1)
	change := &stream.RecentChange{
		ID:      &id,
		Comment: strings.Repeat("ü", 1200),
	}

	row := NewRow("tag", change, model.MediaFlags{})
	if got := len([]rune(row.EditSummary)); got != model.MaxSummaryLength {
		t.Fatalf("summary length = %d runes, want %d", got, model.MaxSummaryLength)
	}
}

func TestNewRow_RevisionID(t *testing.T) {
	id := int64(1)

	withRev := &stream.RecentChange{
		ID:       &id,
		Revision: &stream.Revision{New: 555},
	}
	if row := NewRow("tag", withRev, model.MediaFlags{}); row.RevID == nil || *row.RevID != 555 {
		t.Fatalf("rev_id = %v, want 555", row.RevID)
	}

	// Page moves and uploads arrive without a revision block.
	withoutRev := &stream.RecentChange{ID: &id}
	if row := NewRow("tag", withoutRev, model.MediaFlags{}); row.RevID != nil {
		t.Fatalf("rev_id = %v, want nil for non-revision actions", row.RevID)
	}
}

func TestNewRow_MediaFlags(t *testing.T) {
	id := int64(1)
	change := &stream.RecentChange{ID: &id}

	row := NewRow("tag", change, model.MediaFlags{Video: true})
	if row.HasImage || !row.HasVideo || row.HasAudio {
		t.Fatalf("flags = (%v, %v, %v), want video only", row.HasImage, row.HasVideo, row.HasAudio)
	}
}
