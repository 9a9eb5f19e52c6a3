package service

import (
	"context"
	"errors"
	"testing"

	"github.com/wikihashtags/hashtagd/internal/stream"
)

// mockMediaAPI injects behavior through function fields.
type mockMediaAPI struct {
	revisionMediaFn func(ctx context.Context, domain string, revID int64) ([]string, error)
	mediaTypesFn    func(ctx context.Context, domain string, filenames []string) (map[string]bool, error)
}

func (m *mockMediaAPI) RevisionMedia(ctx context.Context, domain string, revID int64) ([]string, error) {
	if m.revisionMediaFn != nil {
		return m.revisionMediaFn(ctx, domain, revID)
	}
	return nil, nil
}

func (m *mockMediaAPI) MediaTypes(ctx context.Context, domain string, filenames []string) (map[string]bool, error) {
	if m.mediaTypesFn != nil {
		return m.mediaTypesFn(ctx, domain, filenames)
	}
	return map[string]bool{}, nil
}

func enricherChange(oldRev *int64, newRev int64) *stream.RecentChange {
	id := int64(1)
	return &stream.RecentChange{
		Meta: stream.Meta{Domain: "commons.wikimedia.org"},
		ID:   &id,
		Revision: &stream.Revision{
			Old: oldRev,
			New: newRev,
		},
	}
}

func TestMediaEnricher_ClassifiesAddedMedia(t *testing.T) {
	oldRev := int64(100)
	api := &mockMediaAPI{
		revisionMediaFn: func(_ context.Context, _ string, revID int64) ([]string, error) {
			if revID == 100 {
				return []string{"Kept.jpg"}, nil
			}
			return []string{"Kept.jpg", "New.jpg", "Clip.webm"}, nil
		},
		mediaTypesFn: func(_ context.Context, _ string, filenames []string) (map[string]bool, error) {
			// Only the newly added files may be looked up.
			if len(filenames) != 2 {
				t.Fatalf("expected 2 added filenames, got %v", filenames)
			}
			return map[string]bool{"BITMAP": true, "VIDEO": true}, nil
		},
	}

	flags := NewMediaEnricher(api, nil).MediaFlags(context.Background(), enricherChange(&oldRev, 101))
	if !flags.Image || !flags.Video || flags.Audio {
		t.Fatalf("got flags %+v, want image and video only", flags)
	}
}

func TestMediaEnricher_NoOldRevisionTreatsAllAsAdded(t *testing.T) {
	var lookedUp []string
	api := &mockMediaAPI{
		revisionMediaFn: func(_ context.Context, _ string, _ int64) ([]string, error) {
			return []string{"Song.ogg"}, nil
		},
		mediaTypesFn: func(_ context.Context, _ string, filenames []string) (map[string]bool, error) {
			lookedUp = filenames
			return map[string]bool{"AUDIO": true}, nil
		},
	}

	flags := NewMediaEnricher(api, nil).MediaFlags(context.Background(), enricherChange(nil, 101))
	if !flags.Audio || flags.Image || flags.Video {
		t.Fatalf("got flags %+v, want audio only", flags)
	}
	if len(lookedUp) != 1 || lookedUp[0] != "Song.ogg" {
		t.Fatalf("expected the page-creation media to be looked up, got %v", lookedUp)
	}
}

func TestMediaEnricher_FailureDegradesToNoMedia(t *testing.T) {
	api := &mockMediaAPI{
		revisionMediaFn: func(context.Context, string, int64) ([]string, error) {
			return nil, errors.New("api unreachable")
		},
	}

	flags := NewMediaEnricher(api, nil).MediaFlags(context.Background(), enricherChange(nil, 101))
	if flags.Image || flags.Video || flags.Audio {
		t.Fatalf("expected zero flags on failure, got %+v", flags)
	}
}

func TestMediaEnricher_NonRevisionAction(t *testing.T) {
	api := &mockMediaAPI{
		revisionMediaFn: func(context.Context, string, int64) ([]string, error) {
			t.Fatal("no API call expected for a change without revisions")
			return nil, nil
		},
	}

	change := enricherChange(nil, 0)
	change.Revision = nil
	flags := NewMediaEnricher(api, nil).MediaFlags(context.Background(), change)
	if flags.Image || flags.Video || flags.Audio {
		t.Fatalf("expected zero flags, got %+v", flags)
	}
}
