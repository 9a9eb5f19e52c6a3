package service

import (
	"context"
	"testing"
	"time"
)

func TestDuplicateGuard_BloomNegativeSkipsStore(t *testing.T) {
	repo := newFakeHashtagRepo()
	guard := NewDuplicateGuard(repo, nil, time.Hour, nil)

	dup, err := guard.IsDuplicate(context.Background(), "wlm2024", 1)
	if err != nil {
		t.Fatalf("IsDuplicate returned error: %v", err)
	}
	if dup {
		t.Error("unseen key reported as duplicate")
	}
	if repo.existsCalls != 0 {
		t.Errorf("expected no store lookups for a bloom-negative key, got %d", repo.existsCalls)
	}
}

func TestDuplicateGuard_RememberThenCheck(t *testing.T) {
	repo := newFakeHashtagRepo()
	guard := NewDuplicateGuard(repo, nil, time.Hour, nil)
	ctx := context.Background()

	// Remember without a backing row: the bloom filter turns positive
	// but the store has the final word.
	guard.Remember(ctx, "wlm2024", 1)

	dup, err := guard.IsDuplicate(ctx, "wlm2024", 1)
	if err != nil {
		t.Fatalf("IsDuplicate returned error: %v", err)
	}
	if dup {
		t.Error("store miss must override a bloom positive")
	}
	if repo.existsCalls != 1 {
		t.Errorf("expected 1 store lookup, got %d", repo.existsCalls)
	}
}

func TestDuplicateGuard_SeedCoversStoredKeys(t *testing.T) {
	repo := newFakeHashtagRepo()
	ctx := context.Background()

	// Populate the store through a collector, then build a fresh guard
	// the way a restarted process would.
	if err := newTestCollector(t, repo, nil).HandleChange(ctx, testChange(42, "#seeded")); err != nil {
		t.Fatalf("HandleChange returned error: %v", err)
	}

	guard := NewDuplicateGuard(repo, nil, time.Hour, nil)
	if err := guard.Seed(ctx, time.Time{}); err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}

	dup, err := guard.IsDuplicate(ctx, "seeded", 42)
	if err != nil {
		t.Fatalf("IsDuplicate returned error: %v", err)
	}
	if !dup {
		t.Error("expected a seeded key to be reported as duplicate")
	}
}
