package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"
	"github.com/wikihashtags/hashtagd/internal/app/repository"
	"go.uber.org/zap"
)

const (
	// Sized for the replay horizon plus headroom: at typical hashtag
	// rates this is years of rows, and a saturated filter only costs
	// extra database lookups.
	bloomCapacity      = 5_000_000
	bloomFalsePositive = 0.001

	seenKeyPrefix = "hashtagd:seen:"
)

// DuplicateGuard decides whether a (hashtag, rc_id) pair is already
// persisted. It is only safe for a single sequential caller; the pipeline's
// check-then-insert is never interleaved with another writer.
//
// Lookups are layered cheapest-first. The bloom filter holds every key this
// process inserted plus, via Seed, every key inside the stream's replay
// horizon, so a negative answer is definitive and skips the database
// round-trip. A positive answer is confirmed against redis (when
// configured) and finally the store itself.
type DuplicateGuard struct {
	repo   repository.HashtagRepository
	cache  *redis.Client // nil when redis is disabled
	ttl    time.Duration
	seen   *bloom.BloomFilter
	logger *zap.Logger
}

// NewDuplicateGuard builds a guard over the repository. cache may be nil.
func NewDuplicateGuard(repo repository.HashtagRepository, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *DuplicateGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateGuard{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		seen:   bloom.NewWithEstimates(bloomCapacity, bloomFalsePositive),
		logger: logger,
	}
}

// Seed loads every stored key at or after since into the bloom filter.
// Re-delivered events can only originate inside the stream's replay window,
// so seeding from the resume point is enough to make bloom negatives
// trustworthy across restarts.
func (g *DuplicateGuard) Seed(ctx context.Context, since time.Time) error {
	keys, err := g.repo.RecentKeys(ctx, since)
	if err != nil {
		return err
	}
	for _, k := range keys {
		g.seen.AddString(guardKey(k.Hashtag, k.RcID))
	}
	g.logger.Info("duplicate guard seeded",
		zap.Int("keys", len(keys)),
		zap.Time("since", since),
	)
	return nil
}

// IsDuplicate reports whether the pair is already recorded. A store error is
// returned as-is; the caller treats it as unrecoverable.
func (g *DuplicateGuard) IsDuplicate(ctx context.Context, hashtag string, rcID int64) (bool, error) {
	key := guardKey(hashtag, rcID)

	if !g.seen.TestString(key) {
		return false, nil
	}

	if g.cache != nil {
		n, err := g.cache.Exists(ctx, seenKeyPrefix+key).Result()
		if err != nil {
			// Cache trouble is not a reason to stall ingestion.
			g.logger.Warn("duplicate cache lookup failed", zap.Error(err))
		} else if n > 0 {
			return true, nil
		}
	}

	return g.repo.Exists(ctx, hashtag, rcID)
}

// Remember marks the pair as persisted. Called after a successful insert.
func (g *DuplicateGuard) Remember(ctx context.Context, hashtag string, rcID int64) {
	key := guardKey(hashtag, rcID)
	g.seen.AddString(key)

	if g.cache != nil {
		if err := g.cache.Set(ctx, seenKeyPrefix+key, 1, g.ttl).Err(); err != nil {
			g.logger.Warn("duplicate cache write failed", zap.Error(err))
		}
	}
}

func guardKey(hashtag string, rcID int64) string {
	return hashtag + ":" + strconv.FormatInt(rcID, 10)
}
