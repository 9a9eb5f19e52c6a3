package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wikihashtags/hashtagd/internal/app/model"
	"github.com/wikihashtags/hashtagd/internal/app/repository"
	infraprom "github.com/wikihashtags/hashtagd/internal/infra/prometheus"
	"github.com/wikihashtags/hashtagd/internal/stream"
	"go.uber.org/zap"
)

// Collector runs the per-event pipeline: extract candidates, check edit and
// hashtag validity, consult the duplicate guard, enrich, persist. It is
// driven strictly sequentially by the stream consumer; the guard's
// check-then-insert depends on that.
type Collector struct {
	filter   *CommentFilter
	guard    *DuplicateGuard
	enricher MediaEnricher
	repo     repository.HashtagRepository
	logger   *zap.Logger
}

// NewCollector wires the pipeline stages together.
func NewCollector(
	filter *CommentFilter,
	guard *DuplicateGuard,
	enricher MediaEnricher,
	repo repository.HashtagRepository,
	logger *zap.Logger,
) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		filter:   filter,
		guard:    guard,
		enricher: enricher,
		repo:     repo,
		logger:   logger,
	}
}

// HandleChange processes one decoded stream event. It only returns an error
// on store failures, which the consumer treats as unrecoverable; everything
// else (invalid edits, rejected candidates, duplicates) is absorbed here.
func (c *Collector) HandleChange(ctx context.Context, change *stream.RecentChange) error {
	candidates := c.filter.ExtractCandidates(change.Comment)
	if len(candidates) == 0 {
		return nil
	}
	if !c.filter.ValidEdit(change) {
		return nil
	}

	if change.ID == nil {
		infraprom.EventsMalformed.Inc()
		c.logger.Warn("no recentchanges ID in event, skipping",
			zap.String("domain", change.Meta.Domain),
			zap.String("title", change.Title),
		)
		return nil
	}
	rcID := *change.ID

	// Enrichment is the expensive stage, so it runs once per edit and
	// only when at least one candidate is actually going to be written.
	var flags *model.MediaFlags

	for _, tag := range candidates {
		if !c.filter.ValidHashtag(tag) {
			continue
		}

		dup, err := c.guard.IsDuplicate(ctx, tag, rcID)
		if err != nil {
			return fmt.Errorf("duplicate check for %q: %w", tag, err)
		}
		if dup {
			infraprom.DuplicatesSkipped.Inc()
			c.logger.Debug("skipped duplicate",
				zap.String("hashtag", tag),
				zap.Int64("rc_id", rcID),
			)
			continue
		}

		infraprom.HashtagsMatched.Inc()

		if flags == nil {
			f := c.enricher.MediaFlags(ctx, change)
			flags = &f
		}

		row := repository.NewRow(tag, change, *flags)
		if err := c.repo.Insert(ctx, row); err != nil {
			if errors.Is(err, repository.ErrDuplicateRow) {
				// Second line of defense: the unique index caught
				// what the guard missed.
				infraprom.DuplicatesSkipped.Inc()
				c.logger.Info("insert skipped duplicate",
					zap.String("hashtag", tag),
					zap.Int64("rc_id", rcID),
				)
				continue
			}
			return fmt.Errorf("insert %q (rc_id %d): %w", tag, rcID, err)
		}

		c.guard.Remember(ctx, tag, rcID)
		infraprom.RowsInserted.Inc()
		c.logger.Info("recorded hashtag",
			zap.String("hashtag", tag),
			zap.String("domain", change.Meta.Domain),
			zap.Int64("rc_id", rcID),
		)
	}

	return nil
}
