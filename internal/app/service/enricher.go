package service

import (
	"context"

	"github.com/wikihashtags/hashtagd/internal/app/model"
	infraprom "github.com/wikihashtags/hashtagd/internal/infra/prometheus"
	"github.com/wikihashtags/hashtagd/internal/stream"
	"go.uber.org/zap"
)

// MediaEnricher determines whether an edit newly introduced image, video or
// audio media. Enrichment is best-effort: implementations never return an
// error, they degrade to zero flags.
type MediaEnricher interface {
	MediaFlags(ctx context.Context, change *stream.RecentChange) model.MediaFlags
}

// MediaAPI is the slice of the MediaWiki client the enricher needs.
type MediaAPI interface {
	RevisionMedia(ctx context.Context, domain string, revID int64) ([]string, error)
	MediaTypes(ctx context.Context, domain string, filenames []string) (map[string]bool, error)
}

// NoopEnricher is substituted when enrichment is disabled; every edit gets
// default (false) flags.
type NoopEnricher struct{}

func (NoopEnricher) MediaFlags(context.Context, *stream.RecentChange) model.MediaFlags {
	return model.MediaFlags{}
}

type mediaEnricher struct {
	api    MediaAPI
	logger *zap.Logger
}

// NewMediaEnricher returns an enricher backed by the MediaWiki action API.
func NewMediaEnricher(api MediaAPI, logger *zap.Logger) MediaEnricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mediaEnricher{api: api, logger: logger}
}

// MediaFlags fetches the media embedded in the edit's new revision, diffs it
// against the old revision when one exists, and classifies whatever was
// newly added. Any failure is logged and reported as no media detected;
// enrichment must never block the edit's persistence.
func (e *mediaEnricher) MediaFlags(ctx context.Context, change *stream.RecentChange) model.MediaFlags {
	var flags model.MediaFlags

	if change.Revision == nil {
		return flags
	}

	domain := change.Meta.Domain

	newMedia, err := e.api.RevisionMedia(ctx, domain, change.Revision.New)
	if err != nil {
		e.enrichmentFailed(change, err)
		return flags
	}
	if len(newMedia) == 0 {
		return flags
	}

	oldMedia := map[string]struct{}{}
	if change.Revision.Old != nil {
		old, err := e.api.RevisionMedia(ctx, domain, *change.Revision.Old)
		if err != nil {
			e.enrichmentFailed(change, err)
			return flags
		}
		for _, f := range old {
			oldMedia[f] = struct{}{}
		}
	}

	var added []string
	for _, f := range newMedia {
		if _, ok := oldMedia[f]; !ok {
			added = append(added, f)
		}
	}
	if len(added) == 0 {
		return flags
	}

	types, err := e.api.MediaTypes(ctx, domain, added)
	if err != nil {
		e.enrichmentFailed(change, err)
		return flags
	}

	flags.Image = types["DRAWING"] || types["BITMAP"]
	flags.Video = types["VIDEO"]
	flags.Audio = types["AUDIO"]
	return flags
}

func (e *mediaEnricher) enrichmentFailed(change *stream.RecentChange, err error) {
	infraprom.EnrichmentFailures.Inc()
	e.logger.Warn("media enrichment failed",
		zap.String("domain", change.Meta.Domain),
		zap.String("title", change.Title),
		zap.Error(err),
	)
}
