package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wikihashtags/hashtagd/internal/app/model"
	"github.com/wikihashtags/hashtagd/internal/stream"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateRow signals that the (hashtag, rc_id) pair is already
	// recorded. The unique index reports it; callers log and move on.
	ErrDuplicateRow = errors.New("hashtag row already recorded")
)

// Key identifies one recorded hashtag use.
type Key struct {
	Hashtag string
	RcID    int64
}

// SearchQuery filters persisted rows the way the reporting frontend queries
// them. StartDate is inclusive; EndDate is an exclusive upper bound, so a
// caller wanting a whole closing day passes that day plus one.
type SearchQuery struct {
	Hashtags []string
	// AllTags switches multi-hashtag matching from OR to AND semantics:
	// an edit qualifies only if it carries every queried hashtag.
	AllTags   bool
	Domain    string
	Username  string
	StartDate *time.Time
	EndDate   *time.Time
	HasImage  *bool
	HasVideo  *bool
	HasAudio  *bool
	Limit     int
	Offset    int
}

// EditRow is the per-edit projection returned by Search. Hashtag is omitted
// so that an edit matched by several queried hashtags collapses to one row.
type EditRow struct {
	Domain      string
	Timestamp   time.Time
	Username    string
	PageTitle   string
	EditSummary string
	RcID        int64
	RevID       *int64
	HasImage    bool
	HasVideo    bool
	HasAudio    bool
}

// TagCount is one entry of a top-hashtags aggregate.
type TagCount struct {
	Hashtag string
	Count   int64
}

// DayCount is one entry of an edits-per-day aggregate.
type DayCount struct {
	Day   time.Time
	Count int64
}

// HashtagRepository defines the data access contract for hashtag rows. The
// ingestion pipeline is the only writer; everything else is read-only.
type HashtagRepository interface {
	Insert(ctx context.Context, row *model.Hashtag) error
	Exists(ctx context.Context, hashtag string, rcID int64) (bool, error)

	// LatestTimestamp returns the maximum stored timestamp, or nil when
	// the table is empty. It is the stream resume point after a restart.
	LatestTimestamp(ctx context.Context) (*time.Time, error)

	// RecentKeys returns every (hashtag, rc_id) pair at or after since.
	// The duplicate guard seeds its filter from this on startup.
	RecentKeys(ctx context.Context, since time.Time) ([]Key, error)

	Search(ctx context.Context, q SearchQuery) ([]EditRow, error)
	TopTags(ctx context.Context, since time.Time, limit int) ([]TagCount, error)
	EditsPerDay(ctx context.Context, q SearchQuery) ([]DayCount, error)
}

type hashtagRepository struct {
	db *gorm.DB
}

// NewHashtagRepository returns a GORM-backed HashtagRepository.
func NewHashtagRepository(db *gorm.DB) HashtagRepository {
	return &hashtagRepository{db: db}
}

// NewRow builds a persistable row from a stream change. Stream timestamps
// arrive as ISO-8601 with an offset; they are stored as whole-second UTC.
// The caller must have checked that change.ID is present.
func NewRow(hashtag string, change *stream.RecentChange, flags model.MediaFlags) *model.Hashtag {
	summary := change.Comment
	if runes := []rune(summary); len(runes) > model.MaxSummaryLength {
		summary = string(runes[:model.MaxSummaryLength])
	}

	var revID *int64
	if change.Revision != nil {
		rev := change.Revision.New
		revID = &rev
	}

	return &model.Hashtag{
		Hashtag:     hashtag,
		Domain:      change.Meta.Domain,
		Timestamp:   change.Meta.DT.UTC().Truncate(time.Second),
		Username:    change.User,
		PageTitle:   change.Title,
		EditSummary: summary,
		RcID:        *change.ID,
		RevID:       revID,
		HasImage:    flags.Image,
		HasVideo:    flags.Video,
		HasAudio:    flags.Audio,
	}
}

func (r *hashtagRepository) Insert(ctx context.Context, row *model.Hashtag) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRow
		}
		return err
	}
	return nil
}

func (r *hashtagRepository) Exists(ctx context.Context, hashtag string, rcID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Hashtag{}).
		Where("hashtag = ? AND rc_id = ?", hashtag, rcID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *hashtagRepository) LatestTimestamp(ctx context.Context) (*time.Time, error) {
	var latest sql.NullTime
	row := r.db.WithContext(ctx).
		Model(&model.Hashtag{}).
		Select("MAX(timestamp)").
		Row()
	if err := row.Scan(&latest); err != nil {
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time.UTC()
	return &t, nil
}

func (r *hashtagRepository) RecentKeys(ctx context.Context, since time.Time) ([]Key, error) {
	var keys []Key
	err := r.db.WithContext(ctx).
		Model(&model.Hashtag{}).
		Select("hashtag", "rc_id").
		Where("timestamp >= ?", since).
		Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *hashtagRepository) Search(ctx context.Context, q SearchQuery) ([]EditRow, error) {
	db := r.filtered(ctx, q)

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	// Distinct on every column except hashtag collapses an edit matched
	// by several queried hashtags into a single result row.
	var rows []EditRow
	err := db.
		Distinct("domain", "timestamp", "username", "page_title",
			"edit_summary", "rc_id", "rev_id",
			"has_image", "has_video", "has_audio").
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *hashtagRepository) TopTags(ctx context.Context, since time.Time, limit int) ([]TagCount, error) {
	if limit <= 0 {
		limit = 10
	}

	var tags []TagCount
	err := r.db.WithContext(ctx).
		Model(&model.Hashtag{}).
		Select("hashtag, COUNT(*) AS count").
		Where("timestamp > ?", since).
		Group("hashtag").
		Order("count DESC").
		Limit(limit).
		Scan(&tags).Error
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *hashtagRepository) EditsPerDay(ctx context.Context, q SearchQuery) ([]DayCount, error) {
	var days []DayCount
	err := r.filtered(ctx, q).
		Select("DATE(timestamp) AS day, COUNT(DISTINCT rc_id) AS count").
		Group("DATE(timestamp)").
		Order("day").
		Scan(&days).Error
	if err != nil {
		return nil, err
	}
	return days, nil
}

// filtered applies the shared SearchQuery predicates.
func (r *hashtagRepository) filtered(ctx context.Context, q SearchQuery) *gorm.DB {
	db := r.db.WithContext(ctx).
		Model(&model.Hashtag{}).
		Where("hashtag IN ?", q.Hashtags)

	if q.AllTags && len(q.Hashtags) > 1 {
		// AND semantics: keep only edits whose rc_id appears under
		// every queried hashtag.
		sub := r.db.Model(&model.Hashtag{}).
			Select("rc_id").
			Where("hashtag IN ?", q.Hashtags).
			Group("rc_id").
			Having("COUNT(DISTINCT hashtag) = ?", len(q.Hashtags))
		db = db.Where("rc_id IN (?)", sub)
	}

	if q.Domain != "" {
		db = db.Where("domain = ?", q.Domain)
	}
	if q.Username != "" {
		db = db.Where("username = ?", q.Username)
	}
	if q.StartDate != nil {
		db = db.Where("timestamp >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		db = db.Where("timestamp < ?", *q.EndDate)
	}
	if q.HasImage != nil {
		db = db.Where("has_image = ?", *q.HasImage)
	}
	if q.HasVideo != nil {
		db = db.Where("has_video = ?", *q.HasVideo)
	}
	if q.HasAudio != nil {
		db = db.Where("has_audio = ?", *q.HasAudio)
	}

	return db
}
