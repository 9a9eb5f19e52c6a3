package model

import "time"

// MaxSummaryLength is the ceiling MediaWiki applies to edit summaries; longer
// comments are truncated before persistence.
const MaxSummaryLength = 800

// Hashtag is one use of a hashtag in one edit. An edit carrying several
// hashtags produces one row per hashtag, so the unique key is the
// (hashtag, rc_id) pair, not rc_id alone.
type Hashtag struct {
	ID uint64 `gorm:"primaryKey"`

	Hashtag string `gorm:"size:128;index;uniqueIndex:idx_hashtag_rc_id,priority:1"`

	// Full project domain (e.g. en.wikipedia.org), not just a language
	// code, so edits to every Wikimedia project can be tracked.
	Domain string `gorm:"size:64;index"`

	// Edit time from the stream, normalized to whole-second UTC.
	Timestamp time.Time `gorm:"index"`

	Username  string `gorm:"size:255;index"`
	PageTitle string `gorm:"size:512"`

	EditSummary string `gorm:"size:800"`

	// Recentchanges ID
	// (https://www.mediawiki.org/wiki/Manual:Recentchanges_table)
	RcID int64 `gorm:"uniqueIndex:idx_hashtag_rc_id,priority:2"`

	// Revision ID; NULL for actions without a revision, such as page
	// moves and uploads.
	RevID *int64

	// Whether this change introduced new media to the page.
	HasImage bool `gorm:"not null;default:false"`
	HasVideo bool `gorm:"not null;default:false"`
	HasAudio bool `gorm:"not null;default:false"`
}

// MediaFlags carries the enrichment result for one edit.
type MediaFlags struct {
	Image bool
	Video bool
	Audio bool
}
