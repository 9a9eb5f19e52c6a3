package service

import (
	"reflect"
	"testing"

	"github.com/wikihashtags/hashtagd/internal/stream"
)

func newTestFilter(t *testing.T) *CommentFilter {
	t.Helper()
	f, err := NewCommentFilter(DefaultFilterConfig())
	if err != nil {
		t.Fatalf("NewCommentFilter returned error: %v", err)
	}
	return f
}

func TestExtractCandidates(t *testing.T) {
	f := newTestFilter(t)

	cases := []struct {
		name    string
		comment string
		want    []string
	}{
		{"no marker", "fixed a typo in the lead section", nil},
		{"empty comment", "", nil},
		{"single tag", "Added a #test_tag to the page", []string{"test_tag"}},
		{"two tags", "#a #b", []string{"a", "b"}},
		{"marker mid-word ignored", "foo#bar", nil},
		{"fullwidth marker", "＃wlm2024 photos", []string{"wlm2024"}},
		{"marker only", "just a # sign", nil},
		{"case preserved", "#WikiLovesWomen", []string{"WikiLovesWomen"}},
		{"tag after punctuation not matched", "see:#tag", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := f.ExtractCandidates(tc.comment)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractCandidates(%q) = %v, want %v", tc.comment, got, tc.want)
			}
		})
	}
}

func TestValidHashtag(t *testing.T) {
	f := newTestFilter(t)

	cases := []struct {
		candidate string
		want      bool
	}{
		{"42", false},  // purely numeric
		{"a", false},   // too short
		{"Redirect", false},
		{"REDIRECT", false},
		{"weiterleitung", false},
		{"quickstatements", false},
		{"temporary_batch_1234567890123", false},
		{"temporary_batch_123", true}, // pattern requires 13 digits
		{"1cite", true},               // digits mixed with letters are fine
		{"wikiloveswomen", true},
		{"wlm2024", true},
	}

	for _, tc := range cases {
		if got := f.ValidHashtag(tc.candidate); got != tc.want {
			t.Errorf("ValidHashtag(%q) = %v, want %v", tc.candidate, got, tc.want)
		}
	}
}

func TestValidHashtag_InjectedExclusions(t *testing.T) {
	f, err := NewCommentFilter(FilterConfig{
		ExcludedTags:     []string{"banned"},
		ExcludedPatterns: []string{`spam_\d+`},
	})
	if err != nil {
		t.Fatalf("NewCommentFilter returned error: %v", err)
	}

	if f.ValidHashtag("Banned") {
		t.Error("expected literal exclusion to be case-insensitive")
	}
	if f.ValidHashtag("spam_7") {
		t.Error("expected pattern exclusion to reject full matches")
	}
	if !f.ValidHashtag("spam_7_extra") {
		t.Error("expected pattern exclusion to require a full match")
	}
	if !f.ValidHashtag("redirect") {
		t.Error("default exclusions should not apply to a custom config")
	}
}

func TestValidEdit(t *testing.T) {
	f := newTestFilter(t)

	edit := func(domain string, bot bool) *stream.RecentChange {
		return &stream.RecentChange{
			Meta: stream.Meta{Domain: domain},
			Bot:  bot,
		}
	}

	if f.ValidEdit(edit("www.wikidata.org", false)) {
		t.Error("Wikidata edits must be rejected")
	}
	if f.ValidEdit(edit("en.wikipedia.org", true)) {
		t.Error("bot edits must be rejected")
	}
	if !f.ValidEdit(edit("en.wikipedia.org", false)) {
		t.Error("expected a non-bot, non-Wikidata edit to be valid")
	}
}
