package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/wikihashtags/hashtagd/internal/stream"
)

// wikidataDomain is excluded outright: the sheer edit volume drowns every
// other project, and almost none of its "hashtags" are intentional.
const wikidataDomain = "www.wikidata.org"

// candidatePattern matches a # or fullwidth ＃ at the start of the comment or
// after whitespace, followed by word characters.
var candidatePattern = regexp.MustCompile(`(?:^|\s)[#＃]([\p{L}\p{N}_]+)`)

// FilterConfig carries the exclusion data for hashtag validity checks. The
// lists are injected so tests can run against a minimal set.
type FilterConfig struct {
	// ExcludedTags are literal hashtags rejected case-insensitively.
	ExcludedTags []string
	// ExcludedPatterns are regular expressions a candidate must not
	// fully match, compared case-insensitively.
	ExcludedPatterns []string
}

// DefaultFilterConfig returns the production exclusion lists: #REDIRECT in
// its various languages, magic words and template syntax, and auto-generated
// batch-operation tags.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		ExcludedTags: []string{
			"redirect", // #REDIRECT in various languages
			"weiterleitung",
			"redirection",
			"redirección",
			"doorverwijzing",
			"redirecionamento",
			"omdirigering",
			"ifexist", // Other magic words and template syntax
			"switch",
			"ifexpr",
			"if",
			"rs",
			"mw",
			"default",
			"quickstatements",
		},
		ExcludedPatterns: []string{
			// QuickStatements batch tags carry a millisecond timestamp.
			`temporary_batch_\d{13}`,
		},
	}
}

// CommentFilter extracts hashtag candidates from edit summaries and decides
// hashtag and edit validity. All methods are pure.
type CommentFilter struct {
	excluded map[string]struct{}
	patterns []*regexp.Regexp
}

// NewCommentFilter builds a filter from the given exclusion config.
func NewCommentFilter(cfg FilterConfig) (*CommentFilter, error) {
	excluded := make(map[string]struct{}, len(cfg.ExcludedTags))
	for _, tag := range cfg.ExcludedTags {
		excluded[strings.ToLower(tag)] = struct{}{}
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.ExcludedPatterns))
	for _, p := range cfg.ExcludedPatterns {
		// Full-match only: a candidate merely containing the pattern
		// is still a legitimate hashtag.
		re, err := regexp.Compile(`(?i)\A(?:` + p + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("filter: compile exclusion pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &CommentFilter{excluded: excluded, patterns: patterns}, nil
}

// ExtractCandidates returns every hashtag token in the comment, in order,
// case preserved. The marker scan short-circuits before any regex work: the
// overwhelming majority of edit summaries contain no marker at all.
func (f *CommentFilter) ExtractCandidates(comment string) []string {
	if !strings.ContainsAny(comment, "#＃") {
		return nil
	}

	matches := candidatePattern.FindAllStringSubmatch(comment, -1)
	if len(matches) == 0 {
		return nil
	}

	candidates := make([]string, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, m[1])
	}
	return candidates
}

// ValidHashtag reports whether a candidate is worth recording: at least two
// characters, not purely numeric, and on neither exclusion list. The literal
// list and the pattern list are independent checks; a candidate must clear
// both.
func (f *CommentFilter) ValidHashtag(candidate string) bool {
	if len([]rune(candidate)) < 2 {
		return false
	}
	if isNumeric(candidate) {
		return false
	}
	if _, ok := f.excluded[strings.ToLower(candidate)]; ok {
		return false
	}
	for _, re := range f.patterns {
		if re.MatchString(candidate) {
			return false
		}
	}
	return true
}

// ValidEdit reports whether the edit itself qualifies: not a bot edit and
// not on Wikidata.
func (f *CommentFilter) ValidEdit(change *stream.RecentChange) bool {
	return change.Meta.Domain != wikidataDomain && !change.Bot
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
