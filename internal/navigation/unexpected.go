package navigation

import (
	"regexp"
	"strings"
)

// defaultBlocklistFragments are well-known interstitial path fragments
// (spec.md §4.7).
var defaultBlocklistFragments = []string{
	"login", "signin", "auth", "error", "404", "500",
	"maintenance", "blocked", "captcha", "checkpoint",
}

// UnexpectedPageDetector compares a URL against a caller-supplied allow-list
// and the fixed interstitial blocklist.
type UnexpectedPageDetector struct {
	AllowSubstrings []string
	AllowPatterns   []*regexp.Regexp
	BlocklistFragments []string
}

// NewUnexpectedPageDetector builds a detector with the default blocklist;
// callers supply their own allow-list.
func NewUnexpectedPageDetector(allowSubstrings []string, allowPatterns []*regexp.Regexp) UnexpectedPageDetector {
	return UnexpectedPageDetector{
		AllowSubstrings:    allowSubstrings,
		AllowPatterns:      allowPatterns,
		BlocklistFragments: defaultBlocklistFragments,
	}
}

func (d UnexpectedPageDetector) allowed(url string) bool {
	for _, s := range d.AllowSubstrings {
		if strings.Contains(url, s) {
			return true
		}
	}
	for _, p := range d.AllowPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// Check reports whether url is an unexpected (interstitial) page: it
// matches a blocklist fragment and is not covered by the allow-list.
func (d UnexpectedPageDetector) Check(url string) (unexpected bool, matchedFragment string) {
	if d.allowed(url) {
		return false, ""
	}
	lower := strings.ToLower(url)
	fragments := d.BlocklistFragments
	if fragments == nil {
		fragments = defaultBlocklistFragments
	}
	for _, frag := range fragments {
		if strings.Contains(lower, frag) {
			return true, frag
		}
	}
	return false, ""
}
