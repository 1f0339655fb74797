package common

import "strings"

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CutPrefixFold is strings.CutPrefix with Unicode case folding. The prefix
// only matches a whole word: it must be followed by whitespace or the end of s.
func CutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	rest := s[len(prefix):]
	if rest != "" && !startsWithSpace(rest) {
		return s, false
	}
	return strings.TrimSpace(rest), true
}

func startsWithSpace(s string) bool {
	return strings.IndexAny(s[:1], " \t\n\r") == 0
}
