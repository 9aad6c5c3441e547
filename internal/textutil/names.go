package textutil

import (
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize splits text into lowercase tokens, filtering single characters.
func Tokenize(text string) []string {
	raw := tokenSplitPattern.Split(strings.ToLower(text), -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len(token) < 2 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// NamesMatch reports whether two person names refer to the same person using
// case-insensitive token-set overlap. "Tom Hanks" matches "hanks, tom" and
// "Thomas J. Hanks" shares the surname token with "Tom Hanks" but is only
// accepted when every token of the shorter name appears in the longer one.
func NamesMatch(a, b string) bool {
	tokensA := Tokenize(a)
	tokensB := Tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return false
	}
	shorter, longer := tokensA, tokensB
	if len(tokensB) < len(tokensA) {
		shorter, longer = tokensB, tokensA
	}
	longerSet := make(map[string]struct{}, len(longer))
	for _, token := range longer {
		longerSet[token] = struct{}{}
	}
	for _, token := range shorter {
		if _, ok := longerSet[token]; !ok {
			return false
		}
	}
	return true
}

// ContainsKeyword reports whether any of the keywords appears in the haystack,
// case-insensitively.
func ContainsKeyword(haystack string, keywords []string) bool {
	lowered := strings.ToLower(haystack)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
