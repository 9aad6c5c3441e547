package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	yearSuffixPattern    = regexp.MustCompile(`^(.*?)[\s]*[\(\[](\d{4})[\)\]]\s*$`)
	sequelNumeralPattern = regexp.MustCompile(`\s+(?:[0-9]{1,2}|[IVX]{1,4})$`)
)

// CompareKey returns a case-insensitive comparison key for a title: lowered,
// symbol-folded, letters and digits only.
func CompareKey(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	normalized := strings.ToLower(input)
	normalized = strings.ReplaceAll(normalized, "&", "and")
	normalized = strings.ReplaceAll(normalized, "+", "and")

	var builder strings.Builder
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// NormalizeTitle strips a subtitle suffix (": Subtitle", "- Subtitle") and a
// trailing sequel numeral, producing the base franchise title. Used as the
// last-resort match key in store resolution.
func NormalizeTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ""
	}
	if idx := strings.Index(trimmed, ":"); idx > 0 {
		trimmed = strings.TrimSpace(trimmed[:idx])
	} else if idx := strings.Index(trimmed, " - "); idx > 0 {
		trimmed = strings.TrimSpace(trimmed[:idx])
	}
	trimmed = sequelNumeralPattern.ReplaceAllString(trimmed, "")
	return strings.TrimSpace(trimmed)
}

// SplitTitleYear extracts a trailing parenthesized year from a title guess,
// returning the bare title and the year (0 when absent).
func SplitTitleYear(input string) (string, int) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", 0
	}
	matches := yearSuffixPattern.FindStringSubmatch(trimmed)
	if len(matches) != 3 {
		return trimmed, 0
	}
	year, err := strconv.Atoi(matches[2])
	if err != nil || year < 1880 || year > 2100 {
		return trimmed, 0
	}
	return strings.TrimSpace(matches[1]), year
}

// DisplayTitle renders a title in canonical display casing.
func DisplayTitle(title string) string {
	cleaned := strings.TrimSpace(title)
	if cleaned == "" {
		return cleaned
	}
	return cases.Title(language.Und).String(cleaned)
}
