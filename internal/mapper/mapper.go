package mapper

import (
	"regexp"
	"strconv"
	"strings"

	"book_harvester/internal/domain"
)

var yearPattern = regexp.MustCompile(`\b([12]\d{3})\b`)

// Normalize converts a provider-native item into canonical fields. It is a
// pure function: same input, same output, no I/O. Missing optional fields
// become nil, never empty strings.
func Normalize(item domain.RawItem) domain.CanonicalFields {
	fields := domain.CanonicalFields{
		Title:  strings.TrimSpace(item.Title),
		Author: joinCreators(item.Creators),
		Year:   extractYear(item.RawDate),
	}

	if lang := strings.TrimSpace(item.Language); lang != "" {
		fields.Language = &lang
	}
	if desc := strings.TrimSpace(item.Description); desc != "" {
		fields.Description = &desc
	}

	return fields
}

func joinCreators(creators []string) string {
	cleaned := make([]string, 0, len(creators))
	for _, c := range creators {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return strings.Join(cleaned, ", ")
}

// extractYear scans a free-text date for the first 4-digit token in
// [1000, 2999]. No match yields nil; it never guesses.
func extractYear(rawDate string) *int {
	for _, match := range yearPattern.FindAllString(rawDate, -1) {
		year, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		if year >= 1000 && year <= 2999 {
			return &year
		}
	}
	return nil
}
