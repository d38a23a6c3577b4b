// Package validate provides input validation and sanitization for the
// CityPulse API: advertiser-supplied creatives, event text, and free-text
// queries, with basic SQL injection, XSS, and SSRF screens.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrSQLKeyword        = errors.New("string contains SQL keywords")
	ErrEmpty             = errors.New("string is empty")
)

// SQL keywords matched as standalone words. A heuristic screen only;
// parameterized queries are the primary defense.
var sqlKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "EXEC", "EXECUTE", "UNION", "JOIN", "WHERE", "FROM",
}

// SQL syntax fragments matched as substrings. Unlike keywords these never
// appear in legitimate names, so no word boundary is needed.
var sqlFragments = []string{
	"--", "/*", "*/", ";--", "xp_", "sp_",
}

var sqlKeywordPattern = regexp.MustCompile(`\b(` + strings.Join(sqlKeywords, "|") + `)\b`)

// StringConstraints defines validation constraints for a string. Lengths
// are in runes, not bytes.
type StringConstraints struct {
	MinLength        int
	MaxLength        int // 0 means no maximum
	AllowedPattern   *regexp.Regexp
	DisallowedWords  []string // case-insensitive substring match
	CheckSQLKeywords bool
	AllowEmpty       bool
	TrimSpace        bool
}

// String validates s against the constraints and returns the (optionally
// trimmed) string.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	runes := utf8.RuneCountInString(s)
	switch {
	case constraints.MinLength > 0 && runes < constraints.MinLength:
		return "", fmt.Errorf("%w: %d chars, need at least %d", ErrStringTooShort, runes, constraints.MinLength)
	case constraints.MaxLength > 0 && runes > constraints.MaxLength:
		return "", fmt.Errorf("%w: %d chars, maximum is %d", ErrStringTooLong, runes, constraints.MaxLength)
	case constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s):
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	if constraints.CheckSQLKeywords {
		if err := checkSQLKeywords(s); err != nil {
			return "", err
		}
	}
	if word := firstDisallowed(s, constraints.DisallowedWords); word != "" {
		return "", fmt.Errorf("string contains disallowed word: %q", word)
	}
	return s, nil
}

// firstDisallowed returns the first disallowed word found in s, matching
// case-insensitive substrings.
func firstDisallowed(s string, words []string) string {
	if len(words) == 0 {
		return ""
	}
	upper := strings.ToUpper(s)
	for _, word := range words {
		if strings.Contains(upper, strings.ToUpper(word)) {
			return word
		}
	}
	return ""
}

// checkSQLKeywords matches keywords on word boundaries so legitimate names
// like "The Executive" do not trip the EXEC keyword, and fragments anywhere.
func checkSQLKeywords(s string) error {
	upper := strings.ToUpper(s)
	if m := sqlKeywordPattern.FindString(upper); m != "" {
		return fmt.Errorf("%w: contains %q", ErrSQLKeyword, m)
	}
	for _, fragment := range sqlFragments {
		if strings.Contains(upper, fragment) {
			return fmt.Errorf("%w: contains %q", ErrSQLKeyword, fragment)
		}
	}
	return nil
}

// SanitizeHTML escapes HTML special characters. Call on any user-supplied
// text destined for HTML display.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeString validates then HTML-escapes.
func SanitizeString(s string, constraints StringConstraints) (string, error) {
	validated, err := String(s, constraints)
	if err != nil {
		return "", err
	}
	return SanitizeHTML(validated), nil
}

// CampaignHeadline validates an ad creative headline, 1-100 characters.
// Keyword checking stays off so headlines like "Drop the Beat Fest" are
// not rejected.
func CampaignHeadline(headline string) (string, error) {
	return SanitizeString(headline, StringConstraints{
		MinLength: 1,
		MaxLength: 100,
		TrimSpace: true,
	})
}

// CreativeBody validates an optional ad creative body, max 500 characters.
func CreativeBody(body string) (string, error) {
	return SanitizeString(body, StringConstraints{
		MaxLength:  500,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// EventTitle validates an event title, 1-200 characters.
func EventTitle(title string) (string, error) {
	return SanitizeString(title, StringConstraints{
		MinLength: 1,
		MaxLength: 200,
		TrimSpace: true,
	})
}

// SearchQuery validates free-text query input from serving requests, max
// 512 characters. Queries go through parameterized FTS, so no keyword
// screen.
func SearchQuery(query string) (string, error) {
	return SanitizeString(query, StringConstraints{
		MaxLength:  512,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// Description validates an optional description field, max 5000 characters.
func Description(desc string) (string, error) {
	return SanitizeString(desc, StringConstraints{
		MaxLength:  5000,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}
