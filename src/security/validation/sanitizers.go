// backend/src/validation/sanitizers.go
package validation

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// Definition of strict sanitization policy
	strictHTMLPolicy *bluemonday.Policy
)

func init() {
	// Initialize strict policy once at startup
	strictHTMLPolicy = bluemonday.StrictPolicy() // Removes all HTML tags
}

// SanitizeText removes all HTML tags and attributes from an input string,
// preventing XSS before saving to the database.
func SanitizeText(s string) string {
	return strictHTMLPolicy.Sanitize(s)
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1 // Drop the rune
	}, s)
}

// SanitizeMemo cleans a transfer memo and checks its length after cleaning.
func SanitizeMemo(memo, contextID string) (string, error) {
	if err := CheckXSSPatterns(memo, "memo", contextID); err != nil {
		return "", err
	}
	clean := strings.TrimSpace(SanitizeText(StripUnprintable(memo)))
	if err := ValidateStringMaxLength(clean, MaxMemoLength, "memo"); err != nil {
		return "", err
	}
	return clean, nil
}
