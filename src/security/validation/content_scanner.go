// backend/src/validation/content_scanner.go
package validation

import (
	"fmt"
	"regexp"

	"github.com/username/soldrip/backend/src/logger"
)

var (
	// Common XSS vectors. Contextual output encoding is the primary defense.
	xssPatternsRegex = regexp.MustCompile(
		`(?i)<script|onerror=|onmouseover=|onfocus=|onload=|javascript:|vbscript:|<iframe|<object|<embed|<applet|<style|<link|<img\s+src\s*=\s*['"]?\s*(javascript|data):`,
	)
)

func truncateForLog(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// CheckXSSPatterns detects basic XSS patterns.
func CheckXSSPatterns(s, fieldName, contextID string) error {
	if xssPatternsRegex.MatchString(s) {
		logger.L.Warn("Potential XSS pattern detected", "field", fieldName, "context", contextID, "value", truncateForLog(s, 50))
		return fmt.Errorf("%w: %s contains potentially unsafe content", ErrValidationFailed, fieldName)
	}
	return nil
}
