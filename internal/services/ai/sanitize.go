package ai

import (
	"github.com/benvon/cinematch/internal/logger"
)

const (
	// MaxPreviewLength bounds prompt and response text in debug logs.
	MaxPreviewLength = 10000
	// RedactedValue replaces the hidden part of a secret.
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey keeps only the first and last four characters of a key.
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// preview cleans model input or output for a debug log field.
func preview(s string) string {
	return logger.SanitizeString(s, MaxPreviewLength)
}
