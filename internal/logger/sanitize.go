package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps for values copied into log fields.
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizeString strips control characters and invalid UTF-8 from s and cuts
// it to maxLength bytes on a rune boundary. A non-positive maxLength means
// MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (!unicode.IsPrint(r) && r != ' ' && r != '\t') {
			return -1
		}
		return r
	}, strings.ToValidUTF8(s, ""))
	return Truncate(s, maxLength)
}

// Truncate cuts s to at most max bytes without splitting a rune and marks
// the cut with "...".
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// SanitizePath cleans a request path. Newlines are dropped so a crafted URL
// cannot forge extra log lines.
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError returns err's message cleaned for logging, or "" for nil.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUserID cleans an identity uid or store user id.
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// MaskEmail keeps the first character of the local part and the domain,
// e.g. "j***@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return SanitizeString(email, MaxUserIDLength)
	}
	first, _ := utf8.DecodeRuneInString(local)
	return SanitizeString(string(first)+"***@"+domain, MaxUserIDLength)
}
