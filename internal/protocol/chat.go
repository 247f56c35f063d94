package protocol

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const DefaultMaxMessageLength = 300

// Any run of two or more whitespace runes, Unicode separators included.
var whitespaceRun = regexp.MustCompile(`[\s\v\p{Z}]{2,}`)

// SanitizeMessage collapses whitespace runs and trims a chat message. It
// reports false for messages that are too long or blank.
func SanitizeMessage(text string, maxLen int) (string, bool) {
	if utf8.RuneCountInString(text) > maxLen {
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " ")), true
}
