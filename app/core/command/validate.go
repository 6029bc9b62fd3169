package command

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinLength = 3
	MaxLength = 500
)

// ValidationError describes why a raw command was rejected. A command that
// fails validation never produces a task.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)data:text/html`),
}

// Validate checks a raw command before parsing.
func Validate(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &ValidationError{Reason: "Command cannot be empty"}
	}
	length := utf8.RuneCountInString(trimmed)
	if length < MinLength {
		return &ValidationError{Reason: fmt.Sprintf("Command must be at least %d characters", MinLength)}
	}
	if length > MaxLength {
		return &ValidationError{Reason: fmt.Sprintf("Command must be less than %d characters", MaxLength)}
	}
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(trimmed) {
			return &ValidationError{Reason: "Invalid characters detected in command"}
		}
	}
	return nil
}

// Sanitize trims the command, strips control characters (keeping newlines
// and tabs), and clamps to MaxLength characters. Clamping respects rune
// boundaries so a multi-byte character is never split.
func Sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	sanitized := b.String()
	if utf8.RuneCountInString(sanitized) > MaxLength {
		runes := []rune(sanitized)
		sanitized = string(runes[:MaxLength])
	}
	return sanitized
}
