package command

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidateRejectsEmptyAndWhitespace(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		err := Validate(raw)
		if err == nil {
			t.Fatalf("expected validation error for %q", raw)
		}
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected *ValidationError, got %T", err)
		}
	}
}

func TestValidateLengthBounds(t *testing.T) {
	if err := Validate("hi"); err == nil {
		t.Fatal("expected error for command shorter than minimum")
	}
	if err := Validate(strings.Repeat("a", MaxLength+1)); err == nil {
		t.Fatal("expected error for command over maximum length")
	}
	if err := Validate(strings.Repeat("a", MaxLength)); err != nil {
		t.Fatalf("command at maximum length should validate: %v", err)
	}
	if err := Validate("Cancel my 3pm meeting"); err != nil {
		t.Fatalf("valid command rejected: %v", err)
	}
}

func TestValidateRejectsScriptLikeContent(t *testing.T) {
	for _, raw := range []string{
		"<script>alert(1)</script>",
		"click javascript:void(0)",
		"img onerror=steal()",
		"data:text/html,payload",
	} {
		if err := Validate(raw); err == nil {
			t.Fatalf("expected rejection of %q", raw)
		}
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize("  cancel\x00 my\x07 meeting\n please\t  ")
	want := "cancel my meeting\n please"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}

	long := Sanitize(strings.Repeat("x", MaxLength+50))
	if len(long) != MaxLength {
		t.Fatalf("expected clamp to %d chars, got %d", MaxLength, len(long))
	}
}

func TestSanitizeClampsOnRuneBoundary(t *testing.T) {
	long := Sanitize(strings.Repeat("日", MaxLength+10))
	if !utf8.ValidString(long) {
		t.Fatal("clamped output must stay valid UTF-8")
	}
	if got := utf8.RuneCountInString(long); got != MaxLength {
		t.Fatalf("clamped to %d runes, want %d", got, MaxLength)
	}
}

func TestValidateCountsRunesNotBytes(t *testing.T) {
	// MaxLength multi-byte characters must pass even though the byte
	// length is triple the limit.
	if err := Validate(strings.Repeat("日", MaxLength)); err != nil {
		t.Fatalf("multi-byte command at maximum length rejected: %v", err)
	}
	if err := Validate(strings.Repeat("日", MaxLength+1)); err == nil {
		t.Fatal("expected rejection over maximum rune count")
	}
	if err := Validate("日程"); err == nil {
		t.Fatal("two runes must fall under the minimum length")
	}
}
