package errmsg

import (
	"strings"
)

// UserFriendly converts a provider or internal error into a short message
// that is safe to show the user. Raw provider errors never reach callers of
// the task service.
func UserFriendly(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "network", "connection refused", "no such host", "dial tcp"):
		return "Unable to connect. Please check your internet connection and try again."
	case containsAny(lower, "401", "unauthorized", "authentication"):
		return "Please log in with Google to continue."
	case containsAny(lower, "oauth", "token", "expired"):
		return "Your Google account connection has expired. Please reconnect in Settings."
	case strings.Contains(lower, "calendar"):
		if containsAny(lower, "not found", "404") {
			return "Calendar event not found. It may have been deleted."
		}
		if containsAny(lower, "permission", "403") {
			return "Permission denied. Please reconnect your Google Calendar in Settings."
		}
		return "Unable to access Google Calendar. Please check your connection."
	case containsAny(lower, "gmail", "email"):
		if containsAny(lower, "permission", "403") {
			return "Permission denied. Please reconnect your Gmail in Settings."
		}
		return "Unable to access Gmail. Please check your connection."
	case containsAny(lower, "task not found", "404"):
		return "Task not found. It may have been deleted."
	case strings.Contains(lower, "user not found"):
		return "User account not found. Please log in again."
	case containsAny(lower, "required", "missing"):
		return "Please provide all required information."
	case strings.Contains(lower, "invalid"):
		return "Invalid input. Please check and try again."
	case containsAny(lower, "rate limit", "too many"):
		return "Too many requests. Please wait a moment and try again."
	case containsAny(lower, "500", "internal server"):
		return "Something went wrong on our end. Please try again in a moment."
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return "Request timed out. Please try again."
	}

	// Pass through messages that already read like user text.
	if len(msg) < 100 && !strings.Contains(msg, "Error:") && !strings.Contains(msg, "at ") {
		return msg
	}
	return "Something went wrong. Please try again."
}

var retryablePatterns = []string{
	"network", "connection", "timeout", "deadline exceeded",
	"500", "502", "503", "rate limit",
}

var nonRetryablePatterns = []string{
	"401", "403", "404", "400",
	"invalid", "not found", "permission denied",
}

// Retryable reports whether a manual retry has a chance of succeeding.
// Auth and validation failures are not retryable; transient transport and
// server failures are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
