package intent

import (
	"regexp"
	"strconv"
	"strings"

	"concierge/app/pkg/types"
)

// Deterministic keyword parser. It backs the LLM path: whatever the model
// does, Parse always returns a fully populated intent.

const fallbackConfidence = 0.5

var (
	calendarKeywords = []string{"meeting", "schedule", "reschedule", "cancel", "block", "calendar", "appointment", "call", "sync"}
	emailKeywords    = []string{"email", "inbox", "reply", "draft", "send", "mail", "message", "urgent"}
	bookingKeywords  = []string{"book", "reserve", "restaurant", "dinner", "lunch", "flight", "hotel", "travel", "reservation"}

	cancelKeywords = []string{"cancel", "delete", "remove"}
	sendKeywords   = []string{"send", "reply", "forward"}
	moneyKeywords  = []string{"book", "reserve", "purchase", "buy", "pay"}

	timePattern      = regexp.MustCompile(`(?i)(\d{1,2}(?::\d{2})?\s*(?:am|pm))`)
	datePattern      = regexp.MustCompile(`(?i)\b(today|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	partySizePattern = regexp.MustCompile(`(?i)(\d+)\s*(?:people|guests|persons)`)
	partyForPattern  = regexp.MustCompile(`(?i)\bfor\s+(\d+)\b`)
)

// FallbackParse never fails: any string maps to a complete intent.
func FallbackParse(raw string) types.Intent {
	lower := strings.ToLower(raw)

	domain := detectDomain(lower)
	action := detectAction(lower, domain)
	entities := extractEntities(raw, lower, domain)

	return types.Intent{
		Action:       action,
		Domain:       domain,
		Entities:     entities,
		Urgency:      detectUrgency(lower),
		IsReversible: checkReversibility(lower, domain),
		Description:  describe(action, domain, entities),
		Confidence:   fallbackConfidence,
	}
}

func detectDomain(lower string) types.Domain {
	calendarScore := keywordScore(lower, calendarKeywords)
	emailScore := keywordScore(lower, emailKeywords)
	bookingScore := keywordScore(lower, bookingKeywords)

	// Ties favor calendar; booking and email win only on strict dominance.
	if bookingScore > calendarScore && bookingScore > emailScore {
		return types.DomainBooking
	}
	if emailScore > calendarScore {
		return types.DomainEmail
	}
	return types.DomainCalendar
}

func keywordScore(lower string, keywords []string) int {
	score := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			score++
		}
	}
	return score
}

func detectAction(lower string, domain types.Domain) string {
	switch domain {
	case types.DomainCalendar:
		switch {
		case strings.Contains(lower, "cancel"):
			return types.ActionCancelMeeting
		case strings.Contains(lower, "reschedule") || strings.Contains(lower, "move"):
			return types.ActionRescheduleMeeting
		case strings.Contains(lower, "block") || strings.Contains(lower, "focus"):
			return types.ActionBlockTime
		case strings.Contains(lower, "remind"):
			return types.ActionSetReminder
		}
		return types.ActionScheduleMeeting
	case types.DomainEmail:
		switch {
		case strings.Contains(lower, "summarize") || strings.Contains(lower, "summary"):
			return types.ActionSummarizeInbox
		case strings.Contains(lower, "draft"):
			return types.ActionDraftEmail
		case strings.Contains(lower, "reply"):
			return types.ActionReplyEmail
		case strings.Contains(lower, "send"):
			return types.ActionSendEmail
		case strings.Contains(lower, "flag") || strings.Contains(lower, "urgent"):
			return types.ActionFlagUrgent
		}
		return types.ActionSummarizeInbox
	case types.DomainBooking:
		switch {
		case strings.Contains(lower, "restaurant") || strings.Contains(lower, "dinner") || strings.Contains(lower, "lunch"):
			return types.ActionBookRestaurant
		case strings.Contains(lower, "flight"):
			return types.ActionSearchFlights
		case strings.Contains(lower, "hotel"):
			return types.ActionSearchHotels
		}
		return types.ActionBookService
	}
	return types.ActionUnknown
}

func detectUrgency(lower string) types.Urgency {
	if containsAnyOf(lower, "urgent", "asap", "now", "immediately") {
		return types.UrgencyHigh
	}
	if containsAnyOf(lower, "today", "soon") {
		return types.UrgencyMedium
	}
	return types.UrgencyLow
}

func checkReversibility(lower string, domain types.Domain) bool {
	if containsAnyOf(lower, cancelKeywords...) {
		return false
	}
	if containsAnyOf(lower, sendKeywords...) {
		return false
	}
	if containsAnyOf(lower, moneyKeywords...) {
		return false
	}
	return domain != types.DomainBooking
}

func extractEntities(raw, lower string, domain types.Domain) map[string]interface{} {
	entities := map[string]interface{}{}

	if m := timePattern.FindStringSubmatch(raw); m != nil {
		entities["time"] = strings.TrimSpace(m[1])
	}
	if m := datePattern.FindStringSubmatch(lower); m != nil {
		entities["date"] = m[1]
	}
	if domain == types.DomainBooking {
		// "4 people" or the bare "for 4" form.
		m := partySizePattern.FindStringSubmatch(raw)
		if m == nil {
			m = partyForPattern.FindStringSubmatch(raw)
		}
		if m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				entities["partySize"] = n
			}
		}
	}
	return entities
}

func describe(action string, domain types.Domain, entities map[string]interface{}) string {
	timeStr := ""
	if t, ok := entities["time"].(string); ok && t != "" {
		timeStr = " at " + t
	}
	dateStr := ""
	if d, ok := entities["date"].(string); ok && d != "" {
		dateStr = " " + d
	}

	switch action {
	case types.ActionCancelMeeting:
		return "Cancel meeting" + timeStr + dateStr
	case types.ActionRescheduleMeeting:
		return "Reschedule meeting" + timeStr + dateStr
	case types.ActionScheduleMeeting:
		return "Schedule new meeting" + timeStr + dateStr
	case types.ActionBlockTime:
		return "Block focus time" + timeStr + dateStr
	case types.ActionSetReminder:
		return "Set reminder" + timeStr + dateStr
	case types.ActionSummarizeInbox:
		return "Summarize inbox and flag urgent emails"
	case types.ActionDraftEmail:
		return "Draft reply to email"
	case types.ActionSendEmail:
		return "Send email"
	case types.ActionReplyEmail:
		return "Reply to email"
	case types.ActionFlagUrgent:
		return "Flag urgent emails"
	case types.ActionBookRestaurant:
		return "Book restaurant" + timeStr + dateStr
	case types.ActionSearchFlights:
		return "Search for flights"
	case types.ActionSearchHotels:
		return "Search for hotels"
	default:
		return "Process " + string(domain) + " task"
	}
}

func containsAnyOf(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
