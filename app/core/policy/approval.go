package policy

import (
	"fmt"

	"concierge/app/pkg/types"
)

// ConfidenceThreshold is the parse confidence below which execution always
// goes through the approval gate.
const ConfidenceThreshold = 0.7

// RequiresApproval decides whether a human must confirm the intent before
// execution. Any single risk signal forces approval; there is no weighing.
func RequiresApproval(intent types.Intent) bool {
	if intent.Action == types.ActionCancelMeeting {
		return true
	}
	if intent.Action == types.ActionSendEmail || intent.Action == types.ActionReplyEmail {
		return true
	}
	if intent.Domain == types.DomainBooking {
		return true
	}
	if !intent.IsReversible {
		return true
	}
	if intent.Confidence < ConfidenceThreshold {
		return true
	}
	return false
}

// ApprovalReasons enumerates the risk signals that fired, as user-facing
// strings. It never returns an empty slice.
func ApprovalReasons(intent types.Intent) []string {
	var reasons []string
	if intent.Action == types.ActionCancelMeeting {
		reasons = append(reasons, "Cancelling a meeting notifies all attendees and cannot be undone")
	}
	if intent.Action == types.ActionSendEmail || intent.Action == types.ActionReplyEmail {
		reasons = append(reasons, "External notification: an email will be sent on your behalf")
	}
	if intent.Domain == types.DomainBooking {
		reasons = append(reasons, "Bookings may involve payment or a cancellation policy")
	}
	if !intent.IsReversible {
		reasons = append(reasons, "Irreversible change")
	}
	if intent.Confidence < ConfidenceThreshold {
		reasons = append(reasons, fmt.Sprintf("Low confidence (%d%%) in how the command was understood", pct(intent.Confidence)))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "This action requires your confirmation before it runs")
	}
	return reasons
}

// SafetyExplanation explains, after completion, why the action was judged
// low-risk. Purely informational; never empty.
func SafetyExplanation(intent types.Intent, result types.TaskResult) []string {
	var reasons []string

	if intent.IsReversible {
		reasons = append(reasons, "This change can be undone if needed")
	}
	if intent.Domain == types.DomainCalendar && intent.Action != types.ActionCancelMeeting {
		reasons = append(reasons, "Only your own calendar was modified; no one outside was contacted")
	}
	switch {
	case intent.Confidence >= 0.8:
		reasons = append(reasons, fmt.Sprintf("High confidence (%d%%) in command interpretation", pct(intent.Confidence)))
	case intent.Confidence >= ConfidenceThreshold:
		reasons = append(reasons, fmt.Sprintf("Moderate confidence (%d%%) in command interpretation", pct(intent.Confidence)))
	}
	if intent.Domain != types.DomainBooking {
		reasons = append(reasons, "No payment was involved")
	}
	switch intent.Action {
	case types.ActionScheduleMeeting, types.ActionBlockTime, types.ActionSetReminder, types.ActionDraftEmail:
		reasons = append(reasons, "Created new items only; nothing existing was changed or deleted")
	case types.ActionSummarizeInbox, types.ActionFlagUrgent:
		reasons = append(reasons, "Read-only: your inbox was inspected but not modified")
	}
	if result.Success {
		reasons = append(reasons, "Executed successfully")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Action completed within normal safety limits")
	}
	return reasons
}

func pct(confidence float64) int {
	return int(confidence * 100)
}
