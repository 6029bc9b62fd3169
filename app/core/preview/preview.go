package preview

import (
	"fmt"
	"strings"

	"concierge/app/pkg/types"
)

// Generate renders an intent into the human-readable preview shown at the
// approval gate. Total over the open action set: unknown actions fall
// through to a generic create entry.
func Generate(intent types.Intent, rawCommand string) types.TaskPreview {
	var changes []types.PreviewChange
	var warnings []string

	switch intent.Action {
	case types.ActionCancelMeeting:
		cal := intent.Calendar()
		changes = append(changes, types.PreviewChange{
			Type:   "delete",
			Entity: "Meeting",
			Detail: fmt.Sprintf("Cancel %s meeting%s", orDefault(cal.Date, "scheduled"), atTime(cal.Time)),
		})
		warnings = append(warnings, "This action cannot be undone. Attendees will be notified.")

	case types.ActionRescheduleMeeting:
		cal := intent.Calendar()
		changes = append(changes, types.PreviewChange{
			Type:   "update",
			Entity: "Meeting",
			Detail: fmt.Sprintf("Move meeting to %s%s", orDefault(cal.Date, "new date"), atTime(cal.Time)),
		})
		warnings = append(warnings, "Attendees will receive an updated invitation.")

	case types.ActionScheduleMeeting:
		cal := intent.Calendar()
		changes = append(changes, types.PreviewChange{
			Type:   "create",
			Entity: "Meeting",
			Detail: "Create meeting" + onDate(cal.Date) + atTime(cal.Time),
		})

	case types.ActionBlockTime:
		cal := intent.Calendar()
		changes = append(changes, types.PreviewChange{
			Type:   "create",
			Entity: "Calendar Block",
			Detail: "Block focus time" + onDate(cal.Date) + atTime(cal.Time),
		})

	case types.ActionSetReminder:
		cal := intent.Calendar()
		changes = append(changes, types.PreviewChange{
			Type:   "create",
			Entity: "Reminder",
			Detail: "Set reminder" + onDate(cal.Date) + atTime(cal.Time),
		})

	case types.ActionSendEmail, types.ActionReplyEmail:
		return emailPreview(intent, rawCommand)

	case types.ActionDraftEmail:
		changes = append(changes, types.PreviewChange{
			Type:   "create",
			Entity: "Email Draft",
			Detail: "Create an email draft for your review",
		})

	case types.ActionBookRestaurant:
		booking := intent.Booking()
		detail := "Book table"
		if booking.PartySize > 0 {
			detail += fmt.Sprintf(" for %d people", booking.PartySize)
		}
		detail += atTime(booking.Time)
		changes = append(changes, types.PreviewChange{Type: "create", Entity: "Reservation", Detail: detail})
		warnings = append(warnings, "Cancellation policy may apply.")

	default:
		changes = append(changes, types.PreviewChange{
			Type:   "create",
			Entity: titleDomain(intent.Domain),
			Detail: intent.Description,
		})
	}

	return types.TaskPreview{
		Title:       intent.Description,
		Description: rawCommand,
		Changes:     changes,
		Warnings:    warnings,
	}
}

// emailPreview is the one action family with a distinct shape: when both
// recipient and subject are already resolvable, the drafted message is
// attached for review.
func emailPreview(intent types.Intent, rawCommand string) types.TaskPreview {
	changes := []types.PreviewChange{{
		Type:   "send",
		Entity: "Email",
		Detail: "Send email to recipient",
	}}
	warnings := []string{"This action cannot be undone once sent."}

	out := types.TaskPreview{
		Title:       intent.Description,
		Description: rawCommand,
		Changes:     changes,
		Warnings:    warnings,
	}

	email := intent.Email()
	if email.To != "" && email.Subject != "" {
		out.Changes[0].Detail = "Send email to " + email.To
		out.EmailPreview = &types.EmailPreview{
			To:      email.To,
			Subject: email.Subject,
			Body:    email.Body,
		}
	}
	return out
}

func atTime(t string) string {
	if t == "" {
		return ""
	}
	return " at " + t
}

func onDate(d string) string {
	if d == "" {
		return ""
	}
	return " on " + d
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func titleDomain(d types.Domain) string {
	s := string(d)
	if s == "" {
		return "Task"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
