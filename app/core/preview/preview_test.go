package preview

import (
	"strings"
	"testing"

	"concierge/app/pkg/types"
)

func intentFor(action string, domain types.Domain, entities map[string]interface{}) types.Intent {
	if entities == nil {
		entities = map[string]interface{}{}
	}
	return types.Intent{
		Action:       action,
		Domain:       domain,
		Entities:     entities,
		Urgency:      types.UrgencyLow,
		IsReversible: true,
		Description:  "test intent",
		Confidence:   0.9,
	}
}

func TestGenerateCancelMeeting(t *testing.T) {
	intent := intentFor(types.ActionCancelMeeting, types.DomainCalendar, map[string]interface{}{"time": "3pm"})
	got := Generate(intent, "Cancel my 3pm meeting")

	if len(got.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(got.Changes))
	}
	change := got.Changes[0]
	if change.Type != "delete" || change.Entity != "Meeting" {
		t.Fatalf("unexpected change: %+v", change)
	}
	if !strings.Contains(change.Detail, "at 3pm") {
		t.Fatalf("detail missing time: %s", change.Detail)
	}
	if len(got.Warnings) == 0 || !strings.Contains(got.Warnings[0], "cannot be undone") {
		t.Fatalf("cancel must warn: %v", got.Warnings)
	}
	if got.Description != "Cancel my 3pm meeting" {
		t.Fatalf("description = %q", got.Description)
	}
}

func TestGenerateBookingMentionsPartyAndTime(t *testing.T) {
	intent := intentFor(types.ActionBookRestaurant, types.DomainBooking, map[string]interface{}{
		"partySize": 4,
		"time":      "8pm",
	})
	got := Generate(intent, "Book dinner for 4 at 8pm")

	if len(got.Changes) != 1 || got.Changes[0].Type != "create" {
		t.Fatalf("expected single create change, got %+v", got.Changes)
	}
	detail := got.Changes[0].Detail
	if !strings.Contains(detail, "4 people") || !strings.Contains(detail, "8pm") {
		t.Fatalf("detail = %q", detail)
	}
	if len(got.Warnings) == 0 {
		t.Fatal("booking should carry a cancellation-policy warning")
	}
}

func TestGenerateEmailWithRecipientAndSubject(t *testing.T) {
	intent := intentFor(types.ActionSendEmail, types.DomainEmail, map[string]interface{}{
		"to":      "alex@example.com",
		"subject": "Contract",
		"body":    "Looks good.",
	})
	got := Generate(intent, "email alex about the contract")

	if got.Changes[0].Type != "send" {
		t.Fatalf("change type = %s", got.Changes[0].Type)
	}
	if got.EmailPreview == nil {
		t.Fatal("expected email preview")
	}
	if got.EmailPreview.To != "alex@example.com" || got.EmailPreview.Subject != "Contract" {
		t.Fatalf("email preview = %+v", got.EmailPreview)
	}
}

func TestGenerateEmailWithoutSubjectHasNoPreview(t *testing.T) {
	intent := intentFor(types.ActionReplyEmail, types.DomainEmail, map[string]interface{}{"to": "alex@example.com"})
	got := Generate(intent, "reply to alex")
	if got.EmailPreview != nil {
		t.Fatal("email preview requires both recipient and subject")
	}
	if len(got.Warnings) == 0 {
		t.Fatal("send actions must warn about irreversibility")
	}
}

func TestGenerateNoWarningsForSafeActions(t *testing.T) {
	intent := intentFor(types.ActionScheduleMeeting, types.DomainCalendar, map[string]interface{}{"date": "tomorrow"})
	got := Generate(intent, "schedule a sync tomorrow")
	if got.Warnings != nil {
		t.Fatalf("expected nil warnings, got %v", got.Warnings)
	}
	if !strings.Contains(got.Changes[0].Detail, "on tomorrow") {
		t.Fatalf("detail = %q", got.Changes[0].Detail)
	}
}

func TestGenerateTotalOverUnknownActions(t *testing.T) {
	for _, action := range []string{"", "unknown", "frobnicate_widget", "search_flights", "book_service"} {
		intent := intentFor(action, types.DomainBooking, nil)
		got := Generate(intent, "do something")
		if len(got.Changes) == 0 {
			t.Fatalf("action %q produced no changes", action)
		}
	}
	got := Generate(intentFor("mystery", types.DomainEmail, nil), "cmd")
	if got.Changes[0].Entity != "Email" {
		t.Fatalf("generic entity = %q, want capitalized domain", got.Changes[0].Entity)
	}
	if got.Changes[0].Detail != "test intent" {
		t.Fatalf("generic detail should echo description, got %q", got.Changes[0].Detail)
	}
}
