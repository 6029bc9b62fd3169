package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"concierge/app/core/executor"
	"concierge/app/pkg/types"
)

// Local is an in-memory calendar and mailbox used when no real provider
// account is connected. It seeds a small believable dataset so the whole
// command flow can be exercised end to end.
type Local struct {
	mu       sync.Mutex
	events   []executor.CalendarEvent
	messages []types.CandidateEmail
	sent     []types.EmailPreview
	drafts   map[string]types.EmailPreview
}

func NewLocal(now time.Time) *Local {
	day := func(hour, minute int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	}
	return &Local{
		events: []executor.CalendarEvent{
			{ID: "ev-standup", Title: "Team Standup", Start: day(9, 30), End: day(9, 45)},
			{ID: "ev-review", Title: "Design Review", Start: day(15, 0), End: day(16, 0), Attendees: []string{"alex@vendor.example"}},
		},
		messages: []types.CandidateEmail{
			{ID: "msg-1", From: "Sarah Chen", FromEmail: "sarah.chen@corp.example", Subject: "Invoice for March", Snippet: "Attached is the invoice we discussed...", Date: now.Add(-2 * time.Hour).Format(time.RFC3339)},
			{ID: "msg-2", From: "Alex Rivera", FromEmail: "alex@vendor.example", Subject: "Contract draft v2", Snippet: "Please take a look at the updated terms...", Date: now.Add(-5 * time.Hour).Format(time.RFC3339)},
			{ID: "msg-3", From: "City Gym", FromEmail: "hello@citygym.example", Subject: "Your membership renews soon", Snippet: "Your plan renews on the 1st...", Date: now.Add(-26 * time.Hour).Format(time.RFC3339)},
		},
		drafts: map[string]types.EmailPreview{},
	}
}

// GetValidToken satisfies executor.TokenSupplier. The local provider
// needs no credentials.
func (l *Local) GetValidToken(ctx context.Context, providerName string) (string, error) {
	return "local", nil
}

func (l *Local) ListEvents(ctx context.Context, token string, from, to time.Time) ([]executor.CalendarEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []executor.CalendarEvent
	for _, event := range l.events {
		if event.Start.Before(from) || !event.Start.Before(to) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (l *Local) CreateEvent(ctx context.Context, token string, event executor.CalendarEvent) (executor.CalendarEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	event.ID = "ev-" + uuid.NewString()[:8]
	l.events = append(l.events, event)
	return event, nil
}

func (l *Local) UpdateEvent(ctx context.Context, token string, event executor.CalendarEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.events {
		if l.events[i].ID == event.ID {
			l.events[i] = event
			return nil
		}
	}
	return fmt.Errorf("event %s not found", event.ID)
}

func (l *Local) DeleteEvent(ctx context.Context, token string, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.events {
		if l.events[i].ID == eventID {
			l.events = append(l.events[:i], l.events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("event %s not found", eventID)
}

func (l *Local) ListMessages(ctx context.Context, token string, limit int) ([]types.CandidateEmail, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.messages) {
		limit = len(l.messages)
	}
	out := make([]types.CandidateEmail, limit)
	copy(out, l.messages[:limit])
	return out, nil
}

func (l *Local) GetMessage(ctx context.Context, token string, messageID string) (types.CandidateEmail, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return types.CandidateEmail{}, fmt.Errorf("message %s not found", messageID)
}

func (l *Local) SendEmail(ctx context.Context, token string, to, subject, body string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, types.EmailPreview{To: to, Subject: subject, Body: body})
	return nil
}

func (l *Local) DraftEmail(ctx context.Context, token string, to, subject, body string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := "draft-" + uuid.NewString()[:8]
	l.drafts[id] = types.EmailPreview{To: to, Subject: subject, Body: body}
	return id, nil
}

// SentMail returns a copy of everything sent through the local provider.
func (l *Local) SentMail() []types.EmailPreview {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.EmailPreview, len(l.sent))
	copy(out, l.sent)
	return out
}

// Inbox adapts a token supplier and mail API into the reply-resolution
// reader the task service needs.
type Inbox struct {
	tokens executor.TokenSupplier
	api    executor.EmailAPI
}

func NewInbox(tokens executor.TokenSupplier, api executor.EmailAPI) *Inbox {
	return &Inbox{tokens: tokens, api: api}
}

func (i *Inbox) ListRecent(ctx context.Context, limit int) ([]types.CandidateEmail, error) {
	token, err := i.tokens.GetValidToken(ctx, "google")
	if err != nil {
		return nil, &executor.AuthError{Provider: "email", Err: err}
	}
	return i.api.ListMessages(ctx, token, limit)
}
