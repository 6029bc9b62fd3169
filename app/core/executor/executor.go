package executor

import (
	"context"
	"fmt"
	"time"

	"concierge/app/pkg/types"
)

// TokenSupplier hands out a valid provider access token, refreshing it
// when needed. Implementations own the credential storage.
type TokenSupplier interface {
	GetValidToken(ctx context.Context, provider string) (string, error)
}

// CalendarEvent is the provider-neutral event shape executors work with.
type CalendarEvent struct {
	ID        string
	Title     string
	Start     time.Time
	End       time.Time
	Attendees []string
}

type CalendarAPI interface {
	ListEvents(ctx context.Context, token string, from, to time.Time) ([]CalendarEvent, error)
	CreateEvent(ctx context.Context, token string, event CalendarEvent) (CalendarEvent, error)
	UpdateEvent(ctx context.Context, token string, event CalendarEvent) error
	DeleteEvent(ctx context.Context, token string, eventID string) error
}

type EmailAPI interface {
	ListMessages(ctx context.Context, token string, limit int) ([]types.CandidateEmail, error)
	GetMessage(ctx context.Context, token string, messageID string) (types.CandidateEmail, error)
	SendEmail(ctx context.Context, token string, to, subject, body string) error
	DraftEmail(ctx context.Context, token string, to, subject, body string) (string, error)
}

// AuthError marks failures that need the user to reconnect an account
// rather than a retry.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// DomainExecutor performs the side effects for one domain's actions.
type DomainExecutor interface {
	Execute(ctx context.Context, intent types.Intent) (types.TaskResult, error)
}

// Registry routes an intent to its domain executor.
type Registry struct {
	executors map[types.Domain]DomainExecutor
}

func NewRegistry(calendar, email, booking DomainExecutor) *Registry {
	return &Registry{executors: map[types.Domain]DomainExecutor{
		types.DomainCalendar: calendar,
		types.DomainEmail:    email,
		types.DomainBooking:  booking,
	}}
}

func (r *Registry) Execute(ctx context.Context, intent types.Intent) (types.TaskResult, error) {
	exec, ok := r.executors[intent.Domain]
	if !ok || exec == nil {
		return types.TaskResult{
			Success: false,
			Message: fmt.Sprintf("No executor available for domain %q.", intent.Domain),
		}, nil
	}
	return exec.Execute(ctx, intent)
}
