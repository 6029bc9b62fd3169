package executor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"concierge/app/pkg/types"
)

const (
	// eventMatchWindow is how far a stored event may sit from the
	// requested clock time and still count as the meeting meant.
	eventMatchWindow = 30 * time.Minute

	defaultMeetingMinutes = 30
	defaultBlockMinutes   = 60
)

// CalendarExecutor performs calendar mutations through a provider API.
type CalendarExecutor struct {
	tokens TokenSupplier
	api    CalendarAPI
	now    func() time.Time
}

func NewCalendarExecutor(tokens TokenSupplier, api CalendarAPI) *CalendarExecutor {
	return &CalendarExecutor{tokens: tokens, api: api, now: time.Now}
}

func (e *CalendarExecutor) Execute(ctx context.Context, intent types.Intent) (types.TaskResult, error) {
	token, err := e.tokens.GetValidToken(ctx, "google")
	if err != nil {
		return types.TaskResult{}, &AuthError{Provider: "calendar", Err: err}
	}

	switch intent.Action {
	case types.ActionCancelMeeting:
		return e.cancelMeeting(ctx, token, intent)
	case types.ActionRescheduleMeeting:
		return e.rescheduleMeeting(ctx, token, intent)
	case types.ActionScheduleMeeting:
		return e.createEvent(ctx, token, intent, "New Meeting", defaultMeetingMinutes)
	case types.ActionBlockTime:
		return e.createEvent(ctx, token, intent, "Focus Time", defaultBlockMinutes)
	case types.ActionSetReminder:
		return e.createEvent(ctx, token, intent, "Reminder", 15)
	default:
		return types.TaskResult{
			Success: false,
			Message: fmt.Sprintf("Calendar action %q is not supported yet.", intent.Action),
		}, nil
	}
}

func (e *CalendarExecutor) cancelMeeting(ctx context.Context, token string, intent types.Intent) (types.TaskResult, error) {
	event, err := e.findEvent(ctx, token, intent.Calendar())
	if err != nil {
		return types.TaskResult{}, err
	}
	if event == nil {
		return types.TaskResult{
			Success: false,
			Message: "No matching meeting found on your calendar.",
		}, nil
	}

	if err := e.api.DeleteEvent(ctx, token, event.ID); err != nil {
		return types.TaskResult{}, fmt.Errorf("delete event: %w", err)
	}
	return types.TaskResult{
		Success: true,
		Message: fmt.Sprintf("Cancelled %q at %s.", event.Title, event.Start.Format("3:04 PM")),
		Data:    map[string]interface{}{"eventId": event.ID},
	}, nil
}

func (e *CalendarExecutor) rescheduleMeeting(ctx context.Context, token string, intent types.Intent) (types.TaskResult, error) {
	cal := intent.Calendar()
	newClock := cal.NewTime
	if newClock == "" {
		newClock = cal.Time
	}
	newStart, ok := e.clockOn(e.now(), newClock)
	if !ok {
		return types.TaskResult{
			Success: false,
			Message: "I couldn't tell what time to move the meeting to.",
		}, nil
	}

	event, err := e.findEvent(ctx, token, cal)
	if err != nil {
		return types.TaskResult{}, err
	}
	if event == nil {
		return types.TaskResult{
			Success: false,
			Message: "No matching meeting found on your calendar.",
		}, nil
	}

	duration := event.End.Sub(event.Start)
	if duration <= 0 {
		duration = defaultMeetingMinutes * time.Minute
	}
	moved := *event
	moved.Start = newStart
	moved.End = newStart.Add(duration)
	if err := e.api.UpdateEvent(ctx, token, moved); err != nil {
		return types.TaskResult{}, fmt.Errorf("update event: %w", err)
	}
	return types.TaskResult{
		Success: true,
		Message: fmt.Sprintf("Moved %q to %s.", event.Title, newStart.Format("3:04 PM")),
		Data:    map[string]interface{}{"eventId": event.ID},
	}, nil
}

func (e *CalendarExecutor) createEvent(ctx context.Context, token string, intent types.Intent, defaultTitle string, defaultMinutes int) (types.TaskResult, error) {
	cal := intent.Calendar()

	start, ok := e.clockOn(e.now(), cal.Time)
	if !ok {
		// No usable clock time: start at the top of the next hour.
		start = e.now().Truncate(time.Hour).Add(time.Hour)
	}

	title := cal.Title
	if title == "" {
		title = defaultTitle
	}
	minutes := cal.DurationMin
	if minutes <= 0 {
		minutes = defaultMinutes
	}

	created, err := e.api.CreateEvent(ctx, token, CalendarEvent{
		Title: title,
		Start: start,
		End:   start.Add(time.Duration(minutes) * time.Minute),
	})
	if err != nil {
		return types.TaskResult{}, fmt.Errorf("create event: %w", err)
	}
	return types.TaskResult{
		Success: true,
		Message: fmt.Sprintf("Created %q at %s.", title, start.Format("3:04 PM")),
		Data:    map[string]interface{}{"eventId": created.ID},
	}, nil
}

// findEvent looks through today's events for one close to the requested
// clock time, or the next upcoming event when no time was given.
func (e *CalendarExecutor) findEvent(ctx context.Context, token string, cal types.CalendarEntities) (*CalendarEvent, error) {
	now := e.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	events, err := e.api.ListEvents(ctx, token, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	target, ok := e.clockOn(now, cal.Time)
	if !ok {
		for i := range events {
			if events[i].Start.After(now) {
				return &events[i], nil
			}
		}
		return nil, nil
	}

	for i := range events {
		diff := events[i].Start.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= eventMatchWindow {
			return &events[i], nil
		}
	}
	return nil, nil
}

var clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)

// clockOn resolves a clock-time string like "3pm" or "15:30" onto the
// given day.
func (e *CalendarExecutor) clockOn(day time.Time, clock string) (time.Time, bool) {
	m := clockPattern.FindStringSubmatch(clock)
	if m == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), true
}
