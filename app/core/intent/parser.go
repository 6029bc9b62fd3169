package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"concierge/app/pkg/logger"
	"concierge/app/pkg/types"
)

const parseSystemPrompt = "You are a command parser. Always return valid JSON only, no markdown, no code blocks."

const parsePromptTemplate = `You are an AI assistant that parses user commands into structured intents for a personal assistant app.

Parse this command: %q

Return a JSON object with:
- action: specific action (e.g., "cancel_meeting", "reschedule_meeting", "send_email", "reply_email", "book_restaurant", "summarize_inbox", "block_time")
- domain: "calendar", "email", or "booking"
- entities: object with extracted info (time, date, people, location, meetingTitle, partySize, to, subject, etc.)
- urgency: "low", "medium", or "high"
- isReversible: boolean (can this action be undone easily?)
- description: human-readable description of what will happen
- confidence: 0-1 score of how confident you are in this parsing

Return ONLY valid JSON, no markdown, no explanation.`

// CompletionClient is the language-model contract the parser depends on.
// The concrete client is injected at construction so tests can substitute
// a fake and the process owns exactly one client instance.
type CompletionClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Parser struct {
	client  CompletionClient
	timeout time.Duration
}

// NewParser builds a parser. A nil client is allowed and routes every
// command through the deterministic fallback.
func NewParser(client CompletionClient, timeout time.Duration) *Parser {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Parser{client: client, timeout: timeout}
}

// Parse interprets a sanitized command. It never returns an error: any
// model or transport failure degrades to FallbackParse.
func (p *Parser) Parse(ctx context.Context, command string) types.Intent {
	if p.client == nil {
		return FallbackParse(command)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.client.CompleteJSON(callCtx, parseSystemPrompt, parsePrompt(command))
	if err != nil {
		logger.Warn("intent parse via model failed, using fallback: %v", err)
		return FallbackParse(command)
	}

	parsed, ok := decodeIntent(raw, command)
	if !ok {
		logger.Warn("intent parse returned unusable JSON, using fallback")
		return FallbackParse(command)
	}
	return parsed
}

func parsePrompt(command string) string {
	return fmt.Sprintf(parsePromptTemplate, command)
}

// decodeIntent probes the model output for the intent fields. gjson copes
// with fenced or prefixed output as long as a JSON object is present.
func decodeIntent(raw, command string) (types.Intent, bool) {
	body := extractJSONObject(raw)
	if body == "" || !gjson.Valid(body) {
		return types.Intent{}, false
	}

	doc := gjson.Parse(body)
	action := strings.TrimSpace(doc.Get("action").String())
	if action == "" {
		action = types.ActionUnknown
	}

	domain := types.Domain(strings.TrimSpace(doc.Get("domain").String()))
	if !domain.Valid() {
		domain = types.DomainCalendar
	}

	entities := map[string]interface{}{}
	doc.Get("entities").ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.Number:
			entities[key.String()] = value.Float()
		case gjson.True, gjson.False:
			entities[key.String()] = value.Bool()
		default:
			entities[key.String()] = value.String()
		}
		return true
	})

	urgency := types.Urgency(doc.Get("urgency").String())
	switch urgency {
	case types.UrgencyLow, types.UrgencyMedium, types.UrgencyHigh:
	default:
		urgency = types.UrgencyMedium
	}

	reversible := true
	if v := doc.Get("isReversible"); v.Exists() {
		reversible = v.Bool()
	}

	confidence := fallbackConfidence
	if v := doc.Get("confidence"); v.Exists() {
		confidence = v.Float()
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	description := strings.TrimSpace(doc.Get("description").String())
	if description == "" {
		description = command
	}

	return types.Intent{
		Action:       action,
		Domain:       domain,
		Entities:     entities,
		Urgency:      urgency,
		IsReversible: reversible,
		Description:  description,
		Confidence:   confidence,
	}, true
}

func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
