package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"concierge/app/pkg/logger"
	"concierge/app/pkg/types"
)

// Completer produces a free-text completion for drafting.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const draftSystemPrompt = "You are an assistant that writes short, professional emails on the user's behalf. " +
	"Write only the email body. No subject line, no commentary."

// Drafter composes email bodies. When the model is unavailable it falls
// back to a plain deterministic body so sending never blocks on the LLM.
type Drafter struct {
	client Completer
}

func NewDrafter(client Completer) *Drafter {
	return &Drafter{client: client}
}

// DraftReply composes a reply to an existing message following the user's
// instruction.
func (d *Drafter) DraftReply(ctx context.Context, instruction string, original types.CandidateEmail) types.EmailPreview {
	prompt := fmt.Sprintf(
		"Write a reply to this email.\n\nFrom: %s\nSubject: %s\nPreview: %s\n\nThe user asked: %q",
		original.From, original.Subject, original.Snippet, instruction)

	return types.EmailPreview{
		To:      ReplyAddress(original),
		Subject: ReplySubject(original.Subject),
		Body:    d.compose(ctx, prompt, instruction),
	}
}

// DraftBody composes a fresh email body from the user's instruction.
func (d *Drafter) DraftBody(ctx context.Context, instruction string) string {
	prompt := fmt.Sprintf("Write an email based on this request: %q", instruction)
	return d.compose(ctx, prompt, instruction)
}

func (d *Drafter) compose(ctx context.Context, prompt, instruction string) string {
	if d.client != nil {
		body, err := d.client.Complete(ctx, draftSystemPrompt, prompt)
		if err == nil && strings.TrimSpace(body) != "" {
			return strings.TrimSpace(body)
		}
		if err != nil {
			logger.Warn("draft completion failed, using fallback body: %v", err)
		}
	}
	return fallbackBody(instruction)
}

func fallbackBody(instruction string) string {
	return fmt.Sprintf("Thank you for your email.\n\n%s\n\nBest regards", strings.TrimSpace(instruction))
}

// ReplySubject prefixes the subject for a reply without stacking prefixes.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if trimmed == "" {
		return "Re: your email"
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

var angleAddrPattern = regexp.MustCompile(`<([^>]+@[^>]+)>`)

// ReplyAddress picks the bare address to reply to, preferring the parsed
// from-address and falling back to one embedded in the display name.
func ReplyAddress(original types.CandidateEmail) string {
	if original.FromEmail != "" {
		return original.FromEmail
	}
	if m := angleAddrPattern.FindStringSubmatch(original.From); m != nil {
		return m[1]
	}
	return strings.TrimSpace(original.From)
}
