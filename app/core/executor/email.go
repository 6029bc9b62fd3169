package executor

import (
	"context"
	"fmt"
	"strings"

	"concierge/app/pkg/types"
)

const inboxSummaryLimit = 10

// EmailExecutor performs inbox reads and sends through a provider API.
type EmailExecutor struct {
	tokens  TokenSupplier
	api     EmailAPI
	drafter *Drafter
}

func NewEmailExecutor(tokens TokenSupplier, api EmailAPI, drafter *Drafter) *EmailExecutor {
	return &EmailExecutor{tokens: tokens, api: api, drafter: drafter}
}

func (e *EmailExecutor) Execute(ctx context.Context, intent types.Intent) (types.TaskResult, error) {
	token, err := e.tokens.GetValidToken(ctx, "google")
	if err != nil {
		return types.TaskResult{}, &AuthError{Provider: "email", Err: err}
	}

	switch intent.Action {
	case types.ActionSummarizeInbox:
		return e.summarizeInbox(ctx, token)
	case types.ActionSendEmail:
		return e.sendEmail(ctx, token, intent)
	case types.ActionReplyEmail:
		return e.replyEmail(ctx, token, intent)
	case types.ActionDraftEmail:
		return e.draftEmail(ctx, token, intent)
	default:
		return types.TaskResult{
			Success: false,
			Message: fmt.Sprintf("Email action %q is not supported yet.", intent.Action),
		}, nil
	}
}

func (e *EmailExecutor) summarizeInbox(ctx context.Context, token string) (types.TaskResult, error) {
	messages, err := e.api.ListMessages(ctx, token, inboxSummaryLimit)
	if err != nil {
		return types.TaskResult{}, fmt.Errorf("list messages: %w", err)
	}
	if len(messages) == 0 {
		return types.TaskResult{
			Success: true,
			Message: "Your inbox has no recent messages.",
		}, nil
	}

	var digest strings.Builder
	fmt.Fprintf(&digest, "You have %d recent messages:\n", len(messages))
	for _, msg := range messages {
		fmt.Fprintf(&digest, "- %s: %s\n", msg.From, msg.Subject)
	}
	return types.TaskResult{
		Success: true,
		Message: strings.TrimRight(digest.String(), "\n"),
		Data:    map[string]interface{}{"count": len(messages)},
	}, nil
}

func (e *EmailExecutor) sendEmail(ctx context.Context, token string, intent types.Intent) (types.TaskResult, error) {
	email := intent.Email()
	if email.To == "" {
		return types.TaskResult{
			Success: false,
			Message: "I don't know who to send this email to.",
		}, nil
	}

	subject := email.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	body := email.Body
	if body == "" {
		body = e.drafter.DraftBody(ctx, intent.Description)
	}

	if err := e.api.SendEmail(ctx, token, email.To, subject, body); err != nil {
		return types.TaskResult{}, fmt.Errorf("send email: %w", err)
	}
	return types.TaskResult{
		Success: true,
		Message: fmt.Sprintf("Email sent to %s.", email.To),
		Data:    map[string]interface{}{"to": email.To, "subject": subject},
	}, nil
}

func (e *EmailExecutor) replyEmail(ctx context.Context, token string, intent types.Intent) (types.TaskResult, error) {
	email := intent.Email()
	if email.EmailID == "" {
		return types.TaskResult{
			Success: false,
			Message: "No email was selected to reply to.",
		}, nil
	}

	original, err := e.api.GetMessage(ctx, token, email.EmailID)
	if err != nil {
		return types.TaskResult{}, fmt.Errorf("get message: %w", err)
	}

	// An approved draft in the entities wins over re-drafting.
	draft := types.EmailPreview{
		To:      email.To,
		Subject: email.Subject,
		Body:    email.Body,
	}
	if draft.Body == "" {
		draft = e.drafter.DraftReply(ctx, intent.Description, original)
	}
	if draft.To == "" {
		draft.To = ReplyAddress(original)
	}
	if draft.Subject == "" {
		draft.Subject = ReplySubject(original.Subject)
	}

	if err := e.api.SendEmail(ctx, token, draft.To, draft.Subject, draft.Body); err != nil {
		return types.TaskResult{}, fmt.Errorf("send reply: %w", err)
	}
	return types.TaskResult{
		Success: true,
		Message: fmt.Sprintf("Reply sent to %s.", draft.To),
		Data:    map[string]interface{}{"to": draft.To, "inReplyTo": email.EmailID},
	}, nil
}

func (e *EmailExecutor) draftEmail(ctx context.Context, token string, intent types.Intent) (types.TaskResult, error) {
	email := intent.Email()
	subject := email.Subject
	if subject == "" {
		subject = "Draft"
	}
	body := email.Body
	if body == "" {
		body = e.drafter.DraftBody(ctx, intent.Description)
	}

	draftID, err := e.api.DraftEmail(ctx, token, email.To, subject, body)
	if err != nil {
		return types.TaskResult{}, fmt.Errorf("create draft: %w", err)
	}
	return types.TaskResult{
		Success: true,
		Message: "Draft saved for your review.",
		Data:    map[string]interface{}{"draftId": draftID},
	}, nil
}
