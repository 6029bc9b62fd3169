package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"concierge/app/core/orchestrator/task"
	"concierge/app/pkg/types"
)

// CLIChannel is a local REPL over the task service. Commands are free
// text; a few verbs drive the lifecycle:
//
//	approve <task-id> [email-id]
//	reject <task-id>
//	retry <task-id>
//	tasks | activity | exit
type CLIChannel struct {
	userID  string
	service *task.Service
}

func NewCLIChannel(userID string, service *task.Service) *CLIChannel {
	if strings.TrimSpace(userID) == "" {
		userID = "local_user"
	}
	return &CLIChannel{userID: userID, service: service}
}

func (c *CLIChannel) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(">> Concierge CLI started. Type a command, or 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "exit" || text == "quit" {
				fmt.Println("Exiting CLI loop...")
				return nil
			}
			c.dispatch(ctx, text)
		}
	}
}

func (c *CLIChannel) dispatch(ctx context.Context, text string) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "approve":
		if len(fields) < 2 {
			fmt.Println("usage: approve <task-id> [email-id]")
			return
		}
		selected := ""
		if len(fields) > 2 {
			selected = fields[2]
		}
		t, err := c.service.Approve(ctx, fields[1], selected)
		c.report(t, err)
	case "reject":
		if len(fields) < 2 {
			fmt.Println("usage: reject <task-id>")
			return
		}
		t, err := c.service.Reject(ctx, fields[1])
		c.report(t, err)
	case "retry":
		if len(fields) < 2 {
			fmt.Println("usage: retry <task-id>")
			return
		}
		t, err := c.service.Retry(ctx, fields[1])
		c.report(t, err)
	case "tasks":
		c.printTasks(ctx)
	case "activity":
		c.printActivity(ctx)
	default:
		c.createTask(ctx, text)
	}
}

func (c *CLIChannel) createTask(ctx context.Context, text string) {
	t, err := c.service.CreateTask(ctx, c.userID, text)
	if err != nil {
		fmt.Printf("[Concierge]: %v\n", err)
		return
	}

	fmt.Printf("[Concierge][%s] %s (%s)\n", t.ID, t.ParsedIntent.Description, t.Status)
	if t.Preview == nil {
		return
	}
	for _, change := range t.Preview.Changes {
		fmt.Printf("  %s %s: %s\n", change.Type, change.Entity, change.Detail)
	}
	for _, warning := range t.Preview.Warnings {
		fmt.Printf("  ! %s\n", warning)
	}
	for _, reason := range t.Preview.ApprovalReasons {
		fmt.Printf("  ? %s\n", reason)
	}
	if t.Preview.EmailPreview != nil {
		fmt.Printf("  draft to %s: %s\n", t.Preview.EmailPreview.To, t.Preview.EmailPreview.Subject)
	}
	if len(t.Preview.RecentEmails) > 0 {
		fmt.Println("  which email? approve with: approve", t.ID, "<email-id>")
		for _, candidate := range t.Preview.RecentEmails {
			fmt.Printf("    %s  %s - %s\n", candidate.ID, candidate.From, candidate.Subject)
		}
	}
	if t.Status == types.StatusPendingApproval && len(t.Preview.RecentEmails) == 0 {
		fmt.Printf("  approve with: approve %s\n", t.ID)
	}
}

func (c *CLIChannel) report(t types.Task, err error) {
	if err != nil {
		fmt.Printf("[Concierge]: %v\n", err)
		return
	}
	fmt.Printf("[Concierge][%s] now %s\n", t.ID, t.Status)
}

func (c *CLIChannel) printTasks(ctx context.Context) {
	items, err := c.service.ListTasks(ctx, c.userID, 20)
	if err != nil {
		fmt.Printf("[Concierge]: %v\n", err)
		return
	}
	for _, t := range items {
		fmt.Printf("%s  %-17s %s\n", t.ID, t.Status, t.RawCommand)
	}
}

func (c *CLIChannel) printActivity(ctx context.Context) {
	items, err := c.service.ListActivity(ctx, c.userID, 20)
	if err != nil {
		fmt.Printf("[Concierge]: %v\n", err)
		return
	}
	for _, entry := range items {
		fmt.Printf("%s  [%s/%s] %s\n", entry.Timestamp.Format("15:04:05"), entry.Domain, entry.Status, entry.Description)
	}
}
