package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"concierge/app/core/command"
	"concierge/app/core/dispatch"
	"concierge/app/core/policy"
	"concierge/app/core/preview"
	"concierge/app/core/resolver"
	"concierge/app/pkg/errmsg"
	"concierge/app/pkg/logger"
	"concierge/app/pkg/types"
)

type IntentParser interface {
	Parse(ctx context.Context, command string) types.Intent
}

// InboxReader lists recent inbox items for reply-target resolution.
type InboxReader interface {
	ListRecent(ctx context.Context, limit int) ([]types.CandidateEmail, error)
}

// ReplyDrafter composes the reply shown at the approval gate.
type ReplyDrafter interface {
	DraftReply(ctx context.Context, instruction string, original types.CandidateEmail) types.EmailPreview
}

// Executor performs the task's side effects once it is cleared to run.
type Executor interface {
	Execute(ctx context.Context, intent types.Intent) (types.TaskResult, error)
}

type Options struct {
	ExecuteTimeout   time.Duration
	RecentEmailLimit int
}

// Service owns the task lifecycle: parse, gate, execute, audit. All
// status writes go through the store's conditional updates.
type Service struct {
	store      *Store
	parser     IntentParser
	inbox      InboxReader
	drafter    ReplyDrafter
	executor   Executor
	dispatcher *dispatch.Dispatcher
	opts       Options
}

func NewService(store *Store, parser IntentParser, inbox InboxReader, drafter ReplyDrafter, executor Executor, dispatcher *dispatch.Dispatcher, opts Options) *Service {
	if opts.ExecuteTimeout <= 0 {
		opts.ExecuteTimeout = 30 * time.Second
	}
	if opts.RecentEmailLimit <= 0 {
		opts.RecentEmailLimit = 10
	}
	return &Service{
		store:      store,
		parser:     parser,
		inbox:      inbox,
		drafter:    drafter,
		executor:   executor,
		dispatcher: dispatcher,
		opts:       opts,
	}
}

// ParseResult is the dry-run outcome of interpreting a command.
type ParseResult struct {
	Intent           types.Intent      `json:"intent"`
	RequiresApproval bool              `json:"requiresApproval"`
	Preview          types.TaskPreview `json:"preview"`
}

// ParseCommand interprets a command without creating a task.
func (s *Service) ParseCommand(ctx context.Context, rawCommand string) (ParseResult, error) {
	if err := command.Validate(rawCommand); err != nil {
		return ParseResult{}, err
	}
	sanitized := command.Sanitize(rawCommand)

	intent := s.parser.Parse(ctx, sanitized)
	pv := preview.Generate(intent, sanitized)
	requiresApproval := policy.RequiresApproval(intent)

	if intent.Action == types.ActionReplyEmail {
		intent, pv, requiresApproval = s.resolveReplyTarget(ctx, intent, sanitized, pv)
	}

	if requiresApproval {
		pv.ApprovalReasons = policy.ApprovalReasons(intent)
	}
	return ParseResult{Intent: intent, RequiresApproval: requiresApproval, Preview: pv}, nil
}

// resolveReplyTarget matches a reply command against recent inbox items.
// A confident match fills in the target and a drafted reply; anything
// weaker surfaces the candidates and holds the task at the gate.
func (s *Service) resolveReplyTarget(ctx context.Context, intent types.Intent, sanitized string, pv types.TaskPreview) (types.Intent, types.TaskPreview, bool) {
	candidates, err := s.inbox.ListRecent(ctx, s.opts.RecentEmailLimit)
	if err != nil {
		logger.Warn("listing recent emails failed: %v", err)
		pv.Warnings = append(pv.Warnings, "Recent emails could not be loaded; select the reply target manually.")
		return intent, pv, true
	}

	match := resolver.Match(candidates, sanitized)
	if match.AutoSelect() {
		draft := s.drafter.DraftReply(ctx, intent.Description, *match.Matched)
		intent = intent.
			SetEntity("emailId", match.Matched.ID).
			SetEntity("to", draft.To).
			SetEntity("subject", draft.Subject).
			SetEntity("body", draft.Body)
		pv.EmailPreview = &draft
		pv.SelectedEmailID = match.Matched.ID
		pv.Changes = []types.PreviewChange{{
			Type:   "send",
			Entity: "Email",
			Detail: "Send reply to " + draft.To,
		}}
		return intent, pv, true
	}

	pv.RecentEmails = resolver.TopCandidates(candidates)
	return intent, pv, true
}

// CreateTask interprets the command and persists a task. Tasks that do
// not need approval start executing immediately.
func (s *Service) CreateTask(ctx context.Context, userID, rawCommand string) (types.Task, error) {
	parsed, err := s.ParseCommand(ctx, rawCommand)
	if err != nil {
		return types.Task{}, err
	}

	status := types.StatusPendingApproval
	if !parsed.RequiresApproval {
		status = types.StatusExecuting
	}

	pv := parsed.Preview
	created, err := s.store.CreateTask(ctx, types.Task{
		UserID:           userID,
		RawCommand:       command.Sanitize(rawCommand),
		ParsedIntent:     parsed.Intent,
		Status:           status,
		RequiresApproval: parsed.RequiresApproval,
		Preview:          &pv,
	})
	if err != nil {
		return types.Task{}, err
	}

	s.logActivity(ctx, created, "Task created: "+parsed.Intent.Description)

	if status == types.StatusExecuting {
		s.enqueueExecution(ctx, created)
	}
	return created, nil
}

// Approve clears a pending task for execution. For reply tasks without a
// resolved target the caller must pass the selected email id.
func (s *Service) Approve(ctx context.Context, taskID, selectedEmailID string) (types.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return types.Task{}, err
	}
	if t.Status != types.StatusPendingApproval {
		return types.Task{}, fmt.Errorf("task %s is %s, only pending tasks can be approved", taskID, t.Status)
	}

	if t.ParsedIntent.Action == types.ActionReplyEmail && t.ParsedIntent.Email().EmailID == "" {
		if selectedEmailID == "" {
			return types.Task{}, errors.New("select which email to reply to before approving")
		}
		if err := s.selectReplyTarget(ctx, &t, selectedEmailID); err != nil {
			return types.Task{}, err
		}
	}

	if err := s.store.UpdateStatus(ctx, taskID, types.StatusPendingApproval, types.StatusApproved); err != nil {
		return types.Task{}, err
	}
	t.Status = types.StatusApproved
	s.logActivity(ctx, t, "Task approved")

	return s.ExecuteTask(ctx, taskID)
}

// ExecuteTask dispatches an approved task. Approve calls it after the
// approval transition; it also stands alone for callers that drive the
// transitions themselves.
func (s *Service) ExecuteTask(ctx context.Context, taskID string) (types.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return types.Task{}, err
	}
	if t.Status != types.StatusApproved {
		return types.Task{}, fmt.Errorf("task %s is %s, only approved tasks can be executed", taskID, t.Status)
	}

	if err := s.store.UpdateStatus(ctx, taskID, types.StatusApproved, types.StatusExecuting); err != nil {
		return types.Task{}, err
	}
	t, err = s.store.GetTask(ctx, taskID)
	if err != nil {
		return types.Task{}, err
	}
	s.logActivity(ctx, t, "Task execution started")
	s.enqueueExecution(ctx, t)
	return t, nil
}

// selectReplyTarget applies an explicit candidate choice to a pending
// reply task: the target is drafted against and frozen into the intent.
func (s *Service) selectReplyTarget(ctx context.Context, t *types.Task, selectedEmailID string) error {
	var chosen *types.CandidateEmail
	if t.Preview != nil {
		for i := range t.Preview.RecentEmails {
			if t.Preview.RecentEmails[i].ID == selectedEmailID {
				chosen = &t.Preview.RecentEmails[i]
				break
			}
		}
	}
	if chosen == nil {
		return fmt.Errorf("email %s is not among the offered candidates", selectedEmailID)
	}

	draft := s.drafter.DraftReply(ctx, t.ParsedIntent.Description, *chosen)
	for key, value := range map[string]interface{}{
		"emailId": chosen.ID,
		"to":      draft.To,
		"subject": draft.Subject,
		"body":    draft.Body,
	} {
		if err := s.store.PatchIntentEntity(ctx, t.ID, key, value); err != nil {
			return err
		}
	}

	updated := *t.Preview
	updated.EmailPreview = &draft
	updated.SelectedEmailID = chosen.ID
	if err := s.store.UpdatePreview(ctx, t.ID, updated); err != nil {
		return err
	}

	refreshed, err := s.store.GetTask(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = refreshed
	return nil
}

// Reject cancels a pending task.
func (s *Service) Reject(ctx context.Context, taskID string) (types.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return types.Task{}, err
	}
	if t.Status != types.StatusPendingApproval {
		return types.Task{}, fmt.Errorf("task %s is %s, only pending tasks can be rejected", taskID, t.Status)
	}
	if err := s.store.UpdateStatus(ctx, taskID, types.StatusPendingApproval, types.StatusCancelled); err != nil {
		return types.Task{}, err
	}
	t.Status = types.StatusCancelled
	s.logActivity(ctx, t, "Task rejected")
	return t, nil
}

// Retry re-runs a failed task. Tasks gated at creation go back through
// the approval gate; the rest execute again directly.
func (s *Service) Retry(ctx context.Context, taskID string) (types.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return types.Task{}, err
	}
	if t.Status != types.StatusFailed {
		return types.Task{}, fmt.Errorf("task %s is %s, only failed tasks can be retried", taskID, t.Status)
	}

	if err := s.store.ClearResult(ctx, taskID); err != nil {
		return types.Task{}, err
	}

	if t.RequiresApproval {
		if err := s.store.UpdateStatus(ctx, taskID, types.StatusFailed, types.StatusPendingApproval); err != nil {
			return types.Task{}, err
		}
		t.Status = types.StatusPendingApproval
		s.logActivity(ctx, t, "Task queued for re-approval")
		return s.store.GetTask(ctx, taskID)
	}

	if err := s.store.UpdateStatus(ctx, taskID, types.StatusFailed, types.StatusExecuting); err != nil {
		return types.Task{}, err
	}
	t.Status = types.StatusExecuting
	s.logActivity(ctx, t, "Task retrying")
	s.enqueueExecution(ctx, t)
	return s.store.GetTask(ctx, taskID)
}

func (s *Service) GetTask(ctx context.Context, taskID string) (types.Task, error) {
	return s.store.GetTask(ctx, taskID)
}

func (s *Service) ListTasks(ctx context.Context, userID string, limit int) ([]types.Task, error) {
	return s.store.ListTasks(ctx, userID, limit)
}

func (s *Service) ListActivity(ctx context.Context, userID string, limit int) ([]types.ActivityLogEntry, error) {
	return s.store.ListActivity(ctx, userID, limit)
}

func (s *Service) enqueueExecution(ctx context.Context, t types.Task) {
	_, err := s.dispatcher.Enqueue(ctx, dispatch.Job{
		ID:             t.ID,
		AttemptTimeout: s.opts.ExecuteTimeout,
		Run: func(runCtx context.Context) error {
			return s.runExecution(runCtx, t)
		},
	})
	if err != nil {
		logger.Error("enqueue execution for %s failed: %v", t.ID, err)
		s.failTask(context.Background(), t, "The task could not be scheduled. Please retry.")
	}
}

// runExecution drives one attempt from executing to a terminal status.
func (s *Service) runExecution(ctx context.Context, t types.Task) error {
	result, err := s.executor.Execute(ctx, t.ParsedIntent)
	if err != nil {
		logger.Error("task %s execution failed: %v", t.ID, err)
		s.failTaskWithResult(ctx, t, types.TaskResult{
			Success: false,
			Message: errmsg.UserFriendly(err),
			Data:    map[string]interface{}{"retryable": errmsg.Retryable(err)},
		})
		return err
	}

	if !result.Success {
		s.failTaskWithResult(ctx, t, result)
		return nil
	}

	result.SafetyReasons = policy.SafetyExplanation(t.ParsedIntent, result)
	if err := s.store.UpdateStatus(ctx, t.ID, types.StatusExecuting, types.StatusCompleted); err != nil {
		logger.Error("task %s could not be marked completed: %v", t.ID, err)
		return err
	}
	if err := s.store.SetResult(ctx, t.ID, result); err != nil {
		logger.Error("task %s result not stored: %v", t.ID, err)
	}
	t.Status = types.StatusCompleted
	s.logActivity(ctx, t, result.Message)
	return nil
}

func (s *Service) failTask(ctx context.Context, t types.Task, message string) {
	s.failTaskWithResult(ctx, t, types.TaskResult{Success: false, Message: message})
}

func (s *Service) failTaskWithResult(ctx context.Context, t types.Task, result types.TaskResult) {
	if err := s.store.UpdateStatus(ctx, t.ID, types.StatusExecuting, types.StatusFailed); err != nil {
		logger.Error("task %s could not be marked failed: %v", t.ID, err)
		return
	}
	if err := s.store.SetResult(ctx, t.ID, result); err != nil {
		logger.Error("task %s failure result not stored: %v", t.ID, err)
	}
	t.Status = types.StatusFailed
	s.logActivity(ctx, t, result.Message)
}

// ReapStuck fails executing tasks whose last update is older than the
// given age. Crashed or lost executions surface as failed instead of
// spinning forever.
func (s *Service) ReapStuck(ctx context.Context, maxAge time.Duration) (int, error) {
	stuck, err := s.store.ListExecutingSince(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	for _, t := range stuck {
		logger.Warn("reaping stuck task %s (executing since %s)", t.ID, t.UpdatedAt.Format(time.RFC3339))
		s.failTask(ctx, t, "The task timed out. Please retry.")
	}
	return len(stuck), nil
}

func (s *Service) logActivity(ctx context.Context, t types.Task, description string) {
	entry := types.ActivityLogEntry{
		TaskID:      t.ID,
		Action:      t.ParsedIntent.Action,
		Description: description,
		Domain:      t.ParsedIntent.Domain,
		Status:      activityStatus(t.Status),
	}
	if _, err := s.store.AppendActivity(ctx, t.UserID, entry); err != nil {
		logger.Error("activity log append for %s failed: %v", t.ID, err)
	}
}

func activityStatus(status types.TaskStatus) string {
	switch status {
	case types.StatusCompleted:
		return "success"
	case types.StatusFailed, types.StatusCancelled:
		return "failed"
	default:
		return "pending"
	}
}
