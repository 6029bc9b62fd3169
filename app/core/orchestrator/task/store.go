package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"concierge/app/core/orchestrator/db"
	"concierge/app/pkg/types"
)

var (
	ErrNotFound = errors.New("task not found")
	// ErrStatusConflict means the task moved out of the expected status
	// between read and write. Callers re-read and decide.
	ErrStatusConflict = errors.New("task status changed concurrently")
)

type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) CreateTask(ctx context.Context, t types.Task) (types.Task, error) {
	t.UserID = strings.TrimSpace(t.UserID)
	if t.UserID == "" {
		return types.Task{}, fmt.Errorf("user_id is required")
	}
	if !ValidStatus(t.Status) {
		return types.Task{}, fmt.Errorf("invalid initial status %q", t.Status)
	}

	now := time.Now()
	t.ID = newID("task")
	t.CreatedAt = now
	t.UpdatedAt = now

	intentJSON, err := json.Marshal(t.ParsedIntent)
	if err != nil {
		return types.Task{}, fmt.Errorf("marshal intent: %w", err)
	}
	var previewJSON interface{}
	if t.Preview != nil {
		data, err := json.Marshal(t.Preview)
		if err != nil {
			return types.Task{}, fmt.Errorf("marshal preview: %w", err)
		}
		previewJSON = string(data)
	}

	query := `INSERT INTO tasks (id, user_id, raw_command, intent, status, requires_approval, preview, result, created_at, updated_at, executed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, NULL)`
	_, err = s.db.Conn().ExecContext(ctx, query,
		t.ID, t.UserID, t.RawCommand, string(intentJSON), string(t.Status),
		boolToInt(t.RequiresApproval), previewJSON, now.Unix(), now.Unix())
	if err != nil {
		return types.Task{}, err
	}
	return t, nil
}

const taskColumns = `id, user_id, raw_command, intent, status, requires_approval, COALESCE(preview, ''), COALESCE(result, ''), created_at, updated_at, COALESCE(executed_at, 0)`

func (s *Store) GetTask(ctx context.Context, taskID string) (types.Task, error) {
	row := s.db.Conn().QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return types.Task{}, ErrNotFound
	}
	return t, err
}

func (s *Store) ListTasks(ctx context.Context, userID string, limit int) ([]types.Task, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Task, 0, limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ListExecutingSince returns tasks stuck in executing whose last update is
// older than the cutoff. Used by the reaper.
func (s *Store) ListExecutingSince(ctx context.Context, cutoff time.Time) ([]types.Task, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? AND updated_at < ? ORDER BY updated_at ASC`,
		string(types.StatusExecuting), cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// UpdateStatus moves a task from an expected status to a new one. The
// write is conditional on the current status so concurrent actors cannot
// both win the same transition.
func (s *Store) UpdateStatus(ctx context.Context, taskID string, from, to types.TaskStatus) error {
	if err := ValidateTransition(from, to); err != nil {
		return err
	}
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().Unix(), taskID, string(from))
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, res, taskID)
}

// SetResult records the terminal outcome of an execution attempt and
// stamps executed_at.
func (s *Store) SetResult(ctx context.Context, taskID string, result types.TaskResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	now := time.Now().Unix()
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET result = ?, executed_at = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), now, now, taskID)
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, res, taskID)
}

// ClearResult resets the previous attempt's outcome before a retry.
func (s *Store) ClearResult(ctx context.Context, taskID string) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET result = NULL, executed_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), taskID)
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, res, taskID)
}

// UpdatePreview replaces the preview while the task is still waiting at
// the approval gate. Once the task moves on the preview is frozen.
func (s *Store) UpdatePreview(ctx context.Context, taskID string, preview types.TaskPreview) error {
	previewJSON, err := json.Marshal(preview)
	if err != nil {
		return fmt.Errorf("marshal preview: %w", err)
	}
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET preview = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(previewJSON), time.Now().Unix(), taskID, string(types.StatusPendingApproval))
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, res, taskID)
}

// PatchIntentEntity sets a single entity on the stored intent without
// rewriting the whole document.
func (s *Store) PatchIntentEntity(ctx context.Context, taskID string, key string, value interface{}) error {
	var intentJSON string
	err := s.db.Conn().QueryRowContext(ctx, `SELECT intent FROM tasks WHERE id = ?`, taskID).Scan(&intentJSON)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	patched, err := sjson.Set(intentJSON, "entities."+key, value)
	if err != nil {
		return fmt.Errorf("patch intent entity %q: %w", key, err)
	}

	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET intent = ?, updated_at = ? WHERE id = ?`,
		patched, time.Now().Unix(), taskID)
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, res, taskID)
}

func (s *Store) AppendActivity(ctx context.Context, userID string, entry types.ActivityLogEntry) (types.ActivityLogEntry, error) {
	entry.ID = newID("act")
	entry.Timestamp = time.Now()
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO activity_log (id, task_id, user_id, action, description, domain, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TaskID, userID, entry.Action, entry.Description, string(entry.Domain), entry.Status, entry.Timestamp.Unix())
	if err != nil {
		return types.ActivityLogEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListActivity(ctx context.Context, userID string, limit int) ([]types.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, task_id, action, description, domain, status, created_at FROM activity_log WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.ActivityLogEntry, 0, limit)
	for rows.Next() {
		var entry types.ActivityLogEntry
		var domain string
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.Action, &entry.Description, &domain, &entry.Status, &createdAt); err != nil {
			return nil, err
		}
		entry.Domain = types.Domain(domain)
		entry.Timestamp = time.Unix(createdAt, 0)
		items = append(items, entry)
	}
	return items, rows.Err()
}

// checkAffected turns a zero-row update into the right sentinel: the task
// either does not exist or its status no longer matches the condition.
func (s *Store) checkAffected(ctx context.Context, res sql.Result, taskID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var one int
	err = s.db.Conn().QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, taskID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrStatusConflict
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (types.Task, error) {
	var (
		t           types.Task
		status      string
		intentJSON  string
		previewJSON string
		resultJSON  string
		approval    int
		createdAt   int64
		updatedAt   int64
		executedAt  int64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.RawCommand, &intentJSON, &status, &approval,
		&previewJSON, &resultJSON, &createdAt, &updatedAt, &executedAt)
	if err != nil {
		return types.Task{}, err
	}

	t.Status = types.TaskStatus(status)
	t.RequiresApproval = approval != 0
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	if executedAt > 0 {
		at := time.Unix(executedAt, 0)
		t.ExecutedAt = &at
	}

	if err := json.Unmarshal([]byte(intentJSON), &t.ParsedIntent); err != nil {
		return types.Task{}, fmt.Errorf("unmarshal intent for %s: %w", t.ID, err)
	}
	if previewJSON != "" {
		t.Preview = &types.TaskPreview{}
		if err := json.Unmarshal([]byte(previewJSON), t.Preview); err != nil {
			return types.Task{}, fmt.Errorf("unmarshal preview for %s: %w", t.ID, err)
		}
	}
	if resultJSON != "" {
		t.Result = &types.TaskResult{}
		if err := json.Unmarshal([]byte(resultJSON), t.Result); err != nil {
			return types.Task{}, fmt.Errorf("unmarshal result for %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
