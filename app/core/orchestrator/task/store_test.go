package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"concierge/app/core/orchestrator/db"
	"concierge/app/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database)
}

func sampleTask() types.Task {
	return types.Task{
		UserID:     "u1",
		RawCommand: "Cancel my 3pm meeting",
		ParsedIntent: types.Intent{
			Action:       types.ActionCancelMeeting,
			Domain:       types.DomainCalendar,
			Entities:     map[string]interface{}{"time": "3pm"},
			Urgency:      types.UrgencyMedium,
			IsReversible: false,
			Description:  "Cancel meeting at 3pm",
			Confidence:   0.9,
		},
		Status:           types.StatusPendingApproval,
		RequiresApproval: true,
		Preview: &types.TaskPreview{
			Title:   "Cancel meeting at 3pm",
			Changes: []types.PreviewChange{{Type: "delete", Entity: "Meeting", Detail: "Cancel scheduled meeting at 3pm"}},
		},
	}
}

func TestCreateAndGetTaskRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateTask(ctx, sampleTask())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("task id not assigned")
	}

	got, err := store.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RawCommand != "Cancel my 3pm meeting" || got.Status != types.StatusPendingApproval {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.ParsedIntent.Action != types.ActionCancelMeeting {
		t.Fatalf("intent action = %s", got.ParsedIntent.Action)
	}
	if got.Preview == nil || len(got.Preview.Changes) != 1 {
		t.Fatalf("preview lost: %+v", got.Preview)
	}
	if !got.RequiresApproval {
		t.Fatal("requires_approval lost")
	}
	if got.ExecutedAt != nil || got.Result != nil {
		t.Fatal("fresh task must have no result or executed_at")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetTask(context.Background(), "task-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusConditional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateTask(ctx, sampleTask())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.UpdateStatus(ctx, created.ID, types.StatusPendingApproval, types.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// The same transition cannot win twice.
	err = store.UpdateStatus(ctx, created.ID, types.StatusPendingApproval, types.StatusApproved)
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("err = %v, want ErrStatusConflict", err)
	}

	// Illegal transitions are rejected before touching the row.
	if err := store.UpdateStatus(ctx, created.ID, types.StatusApproved, types.StatusCompleted); err == nil {
		t.Fatal("approved -> completed must be rejected")
	}
}

func TestUpdatePreviewFrozenAfterApproval(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateTask(ctx, sampleTask())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := *created.Preview
	updated.SelectedEmailID = "m1"
	if err := store.UpdatePreview(ctx, created.ID, updated); err != nil {
		t.Fatalf("update preview while pending: %v", err)
	}

	if err := store.UpdateStatus(ctx, created.ID, types.StatusPendingApproval, types.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := store.UpdatePreview(ctx, created.ID, updated); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("err = %v, want ErrStatusConflict after approval", err)
	}
}

func TestPatchIntentEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateTask(ctx, sampleTask())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.PatchIntentEntity(ctx, created.ID, "emailId", "m42"); err != nil {
		t.Fatalf("patch: %v", err)
	}

	got, err := store.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ParsedIntent.Entities["emailId"] != "m42" {
		t.Fatalf("entities = %v", got.ParsedIntent.Entities)
	}
	if got.ParsedIntent.Entities["time"] != "3pm" {
		t.Fatal("existing entities must survive the patch")
	}
}

func TestSetAndClearResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateTask(ctx, sampleTask())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result := types.TaskResult{Success: true, Message: "done", SafetyReasons: []string{"Executed successfully"}}
	if err := store.SetResult(ctx, created.ID, result); err != nil {
		t.Fatalf("set result: %v", err)
	}

	got, err := store.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Result == nil || !got.Result.Success || got.Result.Message != "done" {
		t.Fatalf("result = %+v", got.Result)
	}
	if got.ExecutedAt == nil {
		t.Fatal("executed_at must be stamped with the result")
	}

	if err := store.ClearResult(ctx, created.ID); err != nil {
		t.Fatalf("clear result: %v", err)
	}
	got, err = store.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if got.Result != nil || got.ExecutedAt != nil {
		t.Fatalf("result not cleared: %+v", got)
	}
}

func TestListTasksNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.CreateTask(ctx, sampleTask()); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	other := sampleTask()
	other.UserID = "u2"
	if _, err := store.CreateTask(ctx, other); err != nil {
		t.Fatalf("create other user: %v", err)
	}

	items, err := store.ListTasks(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3 (other users excluded)", len(items))
	}
}

func TestListExecutingSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := sampleTask()
	seed.Status = types.StatusExecuting
	seed.RequiresApproval = false
	created, err := store.CreateTask(ctx, seed)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stuck, err := store.ListExecutingSince(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("list stuck: %v", err)
	}
	if len(stuck) != 1 || stuck[0].ID != created.ID {
		t.Fatalf("stuck = %+v", stuck)
	}

	none, err := store.ListExecutingSince(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list fresh: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("fresh executing tasks must not be reported, got %d", len(none))
	}
}

func TestActivityLogAppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := types.ActivityLogEntry{
		TaskID:      "task-1",
		Action:      types.ActionCancelMeeting,
		Description: "Cancelled meeting at 3pm",
		Domain:      types.DomainCalendar,
		Status:      "success",
	}
	saved, err := store.AppendActivity(ctx, "u1", entry)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if saved.ID == "" || saved.Timestamp.IsZero() {
		t.Fatalf("entry not stamped: %+v", saved)
	}

	items, err := store.ListActivity(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Description != "Cancelled meeting at 3pm" {
		t.Fatalf("items = %+v", items)
	}

	empty, err := store.ListActivity(ctx, "u2", 10)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(empty) != 0 {
		t.Fatal("activity must be scoped per user")
	}
}
