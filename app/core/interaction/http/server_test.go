package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"concierge/app/core/dispatch"
	"concierge/app/core/orchestrator/db"
	"concierge/app/core/orchestrator/task"
	"concierge/app/pkg/types"
)

type stubParser struct {
	intent types.Intent
}

func (p *stubParser) Parse(ctx context.Context, cmd string) types.Intent {
	return p.intent
}

type stubInbox struct{}

func (stubInbox) ListRecent(ctx context.Context, limit int) ([]types.CandidateEmail, error) {
	return nil, nil
}

type stubDrafter struct{}

func (stubDrafter) DraftReply(ctx context.Context, instruction string, original types.CandidateEmail) types.EmailPreview {
	return types.EmailPreview{To: original.FromEmail, Subject: "Re: " + original.Subject, Body: instruction}
}

type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, intent types.Intent) (types.TaskResult, error) {
	return types.TaskResult{Success: true, Message: "done"}, nil
}

func newTestServer(t *testing.T, intent types.Intent) *Server {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	dispatcher := dispatch.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	if err := dispatcher.Start(ctx, 1); err != nil {
		t.Fatalf("start dispatcher: %v", err)
	}
	t.Cleanup(func() {
		_ = dispatcher.Stop(time.Second)
		cancel()
	})

	service := task.NewService(task.NewStore(database), &stubParser{intent: intent}, stubInbox{}, stubDrafter{}, stubExecutor{}, dispatcher, task.Options{})
	return NewServer(0, service, "local_user")
}

func riskyIntent() types.Intent {
	return types.Intent{
		Action:       types.ActionCancelMeeting,
		Domain:       types.DomainCalendar,
		Entities:     map[string]interface{}{"time": "3pm"},
		Urgency:      types.UrgencyMedium,
		IsReversible: false,
		Description:  "Cancel meeting at 3pm",
		Confidence:   0.9,
	}
}

func TestHandleParse(t *testing.T) {
	server := newTestServer(t, riskyIntent())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/parse", strings.NewReader(`{"command":"cancel my 3pm meeting"}`))
	server.handleParse(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result task.ParseResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.RequiresApproval || len(result.Preview.ApprovalReasons) == 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestHandleParseRejectsInvalidCommand(t *testing.T) {
	server := newTestServer(t, riskyIntent())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/parse", strings.NewReader(`{"command":"hi"}`))
	server.handleParse(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t, riskyIntent())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"command":"cancel my 3pm meeting"}`))
	server.handleTasks(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created types.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != types.StatusPendingApproval {
		t.Fatalf("status = %s", created.Status)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/tasks/"+created.ID, nil)
	server.handleTaskByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/tasks/"+created.ID+"/reject", strings.NewReader(`{}`))
	server.handleTaskByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var rejected types.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &rejected); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rejected.Status != types.StatusCancelled {
		t.Fatalf("status = %s", rejected.Status)
	}

	// Approving a cancelled task is rejected.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/tasks/"+created.ID+"/approve", strings.NewReader(`{}`))
	server.handleTaskByID(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("approve status = %d, want 422", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	server.handleTasks(rec, req)
	var list taskListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(list.Tasks))
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/activity", nil)
	server.handleActivity(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity status = %d", rec.Code)
	}
}

func TestGetUnknownTaskReturns404(t *testing.T) {
	server := newTestServer(t, riskyIntent())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/task-missing", nil)
	server.handleTaskByID(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestParseTaskPath(t *testing.T) {
	cases := []struct {
		path   string
		id     string
		action string
		ok     bool
	}{
		{"/api/tasks/task-1", "task-1", "", true},
		{"/api/tasks/task-1/approve", "task-1", "approve", true},
		{"/api/tasks/task-1/approve/extra", "", "", false},
		{"/api/tasks/", "", "", false},
		{"/api/other", "", "", false},
	}
	for _, tc := range cases {
		id, action, ok := parseTaskPath(tc.path)
		if id != tc.id || action != tc.action || ok != tc.ok {
			t.Errorf("parseTaskPath(%q) = (%q, %q, %v), want (%q, %q, %v)", tc.path, id, action, ok, tc.id, tc.action, tc.ok)
		}
	}
}
