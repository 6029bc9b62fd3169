package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"concierge/app/core/command"
	"concierge/app/core/orchestrator/task"
	"concierge/app/pkg/logger"
	"concierge/app/pkg/types"
)

const defaultShutdownTimeout = 5 * time.Second

// Server exposes the task lifecycle over HTTP. The caller identity comes
// from the X-User-ID header; there is no authentication layer here.
type Server struct {
	port            int
	service         *task.Service
	server          *http.Server
	shutdownTimeout time.Duration
	defaultUserID   string
}

func NewServer(port int, service *task.Service, defaultUserID string) *Server {
	return &Server{
		port:            port,
		service:         service,
		shutdownTimeout: defaultShutdownTimeout,
		defaultUserID:   defaultUserID,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tasks/parse", s.handleParse)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/", s.handleTaskByID)
	mux.HandleFunc("/api/activity", s.handleActivity)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown: %v", err)
		}
	}()

	logger.Info("http listening on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type commandRequest struct {
	Command string `json:"command"`
}

type approveRequest struct {
	SelectedEmailID string `json:"selectedEmailId,omitempty"`
}

type taskListResponse struct {
	Tasks []types.Task `json:"tasks"`
}

type activityListResponse struct {
	Activity []types.ActivityLogEntry `json:"activity"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	result, err := s.service.ParseCommand(r.Context(), req.Command)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req commandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		created, err := s.service.CreateTask(r.Context(), s.userID(r), req.Command)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		limit := parseListLimit(r.URL.Query().Get("limit"))
		items, err := s.service.ListTasks(r.Context(), s.userID(r), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, taskListResponse{Tasks: items})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	taskID, action, ok := parseTaskPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		t, err := s.service.GetTask(r.Context(), taskID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var t types.Task
	var err error
	switch action {
	case "approve":
		var req approveRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		t, err = s.service.Approve(r.Context(), taskID, req.SelectedEmailID)
	case "reject":
		t, err = s.service.Reject(r.Context(), taskID)
	case "retry":
		t, err = s.service.Retry(r.Context(), taskID)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseListLimit(r.URL.Query().Get("limit"))
	items, err := s.service.ListActivity(r.Context(), s.userID(r), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, activityListResponse{Activity: items})
}

func (s *Server) userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return s.defaultUserID
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var vErr *command.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Reason, http.StatusBadRequest)
	case errors.Is(err, task.ErrNotFound):
		http.Error(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, task.ErrStatusConflict):
		http.Error(w, "Task changed concurrently, reload and retry", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// parseTaskPath splits /api/tasks/{id} and /api/tasks/{id}/{action}.
func parseTaskPath(path string) (id, action string, ok bool) {
	rest := strings.TrimPrefix(path, "/api/tasks/")
	if rest == path || rest == "" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch len(parts) {
	case 1:
		return parts[0], "", parts[0] != ""
	case 2:
		return parts[0], parts[1], parts[0] != "" && parts[1] != ""
	}
	return "", "", false
}

func parseListLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
