package db

import (
	"testing"
)

func TestNewSQLiteDBCreatesSchema(t *testing.T) {
	tempDir := t.TempDir()

	database, err := NewSQLiteDB(tempDir)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	defer database.Close()

	for _, table := range []string{"tasks", "activity_log", "schema_meta"} {
		var name string
		err := database.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	var version string
	if err := database.Conn().QueryRow(`SELECT value FROM schema_meta WHERE key='schema_version'`).Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "2" {
		t.Fatalf("schema version = %s, want 2", version)
	}
}

func TestNewSQLiteDBReopenIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	first, err := NewSQLiteDB(tempDir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := first.Conn().Exec(`INSERT INTO tasks (id, user_id, raw_command, intent, status, requires_approval, created_at, updated_at) VALUES ('task-1', 'u1', 'cmd', '{}', 'pending_approval', 1, 1, 1)`); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewSQLiteDB(tempDir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	var count int
	if err := second.Conn().QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if count != 1 {
		t.Fatalf("task count = %d, want 1", count)
	}
}
