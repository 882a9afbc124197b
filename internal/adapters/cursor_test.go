package adapters

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/lorehq/lore/internal/models"
)

// writeCursorDatabase creates a minimal state.vscdb with one chat tab.
func writeCursorDatabase(t *testing.T, home string) string {
	t.Helper()

	workspace := filepath.Join(NewCursor(home).storageDir(), "ws1")
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	dbPath := filepath.Join(workspace, "state.vscdb")
	store, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer store.Close()

	if _, err := store.Exec("CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("failed to create ItemTable: %v", err)
	}

	chat := `{"tabs": [{"tabId": "550e8400-e29b-41d4-a716-446655440000", "bubbles": [
		{"type": "user", "text": "refactor the parser"},
		{"type": "ai", "text": "splitting it into two passes"},
		{"type": "system", "text": "ignored"}
	]}]}`
	if _, err := store.Exec(
		"INSERT INTO ItemTable (key, value) VALUES (?, ?)",
		"workbench.panel.aichat.view.aichat.chatdata", chat,
	); err != nil {
		t.Fatalf("failed to insert chat data: %v", err)
	}

	meta := `{"folder": "file:///home/user/project"}`
	if err := os.WriteFile(filepath.Join(workspace, "workspace.json"), []byte(meta), 0o644); err != nil {
		t.Fatalf("failed to write workspace.json: %v", err)
	}

	return dbPath
}

func TestCursorParse(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	path := writeCursorDatabase(t, home)

	adapter := NewCursor(home)
	if !adapter.Matches(path) {
		t.Fatal("Matches() should accept state.vscdb files")
	}

	results, err := adapter.Parse(path)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Parse() = %d sessions, want 1 per tab", len(results))
	}

	session := results[0].Session
	if session.Tool != "cursor" {
		t.Errorf("tool = %q", session.Tool)
	}
	if session.ID.String() != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("session id = %s, want native tab id", session.ID)
	}
	if session.WorkingDirectory != "/home/user/project" {
		t.Errorf("working directory = %q", session.WorkingDirectory)
	}

	messages := results[0].Messages
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2 (system bubbles dropped)", len(messages))
	}
	if messages[0].Role != models.RoleHuman || messages[1].Role != models.RoleAssistant {
		t.Errorf("roles = %q, %q", messages[0].Role, messages[1].Role)
	}
}

func TestCursorFindSources(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	path := writeCursorDatabase(t, home)

	sources, err := NewCursor(home).FindSources()
	if err != nil {
		t.Fatalf("FindSources() failed: %v", err)
	}
	if len(sources) != 1 || sources[0] != path {
		t.Errorf("FindSources() = %v", sources)
	}
}
