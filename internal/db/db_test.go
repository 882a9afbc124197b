package db

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lorehq/lore/internal/models"
)

// setupTestDB creates a file-backed SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func testSession(t *testing.T) *models.Session {
	t.Helper()

	return &models.Session{
		ID:               uuid.New(),
		Tool:             "claude-code",
		ToolVersion:      "2.0.72",
		StartedAt:        time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Model:            "claude-sonnet-4",
		WorkingDirectory: "/home/user/project",
		BranchHistory:    []string{"main"},
		SourcePath:       "/home/user/.claude/projects/p/abc.jsonl",
	}
}

func testMessages(t *testing.T, sessionID uuid.UUID, n int) []*models.Message {
	t.Helper()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	messages := make([]*models.Message, n)
	for i := range messages {
		role := models.RoleHuman
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		messages[i] = &models.Message{
			ID:        uuid.New(),
			SessionID: sessionID,
			Index:     i,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Role:      role,
			Content:   models.TextContent("message body"),
		}
	}
	return messages
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Errorf("Database ping failed: %v", err)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Errorf("Failed to query foreign_keys pragma: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("Foreign keys not enabled: got %d, want 1", foreignKeys)
	}

	tables := []string{"sessions", "messages", "session_links", "source_cursors", "meta", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Errorf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

func TestOpenInvalidPath(t *testing.T) {
	db, err := Open("/nonexistent/directory/test.db")
	if err == nil {
		db.Close()
		t.Error("Open() should fail with invalid path")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	db.Close()

	db, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	db.Close()
}

func TestMetaRoundtrip(t *testing.T) {
	db := setupTestDB(t)

	if v, err := GetMeta(db, "machine_id"); err != nil || v != "" {
		t.Fatalf("GetMeta on empty store = (%q, %v)", v, err)
	}

	if err := SetMeta(db, "machine_id", "abc-123"); err != nil {
		t.Fatalf("SetMeta() failed: %v", err)
	}
	if err := SetMeta(db, "machine_id", "def-456"); err != nil {
		t.Fatalf("SetMeta() overwrite failed: %v", err)
	}

	v, err := GetMeta(db, "machine_id")
	if err != nil {
		t.Fatalf("GetMeta() failed: %v", err)
	}
	if v != "def-456" {
		t.Errorf("GetMeta() = %q, want def-456", v)
	}
}

func TestGetStats(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	session := testSession(t)
	if err := UpsertSession(db, session); err != nil {
		t.Fatalf("UpsertSession() failed: %v", err)
	}
	if _, err := InsertMessagesMissing(db, session.ID, testMessages(t, session.ID, 3)); err != nil {
		t.Fatalf("InsertMessagesMissing() failed: %v", err)
	}

	stats, err := GetStats(db, dbPath)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.Sessions != 1 || stats.Messages != 3 || stats.Links != 0 {
		t.Errorf("GetStats() = %+v", stats)
	}
	if stats.SizeBytes == 0 {
		t.Error("GetStats() should report a nonzero database size")
	}
}
