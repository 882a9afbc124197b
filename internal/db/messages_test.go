package db

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lorehq/lore/internal/models"
)

func TestInsertMessagesMissingDedup(t *testing.T) {
	db := setupTestDB(t)

	session := testSession(t)
	if err := UpsertSession(db, session); err != nil {
		t.Fatalf("UpsertSession() failed: %v", err)
	}

	messages := testMessages(t, session.ID, 3)

	inserted, err := InsertMessagesMissing(db, session.ID, messages)
	if err != nil {
		t.Fatalf("InsertMessagesMissing() failed: %v", err)
	}
	if inserted != 3 {
		t.Errorf("first insert = %d rows, want 3", inserted)
	}

	// Inserting the same batch again must be a complete no-op.
	inserted, err = InsertMessagesMissing(db, session.ID, messages)
	if err != nil {
		t.Fatalf("second InsertMessagesMissing() failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second insert = %d rows, want 0", inserted)
	}

	got, err := GetMessages(db, session.ID)
	if err != nil {
		t.Fatalf("GetMessages() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetMessages() = %d messages, want 3", len(got))
	}
	for i, m := range got {
		if m.Index != i {
			t.Errorf("message %d has index %d", i, m.Index)
		}
		if m.ID != messages[i].ID {
			t.Errorf("message %d id changed on re-insert", i)
		}
	}
}

func TestInsertMessagesMissingIncrementalAppend(t *testing.T) {
	db := setupTestDB(t)

	session := testSession(t)
	if err := UpsertSession(db, session); err != nil {
		t.Fatalf("UpsertSession() failed: %v", err)
	}

	all := testMessages(t, session.ID, 5)

	if _, err := InsertMessagesMissing(db, session.ID, all[:3]); err != nil {
		t.Fatalf("initial insert failed: %v", err)
	}

	// Re-parse delivers the full list; only the two new rows land.
	inserted, err := InsertMessagesMissing(db, session.ID, all)
	if err != nil {
		t.Fatalf("append insert failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("append insert = %d rows, want 2", inserted)
	}

	got, err := GetMessages(db, session.ID)
	if err != nil {
		t.Fatalf("GetMessages() failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("GetMessages() = %d messages, want 5", len(got))
	}
	for i, m := range got {
		if m.ID != all[i].ID {
			t.Errorf("message %d id mismatch after append", i)
		}
	}
}

func TestMessageIndexContiguity(t *testing.T) {
	db := setupTestDB(t)

	session := testSession(t)
	if err := UpsertSession(db, session); err != nil {
		t.Fatalf("UpsertSession() failed: %v", err)
	}

	if _, err := InsertMessagesMissing(db, session.ID, testMessages(t, session.ID, 7)); err != nil {
		t.Fatalf("InsertMessagesMissing() failed: %v", err)
	}

	got, err := GetMessages(db, session.ID)
	if err != nil {
		t.Fatalf("GetMessages() failed: %v", err)
	}
	for i, m := range got {
		if m.Index != i {
			t.Fatalf("index gap: position %d holds index %d", i, m.Index)
		}
	}
}

func TestRecountSessionMessages(t *testing.T) {
	db := setupTestDB(t)

	session := testSession(t)
	if err := UpsertSession(db, session); err != nil {
		t.Fatalf("UpsertSession() failed: %v", err)
	}
	if _, err := InsertMessagesMissing(db, session.ID, testMessages(t, session.ID, 4)); err != nil {
		t.Fatalf("InsertMessagesMissing() failed: %v", err)
	}

	count, err := RecountSessionMessages(db, session.ID)
	if err != nil {
		t.Fatalf("RecountSessionMessages() failed: %v", err)
	}
	if count != 4 {
		t.Errorf("RecountSessionMessages() = %d, want 4", count)
	}

	got, err := GetSession(db, session.ID.String())
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if got.MessageCount != 4 {
		t.Errorf("stored message_count = %d, want 4", got.MessageCount)
	}
}

func TestMessageContentRoundtrip(t *testing.T) {
	db := setupTestDB(t)

	session := testSession(t)
	if err := UpsertSession(db, session); err != nil {
		t.Fatalf("UpsertSession() failed: %v", err)
	}

	parent := uuid.New()
	message := &models.Message{
		ID:        parent,
		SessionID: session.ID,
		Index:     0,
		Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Role:      models.RoleAssistant,
		Content: models.BlockContent([]models.ContentBlock{
			{Type: models.BlockText, Text: "editing now"},
			{Type: models.BlockToolUse, ID: "t1", Name: "Edit", Input: []byte(`{"file_path":"/repo/a.go"}`)},
		}),
		Model:     "claude-sonnet-4",
		GitBranch: "main",
		CWD:       "/repo",
	}
	child := &models.Message{
		ID:        uuid.New(),
		SessionID: session.ID,
		ParentID:  &parent,
		Index:     1,
		Timestamp: message.Timestamp.Add(time.Second),
		Role:      models.RoleToolResult,
		Content:   models.TextContent("ok"),
	}

	if _, err := InsertMessagesMissing(db, session.ID, []*models.Message{message, child}); err != nil {
		t.Fatalf("InsertMessagesMissing() failed: %v", err)
	}

	got, err := GetMessages(db, session.ID)
	if err != nil {
		t.Fatalf("GetMessages() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetMessages() = %d messages", len(got))
	}
	if !got[0].Content.IsBlocks() || len(got[0].Content.Blocks) != 2 {
		t.Errorf("block content lost in roundtrip: %+v", got[0].Content)
	}
	if got[0].Content.Blocks[1].Name != "Edit" {
		t.Errorf("tool_use block lost: %+v", got[0].Content.Blocks[1])
	}
	if got[1].ParentID == nil || *got[1].ParentID != parent {
		t.Errorf("parent id lost in roundtrip: %v", got[1].ParentID)
	}
	if got[1].Role != models.RoleToolResult {
		t.Errorf("role = %q, want tool_result", got[1].Role)
	}
}
