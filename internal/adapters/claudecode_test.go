package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/lorehq/lore/internal/models"
)

const claudeSessionID = "550e8400-e29b-41d4-a716-446655440000"

// writeClaudeSource writes a JSONL session file under a fake home
// directory and returns (adapter, path).
func writeClaudeSource(t *testing.T, lines ...string) (*ClaudeCodeAdapter, string) {
	t.Helper()

	home := t.TempDir()
	dir := filepath.Join(home, ".claude", "projects", "-home-user-project")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	path := filepath.Join(dir, claudeSessionID+".jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	return NewClaudeCode(home), path
}

func claudeLine(msgType, role, timestamp, content string) string {
	return `{"type":"` + msgType + `","sessionId":"` + claudeSessionID + `","uuid":"` + uuid.NewString() + `","timestamp":"` + timestamp + `","cwd":"/home/user/project","gitBranch":"main","version":"2.0.72","message":{"role":"` + role + `","model":"claude-sonnet-4","content":` + content + `}}`
}

func TestClaudeCodeParseToolUseSession(t *testing.T) {
	adapter, path := writeClaudeSource(t,
		claudeLine("user", "user", "2025-06-01T10:00:00Z", `"Add rate limiting"`),
		claudeLine("assistant", "assistant", "2025-06-01T10:01:00Z",
			`[{"type":"text","text":"Editing now."},{"type":"tool_use","id":"t1","name":"Edit","input":{"file_path":"/home/user/project/src/auth.ts","old_string":"a","new_string":"b"}}]`),
		claudeLine("user", "user", "2025-06-01T10:01:30Z",
			`[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]`),
	)

	results, err := adapter.Parse(path)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Parse() = %d results, want 1", len(results))
	}

	session := results[0].Session
	messages := results[0].Messages

	if session.ID.String() != claudeSessionID {
		t.Errorf("session id = %s, want native %s", session.ID, claudeSessionID)
	}
	if session.Tool != "claude-code" {
		t.Errorf("tool = %q", session.Tool)
	}
	if session.MessageCount != 3 || len(messages) != 3 {
		t.Fatalf("message count = %d/%d, want 3", session.MessageCount, len(messages))
	}
	if session.WorkingDirectory != "/home/user/project" {
		t.Errorf("working directory = %q", session.WorkingDirectory)
	}
	if session.Model != "claude-sonnet-4" {
		t.Errorf("model = %q", session.Model)
	}

	wantRoles := []models.MessageRole{models.RoleHuman, models.RoleAssistant, models.RoleToolResult}
	for i, want := range wantRoles {
		if messages[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, messages[i].Role, want)
		}
		if messages[i].Index != i {
			t.Errorf("message %d index = %d", i, messages[i].Index)
		}
	}

	files := models.ExtractSessionFiles(messages, session.WorkingDirectory)
	if len(files) != 1 || files[0] != "src/auth.ts" {
		t.Errorf("files mentioned = %v, want [src/auth.ts]", files)
	}
}

func TestClaudeCodeParseMalformedMiddleLine(t *testing.T) {
	adapter, path := writeClaudeSource(t,
		claudeLine("user", "user", "2025-06-01T10:00:00Z", `"one"`),
		claudeLine("assistant", "assistant", "2025-06-01T10:01:00Z", `"two"`),
		`{this is not valid json`,
		claudeLine("user", "user", "2025-06-01T10:02:00Z", `"three"`),
		claudeLine("assistant", "assistant", "2025-06-01T10:03:00Z", `"four"`),
	)

	results, err := adapter.Parse(path)
	if err != nil {
		t.Fatalf("Parse() should tolerate malformed lines: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Parse() = %d results, want 1", len(results))
	}

	messages := results[0].Messages
	if len(messages) != 4 {
		t.Fatalf("Parse() = %d messages, want 4 well-formed", len(messages))
	}
	for i, m := range messages {
		if m.Index != i {
			t.Errorf("message %d has index %d, indices must stay contiguous", i, m.Index)
		}
	}
}

func TestClaudeCodeSkipsSidechains(t *testing.T) {
	sidechain := `{"type":"assistant","sessionId":"` + claudeSessionID + `","uuid":"` + uuid.NewString() + `","timestamp":"2025-06-01T10:00:30Z","isSidechain":true,"message":{"role":"assistant","content":"speculative"}}`

	adapter, path := writeClaudeSource(t,
		claudeLine("user", "user", "2025-06-01T10:00:00Z", `"hello"`),
		sidechain,
		claudeLine("assistant", "assistant", "2025-06-01T10:01:00Z", `"hi"`),
	)

	results, err := adapter.Parse(path)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(results[0].Messages) != 2 {
		t.Errorf("sidechain message should be dropped, got %d messages", len(results[0].Messages))
	}
}

func TestClaudeCodeParseIsDeterministic(t *testing.T) {
	adapter, path := writeClaudeSource(t,
		claudeLine("user", "user", "2025-06-01T10:00:00Z", `"hello"`),
		claudeLine("assistant", "assistant", "2025-06-01T10:01:00Z", `"hi"`),
	)

	first, err := adapter.Parse(path)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	second, err := adapter.Parse(path)
	if err != nil {
		t.Fatalf("re-Parse() failed: %v", err)
	}

	if first[0].Session.ID != second[0].Session.ID {
		t.Error("session id must be stable across re-parses")
	}
	for i := range first[0].Messages {
		if first[0].Messages[i].ID != second[0].Messages[i].ID {
			t.Errorf("message %d id changed across re-parses", i)
		}
	}
}

func TestClaudeCodeMatches(t *testing.T) {
	home := t.TempDir()
	adapter := NewClaudeCode(home)

	projects := filepath.Join(home, ".claude", "projects")
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(projects, "p", claudeSessionID+".jsonl"), true},
		{filepath.Join(projects, "p", "agent-123.jsonl"), false},
		{filepath.Join(projects, "p", "notes.txt"), false},
		{filepath.Join(home, "elsewhere", "x.jsonl"), false},
	}
	for _, tt := range tests {
		if got := adapter.Matches(tt.path); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestClaudeCodeFindSources(t *testing.T) {
	adapter, path := writeClaudeSource(t,
		claudeLine("user", "user", "2025-06-01T10:00:00Z", `"hello"`),
	)

	// Agent transcripts must not be enumerated.
	agent := filepath.Join(filepath.Dir(path), "agent-"+claudeSessionID+".jsonl")
	if err := os.WriteFile(agent, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	sources, err := adapter.FindSources()
	if err != nil {
		t.Fatalf("FindSources() failed: %v", err)
	}
	if len(sources) != 1 || sources[0] != path {
		t.Errorf("FindSources() = %v, want [%s]", sources, path)
	}
}
