package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func toolUseMessage(t *testing.T, tool string, input string) *Message {
	t.Helper()

	return &Message{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Index:     0,
		Timestamp: time.Now(),
		Role:      RoleAssistant,
		Content: BlockContent([]ContentBlock{{
			Type:  BlockToolUse,
			ID:    "tool_1",
			Name:  tool,
			Input: json.RawMessage(input),
		}}),
	}
}

func containsFile(files []string, want string) bool {
	for _, f := range files {
		if f == want {
			return true
		}
	}
	return false
}

func TestExtractSessionFilesReadTool(t *testing.T) {
	messages := []*Message{
		toolUseMessage(t, "Read", `{"file_path": "/home/user/project/src/main.go"}`),
	}

	files := ExtractSessionFiles(messages, "/home/user/project")
	if !containsFile(files, "src/main.go") {
		t.Errorf("expected src/main.go in %v", files)
	}
}

func TestExtractSessionFilesEditTool(t *testing.T) {
	messages := []*Message{
		toolUseMessage(t, "Edit", `{"file_path": "/home/user/project/src/lib.go", "old_string": "a", "new_string": "b"}`),
	}

	files := ExtractSessionFiles(messages, "/home/user/project")
	if !containsFile(files, "src/lib.go") {
		t.Errorf("expected src/lib.go in %v", files)
	}
}

func TestExtractSessionFilesMultipleTools(t *testing.T) {
	messages := []*Message{
		toolUseMessage(t, "Read", `{"file_path": "/project/a.go"}`),
		toolUseMessage(t, "Write", `{"file_path": "/project/b.go", "content": "..."}`),
		toolUseMessage(t, "Edit", `{"file_path": "/project/c.go", "old_string": "x", "new_string": "y"}`),
	}

	files := ExtractSessionFiles(messages, "/project")
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %v", files)
	}
	for _, want := range []string{"a.go", "b.go", "c.go"} {
		if !containsFile(files, want) {
			t.Errorf("expected %s in %v", want, files)
		}
	}
}

func TestExtractSessionFilesDeduplicates(t *testing.T) {
	messages := []*Message{
		toolUseMessage(t, "Read", `{"file_path": "/project/src/main.go"}`),
		toolUseMessage(t, "Edit", `{"file_path": "/project/src/main.go", "old_string": "a", "new_string": "b"}`),
	}

	files := ExtractSessionFiles(messages, "/project")
	if len(files) != 1 || !containsFile(files, "src/main.go") {
		t.Errorf("expected exactly src/main.go, got %v", files)
	}
}

func TestExtractSessionFilesBashCommand(t *testing.T) {
	messages := []*Message{
		toolUseMessage(t, "Bash", `{"command": "cat ./src/auth.go | grep token"}`),
	}

	files := ExtractSessionFiles(messages, "/project")
	if !containsFile(files, "src/auth.go") {
		t.Errorf("expected src/auth.go in %v", files)
	}
}

func TestExtractSessionFilesTextOnly(t *testing.T) {
	messages := []*Message{{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Role:      RoleHuman,
		Content:   TextContent("Please fix the bug"),
	}}

	files := ExtractSessionFiles(messages, "/project")
	if len(files) != 0 {
		t.Errorf("expected no files, got %v", files)
	}
}

func TestMakeRelative(t *testing.T) {
	tests := []struct {
		name string
		path string
		wd   string
		want string
		ok   bool
	}{
		{"absolute under wd", "/home/user/project/src/main.go", "/home/user/project", "src/main.go", true},
		{"trailing slash wd", "/home/user/project/src/main.go", "/home/user/project/", "src/main.go", true},
		{"already relative", "src/main.go", "/home/user/project", "src/main.go", true},
		{"dot slash prefix", "./src/main.go", "/home/user/project", "src/main.go", true},
		{"outside wd kept as-is", "/other/path/file.go", "/home/user/project", "/other/path/file.go", true},
		{"empty relative", "./", "/home/user/project", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := makeRelative(tt.path, tt.wd)
			if ok != tt.ok || got != tt.want {
				t.Errorf("makeRelative(%q, %q) = (%q, %v), want (%q, %v)", tt.path, tt.wd, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPathHasPrefix(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		want   bool
	}{
		{"/home/a/project", "/home/a/project", true},
		{"/home/a/project/sub", "/home/a/project", true},
		{"/home/a/project-old", "/home/a/project", false},
		{"/home/a/project", "/home/a/project-old", false},
		{"/home/a/project/", "/home/a/project", true},
		{"/home/a", "/home/a/project", false},
		{"/home/a/project", "", false},
	}

	for _, tt := range tests {
		if got := PathHasPrefix(tt.path, tt.prefix); got != tt.want {
			t.Errorf("PathHasPrefix(%q, %q) = %v, want %v", tt.path, tt.prefix, got, tt.want)
		}
	}
}
