package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies who produced a message in a session.
type MessageRole string

const (
	RoleHuman      MessageRole = "human"
	RoleAssistant  MessageRole = "assistant"
	RoleSystem     MessageRole = "system"
	RoleToolResult MessageRole = "tool_result"
)

// LinkOrigin records how a session link came to exist.
type LinkOrigin string

const (
	OriginManual       LinkOrigin = "manual"
	OriginAutoForward  LinkOrigin = "auto-forward"
	OriginAutoBackward LinkOrigin = "auto-backward"
	OriginHook         LinkOrigin = "hook"
)

// Session represents one complete human-AI collaboration captured from a tool.
type Session struct {
	ID               uuid.UUID  `json:"id"`
	Tool             string     `json:"tool"`
	ToolVersion      string     `json:"tool_version,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"` // nil while the session is live
	Model            string     `json:"model,omitempty"`
	WorkingDirectory string     `json:"working_directory"`
	BranchHistory    []string   `json:"branch_history,omitempty"` // ordered, consecutive duplicates collapsed
	SourcePath       string     `json:"source_path,omitempty"`
	Metadata         string     `json:"metadata,omitempty"`
	MessageCount     int        `json:"message_count"`
	MachineID        string     `json:"machine_id,omitempty"`
}

// AppendBranch appends a branch to the session's branch history, collapsing
// consecutive duplicates. Returns true if the history changed.
func (s *Session) AppendBranch(branch string) bool {
	if branch == "" {
		return false
	}
	if n := len(s.BranchHistory); n > 0 && s.BranchHistory[n-1] == branch {
		return false
	}
	s.BranchHistory = append(s.BranchHistory, branch)
	return true
}

// Finalised reports whether the session has an end timestamp.
func (s *Session) Finalised() bool {
	return s.EndedAt != nil
}

// Message is a single entry in a session dialogue.
type Message struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	ParentID  *uuid.UUID     `json:"parent_id,omitempty"`
	Index     int            `json:"index"`
	Timestamp time.Time      `json:"timestamp"`
	Role      MessageRole    `json:"role"`
	Content   MessageContent `json:"content"`
	Model     string         `json:"model,omitempty"`
	GitBranch string         `json:"git_branch,omitempty"`
	CWD       string         `json:"cwd,omitempty"`
}

// SessionLink connects a session to a git commit.
type SessionLink struct {
	ID         uuid.UUID  `json:"id"`
	SessionID  uuid.UUID  `json:"session_id"`
	CommitSHA  string     `json:"commit_sha"`
	RepoPath   string     `json:"repo_path"`
	CreatedAt  time.Time  `json:"created_at"`
	Origin     LinkOrigin `json:"origin"`
	Confidence float64    `json:"confidence"` // in [0,1]; 1.0 for manual and hook links
}

// SourceCursor is the per-source ingestion bookmark for incremental reads.
type SourceCursor struct {
	SourcePath        string    `json:"source_path"`
	Tool              string    `json:"tool"`
	LastSizeBytes     int64     `json:"last_size_bytes"`
	LastModified      time.Time `json:"last_modified"`
	ContentHashPrefix string    `json:"content_hash_prefix"`
	LastImportedAt    time.Time `json:"last_imported_at"`
}
