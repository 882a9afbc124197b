package adapters

import (
	"bufio"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// CodexAdapter parses OpenAI Codex CLI rollouts stored as JSONL under
// ~/.codex/sessions/YYYY/MM/DD/rollout-*.jsonl. A session_meta line carries
// the metadata; response_item lines carry the messages.
type CodexAdapter struct {
	home string
}

// NewCodex returns the Codex adapter rooted at home.
func NewCodex(home string) *CodexAdapter {
	return &CodexAdapter{home: home}
}

func (a *CodexAdapter) sessionsDir() string {
	return filepath.Join(a.home, ".codex", "sessions")
}

func (a *CodexAdapter) Info() Info {
	return Info{
		Name:         "codex",
		Description:  "OpenAI Codex CLI sessions",
		FilePatterns: []string{"~/.codex/sessions/*/*/*/rollout-*.jsonl"},
	}
}

func (a *CodexAdapter) IsAvailable() bool {
	return dirExists(a.sessionsDir())
}

func (a *CodexAdapter) WatchRoots() []string {
	return []string{a.sessionsDir()}
}

func (a *CodexAdapter) Matches(path string) bool {
	if !models.PathHasPrefix(path, a.sessionsDir()) {
		return false
	}
	base := filepath.Base(path)
	return strings.HasPrefix(base, "rollout-") && strings.HasSuffix(base, ".jsonl")
}

func (a *CodexAdapter) FindSources() ([]string, error) {
	dir := a.sessionsDir()
	if !dirExists(dir) {
		return nil, nil
	}

	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if !d.IsDir() && a.Matches(path) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to walk %s", dir)
	}
	return sources, nil
}

type codexRawEntry struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type codexSessionMeta struct {
	ID            string `json:"id"`
	CWD           string `json:"cwd"`
	CLIVersion    string `json:"cli_version"`
	ModelProvider string `json:"model_provider"`
	Git           *struct {
		Branch string `json:"branch"`
	} `json:"git"`
}

type codexResponseItem struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *CodexAdapter) Parse(path string) ([]ParseResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open session file: %s", path)
	}
	defer file.Close()

	session := &models.Session{
		Tool:       "codex",
		SourcePath: path,
	}
	var messages []*models.Message

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry codexRawEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}

		switch entry.Type {
		case "session_meta":
			var meta codexSessionMeta
			if err := json.Unmarshal(entry.Payload, &meta); err != nil {
				continue
			}
			if session.ID == uuid.Nil && meta.ID != "" {
				session.ID = parseSessionID(meta.ID, path)
			}
			if session.WorkingDirectory == "" {
				session.WorkingDirectory = meta.CWD
			}
			if session.ToolVersion == "" {
				session.ToolVersion = meta.CLIVersion
			}
			if session.Model == "" {
				session.Model = meta.ModelProvider
			}
			if meta.Git != nil {
				session.AppendBranch(meta.Git.Branch)
			}

		case "response_item":
			var item codexResponseItem
			if err := json.Unmarshal(entry.Payload, &item); err != nil {
				continue
			}
			if item.Type != "message" {
				continue
			}
			role, ok := parseRoleName(item.Role)
			if !ok {
				continue
			}

			var parts []string
			for _, c := range item.Content {
				if (c.Type == "input_text" || c.Type == "text") && c.Text != "" {
					parts = append(parts, c.Text)
				}
			}
			text := strings.Join(parts, "\n")
			if strings.TrimSpace(text) == "" {
				continue
			}

			timestamp, ok := parseRFC3339(entry.Timestamp)
			if !ok {
				continue
			}

			messages = append(messages, &models.Message{
				Timestamp: timestamp,
				Role:      role,
				Content:   models.TextContent(text),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "failed to read session file: %s", path)
	}

	if len(messages) == 0 {
		return nil, nil
	}

	if session.ID == uuid.Nil {
		session.ID = DeriveSessionID(path)
	}
	session.StartedAt = messages[0].Timestamp
	session.MessageCount = len(messages)

	for i, m := range messages {
		m.ID = DeriveMessageID(session.ID, i)
		m.SessionID = session.ID
		m.Index = i
		m.Model = session.Model
		m.CWD = session.WorkingDirectory
	}

	return []ParseResult{{Session: session, Messages: messages}}, nil
}
