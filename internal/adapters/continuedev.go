package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// ContinueDevAdapter parses Continue.dev sessions stored as whole-file JSON
// documents in ~/.continue/sessions/. The format records no timestamps, so
// a timeline is synthesised backwards from the file mtime.
type ContinueDevAdapter struct {
	home string
}

// NewContinueDev returns the Continue.dev adapter rooted at home.
func NewContinueDev(home string) *ContinueDevAdapter {
	return &ContinueDevAdapter{home: home}
}

func (a *ContinueDevAdapter) sessionsDir() string {
	return filepath.Join(a.home, ".continue", "sessions")
}

func (a *ContinueDevAdapter) Info() Info {
	return Info{
		Name:         "continue",
		Description:  "Continue.dev extension sessions",
		FilePatterns: []string{"~/.continue/sessions/*.json"},
	}
}

func (a *ContinueDevAdapter) IsAvailable() bool {
	return dirExists(a.sessionsDir())
}

func (a *ContinueDevAdapter) WatchRoots() []string {
	return []string{a.sessionsDir()}
}

func (a *ContinueDevAdapter) Matches(path string) bool {
	return models.PathHasPrefix(path, a.sessionsDir()) && strings.HasSuffix(path, ".json")
}

func (a *ContinueDevAdapter) FindSources() ([]string, error) {
	dir := a.sessionsDir()
	if !dirExists(dir) {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", dir)
	}

	var sources []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			sources = append(sources, filepath.Join(dir, entry.Name()))
		}
	}
	return sources, nil
}

type continueRawSession struct {
	SessionID          string `json:"sessionId"`
	WorkspaceDirectory string `json:"workspaceDirectory"`
	ChatModelTitle     string `json:"chatModelTitle"`
	History            []struct {
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"history"`
}

func (a *ContinueDevAdapter) Parse(path string) ([]ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read session file: %s", path)
	}

	var raw continueRawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "failed to parse session JSON: %s", path)
	}
	if len(raw.History) == 0 {
		return nil, nil
	}

	sessionID := parseSessionID(raw.SessionID, path)

	endedAt := time.Now().UTC()
	if info, err := os.Stat(path); err == nil {
		endedAt = info.ModTime().UTC()
	}
	startedAt := endedAt.Add(-time.Duration(len(raw.History)) * 30 * time.Second)

	session := &models.Session{
		ID:               sessionID,
		Tool:             "continue",
		StartedAt:        startedAt,
		Model:            raw.ChatModelTitle,
		WorkingDirectory: raw.WorkspaceDirectory,
		SourcePath:       path,
	}

	var messages []*models.Message
	timestamp := startedAt
	for _, item := range raw.History {
		// Thinking and tool records are interleaved in the history but are
		// not dialogue turns.
		role, ok := parseRoleName(item.Message.Role)
		if !ok {
			continue
		}

		text := continueContentText(item.Message.Content)
		if strings.TrimSpace(text) == "" {
			continue
		}

		messages = append(messages, &models.Message{
			Timestamp: timestamp,
			Role:      role,
			Content:   models.TextContent(text),
		})
		timestamp = timestamp.Add(30 * time.Second)
	}

	if len(messages) == 0 {
		return nil, nil
	}

	session.MessageCount = len(messages)
	for i, m := range messages {
		m.ID = DeriveMessageID(sessionID, i)
		m.SessionID = sessionID
		m.Index = i
		m.Model = session.Model
		m.CWD = session.WorkingDirectory
	}

	return []ParseResult{{Session: session, Messages: messages}}, nil
}

// continueContentText extracts text from a Continue message body, which is
// either a string or an array of typed parts.
func continueContentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
