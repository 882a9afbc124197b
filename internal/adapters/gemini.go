package adapters

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// GeminiAdapter parses Google Gemini CLI chats stored as whole-file JSON at
// ~/.gemini/tmp/<project-hash>/chats/session-*.json.
type GeminiAdapter struct {
	home string
}

// NewGemini returns the Gemini adapter rooted at home.
func NewGemini(home string) *GeminiAdapter {
	return &GeminiAdapter{home: home}
}

func (a *GeminiAdapter) baseDir() string {
	return filepath.Join(a.home, ".gemini", "tmp")
}

func (a *GeminiAdapter) Info() Info {
	return Info{
		Name:         "gemini",
		Description:  "Google Gemini CLI sessions",
		FilePatterns: []string{"~/.gemini/tmp/*/chats/session-*.json"},
	}
}

func (a *GeminiAdapter) IsAvailable() bool {
	return dirExists(a.baseDir())
}

func (a *GeminiAdapter) WatchRoots() []string {
	return []string{a.baseDir()}
}

func (a *GeminiAdapter) Matches(path string) bool {
	if !models.PathHasPrefix(path, a.baseDir()) {
		return false
	}
	base := filepath.Base(path)
	return strings.HasPrefix(base, "session-") && strings.HasSuffix(base, ".json")
}

func (a *GeminiAdapter) FindSources() ([]string, error) {
	dir := a.baseDir()
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

type geminiRawSession struct {
	SessionID   string `json:"sessionId"`
	StartTime   string `json:"startTime"`
	LastUpdated string `json:"lastUpdated"`
	Messages    []struct {
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Content   string `json:"content"`
	} `json:"messages"`
}

func (a *GeminiAdapter) Parse(path string) ([]ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read session file: %s", path)
	}

	var raw geminiRawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "failed to parse session JSON: %s", path)
	}

	sessionID := parseSessionID(raw.SessionID, path)

	session := &models.Session{
		ID:         sessionID,
		Tool:       "gemini",
		SourcePath: path,
	}
	if t, ok := parseRFC3339(raw.StartTime); ok {
		session.StartedAt = t
	}

	var messages []*models.Message
	for _, m := range raw.Messages {
		var role models.MessageRole
		switch m.Type {
		case "user":
			role = models.RoleHuman
		case "gemini", "assistant":
			role = models.RoleAssistant
		default:
			continue
		}

		if strings.TrimSpace(m.Content) == "" {
			continue
		}

		timestamp, ok := parseRFC3339(m.Timestamp)
		if !ok {
			timestamp = session.StartedAt
		}

		messages = append(messages, &models.Message{
			Timestamp: timestamp,
			Role:      role,
			Content:   models.TextContent(m.Content),
		})
	}

	if len(messages) == 0 {
		return nil, nil
	}

	if session.StartedAt.IsZero() {
		session.StartedAt = messages[0].Timestamp
	}
	session.MessageCount = len(messages)

	for i, m := range messages {
		m.ID = DeriveMessageID(sessionID, i)
		m.SessionID = sessionID
		m.Index = i
	}

	return []ParseResult{{Session: session, Messages: messages}}, nil
}
