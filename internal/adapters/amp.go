package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// AmpAdapter parses Sourcegraph Amp threads stored as single JSON files at
// ~/.local/share/amp/threads/T-<uuid>.json.
type AmpAdapter struct {
	home string
}

// NewAmp returns the Amp adapter rooted at home.
func NewAmp(home string) *AmpAdapter {
	return &AmpAdapter{home: home}
}

func (a *AmpAdapter) threadsDir() string {
	return filepath.Join(a.home, ".local", "share", "amp", "threads")
}

func (a *AmpAdapter) Info() Info {
	return Info{
		Name:         "amp",
		Description:  "Amp CLI (Sourcegraph) threads",
		FilePatterns: []string{"~/.local/share/amp/threads/T-*.json"},
	}
}

func (a *AmpAdapter) IsAvailable() bool {
	return dirExists(a.threadsDir())
}

func (a *AmpAdapter) WatchRoots() []string {
	return []string{a.threadsDir()}
}

func (a *AmpAdapter) Matches(path string) bool {
	if !models.PathHasPrefix(path, a.threadsDir()) {
		return false
	}
	base := filepath.Base(path)
	return strings.HasPrefix(base, "T-") && strings.HasSuffix(base, ".json")
}

func (a *AmpAdapter) FindSources() ([]string, error) {
	dir := a.threadsDir()
	if !dirExists(dir) {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", dir)
	}

	var sources []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !entry.IsDir() && a.Matches(path) {
			sources = append(sources, path)
		}
	}
	return sources, nil
}

type ampRawThread struct {
	ID       string          `json:"id"`
	Created  int64           `json:"created"`
	Messages []ampRawMessage `json:"messages"`
	Env      *struct {
		Initial *struct {
			Trees []struct {
				URI        string `json:"uri"`
				Repository *struct {
					Ref string `json:"ref"`
				} `json:"repository"`
			} `json:"trees"`
		} `json:"initial"`
	} `json:"env"`
}

type ampRawMessage struct {
	Role    string `json:"role"`
	Content []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"content"`
	Meta *struct {
		SentAt int64 `json:"sentAt"`
	} `json:"meta"`
	Usage *struct {
		Model string `json:"model"`
	} `json:"usage"`
}

func (a *AmpAdapter) Parse(path string) ([]ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read thread file: %s", path)
	}

	var raw ampRawThread
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "failed to parse thread JSON: %s", path)
	}

	sessionID := parseSessionID(strings.TrimPrefix(raw.ID, "T-"), path)
	createdAt := parseMillis(raw.Created)

	session := &models.Session{
		ID:         sessionID,
		Tool:       "amp",
		StartedAt:  createdAt,
		SourcePath: path,
	}

	if raw.Env != nil && raw.Env.Initial != nil && len(raw.Env.Initial.Trees) > 0 {
		tree := raw.Env.Initial.Trees[0]
		session.WorkingDirectory = strings.TrimPrefix(tree.URI, "file://")
		if tree.Repository != nil {
			session.AppendBranch(strings.TrimPrefix(tree.Repository.Ref, "refs/heads/"))
		}
	}

	var messages []*models.Message
	for _, m := range raw.Messages {
		role, ok := parseRoleName(m.Role)
		if !ok {
			continue
		}

		var blocks []models.ContentBlock
		hasThinking := false
		for _, c := range m.Content {
			switch c.Type {
			case "text":
				blocks = append(blocks, models.ContentBlock{Type: models.BlockText, Text: c.Text})
			case "thinking":
				hasThinking = true
				blocks = append(blocks, models.ContentBlock{Type: models.BlockThinking, Thinking: c.Thinking})
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if session.Model == "" && role == models.RoleAssistant && m.Usage != nil {
			session.Model = m.Usage.Model
		}

		timestamp := createdAt
		if m.Meta != nil && m.Meta.SentAt > 0 {
			timestamp = parseMillis(m.Meta.SentAt)
		}

		var content models.MessageContent
		if hasThinking || len(blocks) > 1 {
			content = models.BlockContent(blocks)
		} else {
			content = models.TextContent(blocks[0].Text)
		}

		messages = append(messages, &models.Message{
			Timestamp: timestamp,
			Role:      role,
			Content:   content,
		})
	}

	if len(messages) == 0 {
		return nil, nil
	}

	session.StartedAt = messages[0].Timestamp
	session.MessageCount = len(messages)

	for i, m := range messages {
		m.ID = DeriveMessageID(sessionID, i)
		m.SessionID = sessionID
		m.Index = i
		m.CWD = session.WorkingDirectory
	}

	return []ParseResult{{Session: session, Messages: messages}}, nil
}
