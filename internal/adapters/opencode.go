package adapters

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// OpenCodeAdapter parses OpenCode CLI sessions, which are spread across a
// multi-file layout under ~/.local/share/opencode/storage/:
//
//	session/<project>/ses_*.json   session metadata
//	message/<session-id>/msg_*.json message role and timing
//	part/<message-id>/prt_*.json    text and tool parts
//
// The session file is the source handed to Parse; the adapter assembles the
// sibling message and part files from it.
type OpenCodeAdapter struct {
	home string
}

// NewOpenCode returns the OpenCode adapter rooted at home.
func NewOpenCode(home string) *OpenCodeAdapter {
	return &OpenCodeAdapter{home: home}
}

func (a *OpenCodeAdapter) storageDir() string {
	return filepath.Join(a.home, ".local", "share", "opencode", "storage")
}

func (a *OpenCodeAdapter) Info() Info {
	return Info{
		Name:         "opencode",
		Description:  "OpenCode CLI sessions",
		FilePatterns: []string{"~/.local/share/opencode/storage/session/*/*.json"},
	}
}

func (a *OpenCodeAdapter) IsAvailable() bool {
	return dirExists(a.storageDir())
}

func (a *OpenCodeAdapter) WatchRoots() []string {
	return []string{a.storageDir()}
}

func (a *OpenCodeAdapter) Matches(path string) bool {
	return models.PathHasPrefix(path, filepath.Join(a.storageDir(), "session")) &&
		strings.HasSuffix(path, ".json")
}

func (a *OpenCodeAdapter) FindSources() ([]string, error) {
	dir := filepath.Join(a.storageDir(), "session")
	if !dirExists(dir) {
		return nil, nil
	}

	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to walk %s", dir)
	}
	return sources, nil
}

type opencodeRawSession struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	Directory string `json:"directory"`
	Time      *struct {
		Created int64 `json:"created"`
		Updated int64 `json:"updated"`
	} `json:"time"`
}

type opencodeRawMessage struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Time *struct {
		Created int64 `json:"created"`
	} `json:"time"`
	ModelID string `json:"modelID"`
	Model   *struct {
		ModelID string `json:"modelID"`
	} `json:"model"`
}

type opencodeRawPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Tool string `json:"tool"`
}

func (a *OpenCodeAdapter) Parse(path string) ([]ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read session file: %s", path)
	}

	var raw opencodeRawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "failed to parse session JSON: %s", path)
	}
	if raw.ID == "" {
		return nil, nil
	}

	sessionID := parseSessionID(strings.TrimPrefix(raw.ID, "ses_"), path)

	session := &models.Session{
		ID:               sessionID,
		Tool:             "opencode",
		ToolVersion:      raw.Version,
		WorkingDirectory: raw.Directory,
		SourcePath:       path,
	}
	if raw.Time != nil {
		session.StartedAt = parseMillis(raw.Time.Created)
	}

	messages, err := a.assembleMessages(raw.ID, session)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	if session.StartedAt.IsZero() {
		session.StartedAt = messages[0].Timestamp
	}
	session.MessageCount = len(messages)

	return []ParseResult{{Session: session, Messages: messages}}, nil
}

// assembleMessages loads the per-message files and their parts for one
// session id.
func (a *OpenCodeAdapter) assembleMessages(nativeID string, session *models.Session) ([]*models.Message, error) {
	messageDir := filepath.Join(a.storageDir(), "message", nativeID)
	entries, err := os.ReadDir(messageDir)
	if err != nil {
		// A session without a message directory has no dialogue yet.
		return nil, nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	// Message ids are lexicographically ordered by creation.
	sort.Strings(names)

	var messages []*models.Message
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(messageDir, name))
		if err != nil {
			continue
		}

		var raw opencodeRawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}

		role, ok := parseRoleName(raw.Role)
		if !ok {
			continue
		}

		content := a.assembleParts(raw.ID)
		if !content.IsBlocks() && strings.TrimSpace(content.Text) == "" {
			continue
		}

		model := raw.ModelID
		if model == "" && raw.Model != nil {
			model = raw.Model.ModelID
		}
		if session.Model == "" && role == models.RoleAssistant {
			session.Model = model
		}

		timestamp := session.StartedAt
		if raw.Time != nil {
			timestamp = parseMillis(raw.Time.Created)
		}

		messages = append(messages, &models.Message{
			Timestamp: timestamp,
			Role:      role,
			Content:   content,
			Model:     model,
			CWD:       session.WorkingDirectory,
		})
	}

	for i, m := range messages {
		m.ID = DeriveMessageID(session.ID, i)
		m.SessionID = session.ID
		m.Index = i
	}

	return messages, nil
}

// assembleParts loads a message's part files and folds them into content.
func (a *OpenCodeAdapter) assembleParts(messageID string) models.MessageContent {
	partDir := filepath.Join(a.storageDir(), "part", messageID)
	entries, err := os.ReadDir(partDir)
	if err != nil {
		return models.TextContent("")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var blocks []models.ContentBlock
	hasTool := false
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(partDir, name))
		if err != nil {
			continue
		}

		var raw opencodeRawPart
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}

		switch raw.Type {
		case "text":
			if raw.Text != "" {
				blocks = append(blocks, models.ContentBlock{Type: models.BlockText, Text: raw.Text})
			}
		case "tool":
			hasTool = true
			blocks = append(blocks, models.ContentBlock{Type: models.BlockToolUse, Name: raw.Tool})
		}
	}

	if len(blocks) == 0 {
		return models.TextContent("")
	}
	if !hasTool && len(blocks) == 1 {
		return models.TextContent(blocks[0].Text)
	}
	return models.BlockContent(blocks)
}
