package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// VSCodeExtensionConfig identifies a VS Code extension using the
// Cline-style task storage layout.
type VSCodeExtensionConfig struct {
	Name        string
	Description string
	ExtensionID string
}

// VSCodeExtensionAdapter parses conversations from VS Code extensions that
// store tasks as
// <globalStorage>/<extension>/tasks/<task>/api_conversation_history.json.
// Cline, Roo Code and Kilo Code all share this format.
type VSCodeExtensionAdapter struct {
	home   string
	config VSCodeExtensionConfig
}

// NewVSCodeExtension returns an adapter for one extension id.
func NewVSCodeExtension(home string, config VSCodeExtensionConfig) *VSCodeExtensionAdapter {
	return &VSCodeExtensionAdapter{home: home, config: config}
}

// NewCline returns the Cline (Claude Dev) adapter.
func NewCline(home string) *VSCodeExtensionAdapter {
	return NewVSCodeExtension(home, VSCodeExtensionConfig{
		Name:        "cline",
		Description: "Cline (Claude Dev) VS Code extension sessions",
		ExtensionID: "saoudrizwan.claude-dev",
	})
}

// NewRooCode returns the Roo Code adapter.
func NewRooCode(home string) *VSCodeExtensionAdapter {
	return NewVSCodeExtension(home, VSCodeExtensionConfig{
		Name:        "roo-code",
		Description: "Roo Code VS Code extension sessions",
		ExtensionID: "rooveterinaryinc.roo-cline",
	})
}

// NewKiloCode returns the Kilo Code adapter.
func NewKiloCode(home string) *VSCodeExtensionAdapter {
	return NewVSCodeExtension(home, VSCodeExtensionConfig{
		Name:        "kilo-code",
		Description: "Kilo Code VS Code extension sessions",
		ExtensionID: "kilocode.Kilo-Code",
	})
}

const taskHistoryFile = "api_conversation_history.json"

func (a *VSCodeExtensionAdapter) tasksDir() string {
	return filepath.Join(vscodeGlobalStorage(a.home), a.config.ExtensionID, "tasks")
}

func (a *VSCodeExtensionAdapter) Info() Info {
	return Info{
		Name:         a.config.Name,
		Description:  a.config.Description,
		FilePatterns: []string{"<vscode globalStorage>/" + a.config.ExtensionID + "/tasks/*/" + taskHistoryFile},
	}
}

func (a *VSCodeExtensionAdapter) IsAvailable() bool {
	return dirExists(a.tasksDir())
}

func (a *VSCodeExtensionAdapter) WatchRoots() []string {
	return []string{a.tasksDir()}
}

func (a *VSCodeExtensionAdapter) Matches(path string) bool {
	return models.PathHasPrefix(path, a.tasksDir()) && filepath.Base(path) == taskHistoryFile
}

func (a *VSCodeExtensionAdapter) FindSources() ([]string, error) {
	dir := a.tasksDir()
	if !dirExists(dir) {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", dir)
	}

	var sources []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), taskHistoryFile)
		if fileExists(path) {
			sources = append(sources, path)
		}
	}
	return sources, nil
}

type vscodeRawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	TS      int64           `json:"ts"`
}

func (a *VSCodeExtensionAdapter) Parse(path string) ([]ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read conversation history: %s", path)
	}

	var raw []vscodeRawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "failed to parse conversation history: %s", path)
	}

	mtime := time.Now().UTC()
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime().UTC()
	}

	// The task directory name is the stable identity for this
	// conversation.
	taskDir := filepath.Dir(path)
	sessionID := DeriveSessionID(taskDir)

	session := &models.Session{
		ID:         sessionID,
		Tool:       a.config.Name,
		SourcePath: path,
	}

	var messages []*models.Message
	for _, m := range raw {
		role, ok := parseRoleName(m.Role)
		if !ok {
			continue
		}

		content, err := parseClaudeContent(m.Content)
		if err != nil {
			continue
		}
		if content.PlainText() == "" && !content.IsBlocks() {
			continue
		}
		if role == models.RoleHuman && isAllToolResults(content) {
			role = models.RoleToolResult
		}

		var timestamp time.Time
		if m.TS > 0 {
			timestamp = parseMillis(m.TS)
		} else {
			// Some extension versions drop timestamps; synthesise a
			// timeline ending at the file mtime.
			timestamp = mtime.Add(time.Duration(len(messages)-len(raw)) * 30 * time.Second)
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
	}

	return []ParseResult{{Session: session, Messages: messages}}, nil
}
