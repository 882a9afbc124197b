package adapters

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/lorehq/lore/internal/models"
)

// CursorAdapter parses AI chat conversations out of Cursor's per-workspace
// SQLite databases (state.vscdb). Conversation data lives in the ItemTable
// key/value store as JSON under workbench.panel.aichat keys; each chat tab
// becomes one session.
type CursorAdapter struct {
	home string
}

// NewCursor returns the Cursor adapter rooted at home.
func NewCursor(home string) *CursorAdapter {
	return &CursorAdapter{home: home}
}

func (a *CursorAdapter) storageDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(a.home, "Library", "Application Support", "Cursor", "User", "workspaceStorage")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Cursor", "User", "workspaceStorage")
		}
		return filepath.Join(a.home, "AppData", "Roaming", "Cursor", "User", "workspaceStorage")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Cursor", "User", "workspaceStorage")
		}
		return filepath.Join(a.home, ".config", "Cursor", "User", "workspaceStorage")
	}
}

func (a *CursorAdapter) Info() Info {
	return Info{
		Name:         "cursor",
		Description:  "Cursor IDE AI conversations",
		FilePatterns: []string{"<Cursor workspaceStorage>/*/state.vscdb"},
	}
}

func (a *CursorAdapter) IsAvailable() bool {
	return dirExists(a.storageDir())
}

func (a *CursorAdapter) WatchRoots() []string {
	return []string{a.storageDir()}
}

func (a *CursorAdapter) Matches(path string) bool {
	return models.PathHasPrefix(path, a.storageDir()) && filepath.Base(path) == "state.vscdb"
}

func (a *CursorAdapter) FindSources() ([]string, error) {
	dir := a.storageDir()
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
		path := filepath.Join(dir, entry.Name(), "state.vscdb")
		if fileExists(path) {
			sources = append(sources, path)
		}
	}
	return sources, nil
}

type cursorChatData struct {
	Tabs []struct {
		TabID   string         `json:"tabId"`
		Bubbles []cursorBubble `json:"bubbles"`
	} `json:"tabs"`
}

type cursorBubble struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (a *CursorAdapter) Parse(path string) ([]ParseResult, error) {
	// The database belongs to a running editor; open it read-only.
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)", path)
	store, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open workspace database: %s", path)
	}
	defer store.Close()

	rows, err := store.Query(
		"SELECT value FROM ItemTable WHERE key LIKE 'workbench.panel.aichat%'",
	)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query workspace database: %s", path)
	}
	defer rows.Close()

	mtime := time.Now().UTC()
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime().UTC()
	}
	workingDirectory := a.workspaceFolder(path)

	var results []ParseResult
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			continue
		}

		var chat cursorChatData
		if err := json.Unmarshal([]byte(value), &chat); err != nil {
			continue
		}

		for _, tab := range chat.Tabs {
			result, ok := a.parseTab(path, tab.TabID, tab.Bubbles, workingDirectory, mtime)
			if ok {
				results = append(results, result)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "error iterating workspace database: %s", path)
	}

	return results, nil
}

func (a *CursorAdapter) parseTab(path, tabID string, bubbles []cursorBubble, workingDirectory string, mtime time.Time) (ParseResult, bool) {
	sessionID := parseSessionID(tabID, path+"#"+tabID)

	var messages []*models.Message
	for _, b := range bubbles {
		var role models.MessageRole
		switch b.Type {
		case "user":
			role = models.RoleHuman
		case "ai":
			role = models.RoleAssistant
		default:
			continue
		}
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		messages = append(messages, &models.Message{
			Role:    role,
			Content: models.TextContent(b.Text),
		})
	}

	if len(messages) == 0 {
		return ParseResult{}, false
	}

	// The database carries no per-bubble timestamps; synthesise a timeline
	// ending at the database mtime.
	startedAt := mtime.Add(-time.Duration(len(messages)) * 30 * time.Second)
	for i, m := range messages {
		m.ID = DeriveMessageID(sessionID, i)
		m.SessionID = sessionID
		m.Index = i
		m.Timestamp = startedAt.Add(time.Duration(i) * 30 * time.Second)
		m.CWD = workingDirectory
	}

	session := &models.Session{
		ID:               sessionID,
		Tool:             "cursor",
		StartedAt:        startedAt,
		WorkingDirectory: workingDirectory,
		SourcePath:       path,
		MessageCount:     len(messages),
	}

	return ParseResult{Session: session, Messages: messages}, true
}

// workspaceFolder reads the sibling workspace.json to resolve the project
// directory this database belongs to.
func (a *CursorAdapter) workspaceFolder(dbPath string) string {
	data, err := os.ReadFile(filepath.Join(filepath.Dir(dbPath), "workspace.json"))
	if err != nil {
		return ""
	}

	var meta struct {
		Folder string `json:"folder"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}

	if u, err := url.Parse(meta.Folder); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return strings.TrimPrefix(meta.Folder, "file://")
}
