package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// AiderAdapter parses Aider's markdown chat history. Aider appends to
// .aider.chat.history.md in the project directory: a "# aider chat started
// at" header opens each session, "####" headings open human turns, ">"
// blockquotes carry tool output, and plain prose is the assistant.
type AiderAdapter struct {
	home string
}

// NewAider returns the Aider adapter rooted at home.
func NewAider(home string) *AiderAdapter {
	return &AiderAdapter{home: home}
}

const aiderHistoryFile = ".aider.chat.history.md"

// Directories commonly holding project checkouts. Aider writes into the
// project itself, so discovery is best effort over these.
var aiderProjectDirs = []string{"projects", "code", "src", "dev", "workspace", "repos"}

func (a *AiderAdapter) Info() Info {
	return Info{
		Name:         "aider",
		Description:  "Aider terminal chat sessions",
		FilePatterns: []string{"**/" + aiderHistoryFile},
	}
}

func (a *AiderAdapter) IsAvailable() bool {
	// History files can live in any project directory; there is no central
	// install marker to probe.
	return true
}

func (a *AiderAdapter) WatchRoots() []string {
	var roots []string
	for _, dir := range aiderProjectDirs {
		path := filepath.Join(a.home, dir)
		if dirExists(path) {
			roots = append(roots, path)
		}
	}
	return roots
}

func (a *AiderAdapter) Matches(path string) bool {
	return filepath.Base(path) == aiderHistoryFile
}

func (a *AiderAdapter) FindSources() ([]string, error) {
	var sources []string

	if path := filepath.Join(a.home, aiderHistoryFile); fileExists(path) {
		sources = append(sources, path)
	}

	for _, dir := range aiderProjectDirs {
		parent := filepath.Join(a.home, dir)
		entries, err := os.ReadDir(parent)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(parent, entry.Name(), aiderHistoryFile)
			if fileExists(path) {
				sources = append(sources, path)
			}
		}
	}

	return sources, nil
}

// aiderSessionHeader marks the start of one chat in the history file.
const aiderSessionHeader = "# aider chat started at "

// aiderHeaderLayout matches the timestamp Aider writes after the header.
const aiderHeaderLayout = "2006-01-02 15:04:05"

func (a *AiderAdapter) Parse(path string) ([]ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read history file: %s", path)
	}

	workingDirectory := filepath.Dir(path)

	mtime := time.Now().UTC()
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime().UTC()
	}

	type rawTurn struct {
		role  models.MessageRole
		lines []string
	}
	type rawSession struct {
		startedAt time.Time
		turns     []rawTurn
	}

	var sessions []*rawSession
	current := &rawSession{}
	flushNeeded := false

	appendLine := func(role models.MessageRole, line string) {
		n := len(current.turns)
		if n > 0 && current.turns[n-1].role == role {
			current.turns[n-1].lines = append(current.turns[n-1].lines, line)
			return
		}
		current.turns = append(current.turns, rawTurn{role: role, lines: []string{line}})
	}

	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, aiderSessionHeader); ok {
			if flushNeeded {
				sessions = append(sessions, current)
			}
			current = &rawSession{}
			flushNeeded = true
			if t, err := time.Parse(aiderHeaderLayout, strings.TrimSpace(rest)); err == nil {
				current.startedAt = t.UTC()
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "#### "):
			appendLine(models.RoleHuman, strings.TrimPrefix(line, "#### "))
			flushNeeded = true
		case strings.HasPrefix(line, ">"):
			appendLine(models.RoleToolResult, strings.TrimSpace(strings.TrimPrefix(line, ">")))
			flushNeeded = true
		case strings.TrimSpace(line) == "":
			// Blank lines separate turns but carry no content.
		default:
			appendLine(models.RoleAssistant, line)
			flushNeeded = true
		}
	}
	if flushNeeded {
		sessions = append(sessions, current)
	}

	var results []ParseResult
	ordinal := 0
	for _, raw := range sessions {
		var turns []rawTurn
		for _, t := range raw.turns {
			if strings.TrimSpace(strings.Join(t.lines, "\n")) != "" {
				turns = append(turns, t)
			}
		}
		if len(turns) == 0 {
			continue
		}

		startedAt := raw.startedAt
		if startedAt.IsZero() {
			// Headerless files get a synthetic timeline ending at the file
			// mtime.
			startedAt = mtime.Add(-time.Duration(len(turns)) * 30 * time.Second)
		}

		sessionID := DeriveSessionID(fmt.Sprintf("%s#%d", path, ordinal))
		session := &models.Session{
			ID:               sessionID,
			Tool:             "aider",
			StartedAt:        startedAt,
			WorkingDirectory: workingDirectory,
			SourcePath:       path,
			MessageCount:     len(turns),
		}

		messages := make([]*models.Message, len(turns))
		for i, t := range turns {
			messages[i] = &models.Message{
				ID:        DeriveMessageID(sessionID, i),
				SessionID: sessionID,
				Index:     i,
				Timestamp: startedAt.Add(time.Duration(i) * 30 * time.Second),
				Role:      t.role,
				Content:   models.TextContent(strings.Join(t.lines, "\n")),
				CWD:       workingDirectory,
			}
		}

		results = append(results, ParseResult{Session: session, Messages: messages})
		ordinal++
	}

	return results, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
