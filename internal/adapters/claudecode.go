package adapters

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// ClaudeCodeAdapter parses the JSONL session logs Claude Code writes under
// ~/.claude/projects/<project>/<uuid>.jsonl. Each line is one typed record;
// user and assistant records carry the message payload.
type ClaudeCodeAdapter struct {
	home string
}

// NewClaudeCode returns the Claude Code adapter rooted at home.
func NewClaudeCode(home string) *ClaudeCodeAdapter {
	return &ClaudeCodeAdapter{home: home}
}

func (a *ClaudeCodeAdapter) projectsDir() string {
	return filepath.Join(a.home, ".claude", "projects")
}

func (a *ClaudeCodeAdapter) Info() Info {
	return Info{
		Name:         "claude-code",
		Description:  "Claude Code CLI sessions",
		FilePatterns: []string{"~/.claude/projects/*/*.jsonl"},
	}
}

func (a *ClaudeCodeAdapter) IsAvailable() bool {
	return dirExists(a.projectsDir())
}

func (a *ClaudeCodeAdapter) WatchRoots() []string {
	return []string{a.projectsDir()}
}

func (a *ClaudeCodeAdapter) Matches(path string) bool {
	if !models.PathHasPrefix(path, a.projectsDir()) {
		return false
	}
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".jsonl") && !strings.HasPrefix(base, "agent-")
}

func (a *ClaudeCodeAdapter) FindSources() ([]string, error) {
	dir := a.projectsDir()
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
		project := filepath.Join(dir, entry.Name())
		files, err := os.ReadDir(project)
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			// Sidechain agent transcripts live in agent-* files; the
			// session file is named after the session UUID.
			if f.IsDir() || strings.HasPrefix(name, "agent-") || !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			if len(name) > 40 {
				sources = append(sources, filepath.Join(project, name))
			}
		}
	}

	return sources, nil
}

// Raw record shapes as written by Claude Code (camelCase JSONL).
type claudeRawLine struct {
	Type        string            `json:"type"`
	SessionID   string            `json:"sessionId"`
	UUID        string            `json:"uuid"`
	ParentUUID  string            `json:"parentUuid"`
	Timestamp   string            `json:"timestamp"`
	CWD         string            `json:"cwd"`
	GitBranch   string            `json:"gitBranch"`
	Version     string            `json:"version"`
	IsSidechain bool              `json:"isSidechain"`
	Message     *claudeRawMessage `json:"message"`
}

type claudeRawMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

type claudeRawBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

func (a *ClaudeCodeAdapter) Parse(path string) ([]ParseResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open session file: %s", path)
	}
	defer file.Close()

	session := &models.Session{
		Tool:       "claude-code",
		SourcePath: path,
	}

	type parsedLine struct {
		uuid       string
		parentUUID string
		message    *models.Message
	}
	var lines []parsedLine

	scanner := bufio.NewScanner(file)
	// Assistant turns with large tool results can exceed the default
	// buffer.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw claudeRawLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			// Malformed lines are skipped; the rest of the file still
			// imports.
			continue
		}

		// file-history-snapshot, summary and other record types carry no
		// dialogue.
		if raw.Type != "user" && raw.Type != "assistant" {
			continue
		}
		if raw.IsSidechain {
			continue
		}
		if raw.Message == nil {
			continue
		}

		if session.ID == uuid.Nil && raw.SessionID != "" {
			session.ID = parseSessionID(raw.SessionID, path)
		}
		if session.ToolVersion == "" {
			session.ToolVersion = raw.Version
		}
		if session.WorkingDirectory == "" {
			session.WorkingDirectory = raw.CWD
		}
		session.AppendBranch(raw.GitBranch)

		content, err := parseClaudeContent(raw.Message.Content)
		if err != nil {
			continue
		}

		role, ok := parseRoleName(raw.Message.Role)
		if !ok {
			continue
		}
		// Tool results come back as user-role records whose blocks are all
		// tool_result; canonically they are their own role.
		if role == models.RoleHuman && isAllToolResults(content) {
			role = models.RoleToolResult
		}

		if session.Model == "" && role == models.RoleAssistant {
			session.Model = raw.Message.Model
		}

		timestamp, ok := parseRFC3339(raw.Timestamp)
		if !ok {
			continue
		}

		lines = append(lines, parsedLine{
			uuid:       raw.UUID,
			parentUUID: raw.ParentUUID,
			message: &models.Message{
				Timestamp: timestamp,
				Role:      role,
				Content:   content,
				Model:     raw.Message.Model,
				GitBranch: raw.GitBranch,
				CWD:       raw.CWD,
			},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "failed to read session file: %s", path)
	}

	if len(lines) == 0 {
		return nil, nil
	}

	if session.ID == uuid.Nil {
		session.ID = DeriveSessionID(path)
	}
	session.StartedAt = lines[0].message.Timestamp
	session.MessageCount = len(lines)

	// Resolve native record uuids so threading survives the import.
	idMap := make(map[string]uuid.UUID, len(lines))
	for i, l := range lines {
		id, err := uuid.Parse(l.uuid)
		if err != nil {
			id = DeriveMessageID(session.ID, i)
		}
		if l.uuid != "" {
			idMap[l.uuid] = id
		}
		l.message.ID = id
	}

	messages := make([]*models.Message, len(lines))
	for i, l := range lines {
		m := l.message
		m.SessionID = session.ID
		m.Index = i
		if parent, ok := idMap[l.parentUUID]; ok {
			p := parent
			m.ParentID = &p
		}
		messages[i] = m
	}

	return []ParseResult{{Session: session, Messages: messages}}, nil
}

// parseClaudeContent decodes a message body that is either a plain string
// or an array of typed blocks.
func parseClaudeContent(raw json.RawMessage) (models.MessageContent, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return models.TextContent(s), nil
	}

	var rawBlocks []claudeRawBlock
	if err := json.Unmarshal(raw, &rawBlocks); err != nil {
		return models.MessageContent{}, eris.Wrap(err, "unrecognised message content shape")
	}

	blocks := make([]models.ContentBlock, 0, len(rawBlocks))
	for _, b := range rawBlocks {
		switch b.Type {
		case "text":
			blocks = append(blocks, models.ContentBlock{Type: models.BlockText, Text: b.Text})
		case "thinking":
			blocks = append(blocks, models.ContentBlock{Type: models.BlockThinking, Thinking: b.Thinking})
		case "tool_use":
			blocks = append(blocks, models.ContentBlock{
				Type:  models.BlockToolUse,
				ID:    b.ID,
				Name:  b.Name,
				Input: b.Input,
			})
		case "tool_result":
			blocks = append(blocks, models.ContentBlock{
				Type:      models.BlockToolResult,
				ToolUseID: b.ToolUseID,
				Content:   flattenToolResult(b.Content),
				IsError:   b.IsError,
			})
		}
	}
	return models.BlockContent(blocks), nil
}

// flattenToolResult renders a tool_result payload (string or block array)
// as plain text.
func flattenToolResult(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var texts []string
		for _, p := range parts {
			if p.Type == "text" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, "\n")
	}

	return string(raw)
}

func isAllToolResults(content models.MessageContent) bool {
	if len(content.Blocks) == 0 {
		return false
	}
	for _, b := range content.Blocks {
		if b.Type != models.BlockToolResult {
			return false
		}
	}
	return true
}
