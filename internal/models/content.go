package models

import (
	"encoding/json"
	"strings"
)

// Content block types.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one typed block inside a structured message.
type ContentBlock struct {
	Type string `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockThinking
	Thinking string `json:"thinking,omitempty"`

	// BlockToolUse
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// BlockToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// MessageContent holds a message body: either plain text or an ordered list
// of content blocks. It serialises to a JSON string or a JSON array to match
// the shape most tools write natively.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

// TextContent wraps a plain string as message content.
func TextContent(s string) MessageContent {
	return MessageContent{Text: s}
}

// BlockContent wraps a block list as message content.
func BlockContent(blocks []ContentBlock) MessageContent {
	return MessageContent{Blocks: blocks}
}

// IsBlocks reports whether the content carries structured blocks.
func (c MessageContent) IsBlocks() bool {
	return c.Blocks != nil
}

// MarshalJSON encodes plain text as a JSON string and blocks as a JSON array.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of blocks.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.Blocks = nil
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.Text = ""
	c.Blocks = blocks
	return nil
}

// PlainText returns the textual content, excluding tool calls and thinking.
func (c MessageContent) PlainText() string {
	if c.Blocks == nil {
		return c.Text
	}
	var parts []string
	for _, b := range c.Blocks {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Summary returns a single-line digest of the content, truncated to max runes.
// Thinking blocks are omitted.
func (c MessageContent) Summary(max int) string {
	var text string
	if c.Blocks == nil {
		text = c.Text
	} else {
		var parts []string
		for _, b := range c.Blocks {
			switch b.Type {
			case BlockText:
				parts = append(parts, b.Text)
			case BlockToolUse:
				parts = append(parts, "[tool: "+b.Name+"]")
			case BlockToolResult:
				r := []rune(b.Content)
				if len(r) > 50 {
					r = r[:50]
				}
				parts = append(parts, "[result: "+string(r)+"...]")
			}
		}
		text = strings.Join(parts, " ")
	}

	text = strings.ReplaceAll(text, "\n", " ")
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
