package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// ExtractSessionFiles returns the unique file paths mentioned by the
// session's tool invocations: file-oriented tool parameters plus a
// best-effort scan of bash commands. Paths are made relative to the
// working directory where possible.
func ExtractSessionFiles(messages []*Message, workingDirectory string) []string {
	files := make(map[string]struct{})

	for _, m := range messages {
		for _, b := range m.Content.Blocks {
			if b.Type == BlockToolUse {
				extractFilesFromToolUse(b.Name, b.Input, workingDirectory, files)
			}
		}
	}

	out := make([]string, 0, len(files))
	for f := range files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func extractFilesFromToolUse(toolName string, input json.RawMessage, workingDirectory string, files map[string]struct{}) {
	var params map[string]json.RawMessage
	if err := json.Unmarshal(input, &params); err != nil {
		return
	}

	stringParam := func(key string) (string, bool) {
		raw, ok := params[key]
		if !ok {
			return "", false
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}

	addPath := func(p string) {
		if rel, ok := makeRelative(p, workingDirectory); ok {
			files[rel] = struct{}{}
		}
	}

	switch toolName {
	case "Read", "Write", "Edit":
		if p, ok := stringParam("file_path"); ok {
			addPath(p)
		}
	case "Glob", "Grep":
		if p, ok := stringParam("path"); ok {
			addPath(p)
		}
	case "NotebookEdit":
		if p, ok := stringParam("notebook_path"); ok {
			addPath(p)
		}
	case "Bash":
		if cmd, ok := stringParam("command"); ok {
			extractFilesFromBashCommand(cmd, workingDirectory, files)
		}
	}
}

// Commands whose arguments commonly name files.
var bashFileCommands = []string{
	"cat", "less", "more", "head", "tail", "vim", "nano", "code",
	"cp", "mv", "rm", "touch", "mkdir", "chmod", "chown",
}

// extractFilesFromBashCommand scans a shell command for path-like tokens.
// Best effort only.
func extractFilesFromBashCommand(cmd, workingDirectory string, files map[string]struct{}) {
	add := func(tok string) {
		if rel, ok := makeRelative(tok, workingDirectory); ok {
			if rel != "" && !strings.Contains(rel, "$") {
				files[rel] = struct{}{}
			}
		}
	}

	for _, part := range strings.FieldsFunc(cmd, func(r rune) bool {
		return r == '|' || r == ';' || r == '&' || r == '\n'
	}) {
		part = strings.TrimSpace(part)
		if part == "" || strings.HasPrefix(part, "-") {
			continue
		}

		for _, tok := range strings.Fields(part) {
			if strings.HasPrefix(tok, "/") || strings.HasPrefix(tok, "./") || strings.HasPrefix(tok, "../") {
				add(tok)
			}
		}

		for _, fc := range bashFileCommands {
			if rest, ok := strings.CutPrefix(part, fc+" "); ok {
				for _, arg := range strings.Fields(rest) {
					if strings.HasPrefix(arg, "-") {
						continue
					}
					add(arg)
				}
			}
		}
	}
}

// makeRelative converts an absolute path under the working directory into a
// relative one. Relative inputs are cleaned of a leading "./". Absolute
// paths outside the working directory are kept as-is since git can report
// them in some configurations.
func makeRelative(path, workingDirectory string) (string, bool) {
	if !strings.HasPrefix(path, "/") {
		cleaned := strings.TrimPrefix(path, "./")
		if cleaned == "" {
			return "", false
		}
		return cleaned, true
	}

	wd := strings.TrimRight(workingDirectory, "/")
	if wd != "" {
		if rel, ok := strings.CutPrefix(path, wd); ok {
			// Component boundary: /repo must not swallow /repo-old.
			if rel == "" {
				return "", false
			}
			if strings.HasPrefix(rel, "/") {
				rel = strings.TrimLeft(rel, "/")
				if rel != "" {
					return rel, true
				}
				return "", false
			}
			return path, true
		}
	}

	return path, true
}

// PathHasPrefix reports whether path is the prefix directory itself or a
// descendant of it, comparing whole components so that /a/project does not
// match /a/project-old.
func PathHasPrefix(path, prefix string) bool {
	path = strings.TrimRight(path, "/")
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return false
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
