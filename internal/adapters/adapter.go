package adapters

import "github.com/lorehq/lore/internal/models"

// Info describes an adapter for display and registry purposes.
type Info struct {
	// Name is the short tool label stored on sessions (e.g. "claude-code").
	Name string
	// Description is a human-readable one-liner.
	Description string
	// FilePatterns documents the path shapes this adapter owns.
	FilePatterns []string
}

// ParseResult is one canonical session parsed out of a source.
type ParseResult struct {
	Session  *models.Session
	Messages []*models.Message
	// Complete is set when the native format explicitly marks the session
	// as finished, which overrides the inactivity heuristic.
	Complete bool
}

// Adapter is the per-tool contract: where sources live, how to enumerate
// them, and how to parse one source into canonical sessions. Adapters are
// stateless; they never touch the store and keep no memory of previous
// reads. Deduplication and cursors belong to the ingestion engine.
type Adapter interface {
	Info() Info

	// IsAvailable reports whether the tool appears installed on this
	// machine.
	IsAvailable() bool

	// WatchRoots returns directories to watch recursively. Never the home
	// directory as a whole.
	WatchRoots() []string

	// FindSources enumerates the current source files.
	FindSources() ([]string, error)

	// Matches reports whether this adapter owns the path. Path-based
	// dispatch is authoritative; two adapters must not claim the same
	// path.
	Matches(path string) bool

	// Parse reads the entire source and returns one or more canonical
	// (session, messages) pairs.
	Parse(path string) ([]ParseResult, error)
}
