package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/lorehq/lore/internal/adapters"
	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/git"
	"github.com/lorehq/lore/internal/models"
)

// parseBudget is the soft wall-clock limit for one adapter parse.
const parseBudget = 30 * time.Second

// hashPrefixLen is how many leading bytes of a source feed the cursor's
// content hash.
const hashPrefixLen = 4096

// Stats counts the engine's work since start. Safe for concurrent reads.
type Stats struct {
	SessionsImported atomic.Uint64
	MessagesImported atomic.Uint64
	SourcesScanned   atomic.Uint64
	Errors           atomic.Uint64
}

// Engine merges parsed sources into the store. It owns cursors,
// deduplication, quarantine, and the session finalisation decision; the
// adapters it drives stay stateless.
type Engine struct {
	store    *sql.DB
	registry *adapters.Registry
	cfg      *config.Config
	log      zerolog.Logger

	// Ingestion is serialised per source path.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// A single writer at a time submits merge transactions.
	writeMu sync.Mutex

	onSessionEnded func(uuid.UUID)

	stats Stats
}

// New builds an engine over the given store and adapter registry.
func New(store *sql.DB, registry *adapters.Registry, cfg *config.Config, log zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		registry: registry,
		cfg:      cfg,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// OnSessionEnded registers the callback invoked after a finalising merge
// commits. The callback runs outside the transaction.
func (e *Engine) OnSessionEnded(fn func(uuid.UUID)) {
	e.onSessionEnded = fn
}

// Stats returns the engine counters.
func (e *Engine) Stats() *Stats {
	return &e.stats
}

// pathLock returns the mutex serialising ingestion for one source path.
func (e *Engine) pathLock(path string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[path] = lock
	}
	return lock
}

// Ingest merges a single source into the store. Unknown paths are ignored;
// a missing file finalises the live sessions imported from it; parse
// failures quarantine the source until its next modification; store
// failures abort the merge with the cursor untouched.
func (e *Engine) Ingest(ctx context.Context, path string) error {
	adapter, err := e.registry.Match(path)
	if err != nil {
		e.log.Error().Err(err).Str("path", path).Msg("ambiguous adapter claim")
		return nil
	}
	if adapter == nil {
		return nil
	}

	lock := e.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return e.SourceDeleted(ctx, path)
	}
	if err != nil {
		e.log.Warn().Err(err).Str("path", path).Msg("source unreadable")
		return nil
	}

	e.stats.SourcesScanned.Add(1)

	hashPrefix := contentHashPrefix(path)

	cursor, err := db.GetCursor(e.store, path)
	if err != nil {
		return err
	}
	if cursor != nil &&
		cursor.LastSizeBytes == info.Size() &&
		cursor.LastModified.Equal(info.ModTime().UTC()) &&
		cursor.ContentHashPrefix == hashPrefix {
		return nil
	}

	results, err := e.parseWithBudget(ctx, adapter, path)
	if err != nil {
		// Quarantine: the cursor stays put so the next modification
		// retries.
		e.stats.Errors.Add(1)
		e.log.Debug().Err(err).Str("path", path).Str("tool", adapter.Info().Name).Msg("parse failed, source quarantined")
		return nil
	}

	ended, err := e.merge(adapter, path, info, hashPrefix, results)
	if err != nil {
		e.stats.Errors.Add(1)
		return err
	}

	e.emitSessionEnded(ended)
	return nil
}

// parseWithBudget runs the adapter parse under the soft wall-clock budget.
func (e *Engine) parseWithBudget(ctx context.Context, adapter adapters.Adapter, path string) ([]adapters.ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, parseBudget)
	defer cancel()

	type outcome struct {
		results []adapters.ParseResult
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		results, err := adapter.Parse(path)
		done <- outcome{results: results, err: err}
	}()

	select {
	case o := <-done:
		return o.results, o.err
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "parse budget exceeded for %s", path)
	}
}

// merge applies all parsed sessions of one source and advances the cursor
// inside a single transaction. Returns the sessions finalised by this
// merge.
func (e *Engine) merge(adapter adapters.Adapter, path string, info os.FileInfo, hashPrefix string, results []adapters.ParseResult) ([]uuid.UUID, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	tx, err := e.store.Begin()
	if err != nil {
		return nil, eris.Wrap(err, "failed to begin merge transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var ended []uuid.UUID

	for _, result := range results {
		session := result.Session

		// Branch history accumulates across merges; start from what the
		// store already has.
		if existing, err := db.GetSession(tx, session.ID.String()); err == nil {
			merged := existing
			for _, b := range session.BranchHistory {
				merged.AppendBranch(b)
			}
			session.BranchHistory = merged.BranchHistory
		}
		if git.IsWorktree(session.WorkingDirectory) {
			if branch, err := git.CurrentBranch(session.WorkingDirectory); err == nil {
				session.AppendBranch(branch)
			}
		}

		// Finalisation is the engine's call, never the adapter's.
		session.EndedAt = nil

		if err := db.UpsertSession(tx, session); err != nil {
			return nil, err
		}

		inserted, err := db.InsertMessagesMissing(tx, session.ID, result.Messages)
		if err != nil {
			return nil, err
		}
		if _, err := db.RecountSessionMessages(tx, session.ID); err != nil {
			return nil, err
		}

		e.stats.MessagesImported.Add(uint64(inserted))
		if inserted > 0 {
			e.stats.SessionsImported.Add(1)
		}

		if e.shouldFinalise(result, info.ModTime()) {
			endedAt := info.ModTime().UTC()
			if n := len(result.Messages); n > 0 {
				if last := result.Messages[n-1].Timestamp; last.After(endedAt) {
					endedAt = last
				}
			}
			transitioned, err := db.FinaliseSession(tx, session.ID, endedAt)
			if err != nil {
				return nil, err
			}
			if transitioned {
				ended = append(ended, session.ID)
			}
		}
	}

	cursor := &models.SourceCursor{
		SourcePath:        path,
		Tool:              adapter.Info().Name,
		LastSizeBytes:     info.Size(),
		LastModified:      info.ModTime().UTC(),
		ContentHashPrefix: hashPrefix,
		LastImportedAt:    time.Now().UTC(),
	}
	if err := db.UpsertCursor(tx, cursor); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "failed to commit merge transaction")
	}

	return ended, nil
}

// shouldFinalise applies the session-end heuristic: a native completion
// marker, or no source modification within the inactivity threshold.
func (e *Engine) shouldFinalise(result adapters.ParseResult, mtime time.Time) bool {
	if result.Complete {
		return true
	}
	return time.Since(mtime) >= e.cfg.InactivityThreshold()
}

// SourceDeleted finalises every live session imported from a now-deleted
// source. The sessions themselves remain: they are historical records.
func (e *Engine) SourceDeleted(_ context.Context, path string) error {
	sessions, err := db.ListSessionsBySource(e.store, path)
	if err != nil {
		return err
	}

	var ended []uuid.UUID

	e.writeMu.Lock()
	for _, s := range sessions {
		if s.Finalised() {
			continue
		}

		endedAt := time.Now().UTC()
		if messages, err := db.GetMessages(e.store, s.ID); err == nil && len(messages) > 0 {
			endedAt = messages[len(messages)-1].Timestamp
		}

		transitioned, err := db.FinaliseSession(e.store, s.ID, endedAt)
		if err != nil {
			e.writeMu.Unlock()
			return err
		}
		if transitioned {
			ended = append(ended, s.ID)
		}
	}
	e.writeMu.Unlock()

	e.emitSessionEnded(ended)
	return nil
}

// FinaliseSweep finalises live sessions whose source has been quiet past
// the inactivity threshold. Runs on the daemon's scan interval.
func (e *Engine) FinaliseSweep(_ context.Context) error {
	sessions, err := db.ListLiveSessions(e.store)
	if err != nil {
		return err
	}

	now := time.Now()
	var ended []uuid.UUID

	for _, s := range sessions {
		lastActivity := s.StartedAt

		if messages, err := db.GetMessages(e.store, s.ID); err == nil && len(messages) > 0 {
			if last := messages[len(messages)-1].Timestamp; last.After(lastActivity) {
				lastActivity = last
			}
		}

		endedAt := lastActivity
		if info, err := os.Stat(s.SourcePath); err == nil {
			if mtime := info.ModTime().UTC(); mtime.After(lastActivity) {
				lastActivity = mtime
				endedAt = mtime
			}
		}

		if now.Sub(lastActivity) < e.cfg.InactivityThreshold() {
			continue
		}

		e.writeMu.Lock()
		transitioned, err := db.FinaliseSession(e.store, s.ID, endedAt)
		e.writeMu.Unlock()
		if err != nil {
			e.log.Error().Err(err).Str("session", s.ID.String()).Msg("sweep finalisation failed")
			continue
		}
		if transitioned {
			e.log.Info().Str("session", s.ID.String()).Str("tool", s.Tool).Msg("session finalised by inactivity")
			ended = append(ended, s.ID)
		}
	}

	e.emitSessionEnded(ended)
	return nil
}

// ScanAll walks every adapter's sources and ingests the ones whose size or
// mtime differ from their cursor. Recovers from missed events and
// bootstraps the first run.
func (e *Engine) ScanAll(ctx context.Context) error {
	sources, err := e.registry.FindSources()
	if err != nil {
		e.log.Warn().Err(err).Msg("source discovery incomplete")
	}

	for path := range sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		cursor, err := db.GetCursor(e.store, path)
		if err != nil {
			return err
		}
		if cursor != nil &&
			cursor.LastSizeBytes == info.Size() &&
			cursor.LastModified.Equal(info.ModTime().UTC()) {
			continue
		}

		if err := e.Ingest(ctx, path); err != nil {
			e.log.Error().Err(err).Str("path", path).Msg("scan ingest failed")
		}
	}

	return nil
}

func (e *Engine) emitSessionEnded(ids []uuid.UUID) {
	if e.onSessionEnded == nil {
		return
	}
	for _, id := range ids {
		e.onSessionEnded(id)
	}
}

// contentHashPrefix hashes the first bytes of a source so truncate-and-
// rewrite cycles that preserve size and mtime still get noticed.
func contentHashPrefix(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(file, hashPrefixLen)); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
