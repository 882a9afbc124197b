package linker

import (
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/git"
	"github.com/lorehq/lore/internal/models"
)

// forwardSlack widens the commit window slightly past the session bounds so
// a commit made moments after the last message still qualifies.
const forwardSlack = 5 * time.Minute

// Linker computes session-commit associations: forward when a session ends,
// backward when asked about a specific commit. Both directions funnel
// through the same scoring.
type Linker struct {
	store   *sql.DB
	cfg     *config.Config
	weights Weights
	log     zerolog.Logger
}

// New builds a linker over the store.
func New(store *sql.DB, cfg *config.Config, log zerolog.Logger) *Linker {
	return &Linker{store: store, cfg: cfg, weights: DefaultWeights, log: log}
}

// LinkSession runs forward linking for a finalised session: find the
// commits made during its activity window and link those that score past
// the threshold. Returns the number of links inserted.
func (l *Linker) LinkSession(sessionID uuid.UUID) (int, error) {
	session, err := db.GetSession(l.store, sessionID.String())
	if err != nil {
		return 0, err
	}
	if session.EndedAt == nil {
		return 0, eris.Errorf("session not finalised: %s", sessionID)
	}

	if !git.IsWorktree(session.WorkingDirectory) {
		return 0, nil
	}
	repoPath, err := git.RepoRoot(session.WorkingDirectory)
	if err != nil {
		return 0, nil //nolint:nilerr // not a repo after all; nothing to link
	}

	messages, err := db.GetMessages(l.store, session.ID)
	if err != nil {
		return 0, err
	}
	sessionFiles := normalizeToRepo(models.ExtractSessionFiles(messages, session.WorkingDirectory), session.WorkingDirectory, repoPath)

	commits, err := git.CommitsBetween(repoPath, session.StartedAt.Add(-forwardSlack), session.EndedAt.Add(forwardSlack))
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, commit := range commits {
		score := Score(session, sessionFiles, commit, l.cfg.Window(), l.weights)
		if score < l.cfg.AutoLink.Threshold {
			continue
		}

		inserted, err := db.InsertLink(l.store, &models.SessionLink{
			SessionID:  session.ID,
			CommitSHA:  commit.SHA,
			RepoPath:   repoPath,
			Origin:     models.OriginAutoForward,
			Confidence: score,
		})
		if err != nil {
			return linked, err
		}
		if inserted {
			linked++
			l.log.Info().
				Str("session", session.ID.String()).
				Str("commit", commit.SHA).
				Float64("confidence", score).
				Msg("forward link")
		}
	}

	return linked, nil
}

// LinkCommit runs backward linking for one commit: find the sessions that
// plausibly produced it and link those scoring past the threshold. The
// origin records whether the request came from a git hook or a manual
// command.
func (l *Linker) LinkCommit(repoPath, sha string, origin models.LinkOrigin) (int, error) {
	commit, err := git.CommitInfo(repoPath, sha)
	if err != nil {
		return 0, err
	}

	window := l.cfg.Window()
	candidates, err := db.FindSessionsActiveDuring(
		l.store,
		commit.Time.Add(-window),
		commit.Time.Add(window),
		repoPath,
	)
	if err != nil {
		return 0, err
	}

	// Sessions mentioning the commit's files qualify even outside the
	// window.
	byFiles, err := db.FindSessionsTouchingFiles(l.store, commit.Files)
	if err != nil {
		return 0, err
	}
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	for _, s := range candidates {
		seen[s.ID] = struct{}{}
	}
	for _, s := range byFiles {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		if !models.PathHasPrefix(s.WorkingDirectory, repoPath) {
			continue
		}
		candidates = append(candidates, s)
	}

	linked := 0
	for _, session := range candidates {
		messages, err := db.GetMessages(l.store, session.ID)
		if err != nil {
			return linked, err
		}
		sessionFiles := normalizeToRepo(models.ExtractSessionFiles(messages, session.WorkingDirectory), session.WorkingDirectory, repoPath)

		score := Score(session, sessionFiles, commit, window, l.weights)
		if score < l.cfg.AutoLink.Threshold {
			continue
		}

		inserted, err := db.InsertLink(l.store, &models.SessionLink{
			SessionID:  session.ID,
			CommitSHA:  commit.SHA,
			RepoPath:   repoPath,
			Origin:     origin,
			Confidence: score,
		})
		if err != nil {
			return linked, err
		}
		if inserted {
			linked++
			l.log.Info().
				Str("session", session.ID.String()).
				Str("commit", commit.SHA).
				Float64("confidence", score).
				Msg("backward link")
		}
	}

	return linked, nil
}

// LinkManual records a user-asserted link at full confidence.
func (l *Linker) LinkManual(sessionID uuid.UUID, repoPath, sha string) error {
	_, err := db.InsertLink(l.store, &models.SessionLink{
		SessionID:  sessionID,
		CommitSHA:  sha,
		RepoPath:   repoPath,
		Origin:     models.OriginManual,
		Confidence: 1.0,
	})
	return err
}

// normalizeToRepo rebases session file mentions onto the repo root so they
// compare exactly against git's repo-relative paths. The session working
// directory may sit below the root.
func normalizeToRepo(files []string, workingDirectory, repoPath string) []string {
	workingDirectory = strings.TrimRight(workingDirectory, "/")
	repoPath = strings.TrimRight(repoPath, "/")

	prefix := ""
	if workingDirectory != repoPath && models.PathHasPrefix(workingDirectory, repoPath) {
		prefix = strings.TrimPrefix(workingDirectory[len(repoPath):], "/")
	}

	out := make([]string, 0, len(files))
	for _, f := range files {
		if strings.HasPrefix(f, "/") {
			if !models.PathHasPrefix(f, repoPath) {
				continue
			}
			f = strings.TrimPrefix(strings.TrimPrefix(f, repoPath), "/")
		} else if prefix != "" {
			f = filepath.Join(prefix, f)
		}
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
