package linker

import (
	"database/sql"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/git"
	"github.com/lorehq/lore/internal/models"
)

// initRepo creates a git repository for linker tests, or skips if git is
// unavailable.
func initRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	gitRun(t, dir, "init", "-b", "main")
	return dir
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func commitFile(t *testing.T, dir, name, content, message string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", message)

	sha, err := git.HeadSHA(dir)
	if err != nil {
		t.Fatalf("HeadSHA() failed: %v", err)
	}
	return sha
}

func setupLinker(t *testing.T) (*Linker, *sql.DB) {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "lore.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(store, config.Default(), zerolog.Nop()), store
}

// storeSession writes a finalised session whose single assistant message
// touched the given file via a tool call.
func storeSession(t *testing.T, store *sql.DB, repo, file string, start, end time.Time) *models.Session {
	t.Helper()

	session := &models.Session{
		ID:               uuid.New(),
		Tool:             "claude-code",
		StartedAt:        start,
		WorkingDirectory: repo,
		BranchHistory:    []string{"main"},
		SourcePath:       "/tmp/source.jsonl",
	}
	if err := db.UpsertSession(store, session); err != nil {
		t.Fatalf("UpsertSession() failed: %v", err)
	}

	input, _ := json.Marshal(map[string]string{"file_path": filepath.Join(repo, file)})
	message := &models.Message{
		ID:        uuid.New(),
		SessionID: session.ID,
		Index:     0,
		Timestamp: start,
		Role:      models.RoleAssistant,
		Content: models.BlockContent([]models.ContentBlock{
			{Type: models.BlockText, Text: "editing " + file},
			{Type: models.BlockToolUse, ID: "t1", Name: "Edit", Input: input},
		}),
	}
	if _, err := db.InsertMessagesMissing(store, session.ID, []*models.Message{message}); err != nil {
		t.Fatalf("InsertMessagesMissing() failed: %v", err)
	}
	if _, err := db.FinaliseSession(store, session.ID, end); err != nil {
		t.Fatalf("FinaliseSession() failed: %v", err)
	}

	session.EndedAt = &end
	return session
}

func TestLinkSessionForward(t *testing.T) {
	repo := initRepo(t)
	linker, store := setupLinker(t)

	// Commit A touches the session's file during the session. The README
	// commit is made moments earlier and touches something else; only A's
	// link and its confidence are checked here.
	commitFile(t, repo, "README", "readme", "initial")
	shaA := commitFile(t, repo, "src/auth.ts", "token check", "add auth")

	now := time.Now().UTC()
	session := storeSession(t, store, repo, "src/auth.ts", now.Add(-30*time.Minute), now)

	linked, err := linker.LinkSession(session.ID)
	if err != nil {
		t.Fatalf("LinkSession() failed: %v", err)
	}
	if linked == 0 {
		t.Fatal("LinkSession() linked nothing")
	}

	links, err := db.GetLinksForSession(store, session.ID)
	if err != nil {
		t.Fatalf("GetLinksForSession() failed: %v", err)
	}

	var linkA *models.SessionLink
	for _, l := range links {
		if l.CommitSHA == shaA {
			linkA = l
		}
	}
	if linkA == nil {
		t.Fatalf("commit touching session files not linked; links = %+v", links)
	}
	if linkA.Origin != models.OriginAutoForward {
		t.Errorf("origin = %q", linkA.Origin)
	}
	if linkA.Confidence < 0.7 || linkA.Confidence > 1 {
		t.Errorf("confidence = %v, want >= 0.7", linkA.Confidence)
	}
}

func TestLinkSessionRequiresFinalisation(t *testing.T) {
	linker, store := setupLinker(t)

	session := &models.Session{
		ID:               uuid.New(),
		Tool:             "claude-code",
		StartedAt:        time.Now().Add(-time.Hour),
		WorkingDirectory: t.TempDir(),
	}
	if err := db.UpsertSession(store, session); err != nil {
		t.Fatalf("UpsertSession() failed: %v", err)
	}

	if _, err := linker.LinkSession(session.ID); err == nil {
		t.Error("LinkSession() should refuse a live session")
	}
}

func TestLinkSessionSkipsNonRepo(t *testing.T) {
	linker, store := setupLinker(t)

	end := time.Now().UTC()
	session := storeSession(t, store, t.TempDir(), "a.go", end.Add(-time.Hour), end)

	linked, err := linker.LinkSession(session.ID)
	if err != nil {
		t.Fatalf("LinkSession() failed: %v", err)
	}
	if linked != 0 {
		t.Errorf("non-repo session produced %d links", linked)
	}
}

func TestLinkCommitBackward(t *testing.T) {
	repo := initRepo(t)
	linker, store := setupLinker(t)

	sha := commitFile(t, repo, "src/auth.ts", "token check", "add auth")

	now := time.Now().UTC()
	session := storeSession(t, store, repo, "src/auth.ts", now.Add(-30*time.Minute), now)

	// A session in a lookalike directory must not qualify.
	decoy := storeSession(t, store, repo+"-old", "src/auth.ts", now.Add(-30*time.Minute), now)

	linked, err := linker.LinkCommit(repo, sha, models.OriginAutoBackward)
	if err != nil {
		t.Fatalf("LinkCommit() failed: %v", err)
	}
	if linked != 1 {
		t.Fatalf("LinkCommit() = %d links, want 1", linked)
	}

	links, _ := db.GetLinksForCommit(store, sha)
	if len(links) != 1 || links[0].SessionID != session.ID {
		t.Errorf("links = %+v", links)
	}
	decoyLinks, _ := db.GetLinksForSession(store, decoy.ID)
	if len(decoyLinks) != 0 {
		t.Errorf("lookalike directory session was linked: %+v", decoyLinks)
	}
}

func TestManualLinkSurvivesAutoLink(t *testing.T) {
	repo := initRepo(t)
	linker, store := setupLinker(t)

	sha := commitFile(t, repo, "src/auth.ts", "token check", "add auth")

	now := time.Now().UTC()
	session := storeSession(t, store, repo, "src/auth.ts", now.Add(-30*time.Minute), now)

	if err := linker.LinkManual(session.ID, repo, sha); err != nil {
		t.Fatalf("LinkManual() failed: %v", err)
	}

	// The auto pass would insert the same pair at lower confidence.
	if _, err := linker.LinkSession(session.ID); err != nil {
		t.Fatalf("LinkSession() failed: %v", err)
	}

	links, err := db.GetLinksForSession(store, session.ID)
	if err != nil {
		t.Fatalf("GetLinksForSession() failed: %v", err)
	}
	count := 0
	for _, l := range links {
		if l.CommitSHA == sha {
			count++
			if l.Origin != models.OriginManual || l.Confidence != 1.0 {
				t.Errorf("manual link displaced: %+v", l)
			}
		}
	}
	if count != 1 {
		t.Errorf("link rows for pair = %d, want 1", count)
	}
}

func TestLinkSessionIdempotent(t *testing.T) {
	repo := initRepo(t)
	linker, store := setupLinker(t)

	commitFile(t, repo, "src/auth.ts", "token check", "add auth")

	now := time.Now().UTC()
	session := storeSession(t, store, repo, "src/auth.ts", now.Add(-30*time.Minute), now)

	first, err := linker.LinkSession(session.ID)
	if err != nil {
		t.Fatalf("LinkSession() failed: %v", err)
	}
	second, err := linker.LinkSession(session.ID)
	if err != nil {
		t.Fatalf("re-LinkSession() failed: %v", err)
	}
	if second != 0 {
		t.Errorf("re-run inserted %d new links (first run: %d)", second, first)
	}
}
