package linker

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lorehq/lore/internal/git"
	"github.com/lorehq/lore/internal/models"
)

var window = 30 * time.Minute

func scoringSession(start, end time.Time) *models.Session {
	return &models.Session{
		ID:               uuid.New(),
		Tool:             "claude-code",
		StartedAt:        start,
		EndedAt:          &end,
		WorkingDirectory: "/repo",
		BranchHistory:    []string{"main"},
	}
}

func TestTimeProximity(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)

	tests := []struct {
		name   string
		commit time.Time
		want   float64
	}{
		{"inside interval", start.Add(20 * time.Minute), 1.0},
		{"at start", start, 1.0},
		{"at end", end, 1.0},
		{"half window after end", end.Add(15 * time.Minute), 0.5},
		{"window edge", end.Add(30 * time.Minute), 0.0},
		{"before start", start.Add(-15 * time.Minute), 0.5},
		{"far before", start.Add(-2 * time.Hour), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeProximity(tt.commit, start, end, window)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("TimeProximity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileOverlap(t *testing.T) {
	tests := []struct {
		name    string
		session []string
		commit  []string
		want    float64
	}{
		{"full overlap", []string{"a.go", "b.go"}, []string{"a.go", "b.go"}, 1.0},
		{"half overlap", []string{"a.go"}, []string{"a.go", "b.go"}, 0.5},
		{"no overlap", []string{"a.go"}, []string{"c.go"}, 0.0},
		{"empty commit", []string{"a.go"}, nil, 0.0},
		{"empty session", nil, []string{"a.go"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileOverlap(tt.session, tt.commit); got != tt.want {
				t.Errorf("FileOverlap() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	session := scoringSession(start, start.Add(45*time.Minute))

	// Everything matches: the bonus must not push the score past 1.
	commit := &git.Commit{
		SHA:      "0123456789abcdef0123456789abcdef01234567",
		Time:     start.Add(40 * time.Minute),
		Branches: []string{"main"},
		Files:    []string{"src/auth.ts"},
	}
	score := Score(session, []string{"src/auth.ts"}, commit, window, DefaultWeights)
	if score < 0 || score > 1 {
		t.Errorf("score = %v, must stay in [0,1]", score)
	}
	if score != 1.0 {
		t.Errorf("perfect match score = %v, want 1.0", score)
	}

	// Nothing matches.
	unrelated := &git.Commit{
		SHA:   "aaaa456789abcdef0123456789abcdef01234567",
		Time:  start.Add(-5 * time.Hour),
		Files: []string{"README"},
	}
	score = Score(session, []string{"src/auth.ts"}, unrelated, window, DefaultWeights)
	if score != 0 {
		t.Errorf("unrelated commit score = %v, want 0", score)
	}
}

func TestScoreMonotoneInFileOverlap(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	session := scoringSession(start, start.Add(45*time.Minute))

	commit := &git.Commit{
		Time:  start.Add(10 * time.Minute),
		Files: []string{"a.go", "b.go"},
	}

	low := Score(session, []string{"a.go"}, commit, window, DefaultWeights)
	high := Score(session, []string{"a.go", "b.go"}, commit, window, DefaultWeights)
	if high < low {
		t.Errorf("more file overlap lowered the score: %v -> %v", low, high)
	}
}

func TestScoreMonotoneInTimeDistance(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	session := scoringSession(start, start.Add(45*time.Minute))

	near := &git.Commit{Time: session.EndedAt.Add(5 * time.Minute), Files: []string{"a.go"}}
	far := &git.Commit{Time: session.EndedAt.Add(25 * time.Minute), Files: []string{"a.go"}}

	nearScore := Score(session, []string{"a.go"}, near, window, DefaultWeights)
	farScore := Score(session, []string{"a.go"}, far, window, DefaultWeights)
	if nearScore < farScore {
		t.Errorf("reducing time distance lowered the score: near %v < far %v", nearScore, farScore)
	}
}

func TestScoreForwardLinkScenario(t *testing.T) {
	// Session ended 10:45 touching src/auth.ts. Commit A at 10:40 touching
	// the same file must clear the threshold; commit B at 09:00 touching
	// README must fall well under it.
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	session := scoringSession(start, end)

	commitA := &git.Commit{
		SHA:      "aaaa456789abcdef0123456789abcdef01234567",
		Time:     start.Add(40 * time.Minute),
		Branches: []string{"main"},
		Files:    []string{"src/auth.ts"},
	}
	commitB := &git.Commit{
		SHA:      "bbbb456789abcdef0123456789abcdef01234567",
		Time:     start.Add(-time.Hour),
		Branches: []string{"main"},
		Files:    []string{"README"},
	}

	scoreA := Score(session, []string{"src/auth.ts"}, commitA, window, DefaultWeights)
	if scoreA < 0.7 {
		t.Errorf("commit A score = %v, want >= 0.7", scoreA)
	}

	// Branch match alone keeps B at the branch weight; file and time both
	// miss.
	scoreB := Score(session, []string{"src/auth.ts"}, commitB, window, DefaultWeights)
	if scoreB >= 0.5 {
		t.Errorf("commit B score = %v, want < threshold", scoreB)
	}
}

func TestNormalizeToRepo(t *testing.T) {
	files := []string{"src/auth.go", "/repo/pkg/core.go", "/elsewhere/x.go"}

	got := normalizeToRepo(files, "/repo", "/repo")
	want := map[string]bool{"src/auth.go": true, "pkg/core.go": true}
	if len(got) != len(want) {
		t.Fatalf("normalizeToRepo() = %v", got)
	}
	for _, f := range got {
		if !want[f] {
			t.Errorf("unexpected path %q", f)
		}
	}

	// Working directory below the repo root prefixes relative mentions.
	got = normalizeToRepo([]string{"auth.go"}, "/repo/src", "/repo")
	if len(got) != 1 || got[0] != "src/auth.go" {
		t.Errorf("normalizeToRepo() = %v, want [src/auth.go]", got)
	}
}
