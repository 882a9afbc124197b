package linker

import (
	"math"
	"time"

	"github.com/lorehq/lore/internal/git"
	"github.com/lorehq/lore/internal/models"
)

// Weights control the contribution of each scoring component.
type Weights struct {
	Time   float64
	File   float64
	Branch float64
	// Bonus is added when both the time and file components are positive.
	Bonus float64
}

// DefaultWeights are the tuned defaults.
var DefaultWeights = Weights{Time: 0.3, File: 0.4, Branch: 0.2, Bonus: 0.1}

// TimeProximity maps the distance from the commit time to the session's
// activity interval onto [0,1]: 1 at the interval itself, falling linearly
// to 0 at the window edge.
func TimeProximity(commitTime, start, end time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}

	var delta time.Duration
	switch {
	case commitTime.Before(start):
		delta = start.Sub(commitTime)
	case commitTime.After(end):
		delta = commitTime.Sub(end)
	default:
		delta = 0
	}

	if delta >= window {
		return 0
	}
	return 1 - float64(delta)/float64(window)
}

// FileOverlap is the fraction of the commit's files also mentioned in the
// session.
func FileOverlap(sessionFiles, commitFiles []string) float64 {
	if len(commitFiles) == 0 {
		return 0
	}

	mentioned := make(map[string]struct{}, len(sessionFiles))
	for _, f := range sessionFiles {
		mentioned[f] = struct{}{}
	}

	overlap := 0
	for _, f := range commitFiles {
		if _, ok := mentioned[f]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(commitFiles))
}

// BranchMatch is 1 when any branch in the session's history contains the
// commit, else 0.
func BranchMatch(branchHistory, commitBranches []string) float64 {
	onBranch := make(map[string]struct{}, len(commitBranches))
	for _, b := range commitBranches {
		onBranch[b] = struct{}{}
	}
	for _, b := range branchHistory {
		if _, ok := onBranch[b]; ok {
			return 1
		}
	}
	return 0
}

// Score combines the components into a confidence in [0,1].
func Score(session *models.Session, sessionFiles []string, commit *git.Commit, window time.Duration, w Weights) float64 {
	end := session.StartedAt
	if session.EndedAt != nil {
		end = *session.EndedAt
	}

	timeScore := TimeProximity(commit.Time, session.StartedAt, end, window)
	fileScore := FileOverlap(sessionFiles, commit.Files)
	branchScore := BranchMatch(session.BranchHistory, commit.Branches)

	score := w.Time*timeScore + w.File*fileScore + w.Branch*branchScore
	if timeScore > 0 && fileScore > 0 {
		score += w.Bonus
	}
	// Drop float summation noise so a full match lands on exactly 1.
	score = math.Round(score*1e9) / 1e9

	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
