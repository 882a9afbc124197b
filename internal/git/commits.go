package git

import (
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Commit is the linker's view of one commit: identity, committer time, the
// branches that contain it, and the files it touched.
type Commit struct {
	SHA      string
	Time     time.Time
	Branches []string
	Files    []string
}

// CommitsBetween enumerates commits across all refs whose committer
// timestamp falls within [from, to]. Commits on branches deleted before the
// scan are not visible; that is accepted behaviour.
func CommitsBetween(repoPath string, from, to time.Time) ([]*Commit, error) {
	cmd := exec.Command(
		"git", "-C", repoPath, "log", "--all",
		"--since", from.UTC().Format(time.RFC3339),
		"--until", to.UTC().Format(time.RFC3339),
		"--date-order",
		"--pretty=format:%x01%H%x00%ct",
		"--name-only",
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to enumerate commits in %s", repoPath)
	}

	commits, err := parseLogOutput(string(output))
	if err != nil {
		return nil, err
	}

	for _, c := range commits {
		c.Branches, _ = BranchesContaining(repoPath, c.SHA)
	}
	return commits, nil
}

// CommitInfo returns a single commit's metadata, including touched files
// and containing branches.
func CommitInfo(repoPath, sha string) (*Commit, error) {
	cmd := exec.Command(
		"git", "-C", repoPath, "show", sha,
		"--pretty=format:%x01%H%x00%ct",
		"--name-only",
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read commit %s in %s", sha, repoPath)
	}

	commits, err := parseLogOutput(string(output))
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, eris.Errorf("commit not found: %s", sha)
	}

	commit := commits[0]
	commit.Branches, _ = BranchesContaining(repoPath, commit.SHA)
	return commit, nil
}

// BranchesContaining lists the local branches whose history includes sha.
func BranchesContaining(repoPath, sha string) ([]string, error) {
	cmd := exec.Command(
		"git", "-C", repoPath, "branch",
		"--contains", sha,
		"--format=%(refname:short)",
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list branches containing %s", sha)
	}

	var branches []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// parseLogOutput parses `git log --pretty=format:%x01%H%x00%ct --name-only`
// output. Each record starts with \x01, carries sha and committer epoch
// separated by \x00, then one touched file per line.
func parseLogOutput(output string) ([]*Commit, error) {
	var commits []*Commit

	for _, record := range strings.Split(output, "\x01") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}

		lines := strings.Split(record, "\n")
		header := strings.SplitN(lines[0], "\x00", 2)
		if len(header) != 2 {
			continue
		}

		epoch, err := strconv.ParseInt(strings.TrimSpace(header[1]), 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid committer timestamp in log output: %s", header[1])
		}

		commit := &Commit{
			SHA:  strings.TrimSpace(header[0]),
			Time: time.Unix(epoch, 0).UTC(),
		}
		for _, line := range lines[1:] {
			line = strings.TrimSpace(line)
			if line != "" {
				commit.Files = append(commit.Files, line)
			}
		}
		commits = append(commits, commit)
	}

	return commits, nil
}
