package git

import (
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// IsWorktree reports whether dir is inside a git working tree.
func IsWorktree(dir string) bool {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--is-inside-work-tree")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "true"
}

// RepoRoot returns the top-level directory of the working tree containing
// dir.
func RepoRoot(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", eris.Wrapf(err, "not a git worktree: %s", dir)
	}
	return strings.TrimSpace(string(output)), nil
}

// CurrentBranch returns the branch currently checked out in dir. A detached
// HEAD yields an empty string.
func CurrentBranch(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve current branch in %s", dir)
	}

	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// HookDir returns the hooks directory for the repository containing dir,
// honouring core.hooksPath.
func HookDir(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--git-path", "hooks")
	output, err := cmd.Output()
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve hooks directory for %s", dir)
	}

	hookPath := strings.TrimSpace(string(output))
	if !strings.HasPrefix(hookPath, "/") {
		root, err := RepoRoot(dir)
		if err != nil {
			return "", err
		}
		hookPath = root + "/" + hookPath
	}
	return hookPath, nil
}

// HeadSHA returns the full sha of HEAD in dir.
func HeadSHA(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve HEAD in %s", dir)
	}
	return strings.TrimSpace(string(output)), nil
}
