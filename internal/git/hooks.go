package git

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	hookMarkerBegin = "# >>> lore hooks >>>"
	hookMarkerEnd   = "# <<< lore hooks <<<"
)

// postCommitBlock asks the daemon (via the CLI) to compute links for the
// commit that was just created.
const postCommitBlock = hookMarkerBegin + `
lore link --commit "$(git rev-parse HEAD)" --origin hook >/dev/null 2>&1 || true
` + hookMarkerEnd + "\n"

// prepareCommitMsgBlock appends a Lore-Sessions footer naming the sessions
// active in this worktree.
const prepareCommitMsgBlock = hookMarkerBegin + `
case "$2" in
  merge|squash) ;;
  *)
    sessions="$(lore sessions --current --ids 2>/dev/null)"
    if [ -n "$sessions" ]; then
      printf '\nLore-Sessions: %s\n' "$sessions" >> "$1"
    fi
    ;;
esac
` + hookMarkerEnd + "\n"

// InstallHooks writes the lore git hooks into the repository containing
// dir. Existing hooks are preserved: the lore block is appended between
// markers and replaced in place on reinstall. The prepare-commit-msg hook
// is only written when withFooter is set.
func InstallHooks(dir string, withFooter bool) error {
	hookDir, err := HookDir(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		return eris.Wrapf(err, "failed to create hooks directory: %s", hookDir)
	}

	if err := installHook(filepath.Join(hookDir, "post-commit"), postCommitBlock); err != nil {
		return err
	}

	if withFooter {
		if err := installHook(filepath.Join(hookDir, "prepare-commit-msg"), prepareCommitMsgBlock); err != nil {
			return err
		}
	}

	return nil
}

// UninstallHooks removes the lore blocks from the repository's hooks,
// leaving any surrounding user content untouched.
func UninstallHooks(dir string) error {
	hookDir, err := HookDir(dir)
	if err != nil {
		return err
	}

	for _, name := range []string{"post-commit", "prepare-commit-msg"} {
		path := filepath.Join(hookDir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return eris.Wrapf(err, "failed to read hook: %s", path)
		}

		stripped := stripHookBlock(string(data))
		if strings.TrimSpace(stripped) == "#!/bin/sh" {
			if err := os.Remove(path); err != nil {
				return eris.Wrapf(err, "failed to remove hook: %s", path)
			}
			continue
		}
		if err := os.WriteFile(path, []byte(stripped), 0o755); err != nil {
			return eris.Wrapf(err, "failed to write hook: %s", path)
		}
	}

	return nil
}

func installHook(path, block string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		content := "#!/bin/sh\n" + block
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			return eris.Wrapf(err, "failed to write hook: %s", path)
		}
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "failed to read existing hook: %s", path)
	}

	content := stripHookBlock(string(data))
	if !strings.HasSuffix(content, "\n") && content != "" {
		content += "\n"
	}
	content += block

	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return eris.Wrapf(err, "failed to update hook: %s", path)
	}
	return nil
}

// stripHookBlock removes a previously installed lore block, if any.
func stripHookBlock(content string) string {
	begin := strings.Index(content, hookMarkerBegin)
	if begin < 0 {
		return content
	}
	end := strings.Index(content, hookMarkerEnd)
	if end < 0 {
		return content
	}
	end += len(hookMarkerEnd)
	for end < len(content) && content[end] == '\n' {
		end++
	}
	return content[:begin] + content[end:]
}
