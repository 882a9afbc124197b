package adapters

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lorehq/lore/internal/models"
)

// sessionNamespace seeds deterministic session ids for tools that do not
// embed one, so re-imports of the same source land on the same row.
var sessionNamespace = uuid.MustParse("8f3c1a6e-5b0d-4f6a-9c2e-7d41a0b3c9d5")

// DeriveSessionID returns a deterministic id for a source path.
func DeriveSessionID(sourcePath string) uuid.UUID {
	return uuid.NewSHA1(sessionNamespace, []byte(filepath.Clean(sourcePath)))
}

// DeriveMessageID returns a deterministic id for a message position within
// a session, for formats that carry no native message identifier.
func DeriveMessageID(sessionID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(sessionID, []byte(strconv.Itoa(index)))
}

// parseSessionID reuses a native identifier when it is a UUID, otherwise
// derives one from the source path.
func parseSessionID(native, sourcePath string) uuid.UUID {
	if id, err := uuid.Parse(native); err == nil {
		return id
	}
	return DeriveSessionID(sourcePath)
}

// parseRoleName maps common role names used across tools to canonical
// roles.
func parseRoleName(role string) (models.MessageRole, bool) {
	switch role {
	case "user", "human":
		return models.RoleHuman, true
	case "assistant":
		return models.RoleAssistant, true
	case "system":
		return models.RoleSystem, true
	default:
		return "", false
	}
}

// parseRFC3339 parses an RFC3339 timestamp, tolerating missing sub-second
// precision.
func parseRFC3339(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// parseMillis converts milliseconds since the Unix epoch.
func parseMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// homeDir returns the user home directory or "." when it cannot be
// resolved, matching the degraded behaviour of source discovery.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// vscodeGlobalStorage returns the platform-specific path to VS Code's
// global extension storage under the given home directory.
func vscodeGlobalStorage(home string) string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Code", "User", "globalStorage")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Code", "User", "globalStorage")
		}
		return filepath.Join(home, "AppData", "Roaming", "Code", "User", "globalStorage")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Code", "User", "globalStorage")
		}
		return filepath.Join(home, ".config", "Code", "User", "globalStorage")
	}
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
