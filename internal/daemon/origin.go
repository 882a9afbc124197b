package daemon

import "github.com/lorehq/lore/internal/models"

// originFromString maps an IPC origin argument onto a link origin,
// defaulting to auto-backward.
func originFromString(s string) models.LinkOrigin {
	switch s {
	case "hook":
		return models.OriginHook
	case "manual":
		return models.OriginManual
	default:
		return models.OriginAutoBackward
	}
}
