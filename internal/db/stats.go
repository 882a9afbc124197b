package db

import (
	"database/sql"
	"os"

	"github.com/rotisserie/eris"
)

// Stats summarises the store contents.
type Stats struct {
	Sessions  int   `json:"sessions"`
	Messages  int   `json:"messages"`
	Links     int   `json:"links"`
	SizeBytes int64 `json:"size_bytes"`
}

// GetStats returns row counts and the on-disk size of the database file.
func GetStats(q Queryer, dbPath string) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sessions", &stats.Sessions},
		{"SELECT COUNT(*) FROM messages", &stats.Messages},
		{"SELECT COUNT(*) FROM session_links", &stats.Links},
	}
	for _, c := range counts {
		if err := q.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, eris.Wrapf(err, "failed to run %q", c.query)
		}
	}

	if info, err := os.Stat(dbPath); err == nil {
		stats.SizeBytes = info.Size()
	}

	return stats, nil
}

// GetMeta returns the value for a meta key, or "" if unset.
func GetMeta(q Queryer, key string) (string, error) {
	var value string
	err := q.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "failed to query meta key %s", key)
	}
	return value, nil
}

// SetMeta stores a persistent metadata value such as the machine identity.
func SetMeta(q Queryer, key, value string) error {
	_, err := q.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return eris.Wrapf(err, "failed to set meta key %s", key)
	}
	return nil
}
