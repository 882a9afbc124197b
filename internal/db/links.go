package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

const linkColumns = `id, session_id, commit_sha, repo_path, created_at, origin, confidence`

// InsertLink records a session-commit link. Linking the same pair again is
// a no-op that preserves the earlier origin and confidence. Returns true if
// a new row was inserted.
func InsertLink(q Queryer, link *models.SessionLink) (bool, error) {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	res, err := q.Exec(`
		INSERT INTO session_links (id, session_id, commit_sha, repo_path, created_at, origin, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, commit_sha) DO NOTHING
	`,
		link.ID.String(),
		link.SessionID.String(),
		link.CommitSHA,
		link.RepoPath,
		formatTime(link.CreatedAt),
		string(link.Origin),
		link.Confidence,
	)
	if err != nil {
		return false, eris.Wrapf(err, "failed to insert link %s -> %s", link.SessionID, link.CommitSHA)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "failed to get rows affected")
	}
	return n > 0, nil
}

// DeleteLink removes a single session-commit link.
func DeleteLink(q Queryer, sessionID uuid.UUID, commitSHA string) error {
	res, err := q.Exec(
		"DELETE FROM session_links WHERE session_id = ? AND commit_sha = ?",
		sessionID.String(), commitSHA,
	)
	if err != nil {
		return eris.Wrapf(err, "failed to delete link %s -> %s", sessionID, commitSHA)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return eris.Errorf("link not found: %s -> %s", sessionID, commitSHA)
	}
	return nil
}

// GetLinksForSession returns all links for a session.
func GetLinksForSession(q Queryer, sessionID uuid.UUID) ([]*models.SessionLink, error) {
	rows, err := q.Query(
		"SELECT "+linkColumns+" FROM session_links WHERE session_id = ? ORDER BY created_at",
		sessionID.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query links for session %s", sessionID)
	}
	defer rows.Close()

	return collectLinks(rows)
}

// GetLinksForCommit returns all links whose commit sha starts with the
// given sha or sha prefix.
func GetLinksForCommit(q Queryer, commitSHA string) ([]*models.SessionLink, error) {
	rows, err := q.Query(
		"SELECT "+linkColumns+" FROM session_links WHERE commit_sha LIKE ? ORDER BY created_at",
		commitSHA+"%",
	)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query links for commit %s", commitSHA)
	}
	defer rows.Close()

	return collectLinks(rows)
}

func collectLinks(rows *sql.Rows) ([]*models.SessionLink, error) {
	var links []*models.SessionLink
	for rows.Next() {
		link := &models.SessionLink{}
		var (
			id        string
			sessionID string
			createdAt string
			origin    string
		)

		err := rows.Scan(&id, &sessionID, &link.CommitSHA, &link.RepoPath, &createdAt, &origin, &link.Confidence)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan link row")
		}

		link.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid link id in store: %s", id)
		}
		link.SessionID, err = uuid.Parse(sessionID)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid session id in store: %s", sessionID)
		}
		link.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		link.Origin = models.LinkOrigin(origin)

		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating link rows")
	}
	return links, nil
}
