package db

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// AddTag applies a label to a session. Tagging the same pair again is a
// no-op. Returns true if a new row was inserted.
func AddTag(q Queryer, sessionID uuid.UUID, label string) (bool, error) {
	if label == "" {
		return false, eris.New("tag label must not be empty")
	}

	res, err := q.Exec(`
		INSERT INTO tags (id, session_id, label)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, label) DO NOTHING
	`, uuid.NewString(), sessionID.String(), label)
	if err != nil {
		return false, eris.Wrapf(err, "failed to tag session %s", sessionID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "failed to get rows affected")
	}
	return n > 0, nil
}

// RemoveTag removes a label from a session.
func RemoveTag(q Queryer, sessionID uuid.UUID, label string) error {
	res, err := q.Exec(
		"DELETE FROM tags WHERE session_id = ? AND label = ?",
		sessionID.String(), label,
	)
	if err != nil {
		return eris.Wrapf(err, "failed to untag session %s", sessionID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return eris.Errorf("session %s is not tagged %q", sessionID, label)
	}
	return nil
}

// GetTags returns a session's labels in creation order.
func GetTags(q Queryer, sessionID uuid.UUID) ([]string, error) {
	rows, err := q.Query(
		"SELECT label FROM tags WHERE session_id = ? ORDER BY created_at",
		sessionID.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query tags for session %s", sessionID)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, eris.Wrap(err, "failed to scan tag row")
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating tag rows")
	}
	return labels, nil
}
