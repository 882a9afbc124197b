package db

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// InsertMessagesMissing batch-appends messages, skipping any whose
// (session_id, index) already exists. This is the deduplication hinge:
// adapters re-parse whole files and repeat inserts are cheap no-ops.
// Returns the number of rows actually inserted.
func InsertMessagesMissing(q Queryer, sessionID uuid.UUID, messages []*models.Message) (int, error) {
	inserted := 0

	for _, m := range messages {
		content, err := json.Marshal(m.Content)
		if err != nil {
			return inserted, eris.Wrapf(err, "failed to encode content for message %d", m.Index)
		}

		var parentID any
		if m.ParentID != nil {
			parentID = m.ParentID.String()
		}

		res, err := q.Exec(`
			INSERT INTO messages (id, session_id, parent_id, idx, timestamp, role, content, model, git_branch, cwd)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, idx) DO NOTHING
		`,
			m.ID.String(),
			sessionID.String(),
			parentID,
			m.Index,
			formatTime(m.Timestamp),
			string(m.Role),
			string(content),
			m.Model,
			m.GitBranch,
			m.CWD,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "failed to insert message %d for session %s", m.Index, sessionID)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return inserted, eris.Wrap(err, "failed to get rows affected")
		}
		inserted += int(n)
	}

	return inserted, nil
}

// GetMessages returns a session's messages ordered by index.
func GetMessages(q Queryer, sessionID uuid.UUID) ([]*models.Message, error) {
	rows, err := q.Query(`
		SELECT id, session_id, parent_id, idx, timestamp, role, content, model, git_branch, cwd
		FROM messages
		WHERE session_id = ?
		ORDER BY idx
	`, sessionID.String())
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query messages for session %s", sessionID)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		var (
			id        string
			sid       string
			parentID  sql.NullString
			timestamp string
			role      string
			content   string
		)

		err := rows.Scan(&id, &sid, &parentID, &m.Index, &timestamp, &role, &content, &m.Model, &m.GitBranch, &m.CWD)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan message row")
		}

		m.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid message id in store: %s", id)
		}
		m.SessionID, err = uuid.Parse(sid)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid session id in store: %s", sid)
		}
		if parentID.Valid {
			pid, err := uuid.Parse(parentID.String)
			if err != nil {
				return nil, eris.Wrapf(err, "invalid parent id in store: %s", parentID.String)
			}
			m.ParentID = &pid
		}
		m.Timestamp, err = parseTime(timestamp)
		if err != nil {
			return nil, err
		}
		m.Role = models.MessageRole(role)
		if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
			// Content written by an older build may be a bare string.
			m.Content = models.TextContent(content)
		}

		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating message rows")
	}

	return messages, nil
}

// CountSessionMessages returns the number of stored messages for a session.
func CountSessionMessages(q Queryer, sessionID uuid.UUID) (int, error) {
	var count int
	err := q.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID.String()).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to count messages for session %s", sessionID)
	}
	return count, nil
}

// RecountSessionMessages refreshes the denormalised message_count column
// from the messages table.
func RecountSessionMessages(q Queryer, sessionID uuid.UUID) (int, error) {
	count, err := CountSessionMessages(q, sessionID)
	if err != nil {
		return 0, err
	}

	_, err = q.Exec("UPDATE sessions SET message_count = ? WHERE id = ?", count, sessionID.String())
	if err != nil {
		return 0, eris.Wrapf(err, "failed to update message count for session %s", sessionID)
	}
	return count, nil
}
