package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

const sessionColumns = `id, tool, tool_version, started_at, ended_at, model, working_directory, branch_history, source_path, metadata, message_count, machine_id`

// UpsertSession creates or updates a session by id. On update, started_at,
// tool, and working_directory are immutable; ended_at only moves forward.
func UpsertSession(q Queryer, session *models.Session) error {
	history, err := json.Marshal(session.BranchHistory)
	if err != nil {
		return eris.Wrap(err, "failed to encode branch history")
	}
	if session.BranchHistory == nil {
		history = []byte("[]")
	}

	_, err = q.Exec(`
		INSERT INTO sessions (id, tool, tool_version, started_at, ended_at, model, working_directory, branch_history, source_path, metadata, message_count, machine_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tool_version = excluded.tool_version,
			ended_at = CASE
				WHEN excluded.ended_at IS NULL THEN sessions.ended_at
				WHEN sessions.ended_at IS NULL OR excluded.ended_at > sessions.ended_at THEN excluded.ended_at
				ELSE sessions.ended_at
			END,
			model = excluded.model,
			branch_history = excluded.branch_history,
			metadata = excluded.metadata,
			message_count = excluded.message_count,
			machine_id = excluded.machine_id
	`,
		session.ID.String(),
		session.Tool,
		session.ToolVersion,
		formatTime(session.StartedAt),
		formatTimePtr(session.EndedAt),
		session.Model,
		session.WorkingDirectory,
		string(history),
		session.SourcePath,
		session.Metadata,
		session.MessageCount,
		session.MachineID,
	)
	if err != nil {
		return eris.Wrapf(err, "failed to upsert session %s", session.ID)
	}
	return nil
}

// FinaliseSession sets ended_at for a session, moving it only forward in
// time. Returns true if this call transitioned the session from live to
// finalised.
func FinaliseSession(q Queryer, id uuid.UUID, endedAt time.Time) (bool, error) {
	var prev sql.NullString
	err := q.QueryRow("SELECT ended_at FROM sessions WHERE id = ?", id.String()).Scan(&prev)
	if err == sql.ErrNoRows {
		return false, eris.Errorf("session not found: %s", id)
	}
	if err != nil {
		return false, eris.Wrap(err, "failed to query session ended_at")
	}

	_, err = q.Exec(`
		UPDATE sessions SET ended_at = CASE
			WHEN ended_at IS NULL OR ? > ended_at THEN ?
			ELSE ended_at
		END WHERE id = ?
	`, formatTime(endedAt), formatTime(endedAt), id.String())
	if err != nil {
		return false, eris.Wrapf(err, "failed to finalise session %s", id)
	}

	return !prev.Valid, nil
}

// GetSession retrieves a session by full id or unique id prefix. An
// ambiguous prefix fails with the candidate ids in the error.
func GetSession(q Queryer, idOrPrefix string) (*models.Session, error) {
	if id, err := uuid.Parse(idOrPrefix); err == nil {
		row := q.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id.String())
		session, err := scanSession(row)
		if err == sql.ErrNoRows {
			return nil, eris.Errorf("session not found: %s", idOrPrefix)
		}
		return session, err
	}

	rows, err := q.Query("SELECT "+sessionColumns+" FROM sessions WHERE id LIKE ? LIMIT 10", idOrPrefix+"%")
	if err != nil {
		return nil, eris.Wrap(err, "failed to query sessions by prefix")
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating session rows")
	}

	switch len(sessions) {
	case 0:
		return nil, eris.Errorf("session not found: %s", idOrPrefix)
	case 1:
		return sessions[0], nil
	default:
		ids := make([]string, len(sessions))
		for i, s := range sessions {
			ids[i] = s.ID.String()
		}
		return nil, eris.Errorf("ambiguous session prefix %s: matches %s", idOrPrefix, strings.Join(ids, ", "))
	}
}

// ListFilter narrows ListSessions results. Zero values mean no filter.
type ListFilter struct {
	WorkingDirectory string
	Tool             string
	Tag              string
	Since            *time.Time
	Until            *time.Time
	Limit            int
}

// ListSessions returns sessions matching the filter, most recent first.
func ListSessions(q Queryer, filter ListFilter) ([]*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE 1=1"
	var args []any

	if filter.WorkingDirectory != "" {
		// Componentwise prefix: the directory itself or anything below it.
		query += " AND (working_directory = ? OR working_directory LIKE ?)"
		wd := strings.TrimRight(filter.WorkingDirectory, "/")
		args = append(args, wd, wd+"/%")
	}
	if filter.Tool != "" {
		query += " AND tool = ?"
		args = append(args, filter.Tool)
	}
	if filter.Tag != "" {
		query += " AND id IN (SELECT session_id FROM tags WHERE label = ?)"
		args = append(args, filter.Tag)
	}
	if filter.Since != nil {
		query += " AND started_at >= ?"
		args = append(args, formatTime(*filter.Since))
	}
	if filter.Until != nil {
		query += " AND started_at <= ?"
		args = append(args, formatTime(*filter.Until))
	}

	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	return collectSessions(rows)
}

// GetSessionBySource returns the session recorded for a source path, or nil.
func GetSessionBySource(q Queryer, sourcePath string) (*models.Session, error) {
	row := q.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE source_path = ? ORDER BY started_at DESC LIMIT 1", sourcePath)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return session, err
}

// ListSessionsBySource returns every session imported from a source path.
func ListSessionsBySource(q Queryer, sourcePath string) ([]*models.Session, error) {
	rows, err := q.Query("SELECT "+sessionColumns+" FROM sessions WHERE source_path = ?", sourcePath)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query sessions by source")
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListLiveSessions returns sessions that have not been finalised yet.
func ListLiveSessions(q Queryer) ([]*models.Session, error) {
	rows, err := q.Query("SELECT " + sessionColumns + " FROM sessions WHERE ended_at IS NULL")
	if err != nil {
		return nil, eris.Wrap(err, "failed to query live sessions")
	}
	defer rows.Close()

	return collectSessions(rows)
}

// FindSessionsActiveDuring returns sessions whose activity interval
// intersects [start, end] and whose working directory is inside repoPath.
// The path comparison is componentwise so /a/project never matches
// /a/project-old.
func FindSessionsActiveDuring(q Queryer, start, end time.Time, repoPath string) ([]*models.Session, error) {
	rows, err := q.Query(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE started_at <= ? AND (ended_at IS NULL OR ended_at >= ?)
		ORDER BY started_at DESC
	`, formatTime(end), formatTime(start))
	if err != nil {
		return nil, eris.Wrap(err, "failed to query active sessions")
	}
	defer rows.Close()

	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, err
	}

	if repoPath == "" {
		return sessions, nil
	}

	var matched []*models.Session
	for _, s := range sessions {
		if models.PathHasPrefix(s.WorkingDirectory, repoPath) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// FindSessionsTouchingFiles returns sessions whose message contents mention
// any of the given paths.
func FindSessionsTouchingFiles(q Queryer, paths []string) ([]*models.Session, error) {
	seen := make(map[uuid.UUID]struct{})
	var sessions []*models.Session

	for _, p := range paths {
		if p == "" {
			continue
		}
		rows, err := q.Query(`
			SELECT DISTINCT `+prefixed(sessionColumns, "s.")+`
			FROM sessions s
			JOIN messages m ON m.session_id = s.id
			WHERE m.content LIKE ? ESCAPE '\'
		`, "%"+escapeLike(p)+"%")
		if err != nil {
			return nil, eris.Wrapf(err, "failed to query sessions touching %s", p)
		}

		batch, err := collectSessions(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, s := range batch {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			sessions = append(sessions, s)
		}
	}

	return sessions, nil
}

func prefixed(columns, prefix string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	session := &models.Session{}
	var (
		id        string
		startedAt string
		endedAt   sql.NullString
		history   string
	)

	err := row.Scan(
		&id,
		&session.Tool,
		&session.ToolVersion,
		&startedAt,
		&endedAt,
		&session.Model,
		&session.WorkingDirectory,
		&history,
		&session.SourcePath,
		&session.Metadata,
		&session.MessageCount,
		&session.MachineID,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to scan session row")
	}

	session.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid session id in store: %s", id)
	}
	session.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	session.EndedAt, err = parseTimePtr(endedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(history), &session.BranchHistory); err != nil {
		return nil, eris.Wrapf(err, "invalid branch history for session %s", id)
	}

	return session, nil
}

func collectSessions(rows *sql.Rows) ([]*models.Session, error) {
	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating session rows")
	}
	return sessions, nil
}
