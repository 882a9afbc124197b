package db

import (
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// UpsertCursor saves the ingestion bookmark for a source path.
func UpsertCursor(q Queryer, cursor *models.SourceCursor) error {
	_, err := q.Exec(`
		INSERT INTO source_cursors (source_path, tool, last_size_bytes, last_modified, content_hash_prefix, last_imported_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			tool = excluded.tool,
			last_size_bytes = excluded.last_size_bytes,
			last_modified = excluded.last_modified,
			content_hash_prefix = excluded.content_hash_prefix,
			last_imported_at = excluded.last_imported_at
	`,
		cursor.SourcePath,
		cursor.Tool,
		cursor.LastSizeBytes,
		formatTime(cursor.LastModified),
		cursor.ContentHashPrefix,
		formatTime(cursor.LastImportedAt),
	)
	if err != nil {
		return eris.Wrapf(err, "failed to upsert cursor for %s", cursor.SourcePath)
	}
	return nil
}

// GetCursor returns the cursor for a source path, or nil if none exists.
func GetCursor(q Queryer, sourcePath string) (*models.SourceCursor, error) {
	cursor := &models.SourceCursor{}
	var lastModified, lastImported string

	err := q.QueryRow(`
		SELECT source_path, tool, last_size_bytes, last_modified, content_hash_prefix, last_imported_at
		FROM source_cursors WHERE source_path = ?
	`, sourcePath).Scan(
		&cursor.SourcePath,
		&cursor.Tool,
		&cursor.LastSizeBytes,
		&lastModified,
		&cursor.ContentHashPrefix,
		&lastImported,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query cursor for %s", sourcePath)
	}

	cursor.LastModified, err = parseTime(lastModified)
	if err != nil {
		return nil, err
	}
	cursor.LastImportedAt, err = parseTime(lastImported)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}
