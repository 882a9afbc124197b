package cmd

import "database/sql"

// storeHandle bundles an open store with the path it was opened from, for
// commands that also report storage statistics.
type storeHandle struct {
	*sql.DB
	Path string
}
