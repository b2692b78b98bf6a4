// Package migrations ships the Postgres schema with the binaries. Every file
// is idempotent, so Apply can run on each start.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed *.sql
var FS embed.FS

// Files lists the embedded migrations in apply order.
func Files() ([]string, error) {
	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply executes every migration in order and returns the names it ran.
func Apply(ctx context.Context, db *sql.DB) ([]string, error) {
	names, err := Files()
	if err != nil {
		return nil, err
	}

	for i, name := range names {
		body, err := FS.ReadFile(name)
		if err != nil {
			return names[:i], err
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return names[:i], fmt.Errorf("%s: %w", name, err)
		}
	}
	return names, nil
}
