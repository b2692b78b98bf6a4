package migrations_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"stafflink/migrations"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T) string {
	t.Helper()
	names, err := migrations.Files()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	var b strings.Builder
	for _, name := range names {
		body, err := migrations.FS.ReadFile(name)
		require.NoError(t, err)
		b.Write(body)
	}
	return b.String()
}

func TestSchema_UniqueIndexes(t *testing.T) {
	schema := readAll(t)

	tests := []struct {
		name    string
		pattern string
	}{
		{
			name:    "one live timesheet per shift",
			pattern: `(?s)CREATE UNIQUE INDEX IF NOT EXISTS uq_timesheets_active_shift\s+ON timesheets\(shift_id\)\s+WHERE status <> 'rejected';`,
		},
		{
			name:    "one open workflow per entity",
			pattern: `(?s)CREATE UNIQUE INDEX IF NOT EXISTS uq_admin_workflows_open_entity\s+ON admin_workflows\(type, related_entity_type, related_entity_id\)\s+WHERE status IN \('pending', 'in_progress'\);`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, regexp.MustCompile(tt.pattern), schema)
		})
	}
}

func TestApply(t *testing.T) {
	names, err := migrations.Files()
	require.NoError(t, err)

	t.Run("runs every file in order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		for range names {
			mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
		}

		applied, err := migrations.Apply(context.Background(), db)
		require.NoError(t, err)
		assert.Equal(t, names, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at the failing file", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnError(errors.New("permission denied"))

		applied, err := migrations.Apply(context.Background(), db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), names[0])
		assert.Empty(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
