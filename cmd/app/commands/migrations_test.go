package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverydesk/esign/internal/testutil"
)

func TestRunMigrations(t *testing.T) {
	logger := testutil.NewTestLogger()

	t.Run("unsupported-driver", func(t *testing.T) {
		err := RunMigrations(logger, "sqlite", "sqlite://esign.db")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create migrate instance")
	})

	t.Run("invalid-postgres-dsn", func(t *testing.T) {
		err := RunMigrations(logger, "postgres", "not-a-dsn")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create migrate instance")
	})

	t.Run("invalid-mysql-dsn", func(t *testing.T) {
		err := RunMigrations(logger, "mysql", "mysql://esign@tcp(127.0.0.1:1)/esign")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create migrate instance")
	})
}

// migrationVersions returns the up migration names of a dialect and checks that
// each has a down counterpart.
func migrationVersions(t *testing.T, dialect string) []string {
	t.Helper()

	dir := filepath.Join("..", "..", "..", "migrations", dialect)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	files := make(map[string]bool, len(entries))
	for _, entry := range entries {
		files[entry.Name()] = true
	}

	var versions []string
	for name := range files {
		base, ok := strings.CutSuffix(name, ".up.sql")
		if !ok {
			continue
		}
		assert.True(t, files[base+".down.sql"], "%s/%s has no down migration", dialect, base)
		versions = append(versions, base)
	}
	sort.Strings(versions)
	return versions
}

func TestMigrationSets(t *testing.T) {
	postgres := migrationVersions(t, "postgresql")
	mysql := migrationVersions(t, "mysql")

	assert.Equal(t, postgres, mysql, "both dialects must ship the same migrations")
	assert.Equal(t, []string{
		"000001_create_signature_tables",
		"000002_create_document_keys_table",
		"000003_create_audit_logs_table",
		"000004_create_outbox_events_table",
	}, postgres)
}
