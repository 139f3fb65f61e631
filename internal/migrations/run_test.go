package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsPaired(t *testing.T) {
	names, err := fs.Glob(fsys(), "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", n)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSchemaCascadesRatings(t *testing.T) {
	b, err := fs.ReadFile(fsys(), "0001_init.up.sql")
	require.NoError(t, err)
	sql := string(b)
	assert.Contains(t, sql, "references evaluation_records(id) on delete cascade")
	assert.Contains(t, sql, "primary key (record_id, rater_id)")
}

func TestRunRejectsEmptyDSN(t *testing.T) {
	assert.Error(t, Run(""))
}

func fsys() fs.FS { return migrationFS }
