package migration

import (
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := 0, 0
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups++
		case strings.HasSuffix(n, ".down.sql"):
			downs++
		default:
			t.Errorf("unexpected migration file %s", n)
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestEmbeddedMigrations_Source(t *testing.T) {
	source, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	body, _, err := source.ReadUp(first)
	require.NoError(t, err)
	defer body.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "CREATE TABLE IF NOT EXISTS documents")
	assert.Contains(t, buf.String(), "idx_documents_unique_key")
}
