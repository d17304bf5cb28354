package migration

import (
	"io/fs"
	"strings"
	"testing"

	pkgdb "github.com/smallbiznis/panucci/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestApply_SQLite(t *testing.T) {
	conn := pkgdb.NewTest(t)

	require.NoError(t, Apply(conn))
	require.NoError(t, Apply(conn))

	for _, table := range []string{"sequence_counters", "customers", "orders", "order_items", "kitchen_orders"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}
