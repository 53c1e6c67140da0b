package db

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"010_indexes.sql":         {Data: []byte("SELECT 10;")},
		"002_snapshot_import.sql": {Data: []byte("SELECT 2;")},
		"001_bed_snapshot.sql":    {Data: []byte("SELECT 1;")},
		"README.md":               {Data: []byte("notes")},
		"seed.sql":                {Data: []byte("SELECT 0;")},
		"abc_bad.sql":             {Data: []byte("SELECT -1;")},
		"old/003_x.sql":           {Data: []byte("SELECT 3;")},
	}

	migrations, err := NewMigratorFS(nil, fsys).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_bed_snapshot.sql", migrations[0].Name)
	assert.Equal(t, "SELECT 1;", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, 10, migrations[2].Version)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := NewMigratorFS(nil, fsys).LoadMigrations()
	assert.Error(t, err)
}

func TestLoadMigrations_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_core.sql"), []byte("SELECT 1;"), 0o644))

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, "001_core.sql", migrations[0].Name)
}

func TestLoadMigrations_MissingDirectory(t *testing.T) {
	_, err := NewMigrator(nil, filepath.Join(t.TempDir(), "nope")).LoadMigrations()
	assert.Error(t, err)
}

func TestLoadMigrations_RepositoryFiles(t *testing.T) {
	migrations, err := NewMigrator(nil, "../../../migrations").LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for i, mig := range migrations {
		assert.Equal(t, i+1, mig.Version, "versions are contiguous")
		assert.NotEmpty(t, mig.SQL)
	}
}

func TestPendingAndStatus(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_a.sql"},
		{Version: 2, Name: "002_b.sql"},
		{Version: 3, Name: "003_c.sql"},
	}
	at := time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)
	applied := map[int]time.Time{1: at, 3: at}

	pending := Pending(migrations, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	statuses := BuildStatus(migrations, applied)
	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Applied)
	assert.Equal(t, at, *statuses[0].AppliedAt)
	assert.False(t, statuses[1].Applied)
	assert.Nil(t, statuses[1].AppliedAt)
	assert.True(t, statuses[2].Applied)
}

func TestPending_NothingApplied(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}}
	assert.Len(t, Pending(migrations, nil), 2)
}
