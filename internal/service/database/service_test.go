package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteServiceMigrates(t *testing.T) {
	svc, err := NewService(Config{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "nested", "shortlist.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Migrate())
	// idempotent
	require.NoError(t, svc.Migrate())

	for _, table := range []string{"game_library", "media_library", "dislikes"} {
		var name string
		err := svc.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := NewService(Config{Driver: "mysql"}, zap.NewNop())
	assert.Error(t, err)
}
