package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFSHasBothDialects(t *testing.T) {
	for _, driver := range []string{"postgres", "sqlite"} {
		entries, err := FS.ReadDir(Dir(driver))
		require.NoError(t, err, driver)
		require.NotEmpty(t, entries, driver)
		assert.Equal(t, "00001_initial_schema.sql", entries[0].Name())

		content, err := FS.ReadFile(Dir(driver) + "/" + entries[0].Name())
		require.NoError(t, err)
		assert.Contains(t, string(content), "-- +goose Up")
		assert.Contains(t, string(content), "-- +goose Down")
	}
}
