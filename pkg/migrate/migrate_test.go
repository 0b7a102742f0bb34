package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Loyalty Points!")
	require.NoError(t, err)

	base := filepath.Base(path)
	assert.Regexp(t, `^\d{14}_add_loyalty_points\.sql$`, base)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "-- +goose Up")
	assert.Contains(t, string(b), "-- +goose Down")
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := CreateSQLMigration(t.TempDir(), "  !!! ")
	require.Error(t, err)
}

func TestValidateDirAcceptsGeneratedMigrations(t *testing.T) {
	dir := t.TempDir()

	_, err := CreateSQLMigration(dir, "init schema")
	require.NoError(t, err)

	require.NoError(t, ValidateDir(dir))
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename")
}

func TestValidateDirRejectsMissingDownMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260831000001_no_down.sql"), []byte("-- +goose Up\n"), 0o644))

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestValidateDirShippedMigrations(t *testing.T) {
	// Repo-relative path to the real migrations directory.
	require.NoError(t, ValidateDir(filepath.Join("..", "..", "migrations")))
}
