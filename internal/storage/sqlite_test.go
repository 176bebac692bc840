package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Acme Corp", "acme"))
	assert.True(t, ContainsFold("ACME LABS", "me la"))
	assert.True(t, ContainsFold("anything", ""))
	assert.False(t, ContainsFold("Globex", "acme"))
}

func TestDefaultDSN_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	dsn, err := DefaultDSN(dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:"))
	assert.Contains(t, dsn, filepath.Join(dir, dbFileName))
	assert.Contains(t, dsn, "_journal_mode=WAL")

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpen_RegistersContainsFold(t *testing.T) {
	dsn, err := DefaultDSN(t.TempDir())
	require.NoError(t, err)

	db, err := Open(context.Background(), dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.Connected(context.Background()))

	var match bool
	err = db.QueryRow(`SELECT contains_fold(?, ?)`, "Initech Inc", "INITECH").Scan(&match)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/x.db", redactDSN("file:/tmp/x.db?_busy_timeout=5000"))
	assert.Equal(t, "file:/tmp/x.db", redactDSN("file:/tmp/x.db"))
}
