package local

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type catalogRow struct {
	key        string
	blobID     string
	expiration any
	metadata   any
}

// newTestRoot creates an emulator state directory with a catalog holding rows.
func newTestRoot(t *testing.T, rows ...catalogRow) string {
	t.Helper()

	root := t.TempDir()
	catalogDir := filepath.Join(DefaultLayout().KVRoot(root), "miniflare-KVNamespaceObject")
	require.NoError(t, os.MkdirAll(catalogDir, 0755))

	db, err := sql.Open("sqlite", filepath.Join(catalogDir, "0f3d2b.sqlite"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE _mf_entries (
		key TEXT PRIMARY KEY,
		blob_id TEXT NOT NULL,
		expiration INTEGER,
		metadata TEXT
	)`)
	require.NoError(t, err)

	for _, r := range rows {
		_, err := db.Exec("INSERT INTO _mf_entries (key, blob_id, expiration, metadata) VALUES (?, ?, ?, ?)",
			r.key, r.blobID, r.expiration, r.metadata)
		require.NoError(t, err)
	}
	return root
}

func writeBlob(t *testing.T, root, namespace, blobID string, content []byte) string {
	t.Helper()

	dir := DefaultLayout().BlobsDir(root, namespace)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, blobID)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func countRows(t *testing.T, root string) int {
	t.Helper()

	path, err := DefaultLayout().CatalogPath(root)
	require.NoError(t, err)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM _mf_entries").Scan(&n))
	return n
}
