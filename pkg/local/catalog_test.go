package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beam-cloud/airkv/pkg/types"
)

func TestListNamespaceDirs(t *testing.T) {
	root := newTestRoot(t)
	writeBlob(t, root, "abc123", "blob1", []byte(`{}`))
	writeBlob(t, root, "def456", "blob2", []byte(`{}`))

	dirs, err := DefaultLayout().ListNamespaceDirs(root)
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	assert.Equal(t, "abc123", dirs[0].RawName)
	assert.Equal(t, "def456", dirs[1].RawName)
	assert.Equal(t, filepath.Join(DefaultLayout().KVRoot(root), "abc123", "blobs"), dirs[0].BlobsDir)
}

func TestListNamespaceDirsNotAKvRoot(t *testing.T) {
	_, err := DefaultLayout().ListNamespaceDirs(t.TempDir())
	assert.ErrorIs(t, err, types.ErrNotAKvRoot)
}

func TestCatalogPathMissing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(DefaultLayout().KVRoot(root), "miniflare-KVNamespaceObject"), 0755))

	_, err := DefaultLayout().CatalogPath(root)
	assert.ErrorIs(t, err, types.ErrCatalogMissing)

	_, err = DefaultLayout().OpenCatalog(context.Background(), root)
	assert.ErrorIs(t, err, types.ErrCatalogMissing)
}

func TestCatalogQueries(t *testing.T) {
	exp := int64(1700000000)
	root := newTestRoot(t,
		catalogRow{key: "k1", blobID: "blob1"},
		catalogRow{key: "k2", blobID: "blob2", expiration: exp, metadata: `{"a":1}`},
	)

	catalog, err := DefaultLayout().OpenCatalog(context.Background(), root)
	require.NoError(t, err)
	defer catalog.Close()

	entries, err := catalog.QueryEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byKey := map[string]CatalogEntry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	assert.Nil(t, byKey["k1"].Expiration)
	assert.Nil(t, byKey["k1"].Metadata)
	require.NotNil(t, byKey["k2"].Expiration)
	assert.Equal(t, exp, *byKey["k2"].Expiration)
	require.NotNil(t, byKey["k2"].Metadata)
	assert.Equal(t, `{"a":1}`, *byKey["k2"].Metadata)

	blobID, err := catalog.GetBlobIDForKey(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, "blob2", blobID)

	_, err = catalog.GetBlobIDForKey(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
}

func TestLayoutFromConfig(t *testing.T) {
	l := LayoutFromConfig(types.LocalConfig{StateRelativePath: ".state"})
	assert.Equal(t, ".state", l.StateRelativePath)
	assert.Equal(t, "miniflare-KVNamespaceObject", l.CatalogDir)
	assert.Equal(t, "miniflare-", l.InternalPrefix)
}
