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

func TestListNamespacesFramedBlob(t *testing.T) {
	root := newTestRoot(t, catalogRow{key: "k1", blobID: "blob1"})
	writeBlob(t, root, "abc123", "blob1", append([]byte{0x00, 0x00, 0x00, 0x07}, []byte(`{"x":1}`)...))

	store := NewStore(DefaultLayout())
	res, err := store.ListNamespaces(context.Background(), 1, root)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Items, 1)

	ns := res.Items[0]
	assert.Equal(t, "ABC123", ns.Name)
	assert.Equal(t, "folder-1-ns-abc123", ns.ID)
	assert.Equal(t, types.NamespaceKindLocal, ns.Kind)
	require.NotNil(t, ns.EntryCount)
	assert.Equal(t, 1, *ns.EntryCount)
	require.Len(t, ns.Entries, 1)
	assert.Equal(t, "k1", ns.Entries[0].Key)
	assert.Equal(t, "blob1", ns.Entries[0].BlobRef)
	assert.JSONEq(t, `{"x":1}`, string(ns.Entries[0].Value))
}

func TestListNamespacesSkipsInternalAndUndecodable(t *testing.T) {
	root := newTestRoot(t,
		catalogRow{key: "k1", blobID: "blob1"},
		catalogRow{key: "k2", blobID: "blob2"},
		catalogRow{key: "orphan", blobID: "nowhere"},
	)
	writeBlob(t, root, "abc123", "blob1", []byte(`[1,2]`))
	writeBlob(t, root, "abc123", "blob2", []byte("not json at all"))
	require.NoError(t, os.MkdirAll(filepath.Join(DefaultLayout().KVRoot(root), "miniflare-Other"), 0755))

	res, err := NewStore(DefaultLayout()).ListNamespaces(context.Background(), 2, root)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	ns := res.Items[0]
	require.Len(t, ns.Entries, 2)
	byKey := map[string]types.Entry{}
	for _, e := range ns.Entries {
		byKey[e.Key] = e
	}
	assert.JSONEq(t, `[1,2]`, string(byKey["k1"].Value))
	k2 := byKey["k2"]
	assert.False(t, k2.HasValue())
	assert.NotContains(t, byKey, "orphan")
}

func TestListNamespacesNotAKvRoot(t *testing.T) {
	res, err := NewStore(DefaultLayout()).ListNamespaces(context.Background(), 1, t.TempDir())
	assert.ErrorIs(t, err, types.ErrNotAKvRoot)
	assert.Empty(t, res.Items)
}

func TestListNamespacesWithoutCatalog(t *testing.T) {
	root := t.TempDir()
	writeBlob(t, root, "abc123", "blob1", []byte(`{}`))

	res, err := NewStore(DefaultLayout()).ListNamespaces(context.Background(), 1, root)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "abc123", res.Skipped[0].Name)
	assert.ErrorIs(t, res.Skipped[0].Err, types.ErrCatalogMissing)
}

func TestUpdateEntryRoundTrip(t *testing.T) {
	root := newTestRoot(t, catalogRow{key: "k1", blobID: "blob1"})
	writeBlob(t, root, "abc123", "blob1", []byte(`{"x":1}`))

	store := NewStore(DefaultLayout())
	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "abc123"}
	require.NoError(t, store.UpdateEntry(context.Background(), root, ref, "k1", `{"x":2,"y":[true]}`))

	res, err := store.ListNamespaces(context.Background(), 1, root)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Len(t, res.Items[0].Entries, 1)
	assert.JSONEq(t, `{"x":2,"y":[true]}`, string(res.Items[0].Entries[0].Value))

	value, err := store.GetValue(context.Background(), root, ref, "k1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":2,"y":[true]}`, string(value))
}

func TestUpdateEntryInvalidJSONLeavesBlob(t *testing.T) {
	root := newTestRoot(t, catalogRow{key: "k1", blobID: "blob1"})
	original := append([]byte{0x01, 0x02}, []byte(`{"x":1}`)...)
	path := writeBlob(t, root, "abc123", "blob1", original)

	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "abc123"}
	err := NewStore(DefaultLayout()).UpdateEntry(context.Background(), root, ref, "k1", `{"x":`)
	assert.ErrorIs(t, err, types.ErrInvalidJSON)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, content)
}

func TestUpdateEntryMissing(t *testing.T) {
	root := newTestRoot(t, catalogRow{key: "k1", blobID: "blob1"})
	writeBlob(t, root, "abc123", "other", []byte(`{}`))
	store := NewStore(DefaultLayout())
	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "abc123"}

	err := store.UpdateEntry(context.Background(), root, ref, "nope", `{}`)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)

	err = store.UpdateEntry(context.Background(), root, ref, "k1", `{}`)
	assert.ErrorIs(t, err, types.ErrBlobMissing)
}

func TestDeleteEntries(t *testing.T) {
	root := newTestRoot(t,
		catalogRow{key: "k1", blobID: "blob1"},
		catalogRow{key: "k2", blobID: "blob2"},
		catalogRow{key: "k3", blobID: "blob3"},
	)
	p1 := writeBlob(t, root, "abc123", "blob1", []byte(`1`))
	p2 := writeBlob(t, root, "abc123", "blob2", []byte(`2`))
	p3 := writeBlob(t, root, "abc123", "blob3", []byte(`3`))

	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "abc123"}
	require.NoError(t, NewStore(DefaultLayout()).DeleteEntries(context.Background(), root, ref, []string{"k1", "k2"}))

	assert.Equal(t, 1, countRows(t, root))
	assert.NoFileExists(t, p1)
	assert.NoFileExists(t, p2)
	assert.NoFileExists(t, p1+stagedDeleteSuffix)
	assert.FileExists(t, p3)
}

func TestDeleteEntriesMissingKeyRollsBack(t *testing.T) {
	root := newTestRoot(t, catalogRow{key: "k1", blobID: "blob1"})
	p1 := writeBlob(t, root, "abc123", "blob1", []byte(`{"x":1}`))

	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "abc123"}
	err := NewStore(DefaultLayout()).DeleteEntries(context.Background(), root, ref, []string{"k1", "k2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
	assert.Contains(t, err.Error(), "k2")

	assert.Equal(t, 1, countRows(t, root))
	assert.FileExists(t, p1)
}

func TestUpdateEntryUnknownNamespace(t *testing.T) {
	root := newTestRoot(t, catalogRow{key: "k1", blobID: "blob1"})
	writeBlob(t, root, "abc123", "blob1", []byte(`{}`))

	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "ghost"}
	err := NewStore(DefaultLayout()).UpdateEntry(context.Background(), root, ref, "k1", `{"x":1}`)
	assert.ErrorIs(t, err, types.ErrNamespaceNotFound)
}

func TestDeleteEntriesUnknownNamespace(t *testing.T) {
	root := newTestRoot(t, catalogRow{key: "k1", blobID: "blob1"})
	p1 := writeBlob(t, root, "nsb", "blob1", []byte(`{}`))

	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "ghost"}
	err := NewStore(DefaultLayout()).DeleteEntries(context.Background(), root, ref, []string{"k1"})
	assert.ErrorIs(t, err, types.ErrNamespaceNotFound)

	assert.Equal(t, 1, countRows(t, root))
	assert.FileExists(t, p1)
}

func TestDeleteEntriesKeyFromOtherNamespace(t *testing.T) {
	root := newTestRoot(t,
		catalogRow{key: "k1", blobID: "blob1"},
		catalogRow{key: "k2", blobID: "blob2"},
	)
	pa := writeBlob(t, root, "nsa", "blob2", []byte(`2`))
	pb := writeBlob(t, root, "nsb", "blob1", []byte(`1`))

	store := NewStore(DefaultLayout())
	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "nsa"}
	err := store.DeleteEntries(context.Background(), root, ref, []string{"k2", "k1"})
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
	assert.Contains(t, err.Error(), "k1")

	assert.Equal(t, 2, countRows(t, root))
	assert.FileExists(t, pa)
	assert.FileExists(t, pb)

	res, err := store.ListNamespaces(context.Background(), 1, root)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, ns := range res.Items {
		counts[ns.Name] = len(ns.Entries)
	}
	assert.Equal(t, map[string]int{"NSA": 1, "NSB": 1}, counts)
}

func TestDeleteEntriesDuplicateKeys(t *testing.T) {
	root := newTestRoot(t,
		catalogRow{key: "k1", blobID: "blob1"},
		catalogRow{key: "k2", blobID: "blob2"},
	)
	p1 := writeBlob(t, root, "abc123", "blob1", []byte(`1`))
	p2 := writeBlob(t, root, "abc123", "blob2", []byte(`2`))

	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "abc123"}
	require.NoError(t, NewStore(DefaultLayout()).DeleteEntries(context.Background(), root, ref, []string{"k1", "k1"}))

	assert.Equal(t, 1, countRows(t, root))
	assert.NoFileExists(t, p1)
	assert.FileExists(t, p2)
}

func TestDeleteEntriesRenameFailureRestoresBlobs(t *testing.T) {
	root := newTestRoot(t,
		catalogRow{key: "k1", blobID: "blob1"},
		catalogRow{key: "k2", blobID: "blob2"},
	)
	p1 := writeBlob(t, root, "abc123", "blob1", []byte(`1`))
	p2 := writeBlob(t, root, "abc123", "blob2", []byte(`2`))

	// A directory in the way makes staging blob2 fail after blob1 was staged
	blocker := p2 + stagedDeleteSuffix
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0755))

	ref := types.LocalNamespaceRef{FolderID: 1, RawName: "abc123"}
	err := NewStore(DefaultLayout()).DeleteEntries(context.Background(), root, ref, []string{"k1", "k2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBlobDeleteFailed)
	assert.Contains(t, err.Error(), "k2")

	assert.Equal(t, 2, countRows(t, root))
	content, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, `1`, string(content))
	assert.NoFileExists(t, p1+stagedDeleteSuffix)
	assert.FileExists(t, p2)
}
