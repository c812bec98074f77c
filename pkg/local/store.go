// Package local reads and writes KV data kept on disk by the local Workers emulator.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/airkv/pkg/blob"
	"github.com/beam-cloud/airkv/pkg/metrics"
	"github.com/beam-cloud/airkv/pkg/types"
)

const stagedDeleteSuffix = ".airkv-delete"

// Store implements namespace and entry operations for one emulator layout.
// Every call takes the folder root explicitly; Store holds no per-folder state.
type Store struct {
	layout Layout
}

func NewStore(layout Layout) *Store {
	return &Store{layout: layout}
}

func (s *Store) Layout() Layout {
	return s.layout
}

// ListNamespaces returns every readable namespace under root.
// Namespaces whose catalog cannot be read are reported in Skipped rather than failing the listing.
func (s *Store) ListNamespaces(ctx context.Context, folderID int64, root string) (Result[types.Namespace], error) {
	start := time.Now()
	res, err := s.listNamespaces(ctx, folderID, root)
	metrics.RecordLocalOperation("list_namespaces", err, time.Since(start))
	return res, err
}

func (s *Store) listNamespaces(ctx context.Context, folderID int64, root string) (Result[types.Namespace], error) {
	dirs, err := s.layout.ListNamespaceDirs(root)
	if err != nil {
		return Result[types.Namespace]{}, err
	}

	res := Collect(dirs,
		func(d NamespaceDir) string { return d.RawName },
		func(d NamespaceDir) (types.Namespace, error) { return s.readNamespace(ctx, folderID, root, d) },
	)

	for _, sk := range res.Skipped {
		log.Warn().Err(sk.Err).Int64("folder_id", folderID).Str("namespace", sk.Name).Msg("skipping unreadable namespace")
	}
	metrics.RecordSkippedNamespaces(len(res.Skipped))
	return res, nil
}

func (s *Store) readNamespace(ctx context.Context, folderID int64, root string, dir NamespaceDir) (types.Namespace, error) {
	catalog, err := s.layout.OpenCatalog(ctx, root)
	if err != nil {
		return types.Namespace{}, err
	}
	defer catalog.Close()

	rows, err := catalog.QueryEntries(ctx)
	if err != nil {
		return types.Namespace{}, err
	}

	entries := make([]types.Entry, 0, len(rows))
	for _, row := range rows {
		raw, err := os.ReadFile(filepath.Join(dir.BlobsDir, row.BlobID))
		if err != nil {
			// Rows whose blob lives in another namespace directory
			continue
		}
		entries = append(entries, types.Entry{
			ID:         row.Key,
			Key:        row.Key,
			BlobRef:    row.BlobID,
			Expiration: row.Expiration,
			Metadata:   row.Metadata,
			Value:      blob.Decode(raw),
		})
	}

	ref := types.LocalNamespaceRef{FolderID: folderID, RawName: dir.RawName}
	count := len(entries)
	fid := folderID
	return types.Namespace{
		ID:         ref.String(),
		Name:       strings.ToUpper(dir.RawName),
		Kind:       types.NamespaceKindLocal,
		FolderID:   &fid,
		EntryCount: &count,
		Entries:    entries,
	}, nil
}

// GetValue reads and decodes the blob stored for key.
func (s *Store) GetValue(ctx context.Context, root string, ref types.LocalNamespaceRef, key string) (json.RawMessage, error) {
	blobPath, err := s.resolveBlob(ctx, root, ref, key)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(blobPath)
	if err != nil {
		return nil, types.NewFilesystemError("failed to read blob file", err)
	}
	return blob.Decode(raw), nil
}

// UpdateEntry overwrites the blob for key with value. Catalog rows are not modified.
func (s *Store) UpdateEntry(ctx context.Context, root string, ref types.LocalNamespaceRef, key, value string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordLocalOperation("update_entry", err, time.Since(start)) }()

	blobPath, err := s.resolveBlob(ctx, root, ref, key)
	if err != nil {
		return err
	}

	data, err := blob.Encode(value)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(blobPath, data); err != nil {
		return types.NewFilesystemError("failed to write blob file", err)
	}

	log.Info().Str("namespace", ref.String()).Str("key", key).Msg("updated local entry")
	return nil
}

func (s *Store) resolveBlob(ctx context.Context, root string, ref types.LocalNamespaceRef, key string) (string, error) {
	blobsDir, err := s.namespaceBlobsDir(root, ref)
	if err != nil {
		return "", err
	}

	catalog, err := s.layout.OpenCatalog(ctx, root)
	if err != nil {
		return "", err
	}
	defer catalog.Close()

	blobID, err := catalog.GetBlobIDForKey(ctx, key)
	if err != nil {
		return "", err
	}

	blobPath := filepath.Join(blobsDir, blobID)
	if _, err := os.Stat(blobPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", types.NewBlobMissing(key)
		}
		return "", types.NewFilesystemError("failed to stat blob file", err)
	}
	return blobPath, nil
}

// namespaceBlobsDir returns the blobs directory of ref, failing when the namespace
// directory does not exist under root.
func (s *Store) namespaceBlobsDir(root string, ref types.LocalNamespaceRef) (string, error) {
	dir := s.layout.BlobsDir(root, ref.RawName)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", types.NewNamespaceNotFound(ref.String())
		}
		return "", types.NewFilesystemError("failed to stat namespace directory", err)
	}
	if !info.IsDir() {
		return "", types.NewNamespaceNotFound(ref.String())
	}
	return dir, nil
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

type stagedBlob struct {
	key      string
	original string
	staged   string
}

// DeleteEntries removes keys from the catalog and their blob files as one unit.
//
// Rows are deleted inside a catalog transaction. Blob files are renamed aside before
// commit so a failure can restore them; they are removed only after the commit succeeds.
// A key only belongs to the namespace when its blob lives in that namespace's blobs dir,
// so a row whose blob is elsewhere fails the batch with KeyNotFound.
func (s *Store) DeleteEntries(ctx context.Context, root string, ref types.LocalNamespaceRef, keys []string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordLocalOperation("delete_entries", err, time.Since(start)) }()

	keys = uniqueKeys(keys)
	if len(keys) == 0 {
		return nil
	}

	blobsDir, err := s.namespaceBlobsDir(root, ref)
	if err != nil {
		return err
	}

	catalog, err := s.layout.OpenCatalog(ctx, root)
	if err != nil {
		return err
	}
	defer catalog.Close()

	tx, err := catalog.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewCatalogUnavailable("failed to begin transaction", err)
	}

	var staged []stagedBlob
	committed := false
	defer func() {
		if committed {
			return
		}
		restoreStaged(staged)
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error().Err(rbErr).Str("catalog", catalog.Path()).Msg("failed to roll back delete")
		}
	}()

	blobPaths := make([]string, len(keys))
	for i, key := range keys {
		blobID, err := blobIDForKey(ctx, tx, key)
		if err != nil {
			return err
		}
		blobPath := filepath.Join(blobsDir, blobID)
		if _, err := os.Stat(blobPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return types.NewKeyNotFound(key)
			}
			return types.NewFilesystemError("failed to stat blob file", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+catalogTable+" WHERE key = ?", key); err != nil {
			return types.NewCatalogUnavailable("failed to delete catalog entry", err)
		}
		blobPaths[i] = blobPath
	}

	for i, key := range keys {
		original := blobPaths[i]
		target := original + stagedDeleteSuffix
		if err := os.Rename(original, target); err != nil {
			return types.NewBlobDeleteFailed(key, err)
		}
		staged = append(staged, stagedBlob{key: key, original: original, staged: target})
	}

	if err := tx.Commit(); err != nil {
		return types.NewCatalogUnavailable("failed to commit delete", err)
	}
	committed = true

	for _, sb := range staged {
		if err := os.Remove(sb.staged); err != nil {
			log.Warn().Err(err).Str("key", sb.key).Str("path", sb.staged).Msg("failed to remove staged blob")
		}
	}

	log.Info().Str("namespace", ref.String()).Int("count", len(keys)).Msg("deleted local entries")
	return nil
}

func restoreStaged(staged []stagedBlob) {
	for i := len(staged) - 1; i >= 0; i-- {
		sb := staged[i]
		if err := os.Rename(sb.staged, sb.original); err != nil {
			log.Error().Err(err).Str("key", sb.key).Str("path", sb.staged).Msg("failed to restore staged blob")
		}
	}
}

func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".airkv-write-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// IsKVRoot reports whether root holds emulator KV state.
func (s *Store) IsKVRoot(root string) bool {
	return s.layout.IsKVRoot(root)
}
