package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/beam-cloud/airkv/pkg/types"
)

const (
	kvDirName       = "kv"
	blobsDirName    = "blobs"
	catalogExt      = ".sqlite"
	catalogTable    = "_mf_entries"
	catalogPragmaTO = "busy_timeout(5000)"
)

// Layout describes where the emulator keeps its KV state under a project root.
type Layout struct {
	StateRelativePath string
	CatalogDir        string
	InternalPrefix    string
}

// DefaultLayout matches the emulator's v3 state directory.
func DefaultLayout() Layout {
	return Layout{
		StateRelativePath: ".wrangler/state/v3",
		CatalogDir:        "miniflare-KVNamespaceObject",
		InternalPrefix:    "miniflare-",
	}
}

// LayoutFromConfig fills unset fields from DefaultLayout.
func LayoutFromConfig(cfg types.LocalConfig) Layout {
	l := DefaultLayout()
	if cfg.StateRelativePath != "" {
		l.StateRelativePath = cfg.StateRelativePath
	}
	if cfg.CatalogDir != "" {
		l.CatalogDir = cfg.CatalogDir
	}
	if cfg.InternalPrefix != "" {
		l.InternalPrefix = cfg.InternalPrefix
	}
	return l
}

// KVRoot returns <root>/<stateRelativePath>/kv
func (l Layout) KVRoot(root string) string {
	return filepath.Join(root, filepath.FromSlash(l.StateRelativePath), kvDirName)
}

// IsKVRoot reports whether root contains emulator KV state.
func (l Layout) IsKVRoot(root string) bool {
	info, err := os.Stat(l.KVRoot(root))
	return err == nil && info.IsDir()
}

// NamespaceDir is one namespace candidate found under the kv root.
type NamespaceDir struct {
	RawName  string
	BlobsDir string
}

// ListNamespaceDirs enumerates namespace directories, skipping the emulator's internal ones.
func (l Layout) ListNamespaceDirs(root string) ([]NamespaceDir, error) {
	kvRoot := l.KVRoot(root)
	info, err := os.Stat(kvRoot)
	if err != nil || !info.IsDir() {
		return nil, types.NewNotAKvRoot(root)
	}

	dirents, err := os.ReadDir(kvRoot)
	if err != nil {
		return nil, types.NewFilesystemError("failed to read KV directory", err)
	}

	dirs := make([]NamespaceDir, 0, len(dirents))
	for _, de := range dirents {
		if !de.IsDir() || strings.HasPrefix(de.Name(), l.InternalPrefix) {
			continue
		}
		dirs = append(dirs, NamespaceDir{
			RawName:  de.Name(),
			BlobsDir: filepath.Join(kvRoot, de.Name(), blobsDirName),
		})
	}
	return dirs, nil
}

// BlobsDir returns the blob directory of a raw namespace name.
func (l Layout) BlobsDir(root, rawName string) string {
	return filepath.Join(l.KVRoot(root), rawName, blobsDirName)
}

// CatalogPath returns the first .sqlite file in the catalog directory.
func (l Layout) CatalogPath(root string) (string, error) {
	dir := filepath.Join(l.KVRoot(root), l.CatalogDir)
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", types.NewCatalogMissing(dir)
		}
		return "", types.NewFilesystemError("failed to read catalog directory", err)
	}
	for _, de := range dirents {
		if !de.IsDir() && filepath.Ext(de.Name()) == catalogExt {
			return filepath.Join(dir, de.Name()), nil
		}
	}
	return "", types.NewCatalogMissing(dir)
}

// CatalogEntry is one row of the emulator's entry table.
type CatalogEntry struct {
	Key        string
	BlobID     string
	Expiration *int64
	Metadata   *string
}

// Catalog is an open handle on the emulator's entry database.
type Catalog struct {
	db   *sql.DB
	path string
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenCatalog opens the catalog database for root.
func (l Layout) OpenCatalog(ctx context.Context, root string) (*Catalog, error) {
	path, err := l.CatalogPath(root)
	if err != nil {
		return nil, err
	}
	return OpenCatalogFile(ctx, path)
}

// OpenCatalogFile opens an existing catalog database file.
func OpenCatalogFile(ctx context.Context, path string) (*Catalog, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=%s", path, catalogPragmaTO)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, types.NewCatalogUnavailable("failed to open catalog database", err)
	}

	// The emulator may hold the file open too; one connection keeps transactions on a single handle.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, types.NewCatalogUnavailable("failed to open catalog database", err)
	}

	log.Debug().Str("path", path).Msg("opened kv catalog")
	return &Catalog{db: db, path: path}, nil
}

func (c *Catalog) Path() string {
	return c.path
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// QueryEntries reads every row of the entry table. Row order is whatever the database returns.
func (c *Catalog) QueryEntries(ctx context.Context) ([]CatalogEntry, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT key, blob_id, expiration, metadata FROM "+catalogTable)
	if err != nil {
		return nil, types.NewCatalogUnavailable("failed to query catalog entries", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var (
			e          CatalogEntry
			expiration sql.NullInt64
			metadata   sql.NullString
		)
		if err := rows.Scan(&e.Key, &e.BlobID, &expiration, &metadata); err != nil {
			return nil, types.NewCatalogUnavailable("failed to read catalog entry", err)
		}
		if expiration.Valid {
			v := expiration.Int64
			e.Expiration = &v
		}
		if metadata.Valid {
			v := metadata.String
			e.Metadata = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewCatalogUnavailable("failed to read catalog entries", err)
	}
	return entries, nil
}

// GetBlobIDForKey resolves key to its blob id.
func (c *Catalog) GetBlobIDForKey(ctx context.Context, key string) (string, error) {
	return blobIDForKey(ctx, c.db, key)
}

func blobIDForKey(ctx context.Context, q queryRower, key string) (string, error) {
	var blobID string
	err := q.QueryRowContext(ctx, "SELECT blob_id FROM "+catalogTable+" WHERE key = ?", key).Scan(&blobID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.NewKeyNotFound(key)
	}
	if err != nil {
		return "", types.NewCatalogUnavailable("failed to look up key", err)
	}
	return blobID, nil
}
