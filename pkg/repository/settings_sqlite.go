package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/beam-cloud/airkv/pkg/types"

	// Import migrations to register them with goose
	_ "github.com/beam-cloud/airkv/pkg/repository/settings_migrations"
)

// SettingsDBFile is the settings database name inside the data directory
const SettingsDBFile = "airkv.db"

// SQLiteSettingsStore implements SettingsRepository on an embedded SQLite database
type SQLiteSettingsStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteSettingsStore opens (creating if needed) the settings database at dbPath and migrates it.
// Use ":memory:" for a throwaway database in tests.
func NewSQLiteSettingsStore(ctx context.Context, dbPath string) (*SQLiteSettingsStore, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, types.NewPersistenceError("failed to create settings directory", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, types.NewPersistenceError("failed to open settings database", err)
	}

	// SQLite allows a single writer; an in-memory database also only exists on its one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, types.NewPersistenceError("failed to open settings database", err)
	}

	s := &SQLiteSettingsStore{db: db, path: dbPath}
	if err := s.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("path", dbPath).Msg("opened settings store")
	return s, nil
}

// RunMigrations runs database migrations using goose
func (s *SQLiteSettingsStore) RunMigrations() error {
	goose.SetLogger(goose.NopLogger())

	// No SQL files: migrations are Go only, so don't scan the working directory
	goose.SetBaseFS(embed.FS{})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return types.NewPersistenceError("failed to set goose dialect", err)
	}

	// Go migrations are registered from init()
	if err := goose.Up(s.db, "."); err != nil {
		return types.NewPersistenceError("failed to run settings migrations", err)
	}

	version, err := goose.GetDBVersion(s.db)
	if err != nil {
		return types.NewPersistenceError("failed to get migration version", err)
	}

	log.Debug().Int64("version", version).Msg("settings migrations complete")
	return nil
}

func (s *SQLiteSettingsStore) Path() string {
	return s.path
}

func (s *SQLiteSettingsStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteSettingsStore) UpsertFolder(ctx context.Context, path, name string, now time.Time) (types.Folder, error) {
	var (
		f        types.Folder
		lastUsed int64
	)
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO folders (path, name, last_used) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET name = excluded.name, last_used = excluded.last_used
		 RETURNING id, path, name, last_used`,
		path, name, now.Unix(),
	).Scan(&f.ID, &f.Path, &f.Name, &lastUsed)
	if err != nil {
		return types.Folder{}, types.NewPersistenceError("failed to save folder", err)
	}
	f.LastUsedAt = time.Unix(lastUsed, 0)
	return f, nil
}

func (s *SQLiteSettingsStore) TouchFolder(ctx context.Context, id int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE folders SET last_used = ? WHERE id = ?`, now.Unix(), id)
	if err != nil {
		return types.NewPersistenceError("failed to update folder timestamp", err)
	}
	return requireAffected(res, types.NewFolderNotFound(id))
}

func (s *SQLiteSettingsStore) RemoveFolder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return types.NewPersistenceError("failed to remove folder", err)
	}
	return requireAffected(res, types.NewFolderNotFound(id))
}

// ListFolders returns folders, most recently used first
func (s *SQLiteSettingsStore) ListFolders(ctx context.Context) ([]types.Folder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, name, last_used FROM folders ORDER BY last_used DESC, id ASC`)
	if err != nil {
		return nil, types.NewPersistenceError("failed to list folders", err)
	}
	defer rows.Close()

	folders := []types.Folder{}
	for rows.Next() {
		var (
			f        types.Folder
			lastUsed int64
		)
		if err := rows.Scan(&f.ID, &f.Path, &f.Name, &lastUsed); err != nil {
			return nil, types.NewPersistenceError("failed to read folder", err)
		}
		f.LastUsedAt = time.Unix(lastUsed, 0)
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewPersistenceError("failed to list folders", err)
	}
	return folders, nil
}

func (s *SQLiteSettingsStore) UpsertConnection(ctx context.Context, accountID, apiToken string, now time.Time) (types.RemoteConnection, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO remote_connections (account_id, api_token, last_used) VALUES (?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET api_token = excluded.api_token, last_used = excluded.last_used`,
		accountID, apiToken, now.Unix(),
	)
	if err != nil {
		return types.RemoteConnection{}, types.NewPersistenceError("failed to save connection", err)
	}
	return types.RemoteConnection{AccountID: accountID, APIToken: apiToken, LastUsedAt: time.Unix(now.Unix(), 0)}, nil
}

func (s *SQLiteSettingsStore) TouchConnection(ctx context.Context, accountID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE remote_connections SET last_used = ? WHERE account_id = ?`, now.Unix(), accountID)
	if err != nil {
		return types.NewPersistenceError("failed to update connection timestamp", err)
	}
	return requireAffected(res, types.NewConnectionNotFound(accountID))
}

// ListConnections returns connections, most recently used first
func (s *SQLiteSettingsStore) ListConnections(ctx context.Context) ([]types.RemoteConnection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id, api_token, last_used FROM remote_connections ORDER BY last_used DESC, id ASC`)
	if err != nil {
		return nil, types.NewPersistenceError("failed to list connections", err)
	}
	defer rows.Close()

	conns := []types.RemoteConnection{}
	for rows.Next() {
		var (
			c        types.RemoteConnection
			lastUsed int64
		)
		if err := rows.Scan(&c.AccountID, &c.APIToken, &lastUsed); err != nil {
			return nil, types.NewPersistenceError("failed to read connection", err)
		}
		c.LastUsedAt = time.Unix(lastUsed, 0)
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewPersistenceError("failed to list connections", err)
	}
	return conns, nil
}

func (s *SQLiteSettingsStore) RemoveAllConnections(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM remote_connections`); err != nil {
		return types.NewPersistenceError("failed to remove connections", err)
	}
	return nil
}

func (s *SQLiteSettingsStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.NewPersistenceError("failed to read setting", err)
	}
	return value, true, nil
}

func (s *SQLiteSettingsStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return types.NewPersistenceError("failed to save setting", err)
	}
	return nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return types.NewPersistenceError("failed to read affected rows", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Ping checks the database connection
func (s *SQLiteSettingsStore) Ping() error {
	return s.db.Ping()
}
