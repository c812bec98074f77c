package repository

import (
	"context"
	"time"

	"github.com/beam-cloud/airkv/pkg/types"
)

// FolderStore persists registered local folders
type FolderStore interface {
	// UpsertFolder inserts a folder or, when path already exists, updates its name and timestamp
	UpsertFolder(ctx context.Context, path, name string, now time.Time) (types.Folder, error)
	TouchFolder(ctx context.Context, id int64, now time.Time) error
	RemoveFolder(ctx context.Context, id int64) error
	ListFolders(ctx context.Context) ([]types.Folder, error)
}

// ConnectionStore persists remote account connections
type ConnectionStore interface {
	// UpsertConnection inserts a connection or replaces the token of an existing account
	UpsertConnection(ctx context.Context, accountID, apiToken string, now time.Time) (types.RemoteConnection, error)
	TouchConnection(ctx context.Context, accountID string, now time.Time) error
	ListConnections(ctx context.Context) ([]types.RemoteConnection, error)
	RemoveAllConnections(ctx context.Context) error
}

// SettingsRepository is the complete settings database
type SettingsRepository interface {
	FolderStore
	ConnectionStore
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Ping() error
	Close() error
}
