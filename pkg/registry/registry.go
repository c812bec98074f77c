// Package registry keeps the process-wide set of local folders and remote connections.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/airkv/pkg/repository"
	"github.com/beam-cloud/airkv/pkg/types"
)

// Registry caches folders and connections in memory on top of their persisted stores.
// Writes go to the store first; the cache changes only when the store write succeeded.
// Store I/O never happens while the lock is held.
type Registry struct {
	folderStore repository.FolderStore
	connStore   repository.ConnectionStore
	now         func() time.Time

	mu          sync.RWMutex
	folders     map[int64]types.Folder
	connections []types.RemoteConnection
}

type Option func(*Registry)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New loads the registry from its stores.
func New(ctx context.Context, folders repository.FolderStore, conns repository.ConnectionStore, opts ...Option) (*Registry, error) {
	r := &Registry{
		folderStore: folders,
		connStore:   conns,
		now:         time.Now,
		folders:     map[int64]types.Folder{},
	}
	for _, opt := range opts {
		opt(r)
	}

	storedFolders, err := folders.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	storedConns, err := conns.ListConnections(ctx)
	if err != nil {
		return nil, err
	}

	for _, f := range storedFolders {
		r.folders[f.ID] = f
	}
	for _, c := range storedConns {
		r.upsertCachedConnection(c)
	}

	log.Debug().Int("folders", len(r.folders)).Int("connections", len(r.connections)).Msg("registry loaded")
	return r, nil
}

// AddFolder registers path. Re-adding a known path keeps its id and refreshes its timestamp.
func (r *Registry) AddFolder(ctx context.Context, path, name string) (types.Folder, error) {
	f, err := r.folderStore.UpsertFolder(ctx, path, name, r.now())
	if err != nil {
		return types.Folder{}, err
	}

	r.mu.Lock()
	r.folders[f.ID] = f
	r.mu.Unlock()
	return f, nil
}

func (r *Registry) RemoveFolder(ctx context.Context, id int64) error {
	if _, err := r.GetFolder(id); err != nil {
		return err
	}
	if err := r.folderStore.RemoveFolder(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.folders, id)
	r.mu.Unlock()
	return nil
}

func (r *Registry) GetFolder(id int64) (types.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.folders[id]
	if !ok {
		return types.Folder{}, types.NewFolderNotFound(id)
	}
	return f, nil
}

// ListFolders returns folders, most recently used first
func (r *Registry) ListFolders() []types.Folder {
	r.mu.RLock()
	folders := make([]types.Folder, 0, len(r.folders))
	for _, f := range r.folders {
		folders = append(folders, f)
	}
	r.mu.RUnlock()

	sort.Slice(folders, func(i, j int) bool {
		if !folders[i].LastUsedAt.Equal(folders[j].LastUsedAt) {
			return folders[i].LastUsedAt.After(folders[j].LastUsedAt)
		}
		return folders[i].ID < folders[j].ID
	})
	return folders
}

func (r *Registry) TouchFolder(ctx context.Context, id int64) error {
	if _, err := r.GetFolder(id); err != nil {
		return err
	}

	now := r.now()
	if err := r.folderStore.TouchFolder(ctx, id, now); err != nil {
		return err
	}

	r.mu.Lock()
	if f, ok := r.folders[id]; ok {
		f.LastUsedAt = now
		r.folders[id] = f
	}
	r.mu.Unlock()
	return nil
}

// AddConnection stores a connection whose token the caller has already validated.
func (r *Registry) AddConnection(ctx context.Context, accountID, apiToken string) (types.RemoteConnection, error) {
	c, err := r.connStore.UpsertConnection(ctx, accountID, apiToken, r.now())
	if err != nil {
		return types.RemoteConnection{}, err
	}

	r.mu.Lock()
	r.upsertCachedConnection(c)
	r.mu.Unlock()
	return c, nil
}

// upsertCachedConnection must be called with mu held
func (r *Registry) upsertCachedConnection(c types.RemoteConnection) {
	for i := range r.connections {
		if r.connections[i].AccountID == c.AccountID {
			r.connections[i] = c
			return
		}
	}
	r.connections = append(r.connections, c)
}

func (r *Registry) GetConnection(accountID string) (types.RemoteConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.connections {
		if c.AccountID == accountID {
			return c, nil
		}
	}
	return types.RemoteConnection{}, types.NewConnectionNotFound(accountID)
}

func (r *Registry) ListConnections() []types.RemoteConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]types.RemoteConnection, len(r.connections))
	copy(conns, r.connections)
	return conns
}

func (r *Registry) TouchConnection(ctx context.Context, accountID string) error {
	if _, err := r.GetConnection(accountID); err != nil {
		return err
	}

	now := r.now()
	if err := r.connStore.TouchConnection(ctx, accountID, now); err != nil {
		return err
	}

	r.mu.Lock()
	for i := range r.connections {
		if r.connections[i].AccountID == accountID {
			r.connections[i].LastUsedAt = now
		}
	}
	r.mu.Unlock()
	return nil
}

// DisconnectAll removes every connection. There is no per-account disconnect.
func (r *Registry) DisconnectAll(ctx context.Context) error {
	if err := r.connStore.RemoveAllConnections(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.connections = nil
	r.mu.Unlock()
	return nil
}
