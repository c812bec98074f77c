// Package kv routes namespace operations to the local emulator store or the remote service.
package kv

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/beam-cloud/airkv/pkg/local"
	"github.com/beam-cloud/airkv/pkg/registry"
	"github.com/beam-cloud/airkv/pkg/types"
)

// LocalBackend is the filesystem-backed store scoped by folder root.
type LocalBackend interface {
	IsKVRoot(root string) bool
	ListNamespaces(ctx context.Context, folderID int64, root string) (local.Result[types.Namespace], error)
	GetValue(ctx context.Context, root string, ref types.LocalNamespaceRef, key string) (json.RawMessage, error)
	UpdateEntry(ctx context.Context, root string, ref types.LocalNamespaceRef, key, value string) error
	DeleteEntries(ctx context.Context, root string, ref types.LocalNamespaceRef, keys []string) error
}

// RemoteBackend is the HTTP KV service scoped by per-call credentials.
type RemoteBackend interface {
	ValidateToken(ctx context.Context, creds types.Credentials) error
	ListNamespaces(ctx context.Context, creds types.Credentials) ([]types.Namespace, error)
	ListKeys(ctx context.Context, creds types.Credentials, namespaceID string, cursor *string) (types.EntryPage, error)
	ListAllKeys(ctx context.Context, creds types.Credentials, namespaceID string) ([]types.Entry, error)
	GetValue(ctx context.Context, creds types.Credentials, namespaceID, key string) (json.RawMessage, error)
	PutValue(ctx context.Context, creds types.Credentials, namespaceID, key, value string) error
	DeleteKeys(ctx context.Context, creds types.Credentials, namespaceID string, keys []string) error
	NamespaceCounts(ctx context.Context, creds types.Credentials, namespaceIDs []string) map[string]int
	ForgetCounts(accountID, namespaceID string)
}

// FolderView is a registered folder together with its namespaces.
type FolderView struct {
	Folder     types.Folder      `json:"folder"`
	Namespaces []types.Namespace `json:"namespaces"`
	Skipped    []string          `json:"skipped,omitempty"`
}

// Gateway is the single entry point for KV operations on either backend.
type Gateway struct {
	local    LocalBackend
	remote   RemoteBackend
	registry *registry.Registry
}

func NewGateway(localBackend LocalBackend, remoteBackend RemoteBackend, reg *registry.Registry) *Gateway {
	return &Gateway{local: localBackend, remote: remoteBackend, registry: reg}
}

func (g *Gateway) Registry() *registry.Registry {
	return g.registry
}

// AddFolder registers path after checking that it holds emulator KV state.
// An empty name defaults to the directory's base name.
func (g *Gateway) AddFolder(ctx context.Context, path, name string) (FolderView, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FolderView{}, types.NewFilesystemError("failed to resolve folder path", err)
	}
	if !g.local.IsKVRoot(abs) {
		return FolderView{}, types.NewNotAKvRoot(abs)
	}
	if name == "" {
		name = filepath.Base(abs)
	}

	folder, err := g.registry.AddFolder(ctx, abs, name)
	if err != nil {
		return FolderView{}, err
	}

	log.Info().Int64("folder_id", folder.ID).Str("path", folder.Path).Msg("folder registered")
	return g.folderView(ctx, folder)
}

func (g *Gateway) ListFolders() []types.Folder {
	return g.registry.ListFolders()
}

// RemoveFolder unregisters a folder. Data on disk is left alone.
func (g *Gateway) RemoveFolder(ctx context.Context, id int64) error {
	if err := g.registry.RemoveFolder(ctx, id); err != nil {
		return err
	}
	log.Info().Int64("folder_id", id).Msg("folder removed")
	return nil
}

// LoadFolder lists a registered folder's namespaces and marks it as recently used.
func (g *Gateway) LoadFolder(ctx context.Context, id int64) (FolderView, error) {
	folder, err := g.registry.GetFolder(id)
	if err != nil {
		return FolderView{}, err
	}

	view, err := g.folderView(ctx, folder)
	if err != nil {
		return FolderView{}, err
	}

	if err := g.registry.TouchFolder(ctx, id); err != nil {
		log.Warn().Err(err).Int64("folder_id", id).Msg("failed to update folder timestamp")
	} else if f, err := g.registry.GetFolder(id); err == nil {
		view.Folder = f
	}
	return view, nil
}

func (g *Gateway) folderView(ctx context.Context, folder types.Folder) (FolderView, error) {
	res, err := g.local.ListNamespaces(ctx, folder.ID, folder.Path)
	if err != nil {
		return FolderView{}, err
	}

	view := FolderView{Folder: folder, Namespaces: res.Items}
	for _, sk := range res.Skipped {
		view.Skipped = append(view.Skipped, sk.Name)
	}
	return view, nil
}

// Connect validates the token against the service, then records the connection.
func (g *Gateway) Connect(ctx context.Context, accountID, apiToken string) (types.RemoteConnection, error) {
	if accountID == "" || apiToken == "" {
		return types.RemoteConnection{}, types.NewInvalidInput("account id and api token are required")
	}

	if err := g.remote.ValidateToken(ctx, types.Credentials{AccountID: accountID, APIToken: apiToken}); err != nil {
		return types.RemoteConnection{}, err
	}

	conn, err := g.registry.AddConnection(ctx, accountID, apiToken)
	if err != nil {
		return types.RemoteConnection{}, err
	}

	log.Info().Str("account_id", accountID).Msg("remote account connected")
	return conn, nil
}

// Disconnect removes every remote connection.
func (g *Gateway) Disconnect(ctx context.Context) error {
	if err := g.registry.DisconnectAll(ctx); err != nil {
		return err
	}
	log.Info().Msg("remote accounts disconnected")
	return nil
}

func (g *Gateway) ListConnections() []types.RemoteConnection {
	return g.registry.ListConnections()
}

// ListRemoteNamespaces lists the namespaces of every connected account, optionally with key counts.
// Any account failing fails the whole call.
func (g *Gateway) ListRemoteNamespaces(ctx context.Context, withCounts bool) ([]types.Namespace, error) {
	conns := g.registry.ListConnections()
	if len(conns) == 0 {
		return []types.Namespace{}, nil
	}

	perAccount := make([][]types.Namespace, len(conns))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, conn := range conns {
		eg.Go(func() error {
			namespaces, err := g.remote.ListNamespaces(egCtx, conn.Credentials())
			if err != nil {
				return err
			}
			g.touchConnection(egCtx, conn.AccountID)

			if withCounts && len(namespaces) > 0 {
				ids := make([]string, len(namespaces))
				for j, ns := range namespaces {
					ids[j] = ns.ID
				}
				counts := g.remote.NamespaceCounts(egCtx, conn.Credentials(), ids)
				for j := range namespaces {
					if n, ok := counts[namespaces[j].ID]; ok {
						namespaces[j].EntryCount = &n
					}
				}
			}
			perAccount[i] = namespaces
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []types.Namespace
	for _, namespaces := range perAccount {
		all = append(all, namespaces...)
	}
	return all, nil
}

// ListEntries returns one page of a namespace. Local namespaces are always a single page.
func (g *Gateway) ListEntries(ctx context.Context, namespaceID, accountID string, cursor *string) (types.EntryPage, error) {
	ref, err := types.ParseNamespaceID(namespaceID, accountID)
	if err != nil {
		return types.EntryPage{}, err
	}

	switch r := ref.(type) {
	case types.LocalNamespaceRef:
		entries, err := g.localEntries(ctx, r)
		if err != nil {
			return types.EntryPage{}, err
		}
		return types.EntryPage{Entries: entries, TotalCount: len(entries)}, nil
	case types.RemoteNamespaceRef:
		creds, err := g.credentials(r.AccountID)
		if err != nil {
			return types.EntryPage{}, err
		}
		page, err := g.remote.ListKeys(ctx, creds, r.NamespaceID, cursor)
		if err != nil {
			return types.EntryPage{}, err
		}
		g.touchConnection(ctx, creds.AccountID)
		return page, nil
	}
	return types.EntryPage{}, types.NewInvalidNamespaceID(namespaceID)
}

// ListAllKeys returns every entry of a namespace, following remote cursors to the end.
func (g *Gateway) ListAllKeys(ctx context.Context, namespaceID, accountID string) ([]types.Entry, error) {
	ref, err := types.ParseNamespaceID(namespaceID, accountID)
	if err != nil {
		return nil, err
	}

	switch r := ref.(type) {
	case types.LocalNamespaceRef:
		return g.localEntries(ctx, r)
	case types.RemoteNamespaceRef:
		creds, err := g.credentials(r.AccountID)
		if err != nil {
			return nil, err
		}
		entries, err := g.remote.ListAllKeys(ctx, creds, r.NamespaceID)
		if err != nil {
			return nil, err
		}
		g.touchConnection(ctx, creds.AccountID)
		return entries, nil
	}
	return nil, types.NewInvalidNamespaceID(namespaceID)
}

func (g *Gateway) localEntries(ctx context.Context, ref types.LocalNamespaceRef) ([]types.Entry, error) {
	folder, err := g.registry.GetFolder(ref.FolderID)
	if err != nil {
		return nil, err
	}
	res, err := g.local.ListNamespaces(ctx, folder.ID, folder.Path)
	if err != nil {
		return nil, err
	}

	id := ref.String()
	for _, ns := range res.Items {
		if ns.ID == id {
			return ns.Entries, nil
		}
	}
	for _, sk := range res.Skipped {
		if sk.Name == ref.RawName {
			return nil, sk.Err
		}
	}
	return nil, types.NewNamespaceNotFound(id)
}

func (g *Gateway) GetValue(ctx context.Context, namespaceID, accountID, key string) (json.RawMessage, error) {
	ref, err := types.ParseNamespaceID(namespaceID, accountID)
	if err != nil {
		return nil, err
	}

	switch r := ref.(type) {
	case types.LocalNamespaceRef:
		folder, err := g.registry.GetFolder(r.FolderID)
		if err != nil {
			return nil, err
		}
		return g.local.GetValue(ctx, folder.Path, r, key)
	case types.RemoteNamespaceRef:
		creds, err := g.credentials(r.AccountID)
		if err != nil {
			return nil, err
		}
		value, err := g.remote.GetValue(ctx, creds, r.NamespaceID, key)
		if err != nil {
			return nil, err
		}
		g.touchConnection(ctx, creds.AccountID)
		return value, nil
	}
	return nil, types.NewInvalidNamespaceID(namespaceID)
}

// PutValue writes a JSON value. Invalid JSON is rejected before either backend is touched.
func (g *Gateway) PutValue(ctx context.Context, namespaceID, accountID, key, value string) error {
	ref, err := types.ParseNamespaceID(namespaceID, accountID)
	if err != nil {
		return err
	}

	switch r := ref.(type) {
	case types.LocalNamespaceRef:
		folder, err := g.registry.GetFolder(r.FolderID)
		if err != nil {
			return err
		}
		return g.local.UpdateEntry(ctx, folder.Path, r, key, value)
	case types.RemoteNamespaceRef:
		creds, err := g.credentials(r.AccountID)
		if err != nil {
			return err
		}
		if err := g.remote.PutValue(ctx, creds, r.NamespaceID, key, value); err != nil {
			return err
		}
		g.remote.ForgetCounts(creds.AccountID, r.NamespaceID)
		g.touchConnection(ctx, creds.AccountID)
		return nil
	}
	return types.NewInvalidNamespaceID(namespaceID)
}

// DeleteKeys deletes keys as one unit: all or nothing on the local backend, one request remotely.
func (g *Gateway) DeleteKeys(ctx context.Context, namespaceID, accountID string, keys []string) error {
	ref, err := types.ParseNamespaceID(namespaceID, accountID)
	if err != nil {
		return err
	}

	switch r := ref.(type) {
	case types.LocalNamespaceRef:
		folder, err := g.registry.GetFolder(r.FolderID)
		if err != nil {
			return err
		}
		return g.local.DeleteEntries(ctx, folder.Path, r, keys)
	case types.RemoteNamespaceRef:
		creds, err := g.credentials(r.AccountID)
		if err != nil {
			return err
		}
		if err := g.remote.DeleteKeys(ctx, creds, r.NamespaceID, keys); err != nil {
			return err
		}
		g.remote.ForgetCounts(creds.AccountID, r.NamespaceID)
		g.touchConnection(ctx, creds.AccountID)
		return nil
	}
	return types.NewInvalidNamespaceID(namespaceID)
}

// credentials looks up a registered account. An empty account id resolves to the only
// connection when exactly one exists.
func (g *Gateway) credentials(accountID string) (types.Credentials, error) {
	if accountID == "" {
		conns := g.registry.ListConnections()
		if len(conns) == 1 {
			return conns[0].Credentials(), nil
		}
		return types.Credentials{}, types.NewConnectionNotFound(accountID)
	}

	conn, err := g.registry.GetConnection(accountID)
	if err != nil {
		return types.Credentials{}, err
	}
	return conn.Credentials(), nil
}

func (g *Gateway) touchConnection(ctx context.Context, accountID string) {
	if err := g.registry.TouchConnection(ctx, accountID); err != nil {
		log.Warn().Err(err).Str("account_id", accountID).Msg("failed to update connection timestamp")
	}
}
