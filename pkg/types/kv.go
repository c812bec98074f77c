package types

import (
	"encoding/json"
	"time"
)

// NamespaceKind identifies which backend a namespace lives in
type NamespaceKind string

const (
	NamespaceKindLocal  NamespaceKind = "local"
	NamespaceKindRemote NamespaceKind = "remote"
)

// Namespace is a derived view over one backend namespace. It is never persisted.
type Namespace struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Kind       NamespaceKind `json:"type"`
	FolderID   *int64        `json:"folder_id,omitempty"`
	AccountID  string        `json:"account_id,omitempty"`
	EntryCount *int          `json:"count,omitempty"`
	Entries    []Entry       `json:"entries"`
}

// Entry is a single key in a namespace.
// Value is nil when it has not been fetched (remote listings) or could not be decoded.
type Entry struct {
	ID         string          `json:"id"`
	Key        string          `json:"key"`
	BlobRef    string          `json:"blob_id"`
	Expiration *int64          `json:"expiration"`
	Metadata   *string         `json:"metadata"`
	Value      json.RawMessage `json:"value"`
}

// HasValue reports whether the entry carries an inlined value
func (e *Entry) HasValue() bool {
	return len(e.Value) > 0
}

// Folder is a registered local project directory
type Folder struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// RemoteConnection is an authenticated remote account.
type RemoteConnection struct {
	AccountID  string    `json:"account_id"`
	APIToken   string    `json:"-"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Credentials returns the per-call credentials for this connection
func (c RemoteConnection) Credentials() Credentials {
	return Credentials{AccountID: c.AccountID, APIToken: c.APIToken}
}

// Credentials scope one remote call to an account
type Credentials struct {
	AccountID string
	APIToken  string
}

// EntryPage is one page of a namespace listing. NextCursor is nil on the last page.
type EntryPage struct {
	Entries    []Entry `json:"entries"`
	NextCursor *string `json:"next_cursor"`
	TotalCount int     `json:"total_count"`
}
