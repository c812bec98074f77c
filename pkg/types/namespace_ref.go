package types

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	localNamespacePrefix = "folder-"
	localNamespaceMarker = "ns"
)

// NamespaceRef is the typed form of a namespace id: either a LocalNamespaceRef or a RemoteNamespaceRef.
// The string form only exists at the external edge.
type NamespaceRef interface {
	Kind() NamespaceKind
	String() string
}

// LocalNamespaceRef points at a namespace directory inside a registered folder
type LocalNamespaceRef struct {
	FolderID int64
	RawName  string
}

func (r LocalNamespaceRef) Kind() NamespaceKind { return NamespaceKindLocal }

// String encodes the ref as folder-<folderId>-ns-<rawName>
func (r LocalNamespaceRef) String() string {
	return fmt.Sprintf("%s%d-%s-%s", localNamespacePrefix, r.FolderID, localNamespaceMarker, r.RawName)
}

// RemoteNamespaceRef points at a provider namespace within an account
type RemoteNamespaceRef struct {
	AccountID   string
	NamespaceID string
}

func (r RemoteNamespaceRef) Kind() NamespaceKind { return NamespaceKindRemote }

func (r RemoteNamespaceRef) String() string { return r.NamespaceID }

// IsLocalNamespaceID reports whether id carries the local folder marker
func IsLocalNamespaceID(id string) bool {
	return strings.HasPrefix(id, localNamespacePrefix)
}

// ParseNamespaceID parses an external namespace id. Ids with the local folder marker must be
// folder-<folderId>-ns-<rawName>, where rawName keeps any embedded separators. Any other id is an
// opaque remote namespace id scoped to accountID.
func ParseNamespaceID(id, accountID string) (NamespaceRef, error) {
	if id == "" {
		return nil, NewInvalidNamespaceID(id)
	}
	if !IsLocalNamespaceID(id) {
		return RemoteNamespaceRef{AccountID: accountID, NamespaceID: id}, nil
	}
	ref, err := ParseLocalNamespaceID(id)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// ParseLocalNamespaceID parses folder-<folderId>-ns-<rawName>
func ParseLocalNamespaceID(id string) (LocalNamespaceRef, error) {
	parts := strings.SplitN(id, "-", 4)
	if len(parts) != 4 || parts[0]+"-" != localNamespacePrefix || parts[2] != localNamespaceMarker || parts[3] == "" {
		return LocalNamespaceRef{}, NewInvalidNamespaceID(id)
	}
	if raw := parts[3]; raw == "." || raw == ".." || strings.ContainsAny(raw, `/\`) {
		return LocalNamespaceRef{}, NewInvalidNamespaceID(id)
	}
	folderID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || folderID < 0 {
		return LocalNamespaceRef{}, NewInvalidNamespaceID(id)
	}
	return LocalNamespaceRef{FolderID: folderID, RawName: parts[3]}, nil
}
