package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the coarse category of a failure surfaced to callers.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindRemoteFailure      ErrorKind = "remote_failure"
	KindPersistenceFailure ErrorKind = "persistence_failure"
)

// Error is the structured error returned by every KV operation.
// Message is always safe to show to a user; Err keeps the underlying cause.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Status  int // HTTP status for remote failures, 0 otherwise
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code, or by kind when the target carries no code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Category sentinels, usable with errors.Is to match a whole kind.
var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrBackendUnavailable = &Error{Kind: KindBackendUnavailable, Message: "backend unavailable"}
	ErrRemoteFailure      = &Error{Kind: KindRemoteFailure, Message: "remote failure"}
	ErrPersistenceFailure = &Error{Kind: KindPersistenceFailure, Message: "persistence failure"}
)

// Code sentinels.
var (
	ErrNotAKvRoot          = &Error{Kind: KindNotFound, Code: "not_a_kv_root", Message: "no KV storage found at this location"}
	ErrCatalogMissing      = &Error{Kind: KindNotFound, Code: "catalog_missing", Message: "catalog database not found"}
	ErrKeyNotFound         = &Error{Kind: KindNotFound, Code: "key_not_found", Message: "key not found"}
	ErrBlobMissing         = &Error{Kind: KindNotFound, Code: "blob_missing", Message: "blob file not found"}
	ErrFolderNotFound      = &Error{Kind: KindNotFound, Code: "folder_not_found", Message: "folder not found"}
	ErrNamespaceNotFound   = &Error{Kind: KindNotFound, Code: "namespace_not_found", Message: "namespace not found"}
	ErrConnectionNotFound  = &Error{Kind: KindNotFound, Code: "connection_not_found", Message: "connection not found"}
	ErrInvalidJSON         = &Error{Kind: KindInvalidInput, Code: "invalid_json", Message: "invalid JSON value"}
	ErrInvalidNamespaceID  = &Error{Kind: KindInvalidInput, Code: "invalid_namespace_id", Message: "invalid namespace id"}
	ErrCatalogUnavailable  = &Error{Kind: KindBackendUnavailable, Code: "catalog_unavailable", Message: "catalog database unavailable"}
	ErrBlobDeleteFailed    = &Error{Kind: KindBackendUnavailable, Code: "blob_delete_failed", Message: "failed to delete blob file"}
	ErrFilesystem          = &Error{Kind: KindBackendUnavailable, Code: "filesystem", Message: "filesystem operation failed"}
	ErrAuthFailed          = &Error{Kind: KindRemoteFailure, Code: "auth_failed", Message: "authentication failed"}
	ErrRemoteRequestFailed = &Error{Kind: KindRemoteFailure, Code: "remote_request_failed", Message: "remote request failed"}
	ErrRemoteAPI           = &Error{Kind: KindRemoteFailure, Code: "remote_api_error", Message: "remote API error"}
	ErrRemoteTransport     = &Error{Kind: KindRemoteFailure, Code: "remote_transport", Message: "remote request could not be sent"}
	ErrPersistence         = &Error{Kind: KindPersistenceFailure, Code: "persistence", Message: "failed to persist settings"}
)

func derive(base *Error, msg string, err error) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: msg, Err: err}
}

func NewNotAKvRoot(path string) error {
	return derive(ErrNotAKvRoot, fmt.Sprintf("no KV storage found at %s", path), nil)
}

func NewCatalogMissing(dir string) error {
	return derive(ErrCatalogMissing, fmt.Sprintf("catalog database not found in %s", dir), nil)
}

func NewKeyNotFound(key string) error {
	return derive(ErrKeyNotFound, fmt.Sprintf("key not found: %s", key), nil)
}

func NewBlobMissing(key string) error {
	return derive(ErrBlobMissing, fmt.Sprintf("blob file not found for key: %s", key), nil)
}

func NewFolderNotFound(id int64) error {
	return derive(ErrFolderNotFound, fmt.Sprintf("folder not found: %d", id), nil)
}

func NewNamespaceNotFound(id string) error {
	return derive(ErrNamespaceNotFound, fmt.Sprintf("namespace not found: %s", id), nil)
}

func NewConnectionNotFound(accountID string) error {
	return derive(ErrConnectionNotFound, fmt.Sprintf("connection not found for account: %s", accountID), nil)
}

func NewInvalidInput(msg string) error {
	return derive(ErrInvalidInput, msg, nil)
}

func NewInvalidJSON(err error) error {
	return derive(ErrInvalidJSON, "invalid JSON value", err)
}

func NewInvalidNamespaceID(id string) error {
	return derive(ErrInvalidNamespaceID, fmt.Sprintf("invalid namespace id: %q", id), nil)
}

func NewCatalogUnavailable(msg string, err error) error {
	return derive(ErrCatalogUnavailable, msg, err)
}

func NewBlobDeleteFailed(key string, err error) error {
	return derive(ErrBlobDeleteFailed, fmt.Sprintf("failed to delete blob file for key: %s", key), err)
}

func NewFilesystemError(msg string, err error) error {
	return derive(ErrFilesystem, msg, err)
}

func NewAuthFailed(status int) error {
	e := derive(ErrAuthFailed, fmt.Sprintf("API authentication failed with status: %d", status), nil)
	e.Status = status
	return e
}

func NewRemoteRequestFailed(status int, detail string) error {
	msg := fmt.Sprintf("remote request failed with status: %d", status)
	if detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, detail)
	}
	e := derive(ErrRemoteRequestFailed, msg, nil)
	e.Status = status
	return e
}

func NewRemoteAPIError(joined string) error {
	return derive(ErrRemoteAPI, fmt.Sprintf("API request failed: %s", joined), nil)
}

func NewRemoteTransport(err error) error {
	return derive(ErrRemoteTransport, fmt.Sprintf("API request failed: %v", err), err)
}

func NewPersistenceError(msg string, err error) error {
	return derive(ErrPersistence, msg, err)
}
