package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beam-cloud/airkv/pkg/types"
)

var testCreds = types.Credentials{AccountID: "acct1", APIToken: "secret-token"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(types.RemoteConfig{BaseURL: srv.URL})
}

func writeEnvelope(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestValidateToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct1/storage/kv/namespaces", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			writeEnvelope(w, http.StatusForbidden, map[string]any{"success": false})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "result": []any{}})
	})

	require.NoError(t, client.ValidateToken(context.Background(), testCreds))

	err := client.ValidateToken(context.Background(), types.Credentials{AccountID: "acct1", APIToken: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAuthFailed)
	assert.Contains(t, err.Error(), "403")
	assert.True(t, IsAuthError(err))
}

func TestListNamespaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"result": []map[string]any{
				{"id": "ns1", "title": "USERS"},
				{"id": "ns2", "title": "SESSIONS"},
			},
		})
	})

	namespaces, err := client.ListNamespaces(context.Background(), testCreds)
	require.NoError(t, err)
	require.Len(t, namespaces, 2)
	assert.Equal(t, "ns1", namespaces[0].ID)
	assert.Equal(t, "USERS", namespaces[0].Name)
	assert.Equal(t, types.NamespaceKindRemote, namespaces[0].Kind)
	assert.Equal(t, "acct1", namespaces[0].AccountID)
	assert.Nil(t, namespaces[0].EntryCount)
}

func TestErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": false,
			"errors": []map[string]any{
				{"code": 10000, "message": "Authentication error"},
				{"code": 10001, "message": "second"},
			},
		})
	})

	_, err := client.ListNamespaces(context.Background(), testCreds)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRemoteAPI)
	assert.Equal(t, "API request failed: 10000: Authentication error, 10001: second", err.Error())
}

func TestNon2xxIsRequestFailed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 10001, "message": "service unavailable"}},
		})
	})

	_, err := client.ListKeys(context.Background(), testCreds, "ns1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRemoteRequestFailed)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "service unavailable")
}

func TestListKeysPagination(t *testing.T) {
	var (
		mu      sync.Mutex
		cursors []string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct1/storage/kv/namespaces/ns1/keys", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		mu.Lock()
		cursors = append(cursors, r.URL.Query().Get("cursor"))
		mu.Unlock()

		if r.URL.Query().Get("cursor") == "" {
			assert.False(t, r.URL.Query().Has("cursor"))
			writeEnvelope(w, http.StatusOK, map[string]any{
				"success":     true,
				"result":      []map[string]any{{"name": "a"}, {"name": "b", "expiration": 1700000000}},
				"result_info": map[string]any{"count": 2, "cursor": "abc"},
			})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success":     true,
			"result":      []map[string]any{{"name": "c", "metadata": map[string]any{"tag": "x"}}},
			"result_info": map[string]any{"count": 1, "cursor": ""},
		})
	})

	first, err := client.ListKeys(context.Background(), testCreds, "ns1", nil)
	require.NoError(t, err)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, "abc", *first.NextCursor)
	assert.Equal(t, 2, first.TotalCount)
	require.Len(t, first.Entries, 2)
	assert.Equal(t, "remote-0", first.Entries[0].BlobRef)
	assert.Nil(t, first.Entries[0].Value)
	require.NotNil(t, first.Entries[1].Expiration)
	assert.Equal(t, int64(1700000000), *first.Entries[1].Expiration)

	second, err := client.ListKeys(context.Background(), testCreds, "ns1", first.NextCursor)
	require.NoError(t, err)
	assert.Nil(t, second.NextCursor)
	require.Len(t, second.Entries, 1)
	require.NotNil(t, second.Entries[0].Metadata)
	assert.JSONEq(t, `{"tag":"x"}`, *second.Entries[0].Metadata)

	mu.Lock()
	assert.Equal(t, []string{"", "abc"}, cursors)
	mu.Unlock()

	all, err := client.ListAllKeys(context.Background(), testCreds, "ns1")
	require.NoError(t, err)
	keys := make([]string, 0, len(all))
	for _, e := range all {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, "remote-2", all[2].BlobRef)
}

func TestListAllKeysRepeatedCursor(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success":     true,
			"result":      []map[string]any{{"name": "a"}},
			"result_info": map[string]any{"count": 1, "cursor": "loop"},
		})
	})

	all, err := client.ListAllKeys(context.Background(), testCreds, "ns1")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRemoteAPI)
	assert.Contains(t, err.Error(), "loop")
	assert.Nil(t, all)

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

func TestGetValue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/accounts/acct1/storage/kv/namespaces/ns1/values/json":
			io.WriteString(w, `{"x":1}`)
		case "/accounts/acct1/storage/kv/namespaces/ns1/values/user%2F42":
			io.WriteString(w, "hello")
		default:
			writeEnvelope(w, http.StatusNotFound, map[string]any{
				"success": false,
				"errors":  []map[string]any{{"code": 10009, "message": "get: 'key not found'"}},
			})
		}
	})

	v, err := client.GetValue(context.Background(), testCreds, "ns1", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(v))

	v, err = client.GetValue(context.Background(), testCreds, "ns1", "user/42")
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, string(v))

	_, err = client.GetValue(context.Background(), testCreds, "ns1", "missing")
	assert.ErrorIs(t, err, types.ErrRemoteRequestFailed)
}

func TestPutValue(t *testing.T) {
	var (
		mu    sync.Mutex
		body  string
		calls int
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls++
		body = string(b)
		mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	})

	require.NoError(t, client.PutValue(context.Background(), testCreds, "ns1", "k", `{"a":[1]}`))

	err := client.PutValue(context.Background(), testCreds, "ns1", "k", `{"a":`)
	assert.ErrorIs(t, err, types.ErrInvalidJSON)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, `{"a":[1]}`, body)
	assert.Equal(t, 1, calls)
}

func TestPutValueRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})

	err := client.PutValue(context.Background(), testCreds, "ns1", "k", `1`)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRemoteRequestFailed)

	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusRequestEntityTooLarge, e.Status)
}

func TestDeleteKeys(t *testing.T) {
	type seen struct {
		method, path, body string
	}
	var (
		mu    sync.Mutex
		calls []seen
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, seen{r.Method, r.URL.Path, strings.TrimSpace(string(b))})
		mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	})

	require.NoError(t, client.DeleteKeys(context.Background(), testCreds, "ns1", nil))
	require.NoError(t, client.DeleteKeys(context.Background(), testCreds, "ns1", []string{"only"}))
	require.NoError(t, client.DeleteKeys(context.Background(), testCreds, "ns1", []string{"a", "b"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
	assert.Equal(t, seen{http.MethodDelete, "/accounts/acct1/storage/kv/namespaces/ns1/values/only", ""}, calls[0])
	assert.Equal(t, seen{http.MethodPost, "/accounts/acct1/storage/kv/namespaces/ns1/bulk/delete", `["a","b"]`}, calls[1])
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(types.RemoteConfig{BaseURL: srv.URL})
	_, err := client.ListNamespaces(context.Background(), testCreds)
	assert.ErrorIs(t, err, types.ErrRemoteTransport)
	assert.ErrorIs(t, err, types.ErrRemoteFailure)
}
