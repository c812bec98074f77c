package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	apiv1 "github.com/beam-cloud/airkv/pkg/api/v1"
	"github.com/beam-cloud/airkv/pkg/kv"
	"github.com/beam-cloud/airkv/pkg/types"
)

func newProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	kvRoot := filepath.Join(root, ".wrangler", "state", "v3", "kv")
	catalogDir := filepath.Join(kvRoot, "miniflare-KVNamespaceObject")
	blobsDir := filepath.Join(kvRoot, "abc123", "blobs")
	require.NoError(t, os.MkdirAll(catalogDir, 0755))
	require.NoError(t, os.MkdirAll(blobsDir, 0755))

	db, err := sql.Open("sqlite", filepath.Join(catalogDir, "a1b2.sqlite"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE _mf_entries (key TEXT PRIMARY KEY, blob_id TEXT NOT NULL, expiration INTEGER, metadata TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO _mf_entries (key, blob_id) VALUES ('user/1', 'blob1'), ('k2', 'blob2'), ('100%25', 'blob3')`)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(blobsDir, "blob1"), []byte(`{"x":1}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(blobsDir, "blob2"), []byte(`2`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(blobsDir, "blob3"), []byte(`"percent"`), 0644))
	return root
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	app, err := kv.NewApp(context.Background(), types.AppConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	return NewServer(types.HTTPConfig{Host: "127.0.0.1", EnableMetrics: true}, app)
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, apiv1.Response) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp apiv1.Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decodeData(t *testing.T, resp apiv1.Response, out any) {
	t.Helper()
	b, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodGet, "/api/v1/health", "")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "airkv_http_requests_total")
}

func TestFolderAndNamespaceRoutes(t *testing.T) {
	s := newTestServer(t)
	root := newProject(t)

	rec, resp := do(t, s, http.MethodPost, "/api/v1/folders", `{"path":"`+root+`","name":"proj"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view kv.FolderView
	decodeData(t, resp, &view)
	assert.Equal(t, "proj", view.Folder.Name)
	require.Len(t, view.Namespaces, 1)
	nsID := view.Namespaces[0].ID

	rec, resp = do(t, s, http.MethodGet, "/api/v1/folders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var folders []types.Folder
	decodeData(t, resp, &folders)
	require.Len(t, folders, 1)

	rec, resp = do(t, s, http.MethodGet, "/api/v1/namespaces/"+nsID+"/entries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page apiv1.ListEntriesResponse
	decodeData(t, resp, &page)
	assert.Equal(t, 3, page.TotalCount)
	assert.Nil(t, page.NextCursor)

	rec, resp = do(t, s, http.MethodGet, "/api/v1/namespaces/"+nsID+"/values/user%2F1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var value map[string]int
	decodeData(t, resp, &value)
	assert.Equal(t, map[string]int{"x": 1}, value)

	// A key containing an escape sequence is decoded exactly once
	rec, resp = do(t, s, http.MethodGet, "/api/v1/namespaces/"+nsID+"/values/100%2525", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "percent", resp.Data)

	rec, _ = do(t, s, http.MethodPut, "/api/v1/namespaces/"+nsID+"/values/k2", `{"updated":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp = do(t, s, http.MethodPut, "/api/v1/namespaces/"+nsID+"/values/k2", `{"updated":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", resp.Code)

	rec, resp = do(t, s, http.MethodPost, "/api/v1/namespaces/"+nsID+"/delete", `{"keys":["k2","nope"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "key not found: nope", resp.Error)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/namespaces/"+nsID+"/delete", `{"keys":["k2"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/namespaces/folder-1-ns-/entries", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodDelete, "/api/v1/folders/"+jsonNumber(view.Folder.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/api/v1/folders/"+jsonNumber(view.Folder.ID)+"/namespaces", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddFolderNotKVRoot(t *testing.T) {
	s := newTestServer(t)
	rec, resp := do(t, s, http.MethodPost, "/api/v1/folders", `{"path":"`+t.TempDir()+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_a_kv_root", resp.Code)
}

func TestRemoteRoutesWithoutConnection(t *testing.T) {
	s := newTestServer(t)

	rec, resp := do(t, s, http.MethodGet, "/api/v1/remote/namespaces?counts=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, resp.Data)

	rec, resp = do(t, s, http.MethodGet, "/api/v1/namespaces/abcdef/entries?account=acct1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "connection_not_found", resp.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/remote/connect", `{"account_id":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/remote/disconnect", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
