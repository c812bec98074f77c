// Package remote is a client for the Cloudflare Workers KV REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/beam-cloud/airkv/pkg/blob"
	"github.com/beam-cloud/airkv/pkg/metrics"
	"github.com/beam-cloud/airkv/pkg/types"
)

const (
	defaultBaseURL          = "https://api.cloudflare.com/client/v4"
	defaultTimeout          = 30 * time.Second
	defaultPageSize         = 1000
	defaultCountCacheTTL    = 60 * time.Second
	defaultCountCacheSize   = 1024
	defaultCountConcurrency = 4
	namespacesPerPage       = 100
	errorBodyLimit          = 512
)

// Client talks to the remote KV service. It holds no credentials; every call is scoped
// by the Credentials passed in.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	pageSize         int
	countConcurrency int

	counts *expirable.LRU[string, int]
	group  singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client from cfg. Zero values fall back to the service defaults.
func NewClient(cfg types.RemoteConfig, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	ttl := cfg.CountCacheTTL
	if ttl <= 0 {
		ttl = defaultCountCacheTTL
	}
	size := cfg.CountCacheSize
	if size <= 0 {
		size = defaultCountCacheSize
	}
	concurrency := cfg.CountConcurrency
	if concurrency <= 0 {
		concurrency = defaultCountConcurrency
	}

	c := &Client{
		httpClient:       &http.Client{Timeout: timeout},
		baseURL:          baseURL,
		pageSize:         pageSize,
		countConcurrency: concurrency,
		counts:           expirable.NewLRU[string, int](size, nil, ttl),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiMessage is an entry of the envelope's errors or messages list.
type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type resultInfo struct {
	Count      int    `json:"count"`
	Cursor     string `json:"cursor"`
	TotalCount *int   `json:"total_count,omitempty"`
}

// envelope is the response wrapper used by every JSON endpoint.
type envelope[T any] struct {
	Success    bool         `json:"success"`
	Errors     []apiMessage `json:"errors"`
	Messages   []apiMessage `json:"messages"`
	Result     T            `json:"result"`
	ResultInfo *resultInfo  `json:"result_info,omitempty"`
}

func joinMessages(msgs []apiMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, fmt.Sprintf("%d: %s", m.Code, m.Message))
	}
	return strings.Join(parts, ", ")
}

type namespaceRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type keyRecord struct {
	Name       string          `json:"name"`
	Expiration *int64          `json:"expiration,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (c *Client) accountPath(accountID string, parts ...string) string {
	var b strings.Builder
	b.WriteString("/accounts/")
	b.WriteString(url.PathEscape(accountID))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(p)
	}
	return b.String()
}

func (c *Client) namespacesPath(accountID string, parts ...string) string {
	return c.accountPath(accountID, append([]string{"storage", "kv", "namespaces"}, parts...)...)
}

// do sends an authenticated request and reads the whole response body.
func (c *Client) do(ctx context.Context, creds types.Credentials, r request) (response, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return response{}, types.NewRemoteTransport(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIToken)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(r.op, 0, time.Since(start))
		return response{}, types.NewRemoteTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordRemoteRequest(r.op, resp.StatusCode, time.Since(start))
	if err != nil {
		return response{}, types.NewRemoteTransport(fmt.Errorf("read response: %w", err))
	}

	log.Debug().
		Str("op", r.op).
		Str("method", r.method).
		Str("account_id", creds.AccountID).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("remote kv request")

	return response{status: resp.StatusCode, body: data}, nil
}

// failure builds the error for a non-2xx response, using the envelope's errors when present.
func failure(resp response) error {
	var env envelope[json.RawMessage]
	detail := ""
	if err := json.Unmarshal(resp.body, &env); err == nil && len(env.Errors) > 0 {
		detail = joinMessages(env.Errors)
	} else if len(resp.body) > 0 {
		b := resp.body
		if len(b) > errorBodyLimit {
			b = b[:errorBodyLimit]
		}
		detail = strings.TrimSpace(string(b))
	}
	return types.NewRemoteRequestFailed(resp.status, detail)
}

// call sends r and decodes an enveloped JSON response.
func call[T any](ctx context.Context, c *Client, creds types.Credentials, r request) (envelope[T], error) {
	var env envelope[T]

	resp, err := c.do(ctx, creds, r)
	if err != nil {
		return env, err
	}
	if !resp.ok() {
		return env, failure(resp)
	}
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return env, types.NewRemoteAPIError(fmt.Sprintf("failed to parse API response: %v", err))
	}
	if !env.Success {
		return env, types.NewRemoteAPIError(joinMessages(env.Errors))
	}
	return env, nil
}

// ValidateToken calls the namespace listing. Any non-2xx status is an authentication failure.
func (c *Client) ValidateToken(ctx context.Context, creds types.Credentials) error {
	resp, err := c.do(ctx, creds, request{
		op:     "validate_token",
		method: http.MethodGet,
		path:   c.namespacesPath(creds.AccountID),
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return types.NewAuthFailed(resp.status)
	}
	return nil
}

// ListNamespaces returns the account's namespaces. EntryCount is left unset.
func (c *Client) ListNamespaces(ctx context.Context, creds types.Credentials) ([]types.Namespace, error) {
	env, err := call[[]namespaceRecord](ctx, c, creds, request{
		op:     "list_namespaces",
		method: http.MethodGet,
		path:   c.namespacesPath(creds.AccountID),
		query:  url.Values{"per_page": {strconv.Itoa(namespacesPerPage)}},
	})
	if err != nil {
		return nil, err
	}

	namespaces := make([]types.Namespace, 0, len(env.Result))
	for _, rec := range env.Result {
		namespaces = append(namespaces, types.Namespace{
			ID:        rec.ID,
			Name:      rec.Title,
			Kind:      types.NamespaceKindRemote,
			AccountID: creds.AccountID,
			Entries:   []types.Entry{},
		})
	}
	return namespaces, nil
}

// ListKeys returns one page of keys. cursor is sent only when non-empty, and the returned
// NextCursor is nil once the service stops returning one.
func (c *Client) ListKeys(ctx context.Context, creds types.Credentials, namespaceID string, cursor *string) (types.EntryPage, error) {
	query := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
	if cursor != nil && *cursor != "" {
		query.Set("cursor", *cursor)
	}

	env, err := call[[]keyRecord](ctx, c, creds, request{
		op:     "list_keys",
		method: http.MethodGet,
		path:   c.namespacesPath(creds.AccountID, url.PathEscape(namespaceID), "keys"),
		query:  query,
	})
	if err != nil {
		return types.EntryPage{}, err
	}

	page := types.EntryPage{
		Entries:    make([]types.Entry, 0, len(env.Result)),
		TotalCount: len(env.Result),
	}
	for i, k := range env.Result {
		page.Entries = append(page.Entries, keyEntry(namespaceID, i, k))
	}
	if info := env.ResultInfo; info != nil {
		if info.Count > 0 {
			page.TotalCount = info.Count
		}
		if info.Cursor != "" {
			next := info.Cursor
			page.NextCursor = &next
		}
	}
	return page, nil
}

func keyEntry(namespaceID string, index int, k keyRecord) types.Entry {
	e := types.Entry{
		ID:         fmt.Sprintf("%s-%d", namespaceID, index),
		Key:        k.Name,
		BlobRef:    fmt.Sprintf("remote-%d", index),
		Expiration: k.Expiration,
	}
	if m := bytes.TrimSpace(k.Metadata); len(m) > 0 && !bytes.Equal(m, []byte("null")) {
		s := string(m)
		e.Metadata = &s
	}
	return e
}

// ListAllKeys follows cursors until the listing is exhausted.
func (c *Client) ListAllKeys(ctx context.Context, creds types.Credentials, namespaceID string) ([]types.Entry, error) {
	var (
		all    []types.Entry
		cursor *string
		seen   = map[string]struct{}{}
	)
	for {
		page, err := c.ListKeys(ctx, creds, namespaceID, cursor)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Entries {
			index := len(all)
			e.ID = fmt.Sprintf("%s-%d", namespaceID, index)
			e.BlobRef = fmt.Sprintf("remote-%d", index)
			all = append(all, e)
		}
		if page.NextCursor == nil {
			return all, nil
		}
		if _, ok := seen[*page.NextCursor]; ok {
			return nil, types.NewRemoteAPIError(fmt.Sprintf("pagination cursor repeated: %s", *page.NextCursor))
		}
		seen[*page.NextCursor] = struct{}{}
		cursor = page.NextCursor
	}
}

// GetValue fetches a value. Bodies that are not JSON are returned as a JSON string.
func (c *Client) GetValue(ctx context.Context, creds types.Credentials, namespaceID, key string) (json.RawMessage, error) {
	resp, err := c.do(ctx, creds, request{
		op:     "get_value",
		method: http.MethodGet,
		path:   c.namespacesPath(creds.AccountID, url.PathEscape(namespaceID), "values", url.PathEscape(key)),
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, failure(resp)
	}

	if trimmed := bytes.TrimSpace(resp.body); len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed), nil
	}
	wrapped, err := json.Marshal(string(resp.body))
	if err != nil {
		return nil, types.NewRemoteAPIError(fmt.Sprintf("failed to encode value: %v", err))
	}
	return wrapped, nil
}

// PutValue writes value after checking locally that it is valid JSON.
func (c *Client) PutValue(ctx context.Context, creds types.Credentials, namespaceID, key, value string) error {
	data, err := blob.Encode(value)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, creds, request{
		op:          "put_value",
		method:      http.MethodPut,
		path:        c.namespacesPath(creds.AccountID, url.PathEscape(namespaceID), "values", url.PathEscape(key)),
		body:        data,
		contentType: "application/json",
	})
	if err != nil {
		return err
	}
	return checkWrite(resp)
}

// DeleteKeys deletes one key with a scoped DELETE, or several with the bulk endpoint.
func (c *Client) DeleteKeys(ctx context.Context, creds types.Credentials, namespaceID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	var r request
	if len(keys) == 1 {
		r = request{
			op:     "delete_key",
			method: http.MethodDelete,
			path:   c.namespacesPath(creds.AccountID, url.PathEscape(namespaceID), "values", url.PathEscape(keys[0])),
		}
	} else {
		body, err := json.Marshal(keys)
		if err != nil {
			return types.NewInvalidJSON(err)
		}
		r = request{
			op:          "bulk_delete",
			method:      http.MethodPost,
			path:        c.namespacesPath(creds.AccountID, url.PathEscape(namespaceID), "bulk", "delete"),
			body:        body,
			contentType: "application/json",
		}
	}

	resp, err := c.do(ctx, creds, r)
	if err != nil {
		return err
	}
	return checkWrite(resp)
}

// checkWrite accepts any 2xx unless the body is an envelope reporting failure.
func checkWrite(resp response) error {
	if !resp.ok() {
		return failure(resp)
	}
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return nil
	}
	if !env.Success && len(env.Errors) > 0 {
		return types.NewRemoteAPIError(joinMessages(env.Errors))
	}
	return nil
}

// IsAuthError reports whether err came from a rejected token.
func IsAuthError(err error) bool {
	if errors.Is(err, types.ErrAuthFailed) {
		return true
	}
	var e *types.Error
	if errors.As(err, &e) {
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}
