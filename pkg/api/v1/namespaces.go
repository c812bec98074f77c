package apiv1

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/beam-cloud/airkv/pkg/kv"
	"github.com/beam-cloud/airkv/pkg/types"
)

// maxValueBytes matches the remote service's value size limit
const maxValueBytes = 25 << 20

type NamespacesGroup struct {
	g       *echo.Group
	gateway *kv.Gateway
}

func NewNamespacesGroup(g *echo.Group, gateway *kv.Gateway) *NamespacesGroup {
	ng := &NamespacesGroup{g: g, gateway: gateway}
	ng.g.GET("/:ns/entries", ng.ListEntries)
	ng.g.GET("/:ns/values/*", ng.GetValue)
	ng.g.PUT("/:ns/values/*", ng.PutValue)
	ng.g.POST("/:ns/delete", ng.Delete)
	return ng
}

type DeleteKeysRequest struct {
	Keys []string `json:"keys"`
}

type ListEntriesResponse struct {
	Entries    []types.Entry `json:"entries"`
	NextCursor *string       `json:"next_cursor"`
	TotalCount int           `json:"total_count"`
}

func (ng *NamespacesGroup) ListEntries(c echo.Context) error {
	ctx := c.Request().Context()
	ns := c.Param("ns")
	account := c.QueryParam("account")

	if all, _ := strconv.ParseBool(c.QueryParam("all")); all {
		entries, err := ng.gateway.ListAllKeys(ctx, ns, account)
		if err != nil {
			return KVErrorResponse(c, err)
		}
		return SuccessResponse(c, ListEntriesResponse{Entries: entries, TotalCount: len(entries)})
	}

	var cursor *string
	if v := c.QueryParam("cursor"); v != "" {
		cursor = &v
	}

	page, err := ng.gateway.ListEntries(ctx, ns, account, cursor)
	if err != nil {
		return KVErrorResponse(c, err)
	}
	return SuccessResponse(c, ListEntriesResponse(page))
}

func (ng *NamespacesGroup) GetValue(c echo.Context) error {
	key := wildcardKey(c)
	if key == "" {
		return ErrorResponse(c, http.StatusBadRequest, "key required")
	}

	value, err := ng.gateway.GetValue(c.Request().Context(), c.Param("ns"), c.QueryParam("account"), key)
	if err != nil {
		return KVErrorResponse(c, err)
	}
	if value == nil {
		value = json.RawMessage("null")
	}
	return SuccessResponse(c, value)
}

func (ng *NamespacesGroup) PutValue(c echo.Context) error {
	key := wildcardKey(c)
	if key == "" {
		return ErrorResponse(c, http.StatusBadRequest, "key required")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxValueBytes+1))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "failed to read body")
	}
	if len(body) > maxValueBytes {
		return ErrorResponse(c, http.StatusRequestEntityTooLarge, "value too large")
	}

	if err := ng.gateway.PutValue(c.Request().Context(), c.Param("ns"), c.QueryParam("account"), key, string(body)); err != nil {
		return KVErrorResponse(c, err)
	}
	return SuccessResponse(c, nil)
}

func (ng *NamespacesGroup) Delete(c echo.Context) error {
	var req DeleteKeysRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}
	if len(req.Keys) == 0 {
		return ErrorResponse(c, http.StatusBadRequest, "keys required")
	}

	if err := ng.gateway.DeleteKeys(c.Request().Context(), c.Param("ns"), c.QueryParam("account"), req.Keys); err != nil {
		return KVErrorResponse(c, err)
	}
	return SuccessResponse(c, map[string]int{"deleted": len(req.Keys)})
}

// wildcardKey returns the key from the wildcard segment. Routing uses the raw path
// only when it differs from the decoded one, and only then is the segment still escaped.
func wildcardKey(c echo.Context) string {
	raw := c.Param("*")
	if c.Request().URL.RawPath == "" {
		return raw
	}
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}
