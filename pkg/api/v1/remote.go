package apiv1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/beam-cloud/airkv/pkg/kv"
)

type RemoteGroup struct {
	g       *echo.Group
	gateway *kv.Gateway
}

func NewRemoteGroup(g *echo.Group, gateway *kv.Gateway) *RemoteGroup {
	rg := &RemoteGroup{g: g, gateway: gateway}
	rg.g.GET("/namespaces", rg.ListNamespaces)
	rg.g.GET("/connections", rg.ListConnections)
	rg.g.POST("/connect", rg.Connect)
	rg.g.POST("/disconnect", rg.Disconnect)
	return rg
}

type ConnectRequest struct {
	AccountID string `json:"account_id"`
	APIToken  string `json:"api_token"`
}

func (rg *RemoteGroup) ListNamespaces(c echo.Context) error {
	withCounts, _ := strconv.ParseBool(c.QueryParam("counts"))

	namespaces, err := rg.gateway.ListRemoteNamespaces(c.Request().Context(), withCounts)
	if err != nil {
		return KVErrorResponse(c, err)
	}
	return SuccessResponse(c, namespaces)
}

func (rg *RemoteGroup) ListConnections(c echo.Context) error {
	return SuccessResponse(c, rg.gateway.ListConnections())
}

func (rg *RemoteGroup) Connect(c echo.Context) error {
	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}
	if req.AccountID == "" || req.APIToken == "" {
		return ErrorResponse(c, http.StatusBadRequest, "account_id and api_token required")
	}

	conn, err := rg.gateway.Connect(c.Request().Context(), req.AccountID, req.APIToken)
	if err != nil {
		return KVErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Data: conn})
}

func (rg *RemoteGroup) Disconnect(c echo.Context) error {
	if err := rg.gateway.Disconnect(c.Request().Context()); err != nil {
		return KVErrorResponse(c, err)
	}
	return SuccessResponse(c, nil)
}
