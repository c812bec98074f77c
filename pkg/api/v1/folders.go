package apiv1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/beam-cloud/airkv/pkg/kv"
)

type FoldersGroup struct {
	g       *echo.Group
	gateway *kv.Gateway
}

func NewFoldersGroup(g *echo.Group, gateway *kv.Gateway) *FoldersGroup {
	fg := &FoldersGroup{g: g, gateway: gateway}
	fg.g.GET("", fg.List)
	fg.g.POST("", fg.Add)
	fg.g.DELETE("/:id", fg.Remove)
	fg.g.GET("/:id/namespaces", fg.Load)
	return fg
}

type AddFolderRequest struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

func (fg *FoldersGroup) List(c echo.Context) error {
	return SuccessResponse(c, fg.gateway.ListFolders())
}

func (fg *FoldersGroup) Add(c echo.Context) error {
	var req AddFolderRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}
	if req.Path == "" {
		return ErrorResponse(c, http.StatusBadRequest, "path required")
	}

	view, err := fg.gateway.AddFolder(c.Request().Context(), req.Path, req.Name)
	if err != nil {
		return KVErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Data: view})
}

func (fg *FoldersGroup) Remove(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid folder id")
	}

	if err := fg.gateway.RemoveFolder(c.Request().Context(), id); err != nil {
		return KVErrorResponse(c, err)
	}
	return SuccessResponse(c, nil)
}

func (fg *FoldersGroup) Load(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid folder id")
	}

	view, err := fg.gateway.LoadFolder(c.Request().Context(), id)
	if err != nil {
		return KVErrorResponse(c, err)
	}
	return SuccessResponse(c, view)
}
