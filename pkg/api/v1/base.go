package apiv1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/airkv/pkg/types"
)

const (
	HttpServerBaseRoute string = "/api/v1"
	HttpServerRootRoute string = ""
)

// Response is a standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse returns a successful response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse returns an error response
func ErrorResponse(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{
		Success: false,
		Error:   message,
	})
}

// StatusForError maps an error kind to an HTTP status
func StatusForError(err error) int {
	switch types.KindOf(err) {
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindInvalidInput:
		return http.StatusBadRequest
	case types.KindRemoteFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// KVErrorResponse writes err using its user-facing message. Errors without a kind are not exposed.
func KVErrorResponse(c echo.Context, err error) error {
	status := StatusForError(err)

	var kvErr *types.Error
	if !errors.As(err, &kvErr) {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled api error")
		return ErrorResponse(c, status, "internal error")
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("api request failed")
	}
	return c.JSON(status, Response{
		Success: false,
		Error:   kvErr.Message,
		Code:    kvErr.Code,
	})
}
