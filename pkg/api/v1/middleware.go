package apiv1

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/airkv/pkg/metrics"
)

// NewRequestIDMiddleware tags each request with a UUID request id.
func NewRequestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	})
}

// NewRequestLogMiddleware logs every request through zerolog and records HTTP metrics.
// Metrics use the route pattern so keys in paths don't explode label cardinality.
func NewRequestLogMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			latency := time.Since(start)
			metrics.RecordHTTPRequest(req.Method, c.Path(), res.Status, latency)

			log.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Int("status", res.Status).
				Dur("latency", latency).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("http request")
			return nil
		}
	}
}
