package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the settings database is reachable
type Pinger interface {
	Ping() error
}

type HealthGroup struct {
	settings    Pinger
	routerGroup *echo.Group
}

func NewHealthGroup(g *echo.Group, settings Pinger) *HealthGroup {
	group := &HealthGroup{routerGroup: g, settings: settings}

	g.GET("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	if h.settings != nil {
		if err := h.settings.Ping(); err != nil {
			log.Error().Err(err).Msg("health check failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"status": "not ok",
				"error":  "settings database unavailable",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
