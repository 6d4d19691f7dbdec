package organizer

import (
	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/changes"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		settingsService: NewService(db),
		changeService:   changes.NewService(db),
		planner:         NewPlanner(catalog.NewService(db)),
	}

	e.POST("/organize/plan", h.plan)
	e.POST("/organize/changes", h.createChanges)
	e.GET("/organize/settings", h.retrieveSettings)
	e.PUT("/organize/settings", h.updateSettings)
}
