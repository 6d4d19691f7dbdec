package scans

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	scanService := NewService(db)

	h := &handler{
		scanService: scanService,
	}

	e.GET("/scans", h.list)
	e.GET("/scans/:id/entries", h.listEntries)
}
