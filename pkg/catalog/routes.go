package catalog

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	catalogService := NewService(db)

	h := &handler{
		catalogService: catalogService,
	}

	e.GET("/items", h.listItems)
	e.GET("/items/:id", h.retrieveItem)
	e.GET("/issues", h.listIssues)
}
