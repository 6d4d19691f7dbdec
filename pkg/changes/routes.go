package changes

import (
	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		changeService:  NewService(db),
		catalogService: catalog.NewService(db),
	}

	e.GET("/changes", h.list)
	e.POST("/changes", h.create)
	e.DELETE("/changes", h.remove)
	e.POST("/changes/duplicates", h.resolveDuplicates)
}
