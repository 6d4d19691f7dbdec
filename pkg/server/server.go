package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/foliobooks/folio/pkg/binder"
	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/changes"
	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/joblogs"
	"github.com/foliobooks/folio/pkg/jobs"
	"github.com/foliobooks/folio/pkg/organizer"
	"github.com/foliobooks/folio/pkg/scans"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	catalog.RegisterRoutes(e, db)
	scans.RegisterRoutes(e, db)
	changes.RegisterRoutes(e, db)
	organizer.RegisterRoutes(e, db)
	jobs.RegisterRoutes(e, db)
	joblogs.RegisterRoutes(e, db)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
