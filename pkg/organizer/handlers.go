package organizer

import (
	"context"
	"net/http"

	"github.com/foliobooks/folio/pkg/changes"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	settingsService *Service
	changeService   *changes.Service
	planner         *Planner
}

// plan computes a transient organize plan. Omitted fields fall back to the
// saved settings.
func (h *handler) plan(c echo.Context) error {
	ctx := c.Request().Context()

	body := PlanBody{}
	if err := c.Bind(&body); err != nil {
		return errors.WithStack(err)
	}

	opts, err := h.planOptions(ctx, body)
	if err != nil {
		return errors.WithStack(err)
	}

	plan, err := h.planner.Plan(ctx, *opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, plan))
}

func (h *handler) planOptions(ctx context.Context, body PlanBody) (*PlanOptions, error) {
	settings, err := h.settingsService.RetrieveSettings(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	opts := &PlanOptions{
		Mode:        body.Mode,
		LibraryRoot: body.LibraryRoot,
		Template:    body.Template,
	}
	if opts.Mode == "" {
		opts.Mode = settings.Mode
	}
	if opts.Template == "" {
		opts.Template = settings.Template
	}
	if opts.LibraryRoot == "" && settings.LibraryRoot != nil {
		opts.LibraryRoot = *settings.LibraryRoot
	}
	if opts.LibraryRoot == "" {
		return nil, errcodes.ValidationError("A library root is required to plan an organize pass.")
	}

	return opts, nil
}

func (h *handler) createChanges(c echo.Context) error {
	ctx := c.Request().Context()

	body := CreateChangesBody{}
	if err := c.Bind(&body); err != nil {
		return errors.WithStack(err)
	}

	created, err := CreateChangesFromPlan(ctx, h.changeService, body.Plan)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Created int `json:"created"`
	}{created}

	return errors.WithStack(c.JSON(http.StatusCreated, resp))
}

func (h *handler) retrieveSettings(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.settingsService.RetrieveSettings(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, settings))
}

func (h *handler) updateSettings(c echo.Context) error {
	ctx := c.Request().Context()

	body := UpdateSettingsBody{}
	if err := c.Bind(&body); err != nil {
		return errors.WithStack(err)
	}

	settings, err := h.settingsService.RetrieveSettings(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if body.LibraryRoot != nil {
		settings.LibraryRoot = body.LibraryRoot
	}
	if body.Mode != nil {
		settings.Mode = *body.Mode
	}
	if body.Template != nil {
		settings.Template = *body.Template
	}

	if err := h.settingsService.UpdateSettings(ctx, settings); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, settings))
}
