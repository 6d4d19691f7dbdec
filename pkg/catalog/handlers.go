package catalog

import (
	"net/http"
	"strconv"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	catalogService *Service
}

func (h *handler) listItems(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListItemsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	items, total, err := h.catalogService.ListItemsWithTotal(ctx, ListItemsOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Items []*models.Item `json:"items"`
		Total int            `json:"total"`
	}{items, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieveItem(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Item")
	}

	item, err := h.catalogService.RetrieveItem(ctx, RetrieveItemOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) listIssues(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListIssuesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	issues, err := h.catalogService.ListIssues(ctx, ListIssuesOptions{
		Types:      params.Type,
		FileID:     params.FileID,
		Unresolved: params.Unresolved,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Issues []*models.Issue `json:"issues"`
	}{issues}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
