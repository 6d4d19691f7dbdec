package scans

import (
	"net/http"
	"strconv"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	scanService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListSessionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	sessions, err := h.scanService.ListSessions(ctx, ListSessionsOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Statuses: params.Status,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Sessions []*models.ScanSession `json:"sessions"`
	}{sessions}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) listEntries(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Scan session")
	}

	session, err := h.scanService.RetrieveSession(ctx, RetrieveSessionOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	params := ListEntriesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	entries, err := h.scanService.ListEntries(ctx, ListEntriesOptions{
		SessionID: session.ID,
		Actions:   params.Action,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Session *models.ScanSession `json:"session"`
		Entries []*models.ScanEntry `json:"entries"`
	}{session, entries}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
