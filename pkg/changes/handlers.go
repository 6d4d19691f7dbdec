package changes

import (
	"fmt"
	"net/http"

	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	changeService  *Service
	catalogService *catalog.Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListChangesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	changes, err := h.changeService.ListChanges(ctx, ListChangesOptions{
		Statuses: params.Status,
		FileID:   params.FileID,
		WithFile: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Changes []*models.PendingChange `json:"changes"`
	}{changes}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	body := CreateChangeBody{}
	if err := c.Bind(&body); err != nil {
		return errors.WithStack(err)
	}

	file, err := h.catalogService.RetrieveFile(ctx, catalog.RetrieveFileOptions{ID: &body.FileID})
	if err != nil {
		return errors.WithStack(err)
	}

	change := &models.PendingChange{
		FileID: file.ID,
		Type:   body.Type,
	}

	switch body.Type {
	case models.ChangeTypeRename:
		change.FromPath = &file.Filepath
		change.ToPath = body.ToPath
	case models.ChangeTypeDelete:
		if body.Reason != nil {
			change.PayloadParsed = &models.DeletePayload{Reason: *body.Reason}
		}
	case models.ChangeTypeMetadataEdit:
		if body.Title == nil && body.Author == nil && body.Description == nil && body.ISBN == nil {
			return errcodes.ValidationError("A metadata edit needs at least one field to change.")
		}
		change.PayloadParsed = &models.MetadataEditPayload{
			Title:       body.Title,
			Author:      body.Author,
			Description: body.Description,
			ISBN:        body.ISBN,
		}
	}

	if err := h.changeService.CreateChange(ctx, change); err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Change *models.PendingChange `json:"change"`
	}{change}

	return errors.WithStack(c.JSON(http.StatusCreated, resp))
}

func (h *handler) remove(c echo.Context) error {
	ctx := c.Request().Context()

	params := RemoveChangesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	removed, err := h.changeService.RemoveChanges(ctx, params.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Removed int `json:"removed"`
	}{removed}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

// resolveDuplicates stages a delete for every listed file except the one
// being kept.
func (h *handler) resolveDuplicates(c echo.Context) error {
	ctx := c.Request().Context()

	body := ResolveDuplicatesBody{}
	if err := c.Bind(&body); err != nil {
		return errors.WithStack(err)
	}

	keep, err := h.catalogService.RetrieveFile(ctx, catalog.RetrieveFileOptions{ID: &body.KeepFileID})
	if err != nil {
		return errors.WithStack(err)
	}

	changes := []*models.PendingChange{}
	for _, fileID := range body.FileIDs {
		if fileID == keep.ID {
			continue
		}

		file, err := h.catalogService.RetrieveFile(ctx, catalog.RetrieveFileOptions{ID: &fileID})
		if err != nil {
			return errors.WithStack(err)
		}

		change := &models.PendingChange{
			FileID: file.ID,
			Type:   models.ChangeTypeDelete,
			PayloadParsed: &models.DeletePayload{
				Reason: fmt.Sprintf("duplicate of %s", keep.Filepath),
			},
		}
		if err := h.changeService.CreateChange(ctx, change); err != nil {
			return errors.WithStack(err)
		}
		changes = append(changes, change)
	}

	resp := struct {
		Changes []*models.PendingChange `json:"changes"`
	}{changes}

	return errors.WithStack(c.JSON(http.StatusCreated, resp))
}
