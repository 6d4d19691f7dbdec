package organizer

import (
	"context"
	"database/sql"
	"time"

	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// RetrieveSettings returns the stored organizer settings, or the defaults
// when nothing has been saved yet.
func (svc *Service) RetrieveSettings(ctx context.Context) (*models.OrganizerSettings, error) {
	settings := &models.OrganizerSettings{}

	err := svc.db.
		NewSelect().
		Model(settings).
		Where("os.id = 1").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.OrganizerSettings{
				ID:       1,
				Mode:     models.OrganizeModeCopy,
				Template: models.DefaultOrganizeTemplate,
			}, nil
		}
		return nil, errors.WithStack(err)
	}

	return settings, nil
}

func (svc *Service) UpdateSettings(ctx context.Context, settings *models.OrganizerSettings) error {
	settings.ID = 1
	settings.UpdatedAt = time.Now()
	if settings.Mode == "" {
		settings.Mode = models.OrganizeModeCopy
	}
	if settings.Template == "" {
		settings.Template = models.DefaultOrganizeTemplate
	}

	_, err := svc.db.
		NewInsert().
		Model(settings).
		On("CONFLICT (id) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("library_root = EXCLUDED.library_root").
		Set("mode = EXCLUDED.mode").
		Set("template = EXCLUDED.template").
		Exec(ctx)

	return errors.WithStack(err)
}
