package changes

import (
	"context"
	"database/sql"
	"time"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

type RetrieveChangeOptions struct {
	ID *int
}

type ListChangesOptions struct {
	IDs      []int
	Statuses []string
	FileID   *int
	WithFile bool
}

type UpdateChangeOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateChange stages a new pending change. Any pending change of the same
// type against the same file is superseded: it's deleted before the new one
// is inserted, so at most one pending change per (file, type) pair exists.
func (svc *Service) CreateChange(ctx context.Context, change *models.PendingChange) error {
	now := time.Now()
	if change.CreatedAt.IsZero() {
		change.CreatedAt = now
	}
	change.UpdatedAt = change.CreatedAt
	if change.Status == "" {
		change.Status = models.ChangeStatusPending
	}

	if change.Payload == "" && change.PayloadParsed != nil {
		data, err := json.Marshal(change.PayloadParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		change.Payload = string(data)
	}

	err := svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewDelete().
			Model((*models.PendingChange)(nil)).
			Where("file_id = ?", change.FileID).
			Where("type = ?", change.Type).
			Where("status = ?", models.ChangeStatusPending).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewInsert().
			Model(change).
			Returning("*").
			Exec(ctx)
		return errors.WithStack(err)
	})

	return errors.WithStack(err)
}

func (svc *Service) RetrieveChange(ctx context.Context, opts RetrieveChangeOptions) (*models.PendingChange, error) {
	change := &models.PendingChange{}

	q := svc.db.
		NewSelect().
		Model(change)

	if opts.ID != nil {
		q = q.Where("pc.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Pending change")
		}
		return nil, errors.WithStack(err)
	}

	if err := change.UnmarshalPayload(); err != nil {
		return nil, errors.WithStack(err)
	}

	return change, nil
}

// ListChanges returns changes oldest first, which is the order the applier
// processes them in.
func (svc *Service) ListChanges(ctx context.Context, opts ListChangesOptions) ([]*models.PendingChange, error) {
	changes := []*models.PendingChange{}

	q := svc.db.
		NewSelect().
		Model(&changes).
		Order("pc.id ASC")

	if opts.WithFile {
		q = q.Relation("File")
	}

	if len(opts.IDs) > 0 {
		q = q.Where("pc.id IN (?)", bun.In(opts.IDs))
	}
	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("pc.status = ?", s)
			}
			return sq
		})
	}
	if opts.FileID != nil {
		q = q.Where("pc.file_id = ?", *opts.FileID)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, change := range changes {
		if err := change.UnmarshalPayload(); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return changes, nil
}

// RemoveChanges deletes pending changes by id, or every pending change when
// no ids are given. Applied and errored changes are kept as history.
func (svc *Service) RemoveChanges(ctx context.Context, ids []int) (int, error) {
	q := svc.db.
		NewDelete().
		Model((*models.PendingChange)(nil)).
		Where("status = ?", models.ChangeStatusPending)

	if len(ids) > 0 {
		q = q.Where("id IN (?)", bun.In(ids))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return int(count), nil
}

func (svc *Service) UpdateChange(ctx context.Context, change *models.PendingChange, opts UpdateChangeOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	change.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(change).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Pending change")
		}
		return errors.WithStack(err)
	}

	return nil
}
