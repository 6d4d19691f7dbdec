package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveItemOptions struct {
	ID *int
}

type ListItemsOptions struct {
	Limit  *int
	Offset *int

	includeTotal bool
}

type UpdateItemOptions struct {
	Columns []string
}

type RetrieveFileOptions struct {
	ID       *int
	Filepath *string
	Sha256   *string
	// ExcludePath filters out the record at this path, used when looking for
	// content matches elsewhere in the library.
	ExcludePath *string
	Statuses    []string
	WithItem    bool
}

type ListFilesOptions struct {
	Statuses   []string
	PathPrefix *string
	ItemID     *int
	WithItem   bool
}

type UpdateFileOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateItem(ctx context.Context, item *models.Item) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = item.CreatedAt

	err := svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewInsert().
			Model(item).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for i, author := range item.Authors {
			author.ItemID = item.ID
			author.SortOrder = i
			author.CreatedAt = now
			_, err := tx.
				NewInsert().
				Model(author).
				Returning("*").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		for _, identifier := range item.Identifiers {
			identifier.ItemID = item.ID
			identifier.CreatedAt = now
			_, err := tx.
				NewInsert().
				Model(identifier).
				Returning("*").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})

	return errors.WithStack(err)
}

func (svc *Service) RetrieveItem(ctx context.Context, opts RetrieveItemOptions) (*models.Item, error) {
	item := &models.Item{}

	q := svc.db.
		NewSelect().
		Model(item).
		Relation("Authors", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("a.sort_order ASC")
		}).
		Relation("Identifiers").
		Relation("Files")

	if opts.ID != nil {
		q = q.Where("i.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Item")
		}
		return nil, errors.WithStack(err)
	}

	return item, nil
}

func (svc *Service) ListItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	opts.includeTotal = true
	return svc.listItemsWithTotal(ctx, opts)
}

func (svc *Service) listItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	items := []*models.Item{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&items).
		Relation("Authors", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("a.sort_order ASC")
		}).
		Relation("Identifiers").
		Order("i.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return items, total, nil
}

func (svc *Service) UpdateItem(ctx context.Context, item *models.Item, opts UpdateItemOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	item.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(item).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Item")
		}
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) CreateFile(ctx context.Context, file *models.File) error {
	now := time.Now()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = file.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(file).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveFile(ctx context.Context, opts RetrieveFileOptions) (*models.File, error) {
	file := &models.File{}

	q := svc.db.
		NewSelect().
		Model(file).
		Order("f.id ASC").
		Limit(1)

	if opts.WithItem {
		q = q.Relation("Item").
			Relation("Item.Authors", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("a.sort_order ASC")
			}).
			Relation("Item.Identifiers")
	}

	if opts.ID != nil {
		q = q.Where("f.id = ?", *opts.ID)
	}
	if opts.Filepath != nil {
		q = q.Where("f.filepath = ?", *opts.Filepath)
	}
	if opts.Sha256 != nil {
		q = q.Where("f.sha256 = ?", *opts.Sha256)
	}
	if opts.ExcludePath != nil {
		q = q.Where("f.filepath != ?", *opts.ExcludePath)
	}
	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("f.status = ?", s)
			}
			return sq
		})
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("File")
		}
		return nil, errors.WithStack(err)
	}

	return file, nil
}

func (svc *Service) ListFiles(ctx context.Context, opts ListFilesOptions) ([]*models.File, error) {
	files := []*models.File{}

	q := svc.db.
		NewSelect().
		Model(&files).
		Order("f.id ASC")

	if opts.WithItem {
		q = q.Relation("Item").
			Relation("Item.Authors", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("a.sort_order ASC")
			}).
			Relation("Item.Identifiers")
	}

	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("f.status = ?", s)
			}
			return sq
		})
	}
	if opts.PathPrefix != nil {
		q = q.Where("f.filepath LIKE ?", *opts.PathPrefix+"%")
	}
	if opts.ItemID != nil {
		q = q.Where("f.item_id = ?", *opts.ItemID)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return files, nil
}

func (svc *Service) UpdateFile(ctx context.Context, file *models.File, opts UpdateFileOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	file.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(file).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("File")
		}
		return errors.WithStack(err)
	}

	return nil
}
