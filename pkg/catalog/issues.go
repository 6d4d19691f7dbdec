package catalog

import (
	"context"
	"time"

	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type ListIssuesOptions struct {
	Types      []string
	FileID     *int
	ItemID     *int
	Unresolved bool
}

func (svc *Service) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}

	_, err := svc.db.
		NewInsert().
		Model(issue).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) ListIssues(ctx context.Context, opts ListIssuesOptions) ([]*models.Issue, error) {
	issues := []*models.Issue{}

	q := svc.db.
		NewSelect().
		Model(&issues).
		Order("iss.id ASC")

	if len(opts.Types) > 0 {
		q = q.Where("iss.type IN (?)", bun.In(opts.Types))
	}
	if opts.FileID != nil {
		q = q.Where("iss.file_id = ?", *opts.FileID)
	}
	if opts.ItemID != nil {
		q = q.Where("iss.item_id = ?", *opts.ItemID)
	}
	if opts.Unresolved {
		q = q.Where("iss.resolved_at IS NULL")
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return issues, nil
}

// ResolveIssues marks all open issues of the given type against the file as
// resolved.
func (svc *Service) ResolveIssues(ctx context.Context, fileID int, issueType string) error {
	now := time.Now()

	_, err := svc.db.
		NewUpdate().
		Model((*models.Issue)(nil)).
		Set("resolved_at = ?", now).
		Where("file_id = ?", fileID).
		Where("type = ?", issueType).
		Where("resolved_at IS NULL").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}
