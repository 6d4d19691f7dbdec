package scans

import (
	"context"
	"database/sql"
	"time"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveSessionOptions struct {
	ID *int
}

type ListSessionsOptions struct {
	Limit    *int
	Offset   *int
	Statuses []string
}

type UpdateSessionOptions struct {
	Columns []string
}

type ListEntriesOptions struct {
	SessionID int
	Actions   []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// StartSession opens a new scan session in the running state.
func (svc *Service) StartSession(ctx context.Context, rootPath string) (*models.ScanSession, error) {
	session := &models.ScanSession{
		RootPath:  rootPath,
		Status:    models.ScanSessionStatusRunning,
		StartedAt: time.Now(),
	}

	_, err := svc.db.
		NewInsert().
		Model(session).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return session, nil
}

// FinishSession closes a running session with the given terminal status.
func (svc *Service) FinishSession(ctx context.Context, session *models.ScanSession, status string) error {
	now := time.Now()
	session.Status = status
	session.EndedAt = &now

	return svc.UpdateSession(ctx, session, UpdateSessionOptions{
		Columns: []string{"status", "ended_at", "added", "updated", "moved", "unchanged", "missing"},
	})
}

func (svc *Service) RetrieveSession(ctx context.Context, opts RetrieveSessionOptions) (*models.ScanSession, error) {
	session := &models.ScanSession{}

	q := svc.db.
		NewSelect().
		Model(session)

	if opts.ID != nil {
		q = q.Where("ss.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Scan session")
		}
		return nil, errors.WithStack(err)
	}

	return session, nil
}

func (svc *Service) ListSessions(ctx context.Context, opts ListSessionsOptions) ([]*models.ScanSession, error) {
	sessions := []*models.ScanSession{}

	q := svc.db.
		NewSelect().
		Model(&sessions).
		Order("ss.id DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("ss.status IN (?)", bun.In(opts.Statuses))
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return sessions, nil
}

func (svc *Service) UpdateSession(ctx context.Context, session *models.ScanSession, opts UpdateSessionOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	_, err := svc.db.
		NewUpdate().
		Model(session).
		Column(opts.Columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Scan session")
		}
		return errors.WithStack(err)
	}

	return nil
}

// ReconcileInterrupted marks any session still in the running state as failed.
// Called once at startup: a running session at that point can only mean the
// process died mid-scan.
func (svc *Service) ReconcileInterrupted(ctx context.Context) (int, error) {
	now := time.Now()

	res, err := svc.db.
		NewUpdate().
		Model((*models.ScanSession)(nil)).
		Set("status = ?", models.ScanSessionStatusFailed).
		Set("ended_at = ?", now).
		Where("status = ?", models.ScanSessionStatusRunning).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return int(count), nil
}

func (svc *Service) CreateEntry(ctx context.Context, entry *models.ScanEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := svc.db.
		NewInsert().
		Model(entry).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) ListEntries(ctx context.Context, opts ListEntriesOptions) ([]*models.ScanEntry, error) {
	entries := []*models.ScanEntry{}

	q := svc.db.
		NewSelect().
		Model(&entries).
		Where("se.session_id = ?", opts.SessionID).
		Order("se.id ASC")

	if len(opts.Actions) > 0 {
		q = q.Where("se.action IN (?)", bun.In(opts.Actions))
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entries, nil
}
