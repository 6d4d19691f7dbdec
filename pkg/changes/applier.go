package changes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/epub"
	"github.com/foliobooks/folio/pkg/fileutils"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
)

// Applier works through pending changes one at a time. A change that fails
// is marked with its error and the run moves on to the next one, so a single
// bad file can't block the rest of the batch.
type Applier struct {
	changeService  *Service
	catalogService *catalog.Service
}

func NewApplier(changeService *Service, catalogService *catalog.Service) *Applier {
	return &Applier{
		changeService:  changeService,
		catalogService: catalogService,
	}
}

// Apply processes the pending changes with the given ids, or every pending
// change when ids is empty. Requested ids that are no longer pending are
// counted as skipped.
func (a *Applier) Apply(ctx context.Context, ids []int, reporter Reporter) (Summary, error) {
	if reporter == nil {
		reporter = NopReporter{}
	}

	changes, err := a.changeService.ListChanges(ctx, ListChangesOptions{
		IDs:      ids,
		Statuses: []string{models.ChangeStatusPending},
		WithFile: true,
	})
	if err != nil {
		return Summary{}, errors.WithStack(err)
	}

	summary := Summary{Total: len(changes)}
	if len(ids) > 0 {
		summary.Total = len(ids)
	}
	reporter.Started(summary.Total)

	loaded := make(map[int]bool, len(changes))
	for _, change := range changes {
		loaded[change.ID] = true
	}

	current := 0
	for _, id := range ids {
		if loaded[id] {
			continue
		}
		current++
		summary.Skipped++
		reporter.Item(ItemProgress{
			ChangeID: id,
			Status:   ProgressStatusSkipped,
			Message:  "change is no longer pending",
			Current:  current,
			Total:    summary.Total,
		})
	}

	for _, change := range changes {
		current++

		reporter.Item(ItemProgress{
			ChangeID: change.ID,
			FileID:   change.FileID,
			Status:   ProgressStatusProcessing,
			Message:  fmt.Sprintf("applying %s", change.Type),
			Current:  current,
			Total:    summary.Total,
		})

		err := a.applyOne(ctx, change)
		if err != nil {
			summary.Errors++

			change.Status = models.ChangeStatusError
			change.Error = pointerutil.String(err.Error())
			if uerr := a.changeService.UpdateChange(ctx, change, UpdateChangeOptions{
				Columns: []string{"status", "error"},
			}); uerr != nil {
				return summary, errors.WithStack(uerr)
			}

			reporter.Item(ItemProgress{
				ChangeID: change.ID,
				FileID:   change.FileID,
				Status:   ProgressStatusError,
				Message:  err.Error(),
				Current:  current,
				Total:    summary.Total,
			})
			continue
		}

		summary.Processed++

		now := time.Now()
		change.Status = models.ChangeStatusApplied
		change.AppliedAt = &now
		change.Error = nil
		if uerr := a.changeService.UpdateChange(ctx, change, UpdateChangeOptions{
			Columns: []string{"status", "applied_at", "error"},
		}); uerr != nil {
			return summary, errors.WithStack(uerr)
		}

		reporter.Item(ItemProgress{
			ChangeID: change.ID,
			FileID:   change.FileID,
			Status:   ProgressStatusApplied,
			Message:  fmt.Sprintf("applied %s", change.Type),
			Current:  current,
			Total:    summary.Total,
		})
	}

	reporter.Completed(summary)

	return summary, nil
}

func (a *Applier) applyOne(ctx context.Context, change *models.PendingChange) error {
	if change.File == nil {
		return errors.Errorf("change %d has no file record", change.ID)
	}

	switch change.Type {
	case models.ChangeTypeRename:
		return a.applyRename(ctx, change)
	case models.ChangeTypeDelete:
		return a.applyDelete(ctx, change)
	case models.ChangeTypeMetadataEdit:
		return a.applyMetadataEdit(ctx, change)
	default:
		return errors.Errorf("unknown pending change type %q", change.Type)
	}
}

func (a *Applier) applyRename(ctx context.Context, change *models.PendingChange) error {
	if change.ToPath == nil {
		return errors.New("rename change has no target path")
	}

	file := change.File
	to := *change.ToPath

	// A staged from-path names where the bytes actually are, covering files
	// moved on disk after the record was last scanned.
	from := file.Filepath
	if change.FromPath != nil && *change.FromPath != "" {
		from = *change.FromPath
	}

	if from != to {
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return errors.WithStack(err)
		}
		if err := fileutils.MoveFile(from, to); err != nil {
			return errors.WithStack(err)
		}
	}

	file.Filepath = to
	file.Filename = filepath.Base(to)
	file.Extension = strings.ToLower(filepath.Ext(to))

	return a.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{
		Columns: []string{"filepath", "filename", "extension"},
	})
}

// applyDelete removes the file from disk and retires its record. A file
// that's already gone still counts as a successful delete.
func (a *Applier) applyDelete(ctx context.Context, change *models.PendingChange) error {
	file := change.File

	file.Status = models.FileStatusInactive
	err := a.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{
		Columns: []string{"status"},
	})
	if err != nil {
		return errors.WithStack(err)
	}

	err = os.Remove(file.Filepath)
	if err != nil && !os.IsNotExist(err) {
		file.Status = models.FileStatusActive
		if uerr := a.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{
			Columns: []string{"status"},
		}); uerr != nil {
			return errors.WithStack(uerr)
		}
		return errors.WithStack(err)
	}

	return errors.WithStack(a.catalogService.ResolveIssues(ctx, file.ID, models.IssueTypeDuplicate))
}

func (a *Applier) applyMetadataEdit(ctx context.Context, change *models.PendingChange) error {
	file := change.File

	if file.Extension != models.FileExtensionEPUB {
		return errors.Errorf("metadata edits are not supported for %s files", strings.TrimPrefix(file.Extension, "."))
	}

	payload, ok := change.PayloadParsed.(*models.MetadataEditPayload)
	if !ok {
		return errors.New("metadata edit change has no payload")
	}

	if err := epub.RewriteMetadata(file.Filepath, payload); err != nil {
		return errors.WithStack(err)
	}

	// Rewriting the container changes its size, mtime, and hash. Refresh the
	// record so the next scan sees the file as unchanged.
	info, err := os.Stat(file.Filepath)
	if err != nil {
		return errors.WithStack(err)
	}
	hash, err := fileutils.HashFile(file.Filepath)
	if err != nil {
		return errors.WithStack(err)
	}

	file.FilesizeBytes = info.Size()
	file.ModifiedAt = info.ModTime()
	file.Sha256 = pointerutil.String(hash)

	return a.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{
		Columns: []string{"filesize_bytes", "modified_at", "sha256"},
	})
}
