package worker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/fileutils"
	"github.com/foliobooks/folio/pkg/joblogs"
	"github.com/foliobooks/folio/pkg/jobs"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
)

var extensionsToScan = map[string]map[string]struct{}{
	".epub": {"application/epub+zip": {}},
	".pdf":  {"application/pdf": {}},
}

// contentMatchesExtension sniffs a file and compares the detected mime type
// against what its extension promises. Files can have any extension, so the
// content has to be checked before it's trusted.
func contentMatchesExtension(path string, jlog *joblogs.JobLogger) bool {
	expectedMimeTypes := extensionsToScan[strings.ToLower(filepath.Ext(path))]

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		jlog.Warn("can't detect the mime type of a file with a valid extension", logger.Data{"path": path, "err": err.Error()})
		return false
	}
	if _, ok := expectedMimeTypes[mtype.String()]; !ok {
		jlog.Warn("mime type is not expected for extension", logger.Data{"path": path, "mimetype": mtype.String()})
		return false
	}

	return true
}

func (w *Worker) ProcessScanJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)
	jlog := w.jobLogService.NewJobLogger(ctx, job.ID, log)
	jlog.Info("processing scan job", nil)

	root := w.config.LibraryRoot
	if data, ok := job.DataParsed.(*models.JobScanData); ok && data.Root != "" {
		root = data.Root
	}
	if root == "" {
		return errors.New("no library root configured")
	}

	session, err := w.scanService.StartSession(ctx, root)
	if err != nil {
		return errors.WithStack(err)
	}

	err = w.runScan(ctx, job, session, root, jlog)
	if err != nil {
		jlog.Error("scan failed", err, nil)
		if ferr := w.scanService.FinishSession(ctx, session, models.ScanSessionStatusFailed); ferr != nil {
			jlog.Error("finish session error", ferr, nil)
		}
		return errors.WithStack(err)
	}

	err = w.scanService.FinishSession(ctx, session, models.ScanSessionStatusSuccess)
	if err != nil {
		return errors.WithStack(err)
	}

	jlog.Info("finished scan job", logger.Data{
		"added":     session.Added,
		"updated":   session.Updated,
		"moved":     session.Moved,
		"unchanged": session.Unchanged,
		"missing":   session.Missing,
	})
	return nil
}

func (w *Worker) runScan(ctx context.Context, job *models.Job, session *models.ScanSession, root string, jlog *joblogs.JobLogger) error {
	filesToScan := make([]string, 0)

	err := filepath.WalkDir(root, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if info.IsDir() {
			// We don't do anything explicitly to directories.
			return nil
		}
		if _, ok := extensionsToScan[strings.ToLower(filepath.Ext(path))]; !ok {
			// We're only looking for certain files right now.
			return nil
		}

		// Collect by extension only so the total is known before any real
		// work starts. Content sniffing waits until a file actually needs to
		// be read, alongside hashing.
		filesToScan = append(filesToScan, path)

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	seen := make(map[string]bool, len(filesToScan))
	for i, path := range filesToScan {
		seen[path] = true

		err := w.scanFile(ctx, session, path, jlog)
		if err != nil {
			return errors.WithStack(err)
		}

		job.Progress = (i + 1) * 100 / len(filesToScan)
		if uerr := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
			Columns: []string{"progress"},
		}); uerr != nil {
			return errors.WithStack(uerr)
		}
	}

	return w.sweepMissing(ctx, session, root, seen, jlog)
}

func (w *Worker) scanFile(ctx context.Context, session *models.ScanSession, path string, jlog *joblogs.JobLogger) error {
	existing, err := w.catalogService.RetrieveFile(ctx, catalog.RetrieveFileOptions{
		Filepath: &path,
		Statuses: []string{models.FileStatusActive, models.FileStatusMissing},
	})
	if err != nil && !errors.Is(err, errcodes.NotFound("File")) {
		return errors.WithStack(err)
	}

	stats, err := os.Stat(path)
	if err != nil {
		return errors.WithStack(err)
	}

	if existing != nil {
		return w.scanKnownFile(ctx, session, existing, stats.Size(), stats.ModTime(), jlog)
	}

	return w.scanNewPath(ctx, session, path, stats.Size(), stats.ModTime(), jlog)
}

// scanKnownFile handles a path that already has a record. When size and
// mtime both match, the content is assumed identical and the file is never
// hashed.
func (w *Worker) scanKnownFile(ctx context.Context, session *models.ScanSession, file *models.File, size int64, modTime time.Time, jlog *joblogs.JobLogger) error {
	if size == file.FilesizeBytes && modTime.Unix() == file.ModifiedAt.Unix() {
		if file.Status == models.FileStatusMissing {
			file.Status = models.FileStatusActive
			err := w.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{Columns: []string{"status"}})
			if err != nil {
				return errors.WithStack(err)
			}
		}

		session.Unchanged++
		return w.recordEntry(ctx, session, file, models.ScanActionUnchanged)
	}

	if !contentMatchesExtension(file.Filepath, jlog) {
		return nil
	}

	hash, err := fileutils.HashFile(file.Filepath)
	if err != nil {
		return errors.WithStack(err)
	}

	file.FilesizeBytes = size
	file.ModifiedAt = modTime
	file.Sha256 = &hash
	file.Status = models.FileStatusActive

	err = w.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{
		Columns: []string{"filesize_bytes", "modified_at", "sha256", "status"},
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Changed content may carry changed metadata. Existing fields win; only
	// gaps are filled.
	w.enrichItem(ctx, file, jlog)

	session.Updated++
	return w.recordEntry(ctx, session, file, models.ScanActionUpdated)
}

// scanNewPath handles a path with no record: it's either content that moved,
// a duplicate of known content, or something entirely new.
func (w *Worker) scanNewPath(ctx context.Context, session *models.ScanSession, path string, size int64, modTime time.Time, jlog *joblogs.JobLogger) error {
	if !contentMatchesExtension(path, jlog) {
		return nil
	}

	hash, err := fileutils.HashFile(path)
	if err != nil {
		return errors.WithStack(err)
	}

	match, err := w.catalogService.RetrieveFile(ctx, catalog.RetrieveFileOptions{
		Sha256:      &hash,
		ExcludePath: &path,
		Statuses:    []string{models.FileStatusActive, models.FileStatusMissing},
	})
	if err != nil && !errors.Is(err, errcodes.NotFound("File")) {
		return errors.WithStack(err)
	}

	if match != nil {
		if _, serr := os.Stat(match.Filepath); serr == nil {
			return w.recordDuplicate(ctx, session, match, path, size, modTime, hash)
		}
		return w.recordMove(ctx, session, match, path, size, modTime)
	}

	return w.recordAddition(ctx, session, path, size, modTime, hash, jlog)
}

// recordDuplicate registers a second file carrying content we already track
// at a path that still exists. The new record joins the same item and gets a
// duplicate issue so it shows up for resolution.
func (w *Worker) recordDuplicate(ctx context.Context, session *models.ScanSession, original *models.File, path string, size int64, modTime time.Time, hash string) error {
	file := &models.File{
		ItemID:        original.ItemID,
		Filepath:      path,
		Filename:      filepath.Base(path),
		Extension:     strings.ToLower(filepath.Ext(path)),
		FilesizeBytes: size,
		ModifiedAt:    modTime,
		Sha256:        &hash,
		Status:        models.FileStatusActive,
	}
	err := w.catalogService.CreateFile(ctx, file)
	if err != nil {
		return errors.WithStack(err)
	}

	err = w.catalogService.CreateIssue(ctx, &models.Issue{
		ItemID:  original.ItemID,
		FileID:  &file.ID,
		Type:    models.IssueTypeDuplicate,
		Message: "same content as " + original.Filepath,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	session.Added++
	return w.recordEntry(ctx, session, file, models.ScanActionAdded)
}

// recordMove points an existing record at the new location of its content.
func (w *Worker) recordMove(ctx context.Context, session *models.ScanSession, file *models.File, path string, size int64, modTime time.Time) error {
	file.Filepath = path
	file.Filename = filepath.Base(path)
	file.Extension = strings.ToLower(filepath.Ext(path))
	file.FilesizeBytes = size
	file.ModifiedAt = modTime
	file.Status = models.FileStatusActive

	err := w.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{
		Columns: []string{"filepath", "filename", "extension", "filesize_bytes", "modified_at", "status"},
	})
	if err != nil {
		return errors.WithStack(err)
	}

	session.Moved++
	return w.recordEntry(ctx, session, file, models.ScanActionMoved)
}

func (w *Worker) recordAddition(ctx context.Context, session *models.ScanSession, path string, size int64, modTime time.Time, hash string, jlog *joblogs.JobLogger) error {
	title := strings.ReplaceAll(fileutils.FilenameStem(filepath.Base(path)), "_", " ")

	item := &models.Item{
		Title: pointerutil.String(title),
	}
	err := w.catalogService.CreateItem(ctx, item)
	if err != nil {
		return errors.WithStack(err)
	}

	file := &models.File{
		ItemID:        item.ID,
		Filepath:      path,
		Filename:      filepath.Base(path),
		Extension:     strings.ToLower(filepath.Ext(path)),
		FilesizeBytes: size,
		ModifiedAt:    modTime,
		Sha256:        &hash,
		Status:        models.FileStatusActive,
	}
	err = w.catalogService.CreateFile(ctx, file)
	if err != nil {
		return errors.WithStack(err)
	}

	w.enrichItem(ctx, file, jlog)

	session.Added++
	return w.recordEntry(ctx, session, file, models.ScanActionAdded)
}

// sweepMissing marks records under the root that the walk never visited.
func (w *Worker) sweepMissing(ctx context.Context, session *models.ScanSession, root string, seen map[string]bool, jlog *joblogs.JobLogger) error {
	prefix := strings.TrimSuffix(root, string(os.PathSeparator)) + string(os.PathSeparator)

	files, err := w.catalogService.ListFiles(ctx, catalog.ListFilesOptions{
		Statuses:   []string{models.FileStatusActive},
		PathPrefix: &prefix,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	for _, file := range files {
		if seen[file.Filepath] {
			continue
		}

		jlog.Warn("file is gone from disk", logger.Data{"path": file.Filepath})

		file.Status = models.FileStatusMissing
		err := w.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{Columns: []string{"status"}})
		if err != nil {
			return errors.WithStack(err)
		}

		session.Missing++
		if err := w.recordEntry(ctx, session, file, models.ScanActionMissing); err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

// recordEntry writes the session audit row for a file. The size, mtime, and
// hash snapshot what the record holds at the time of the action.
func (w *Worker) recordEntry(ctx context.Context, session *models.ScanSession, file *models.File, action string) error {
	size := file.FilesizeBytes
	modifiedAt := file.ModifiedAt

	return errors.WithStack(w.scanService.CreateEntry(ctx, &models.ScanEntry{
		SessionID:     session.ID,
		FileID:        file.ID,
		Path:          file.Filepath,
		Action:        action,
		FilesizeBytes: &size,
		ModifiedAt:    &modifiedAt,
		Sha256:        file.Sha256,
	}))
}
