package worker

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/foliobooks/folio/internal/testgen"
	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/migrations"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/scans"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestWorker(t *testing.T) (*Worker, *bun.DB, context.Context) {
	t.Helper()

	db := newTestDB(t)
	w := New(config.NewForTest(), db)
	ctx := logger.New().WithContext(context.Background())

	return w, db, ctx
}

func runScanJob(t *testing.T, w *Worker, ctx context.Context, root string) *models.ScanSession {
	t.Helper()

	job := &models.Job{
		Type:       models.JobTypeScan,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobScanData{Root: root},
	}
	require.NoError(t, w.jobService.CreateJob(context.Background(), job))
	require.NoError(t, w.ProcessScanJob(ctx, job))

	sessions, err := w.scanService.ListSessions(context.Background(), scans.ListSessionsOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, sessions)

	return sessions[0]
}

func TestProcessScanJobAddsNewFiles(t *testing.T) {
	w, db, ctx := newTestWorker(t)

	root := t.TempDir()
	testgen.GenerateEPUB(t, root, "dune_messiah.epub", testgen.EPUBOptions{
		Title:   "Dune Messiah",
		Authors: []string{"Frank Herbert"},
	})
	testgen.WriteFile(t, root, "notes.txt", []byte("not a book"))

	session := runScanJob(t, w, ctx, root)
	assert.Equal(t, models.ScanSessionStatusSuccess, session.Status)
	assert.Equal(t, 1, session.Added)

	catalogService := catalog.NewService(db)

	files, err := catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{WithItem: true})
	require.NoError(t, err)
	require.Len(t, files, 1)

	file := files[0]
	assert.Equal(t, models.FileStatusActive, file.Status)
	require.NotNil(t, file.Sha256)
	assert.Len(t, *file.Sha256, 64)

	require.NotNil(t, file.Item)
	require.NotNil(t, file.Item.Title)
	assert.Equal(t, "dune messiah", *file.Item.Title)

	// Embedded metadata fills what the filename seed left open.
	item, err := catalogService.RetrieveItem(context.Background(), catalog.RetrieveItemOptions{ID: &file.ItemID})
	require.NoError(t, err)
	require.Len(t, item.Authors, 1)
	assert.Equal(t, "Frank Herbert", item.Authors[0].Name)

	// The audit entry snapshots the size, mtime, and hash of the addition.
	entries, err := w.scanService.ListEntries(context.Background(), scans.ListEntriesOptions{SessionID: session.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, models.ScanActionAdded, entry.Action)
	assert.Equal(t, file.Filepath, entry.Path)
	require.NotNil(t, entry.FilesizeBytes)
	assert.Equal(t, file.FilesizeBytes, *entry.FilesizeBytes)
	require.NotNil(t, entry.ModifiedAt)
	assert.Equal(t, file.ModifiedAt.Unix(), entry.ModifiedAt.Unix())
	require.NotNil(t, entry.Sha256)
	assert.Equal(t, *file.Sha256, *entry.Sha256)
}

func TestProcessScanJobUnchangedFastPath(t *testing.T) {
	w, db, ctx := newTestWorker(t)

	root := t.TempDir()
	path := testgen.GenerateEPUB(t, root, "static.epub", testgen.EPUBOptions{Title: "Static"})

	first := runScanJob(t, w, ctx, root)
	assert.Equal(t, 1, first.Added)

	catalogService := catalog.NewService(db)
	files, err := catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	originalHash := *files[0].Sha256

	// Swap the bytes but keep size and mtime. The fast path trusts the stat
	// fields, so the stored hash must not change.
	stats, err := os.Stat(path)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content[len(content)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, content, 0o644))
	require.NoError(t, os.Chtimes(path, stats.ModTime(), stats.ModTime()))

	second := runScanJob(t, w, ctx, root)
	assert.Equal(t, 1, second.Unchanged)
	assert.Zero(t, second.Added)
	assert.Zero(t, second.Updated)

	files, err = catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, originalHash, *files[0].Sha256)
}

func TestProcessScanJobDetectsMove(t *testing.T) {
	w, db, ctx := newTestWorker(t)

	root := t.TempDir()
	path := testgen.GenerateEPUB(t, root, "wanderer.epub", testgen.EPUBOptions{Title: "Wanderer"})

	runScanJob(t, w, ctx, root)

	catalogService := catalog.NewService(db)
	files, err := catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	originalID := files[0].ID

	newPath := filepath.Join(root, "sorted", "wanderer.epub")
	require.NoError(t, os.MkdirAll(filepath.Dir(newPath), 0o755))
	require.NoError(t, os.Rename(path, newPath))

	session := runScanJob(t, w, ctx, root)
	assert.Equal(t, 1, session.Moved)
	assert.Zero(t, session.Added)
	assert.Zero(t, session.Missing)

	files, err = catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, originalID, files[0].ID)
	assert.Equal(t, newPath, files[0].Filepath)
	assert.Equal(t, models.FileStatusActive, files[0].Status)
}

func TestProcessScanJobDetectsDuplicate(t *testing.T) {
	w, db, ctx := newTestWorker(t)

	root := t.TempDir()
	path := testgen.GenerateEPUB(t, root, "original.epub", testgen.EPUBOptions{Title: "Original"})

	runScanJob(t, w, ctx, root)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "copy.epub"), content, 0o644))

	session := runScanJob(t, w, ctx, root)
	assert.Equal(t, 1, session.Added)
	assert.Equal(t, 1, session.Unchanged)

	catalogService := catalog.NewService(db)
	files, err := catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{})
	require.NoError(t, err)
	require.Len(t, files, 2)

	// Both records share one item.
	assert.Equal(t, files[0].ItemID, files[1].ItemID)

	issues, err := catalogService.ListIssues(context.Background(), catalog.ListIssuesOptions{
		Types:      []string{models.IssueTypeDuplicate},
		Unresolved: true,
	})
	require.NoError(t, err)
	require.Len(t, issues, 1)
}

func TestProcessScanJobIgnoresMismatchedContent(t *testing.T) {
	w, db, ctx := newTestWorker(t)

	root := t.TempDir()
	testgen.GenerateEPUB(t, root, "real.epub", testgen.EPUBOptions{Title: "Real"})
	fakePath := filepath.Join(root, "fake.epub")
	testgen.WriteFile(t, root, "fake.epub", []byte("just some text wearing an epub extension"))

	session := runScanJob(t, w, ctx, root)
	assert.Equal(t, 1, session.Added)

	catalogService := catalog.NewService(db)
	files, err := catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.NotEqual(t, fakePath, files[0].Filepath)
}

func TestProcessScanJobKeepsTrackedFileWithMismatchedContent(t *testing.T) {
	w, db, ctx := newTestWorker(t)

	root := t.TempDir()
	path := testgen.GenerateEPUB(t, root, "book.epub", testgen.EPUBOptions{Title: "Book"})

	runScanJob(t, w, ctx, root)

	// Replace the tracked bytes with content that no longer sniffs as an
	// EPUB. The record must neither update nor get swept to missing, since
	// the path is still present on disk.
	require.NoError(t, os.WriteFile(path, []byte("corrupted beyond recognition"), 0o644))

	session := runScanJob(t, w, ctx, root)
	assert.Zero(t, session.Updated)
	assert.Zero(t, session.Missing)

	catalogService := catalog.NewService(db)
	files, err := catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, models.FileStatusActive, files[0].Status)
}

func TestProcessScanJobMarksMissing(t *testing.T) {
	w, db, ctx := newTestWorker(t)

	root := t.TempDir()
	path := testgen.GenerateEPUB(t, root, "fleeting.epub", testgen.EPUBOptions{Title: "Fleeting"})

	runScanJob(t, w, ctx, root)
	require.NoError(t, os.Remove(path))

	session := runScanJob(t, w, ctx, root)
	assert.Equal(t, 1, session.Missing)

	catalogService := catalog.NewService(db)
	files, err := catalogService.ListFiles(context.Background(), catalog.ListFilesOptions{
		Statuses: []string{models.FileStatusMissing},
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0].Filepath)
}
