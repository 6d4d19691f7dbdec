package changes

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/foliobooks/folio/internal/testgen"
	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/epub"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type recordingReporter struct {
	total   int
	items   []ItemProgress
	summary *Summary
}

func (r *recordingReporter) Started(total int)   { r.total = total }
func (r *recordingReporter) Item(p ItemProgress) { r.items = append(r.items, p) }
func (r *recordingReporter) Completed(s Summary) { r.summary = &s }

func newTestApplier(db *bun.DB) (*Applier, *Service) {
	changeService := NewService(db)
	return NewApplier(changeService, catalog.NewService(db)), changeService
}

func TestApplyRenameMovesFile(t *testing.T) {
	db := newTestDB(t)
	applier, svc := newTestApplier(db)
	ctx := context.Background()

	dir := t.TempDir()
	src := filepath.Join(dir, "raw_title.epub")
	dst := filepath.Join(dir, "Author", "Title (2020).epub")
	writeTestFile(t, src)

	file := createTestFile(t, db, src)
	change := &models.PendingChange{
		FileID:   file.ID,
		Type:     models.ChangeTypeRename,
		FromPath: &src,
		ToPath:   &dst,
	}
	require.NoError(t, svc.CreateChange(ctx, change))

	reporter := &recordingReporter{}
	summary, err := applier.Apply(ctx, nil, reporter)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Processed: 1}, summary)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dst)
	require.NoError(t, err)

	updated, err := catalog.NewService(db).RetrieveFile(ctx, catalog.RetrieveFileOptions{ID: &file.ID})
	require.NoError(t, err)
	assert.Equal(t, dst, updated.Filepath)
	assert.Equal(t, "Title (2020).epub", updated.Filename)
	assert.Equal(t, ".epub", updated.Extension)

	applied, err := svc.RetrieveChange(ctx, RetrieveChangeOptions{ID: &change.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeStatusApplied, applied.Status)
	assert.NotNil(t, applied.AppliedAt)

	// The reporter hears about the change twice: once when work starts on it
	// and once when it lands.
	assert.Equal(t, 1, reporter.total)
	require.Len(t, reporter.items, 2)
	assert.Equal(t, ProgressStatusProcessing, reporter.items[0].Status)
	assert.Equal(t, change.ID, reporter.items[0].ChangeID)
	assert.Equal(t, ProgressStatusApplied, reporter.items[1].Status)
	assert.Equal(t, change.ID, reporter.items[1].ChangeID)
	require.NotNil(t, reporter.summary)
}

func TestApplyRenameHonorsStagedFromPath(t *testing.T) {
	db := newTestDB(t)
	applier, svc := newTestApplier(db)
	ctx := context.Background()

	// The bytes were moved by hand after the record was last scanned, and the
	// change was staged against the real location.
	dir := t.TempDir()
	recordedSrc := filepath.Join(dir, "old-spot.epub")
	actualSrc := filepath.Join(dir, "hand-moved.epub")
	dst := filepath.Join(dir, "sorted", "final.epub")
	writeTestFile(t, actualSrc)

	file := createTestFile(t, db, recordedSrc)
	change := &models.PendingChange{
		FileID:   file.ID,
		Type:     models.ChangeTypeRename,
		FromPath: &actualSrc,
		ToPath:   &dst,
	}
	require.NoError(t, svc.CreateChange(ctx, change))

	summary, err := applier.Apply(ctx, nil, NopReporter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Processed: 1}, summary)

	_, err = os.Stat(actualSrc)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dst)
	require.NoError(t, err)

	updated, err := catalog.NewService(db).RetrieveFile(ctx, catalog.RetrieveFileOptions{ID: &file.ID})
	require.NoError(t, err)
	assert.Equal(t, dst, updated.Filepath)
}

func TestApplyDeleteIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	applier, svc := newTestApplier(db)
	catalogService := catalog.NewService(db)
	ctx := context.Background()

	// The file was already removed from disk by hand. The delete still
	// succeeds and retires the record.
	path := filepath.Join(t.TempDir(), "gone.epub")
	file := createTestFile(t, db, path)

	require.NoError(t, catalogService.CreateIssue(ctx, &models.Issue{
		ItemID:  file.ItemID,
		FileID:  &file.ID,
		Type:    models.IssueTypeDuplicate,
		Message: "same content as another file",
	}))

	change := &models.PendingChange{FileID: file.ID, Type: models.ChangeTypeDelete}
	require.NoError(t, svc.CreateChange(ctx, change))

	summary, err := applier.Apply(ctx, nil, NopReporter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Processed: 1}, summary)

	updated, err := catalogService.RetrieveFile(ctx, catalog.RetrieveFileOptions{ID: &file.ID})
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusInactive, updated.Status)

	issues, err := catalogService.ListIssues(ctx, catalog.ListIssuesOptions{
		FileID:     &file.ID,
		Unresolved: true,
	})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestApplyContinuesPastFailures(t *testing.T) {
	db := newTestDB(t)
	applier, svc := newTestApplier(db)
	ctx := context.Background()

	dir := t.TempDir()

	okSrc := filepath.Join(dir, "ok.epub")
	okDst := filepath.Join(dir, "sorted", "ok.epub")
	writeTestFile(t, okSrc)
	okFile := createTestFile(t, db, okSrc)

	// This one has no file on disk, so the move fails.
	badSrc := filepath.Join(dir, "missing.epub")
	badDst := filepath.Join(dir, "sorted", "missing.epub")
	badFile := createTestFile(t, db, badSrc)

	delFile := createTestFile(t, db, filepath.Join(dir, "delete-me.epub"))

	changeOK := &models.PendingChange{FileID: okFile.ID, Type: models.ChangeTypeRename, ToPath: &okDst}
	changeBad := &models.PendingChange{FileID: badFile.ID, Type: models.ChangeTypeRename, ToPath: &badDst}
	changeDel := &models.PendingChange{FileID: delFile.ID, Type: models.ChangeTypeDelete}
	for _, change := range []*models.PendingChange{changeOK, changeBad, changeDel} {
		require.NoError(t, svc.CreateChange(ctx, change))
	}

	reporter := &recordingReporter{}
	summary, err := applier.Apply(ctx, nil, reporter)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Processed: 2, Errors: 1}, summary)

	failed, err := svc.RetrieveChange(ctx, RetrieveChangeOptions{ID: &changeBad.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeStatusError, failed.Status)
	require.NotNil(t, failed.Error)
	assert.NotEmpty(t, *failed.Error)

	succeeded, err := svc.RetrieveChange(ctx, RetrieveChangeOptions{ID: &changeDel.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeStatusApplied, succeeded.Status)

	// Each change emits a processing event and then its terminal status.
	require.Len(t, reporter.items, 6)
	statuses := make([]string, 0, len(reporter.items))
	for _, item := range reporter.items {
		statuses = append(statuses, item.Status)
	}
	assert.Equal(t, []string{
		ProgressStatusProcessing, ProgressStatusApplied,
		ProgressStatusProcessing, ProgressStatusError,
		ProgressStatusProcessing, ProgressStatusApplied,
	}, statuses)
}

func TestApplySkipsNonPendingIDs(t *testing.T) {
	db := newTestDB(t)
	applier, svc := newTestApplier(db)
	ctx := context.Background()

	dir := t.TempDir()
	src := filepath.Join(dir, "a.epub")
	dst := filepath.Join(dir, "b.epub")
	writeTestFile(t, src)
	file := createTestFile(t, db, src)

	change := &models.PendingChange{FileID: file.ID, Type: models.ChangeTypeRename, ToPath: &dst}
	require.NoError(t, svc.CreateChange(ctx, change))

	summary, err := applier.Apply(ctx, []int{change.ID}, NopReporter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Processed: 1}, summary)

	// Applying the same id again finds nothing pending.
	summary, err = applier.Apply(ctx, []int{change.ID}, NopReporter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Skipped: 1}, summary)
}

func TestApplyMetadataEditRejectsNonEPUB(t *testing.T) {
	db := newTestDB(t)
	applier, svc := newTestApplier(db)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "paper.pdf")
	writeTestFile(t, path)
	file := createTestFile(t, db, path)

	change := &models.PendingChange{
		FileID:        file.ID,
		Type:          models.ChangeTypeMetadataEdit,
		PayloadParsed: &models.MetadataEditPayload{Title: pointerutil.String("New Title")},
	}
	require.NoError(t, svc.CreateChange(ctx, change))

	summary, err := applier.Apply(ctx, nil, NopReporter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Errors: 1}, summary)

	failed, err := svc.RetrieveChange(ctx, RetrieveChangeOptions{ID: &change.ID})
	require.NoError(t, err)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "not supported for pdf")
}

func TestApplyMetadataEditRewritesEPUB(t *testing.T) {
	db := newTestDB(t)
	applier, svc := newTestApplier(db)
	ctx := context.Background()

	dir := t.TempDir()
	path := testgen.GenerateEPUB(t, dir, "book.epub", testgen.EPUBOptions{
		Title:   "Original Title",
		Authors: []string{"Original Author"},
	})
	file := createTestFile(t, db, path)

	change := &models.PendingChange{
		FileID: file.ID,
		Type:   models.ChangeTypeMetadataEdit,
		PayloadParsed: &models.MetadataEditPayload{
			Title:  pointerutil.String("Edited Title"),
			Author: pointerutil.String("Edited Author"),
		},
	}
	require.NoError(t, svc.CreateChange(ctx, change))

	summary, err := applier.Apply(ctx, nil, NopReporter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Processed: 1}, summary)

	meta, err := epub.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "Edited Title", meta.Title)
	require.Len(t, meta.Authors, 1)
	assert.Equal(t, "Edited Author", meta.Authors[0])

	// The record was refreshed so the next scan sees the file as unchanged.
	updated, err := catalog.NewService(db).RetrieveFile(ctx, catalog.RetrieveFileOptions{ID: &file.ID})
	require.NoError(t, err)
	require.NotNil(t, updated.Sha256)
	assert.Len(t, *updated.Sha256, 64)
}
