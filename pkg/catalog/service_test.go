package catalog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/migrations"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
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

func createTestFile(t *testing.T, svc *Service, path, hash string) *models.File {
	t.Helper()
	ctx := context.Background()

	item := &models.Item{
		Title:   pointerutil.String("Test Item"),
		Authors: []*models.Author{{Name: "Test Author"}},
	}
	require.NoError(t, svc.CreateItem(ctx, item))

	file := &models.File{
		ItemID:        item.ID,
		Filepath:      path,
		Filename:      "test.epub",
		Extension:     models.FileExtensionEPUB,
		FilesizeBytes: 1024,
		ModifiedAt:    time.Now().Truncate(time.Second),
		Sha256:        &hash,
		HashAlgo:      models.HashAlgoSHA256,
		Status:        models.FileStatusActive,
	}
	require.NoError(t, svc.CreateFile(ctx, file))

	return file
}

func TestCreateItemWithAuthorsAndIdentifiers(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	item := &models.Item{
		Title: pointerutil.String("The Left Hand of Darkness"),
		Authors: []*models.Author{
			{Name: "Ursula K. Le Guin"},
		},
		Identifiers: []*models.Identifier{
			{Type: models.IdentifierTypeISBN13, Value: "9780441478125"},
		},
	}
	err := svc.CreateItem(ctx, item)
	require.NoError(t, err)
	require.NotZero(t, item.ID)

	retrieved, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &item.ID})
	require.NoError(t, err)
	require.Len(t, retrieved.Authors, 1)
	assert.Equal(t, "Ursula K. Le Guin", retrieved.Authors[0].Name)
	require.Len(t, retrieved.Identifiers, 1)
	assert.Equal(t, "9780441478125", retrieved.Identifiers[0].Value)
}

func TestRetrieveFileByFilepath(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	file := createTestFile(t, svc, "/library/test.epub", "abc123")

	found, err := svc.RetrieveFile(ctx, RetrieveFileOptions{
		Filepath: pointerutil.String("/library/test.epub"),
		Statuses: []string{models.FileStatusActive, models.FileStatusMissing},
	})
	require.NoError(t, err)
	assert.Equal(t, file.ID, found.ID)

	_, err = svc.RetrieveFile(ctx, RetrieveFileOptions{
		Filepath: pointerutil.String("/library/other.epub"),
	})
	require.ErrorIs(t, err, errcodes.NotFound("File"))
}

func TestRetrieveFileByHashExcludesPath(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	createTestFile(t, svc, "/library/a.epub", "samehash")
	other := createTestFile(t, svc, "/library/b.epub", "samehash")

	found, err := svc.RetrieveFile(ctx, RetrieveFileOptions{
		Sha256:      pointerutil.String("samehash"),
		ExcludePath: pointerutil.String("/library/a.epub"),
		Statuses:    []string{models.FileStatusActive},
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, found.ID)
}

func TestListFilesByPathPrefixAndStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	inRoot := createTestFile(t, svc, "/library/in.epub", "h1")
	createTestFile(t, svc, "/elsewhere/out.epub", "h2")

	missing := createTestFile(t, svc, "/library/gone.epub", "h3")
	missing.Status = models.FileStatusMissing
	require.NoError(t, svc.UpdateFile(ctx, missing, UpdateFileOptions{Columns: []string{"status"}}))

	files, err := svc.ListFiles(ctx, ListFilesOptions{
		Statuses:   []string{models.FileStatusActive},
		PathPrefix: pointerutil.String("/library/"),
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, inRoot.ID, files[0].ID)
}

func TestResolveIssues(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	file := createTestFile(t, svc, "/library/dup.epub", "h4")

	issue := &models.Issue{
		ItemID:  file.ItemID,
		FileID:  &file.ID,
		Type:    models.IssueTypeDuplicate,
		Message: "duplicate of /library/orig.epub",
	}
	require.NoError(t, svc.CreateIssue(ctx, issue))

	open, err := svc.ListIssues(ctx, ListIssuesOptions{FileID: &file.ID, Unresolved: true})
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, svc.ResolveIssues(ctx, file.ID, models.IssueTypeDuplicate))

	open, err = svc.ListIssues(ctx, ListIssuesOptions{FileID: &file.ID, Unresolved: true})
	require.NoError(t, err)
	assert.Empty(t, open)
}
