package organizer

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/changes"
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

type testBook struct {
	author string
	title  string
	year   *int
	isbn13 string
	path   string
	status string
}

func createTestBook(t *testing.T, db *bun.DB, book testBook) *models.File {
	t.Helper()
	ctx := context.Background()

	catalogService := catalog.NewService(db)

	item := &models.Item{
		Title:         pointerutil.String(book.title),
		PublishedYear: book.year,
	}
	if book.author != "" {
		item.Authors = []*models.Author{{Name: book.author}}
	}
	if book.isbn13 != "" {
		item.Identifiers = []*models.Identifier{{
			Type:  models.IdentifierTypeISBN13,
			Value: book.isbn13,
		}}
	}
	require.NoError(t, catalogService.CreateItem(ctx, item))

	status := book.status
	if status == "" {
		status = models.FileStatusActive
	}

	file := &models.File{
		ItemID:     item.ID,
		Filepath:   book.path,
		Filename:   filepath.Base(book.path),
		Extension:  filepath.Ext(book.path),
		ModifiedAt: time.Now(),
		Status:     status,
	}
	require.NoError(t, catalogService.CreateFile(ctx, file))

	return file
}

func TestPlanComputesTargets(t *testing.T) {
	db := newTestDB(t)
	planner := NewPlanner(catalog.NewService(db))
	ctx := context.Background()

	root := t.TempDir()
	year := 1843
	file := createTestBook(t, db, testBook{
		author: "Ada Lovelace",
		title:  "Notes",
		year:   &year,
		isbn13: "9781111111111",
		path:   "/downloads/notes.epub",
	})

	plan, err := planner.Plan(ctx, PlanOptions{
		Mode:        models.OrganizeModeMove,
		LibraryRoot: root,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)

	entry := plan.Entries[0]
	assert.Equal(t, file.ID, entry.FileID)
	assert.Equal(t, "/downloads/notes.epub", entry.SourcePath)
	assert.Equal(t, filepath.Join(root, "Ada Lovelace", "Notes (1843) [9781111111111].epub"), entry.TargetPath)
	assert.Equal(t, ActionMove, entry.Action)
}

func TestPlanInactiveFilesExcluded(t *testing.T) {
	db := newTestDB(t)
	planner := NewPlanner(catalog.NewService(db))
	ctx := context.Background()

	createTestBook(t, db, testBook{
		title:  "Retired",
		path:   "/downloads/retired.epub",
		status: models.FileStatusInactive,
	})

	plan, err := planner.Plan(ctx, PlanOptions{
		Mode:        models.OrganizeModeMove,
		LibraryRoot: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Entries)
}

func TestPlanSkipsAlreadyOrganized(t *testing.T) {
	db := newTestDB(t)
	planner := NewPlanner(catalog.NewService(db))
	ctx := context.Background()

	root := t.TempDir()
	year := 1974
	organized := filepath.Join(root, "Ursula K. Le Guin", "The Dispossessed (1974).epub")
	createTestBook(t, db, testBook{
		author: "Ursula K. Le Guin",
		title:  "The Dispossessed",
		year:   &year,
		path:   organized,
	})

	// A file a previous collision pass renamed is also left alone.
	suffixed := filepath.Join(root, "Ursula K. Le Guin", "The Dispossessed (1974) [2].epub")
	createTestBook(t, db, testBook{
		author: "Ursula K. Le Guin",
		title:  "The Dispossessed",
		year:   &year,
		path:   suffixed,
	})

	plan, err := planner.Plan(ctx, PlanOptions{
		Mode:        models.OrganizeModeMove,
		LibraryRoot: root,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)
	assert.Equal(t, ActionSkip, plan.Entries[0].Action)
	assert.Equal(t, ActionSkip, plan.Entries[1].Action)
}

func TestPlanReferenceModeSkipsEverything(t *testing.T) {
	db := newTestDB(t)
	planner := NewPlanner(catalog.NewService(db))
	ctx := context.Background()

	createTestBook(t, db, testBook{title: "One", path: "/downloads/one.epub"})
	createTestBook(t, db, testBook{title: "Two", path: "/downloads/two.epub"})

	plan, err := planner.Plan(ctx, PlanOptions{
		Mode:        models.OrganizeModeReference,
		LibraryRoot: t.TempDir(),
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)
	for _, entry := range plan.Entries {
		assert.Equal(t, ActionSkip, entry.Action)
	}
}

func TestPlanResolvesCollisions(t *testing.T) {
	db := newTestDB(t)
	planner := NewPlanner(catalog.NewService(db))
	ctx := context.Background()

	root := t.TempDir()

	// Something unrelated already sits at the computed target.
	occupied := filepath.Join(root, "Same Author", "Same Title.epub")
	require.NoError(t, os.MkdirAll(filepath.Dir(occupied), 0o755))
	require.NoError(t, os.WriteFile(occupied, []byte("squatter"), 0o644))

	// Two records render to the same target as well.
	createTestBook(t, db, testBook{
		author: "Same Author",
		title:  "Same Title",
		path:   "/downloads/first.epub",
	})
	createTestBook(t, db, testBook{
		author: "Same Author",
		title:  "Same Title",
		path:   "/downloads/second.epub",
	})

	plan, err := planner.Plan(ctx, PlanOptions{
		Mode:        models.OrganizeModeCopy,
		LibraryRoot: root,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)

	assert.Equal(t, filepath.Join(root, "Same Author", "Same Title [1].epub"), plan.Entries[0].TargetPath)
	assert.Equal(t, filepath.Join(root, "Same Author", "Same Title [2].epub"), plan.Entries[1].TargetPath)
	assert.Equal(t, ActionCopy, plan.Entries[0].Action)
	assert.Equal(t, ActionCopy, plan.Entries[1].Action)
}

func TestPlanNeverMutates(t *testing.T) {
	db := newTestDB(t)
	planner := NewPlanner(catalog.NewService(db))
	ctx := context.Background()

	root := t.TempDir()
	createTestBook(t, db, testBook{
		author: "Some Author",
		title:  "Some Title",
		path:   "/downloads/some.epub",
	})

	_, err := planner.Plan(ctx, PlanOptions{
		Mode:        models.OrganizeModeMove,
		LibraryRoot: root,
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateChangesFromPlan(t *testing.T) {
	db := newTestDB(t)
	changeService := changes.NewService(db)
	ctx := context.Background()

	file := createTestBook(t, db, testBook{title: "Movable", path: "/downloads/movable.epub"})

	plan := &Plan{
		Mode: models.OrganizeModeMove,
		Entries: []*Entry{
			{FileID: file.ID, SourcePath: "/downloads/movable.epub", TargetPath: "/library/Movable.epub", Action: ActionMove},
			{FileID: file.ID, SourcePath: "/downloads/movable.epub", TargetPath: "/downloads/movable.epub", Action: ActionSkip},
		},
	}

	created, err := CreateChangesFromPlan(ctx, changeService, plan)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	staged, err := changeService.ListChanges(ctx, changes.ListChangesOptions{
		Statuses: []string{models.ChangeStatusPending},
	})
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, models.ChangeTypeRename, staged[0].Type)
	require.NotNil(t, staged[0].FromPath)
	require.NotNil(t, staged[0].ToPath)
	assert.Equal(t, "/library/Movable.epub", *staged[0].ToPath)
}
