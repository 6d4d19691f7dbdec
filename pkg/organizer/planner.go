package organizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/changes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
)

const (
	ActionSkip = "skip"
	ActionCopy = "copy"
	ActionMove = "move"
)

// Entry is one planned outcome for a single active file.
type Entry struct {
	FileID     int    `json:"file_id"`
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path"`
	Action     string `json:"action"`
}

// Plan is the full result of a planning pass. It's transient: recomputed on
// every request and never persisted.
type Plan struct {
	Mode        string   `json:"mode"`
	LibraryRoot string   `json:"library_root"`
	Template    string   `json:"template"`
	Entries     []*Entry `json:"entries"`
}

type PlanOptions struct {
	Mode        string
	LibraryRoot string
	Template    string
}

type Planner struct {
	catalogService *catalog.Service
}

func NewPlanner(catalogService *catalog.Service) *Planner {
	return &Planner{catalogService}
}

// Plan computes a desired destination for every active file. It reads the
// filesystem to spot collisions but never writes to it or to the store, so
// it's safe to call repeatedly and throw the result away.
func (p *Planner) Plan(ctx context.Context, opts PlanOptions) (*Plan, error) {
	if opts.Template == "" {
		opts.Template = models.DefaultOrganizeTemplate
	}

	files, err := p.catalogService.ListFiles(ctx, catalog.ListFilesOptions{
		Statuses: []string{models.FileStatusActive},
		WithItem: true,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	plan := &Plan{
		Mode:        opts.Mode,
		LibraryRoot: opts.LibraryRoot,
		Template:    opts.Template,
		Entries:     make([]*Entry, 0, len(files)),
	}

	// Targets claimed earlier in this pass count as taken even though
	// nothing exists on disk yet.
	claimed := map[string]bool{}

	for _, file := range files {
		entry := &Entry{
			FileID:     file.ID,
			SourcePath: file.Filepath,
		}

		target := filepath.Join(opts.LibraryRoot, renderFor(opts.Template, file))

		switch {
		case opts.Mode == models.OrganizeModeReference:
			entry.TargetPath = target
			entry.Action = ActionSkip
		case pathsEquivalent(file.Filepath, target):
			entry.TargetPath = target
			entry.Action = ActionSkip
		default:
			entry.TargetPath = resolveCollision(target, claimed)
			claimed[entry.TargetPath] = true
			if opts.Mode == models.OrganizeModeCopy {
				entry.Action = ActionCopy
			} else {
				entry.Action = ActionMove
			}
		}

		plan.Entries = append(plan.Entries, entry)
	}

	return plan, nil
}

func renderFor(template string, file *models.File) string {
	fields := TemplateFields{
		Ext: file.Extension,
	}
	if item := file.Item; item != nil {
		fields.Author = item.PrimaryAuthor()
		if item.Title != nil {
			fields.Title = *item.Title
		}
		if item.PublishedYear != nil {
			fields.Year = strconv.Itoa(*item.PublishedYear)
		}
		fields.ISBN13 = item.IdentifierValue(models.IdentifierTypeISBN13)
	}
	if fields.Title == "" {
		fields.Title = fileutilStem(file.Filename)
	}

	return RenderTemplate(template, fields)
}

func fileutilStem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// bracketSuffixRE matches a stem that a previous collision-resolution pass
// renamed, e.g. "Title (2020) [2]".
var bracketSuffixRE = regexp.MustCompile(`^(.*)\s\[\d+\]$`)

// pathsEquivalent reports whether a file is already where the plan would put
// it. It's deliberately tolerant: exact match, canonicalized match, or same
// directory with the same stem modulo a trailing collision suffix. The
// heuristic can misfire on names that contain a literal bracket pattern,
// which is why it lives behind this one predicate.
func pathsEquivalent(source, target string) bool {
	if source == target {
		return true
	}
	if filepath.Clean(source) == filepath.Clean(target) {
		return true
	}

	sourceDir, sourceName := filepath.Split(filepath.Clean(source))
	targetDir, targetName := filepath.Split(filepath.Clean(target))
	if sourceDir != targetDir {
		return false
	}
	if filepath.Ext(sourceName) != filepath.Ext(targetName) {
		return false
	}

	sourceStem := fileutilStem(sourceName)
	if m := bracketSuffixRE.FindStringSubmatch(sourceStem); m != nil {
		sourceStem = m[1]
	}

	return sourceStem == fileutilStem(targetName)
}

// resolveCollision appends " [n]" to the filename stem until the path is
// free, both on disk and among targets already planned in this pass.
func resolveCollision(target string, claimed map[string]bool) string {
	free := func(path string) bool {
		if claimed[path] {
			return false
		}
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}

	if free(target) {
		return target
	}

	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s [%d]%s", stem, n, ext)
		if free(candidate) {
			return candidate
		}
	}
}

// CreateChangesFromPlan stages one rename change per non-skip entry and
// returns the number created.
func CreateChangesFromPlan(ctx context.Context, changeService *changes.Service, plan *Plan) (int, error) {
	created := 0
	for _, entry := range plan.Entries {
		if entry.Action == ActionSkip {
			continue
		}

		source := entry.SourcePath
		target := entry.TargetPath
		change := &models.PendingChange{
			FileID:   entry.FileID,
			Type:     models.ChangeTypeRename,
			FromPath: &source,
			ToPath:   &target,
		}
		if err := changeService.CreateChange(ctx, change); err != nil {
			return created, errors.WithStack(err)
		}
		created++
	}

	return created, nil
}
