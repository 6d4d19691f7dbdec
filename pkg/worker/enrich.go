package worker

import (
	"context"
	"os"
	"strings"

	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/epub"
	"github.com/foliobooks/folio/pkg/joblogs"
	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/pdf"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// enrichItem pulls embedded metadata out of the file and merges it into the
// owning item. It's strictly best-effort: any failure is logged and the scan
// moves on.
func (w *Worker) enrichItem(ctx context.Context, file *models.File, jlog *joblogs.JobLogger) {
	meta, err := extractMetadata(file)
	if err != nil {
		jlog.Warn("metadata extraction failed", logger.Data{"path": file.Filepath, "err": err.Error()})
		return
	}
	if meta == nil {
		return
	}

	if err := w.saveCover(ctx, file, meta); err != nil {
		jlog.Warn("cover save failed", logger.Data{"path": file.Filepath, "err": err.Error()})
	}

	if err := w.catalogService.ApplyMetadata(ctx, file.ItemID, meta); err != nil {
		jlog.Warn("metadata merge failed", logger.Data{"path": file.Filepath, "err": err.Error()})
		return
	}

	if meta.Title == "" && len(meta.Authors) == 0 {
		if err := w.raiseMissingMetadata(ctx, file); err != nil {
			jlog.Warn("issue create failed", logger.Data{"path": file.Filepath, "err": err.Error()})
		}
	}
}

func extractMetadata(file *models.File) (*mediafile.ParsedMetadata, error) {
	switch file.Extension {
	case models.FileExtensionEPUB:
		return epub.Parse(file.Filepath)
	case models.FileExtensionPDF:
		return pdf.Parse(file.Filepath)
	default:
		return nil, nil
	}
}

// saveCover writes embedded cover art next to the file itself.
func (w *Worker) saveCover(ctx context.Context, file *models.File, meta *mediafile.ParsedMetadata) error {
	if len(meta.CoverData) == 0 || meta.CoverExtension() == "" {
		return nil
	}

	coverPath := strings.TrimSuffix(file.Filepath, file.Extension) + ".cover" + meta.CoverExtension()
	if err := os.WriteFile(coverPath, meta.CoverData, 0o644); err != nil {
		return errors.WithStack(err)
	}

	file.CoverImagePath = &coverPath
	file.CoverMimeType = &meta.CoverMimeType

	return errors.WithStack(w.catalogService.UpdateFile(ctx, file, catalog.UpdateFileOptions{
		Columns: []string{"cover_image_path", "cover_mime_type"},
	}))
}

// raiseMissingMetadata files an issue once per file, not on every rescan.
func (w *Worker) raiseMissingMetadata(ctx context.Context, file *models.File) error {
	open, err := w.catalogService.ListIssues(ctx, catalog.ListIssuesOptions{
		Types:      []string{models.IssueTypeMissingMetadata},
		FileID:     &file.ID,
		Unresolved: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if len(open) > 0 {
		return nil
	}

	return errors.WithStack(w.catalogService.CreateIssue(ctx, &models.Issue{
		ItemID:  file.ItemID,
		FileID:  &file.ID,
		Type:    models.IssueTypeMissingMetadata,
		Message: "no embedded title or author",
	}))
}
