package catalog

import (
	"context"
	"time"

	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
)

// ApplyMetadata merges extracted file metadata into an item with first-write-
// wins semantics: a field already set on the item is never overwritten, only
// empty fields are filled in. Authors are only adopted when the item has none,
// and identifiers are added per type without replacing existing ones.
func (svc *Service) ApplyMetadata(ctx context.Context, itemID int, meta *mediafile.ParsedMetadata) error {
	if meta == nil {
		return nil
	}

	item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &itemID})
	if err != nil {
		return errors.WithStack(err)
	}

	columns := []string{}
	if item.Title == nil && meta.Title != "" {
		item.Title = &meta.Title
		columns = append(columns, "title")
	}
	if item.Description == nil && meta.Description != "" {
		item.Description = &meta.Description
		columns = append(columns, "description")
	}
	if item.Language == nil && meta.Language != "" {
		item.Language = &meta.Language
		columns = append(columns, "language")
	}
	if item.PublishedYear == nil && meta.PublishedYear != nil {
		item.PublishedYear = meta.PublishedYear
		columns = append(columns, "published_year")
	}
	if item.Series == nil && meta.Series != "" {
		item.Series = &meta.Series
		columns = append(columns, "series")
	}
	if item.SeriesNumber == nil && meta.SeriesNumber != nil {
		item.SeriesNumber = meta.SeriesNumber
		columns = append(columns, "series_number")
	}

	if len(columns) > 0 {
		err = svc.UpdateItem(ctx, item, UpdateItemOptions{Columns: columns})
		if err != nil {
			return errors.WithStack(err)
		}
	}

	now := time.Now()

	if len(item.Authors) == 0 && len(meta.Authors) > 0 {
		for i, name := range meta.Authors {
			author := &models.Author{
				CreatedAt: now,
				ItemID:    item.ID,
				Name:      name,
				SortOrder: i,
			}
			_, err := svc.db.
				NewInsert().
				Model(author).
				Returning("*").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}
	}

	existingTypes := map[string]struct{}{}
	for _, id := range item.Identifiers {
		existingTypes[id.Type] = struct{}{}
	}
	for _, parsed := range meta.Identifiers {
		if _, ok := existingTypes[parsed.Type]; ok {
			continue
		}
		existingTypes[parsed.Type] = struct{}{}

		identifier := &models.Identifier{
			CreatedAt: now,
			ItemID:    item.ID,
			Type:      parsed.Type,
			Value:     parsed.Value,
			Source:    models.IdentifierSourceFileMetadata,
		}
		_, err := svc.db.
			NewInsert().
			Model(identifier).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}
