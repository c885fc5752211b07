package ingest

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
)

// Summary reports what one import run did.
type Summary struct {
	Total    int
	Inserted int
	Updated  int
	Failed   int
}

// Importer upserts loaded records into the store.
type Importer struct {
	repo domain.ArticleRepository
}

func NewImporter(repo domain.ArticleRepository) *Importer {
	return &Importer{repo: repo}
}

// Run upserts every record. A failing row is logged and counted, not
// fatal. Rows whose DOI already exists update metadata in place.
func (im *Importer) Run(ctx context.Context, records []*domain.ResearchArticle) (*Summary, error) {
	summary := &Summary{Total: len(records)}
	for _, rec := range records {
		id, inserted, err := im.repo.UpsertRecord(ctx, rec)
		if err != nil {
			summary.Failed++
			log.Error().Str("title", rec.Title).Str("doi", rec.DOINorm).Err(err).Msg("record import failed")
			continue
		}
		rec.ID = id
		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
			log.Debug().Int64("article_id", id).Str("doi", rec.DOINorm).Msg("existing record updated")
		}
	}
	if summary.Failed == summary.Total && summary.Total > 0 {
		return summary, fmt.Errorf("all %d records failed to import", summary.Total)
	}
	log.Info().
		Int("total", summary.Total).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("failed", summary.Failed).
		Msg("import completed")
	return summary, nil
}
