// Package export writes matched records to CSV for downstream review.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
)

var columns = []string{
	"title",
	"doi_norm",
	"pub_date",
	"total_citations",
	"citations_per_year",
	"authors",
	"source_title",
	"abstract_source",
	"license",
	"is_oa",
}

// WriteCSV writes the records to path with the canonical column set.
func WriteCSV(records []*domain.ResearchArticle, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return err
	}
	for _, a := range records {
		row := []string{
			a.Title,
			a.DOINorm,
			a.PubDate,
			formatInt(a.TotalCitations),
			formatFloat(a.CitationsPerYear),
			a.Authors,
			a.SourceTitle,
			a.AbstractSource,
			a.License,
			strconv.FormatBool(a.IsOA),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	log.Info().Str("path", path).Int("records", len(records)).Msg("export written")
	return nil
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
