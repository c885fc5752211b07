// Package ingest loads spreadsheet-shaped record exports into the store,
// normalizing identifiers and deduplicating on DOI.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
)

// Input column headers. Title is the only required column; everything
// else degrades to NULL.
const (
	colTitle          = "Title"
	colPubDate        = "Publication Date"
	colDOI            = "DOI"
	colTotalCitations = "Total Citations"
	colCitationsYear  = "Average per Year"
	colAuthors        = "Authors"
	colSourceTitle    = "Source Title"
)

// Load reads the CSV at path into records ready for upsert. DOIs are
// normalized, preprint platforms detected, and unparseable numeric cells
// dropped rather than failing the row.
func Load(path string) ([]*domain.ResearchArticle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	if _, ok := index[colTitle]; !ok {
		return nil, fmt.Errorf("input must have a %q column", colTitle)
	}

	now := time.Now().UTC()
	var records []*domain.ResearchArticle
	preprints := 0
	line := 1
	for {
		row, err := r.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		title := cell(colTitle)
		if title == "" {
			log.Warn().Int("line", line).Msg("row skipped: empty title")
			continue
		}

		a := &domain.ResearchArticle{
			Title:          title,
			DOIRaw:         cell(colDOI),
			PubDate:        cell(colPubDate),
			Authors:        cell(colAuthors),
			SourceTitle:    cell(colSourceTitle),
			ImportDatetime: now,
		}
		a.DOINorm = domain.NormalizeDOI(a.DOIRaw)
		a.TotalCitations = parseInt(cell(colTotalCitations))
		a.CitationsPerYear = parseFloat(cell(colCitationsYear))

		if src := domain.DetectPreprintSource(a); src != "" {
			a.IsPreprint = true
			a.PreprintSource = src
			preprints++
		}
		records = append(records, a)
	}

	log.Info().
		Str("path", path).
		Int("records", len(records)).
		Int("preprints", preprints).
		Msg("input loaded")
	return records, nil
}

func parseInt(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Spreadsheet exports sometimes format counts as floats.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil
		}
		v = int64(f)
	}
	return &v
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
