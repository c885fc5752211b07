package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/backend/internal/domain"
)

func TestPDFDownloadAttemptsAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedArticles(t, s, 2)

	queryID, err := s.CreateFilteringQuery(ctx, &domain.FilteringQuery{Query: "q"})
	require.NoError(t, err)

	size := int64(1024)
	attempts := []*domain.PDFDownload{
		{ArticleID: ids[0], FilteringQueryID: &queryID, URL: "https://a/1.pdf", Source: "unpaywall",
			Status: domain.DownloadStatusUnavailable, ErrorMessage: "status 403"},
		{ArticleID: ids[0], FilteringQueryID: &queryID, URL: "https://b/1.pdf", Source: "europepmc",
			Status: domain.DownloadStatusDownloaded, LocalPath: "/tmp/x.pdf", SHA1: "abc123", FileSizeBytes: &size},
		{ArticleID: ids[1], FilteringQueryID: &queryID, Status: domain.DownloadStatusNoCandidates},
	}
	for _, a := range attempts {
		_, err := s.RecordPDFDownloadAttempt(ctx, a)
		require.NoError(t, err)
	}

	latest, err := s.GetLatestDownloadedPDF(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "abc123", latest.SHA1)
	assert.Equal(t, "https://b/1.pdf", latest.URL)
	require.NotNil(t, latest.FileSizeBytes)
	assert.Equal(t, int64(1024), *latest.FileSizeBytes)

	_, err = s.GetLatestDownloadedPDF(ctx, ids[1])
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := s.GetPDFDownloadStats(ctx, &queryID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		domain.DownloadStatusUnavailable:  1,
		domain.DownloadStatusDownloaded:   1,
		domain.DownloadStatusNoCandidates: 1,
	}, stats)

	// Corpus-wide stats include the same rows.
	stats, err = s.GetPDFDownloadStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats[domain.DownloadStatusUnavailable]+
		stats[domain.DownloadStatusDownloaded]+stats[domain.DownloadStatusNoCandidates])
}

func TestInsertPDFResolutionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedArticles(t, s, 1)

	res := &domain.PDFResolution{
		ArticleID: ids[0],
		Candidates: []domain.PDFCandidate{
			{URL: "https://arxiv.org/pdf/2103.12345.pdf", Source: "arxiv"},
			{URL: "https://example.org/oa.pdf", Source: "unpaywall", License: "cc-by"},
		},
	}
	id, err := s.InsertPDFResolution(ctx, res)
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestMarkdownVersionInvariantEnforced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedArticles(t, s, 1)

	docxID, err := s.InsertDocxVersion(ctx, &domain.DocxVersion{ArticleID: ids[0], LocalPath: "/tmp/a.docx"})
	require.NoError(t, err)
	htmlID, err := s.InsertHTMLVersion(ctx, &domain.HTMLVersion{ArticleID: ids[0], URL: "https://x/y.html"})
	require.NoError(t, err)

	ok := &domain.MarkdownVersion{
		ArticleID:     ids[0],
		SourceType:    domain.MarkdownSourceDocx,
		DocxVersionID: &docxID,
		Variant:       domain.MarkdownVariantNoImages,
		LocalPath:     "/tmp/a.md",
	}
	_, err = s.InsertMarkdownVersion(ctx, ok)
	require.NoError(t, err)

	// source_type=docx with an html id must be rejected before SQL.
	bad := &domain.MarkdownVersion{
		ArticleID:     ids[0],
		SourceType:    domain.MarkdownSourceDocx,
		HTMLVersionID: &htmlID,
		Variant:       domain.MarkdownVariantNoImages,
	}
	_, err = s.InsertMarkdownVersion(ctx, bad)
	assert.Error(t, err)

	okHTML := &domain.MarkdownVersion{
		ArticleID:     ids[0],
		SourceType:    domain.MarkdownSourceHTML,
		HTMLVersionID: &htmlID,
		Variant:       domain.MarkdownVariantNoImages,
		ErrorMessage:  "conversion failed",
	}
	_, err = s.InsertMarkdownVersion(ctx, okHTML)
	require.NoError(t, err)
}

func TestGetDocxVersionsByQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedArticles(t, s, 2)

	queryID, err := s.CreateFilteringQuery(ctx, &domain.FilteringQuery{Query: "q"})
	require.NoError(t, err)
	require.NoError(t, s.BatchInsertFilteringResults(ctx, []*domain.FilteringResult{
		{ArticleID: ids[0], FilteringQueryID: queryID, MatchResult: true, Explanation: "yes"},
		{ArticleID: ids[1], FilteringQueryID: queryID, MatchResult: false, Explanation: "no"},
	}))

	_, err = s.InsertDocxVersion(ctx, &domain.DocxVersion{ArticleID: ids[0], LocalPath: "/tmp/m.docx"})
	require.NoError(t, err)
	_, err = s.InsertDocxVersion(ctx, &domain.DocxVersion{ArticleID: ids[1], LocalPath: "/tmp/n.docx"})
	require.NoError(t, err)

	versions, err := s.GetDocxVersionsByQuery(ctx, queryID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, ids[0], versions[0].ArticleID)
}
