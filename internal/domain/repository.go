package domain

import "context"

// ArticleRepository is the persistence surface for research articles and
// their preprint/published links.
type ArticleRepository interface {
	// UpsertRecord inserts a new article or, when DOINorm already exists,
	// updates metadata without clobbering ImportDatetime. inserted reports
	// whether a new row was created.
	UpsertRecord(ctx context.Context, a *ResearchArticle) (id int64, inserted bool, err error)
	GetRecordByID(ctx context.Context, id int64) (*ResearchArticle, error)
	GetRecordByDOI(ctx context.Context, doiNorm string) (*ResearchArticle, error)
	GetRecordsNeedingEnrichment(ctx context.Context) ([]*ResearchArticle, error)
	GetEnrichedRecords(ctx context.Context) ([]*ResearchArticle, error)
	// UpdateRecordEnrichment persists enrichment output, including
	// provenance and EnrichmentDatetime.
	UpdateRecordEnrichment(ctx context.Context, a *ResearchArticle) error
	// ClearEnrichmentForEmpty re-opens records that were enriched but got
	// no abstract, so a later pass retries them.
	ClearEnrichmentForEmpty(ctx context.Context) (int64, error)
	InsertArticleVersionLink(ctx context.Context, link *ArticleVersionLink) error
	HasArticleVersionLink(ctx context.Context, preprintID, publishedID int64) (bool, error)
}

// FilterRepository is the persistence surface for filter runs.
type FilterRepository interface {
	CreateFilteringQuery(ctx context.Context, q *FilteringQuery) (int64, error)
	UpdateFilteringQueryCounts(ctx context.Context, id int64, total, matched, failed int) error
	GetFilteringQuery(ctx context.Context, id int64) (*FilteringQuery, error)
	BatchInsertFilteringResults(ctx context.Context, results []*FilteringResult) error
	// GetMatchedRecordsByFilteringQuery returns records with a positive,
	// clean decision (no ERROR:/WARNING: explanation prefix).
	GetMatchedRecordsByFilteringQuery(ctx context.Context, queryID int64) ([]*ResearchArticle, error)
}

// ArtifactRepository is the persistence surface for downloaded and
// converted file artifacts.
type ArtifactRepository interface {
	InsertPDFResolution(ctx context.Context, res *PDFResolution) (int64, error)
	RecordPDFDownloadAttempt(ctx context.Context, d *PDFDownload) (int64, error)
	GetLatestDownloadedPDF(ctx context.Context, articleID int64) (*PDFDownload, error)
	GetPDFDownloadStats(ctx context.Context, queryID *int64) (map[string]int, error)
	InsertDocxVersion(ctx context.Context, v *DocxVersion) (int64, error)
	InsertHTMLVersion(ctx context.Context, v *HTMLVersion) (int64, error)
	GetLatestDownloadedHTML(ctx context.Context, articleID int64) (*HTMLVersion, error)
	InsertMarkdownVersion(ctx context.Context, v *MarkdownVersion) (int64, error)
	GetDocxVersionsByQuery(ctx context.Context, queryID int64) ([]*DocxVersion, error)
}
