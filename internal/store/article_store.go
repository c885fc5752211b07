package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scholarpipe/backend/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned for integrity violations the caller can
	// treat as a skip rather than a failure.
	ErrDuplicate = errors.New("store: duplicate")
)

const articleColumns = `id, title, doi_raw, doi_norm, pub_date, total_citations,
	citations_per_year, authors, source_title, arxiv_id, is_preprint, preprint_source,
	abstract, abstract_source, abstract_no_retrieval_reason, is_oa, oa_status, license,
	oa_pdf_url, manual_url_publisher, manual_url_repository, provenance,
	import_datetime, enrichment_datetime`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*domain.ResearchArticle, error) {
	var (
		a                  domain.ResearchArticle
		doiRaw, doiNorm    sql.NullString
		pubDate            sql.NullString
		totalCitations     sql.NullInt64
		citationsPerYear   sql.NullFloat64
		authors, srcTitle  sql.NullString
		arxivID            sql.NullString
		isPreprint         int
		preprintSource     sql.NullString
		abstract, absSrc   sql.NullString
		absNoReason        sql.NullString
		isOA               sql.NullInt64
		oaStatus, license  sql.NullString
		oaPDFURL           sql.NullString
		manualPub, manRepo sql.NullString
		provenance         sql.NullString
		importDT, enrichDT sql.NullString
	)
	err := row.Scan(&a.ID, &a.Title, &doiRaw, &doiNorm, &pubDate, &totalCitations,
		&citationsPerYear, &authors, &srcTitle, &arxivID, &isPreprint, &preprintSource,
		&abstract, &absSrc, &absNoReason, &isOA, &oaStatus, &license,
		&oaPDFURL, &manualPub, &manRepo, &provenance, &importDT, &enrichDT)
	if err != nil {
		return nil, err
	}
	a.DOIRaw = doiRaw.String
	a.DOINorm = doiNorm.String
	a.PubDate = pubDate.String
	a.TotalCitations = int64Ptr(totalCitations)
	a.CitationsPerYear = float64Ptr(citationsPerYear)
	a.Authors = authors.String
	a.SourceTitle = srcTitle.String
	a.ArxivID = arxivID.String
	a.IsPreprint = isPreprint != 0
	a.PreprintSource = preprintSource.String
	a.Abstract = abstract.String
	a.AbstractSource = absSrc.String
	a.AbstractNoRetrievalReason = absNoReason.String
	a.IsOA = isOA.Valid && isOA.Int64 != 0
	a.OAStatus = oaStatus.String
	a.License = license.String
	a.OAPDFURL = oaPDFURL.String
	a.ManualURLPublisher = manualPub.String
	a.ManualURLRepository = manRepo.String
	if provenance.Valid && provenance.String != "" {
		a.Provenance = []byte(provenance.String)
	}
	a.ImportDatetime = parseTime(importDT)
	a.EnrichmentDatetime = parseTimePtr(enrichDT)
	return &a, nil
}

// UpsertRecord inserts a new article or updates the metadata of the row
// with the same normalized DOI. ImportDatetime is written only on
// insert. Records without a DOI always insert.
func (s *Store) UpsertRecord(ctx context.Context, a *domain.ResearchArticle) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.DOINorm != "" {
		var existingID int64
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM research_articles WHERE doi_norm = ?", a.DOINorm).Scan(&existingID)
		switch {
		case err == nil:
			if err := s.updateRecordMetadata(ctx, existingID, a); err != nil {
				return 0, false, err
			}
			a.ID = existingID
			return existingID, false, nil
		case !errors.Is(err, sql.ErrNoRows):
			return 0, false, fmt.Errorf("lookup by doi: %w", err)
		}
	}

	if a.ImportDatetime.IsZero() {
		a.ImportDatetime = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO research_articles (
			title, doi_raw, doi_norm, pub_date, total_citations, citations_per_year,
			authors, source_title, arxiv_id, is_preprint, preprint_source,
			abstract, abstract_source, import_datetime, enrichment_datetime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, nullString(a.DOIRaw), nullString(a.DOINorm), nullString(a.PubDate),
		nullInt64(a.TotalCitations), nullFloat64(a.CitationsPerYear),
		nullString(a.Authors), nullString(a.SourceTitle), nullString(a.ArxivID),
		boolInt(a.IsPreprint), nullString(a.PreprintSource),
		nullString(a.Abstract), nullString(a.AbstractSource),
		timeText(a.ImportDatetime), timeTextPtr(a.EnrichmentDatetime))
	if err != nil {
		return 0, false, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	a.ID = id
	return id, true, nil
}

// updateRecordMetadata refreshes bibliographic fields from a newer
// import without touching lifecycle timestamps or enrichment output.
// Incoming empty values leave the stored ones alone.
func (s *Store) updateRecordMetadata(ctx context.Context, id int64, a *domain.ResearchArticle) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE research_articles SET
			title = COALESCE(NULLIF(?, ''), title),
			doi_raw = COALESCE(NULLIF(?, ''), doi_raw),
			pub_date = COALESCE(NULLIF(?, ''), pub_date),
			total_citations = COALESCE(?, total_citations),
			citations_per_year = COALESCE(?, citations_per_year),
			authors = COALESCE(NULLIF(?, ''), authors),
			source_title = COALESCE(NULLIF(?, ''), source_title),
			arxiv_id = COALESCE(NULLIF(?, ''), arxiv_id)
		WHERE id = ?`,
		a.Title, a.DOIRaw, a.PubDate,
		nullInt64(a.TotalCitations), nullFloat64(a.CitationsPerYear),
		a.Authors, a.SourceTitle, a.ArxivID, id)
	if err != nil {
		return fmt.Errorf("update record metadata: %w", err)
	}
	return nil
}

func (s *Store) GetRecordByID(ctx context.Context, id int64) (*domain.ResearchArticle, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+articleColumns+" FROM research_articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *Store) GetRecordByDOI(ctx context.Context, doiNorm string) (*domain.ResearchArticle, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+articleColumns+" FROM research_articles WHERE doi_norm = ?", doiNorm)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetRecordsNeedingEnrichment returns every record whose enrichment
// timestamp is unset. This predicate is the authoritative work list for
// the multi-pass enrichment loop.
func (s *Store) GetRecordsNeedingEnrichment(ctx context.Context) ([]*domain.ResearchArticle, error) {
	return s.queryArticles(ctx,
		"SELECT "+articleColumns+" FROM research_articles WHERE enrichment_datetime IS NULL ORDER BY id")
}

// GetEnrichedRecords returns every record that completed enrichment.
func (s *Store) GetEnrichedRecords(ctx context.Context) ([]*domain.ResearchArticle, error) {
	return s.queryArticles(ctx,
		"SELECT "+articleColumns+" FROM research_articles WHERE enrichment_datetime IS NOT NULL ORDER BY id")
}

func (s *Store) queryArticles(ctx context.Context, query string, args ...any) ([]*domain.ResearchArticle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []*domain.ResearchArticle
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// UpdateRecordEnrichment persists enrichment output for one record,
// including provenance and the enrichment timestamp. ImportDatetime is
// never written here.
func (s *Store) UpdateRecordEnrichment(ctx context.Context, a *domain.ResearchArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE research_articles SET
			title = COALESCE(NULLIF(?, ''), title),
			pub_date = COALESCE(NULLIF(?, ''), pub_date),
			arxiv_id = COALESCE(NULLIF(?, ''), arxiv_id),
			is_preprint = ?,
			preprint_source = ?,
			abstract = ?,
			abstract_source = ?,
			abstract_no_retrieval_reason = ?,
			is_oa = ?,
			oa_status = ?,
			license = ?,
			oa_pdf_url = ?,
			provenance = ?,
			enrichment_datetime = ?
		WHERE id = ?`,
		a.Title, a.PubDate, a.ArxivID,
		boolInt(a.IsPreprint), nullString(a.PreprintSource),
		nullString(a.Abstract), nullString(a.AbstractSource),
		nullString(a.AbstractNoRetrievalReason),
		boolInt(a.IsOA), nullString(a.OAStatus), nullString(a.License),
		nullString(a.OAPDFURL), nullString(string(a.Provenance)),
		timeTextPtr(a.EnrichmentDatetime), a.ID)
	if err != nil {
		return fmt.Errorf("update record enrichment: %w", err)
	}
	return nil
}

// ClearEnrichmentForEmpty re-opens records that completed enrichment
// without obtaining an abstract so the next pass retries them.
func (s *Store) ClearEnrichmentForEmpty(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE research_articles SET enrichment_datetime = NULL
		WHERE enrichment_datetime IS NOT NULL AND (abstract IS NULL OR abstract = '')`)
	if err != nil {
		return 0, fmt.Errorf("clear enrichment for empty: %w", err)
	}
	return res.RowsAffected()
}

// InsertArticleVersionLink records a preprint/published relation.
// Re-inserting an existing pair is a no-op.
func (s *Store) InsertArticleVersionLink(ctx context.Context, link *domain.ArticleVersionLink) error {
	if link.PreprintID == link.PublishedID {
		return fmt.Errorf("article version link: preprint and published ids are equal (%d)", link.PreprintID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if link.LinkDatetime.IsZero() {
		link.LinkDatetime = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO article_versions (preprint_id, published_id, discovery_source, link_datetime)
		VALUES (?, ?, ?, ?)`,
		link.PreprintID, link.PublishedID, nullString(link.DiscoverySource), timeText(link.LinkDatetime))
	if err != nil {
		return fmt.Errorf("insert article version link: %w", err)
	}
	return nil
}

func (s *Store) HasArticleVersionLink(ctx context.Context, preprintID, publishedID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM article_versions WHERE preprint_id = ? AND published_id = ?)`,
		preprintID, publishedID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists != 0, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
