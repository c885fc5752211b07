package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scholarpipe/backend/internal/domain"
)

// InsertPDFResolution snapshots the candidate list considered for one
// record. Candidates serialize as JSON text.
func (s *Store) InsertPDFResolution(ctx context.Context, res *domain.PDFResolution) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	candidates, err := json.Marshal(res.Candidates)
	if err != nil {
		return 0, fmt.Errorf("marshal candidates: %w", err)
	}
	r, err := s.db.ExecContext(ctx, `
		INSERT INTO pdf_resolutions (article_id, filtering_query_id, timestamp, candidates)
		VALUES (?, ?, ?, ?)`,
		res.ArticleID, nullInt64(res.FilteringQueryID), timeText(res.Timestamp), string(candidates))
	if err != nil {
		return 0, fmt.Errorf("insert pdf resolution: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}
	res.ID = id
	return id, nil
}

// RecordPDFDownloadAttempt appends one download attempt row. Every
// attempt is recorded, including failures and synthetic no_candidates
// rows.
func (s *Store) RecordPDFDownloadAttempt(ctx context.Context, d *domain.PDFDownload) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	r, err := s.db.ExecContext(ctx, `
		INSERT INTO pdf_downloads (article_id, filtering_query_id, timestamp, url, source,
			status, pdf_local_path, sha1, final_url, error_message, file_size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ArticleID, nullInt64(d.FilteringQueryID), timeText(d.Timestamp),
		nullString(d.URL), nullString(d.Source), d.Status,
		nullString(d.LocalPath), nullString(d.SHA1), nullString(d.FinalURL),
		nullString(d.ErrorMessage), nullInt64(d.FileSizeBytes))
	if err != nil {
		return 0, fmt.Errorf("record pdf download attempt: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// GetLatestDownloadedPDF returns the most recent successful download
// for a record, or ErrNotFound.
func (s *Store) GetLatestDownloadedPDF(ctx context.Context, articleID int64) (*domain.PDFDownload, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, article_id, filtering_query_id, timestamp, url, source, status,
			pdf_local_path, sha1, final_url, error_message, file_size_bytes
		FROM pdf_downloads
		WHERE article_id = ? AND status = ?
		ORDER BY id DESC LIMIT 1`, articleID, domain.DownloadStatusDownloaded)
	d, err := scanPDFDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func scanPDFDownload(row rowScanner) (*domain.PDFDownload, error) {
	var (
		d            domain.PDFDownload
		queryID      sql.NullInt64
		timestamp    sql.NullString
		url, source  sql.NullString
		localPath    sql.NullString
		sha1, final  sql.NullString
		errMsg       sql.NullString
		fileSize     sql.NullInt64
	)
	err := row.Scan(&d.ID, &d.ArticleID, &queryID, &timestamp, &url, &source, &d.Status,
		&localPath, &sha1, &final, &errMsg, &fileSize)
	if err != nil {
		return nil, err
	}
	d.FilteringQueryID = int64Ptr(queryID)
	d.Timestamp = parseTime(timestamp)
	d.URL = url.String
	d.Source = source.String
	d.LocalPath = localPath.String
	d.SHA1 = sha1.String
	d.FinalURL = final.String
	d.ErrorMessage = errMsg.String
	d.FileSizeBytes = int64Ptr(fileSize)
	return &d, nil
}

// GetPDFDownloadStats aggregates download attempts by status, overall
// or for one filtering query.
func (s *Store) GetPDFDownloadStats(ctx context.Context, queryID *int64) (map[string]int, error) {
	query := "SELECT status, COUNT(*) FROM pdf_downloads"
	args := []any{}
	if queryID != nil {
		query += " WHERE filtering_query_id = ?"
		args = append(args, *queryID)
	}
	query += " GROUP BY status"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pdf download stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// InsertDocxVersion records a located DOCX artifact.
func (s *Store) InsertDocxVersion(ctx context.Context, v *domain.DocxVersion) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.RetrievedDatetime.IsZero() {
		v.RetrievedDatetime = time.Now().UTC()
	}
	r, err := s.db.ExecContext(ctx, `
		INSERT INTO docx_versions (article_id, docx_local_path, retrieved_datetime, file_size_bytes, error_message)
		VALUES (?, ?, ?, ?, ?)`,
		v.ArticleID, nullString(v.LocalPath), timeText(v.RetrievedDatetime),
		nullInt64(v.FileSizeBytes), nullString(v.ErrorMessage))
	if err != nil {
		return 0, fmt.Errorf("insert docx version: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}
	v.ID = id
	return id, nil
}

// InsertHTMLVersion records a downloaded HTML full text.
func (s *Store) InsertHTMLVersion(ctx context.Context, v *domain.HTMLVersion) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.RetrievedDatetime.IsZero() {
		v.RetrievedDatetime = time.Now().UTC()
	}
	r, err := s.db.ExecContext(ctx, `
		INSERT INTO html_versions (article_id, url, html_local_path, retrieved_datetime, file_size_bytes, error_message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ArticleID, nullString(v.URL), nullString(v.LocalPath), timeText(v.RetrievedDatetime),
		nullInt64(v.FileSizeBytes), nullString(v.ErrorMessage))
	if err != nil {
		return 0, fmt.Errorf("insert html version: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}
	v.ID = id
	return id, nil
}

// GetLatestDownloadedHTML returns the most recent successful HTML
// download for a record, or ErrNotFound.
func (s *Store) GetLatestDownloadedHTML(ctx context.Context, articleID int64) (*domain.HTMLVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, article_id, url, html_local_path, retrieved_datetime, file_size_bytes, error_message
		FROM html_versions
		WHERE article_id = ? AND error_message IS NULL AND html_local_path IS NOT NULL
		ORDER BY id DESC LIMIT 1`, articleID)

	var (
		v         domain.HTMLVersion
		url       sql.NullString
		localPath sql.NullString
		retrieved sql.NullString
		fileSize  sql.NullInt64
		errMsg    sql.NullString
	)
	err := row.Scan(&v.ID, &v.ArticleID, &url, &localPath, &retrieved, &fileSize, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.URL = url.String
	v.LocalPath = localPath.String
	v.RetrievedDatetime = parseTime(retrieved)
	v.FileSizeBytes = int64Ptr(fileSize)
	v.ErrorMessage = errMsg.String
	return &v, nil
}

// InsertMarkdownVersion records a conversion output. The one-source
// invariant is validated here as well as by the table CHECK, because
// databases upgraded in place lack the constraint.
func (s *Store) InsertMarkdownVersion(ctx context.Context, v *domain.MarkdownVersion) (int64, error) {
	if !v.Valid() {
		return 0, fmt.Errorf("markdown version: exactly one of docx_version_id/html_version_id must match source_type %q", v.SourceType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.CreatedDatetime.IsZero() {
		v.CreatedDatetime = time.Now().UTC()
	}
	r, err := s.db.ExecContext(ctx, `
		INSERT INTO markdown_versions (article_id, source_type, docx_version_id, html_version_id,
			variant, markdown_local_path, created_datetime, file_size_bytes, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ArticleID, v.SourceType, nullInt64(v.DocxVersionID), nullInt64(v.HTMLVersionID),
		v.Variant, nullString(v.LocalPath), timeText(v.CreatedDatetime),
		nullInt64(v.FileSizeBytes), nullString(v.ErrorMessage))
	if err != nil {
		return 0, fmt.Errorf("insert markdown version: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}
	v.ID = id
	return id, nil
}

// GetDocxVersionsByQuery returns the DOCX artifacts recorded for the
// matched records of one filter run.
func (s *Store) GetDocxVersionsByQuery(ctx context.Context, queryID int64) ([]*domain.DocxVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dv.id, dv.article_id, dv.docx_local_path, dv.retrieved_datetime, dv.file_size_bytes, dv.error_message
		FROM docx_versions dv
		WHERE dv.article_id IN (
			SELECT article_id FROM records_filterings
			WHERE filtering_query_id = ? AND match_result = 1
		)
		ORDER BY dv.id`, queryID)
	if err != nil {
		return nil, fmt.Errorf("get docx versions by query: %w", err)
	}
	defer rows.Close()

	var versions []*domain.DocxVersion
	for rows.Next() {
		var (
			v         domain.DocxVersion
			localPath sql.NullString
			retrieved sql.NullString
			fileSize  sql.NullInt64
			errMsg    sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.ArticleID, &localPath, &retrieved, &fileSize, &errMsg); err != nil {
			return nil, err
		}
		v.LocalPath = localPath.String
		v.RetrievedDatetime = parseTime(retrieved)
		v.FileSizeBytes = int64Ptr(fileSize)
		v.ErrorMessage = errMsg.String
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}
