package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scholarpipe/backend/internal/domain"
)

// CreateFilteringQuery inserts the row for one filter run and returns
// its id. Counts start at zero and are finalized by
// UpdateFilteringQueryCounts.
func (s *Store) CreateFilteringQuery(ctx context.Context, q *domain.FilteringQuery) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO filtering_queries (query, exclude_query, model, max_concurrent, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		q.Query, nullString(q.Exclude), nullString(q.Model), q.MaxConcurrent, timeText(q.Timestamp))
	if err != nil {
		return 0, fmt.Errorf("create filtering query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	q.ID = id
	return id, nil
}

// UpdateFilteringQueryCounts writes the final run statistics.
func (s *Store) UpdateFilteringQueryCounts(ctx context.Context, id int64, total, matched, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE filtering_queries SET total_records = ?, matched_count = ?, failed_count = ?
		WHERE id = ?`, total, matched, failed, id)
	if err != nil {
		return fmt.Errorf("update filtering query counts: %w", err)
	}
	return nil
}

func (s *Store) GetFilteringQuery(ctx context.Context, id int64) (*domain.FilteringQuery, error) {
	var (
		q         domain.FilteringQuery
		exclude   sql.NullString
		model     sql.NullString
		maxConc   sql.NullInt64
		timestamp sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, query, exclude_query, model, max_concurrent, timestamp,
			total_records, matched_count, failed_count
		FROM filtering_queries WHERE id = ?`, id).
		Scan(&q.ID, &q.Query, &exclude, &model, &maxConc, &timestamp,
			&q.TotalRecords, &q.MatchedCount, &q.FailedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get filtering query: %w", err)
	}
	q.Exclude = exclude.String
	q.Model = model.String
	if maxConc.Valid {
		q.MaxConcurrent = int(maxConc.Int64)
	}
	q.Timestamp = parseTime(timestamp)
	return &q, nil
}

// BatchInsertFilteringResults writes one decision row per record inside
// a single transaction. A second decision for the same (record, query)
// pair violates the unique constraint and fails the batch.
func (s *Store) BatchInsertFilteringResults(ctx context.Context, results []*domain.FilteringResult) error {
	if len(results) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records_filterings (article_id, filtering_query_id, match_result, explanation, decision_datetime)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		if r.DecisionDatetime.IsZero() {
			r.DecisionDatetime = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, r.ArticleID, r.FilteringQueryID,
			boolInt(r.MatchResult), nullString(r.Explanation), timeText(r.DecisionDatetime)); err != nil {
			return fmt.Errorf("insert filtering result (article %d): %w", r.ArticleID, err)
		}
	}
	return tx.Commit()
}

// GetMatchedRecordsByFilteringQuery returns the records with a positive
// decision and a clean explanation (no ERROR:/WARNING: prefix) for one
// filter run.
func (s *Store) GetMatchedRecordsByFilteringQuery(ctx context.Context, queryID int64) ([]*domain.ResearchArticle, error) {
	return s.queryArticles(ctx, `
		SELECT `+articleColumns+` FROM research_articles
		WHERE id IN (
			SELECT article_id FROM records_filterings
			WHERE filtering_query_id = ?
			  AND match_result = 1
			  AND (explanation IS NULL OR (
				explanation NOT LIKE 'ERROR:%' AND explanation NOT LIKE 'WARNING:%'))
		)
		ORDER BY id`, queryID)
}

// GetFilteringResults returns all decisions of one filter run.
func (s *Store) GetFilteringResults(ctx context.Context, queryID int64) ([]*domain.FilteringResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, filtering_query_id, match_result, explanation, decision_datetime
		FROM records_filterings WHERE filtering_query_id = ? ORDER BY article_id`, queryID)
	if err != nil {
		return nil, fmt.Errorf("get filtering results: %w", err)
	}
	defer rows.Close()

	var results []*domain.FilteringResult
	for rows.Next() {
		var (
			r           domain.FilteringResult
			matchResult int
			explanation sql.NullString
			decisionDT  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ArticleID, &r.FilteringQueryID,
			&matchResult, &explanation, &decisionDT); err != nil {
			return nil, err
		}
		r.MatchResult = matchResult != 0
		r.Explanation = explanation.String
		r.DecisionDatetime = parseTime(decisionDT)
		results = append(results, &r)
	}
	return results, rows.Err()
}
