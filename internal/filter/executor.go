// Package filter runs the LLM relevance filter over the enriched corpus
// and persists one audited decision per record.
package filter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/llm"
)

// Repository is the slice of the store the executor needs.
type Repository interface {
	GetEnrichedRecords(ctx context.Context) ([]*domain.ResearchArticle, error)
	CreateFilteringQuery(ctx context.Context, q *domain.FilteringQuery) (int64, error)
	UpdateFilteringQueryCounts(ctx context.Context, id int64, total, matched, failed int) error
	BatchInsertFilteringResults(ctx context.Context, results []*domain.FilteringResult) error
}

// Executor drives one filter run with bounded concurrency.
type Executor struct {
	repo          Repository
	completer     llm.Completer
	maxConcurrent int
}

// NewExecutor builds an executor. maxConcurrent caps in-flight model
// calls.
func NewExecutor(repo Repository, completer llm.Completer, maxConcurrent int) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Executor{repo: repo, completer: completer, maxConcurrent: maxConcurrent}
}

// Summary reports the outcome of one filter run.
type Summary struct {
	QueryID  int64
	Total    int
	Matched  int
	Failed   int
	Warnings int
}

// Run evaluates every enriched record against (query, exclude), writes
// all decisions in one batch, and finalizes the FilteringQuery counts.
// No record is ever silently dropped: a failed model call becomes an
// ERROR decision row.
func (e *Executor) Run(ctx context.Context, query, exclude string) (*Summary, error) {
	records, err := e.repo.GetEnrichedRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	fq := &domain.FilteringQuery{
		Query:         query,
		Exclude:       exclude,
		Model:         e.completer.Model(),
		MaxConcurrent: e.maxConcurrent,
	}
	queryID, err := e.repo.CreateFilteringQuery(ctx, fq)
	if err != nil {
		return nil, fmt.Errorf("create filtering query: %w", err)
	}

	log.Info().
		Int64("query_id", queryID).
		Int("total_records", len(records)).
		Int("max_concurrent", e.maxConcurrent).
		Msg("filter run started")

	var mu sync.Mutex
	results := make([]*domain.FilteringResult, 0, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			result := e.evaluate(gctx, rec, queryID, query, exclude)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := e.repo.BatchInsertFilteringResults(ctx, results); err != nil {
		return nil, fmt.Errorf("persist filtering results: %w", err)
	}

	summary := &Summary{QueryID: queryID, Total: len(records)}
	for _, r := range results {
		if r.MatchResult {
			summary.Matched++
		}
		if r.IsError() {
			summary.Failed++
		}
		if r.IsWarning() {
			summary.Warnings++
		}
	}
	if err := e.repo.UpdateFilteringQueryCounts(ctx, queryID, summary.Total, summary.Matched, summary.Failed); err != nil {
		return nil, fmt.Errorf("finalize filtering query: %w", err)
	}

	log.Info().
		Int64("query_id", queryID).
		Int("total", summary.Total).
		Int("matched", summary.Matched).
		Int("failed", summary.Failed).
		Int("warnings", summary.Warnings).
		Msg("filter run completed")
	return summary, nil
}

func (e *Executor) evaluate(ctx context.Context, rec *domain.ResearchArticle, queryID int64, query, exclude string) *domain.FilteringResult {
	result := &domain.FilteringResult{
		ArticleID:        rec.ID,
		FilteringQueryID: queryID,
		DecisionDatetime: time.Now().UTC(),
	}

	content, err := e.completer.Complete(ctx, systemPrompt,
		buildUserPrompt(query, exclude, rec.Title, rec.Abstract))
	if err != nil {
		log.Error().Int64("article_id", rec.ID).Str("doi", rec.DOINorm).Err(err).Msg("model call failed")
		result.MatchResult = false
		result.Explanation = errorExplanation(err)
		return result
	}

	result.MatchResult, result.Explanation = parseDecision(content)
	log.Debug().
		Int64("article_id", rec.ID).
		Str("doi", rec.DOINorm).
		Bool("match", result.MatchResult).
		Msg("decision recorded")
	return result
}
