package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/backend/internal/domain"
)

type fakeRepo struct {
	records     []*domain.ResearchArticle
	query       *domain.FilteringQuery
	results     []*domain.FilteringResult
	finalTotals [3]int
}

func (f *fakeRepo) GetEnrichedRecords(ctx context.Context) ([]*domain.ResearchArticle, error) {
	return f.records, nil
}

func (f *fakeRepo) CreateFilteringQuery(ctx context.Context, q *domain.FilteringQuery) (int64, error) {
	f.query = q
	return 42, nil
}

func (f *fakeRepo) UpdateFilteringQueryCounts(ctx context.Context, id int64, total, matched, failed int) error {
	f.finalTotals = [3]int{total, matched, failed}
	return nil
}

func (f *fakeRepo) BatchInsertFilteringResults(ctx context.Context, results []*domain.FilteringResult) error {
	f.results = results
	return nil
}

// fakeCompleter scripts one response (or error) per article title.
type fakeCompleter struct {
	responses map[string]string
	errs      map[string]error
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	for title, err := range f.errs {
		if strings.Contains(userPrompt, title) {
			return "", err
		}
	}
	for title, resp := range f.responses {
		if strings.Contains(userPrompt, title) {
			return resp, nil
		}
	}
	return "", fmt.Errorf("no scripted response")
}

func (f *fakeCompleter) Model() string { return "test-model" }

func TestExecutorRun(t *testing.T) {
	repo := &fakeRepo{
		records: []*domain.ResearchArticle{
			{ID: 1, Title: "alpha study", Abstract: "a"},
			{ID: 2, Title: "beta study", Abstract: "b"},
			{ID: 3, Title: "gamma study", Abstract: "c"},
			{ID: 4, Title: "delta study", Abstract: "d"},
		},
	}
	completer := &fakeCompleter{
		responses: map[string]string{
			"alpha study": `{"match": true, "explanation": "Relevant."}`,
			"beta study":  `{"match": false, "explanation": "Off topic."}`,
			"gamma study": `{"match": true}`,
		},
		errs: map[string]error{
			"delta study": errors.New("rate limited"),
		},
	}

	summary, err := NewExecutor(repo, completer, 2).Run(context.Background(), "inclusion", "exclusion")
	require.NoError(t, err)

	assert.Equal(t, int64(42), summary.QueryID)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Matched) // alpha + gamma (warning still counts as match_result)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Warnings)

	require.Len(t, repo.results, 4)
	byArticle := map[int64]*domain.FilteringResult{}
	for _, r := range repo.results {
		byArticle[r.ArticleID] = r
		assert.Equal(t, int64(42), r.FilteringQueryID)
		assert.False(t, r.DecisionDatetime.IsZero())
	}

	assert.True(t, byArticle[1].Matched())
	assert.False(t, byArticle[2].MatchResult)
	assert.True(t, byArticle[3].IsWarning())
	assert.False(t, byArticle[3].Matched())
	assert.True(t, byArticle[4].IsError())
	assert.Equal(t, "ERROR: rate limited", byArticle[4].Explanation)

	assert.Equal(t, [3]int{4, 2, 1}, repo.finalTotals)
	require.NotNil(t, repo.query)
	assert.Equal(t, "test-model", repo.query.Model)
	assert.Equal(t, "inclusion", repo.query.Query)
	assert.Equal(t, "exclusion", repo.query.Exclude)
}

func TestExecutorRunEmptyCorpus(t *testing.T) {
	repo := &fakeRepo{}
	summary, err := NewExecutor(repo, &fakeCompleter{}, 5).Run(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Empty(t, repo.results)
}
