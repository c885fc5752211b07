package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// scriptedPreprints announces a fixed published DOI for preprint records
// and runs the real resolution against the store.
type scriptedPreprints struct {
	enricher     *PreprintEnricher
	publishedDOI string
}

func (s *scriptedPreprints) Process(ctx context.Context, a *domain.ResearchArticle) (*PreprintReport, error) {
	if !a.IsPreprint {
		return nil, nil
	}
	report := &PreprintReport{Provenance: domain.ProvenanceMap{
		a.PreprintSource: {Source: a.PreprintSource, Timestamp: time.Now().UTC()},
	}}
	if err := s.enricher.resolvePublished(ctx, a, s.publishedDOI, report); err != nil {
		return report, err
	}
	return report, nil
}

// scriptedAbstracts answers from a DOI map; unknown DOIs fail with two
// canned reasons.
type scriptedAbstracts struct {
	byDOI map[string]string
}

func (s *scriptedAbstracts) Run(ctx context.Context, a *domain.ResearchArticle) ([]string, domain.ProvenanceMap) {
	if abstract, ok := s.byDOI[a.DOINorm]; ok {
		a.Abstract = abstract
		a.AbstractSource = "crossref"
		return nil, domain.ProvenanceMap{"crossref": {Source: "crossref", Timestamp: time.Now().UTC()}}
	}
	return []string{
		"Semantic Scholar: no abstract in response",
		"Crossref: connection reset",
	}, domain.ProvenanceMap{}
}

type noopOA struct{}

func (noopOA) Enrich(ctx context.Context, a *domain.ResearchArticle) (domain.ProvenanceMap, error) {
	return nil, nil
}

func TestOrchestratorDiscoversPublishedVersion(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	preprintID, _, err := st.UpsertRecord(ctx, &domain.ResearchArticle{
		Title:          "Early findings",
		DOIRaw:         "10.1101/2023.01.01.522222",
		DOINorm:        "10.1101/2023.01.01.522222",
		Authors:        "Smith, J",
		IsPreprint:     true,
		PreprintSource: domain.PreprintSourceBiorxiv,
	})
	require.NoError(t, err)
	plainID, _, err := st.UpsertRecord(ctx, &domain.ResearchArticle{
		Title: "Plain journal article", DOIRaw: "10.1000/plain", DOINorm: "10.1000/plain",
	})
	require.NoError(t, err)

	const publishedDOI = "10.1038/s41586-023-0001-1"
	o := NewOrchestrator(st,
		&scriptedPreprints{enricher: &PreprintEnricher{repo: st}, publishedDOI: publishedDOI},
		&scriptedAbstracts{byDOI: map[string]string{
			"10.1000/plain": "Plain abstract.",
			publishedDOI:    "Published abstract.",
		}},
		noopOA{},
		Options{MaxConcurrent: 2, MaxPasses: 3},
	)

	summary, err := o.Run(ctx)
	require.NoError(t, err)

	// Pass 1 serves the two imported records and creates the published
	// one; pass 2 serves the created record.
	assert.Equal(t, 2, summary.Passes)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.NewRecords)

	published, err := st.GetRecordByDOI(ctx, publishedDOI)
	require.NoError(t, err)
	assert.Equal(t, "Early findings", published.Title)
	assert.False(t, published.IsPreprint)
	assert.Equal(t, "Published abstract.", published.Abstract)
	assert.Empty(t, published.AbstractNoRetrievalReason)
	require.NotNil(t, published.EnrichmentDatetime)

	linked, err := st.HasArticleVersionLink(ctx, preprintID, published.ID)
	require.NoError(t, err)
	assert.True(t, linked)

	preprint, err := st.GetRecordByID(ctx, preprintID)
	require.NoError(t, err)
	assert.Empty(t, preprint.Abstract)
	assert.Equal(t,
		"Semantic Scholar: no abstract in response; Crossref: connection reset",
		preprint.AbstractNoRetrievalReason)
	require.NotNil(t, preprint.EnrichmentDatetime)

	plain, err := st.GetRecordByID(ctx, plainID)
	require.NoError(t, err)
	assert.Equal(t, "Plain abstract.", plain.Abstract)

	remaining, err := st.GetRecordsNeedingEnrichment(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// A second run finds nothing to do.
	again, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Passes)
	assert.Equal(t, 0, again.Total)
}

// failingPersistRepo fails the first enrichment persist, then behaves.
type failingPersistRepo struct {
	domain.ArticleRepository
	failed bool
}

func (r *failingPersistRepo) UpdateRecordEnrichment(ctx context.Context, a *domain.ResearchArticle) error {
	if !r.failed {
		r.failed = true
		return errors.New("disk full")
	}
	return r.ArticleRepository.UpdateRecordEnrichment(ctx, a)
}

func TestOrchestratorRetriesFailedPersistNextPass(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	repo := &failingPersistRepo{ArticleRepository: st}

	_, _, err := st.UpsertRecord(ctx, &domain.ResearchArticle{
		Title: "Unlucky", DOIRaw: "10.1000/unlucky", DOINorm: "10.1000/unlucky",
	})
	require.NoError(t, err)

	o := NewOrchestrator(repo,
		&scriptedPreprints{enricher: &PreprintEnricher{repo: st}},
		&scriptedAbstracts{byDOI: map[string]string{"10.1000/unlucky": "Eventually persisted."}},
		noopOA{},
		Options{},
	)

	summary, err := o.Run(ctx)
	require.NoError(t, err)

	// Pass 1 fails the persist; pass 2 picks the record up again even
	// though pass 1 created no new records.
	assert.Equal(t, 2, summary.Passes)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)

	rec, err := st.GetRecordByDOI(ctx, "10.1000/unlucky")
	require.NoError(t, err)
	assert.Equal(t, "Eventually persisted.", rec.Abstract)
	require.NotNil(t, rec.EnrichmentDatetime)
}

func TestOrchestratorRetryEmpty(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	id, _, err := st.UpsertRecord(ctx, &domain.ResearchArticle{
		Title: "Stubborn", DOIRaw: "10.1000/stubborn", DOINorm: "10.1000/stubborn",
	})
	require.NoError(t, err)

	abstracts := &scriptedAbstracts{byDOI: map[string]string{}}
	o := NewOrchestrator(st, &scriptedPreprints{enricher: &PreprintEnricher{repo: st}}, abstracts, noopOA{}, Options{})

	_, err = o.Run(ctx)
	require.NoError(t, err)
	rec, err := st.GetRecordByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rec.Abstract)
	require.NotNil(t, rec.EnrichmentDatetime)

	// The source has the abstract now; RetryEmpty reopens the record.
	abstracts.byDOI["10.1000/stubborn"] = "Found at last."
	retry := NewOrchestrator(st, &scriptedPreprints{enricher: &PreprintEnricher{repo: st}}, abstracts, noopOA{}, Options{RetryEmpty: true})
	summary, err := retry.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)

	rec, err = st.GetRecordByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Found at last.", rec.Abstract)
	assert.Empty(t, rec.AbstractNoRetrievalReason)
}
