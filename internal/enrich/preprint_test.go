package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/backend/internal/domain"
)

func seedPreprint(t *testing.T, p *PreprintEnricher) *domain.ResearchArticle {
	t.Helper()
	a := &domain.ResearchArticle{
		Title:          "Preprint findings",
		DOIRaw:         "10.1101/2023.02.02.533333",
		DOINorm:        "10.1101/2023.02.02.533333",
		PubDate:        "2023-02-02",
		Authors:        "Lee, K",
		IsPreprint:     true,
		PreprintSource: domain.PreprintSourceBiorxiv,
	}
	id, _, err := p.repo.UpsertRecord(context.Background(), a)
	require.NoError(t, err)
	a.ID = id
	return a
}

func TestResolvePublishedCreatesAndLinks(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	p := &PreprintEnricher{repo: st}
	preprint := seedPreprint(t, p)

	report := &PreprintReport{Provenance: domain.ProvenanceMap{}}
	// Announced DOIs arrive in whatever shape the platform uses.
	require.NoError(t, p.resolvePublished(ctx, preprint, "https://doi.org/10.1038/S41586-023-0002-2", report))

	assert.Equal(t, "10.1038/s41586-023-0002-2", report.PublishedDOI)
	assert.True(t, report.CreatedPublished)
	require.NotZero(t, report.PublishedID)

	published, err := st.GetRecordByID(ctx, report.PublishedID)
	require.NoError(t, err)
	assert.Equal(t, preprint.Title, published.Title)
	assert.Equal(t, preprint.Authors, published.Authors)
	assert.Equal(t, preprint.PubDate, published.PubDate)
	assert.False(t, published.IsPreprint)
	assert.Nil(t, published.EnrichmentDatetime)

	linked, err := st.HasArticleVersionLink(ctx, preprint.ID, published.ID)
	require.NoError(t, err)
	assert.True(t, linked)

	// The created record waits for the next enrichment pass.
	needing, err := st.GetRecordsNeedingEnrichment(ctx)
	require.NoError(t, err)
	ids := make([]int64, 0, len(needing))
	for _, r := range needing {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, published.ID)
}

func TestResolvePublishedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	p := &PreprintEnricher{repo: st}
	preprint := seedPreprint(t, p)

	first := &PreprintReport{Provenance: domain.ProvenanceMap{}}
	require.NoError(t, p.resolvePublished(ctx, preprint, "10.1038/s41586-023-0002-2", first))
	second := &PreprintReport{Provenance: domain.ProvenanceMap{}}
	require.NoError(t, p.resolvePublished(ctx, preprint, "10.1038/s41586-023-0002-2", second))

	assert.True(t, first.CreatedPublished)
	assert.False(t, second.CreatedPublished)
	assert.Equal(t, first.PublishedID, second.PublishedID)
}

func TestResolvePublishedIgnoresSelfAndEmpty(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	p := &PreprintEnricher{repo: st}
	preprint := seedPreprint(t, p)

	report := &PreprintReport{Provenance: domain.ProvenanceMap{}}
	require.NoError(t, p.resolvePublished(ctx, preprint, preprint.DOINorm, report))
	assert.Empty(t, report.PublishedDOI)
	require.NoError(t, p.resolvePublished(ctx, preprint, "", report))
	assert.Zero(t, report.PublishedID)
}

func TestProcessSkipsNonPreprints(t *testing.T) {
	p := &PreprintEnricher{repo: newStore(t)}
	report, err := p.Process(context.Background(), &domain.ResearchArticle{
		Title: "Journal article", DOINorm: "10.1038/s41586-021-01234-5", SourceTitle: "Nature",
	})
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestRateKeyFor(t *testing.T) {
	assert.Equal(t, "arxiv", rateKeyFor(domain.PreprintSourceArxiv))
	assert.Equal(t, "preprints", rateKeyFor(domain.PreprintSourceBiorxiv))
	assert.Equal(t, "preprints", rateKeyFor(domain.PreprintSourceMedrxiv))
	assert.Equal(t, "preprints", rateKeyFor(domain.PreprintSourcePreprints))
}
