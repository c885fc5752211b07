package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/backend/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertRecordDeduplicatesOnDOI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &domain.ResearchArticle{
		Title:   "Deep learning for protein folding",
		DOIRaw:  "https://doi.org/10.1000/ABC",
		DOINorm: "10.1000/abc",
	}
	id1, inserted, err := s.UpsertRecord(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same DOI again: update, not insert; import_datetime untouched.
	stored, err := s.GetRecordByID(ctx, id1)
	require.NoError(t, err)
	originalImport := stored.ImportDatetime

	citations := int64(17)
	second := &domain.ResearchArticle{
		Title:          "Deep learning for protein folding",
		DOINorm:        "10.1000/abc",
		TotalCitations: &citations,
		Authors:        "Smith, J.",
		ImportDatetime: time.Now().UTC().Add(time.Hour),
	}
	id2, inserted, err := s.UpsertRecord(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id1, id2)

	stored, err = s.GetRecordByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, originalImport, stored.ImportDatetime)
	require.NotNil(t, stored.TotalCitations)
	assert.Equal(t, int64(17), *stored.TotalCitations)
	assert.Equal(t, "Smith, J.", stored.Authors)
	// The raw DOI from the first import survives the empty update value.
	assert.Equal(t, "https://doi.org/10.1000/ABC", stored.DOIRaw)
}

func TestUpsertRecordWithoutDOIAlwaysInserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &domain.ResearchArticle{Title: "Untracked proceedings paper"}
	_, inserted, err := s.UpsertRecord(ctx, a)
	require.NoError(t, err)
	assert.True(t, inserted)

	b := &domain.ResearchArticle{Title: "Untracked proceedings paper"}
	_, inserted, err = s.UpsertRecord(ctx, b)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestEnrichmentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &domain.ResearchArticle{Title: "Record one", DOINorm: "10.1/one"}
	_, _, err := s.UpsertRecord(ctx, a)
	require.NoError(t, err)

	pending, err := s.GetRecordsNeedingEnrichment(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	enriched, err := s.GetEnrichedRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, enriched)

	now := time.Now().UTC()
	a.Abstract = "An abstract."
	a.AbstractSource = "crossref"
	a.IsOA = true
	a.OAStatus = "gold"
	a.EnrichmentDatetime = &now
	require.NoError(t, s.UpdateRecordEnrichment(ctx, a))

	pending, err = s.GetRecordsNeedingEnrichment(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	enriched, err = s.GetEnrichedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, "An abstract.", enriched[0].Abstract)
	assert.Equal(t, "crossref", enriched[0].AbstractSource)
	assert.True(t, enriched[0].IsOA)
	require.NotNil(t, enriched[0].EnrichmentDatetime)
}

func TestClearEnrichmentForEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	withAbstract := &domain.ResearchArticle{Title: "Has abstract", DOINorm: "10.1/a"}
	_, _, err := s.UpsertRecord(ctx, withAbstract)
	require.NoError(t, err)
	withAbstract.Abstract = "text"
	withAbstract.EnrichmentDatetime = &now
	require.NoError(t, s.UpdateRecordEnrichment(ctx, withAbstract))

	withoutAbstract := &domain.ResearchArticle{Title: "No abstract", DOINorm: "10.1/b"}
	_, _, err = s.UpsertRecord(ctx, withoutAbstract)
	require.NoError(t, err)
	withoutAbstract.AbstractNoRetrievalReason = "Crossref: no abstract in response"
	withoutAbstract.EnrichmentDatetime = &now
	require.NoError(t, s.UpdateRecordEnrichment(ctx, withoutAbstract))

	reopened, err := s.ClearEnrichmentForEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reopened)

	pending, err := s.GetRecordsNeedingEnrichment(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "No abstract", pending[0].Title)
}

func TestArticleVersionLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pre := &domain.ResearchArticle{Title: "Preprint", DOINorm: "10.48550/arxiv.2103.12345", IsPreprint: true}
	pub := &domain.ResearchArticle{Title: "Published", DOINorm: "10.1038/xyz"}
	_, _, err := s.UpsertRecord(ctx, pre)
	require.NoError(t, err)
	_, _, err = s.UpsertRecord(ctx, pub)
	require.NoError(t, err)

	link := &domain.ArticleVersionLink{PreprintID: pre.ID, PublishedID: pub.ID, DiscoverySource: "arxiv"}
	require.NoError(t, s.InsertArticleVersionLink(ctx, link))

	has, err := s.HasArticleVersionLink(ctx, pre.ID, pub.ID)
	require.NoError(t, err)
	assert.True(t, has)

	// Idempotent on re-insert.
	require.NoError(t, s.InsertArticleVersionLink(ctx, link))

	// Self-links are rejected.
	err = s.InsertArticleVersionLink(ctx, &domain.ArticleVersionLink{PreprintID: pre.ID, PublishedID: pre.ID})
	assert.Error(t, err)

	has, err = s.HasArticleVersionLink(ctx, pub.ID, pre.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGetRecordByDOINotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRecordByDOI(context.Background(), "10.9999/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
