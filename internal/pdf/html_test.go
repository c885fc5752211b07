package pdf

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/httpx"
)

func TestHTMLCandidatesPreprintServers(t *testing.T) {
	arxivCands := htmlCandidates(&domain.ResearchArticle{
		DOINorm:        "10.48550/arxiv.2103.12345",
		PreprintSource: domain.PreprintSourceArxiv,
	})
	require.Len(t, arxivCands, 1)
	assert.Equal(t, "https://arxiv.org/html/2103.12345", arxivCands[0].url)
	assert.Equal(t, "arxiv", arxivCands[0].rateKey)

	bioCands := htmlCandidates(&domain.ResearchArticle{
		DOINorm:        "10.1101/2023.01.01.522222",
		PreprintSource: domain.PreprintSourceBiorxiv,
	})
	require.Len(t, bioCands, 1)
	assert.Equal(t, "https://www.biorxiv.org/content/10.1101/2023.01.01.522222.full", bioCands[0].url)

	medCands := htmlCandidates(&domain.ResearchArticle{
		DOINorm:        "10.1101/2023.03.03.544444",
		PreprintSource: domain.PreprintSourceMedrxiv,
	})
	require.Len(t, medCands, 1)
	assert.Equal(t, "https://www.medrxiv.org/content/10.1101/2023.03.03.544444.full-text", medCands[0].url)

	ppCands := htmlCandidates(&domain.ResearchArticle{
		DOINorm:        "10.20944/preprints202301.0123.v1",
		PreprintSource: domain.PreprintSourcePreprints,
	})
	require.Len(t, ppCands, 1)
	assert.Equal(t, "https://www.preprints.org/manuscript/202301.0123/v1", ppCands[0].url)
	assert.Equal(t, "preprints", ppCands[0].rateKey)
}

func europePMCProvenance(t *testing.T, htmlURL string) []byte {
	t.Helper()
	prov, err := json.Marshal(domain.ProvenanceMap{
		"europepmc": {
			Source:    "europepmc",
			Timestamp: time.Now().UTC(),
			Raw: json.RawMessage(`{"resultList":{"result":[{
				"fullTextUrlList":{"fullTextUrl":[
					{"url":"` + htmlURL + `","documentStyle":"html","availability":"Open access"}
				]}}]}}`),
		},
	})
	require.NoError(t, err)
	return prov
}

func TestHTMLCandidatesPreprintServerRanksFirst(t *testing.T) {
	cands := htmlCandidates(&domain.ResearchArticle{
		DOINorm:        "10.1101/2023.01.01.522222",
		PreprintSource: domain.PreprintSourceBiorxiv,
		Provenance:     europePMCProvenance(t, "https://europepmc.org/articles/PMC9"),
	})
	require.Len(t, cands, 2)
	assert.Contains(t, cands[0].url, "biorxiv.org")
	assert.Equal(t, "https://europepmc.org/articles/PMC9", cands[1].url)
}

func TestHTMLCandidatesNone(t *testing.T) {
	assert.Empty(t, htmlCandidates(&domain.ResearchArticle{DOINorm: "10.1000/plain"}))
}

func TestFetchFallsBackAndRecordsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>Full text</body></html>"))
	}))
	defer srv.Close()

	st, limiter, dir := newDownloadTestEnv(t)
	limiter.SetRate("preprints", 1000)
	articleID := seedArticle(t, st)

	f := NewHTMLFetcher(httpx.New(0, 0, "test-agent/1.0"), limiter, st, dir, 1<<20)

	// First candidate 404s, second succeeds; both get rows.
	got, err := f.fetchCandidates(context.Background(), articleID, []htmlCandidate{
		{url: srv.URL + "/gone", rateKey: "preprints"},
		{url: srv.URL + "/ok", rateKey: "europepmc"},
	})
	require.NoError(t, err)
	assert.Empty(t, got.ErrorMessage)
	assert.NotEmpty(t, got.LocalPath)
	body, err := os.ReadFile(got.LocalPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Full text")

	latest, err := st.GetLatestDownloadedHTML(context.Background(), articleID)
	require.NoError(t, err)
	assert.Equal(t, got.LocalPath, latest.LocalPath)

	// The failed attempt is on record too, as an error row.
	failed, err := f.fetchCandidates(context.Background(), articleID, []htmlCandidate{
		{url: srv.URL + "/gone", rateKey: "preprints"},
	})
	require.NoError(t, err)
	assert.Contains(t, failed.ErrorMessage, "status 404")
	assert.Empty(t, failed.LocalPath)
}

func TestFetchViaEuropePMCProvenance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>PMC full text</body></html>"))
	}))
	defer srv.Close()

	st, limiter, dir := newDownloadTestEnv(t)
	articleID := seedArticle(t, st)

	f := NewHTMLFetcher(httpx.New(0, 0, "test-agent/1.0"), limiter, st, dir, 1<<20)
	a := &domain.ResearchArticle{
		ID:         articleID,
		DOINorm:    "10.1000/dl",
		Provenance: europePMCProvenance(t, srv.URL+"/articles/PMC9"),
	}

	got, err := f.Fetch(context.Background(), a)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.ErrorMessage)
	assert.NotZero(t, got.ID)

	// A second fetch reuses the stored download instead of refetching.
	srv.Close()
	again, err := f.Fetch(context.Background(), a)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, got.ID, again.ID)
	assert.Equal(t, got.LocalPath, again.LocalPath)
}

func TestFetchNoCandidates(t *testing.T) {
	st, limiter, dir := newDownloadTestEnv(t)
	articleID := seedArticle(t, st)

	f := NewHTMLFetcher(httpx.New(0, 0, "test-agent/1.0"), limiter, st, dir, 1<<20)
	got, err := f.Fetch(context.Background(), &domain.ResearchArticle{ID: articleID, DOINorm: "10.1000/dl"})
	require.NoError(t, err)
	assert.Nil(t, got)
}
