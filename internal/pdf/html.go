package pdf

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/httpx"
	"github.com/scholarpipe/backend/internal/ratelimit"
	"github.com/scholarpipe/backend/internal/store"
	"github.com/scholarpipe/backend/pkg/arxiv"
	"github.com/scholarpipe/backend/pkg/europepmc"
)

// htmlCandidate is one place a record's HTML full text may live.
type htmlCandidate struct {
	url     string
	rateKey string
}

// HTMLFetcher downloads the Open Access HTML full text for a record.
// Preprint servers publish HTML at locations derived from the DOI;
// other records are served only through locations Europe PMC marks open
// access. There is no page scraping.
type HTMLFetcher struct {
	httpClient *httpx.Client
	limiter    *ratelimit.Table
	repo       domain.ArtifactRepository
	dir        string
	maxBytes   int64
}

func NewHTMLFetcher(httpClient *httpx.Client, limiter *ratelimit.Table, repo domain.ArtifactRepository, dir string, maxBytes int64) *HTMLFetcher {
	return &HTMLFetcher{
		httpClient: httpClient,
		limiter:    limiter,
		repo:       repo,
		dir:        dir,
		maxBytes:   maxBytes,
	}
}

// Fetch downloads the record's HTML full text, trying candidates in
// order until one succeeds. Every attempt is persisted; download
// failures become error rows, not returned errors. A record with a
// previously downloaded HTML comes back with that version untouched,
// and one with no candidate locations comes back (nil, nil).
func (f *HTMLFetcher) Fetch(ctx context.Context, a *domain.ResearchArticle) (*domain.HTMLVersion, error) {
	existing, err := f.repo.GetLatestDownloadedHTML(ctx, a.ID)
	if err == nil {
		log.Debug().Int64("article_id", a.ID).Str("path", existing.LocalPath).Msg("html already downloaded")
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	candidates := htmlCandidates(a)
	if len(candidates) == 0 {
		return nil, nil
	}
	return f.fetchCandidates(ctx, a.ID, candidates)
}

func (f *HTMLFetcher) fetchCandidates(ctx context.Context, articleID int64, candidates []htmlCandidate) (*domain.HTMLVersion, error) {
	var last *domain.HTMLVersion
	for _, cand := range candidates {
		version := &domain.HTMLVersion{
			ArticleID:         articleID,
			URL:               cand.url,
			RetrievedDatetime: time.Now().UTC(),
		}
		if err := f.download(ctx, cand, version); err != nil {
			version.ErrorMessage = err.Error()
			log.Warn().Int64("article_id", articleID).Str("url", cand.url).Err(err).Msg("html fetch failed")
		}

		id, err := f.repo.InsertHTMLVersion(ctx, version)
		if err != nil {
			return nil, fmt.Errorf("record html version: %w", err)
		}
		version.ID = id
		last = version
		if version.ErrorMessage == "" {
			log.Info().Int64("article_id", articleID).Str("path", version.LocalPath).Msg("html full text retrieved")
			return version, nil
		}
	}
	return last, nil
}

// htmlCandidates lists the record's HTML locations in preference order:
// the hosting preprint server first, then the Europe PMC open-access
// location captured during enrichment.
func htmlCandidates(a *domain.ResearchArticle) []htmlCandidate {
	var candidates []htmlCandidate

	switch a.PreprintSource {
	case domain.PreprintSourceArxiv:
		id := a.ArxivID
		if id == "" {
			id = arxiv.ExtractArxivIDFromDOI(a.DOINorm)
		}
		if id != "" {
			candidates = append(candidates, htmlCandidate{
				url:     "https://arxiv.org/html/" + id,
				rateKey: "arxiv",
			})
		}
	case domain.PreprintSourceBiorxiv:
		if a.DOINorm != "" {
			candidates = append(candidates, htmlCandidate{
				url:     "https://www.biorxiv.org/content/" + a.DOINorm + ".full",
				rateKey: "preprints",
			})
		}
	case domain.PreprintSourceMedrxiv:
		if a.DOINorm != "" {
			candidates = append(candidates, htmlCandidate{
				url:     "https://www.medrxiv.org/content/" + a.DOINorm + ".full-text",
				rateKey: "preprints",
			})
		}
	case domain.PreprintSourcePreprints:
		if u := preprintsOrgPDFURL(a.DOINorm); u != "" {
			candidates = append(candidates, htmlCandidate{
				url:     PreprintsOrgLandingURL(u),
				rateKey: "preprints",
			})
		}
	}

	if u := openAccessHTMLURL(a); u != "" {
		candidates = append(candidates, htmlCandidate{url: u, rateKey: "europepmc"})
	}
	return candidates
}

func openAccessHTMLURL(a *domain.ResearchArticle) string {
	raw := provenanceRaw(a, "europepmc")
	if raw == nil {
		return ""
	}
	result, err := europepmc.ParseSearchBody(raw)
	if err != nil || result == nil {
		return ""
	}
	return result.HTMLURL()
}

func (f *HTMLFetcher) download(ctx context.Context, cand htmlCandidate, version *domain.HTMLVersion) error {
	if err := f.limiter.Wait(ctx, cand.rateKey); err != nil {
		return err
	}
	headers := http.Header{}
	headers.Set("User-Agent", browserUserAgent)
	resp, err := f.httpClient.GetWithRetry(ctx, cand.url, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "text/html") && !strings.HasPrefix(contentType, "application/xhtml") {
		return fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(f.dir, uuid.NewString()+".part")
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	h := sha1.New()
	written, err := io.Copy(io.MultiWriter(out, h), io.LimitReader(resp.Body, f.maxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if written > f.maxBytes {
		os.Remove(tmp)
		return fmt.Errorf("exceeds %d bytes", f.maxBytes)
	}

	final := filepath.Join(f.dir, hex.EncodeToString(h.Sum(nil))+".html")
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return err
	}
	version.LocalPath = final
	version.FileSizeBytes = &written
	return nil
}
