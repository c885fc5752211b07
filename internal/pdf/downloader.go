package pdf

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
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
)

// browserUserAgent is sent to hosts that reject script-looking clients
// for otherwise freely downloadable files.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Downloader fetches candidate PDFs, validates them, and records every
// attempt. It never returns an error for a failed candidate: failures
// become status rows and the next candidate is tried.
type Downloader struct {
	httpClient *httpx.Client
	limiter    *ratelimit.Table
	repo       domain.ArtifactRepository
	dir        string
	maxBytes   int64
}

func NewDownloader(httpClient *httpx.Client, limiter *ratelimit.Table, repo domain.ArtifactRepository, dir string, maxBytes int64) *Downloader {
	return &Downloader{
		httpClient: httpClient,
		limiter:    limiter,
		repo:       repo,
		dir:        dir,
		maxBytes:   maxBytes,
	}
}

// Download walks the ranked candidates for one record, stopping at the
// first success. Every attempt is persisted; an empty candidate list is
// recorded as a synthetic no_candidates row. The returned download is
// the last attempt recorded.
func (d *Downloader) Download(ctx context.Context, articleID int64, queryID *int64, candidates []domain.PDFCandidate) (*domain.PDFDownload, error) {
	if len(candidates) == 0 {
		attempt := &domain.PDFDownload{
			ArticleID:        articleID,
			FilteringQueryID: queryID,
			Timestamp:        time.Now().UTC(),
			Status:           domain.DownloadStatusNoCandidates,
		}
		if _, err := d.repo.RecordPDFDownloadAttempt(ctx, attempt); err != nil {
			return nil, fmt.Errorf("record no_candidates: %w", err)
		}
		return attempt, nil
	}

	var last *domain.PDFDownload
	for _, cand := range candidates {
		attempt := d.tryCandidate(ctx, articleID, queryID, cand)
		if _, err := d.repo.RecordPDFDownloadAttempt(ctx, attempt); err != nil {
			return nil, fmt.Errorf("record download attempt: %w", err)
		}
		last = attempt
		if attempt.Status == domain.DownloadStatusDownloaded {
			log.Info().
				Int64("article_id", articleID).
				Str("source", cand.Source).
				Str("path", attempt.LocalPath).
				Msg("pdf downloaded")
			return attempt, nil
		}
		log.Warn().
			Int64("article_id", articleID).
			Str("source", cand.Source).
			Str("url", cand.URL).
			Str("status", attempt.Status).
			Str("error", attempt.ErrorMessage).
			Msg("pdf candidate failed")
	}
	return last, nil
}

// tryCandidate downloads one candidate. The original candidate URL is
// kept in URL; the URL actually fetched (after source transforms and
// redirects) lands in FinalURL.
func (d *Downloader) tryCandidate(ctx context.Context, articleID int64, queryID *int64, cand domain.PDFCandidate) *domain.PDFDownload {
	attempt := &domain.PDFDownload{
		ArticleID:        articleID,
		FilteringQueryID: queryID,
		Timestamp:        time.Now().UTC(),
		URL:              cand.URL,
		Source:           cand.Source,
	}

	if err := d.limiter.Wait(ctx, rateKey(cand.Source)); err != nil {
		attempt.Status = domain.DownloadStatusError
		attempt.ErrorMessage = err.Error()
		return attempt
	}

	fetchURL, headers := requestPolicy(cand)
	if cand.Source == SourceArxiv {
		// arXiv's CDN intermittently serves stale error pages; a short
		// random delay plus the cache-bust query works around it.
		sleepJitter(ctx, 2*time.Second)
	}

	resp, err := d.httpClient.GetWithRetry(ctx, fetchURL, headers)
	if err != nil {
		attempt.Status = domain.DownloadStatusError
		attempt.ErrorMessage = err.Error()
		return attempt
	}
	defer resp.Body.Close()
	attempt.FinalURL = resp.Request.URL.String()

	if resp.StatusCode != http.StatusOK {
		attempt.Status = domain.DownloadStatusUnavailable
		attempt.ErrorMessage = fmt.Sprintf("status %d", resp.StatusCode)
		return attempt
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "application/pdf") {
		attempt.Status = domain.DownloadStatusUnavailable
		attempt.ErrorMessage = fmt.Sprintf("unexpected content type %q", contentType)
		return attempt
	}

	path, sum, size, err := d.writePDF(resp.Body)
	if err != nil {
		if err == errTooLarge {
			attempt.Status = domain.DownloadStatusTooLarge
			attempt.ErrorMessage = fmt.Sprintf("exceeds %d bytes", d.maxBytes)
		} else {
			attempt.Status = domain.DownloadStatusError
			attempt.ErrorMessage = err.Error()
		}
		return attempt
	}

	attempt.Status = domain.DownloadStatusDownloaded
	attempt.LocalPath = path
	attempt.SHA1 = sum
	attempt.FileSizeBytes = &size
	return attempt
}

var errTooLarge = fmt.Errorf("pdf too large")

// writePDF streams the body to a temp file while hashing, enforcing the
// size cap, then renames into place as <sha1>.pdf. Re-downloading the
// same bytes is therefore idempotent on disk.
func (d *Downloader) writePDF(body io.Reader) (path string, sha1Hex string, size int64, err error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", "", 0, err
	}
	tmp := filepath.Join(d.dir, uuid.NewString()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return "", "", 0, err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	h := sha1.New()
	written, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(body, d.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", "", 0, err
	}
	if written > d.maxBytes {
		os.Remove(tmp)
		return "", "", 0, errTooLarge
	}

	sum := hex.EncodeToString(h.Sum(nil))
	final := filepath.Join(d.dir, sum+".pdf")
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", "", 0, err
	}
	return final, sum, written, nil
}

// requestPolicy returns the URL to fetch and the headers for a
// candidate. Every source gets a browser-class User-Agent and a PDF
// Accept header; some OA hosts additionally gate direct fetches on
// referers or cache behavior. The files themselves are freely licensed.
func requestPolicy(cand domain.PDFCandidate) (string, http.Header) {
	headers := http.Header{}
	headers.Set("User-Agent", browserUserAgent)
	headers.Set("Accept", "application/pdf,*/*;q=0.8")
	fetchURL := cand.URL

	switch cand.Source {
	case SourceArxiv:
		sep := "?"
		if strings.Contains(fetchURL, "?") {
			sep = "&"
		}
		fetchURL = fmt.Sprintf("%s%s_cb=%d", fetchURL, sep, time.Now().UnixMilli())
		headers.Set("Accept-Language", "en-US,en;q=0.9")
		headers.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		headers.Set("Pragma", "no-cache")
		headers.Set("Referer", "https://arxiv.org/")
	case SourceBiorxiv, SourceMedrxiv:
		headers.Set("Referer", "https://www.google.com/")
	case SourcePreprintsOrg:
		headers.Set("Referer", PreprintsOrgLandingURL(cand.URL))
	}
	return fetchURL, headers
}

func rateKey(source string) string {
	switch source {
	case SourceArxiv:
		return "arxiv"
	case SourceBiorxiv, SourceMedrxiv, SourcePreprintsOrg:
		return "preprints"
	case SourceEuropePMC:
		return "europepmc"
	default:
		return "default"
	}
}

func sleepJitter(ctx context.Context, max time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(rand.Int63n(int64(max)))):
	}
}
