// Command pdfs resolves and downloads Open Access PDFs for the records
// matched by one filter run. Every attempt is recorded; the run ends
// with a status breakdown.
//
// Usage:
//
//	pdfs --query-id 3 [--test-data]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/scholarpipe/backend/internal/app"
	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/httpx"
	"github.com/scholarpipe/backend/internal/pdf"
	"github.com/scholarpipe/backend/internal/ratelimit"
)

func main() {
	var (
		queryID  = flag.Int64("query-id", 0, "filtering query whose matches to download (required)")
		testData = flag.Bool("test-data", false, "use the test_data/ root instead of data/")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()
	if *queryID <= 0 {
		fmt.Fprintln(os.Stderr, "pdfs: --query-id is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, st, err := app.Setup(*testData, *verbose)
	if err != nil {
		app.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	records, err := st.GetMatchedRecordsByFilteringQuery(ctx, *queryID)
	if err != nil {
		app.Fatal(err)
	}

	httpClient := httpx.New(cfg.HTTPTimeout, cfg.HTTPRetries, app.UserAgent(cfg))
	limiter := ratelimit.NewTable()
	resolver := pdf.NewResolver()
	downloader := pdf.NewDownloader(httpClient, limiter, st, cfg.PDFDir(), cfg.MaxPDFSizeBytes)

	for _, rec := range records {
		candidates := resolver.Resolve(rec)
		resolution := &domain.PDFResolution{
			ArticleID:        rec.ID,
			FilteringQueryID: queryID,
			Timestamp:        time.Now().UTC(),
			Candidates:       candidates,
		}
		if _, err := st.InsertPDFResolution(ctx, resolution); err != nil {
			app.Fatal(err)
		}
		if _, err := downloader.Download(ctx, rec.ID, queryID, candidates); err != nil {
			app.Fatal(err)
		}
	}

	stats, err := st.GetPDFDownloadStats(ctx, queryID)
	if err != nil {
		app.Fatal(err)
	}
	fmt.Printf("pdfs: query_id=%d records=%d\n", *queryID, len(records))
	statuses := make([]string, 0, len(stats))
	for status := range stats {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("  %-14s %d\n", status, stats[status])
	}
}
