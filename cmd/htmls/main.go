// Command htmls downloads the Open Access HTML full texts advertised for
// the records matched by one filter run, and converts each to Markdown.
//
// Usage:
//
//	htmls --query-id 3 [--test-data]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/scholarpipe/backend/internal/app"
	"github.com/scholarpipe/backend/internal/convert"
	"github.com/scholarpipe/backend/internal/httpx"
	"github.com/scholarpipe/backend/internal/pdf"
	"github.com/scholarpipe/backend/internal/ratelimit"
)

func main() {
	var (
		queryID  = flag.Int64("query-id", 0, "filtering query whose matches to fetch (required)")
		testData = flag.Bool("test-data", false, "use the test_data/ root instead of data/")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()
	if *queryID <= 0 {
		fmt.Fprintln(os.Stderr, "htmls: --query-id is required")
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
	fetcher := pdf.NewHTMLFetcher(httpClient, limiter, st, cfg.HTMLDir(), cfg.MaxPDFSizeBytes)
	converter := convert.NewHTMLService(st, cfg.MarkdownFromHTMLDir())

	var fetched, converted, skipped, failed int
	for _, rec := range records {
		version, err := fetcher.Fetch(ctx, rec)
		if err != nil {
			app.Fatal(err)
		}
		if version == nil {
			skipped++
			continue
		}
		if version.ErrorMessage != "" {
			failed++
			continue
		}
		fetched++

		md, err := converter.ConvertHTML(ctx, version)
		if err != nil {
			app.Fatal(err)
		}
		if md.ErrorMessage == "" {
			converted++
		}
	}
	fmt.Printf("htmls: query_id=%d records=%d fetched=%d converted=%d skipped=%d failed=%d\n",
		*queryID, len(records), fetched, converted, skipped, failed)
}
