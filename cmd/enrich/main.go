// Command enrich fills abstracts, Open Access status, and preprint
// version links for every record that has not been enriched yet.
// Discovering a published version creates a new record, so the run
// loops in passes until the corpus is stable.
//
// Usage:
//
//	enrich [--test-data] [--retry-empty] [--max-passes 2] [--max-concurrent 5]
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/scholarpipe/backend/internal/app"
	"github.com/scholarpipe/backend/internal/enrich"
	"github.com/scholarpipe/backend/internal/httpx"
	"github.com/scholarpipe/backend/internal/ratelimit"
)

func main() {
	var (
		testData      = flag.Bool("test-data", false, "use the test_data/ root instead of data/")
		retryEmpty    = flag.Bool("retry-empty", false, "re-open enriched records that never got an abstract")
		maxPasses     = flag.Int("max-passes", 0, "override the configured pass limit")
		maxConcurrent = flag.Int("max-concurrent", 0, "override the configured concurrency limit")
		verbose       = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	cfg, st, err := app.Setup(*testData, *verbose)
	if err != nil {
		app.Fatal(err)
	}
	defer st.Close()

	if err := cfg.RequireContactEmail(); err != nil {
		app.Fatal(err)
	}

	httpClient := httpx.New(cfg.HTTPTimeout, cfg.HTTPRetries, app.UserAgent(cfg))
	limiter := ratelimit.NewTable()
	clients := enrich.NewClients(httpClient, cfg)

	opts := enrich.Options{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxPasses:     cfg.MaxPasses,
		RetryEmpty:    *retryEmpty,
	}
	if *maxPasses > 0 {
		opts.MaxPasses = *maxPasses
	}
	if *maxConcurrent > 0 {
		opts.MaxConcurrent = *maxConcurrent
	}

	orchestrator := enrich.NewOrchestrator(
		st,
		enrich.NewPreprintEnricher(clients, limiter, st),
		enrich.NewAbstractPipeline(clients, limiter),
		enrich.NewOAEnricher(clients, limiter),
		opts,
	)
	summary, err := orchestrator.Run(context.Background())
	if err != nil {
		app.Fatal(err)
	}
	fmt.Printf("enrich: passes=%d total=%d succeeded=%d failed=%d new_records=%d\n",
		summary.Passes, summary.Total, summary.Succeeded, summary.Failed, summary.NewRecords)
}
