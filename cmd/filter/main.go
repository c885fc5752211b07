// Command filter evaluates every enriched record against an inclusion
// query and exclusion criteria with an LLM, recording one audited
// decision per record.
//
// Usage:
//
//	filter --query "..." [--exclude "..."] [--test-data] [--max-concurrent 5]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/scholarpipe/backend/internal/app"
	"github.com/scholarpipe/backend/internal/filter"
	"github.com/scholarpipe/backend/internal/llm"
)

func main() {
	var (
		query         = flag.String("query", "", "inclusive criteria (required)")
		exclude       = flag.String("exclude", "", "exclusive criteria")
		testData      = flag.Bool("test-data", false, "use the test_data/ root instead of data/")
		maxConcurrent = flag.Int("max-concurrent", 0, "override the configured concurrency limit")
		model         = flag.String("model", "", "override the configured model")
		verbose       = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()
	if *query == "" {
		fmt.Fprintln(os.Stderr, "filter: --query is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, st, err := app.Setup(*testData, *verbose)
	if err != nil {
		app.Fatal(err)
	}
	defer st.Close()

	if err := cfg.RequireAnthropicKey(); err != nil {
		app.Fatal(err)
	}
	llmModel := cfg.LLMModel
	if *model != "" {
		llmModel = *model
	}
	concurrency := cfg.MaxConcurrent
	if *maxConcurrent > 0 {
		concurrency = *maxConcurrent
	}

	completer, err := llm.NewAnthropicCompleter(cfg.AnthropicAPIKey, llmModel, cfg.LLMMaxTokens)
	if err != nil {
		app.Fatal(err)
	}

	summary, err := filter.NewExecutor(st, completer, concurrency).Run(context.Background(), *query, *exclude)
	if err != nil {
		app.Fatal(err)
	}
	fmt.Printf("filter: query_id=%d total=%d matched=%d failed=%d warnings=%d\n",
		summary.QueryID, summary.Total, summary.Matched, summary.Failed, summary.Warnings)
}
