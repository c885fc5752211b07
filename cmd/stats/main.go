// Command stats prints the outcome of a filter run and its download
// status breakdown, or the corpus-wide breakdown when no query is given.
//
// Usage:
//
//	stats [--query-id 3] [--test-data]
package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/scholarpipe/backend/internal/app"
)

func main() {
	var (
		queryID  = flag.Int64("query-id", 0, "filtering query to report on (0 = all downloads)")
		testData = flag.Bool("test-data", false, "use the test_data/ root instead of data/")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	_, st, err := app.Setup(*testData, *verbose)
	if err != nil {
		app.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	var statsQuery *int64
	if *queryID > 0 {
		statsQuery = queryID

		fq, err := st.GetFilteringQuery(ctx, *queryID)
		if err != nil {
			app.Fatal(err)
		}
		fmt.Printf("filtering query %d (%s)\n", fq.ID, fq.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Printf("  model:   %s\n", fq.Model)
		fmt.Printf("  query:   %s\n", fq.Query)
		if fq.Exclude != "" {
			fmt.Printf("  exclude: %s\n", fq.Exclude)
		}
		fmt.Printf("  total=%d matched=%d failed=%d\n", fq.TotalRecords, fq.MatchedCount, fq.FailedCount)
	}

	stats, err := st.GetPDFDownloadStats(ctx, statsQuery)
	if err != nil {
		app.Fatal(err)
	}
	fmt.Println("pdf downloads:")
	if len(stats) == 0 {
		fmt.Println("  (none)")
		return
	}
	statuses := make([]string, 0, len(stats))
	for status := range stats {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("  %-14s %d\n", status, stats[status])
	}
}
