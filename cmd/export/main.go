// Command export writes the records matched by one filter run to CSV.
//
// Usage:
//
//	export --query-id 3 --out matched.csv [--test-data]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/scholarpipe/backend/internal/app"
	"github.com/scholarpipe/backend/internal/export"
)

func main() {
	var (
		queryID  = flag.Int64("query-id", 0, "filtering query whose matches to export (required)")
		out      = flag.String("out", "", "output CSV path (required)")
		testData = flag.Bool("test-data", false, "use the test_data/ root instead of data/")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()
	if *queryID <= 0 || *out == "" {
		fmt.Fprintln(os.Stderr, "export: --query-id and --out are required")
		flag.Usage()
		os.Exit(2)
	}

	_, st, err := app.Setup(*testData, *verbose)
	if err != nil {
		app.Fatal(err)
	}
	defer st.Close()

	records, err := st.GetMatchedRecordsByFilteringQuery(context.Background(), *queryID)
	if err != nil {
		app.Fatal(err)
	}
	if err := export.WriteCSV(records, *out); err != nil {
		app.Fatal(err)
	}
	fmt.Printf("export: query_id=%d records=%d path=%s\n", *queryID, len(records), *out)
}
