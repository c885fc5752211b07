// Command ingest loads a CSV export of scholarly records into the store,
// normalizing DOIs and deduplicating on them.
//
// Usage:
//
//	ingest --file records.csv [--test-data]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/scholarpipe/backend/internal/app"
	"github.com/scholarpipe/backend/internal/ingest"
)

func main() {
	var (
		file     = flag.String("file", "", "path to the input CSV (required)")
		testData = flag.Bool("test-data", false, "use the test_data/ root instead of data/")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()
	if *file == "" {
		fmt.Fprintln(os.Stderr, "ingest: --file is required")
		flag.Usage()
		os.Exit(2)
	}

	_, st, err := app.Setup(*testData, *verbose)
	if err != nil {
		app.Fatal(err)
	}
	defer st.Close()

	records, err := ingest.Load(*file)
	if err != nil {
		app.Fatal(err)
	}

	summary, err := ingest.NewImporter(st).Run(context.Background(), records)
	if err != nil {
		app.Fatal(err)
	}
	fmt.Printf("ingest: total=%d inserted=%d updated=%d failed=%d\n",
		summary.Total, summary.Inserted, summary.Updated, summary.Failed)
}
