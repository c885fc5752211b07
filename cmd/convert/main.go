// Command convert locates the manually produced DOCX for each record
// matched by one filter run and converts it to Markdown in two variants,
// with and without image extraction.
//
// Usage:
//
//	convert --query-id 3 [--test-data]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/scholarpipe/backend/internal/app"
	"github.com/scholarpipe/backend/internal/convert"
)

func main() {
	var (
		queryID  = flag.Int64("query-id", 0, "filtering query whose matches to convert (required)")
		testData = flag.Bool("test-data", false, "use the test_data/ root instead of data/")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()
	if *queryID <= 0 {
		fmt.Fprintln(os.Stderr, "convert: --query-id is required")
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

	locator := convert.NewDocxLocator(st, cfg.DocxDir())
	service := convert.NewDocxService(st, convert.NewPandocConverter(cfg.DocxConverter), cfg.MarkdownFromDocxDir())

	// Records located on an earlier run keep their DocxVersion rows.
	existing, err := st.GetDocxVersionsByQuery(ctx, *queryID)
	if err != nil {
		app.Fatal(err)
	}
	alreadyLocated := make(map[int64]bool, len(existing))
	for _, v := range existing {
		alreadyLocated[v.ArticleID] = true
	}

	var located, converted, missing, failed, skipped int
	for _, rec := range records {
		if alreadyLocated[rec.ID] {
			skipped++
			continue
		}
		docx, err := locator.Locate(ctx, rec)
		if err != nil {
			app.Fatal(err)
		}
		if docx == nil {
			missing++
			continue
		}
		located++

		versions, err := service.ConvertDocx(ctx, docx)
		if err != nil {
			app.Fatal(err)
		}
		for _, v := range versions {
			if v.ErrorMessage == "" {
				converted++
			} else {
				failed++
			}
		}
	}
	fmt.Printf("convert: query_id=%d records=%d docx_located=%d variants_converted=%d variants_failed=%d missing=%d skipped=%d\n",
		*queryID, len(records), located, converted, failed, missing, skipped)
}
