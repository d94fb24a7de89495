package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/models"
)

// Removes duplicate (line item, SKU) ledger rows left behind by stores
// migrated from the pre-composite-key schema. Keeps the earliest row.
func main() {
	dryRun := flag.Bool("dry-run", false, "Report duplicate pairs without deleting anything.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	pairs, err := models.FindDuplicateLedgerPairs(ctx, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to scan ledger: %v\n", err)
		os.Exit(1)
	}
	if len(pairs) == 0 {
		fmt.Println("no duplicate ledger rows")
		return
	}

	var removed int64
	for _, pair := range pairs {
		fmt.Printf("line_item=%s sku=%s rows=%d\n", pair.ID, pair.Sku, pair.Count)
		if *dryRun {
			continue
		}
		n, err := models.RemoveDuplicateLedgerRows(ctx, db, pair)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to remove duplicates for %s/%s: %v\n", pair.ID, pair.Sku, err)
			os.Exit(1)
		}
		removed += n
	}

	if *dryRun {
		fmt.Printf("%d duplicate pairs found (dry run)\n", len(pairs))
		return
	}
	fmt.Printf("removed %d duplicate rows across %d pairs\n", removed, len(pairs))
}
