package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/models"
	"github.com/mkstore/procurement_backend/operations"
	"github.com/mkstore/procurement_backend/tracker"
)

type noopLedger struct{}

func (noopLedger) AppendOperatedLineItems(ctx context.Context, rows []models.OperatedLineItem) error {
	for _, row := range rows {
		fmt.Printf("would append: line_item=%s sku=%s qty=%d delivery=%s\n", row.ID, row.Sku, row.Quantity, row.DeliveryDate)
	}
	return nil
}

type noopTickets struct{}

func (noopTickets) CreateTicket(ctx context.Context, t tracker.Ticket) error {
	fmt.Printf("would create ticket: %s\n", t.Summary)
	return nil
}

func main() {
	dryRun := flag.Bool("dry-run", false, "Select and compose without writing the ledger or posting tickets.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	products, err := cms.NewClientFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cms client: %v\n", err)
		os.Exit(1)
	}

	var runner operations.Runner
	if *dryRun {
		runner = operations.NewRunner(db, products, products, noopLedger{}, noopTickets{})
	} else {
		tickets, terr := tracker.NewClientFromEnv()
		if terr != nil {
			fmt.Fprintf(os.Stderr, "tracker client: %v\n", terr)
			os.Exit(1)
		}
		runner = operations.NewRunner(db, products, products, nil, tickets)
	}
	runner.Logger = config.GetLogger()

	start := time.Now()
	run := models.OperationRun{
		CorrelationId: uuid.NewString(),
		Status:        models.RunStatusRunning,
		TriggeredBy:   models.RunTriggeredCLI,
		StartedAt:     &start,
	}
	if !*dryRun {
		if err := db.WithContext(ctx).Create(&run).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to record run: %v\n", err)
			os.Exit(1)
		}
	}

	result, runErr := runner.Run(ctx)

	finished := time.Now()
	status := models.RunStatusSuccess
	if runErr != nil {
		status = models.RunStatusFailed
	} else if result.ErrorCount > 0 {
		status = models.RunStatusPartial
	}
	if !*dryRun {
		if err := db.WithContext(ctx).Model(&run).Updates(map[string]interface{}{
			"status":               status,
			"finished_at":          finished,
			"duration_ms":          finished.Sub(start).Milliseconds(),
			"candidate_count":      result.CandidateCount,
			"operated_by_schedule": result.OperatedBySchedule,
			"operated_by_bulk":     result.OperatedByBulk,
			"tickets_created":      result.TicketsCreated,
			"error_count":          result.ErrorCount,
			"last_error":           result.LastError,
		}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update run row: %v\n", err)
		}
	}

	fmt.Printf("status=%s candidates=%d schedule=%d bulk=%d tickets=%d errors=%d in %s\n",
		status, result.CandidateCount, result.OperatedBySchedule, result.OperatedByBulk,
		result.TicketsCreated, result.ErrorCount, finished.Sub(start))
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", runErr)
		os.Exit(1)
	}
}
