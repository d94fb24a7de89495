package operations

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/mkstore/procurement_backend/appctx"
	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/models"
	"github.com/mkstore/procurement_backend/tracker"
	"github.com/mkstore/procurement_backend/utils"
	"github.com/sirupsen/logrus"
)

// RunResult carries one run's counters into the operation_runs row.
type RunResult struct {
	CandidateCount     int
	OperatedBySchedule int
	OperatedByBulk     int
	TicketsCreated     int
	ErrorCount         int
	LastError          string
}

// Runner executes one reconciliation pass over injected collaborators:
// fetch candidates, resolve products, select by schedule, select by bulk
// threshold over the remainder, emit tickets (best effort, independent per
// product), then append the ledger batches.
type Runner struct {
	Candidates CandidateSource
	Products   ProductSource
	Catalog    SKUCatalogSource
	Ledger     LedgerSink
	Tickets    TicketSink
	Logger     *logrus.Logger
	Now        func() time.Time
}

// Run executes a single pass. A data-integrity error aborts the whole batch
// before any ledger write; product resolution and ticket emission failures
// are counted and the run continues.
//
// Two overlapping runs can both see the same unprocessed candidate; the
// ledger's composite key and additive append keep that from producing double
// rows, but duplicate tickets are possible. Deliberately left as-is: the
// trigger is time-scheduled, not request-concurrent.
func (r Runner) Run(ctx context.Context) (RunResult, error) {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	logger := r.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	if correlationId, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok {
		logger.WithField("correlationId", correlationId).Info("reconciliation run started")
	}

	var result RunResult

	candidates, err := r.Candidates.NotOperatedLineItems(ctx)
	if err != nil {
		return result, err
	}
	result.CandidateCount = len(candidates)

	var productIDs []string
	for _, c := range candidates {
		productIDs = append(productIDs, StripProductGID(c.ProductID))
	}
	productIDs = utils.UniqueSlice(productIDs)

	products := map[string]*cms.Product{}
	for _, id := range productIDs {
		product, perr := r.Products.Product(ctx, id)
		if perr != nil {
			if errors.Is(perr, utils.ErrorRecordNotFound) {
				continue
			}
			config.LogError(logger, "worker.go", "Run", "Resolving product config", id, perr)
			result.ErrorCount++
			result.LastError = perr.Error()
			continue
		}
		products[id] = product
	}

	scheduleRows, err := SelectBySchedule(now, candidates, products, logger)
	if err != nil {
		return result, err
	}

	// Bulk selection scopes per product: any product with a schedule
	// selection this run is excluded wholesale from bulk consideration.
	selectedProducts := map[string]bool{}
	for _, row := range scheduleRows {
		selectedProducts[row.ProductID] = true
	}
	var remaining []models.NotOperatedLineItem
	for _, c := range candidates {
		if !selectedProducts[c.ProductID] {
			remaining = append(remaining, c)
		}
	}

	bulkRows, err := SelectByBulkThreshold(now, remaining, products, logger)
	if err != nil {
		return result, err
	}

	result.OperatedBySchedule = len(scheduleRows)
	result.OperatedByBulk = len(bulkRows)

	catalog := map[string]cms.SKU{}
	if r.Catalog != nil {
		catalog, err = r.Catalog.SKUCatalog(ctx)
		if err != nil {
			config.LogError(logger, "worker.go", "Run", "Listing SKU catalog", nil, err)
			result.ErrorCount++
			result.LastError = err.Error()
			catalog = cms.SKUCatalogFromProducts(products)
		}
	}

	r.emitTickets(ctx, now, scheduleRows, products, catalog, false, &result, logger)
	r.emitTickets(ctx, now, bulkRows, products, catalog, true, &result, logger)

	// Ledger append happens last, in two batches. A failure here leaves the
	// candidates unprocessed for the next run; tickets already sent are the
	// documented best-effort side effect.
	if err := r.Ledger.AppendOperatedLineItems(ctx, scheduleRows); err != nil {
		return result, err
	}
	if err := r.Ledger.AppendOperatedLineItems(ctx, bulkRows); err != nil {
		return result, err
	}
	return result, nil
}

func (r Runner) emitTickets(ctx context.Context, now time.Time, rows []models.OperatedLineItem, products map[string]*cms.Product, catalog map[string]cms.SKU, bulk bool, result *RunResult, logger *logrus.Logger) {
	if r.Tickets == nil || len(rows) == 0 {
		return
	}

	byProduct := map[string][]models.OperatedLineItem{}
	var productOrder []string
	for _, row := range rows {
		if _, ok := byProduct[row.ProductID]; !ok {
			productOrder = append(productOrder, row.ProductID)
		}
		byProduct[row.ProductID] = append(byProduct[row.ProductID], row)
	}
	sort.Strings(productOrder)

	for _, productID := range productOrder {
		product := products[StripProductGID(productID)]
		if product == nil {
			continue
		}
		ticket := ComposeTicket(now, byProduct[productID], product, catalog, bulk)
		if err := r.Tickets.CreateTicket(ctx, ticket); err != nil {
			config.LogError(logger, "worker.go", "emitTickets", "Creating purchasing ticket", productID, err)
			result.ErrorCount++
			result.LastError = err.Error()
			continue
		}
		result.TicketsCreated++
	}
}

// processOperationRun loads the run row, executes the reconciliation with the
// real collaborators, and records the outcome. Terminal runs are not re-run.
func processOperationRun(ctx context.Context, payload OperationPubSubPayload) error {
	if payload.RunId == 0 {
		return errors.New("invalid payload")
	}
	db := config.GetDB()
	if db == nil {
		return errors.New("database not initialized")
	}
	logger := config.GetLogger()

	var run models.OperationRun
	if err := db.WithContext(ctx).Where("id = ?", payload.RunId).Take(&run).Error; err != nil {
		return err
	}
	if run.Status == models.RunStatusSuccess || run.Status == models.RunStatusPartial || run.Status == models.RunStatusFailed {
		return nil
	}

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.WithContext(ctx).Model(&run).Updates(map[string]interface{}{
		"status":     models.RunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	productSource, err := cms.NewClientFromEnv()
	if err != nil {
		return finishOperationRun(ctx, &run, *startedAt, RunResult{ErrorCount: 1, LastError: err.Error()}, err)
	}
	ticketSink, err := tracker.NewClientFromEnv()
	if err != nil {
		return finishOperationRun(ctx, &run, *startedAt, RunResult{ErrorCount: 1, LastError: err.Error()}, err)
	}

	runner := Runner{
		Candidates: dbCandidateSource{db: db},
		Products:   productSource,
		Catalog:    productSource,
		Ledger:     dbLedgerSink{db: db},
		Tickets:    ticketSink,
		Logger:     logger,
	}

	ctx = appctx.WithString(ctx, appctx.ContextKeyCorrelationId, run.CorrelationId)
	result, runErr := runner.Run(ctx)
	return finishOperationRun(ctx, &run, *startedAt, result, runErr)
}

func finishOperationRun(ctx context.Context, run *models.OperationRun, startedAt time.Time, result RunResult, runErr error) error {
	db := config.GetDB()
	finishedAt := time.Now()

	status := models.RunStatusSuccess
	if runErr != nil {
		status = models.RunStatusFailed
		result.ErrorCount++
		result.LastError = runErr.Error()
	} else if result.ErrorCount > 0 {
		status = models.RunStatusPartial
	}

	if err := db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":               status,
		"finished_at":          finishedAt,
		"duration_ms":          finishedAt.Sub(startedAt).Milliseconds(),
		"candidate_count":      result.CandidateCount,
		"operated_by_schedule": result.OperatedBySchedule,
		"operated_by_bulk":     result.OperatedByBulk,
		"tickets_created":      result.TicketsCreated,
		"error_count":          result.ErrorCount,
		"last_error":           truncateError(result.LastError),
	}).Error; err != nil {
		config.LogError(config.GetLogger(), "worker.go", "finishOperationRun", "Updating run row", run.ID, err)
	}
	return runErr
}

func truncateError(msg string) string {
	if len(msg) > 1024 {
		return msg[:1024]
	}
	return msg
}
