// Package jobs coordinates the pipeline runs: extract once per target,
// transform, load, and report the outcome.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/internal/search"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	JobWarehouse = "warehouse"
	JobSearch    = "search"
)

// ErrRunInProgress is returned when a run is requested while another one
// still holds the pipeline.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Extractor pulls the full ticket dataset from the source database.
type Extractor interface {
	ExtractCompleteTicketsData(ctx context.Context, ticketIDs []int64) (*models.ExtractedData, error)
}

// StarTransformer shapes extracted data into a star-schema batch.
type StarTransformer interface {
	Transform(ctx context.Context, data *models.ExtractedData) *models.StarBatch
}

// DocumentTransformer shapes extracted data into search documents.
type DocumentTransformer interface {
	Transform(ctx context.Context, data *models.ExtractedData) []models.TicketDocument
}

// WarehouseLoader reconciles a star batch into the warehouse.
type WarehouseLoader interface {
	Load(ctx context.Context, batch *models.StarBatch) error
}

// SearchLoader bootstraps the index and upserts documents into it.
type SearchLoader interface {
	EnsureIndex(ctx context.Context) error
	BulkUpsert(ctx context.Context, docs []models.TicketDocument) (*search.BulkResult, error)
}

// Orchestrator runs the two pipelines. At most one run, of either kind,
// executes at a time; overlapping triggers are rejected rather than queued.
type Orchestrator struct {
	extractor    Extractor
	starTransf   StarTransformer
	docTransf    DocumentTransformer
	warehouse    WarehouseLoader
	searchLoader SearchLoader
	emitter      *events.Emitter
	logger       ectologger.Logger

	mu sync.Mutex
}

func NewOrchestrator(
	extractor Extractor,
	starTransf StarTransformer,
	docTransf DocumentTransformer,
	warehouse WarehouseLoader,
	searchLoader SearchLoader,
	emitter *events.Emitter,
	logger ectologger.Logger,
) *Orchestrator {
	return &Orchestrator{
		extractor:    extractor,
		starTransf:   starTransf,
		docTransf:    docTransf,
		warehouse:    warehouse,
		searchLoader: searchLoader,
		emitter:      emitter,
		logger:       logger,
	}
}

// RunWarehouse executes the warehouse pipeline end to end.
func (o *Orchestrator) RunWarehouse(ctx context.Context) error {
	if !o.mu.TryLock() {
		return ErrRunInProgress
	}
	defer o.mu.Unlock()

	return o.runWarehouse(ctx)
}

// RunSearch executes the search pipeline end to end.
func (o *Orchestrator) RunSearch(ctx context.Context) error {
	if !o.mu.TryLock() {
		return ErrRunInProgress
	}
	defer o.mu.Unlock()

	return o.runSearch(ctx)
}

// RunAll executes both pipelines concurrently. Each pipeline extracts its
// own dataset so a failure in one never poisons the other.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	if !o.mu.TryLock() {
		return ErrRunInProgress
	}
	defer o.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "jobs.Orchestrator.RunAll")
	defer span.End()

	var wg sync.WaitGroup
	var warehouseErr, searchErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		warehouseErr = o.runWarehouse(ctx)
	}()
	go func() {
		defer wg.Done()
		searchErr = o.runSearch(ctx)
	}()
	wg.Wait()

	if warehouseErr != nil && searchErr != nil {
		return errors.Wrapf(warehouseErr, "both pipelines failed (search: %v)", searchErr)
	}
	if warehouseErr != nil {
		return warehouseErr
	}
	return searchErr
}

func (o *Orchestrator) runWarehouse(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "jobs.Orchestrator.runWarehouse")
	defer span.End()

	runID := uuid.New().String()
	started := time.Now()
	logger := o.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": runID,
		"job":    JobWarehouse,
	})

	logger.Info("Warehouse run started")
	o.emitter.EmitRunStarted(ctx, runID, JobWarehouse)

	data, err := o.extractor.ExtractCompleteTicketsData(ctx, nil)
	if err != nil {
		logger.WithError(err).Error("Warehouse run failed during extraction")
		o.emitter.EmitRunFailed(ctx, runID, JobWarehouse, err, time.Since(started))
		return errors.Wrap(err, "warehouse extraction failed")
	}

	batch := o.starTransf.Transform(ctx, data)

	if err := o.warehouse.Load(ctx, batch); err != nil {
		logger.WithError(err).Error("Warehouse run failed during load")
		o.emitter.EmitRunFailed(ctx, runID, JobWarehouse, err, time.Since(started))
		return errors.Wrap(err, "warehouse load failed")
	}

	counts := map[string]int{
		"tickets": len(batch.Tickets),
		"facts":   len(batch.Facts),
		"dates":   len(batch.Dates),
	}
	logger.WithFields(map[string]any{
		"tickets":     counts["tickets"],
		"facts":       counts["facts"],
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("Warehouse run completed")
	o.emitter.EmitRunCompleted(ctx, runID, JobWarehouse, counts, time.Since(started))

	return nil
}

func (o *Orchestrator) runSearch(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "jobs.Orchestrator.runSearch")
	defer span.End()

	runID := uuid.New().String()
	started := time.Now()
	logger := o.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": runID,
		"job":    JobSearch,
	})

	logger.Info("Search run started")
	o.emitter.EmitRunStarted(ctx, runID, JobSearch)

	if err := o.searchLoader.EnsureIndex(ctx); err != nil {
		logger.WithError(err).Error("Search run failed during index bootstrap")
		o.emitter.EmitRunFailed(ctx, runID, JobSearch, err, time.Since(started))
		return errors.Wrap(err, "search index bootstrap failed")
	}

	data, err := o.extractor.ExtractCompleteTicketsData(ctx, nil)
	if err != nil {
		logger.WithError(err).Error("Search run failed during extraction")
		o.emitter.EmitRunFailed(ctx, runID, JobSearch, err, time.Since(started))
		return errors.Wrap(err, "search extraction failed")
	}

	docs := o.docTransf.Transform(ctx, data)

	result, err := o.searchLoader.BulkUpsert(ctx, docs)
	if err != nil {
		logger.WithError(err).Error("Search run failed during bulk upsert")
		o.emitter.EmitRunFailed(ctx, runID, JobSearch, err, time.Since(started))
		return errors.Wrap(err, "search bulk upsert failed")
	}

	counts := map[string]int{
		"documents": len(docs),
		"indexed":   int(result.Indexed),
		"failed":    int(result.Failed),
		"skipped":   result.Skipped,
	}
	logger.WithFields(map[string]any{
		"indexed":     result.Indexed,
		"failed":      result.Failed,
		"skipped":     result.Skipped,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("Search run completed")
	o.emitter.EmitRunCompleted(ctx, runID, JobSearch, counts, time.Since(started))

	return nil
}
