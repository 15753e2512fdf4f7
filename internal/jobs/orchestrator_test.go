package jobs

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/search"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeExtractor struct {
	data  *models.ExtractedData
	err   error
	calls int
}

func (f *fakeExtractor) ExtractCompleteTicketsData(_ context.Context, _ []int64) (*models.ExtractedData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeStarTransformer struct {
	batch *models.StarBatch
}

func (f *fakeStarTransformer) Transform(_ context.Context, _ *models.ExtractedData) *models.StarBatch {
	return f.batch
}

type fakeDocTransformer struct {
	docs []models.TicketDocument
}

func (f *fakeDocTransformer) Transform(_ context.Context, _ *models.ExtractedData) []models.TicketDocument {
	return f.docs
}

type fakeWarehouseLoader struct {
	err     error
	batches []*models.StarBatch
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeWarehouseLoader) Load(_ context.Context, batch *models.StarBatch) error {
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	f.batches = append(f.batches, batch)
	return f.err
}

type fakeSearchLoader struct {
	ensureErr  error
	upsertErr  error
	upserted   [][]models.TicketDocument
	ensureRuns int
}

func (f *fakeSearchLoader) EnsureIndex(_ context.Context) error {
	f.ensureRuns++
	return f.ensureErr
}

func (f *fakeSearchLoader) BulkUpsert(_ context.Context, docs []models.TicketDocument) (*search.BulkResult, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserted = append(f.upserted, docs)
	return &search.BulkResult{Indexed: int64(len(docs))}, nil
}

func newTestOrchestrator(ex *fakeExtractor, wh *fakeWarehouseLoader, sl *fakeSearchLoader) *Orchestrator {
	return NewOrchestrator(
		ex,
		&fakeStarTransformer{batch: &models.StarBatch{Tickets: []models.DimTicket{{TicketID: 1}}}},
		&fakeDocTransformer{docs: []models.TicketDocument{{TicketID: "1"}}},
		wh,
		sl,
		nil,
		testLogger(),
	)
}

func TestRunWarehouseHappyPath(t *testing.T) {
	ex := &fakeExtractor{data: models.NewExtractedData()}
	wh := &fakeWarehouseLoader{}
	sl := &fakeSearchLoader{}

	err := newTestOrchestrator(ex, wh, sl).RunWarehouse(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, ex.calls)
	require.Len(t, wh.batches, 1)
	assert.Equal(t, 0, sl.ensureRuns, "warehouse run must not touch the search index")
}

func TestRunSearchHappyPath(t *testing.T) {
	ex := &fakeExtractor{data: models.NewExtractedData()}
	wh := &fakeWarehouseLoader{}
	sl := &fakeSearchLoader{}

	err := newTestOrchestrator(ex, wh, sl).RunSearch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sl.ensureRuns)
	require.Len(t, sl.upserted, 1)
	assert.Empty(t, wh.batches, "search run must not write to the warehouse")
}

func TestRunWarehouseExtractionFailure(t *testing.T) {
	ex := &fakeExtractor{err: assert.AnError}
	wh := &fakeWarehouseLoader{}

	err := newTestOrchestrator(ex, wh, &fakeSearchLoader{}).RunWarehouse(context.Background())
	require.Error(t, err)
	assert.Empty(t, wh.batches)
}

func TestRunSearchIndexBootstrapFailureStopsExtraction(t *testing.T) {
	ex := &fakeExtractor{data: models.NewExtractedData()}
	sl := &fakeSearchLoader{ensureErr: assert.AnError}

	err := newTestOrchestrator(ex, &fakeWarehouseLoader{}, sl).RunSearch(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, ex.calls)
}

func TestRunAllRunsBothPipelines(t *testing.T) {
	ex := &fakeExtractor{data: models.NewExtractedData()}
	wh := &fakeWarehouseLoader{}
	sl := &fakeSearchLoader{}

	err := newTestOrchestrator(ex, wh, sl).RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, ex.calls, "each pipeline extracts its own dataset")
	assert.Len(t, wh.batches, 1)
	assert.Len(t, sl.upserted, 1)
}

func TestRunAllReportsSingleFailure(t *testing.T) {
	ex := &fakeExtractor{data: models.NewExtractedData()}
	wh := &fakeWarehouseLoader{err: assert.AnError}
	sl := &fakeSearchLoader{}

	err := newTestOrchestrator(ex, wh, sl).RunAll(context.Background())
	require.Error(t, err)
	assert.Len(t, sl.upserted, 1, "search pipeline still completes when the warehouse fails")
}

func TestOverlappingRunsAreRejected(t *testing.T) {
	ex := &fakeExtractor{data: models.NewExtractedData()}
	block := make(chan struct{})
	entered := make(chan struct{})
	wh := &fakeWarehouseLoader{block: block, entered: entered}
	orch := newTestOrchestrator(ex, wh, &fakeSearchLoader{})

	done := make(chan error, 1)
	go func() {
		done <- orch.RunWarehouse(context.Background())
	}()

	// Wait for the first run to reach the loader before triggering again.
	<-entered

	err := orch.RunSearch(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(block)
	require.NoError(t, <-done)
}
