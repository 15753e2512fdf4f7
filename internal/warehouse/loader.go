// Package warehouse reconciles transformed star-schema batches into the
// dimensional warehouse through session-scoped staging tables.
package warehouse

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/chunker"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Config tunes the warehouse load.
type Config struct {
	// BatchSize caps rows per staging INSERT; the parameter budget may
	// lower it further.
	BatchSize int
	// ChunkSize bounds surrogate key lookup IN clauses.
	ChunkSize int
	// ExplicitIdentityInsert wraps the fact merge in IDENTITY_INSERT
	// toggles for targets whose fact key is an identity column.
	ExplicitIdentityInsert bool
}

// Loader owns all writes to the warehouse.
type Loader struct {
	db     database.DB
	logger ectologger.Logger
	cfg    Config
}

func NewLoader(db database.DB, logger ectologger.Logger, cfg Config) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Loader{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}
}

// Load reconciles one batch: every dimension first (dates ahead of the
// business-key dimensions), then the fact table. The whole load runs on a
// single pinned connection because global temp staging tables live and die
// with their creating session, and inside one transaction so a failed run
// leaves the warehouse untouched.
func (l *Loader) Load(ctx context.Context, batch *models.StarBatch) error {
	ctx, span := tracing.StartSpan(ctx, "warehouse.Loader.Load")
	defer span.End()

	if batch.Empty() {
		l.logger.WithContext(ctx).Info("Empty batch, nothing to load")
		return nil
	}

	conn, err := l.db.Connx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to acquire warehouse connection")
	}
	defer conn.Close()

	return database.WithTx(ctx, conn, l.logger, func(tx *sqlx.Tx) error {
		return l.run(ctx, tx, batch)
	})
}

func (l *Loader) run(ctx context.Context, sess Session, batch *models.StarBatch) error {
	for _, load := range dimensionLoads(batch) {
		if err := loadDimension(ctx, sess, l.logger, load, l.cfg.BatchSize); err != nil {
			return err
		}
	}

	chunks := chunker.NewExecutor(sess, l.logger, l.cfg.ChunkSize, true)
	return loadFacts(ctx, sess, chunks, l.logger, batch.Facts, l.cfg.BatchSize, l.cfg.ExplicitIdentityInsert)
}
