// Package chunker executes IN-clause queries over unbounded key lists by
// partitioning them into fixed-size batches. SQL Server rejects statements
// with more than 2100 parameters, so a single query can never carry the
// whole key list.
package chunker

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultChunkSize stays below the SQL Server 2100-parameter ceiling.
const DefaultChunkSize = 2000

// Queryer is the subset of database access the chunker needs. Both
// database.DB and sqlx.Conn-backed wrappers satisfy it.
type Queryer interface {
	Rebind(query string) string
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Executor runs chunked IN queries against one Queryer with a fixed policy.
type Executor struct {
	db        Queryer
	logger    ectologger.Logger
	chunkSize int
	failFast  bool
}

// NewExecutor creates an Executor. chunkSize <= 0 falls back to
// DefaultChunkSize. failFast controls the per-chunk failure policy: when
// false a failed chunk is logged and treated as empty, when true the first
// chunk failure aborts the whole call.
func NewExecutor(db Queryer, logger ectologger.Logger, chunkSize int, failFast bool) *Executor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Executor{
		db:        db,
		logger:    logger,
		chunkSize: chunkSize,
		failFast:  failFast,
	}
}

// ChunkSize returns the configured batch size.
func (e *Executor) ChunkSize() int {
	return e.chunkSize
}

// SelectIn executes baseQuery once per chunk of keys and concatenates the
// results. baseQuery must contain exactly one `IN (?)` placeholder group;
// it is expanded per chunk via sqlx.In. An empty key list returns an empty
// slice without touching the database. Cross-chunk row order is undefined.
func SelectIn[T any](ctx context.Context, e *Executor, baseQuery string, keys []int64) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "chunker.SelectIn")
	defer span.End()

	if len(keys) == 0 {
		return []T{}, nil
	}

	numChunks := (len(keys) + e.chunkSize - 1) / e.chunkSize
	results := make([]T, 0, len(keys))

	for i := 0; i < numChunks; i++ {
		start := i * e.chunkSize
		end := start + e.chunkSize
		if end > len(keys) {
			end = len(keys)
		}

		query, args, err := sqlx.In(baseQuery, keys[start:end])
		if err != nil {
			return nil, errors.Wrap(err, "failed to expand IN clause")
		}

		var chunk []T
		if err := e.db.SelectContext(ctx, &chunk, e.db.Rebind(query), args...); err != nil {
			if e.failFast {
				return nil, errors.Wrapf(err, "chunk %d/%d failed", i+1, numChunks)
			}
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"chunk":        i + 1,
				"total_chunks": numChunks,
				"chunk_keys":   end - start,
			}).Error("Chunk query failed, continuing without its rows")
			continue
		}

		results = append(results, chunk...)
	}

	return results, nil
}
