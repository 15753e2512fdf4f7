package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"
)

// paramBudget bounds the parameters carried by one staging INSERT. SQL
// Server rejects statements above 2100 parameters.
const paramBudget = 2000

// Session is the warehouse connection surface the loader runs on. Staging
// tables are session-scoped, so every statement of one load must go
// through the same pinned connection.
type Session interface {
	Rebind(query string) string
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func stagingName(table string) string {
	return "##" + table + "_stage"
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "[" + c + "]"
	}
	return strings.Join(quoted, ", ")
}

// rowsPerBatch bounds a multi-row insert by both the configured batch size
// and the statement parameter budget.
func rowsPerBatch(numCols, batchSize int) int {
	if numCols <= 0 {
		return batchSize
	}
	limit := paramBudget / numCols
	if limit < 1 {
		limit = 1
	}
	if batchSize > 0 && batchSize < limit {
		return batchSize
	}
	return limit
}

// selectIntoStagingSQL clones the target's column layout into an empty
// session staging table.
func selectIntoStagingSQL(table string) string {
	return fmt.Sprintf("SELECT TOP 0 * INTO %s FROM %s", stagingName(table), table)
}

func dropStagingSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", stagingName(table))
}

// stagingIndexSQL builds the pre-reconcile index: unique clustered on the
// business key, or a plain clustered index over the full tuple for
// natural-key dimensions.
func stagingIndexSQL(load dimensionLoad) string {
	staging := stagingName(load.table)
	indexName := fmt.Sprintf("IX_%s_stage", load.table)
	if load.businessKey == "" {
		return fmt.Sprintf("CREATE CLUSTERED INDEX %s ON %s(%s)", indexName, staging, quoteColumns(load.columns))
	}
	return fmt.Sprintf("CREATE UNIQUE CLUSTERED INDEX %s ON %s([%s])", indexName, staging, load.businessKey)
}

// insertExceptSQL reconciles a natural-key dimension: append the staged
// tuples absent from the target, never update.
func insertExceptSQL(load dimensionLoad) string {
	cols := quoteColumns(load.columns)
	staging := stagingName(load.table)
	return fmt.Sprintf(`INSERT INTO %s (%s)
SELECT %s FROM %s
EXCEPT
SELECT %s FROM %s`, load.table, cols, cols, staging, cols, load.table)
}

// mergeDimensionSQL reconciles a business-key dimension: matched business
// keys get their attributes overwritten, unmatched rows are inserted.
func mergeDimensionSQL(load dimensionLoad) string {
	staging := stagingName(load.table)

	updateSet := make([]string, len(load.updateCols))
	for i, c := range load.updateCols {
		updateSet[i] = fmt.Sprintf("Target.[%s] = Source.[%s]", c, c)
	}

	sourceCols := make([]string, len(load.columns))
	for i, c := range load.columns {
		sourceCols[i] = "Source.[" + c + "]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE %s AS Target\n", load.table)
	fmt.Fprintf(&b, "USING %s AS Source\n", staging)
	fmt.Fprintf(&b, "ON Target.[%s] = Source.[%s]\n", load.businessKey, load.businessKey)
	if len(updateSet) > 0 {
		fmt.Fprintf(&b, "WHEN MATCHED THEN UPDATE SET %s\n", strings.Join(updateSet, ", "))
	}
	fmt.Fprintf(&b, "WHEN NOT MATCHED BY TARGET THEN\n\tINSERT (%s)\n\tVALUES (%s);",
		quoteColumns(load.columns), strings.Join(sourceCols, ", "))
	return b.String()
}

// populateStaging inserts rows into a staging table in multi-row batches
// sized under the parameter budget.
func populateStaging(ctx context.Context, sess Session, table string, columns []string, rows [][]any, batchSize int) error {
	perBatch := rowsPerBatch(len(columns), batchSize)
	staging := stagingName(table)

	for start := 0; start < len(rows); start += perBatch {
		end := start + perBatch
		if end > len(rows) {
			end = len(rows)
		}

		ib := sqlbuilder.SQLServer.NewInsertBuilder()
		ib.InsertInto(staging)
		ib.Cols(columns...)
		for _, row := range rows[start:end] {
			ib.Values(row...)
		}

		query, args := ib.Build()
		if _, err := sess.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "failed to populate %s rows %d-%d", staging, start, end)
		}
	}
	return nil
}

// loadDimension drives one dimension through the full staging lifecycle:
// create staging, populate, index, reconcile, drop. The drop always runs,
// error or not.
func loadDimension(ctx context.Context, sess Session, logger ectologger.Logger, load dimensionLoad, batchSize int) (err error) {
	if len(load.rows) == 0 {
		return nil
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"dimension": load.table,
		"rows":      len(load.rows),
	}).Info("Loading dimension")

	if _, err = sess.ExecContext(ctx, selectIntoStagingSQL(load.table)); err != nil {
		return errors.Wrapf(err, "failed to create staging for %s", load.table)
	}
	defer func() {
		if _, dropErr := sess.ExecContext(ctx, dropStagingSQL(load.table)); dropErr != nil {
			logger.WithContext(ctx).WithError(dropErr).WithField("dimension", load.table).
				Warn("Failed to drop staging table")
			if err == nil {
				err = errors.Wrapf(dropErr, "failed to drop staging for %s", load.table)
			}
		}
	}()

	if err = populateStaging(ctx, sess, load.table, load.columns, load.rows, batchSize); err != nil {
		return err
	}

	if _, err = sess.ExecContext(ctx, stagingIndexSQL(load)); err != nil {
		return errors.Wrapf(err, "failed to index staging for %s", load.table)
	}

	reconcile := mergeDimensionSQL(load)
	if load.businessKey == "" {
		reconcile = insertExceptSQL(load)
	}
	if _, err = sess.ExecContext(ctx, reconcile); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("dimension", load.table).
			Error("Dimension reconcile failed")
		return errors.Wrapf(err, "failed to reconcile %s", load.table)
	}

	return nil
}
