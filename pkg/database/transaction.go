package database

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// WithTx runs fn inside a transaction on a pinned connection. The
// transaction is committed when fn succeeds and rolled back otherwise, so a
// partially loaded batch never becomes visible.
func WithTx(ctx context.Context, conn *sqlx.Conn, logger ectologger.Logger, fn func(tx *sqlx.Tx) error) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("Failed to begin transaction")
		return errors.Wrap(err, "failed to begin transaction")
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logger.WithContext(ctx).WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.WithContext(ctx).WithError(err).Error("Failed to commit transaction")
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}
