package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func integrationConfig(t *testing.T) Config {
	if testing.Short() {
		t.Skip("Skipping database integration test in short mode")
	}

	host := os.Getenv("DW_DB_HOST")
	if host == "" {
		t.Skip("DW_DB_HOST not configured")
	}

	port := 1433
	if raw := os.Getenv("DW_DB_PORT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		require.NoError(t, err)
		port = parsed
	}

	return Config{
		Host:            host,
		Port:            port,
		Name:            os.Getenv("DW_DB_NAME"),
		UserName:        os.Getenv("DW_DB_USER_NAME"),
		Password:        os.Getenv("DW_DB_PASSWORD"),
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
}

func TestConnectAndPing(t *testing.T) {
	cfg := integrationConfig(t)
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Connect(ctx, cfg, logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.PingContext(ctx))
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	cfg := integrationConfig(t)
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Connect(ctx, cfg, logger)
	require.NoError(t, err)
	defer db.Close()

	conn, err := db.Connx(ctx)
	require.NoError(t, err)
	defer conn.Close()

	var got int
	err = WithTx(ctx, conn, logger, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &got, "SELECT 1")
	})
	require.NoError(t, err)
	require.Equal(t, 1, got)
}
