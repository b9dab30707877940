package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"collector-node/internal/storage/clickhouse"
)

func seedRow(t *testing.T, conn *clickhouse.Conn, pair string, price float64, sources int32, collectedAtMs int64) {
	t.Helper()
	err := conn.Exec(context.Background(), `
		INSERT INTO dex_prices (pair, price, source_count, collected_at_ms, deviation)
		VALUES (?, ?, ?, ?, 0.01)
	`, pair, price, sources, collectedAtMs)
	require.NoError(t, err)
}

func TestPriceIndexStore_LatestPrices(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewPriceIndexStore(conn)
	ctx := context.Background()

	seedRow(t, conn, "ADA/DJED", 1.01, 2, 1000)
	seedRow(t, conn, "ADA/DJED", 1.02, 2, 2000)
	seedRow(t, conn, "ADA/IUSD", 0.99, 3, 1500)
	seedRow(t, conn, "ADA/MIN", 0.02, 1, 100) // older than the window

	got, err := store.LatestPrices(ctx, []string{"ADA/DJED", "ADA/IUSD", "ADA/MIN", "ADA/USDM"}, 500)
	require.NoError(t, err)

	require.Len(t, got, 2)
	require.Equal(t, "ADA/DJED", got[0].Pair)
	require.Equal(t, 1.02, got[0].Price)
	require.Equal(t, "ADA/IUSD", got[1].Pair)
	require.Equal(t, 3, got[1].SourceCount)
}

func TestPriceIndexStore_EmptyPairList(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewPriceIndexStore(conn)
	got, err := store.LatestPrices(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}
