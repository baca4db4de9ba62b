package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"payout-charts/internal/config"
)

const account = "0x1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b"

// setupTestStore starts a PostgreSQL container and applies migrations.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migration, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_payments.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(migration))
	require.NoError(t, err)

	return NewStore(pool)
}

func TestStoreListPayments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0).UTC()
	huge, err := decimal.NewFromString("123456789012345678901234567890")
	require.NoError(t, err)

	for i, amount := range []decimal.Decimal{decimal.NewFromInt(3_000_000_000), huge, decimal.NewFromInt(2_000_000_000)} {
		_, err := store.InsertPayment(ctx, Payment{
			Account: "0x1A2B3C4D5E6F7A8B9C0D1E2F3A4B5C6D7E8F9A0B",
			PaidAt:  base.Add(time.Duration(2-i) * time.Hour),
			Amount:  amount,
		})
		require.NoError(t, err)
	}
	_, err = store.InsertPayment(ctx, Payment{Account: "0xother", PaidAt: base, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)

	events, err := store.ListPayments(ctx, account, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, base.Unix(), events[0].Timestamp)
	assert.Equal(t, "2000000000", events[0].Amount.Decimal.String())
	assert.Equal(t, huge.String(), events[1].Amount.Decimal.String())
	assert.Less(t, events[1].Timestamp, events[2].Timestamp)

	recent, err := store.ListPayments(ctx, account, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	count, err := store.CountPayments(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	last, ok, err := store.LastPaymentAt(ctx, account)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, last.Equal(base.Add(2*time.Hour)))
}

func TestStoreNullAmountIsInvalidEvent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.pool.Exec(ctx, `INSERT INTO payments (account, paid_at, amount) VALUES ($1, now(), NULL)`, account)
	require.NoError(t, err)

	events, err := store.ListPayments(ctx, account, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Amount.Valid)

	_, ok, err := store.LastPaymentAt(ctx, "0xnobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreNaNAmountIsInvalidEvent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.pool.Exec(ctx, `INSERT INTO payments (account, paid_at, amount) VALUES ($1, now() - interval '1 hour', 'NaN')`, account)
	require.NoError(t, err)
	_, err = store.InsertPayment(ctx, Payment{Account: account, PaidAt: time.Now(), Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	events, err := store.ListPayments(ctx, account, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Amount.Valid)
	assert.True(t, events[1].Amount.Valid)
}

func TestParseStoredAmount(t *testing.T) {
	assert.False(t, parseStoredAmount(sql.NullString{}).Valid)
	assert.False(t, parseStoredAmount(sql.NullString{String: "NaN", Valid: true}).Valid)

	amount := parseStoredAmount(sql.NullString{String: "1500000000.5", Valid: true})
	require.True(t, amount.Valid)
	assert.Equal(t, "1500000000.5", amount.Decimal.String())
}

func TestStoreNotConfigured(t *testing.T) {
	var store *Store
	_, err := store.ListPayments(context.Background(), account, time.Time{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = store.CountPayments(context.Background(), account)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
