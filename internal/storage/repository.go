package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"payout-charts/internal/series"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertPaymentSQL = `INSERT INTO payments (
        account,
        paid_at,
        amount,
        tx_hash
    ) VALUES (
        $1,$2,$3,$4
    )
    RETURNING id;`

	listPaymentsSQL = `SELECT
        extract(epoch FROM paid_at)::bigint,
        amount::text
    FROM payments
    WHERE account = $1
      AND paid_at >= $2
    ORDER BY paid_at, id;`

	countPaymentsSQL = `SELECT COUNT(*) FROM payments WHERE account = $1;`

	lastPaymentSQL = `SELECT max(paid_at) FROM payments WHERE account = $1;`
)

// Payment is a row of the payments table.
type Payment struct {
	ID      int64
	Account string
	PaidAt  time.Time
	Amount  decimal.Decimal
	TxHash  string
}

// PaymentStore defines read access to an account's payment log.
type PaymentStore interface {
	ListPayments(ctx context.Context, account string, since time.Time) ([]series.RawEvent, error)
	CountPayments(ctx context.Context, account string) (int64, error)
	LastPaymentAt(ctx context.Context, account string) (time.Time, bool, error)
}

// Store gives access to the payments table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertPayment records a payment and returns its id.
func (s *Store) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var txHash interface{}
	if p.TxHash != "" {
		txHash = p.TxHash
	}

	var id int64
	if scanErr := pool.QueryRow(ctx, insertPaymentSQL,
		strings.ToLower(p.Account),
		p.PaidAt,
		p.Amount.String(),
		txHash,
	).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("insert payment: %w", scanErr)
	}
	return id, nil
}

// ListPayments returns the account's payments since the given time, oldest first.
// A NULL amount is returned as an invalid event rather than dropped.
func (s *Store) ListPayments(ctx context.Context, account string, since time.Time) ([]series.RawEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPaymentsSQL, strings.ToLower(account), since)
	if queryErr != nil {
		return nil, fmt.Errorf("list payments: %w", queryErr)
	}
	defer rows.Close()

	events := make([]series.RawEvent, 0)
	for rows.Next() {
		event, scanErr := scanPayment(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// CountPayments counts stored payments for an account.
func (s *Store) CountPayments(ctx context.Context, account string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countPaymentsSQL, strings.ToLower(account)).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count payments: %w", scanErr)
	}
	return count, nil
}

// LastPaymentAt returns the newest payment time; ok is false when the account has none.
func (s *Store) LastPaymentAt(ctx context.Context, account string) (time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, false, err
	}
	var last sql.NullTime
	if scanErr := pool.QueryRow(ctx, lastPaymentSQL, strings.ToLower(account)).Scan(&last); scanErr != nil {
		return time.Time{}, false, fmt.Errorf("last payment: %w", scanErr)
	}
	return last.Time, last.Valid, nil
}

func scanPayment(rows pgx.Rows) (series.RawEvent, error) {
	var (
		ts     int64
		amount sql.NullString
	)
	if err := rows.Scan(&ts, &amount); err != nil {
		return series.RawEvent{}, err
	}

	return series.RawEvent{Timestamp: ts, Amount: parseStoredAmount(amount)}, nil
}

// parseStoredAmount maps NULL and values decimal cannot represent, such as NUMERIC
// 'NaN', to an absent amount so the series rejects the event instead of the query failing.
func parseStoredAmount(amount sql.NullString) decimal.NullDecimal {
	if !amount.Valid {
		return decimal.NullDecimal{}
	}
	value, err := decimal.NewFromString(amount.String)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value)
}

var _ PaymentStore = (*Store)(nil)
