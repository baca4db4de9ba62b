package source

import (
	"context"
	"errors"
	"time"

	"payout-charts/internal/series"
)

// PaymentReader is the storage capability the Postgres source needs.
type PaymentReader interface {
	ListPayments(ctx context.Context, account string, since time.Time) ([]series.RawEvent, error)
}

// Postgres reads payments recorded by the pool's payout module.
type Postgres struct {
	reader   PaymentReader
	account  string
	lookback time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewPostgres constructs a Postgres-backed source. A zero lookback reads the full history.
func NewPostgres(reader PaymentReader, account string, lookback, timeout time.Duration, now func() time.Time) *Postgres {
	if now == nil {
		now = time.Now
	}
	return &Postgres{reader: reader, account: account, lookback: lookback, timeout: timeout, now: now}
}

// Snapshot implements EventSource.
func (p *Postgres) Snapshot(ctx context.Context) ([]series.RawEvent, error) {
	if p.reader == nil {
		return nil, errors.New("payment store not configured")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var since time.Time
	if p.lookback > 0 {
		since = p.now().Add(-p.lookback)
	}
	return p.reader.ListPayments(ctx, p.account, since)
}

var _ EventSource = (*Postgres)(nil)
