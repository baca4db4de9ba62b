package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"payout-charts/internal/series"
)

// EventSource returns a snapshot of an account's payment log, oldest first.
// A nil slice means "no data yet" and is equivalent to an empty one.
type EventSource interface {
	Snapshot(ctx context.Context) ([]series.RawEvent, error)
}

// paymentChartEntry is one element of the pool API's paymentCharts array.
type paymentChartEntry struct {
	X      int64           `json:"x"`
	Amount json.RawMessage `json:"amount"`
}

type accountPayload struct {
	PaymentCharts []paymentChartEntry `json:"paymentCharts"`
}

// DecodePaymentCharts reads an account payload and returns its payment events.
// Amounts that are missing, null or not numeric are kept as invalid events so the
// materializer can reject them; only a malformed document is an error.
func DecodePaymentCharts(r io.Reader) ([]series.RawEvent, error) {
	var payload accountPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode paymentCharts: %w", err)
	}
	if payload.PaymentCharts == nil {
		return nil, nil
	}

	events := make([]series.RawEvent, 0, len(payload.PaymentCharts))
	for _, entry := range payload.PaymentCharts {
		events = append(events, series.RawEvent{
			Timestamp: entry.X,
			Amount:    parseAmount(entry.Amount),
		})
	}
	return events, nil
}

func parseAmount(raw json.RawMessage) decimal.NullDecimal {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.NullDecimal{}
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.NullDecimal{}
		}
		text = strings.TrimSpace(s)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount)
}
