// Package series turns an account's raw payment log into a chart-ready series.
//
// The package is pure: it never reads the clock and never performs I/O. Callers
// supply "now" and a LabelFormatter.
package series

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UnitScaleExponent is the power of ten between the smallest indivisible unit
// and the display unit (1 display unit = 10^9 smallest units).
const UnitScaleExponent = 9

// DefaultStaleAfter applies when no staleness threshold is configured.
const DefaultStaleAfter = 120 * time.Second

// UnitScale is 10^UnitScaleExponent as a decimal.
var UnitScale = decimal.New(1, UnitScaleExponent)

// RawEvent is one payment as reported by the upstream source.
type RawEvent struct {
	// Timestamp is the payment time in Unix epoch seconds.
	Timestamp int64
	// Amount is expressed in smallest units. Valid is false when the upstream
	// value was absent or could not be read as a finite number.
	Amount decimal.NullDecimal
}

// NewRawEvent builds a valid event from an integer amount.
func NewRawEvent(ts int64, amount int64) RawEvent {
	return RawEvent{Timestamp: ts, Amount: decimal.NewNullDecimal(decimal.NewFromInt(amount))}
}

// PlottedPoint is the unit a rendering surface consumes.
type PlottedPoint struct {
	X         time.Time
	Label     string
	Y         float64
	Amount    decimal.Decimal
	Synthetic bool
}

// InvalidEventError reports a raw event whose amount cannot be plotted.
type InvalidEventError struct {
	Index  int
	Event  RawEvent
	Reason string
}

func (e *InvalidEventError) Error() string {
	amount := "<absent>"
	if e.Event.Amount.Valid {
		amount = e.Event.Amount.Decimal.String()
	}
	return fmt.Sprintf("invalid payment event #%d (ts=%d, amount=%s): %s", e.Index, e.Event.Timestamp, amount, e.Reason)
}
