package series

import "time"

// Materialize converts raw events into plotted points, one per event, in input order.
// Input ordering is neither checked nor corrected. An empty input yields an empty,
// non-nil series. The first event with an absent or negative amount aborts the pass
// with an *InvalidEventError.
func Materialize(events []RawEvent, labels LabelFormatter) ([]PlottedPoint, error) {
	points := make([]PlottedPoint, 0, len(events))
	for i, ev := range events {
		if !ev.Amount.Valid {
			return nil, &InvalidEventError{Index: i, Event: ev, Reason: "amount is absent or not a finite number"}
		}
		if ev.Amount.Decimal.IsNegative() {
			return nil, &InvalidEventError{Index: i, Event: ev, Reason: "amount is negative"}
		}

		x := time.Unix(ev.Timestamp, 0)
		amount := ev.Amount.Decimal.Shift(-UnitScaleExponent)
		points = append(points, PlottedPoint{
			X:      x,
			Label:  labels.FormatTime(x),
			Y:      amount.InexactFloat64(),
			Amount: amount,
		})
	}
	return points, nil
}
