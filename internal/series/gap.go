package series

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplyLivenessGap appends a zero-valued point at now when the newest point is older
// than staleAfter, so an idle feed still reaches the right edge of the chart.
//
// An empty series is returned as is. The caller's slice is never written to: when a
// point is appended it goes onto a fresh copy.
func ApplyLivenessGap(points []PlottedPoint, now time.Time, staleAfter time.Duration, labels LabelFormatter) []PlottedPoint {
	if len(points) == 0 {
		return points
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	last := points[len(points)-1]
	if now.Sub(last.X) <= staleAfter {
		return points
	}

	out := make([]PlottedPoint, len(points), len(points)+1)
	copy(out, points)
	return append(out, PlottedPoint{
		X:         now,
		Label:     labels.FormatTime(now),
		Y:         0,
		Amount:    decimal.Zero,
		Synthetic: true,
	})
}
