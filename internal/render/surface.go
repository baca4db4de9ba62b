// Package render holds the surfaces a plotted series is pushed to.
package render

import (
	"errors"
	"fmt"

	"payout-charts/internal/series"
)

// Surface consumes full-replacement series.
type Surface interface {
	// Name identifies the surface in logs and metrics.
	Name() string
	// IsReady reports whether a push would reach anyone.
	IsReady() bool
	// PushSeries replaces the displayed series.
	PushSeries(points []series.PlottedPoint) error
}

// Tooltipper renders hover text for a point.
type Tooltipper interface {
	Tooltip(p series.PlottedPoint, unit string) string
}

// Fanout pushes to every ready member. It is ready when any member is.
type Fanout []Surface

// Name implements Surface.
func (f Fanout) Name() string { return "fanout" }

// IsReady implements Surface.
func (f Fanout) IsReady() bool {
	for _, s := range f {
		if s.IsReady() {
			return true
		}
	}
	return false
}

// PushSeries implements Surface. A failing member does not prevent the others from receiving the series.
func (f Fanout) PushSeries(points []series.PlottedPoint) error {
	var errs []error
	for _, s := range f {
		if !s.IsReady() {
			continue
		}
		if err := s.PushSeries(points); err != nil {
			errs = append(errs, &PushError{Surface: s.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// PushError attributes a push failure to a surface.
type PushError struct {
	Surface string
	Err     error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push to %s: %v", e.Surface, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

var _ Surface = Fanout(nil)
