package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"payout-charts/internal/alerting"
	"payout-charts/internal/series"
)

// SimulateReport sends a synthetic invalid-event report through the configured channels.
func (a *App) SimulateReport(ctx context.Context, reason string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	if a.newTelegram() == nil {
		return errors.New("no alerting channel configured")
	}
	if reason == "" {
		reason = "simulated report"
	}

	report := alerting.Report{
		TickID:  uuid.NewString(),
		Tick:    a.now(),
		Account: a.Config.Source.Account,
		Err:     &series.InvalidEventError{Index: 0, Event: series.RawEvent{Timestamp: a.now().Unix()}, Reason: reason},
	}
	return a.newReporter().Report(ctx, report)
}
