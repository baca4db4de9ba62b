package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"payout-charts/internal/series"
	"payout-charts/internal/storage"
)

// Show prints the series the next tick would push.
func (a *App) Show(ctx context.Context, out io.Writer, opts ShowOptions) error {
	labels, err := a.newLabels()
	if err != nil {
		return err
	}
	src, err := a.newSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	points, err := a.newFeed(src, nil, labels, nil, nil).Preview(ctx, a.now())
	if err != nil {
		return err
	}

	if len(points) == 0 {
		fmt.Fprintln(out, "no payments found")
	} else {
		if opts.Limit > 0 && len(points) > opts.Limit {
			points = points[len(points)-opts.Limit:]
		}

		writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Time\tAmount\tTooltip\tSynthetic")
		for _, p := range points {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%t\n",
				p.Label,
				p.Amount.StringFixed(4),
				labels.Tooltip(p, a.Config.Chart.DisplayUnit),
				p.Synthetic,
			)
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}

	if src.store == nil {
		return nil
	}
	return writeStoreSummary(ctx, out, src.store, a.Config.Source.Account, labels)
}

func writeStoreSummary(ctx context.Context, out io.Writer, store storage.PaymentStore, account string, labels series.LabelFormatter) error {
	count, err := store.CountPayments(ctx, account)
	if err != nil {
		return err
	}
	last, ok, err := store.LastPaymentAt(ctx, account)
	if err != nil {
		return err
	}

	if !ok {
		_, err = fmt.Fprintf(out, "stored payments: %d\n", count)
		return err
	}
	_, err = fmt.Fprintf(out, "stored payments: %d, last at %s\n", count, labels.FormatTime(last))
	return err
}
