package app

import (
	"context"
	"errors"

	"payout-charts/internal/render"
)

// Render runs a single tick against a PNG surface.
func (a *App) Render(ctx context.Context, opts RenderOptions) error {
	if opts.PNGPath == "" {
		opts.PNGPath = a.Config.Render.PNGPath
	}
	if opts.PNGPath == "" {
		return errors.New("--png or render.png_path must be provided")
	}
	if opts.Width <= 0 {
		opts.Width = a.Config.Render.Width
	}
	if opts.Height <= 0 {
		opts.Height = a.Config.Render.Height
	}

	labels, err := a.newLabels()
	if err != nil {
		return err
	}
	src, err := a.newSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	png := render.NewPNG(render.PNGOptions{
		Path:   opts.PNGPath,
		Width:  opts.Width,
		Height: opts.Height,
		Unit:   a.Config.Chart.DisplayUnit,
	}, a.Logger)

	if err := a.newFeed(src, png, labels, nil, nil).Tick(ctx, a.now()); err != nil {
		return err
	}
	if png.Rendered() == 0 {
		a.Logger.Info().Msg("not enough payments to draw a chart")
		return nil
	}
	a.Logger.Info().Str("path", opts.PNGPath).Msg("chart rendered")
	return nil
}
