package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"payout-charts/internal/series"
)

var seriesColor = drawing.ColorFromHex("E99002")

// PNGOptions configure the image surface.
type PNGOptions struct {
	Path   string
	Width  int
	Height int
	Unit   string
}

// PNG renders each pushed series to an image file, replacing it atomically.
type PNG struct {
	opts   PNGOptions
	logger zerolog.Logger

	mu       sync.Mutex
	rendered int
}

// NewPNG constructs the image surface.
func NewPNG(opts PNGOptions, logger zerolog.Logger) *PNG {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 200
	}
	return &PNG{opts: opts, logger: logger.With().Str("component", "png_surface").Logger()}
}

// Name implements Surface.
func (p *PNG) Name() string { return "png" }

// IsReady reports whether an output path is configured.
func (p *PNG) IsReady() bool { return p.opts.Path != "" }

// Rendered returns how many images were written.
func (p *PNG) Rendered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rendered
}

// PushSeries implements Surface. A series that spans no time, fewer than two points
// or all at one instant, leaves the previous image in place.
func (p *PNG) PushSeries(points []series.PlottedPoint) error {
	if len(points) < 2 || points[0].X.Equal(points[len(points)-1].X) {
		p.logger.Debug().Int("points", len(points)).Msg("series spans no time; keeping previous image")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := WritePNG(p.opts, points); err != nil {
		return err
	}
	p.rendered++
	return nil
}

// WritePNG draws points as a time series and writes the image to opts.Path.
func WritePNG(opts PNGOptions, points []series.PlottedPoint) error {
	if err := ensureDir(opts.Path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	y := make([]float64, len(points))
	for i, pt := range points {
		x[i] = pt.X
		y[i] = pt.Y
	}

	yName := "Payment by Account"
	if opts.Unit != "" {
		yName += " (" + opts.Unit + ")"
	}
	graph := chart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: yName,
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.4f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: "Payment Series",
				Style: chart.Style{
					StrokeColor: seriesColor,
					FillColor:   seriesColor.WithAlpha(64),
				},
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	tmp, err := os.CreateTemp(dirOf(opts.Path), ".payoutchart-*.png")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := graph.Render(chart.PNG, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("render chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), opts.Path)
}

func dirOf(path string) string {
	dir := filepath.Dir(path)
	if dir == "" {
		return "."
	}
	return dir
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var _ Surface = (*PNG)(nil)
