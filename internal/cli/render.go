package cli

import (
	"github.com/spf13/cobra"

	"payout-charts/internal/app"
)

var (
	renderPNG    string
	renderWidth  int
	renderHeight int
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the current payment chart to a PNG file once",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RenderOptions{
			PNGPath: renderPNG,
			Width:   renderWidth,
			Height:  renderHeight,
		}
		return getApp().Render(cmd.Context(), opts)
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderPNG, "png", "", "Output path (defaults to render.png_path)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "Image width in pixels (defaults to render.width)")
	renderCmd.Flags().IntVar(&renderHeight, "height", 0, "Image height in pixels (defaults to render.height)")
}
