package cli

import (
	"github.com/spf13/cobra"
)

var (
	simulateReason string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-report",
	Short: "Send a synthetic invalid-payment report through the alert channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateReport(cmd.Context(), simulateReason)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateReason, "reason", "amount is negative", "Reason carried by the synthetic report")
}
