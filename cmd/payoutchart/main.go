package main

import "payout-charts/internal/cli"

func main() {
	cli.Execute()
}
