package cmd

import (
	"context"

	"github.com/arbstack/bscarb/utils"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	debug       bool
	profileName string
)

var rootCmd = &cobra.Command{
	Use:   "bscarb",
	Short: "A flashloan arbitrage scanner for BSC DEX venues",
	Long: `A CLI arbitrage bot that scans configured DEX venues for round-trip
price discrepancies and executes profitable trades through a flashloan
contract, with rate-limited RPC access and endpoint rotation.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (JSON, overlaid on defaults)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "trading profile (conservative or aggressive)")
}

func initLogging() {
	utils.InitLogger(debug)
}
