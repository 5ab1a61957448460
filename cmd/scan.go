package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arbstack/bscarb/config"
	"github.com/arbstack/bscarb/dex"
	"github.com/arbstack/bscarb/engine"
	"github.com/arbstack/bscarb/gateway"
	"github.com/arbstack/bscarb/rpc"
	"github.com/arbstack/bscarb/scanner"
	"github.com/arbstack/bscarb/types"
	"github.com/arbstack/bscarb/utils"
	"github.com/arbstack/bscarb/utils/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan cycle and print the priced opportunities",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := loadConfig()
		if err != nil {
			log.Fatal("Failed to load config", zap.Error(err))
		}

		profile, err := config.ProfileByName(cfg.Profile)
		if err != nil {
			log.Fatal("Invalid profile", zap.Error(err))
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		gw := gateway.New(cfg.Gateway, utils.Named("gateway"))
		defer gw.Close()

		endpoints := make(map[types.Network][]string, len(cfg.Networks))
		venues := make(map[types.Network][]types.Venue, len(cfg.Networks))
		stables := make(map[types.Network]map[common.Address]bool, len(cfg.Networks))
		for name, nc := range cfg.Networks {
			endpoints[name] = nc.Endpoints
			venues[name] = nc.VenueList()
			stables[name] = nc.StableSet()
		}

		rotator := rpc.NewRotator(endpoints, utils.Named("rpc"))
		defer rotator.Close()
		caller := rpc.NewChainCaller(rotator, gw)

		source, err := dex.NewSource(caller.Call, stables, utils.Named("dex"))
		if err != nil {
			log.Fatal("Failed to create quote source", zap.Error(err))
		}

		eng := engine.New(source, profile.Fees, venues, utils.Named("engine"))
		sc := scanner.New(cfg, profile, eng, nil, nil,
			metrics.NewScannerMetrics("bscarb_scanner"), utils.Named("scanner"))

		sc.Cycle(ctx)

		for _, opp := range sc.LastOpportunities() {
			marker := " "
			if opp.NetPct >= profile.MinNetProfitPct && opp.NetPct > 0 {
				marker = "*"
			}
			fmt.Printf("%s %-4s %s/%s  %s→%s  gross %.4f%%  net %.4f%%\n",
				marker, opp.Network, opp.TokenInSym, opp.TokenOutSym,
				opp.BuyVenue, opp.SellVenue, opp.GrossPct, opp.NetPct)
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
