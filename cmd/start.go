package cmd

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbstack/bscarb/config"
	"github.com/arbstack/bscarb/dex"
	"github.com/arbstack/bscarb/engine"
	"github.com/arbstack/bscarb/executor"
	"github.com/arbstack/bscarb/gateway"
	"github.com/arbstack/bscarb/notify"
	"github.com/arbstack/bscarb/rpc"
	"github.com/arbstack/bscarb/scanner"
	"github.com/arbstack/bscarb/server"
	"github.com/arbstack/bscarb/types"
	"github.com/arbstack/bscarb/utils"
	"github.com/arbstack/bscarb/utils/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var simulate bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage scanner",
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

		execMetrics := metrics.NewExecutorMetrics("bscarb_executor")
		runners, err := buildRunners(ctx, cfg, caller, execMetrics, log)
		if err != nil {
			log.Fatal("Failed to create executors", zap.Error(err))
		}

		notifier := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, utils.Named("notify"))

		scanMetrics := metrics.NewScannerMetrics("bscarb_scanner")
		sc := scanner.New(cfg, profile, eng, runners, notifier, scanMetrics, utils.Named("scanner"))

		var registry *prometheus.Registry
		if cfg.PrometheusEnabled {
			registry = prometheus.NewRegistry()
			gw.Metrics().Register(registry)
			scanMetrics.Register(registry)
			execMetrics.Register(registry)
		}

		srv := server.New(cfg.StatusListenAddr, string(profile.Name), sc, gw, registry, utils.Named("server"))
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("Status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			srv.Shutdown(shutCtx)
		}()

		log.Info("Starting scanner",
			zap.String("profile", string(profile.Name)),
			zap.Bool("simulation", simulate))
		notifier.Notify(ctx, "Arbitrage scanner started, profile "+string(profile.Name))

		if err := sc.Run(ctx); err != nil && err != context.Canceled {
			log.Error("Scanner exited", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&simulate, "simulate", false, "validate opportunities without submitting transactions")
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadConfig(cfgFile)
	} else {
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	if profileName != "" {
		cfg.Profile = config.ProfileName(profileName)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildRunners creates one executor per network that has a contract
// configured. Without a private key in the environment every executor runs
// in simulation mode.
func buildRunners(ctx context.Context, cfg *config.Config, caller *rpc.ChainCaller, m *metrics.ExecutorMetrics, log *zap.Logger) (map[types.Network]scanner.Runner, error) {
	keyHex := os.Getenv(config.EnvPrivateKey)
	simulation := simulate || keyHex == ""
	if simulation && !simulate {
		log.Warn("No private key configured, running in simulation mode")
	}

	runners := make(map[types.Network]scanner.Runner)
	for name, nc := range cfg.Networks {
		if nc.Contract == "" {
			log.Warn("Network has no contract, skipping execution",
				zap.String("network", string(name)))
			continue
		}
		if len(nc.Endpoints) == 0 {
			log.Warn("Network has no endpoints, skipping execution",
				zap.String("network", string(name)))
			continue
		}

		chainID := new(big.Int).SetUint64(nc.ChainID)
		addr := common.HexToAddress(nc.Contract)

		var contract *executor.BoundContract
		var err error
		if simulation {
			contract, err = executor.NewBoundContract(name, addr, caller.Call, nil, nil, chainID)
		} else {
			priv, kerr := crypto.HexToECDSA(keyHex)
			if kerr != nil {
				return nil, kerr
			}
			var client *ethclient.Client
			client, err = ethclient.DialContext(ctx, nc.Endpoints[0])
			if err != nil {
				return nil, err
			}
			contract, err = executor.NewBoundContract(name, addr, caller.Call, client, priv, chainID)
		}
		if err != nil {
			return nil, err
		}

		exec, err := executor.New(contract, cfg.Executor, name, simulation, m, log.Named("executor"))
		if err != nil {
			return nil, err
		}
		runners[name] = exec
	}
	return runners, nil
}
