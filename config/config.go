package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbstack/bscarb/types"
)

// VenueConfig describes one exchange router.
type VenueConfig struct {
	Name   string `json:"name"`
	Router string `json:"router"`
	Active bool   `json:"active"`
	FeeBps uint32 `json:"fee_bps"`
	Major  bool   `json:"major"`
}

// NetworkConfig describes one scannable chain.
type NetworkConfig struct {
	ChainID   uint64            `json:"chain_id"`
	Endpoints []string          `json:"endpoints"`
	Contract  string            `json:"contract"`
	Venues    []VenueConfig     `json:"venues"`
	Tokens    map[string]string `json:"tokens"`
	Stables   []string          `json:"stables"`
	Pairs     [][2]string       `json:"pairs"`
}

// GatewayConfig tunes the rate-limited call gateway.
type GatewayConfig struct {
	Concurrency       int      `json:"concurrency"`
	QueueSize         int      `json:"queue_size"`
	MinInterval       Duration `json:"min_interval"`
	MaxRetries        int      `json:"max_retries"`
	RetryBackoff      Duration `json:"retry_backoff"`
	BreakerThreshold  int      `json:"breaker_threshold"`
	BreakerCooldown   Duration `json:"breaker_cooldown"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	BurstSize         int      `json:"burst_size"`
	WaitTimeout       Duration `json:"wait_timeout"`
	CallTimeout       Duration `json:"call_timeout"`
}

// ExecutorConfig tunes trade execution.
type ExecutorConfig struct {
	MinProfitGuardBps int64    `json:"min_profit_guard_bps"`
	ConfirmTimeout    Duration `json:"confirm_timeout"`
	DedupeCacheSize   int      `json:"dedupe_cache_size"`
	DedupeWindow      Duration `json:"dedupe_window"`
}

// TelegramConfig configures the notification channel. Both fields empty
// disables notifications.
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type Config struct {
	Profile  ProfileName                     `json:"profile"`
	Networks map[types.Network]NetworkConfig `json:"networks"`
	Gateway  GatewayConfig                   `json:"gateway"`
	Executor ExecutorConfig                  `json:"executor"`
	Telegram TelegramConfig                  `json:"telegram"`

	StatusListenAddr  string `json:"status_listen_addr"`
	PrometheusEnabled bool   `json:"prometheus_enabled"`
}

// DefaultConfig returns a BSC-mainnet configuration with the major venues
// and high-liquidity tokens preloaded.
func DefaultConfig() *Config {
	return &Config{
		Profile: ProfileConservative,
		Networks: map[types.Network]NetworkConfig{
			"bsc": {
				ChainID: 56,
				Endpoints: []string{
					"https://bsc-dataseed1.binance.org",
					"https://bsc-dataseed2.binance.org",
					"https://bsc-dataseed3.binance.org",
				},
				Contract: "0x86742335Ec7CC7bBaa7d4244841c315Cf1978eAE",
				Venues: []VenueConfig{
					{Name: "PancakeSwap", Router: "0x10ED43C718714eb63d5aA57B78B54704E256024E", Active: true, FeeBps: 25, Major: true},
					{Name: "Biswap", Router: "0x3a6d8cA21D1CF76F653A67577FA0D27453350dD8", Active: true, FeeBps: 10, Major: true},
					{Name: "ApeSwap", Router: "0xcF0feBd3f17CEf5b47b0cD257aCf6025c5BFf3b7", Active: true, FeeBps: 20, Major: true},
				},
				Tokens: map[string]string{
					"WBNB": "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
					"BUSD": "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56",
					"USDT": "0x55d398326f99059fF775485246999027B3197955",
					"USDC": "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d",
					"ETH":  "0x2170Ed0826c71020356F2c44b6feab4E2eBAEf50",
					"BTCB": "0x7130d2A12B9BCbFAe4f2634d864A1Ee1Ce3Ead9c",
					"CAKE": "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82",
				},
				Stables: []string{"BUSD", "USDT", "USDC"},
				Pairs: [][2]string{
					{"BUSD", "USDT"},
					{"BUSD", "USDC"},
					{"USDT", "USDC"},
					{"WBNB", "BUSD"},
					{"WBNB", "USDT"},
					{"WBNB", "USDC"},
					{"WBNB", "BTCB"},
					{"WBNB", "CAKE"},
					{"BTCB", "BUSD"},
					{"CAKE", "BUSD"},
				},
			},
		},
		Gateway: GatewayConfig{
			Concurrency:       1,
			QueueSize:         256,
			MinInterval:       Duration(500 * time.Millisecond),
			MaxRetries:        3,
			RetryBackoff:      Duration(time.Second),
			BreakerThreshold:  3,
			BreakerCooldown:   Duration(30 * time.Second),
			RequestsPerSecond: 5,
			BurstSize:         10,
			WaitTimeout:       Duration(5 * time.Second),
			CallTimeout:       Duration(10 * time.Second),
		},
		Executor: ExecutorConfig{
			MinProfitGuardBps: 5,
			ConfirmTimeout:    Duration(2 * time.Minute),
			DedupeCacheSize:   512,
			DedupeWindow:      Duration(2 * time.Minute),
		},
		StatusListenAddr:  ":8080",
		PrometheusEnabled: true,
	}
}

// LoadConfig reads a JSON config file and overlays it on the defaults.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural errors. A network with an
// empty endpoint list is allowed; scanning for that network is disabled
// rather than failing startup.
func (c *Config) Validate() error {
	var errs []string

	if _, err := ProfileByName(c.Profile); err != nil {
		errs = append(errs, err.Error())
	}
	if len(c.Networks) == 0 {
		errs = append(errs, "at least one network must be configured")
	}
	for name, net := range c.Networks {
		if net.ChainID == 0 {
			errs = append(errs, fmt.Sprintf("network %s: chain_id must be specified", name))
		}
		if net.Contract != "" && !common.IsHexAddress(net.Contract) {
			errs = append(errs, fmt.Sprintf("network %s: invalid contract address %q", name, net.Contract))
		}
		for _, v := range net.Venues {
			if !common.IsHexAddress(v.Router) {
				errs = append(errs, fmt.Sprintf("network %s: venue %s has invalid router address", name, v.Name))
			}
		}
		for sym, addr := range net.Tokens {
			if !common.IsHexAddress(addr) {
				errs = append(errs, fmt.Sprintf("network %s: token %s has invalid address", name, sym))
			}
		}
		for _, pair := range net.Pairs {
			if pair[0] == pair[1] {
				errs = append(errs, fmt.Sprintf("network %s: pair %s/%s is degenerate", name, pair[0], pair[1]))
			}
			for _, sym := range pair {
				if _, ok := net.Tokens[sym]; !ok {
					errs = append(errs, fmt.Sprintf("network %s: pair references unknown token %s", name, sym))
				}
			}
		}
	}
	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config error: %v", err))
	}
	if err := c.Executor.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("executor config error: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (g *GatewayConfig) Validate() error {
	if g.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if g.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if g.BreakerThreshold <= 0 {
		return fmt.Errorf("breaker_threshold must be positive")
	}
	if g.BreakerCooldown <= 0 {
		return fmt.Errorf("breaker_cooldown must be positive")
	}
	if g.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if g.BurstSize <= 0 {
		return fmt.Errorf("burst_size must be positive")
	}
	return nil
}

func (e *ExecutorConfig) Validate() error {
	if e.MinProfitGuardBps < 0 {
		return fmt.Errorf("min_profit_guard_bps must be non-negative")
	}
	if e.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be positive")
	}
	if e.DedupeCacheSize <= 0 {
		return fmt.Errorf("dedupe_cache_size must be positive")
	}
	if e.DedupeWindow <= 0 {
		return fmt.Errorf("dedupe_window must be positive")
	}
	return nil
}

// Venues converts a network's venue configuration to domain values.
func (n *NetworkConfig) VenueList() []types.Venue {
	out := make([]types.Venue, 0, len(n.Venues))
	for _, v := range n.Venues {
		out = append(out, types.Venue{
			Name:   v.Name,
			Router: common.HexToAddress(v.Router),
			Active: v.Active,
			FeeBps: v.FeeBps,
			Major:  v.Major,
		})
	}
	return out
}

// TokenAddress resolves a token symbol for this network.
func (n *NetworkConfig) TokenAddress(symbol string) (common.Address, bool) {
	addr, ok := n.Tokens[symbol]
	if !ok {
		return common.Address{}, false
	}
	return common.HexToAddress(addr), true
}

// StableSet returns the stable-value token addresses for this network.
func (n *NetworkConfig) StableSet() map[common.Address]bool {
	set := make(map[common.Address]bool, len(n.Stables))
	for _, sym := range n.Stables {
		if addr, ok := n.Tokens[sym]; ok {
			set[common.HexToAddress(addr)] = true
		}
	}
	return set
}
