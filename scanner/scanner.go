// Package scanner drives the scan/execute cycle: it prices every configured
// pair on an interval, filters profitable opportunities, and hands the best
// ones to the executor under the active profile's limits.
package scanner

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbstack/bscarb/config"
	"github.com/arbstack/bscarb/engine"
	"github.com/arbstack/bscarb/executor"
	"github.com/arbstack/bscarb/notify"
	"github.com/arbstack/bscarb/types"
	"github.com/arbstack/bscarb/utils/metrics"
)

// Finder enumerates opportunities for one pair; the profit engine
// implements it.
type Finder interface {
	FindOpportunities(ctx context.Context, network types.Network, tokenA, tokenB engine.Token, amountIn *big.Int) []types.Opportunity
}

// Runner executes a single opportunity to a terminal result.
type Runner interface {
	Execute(ctx context.Context, opp *types.Opportunity) executor.Result
}

// statsNotifyEvery is the scan-cycle period between stats summaries sent
// to the notifier; 120 cycles is roughly an hour on the conservative
// profile.
const statsNotifyEvery = 120

// Scanner owns the periodic scan loop and the per-cycle execution budget.
type Scanner struct {
	cfg      *config.Config
	profile  config.Profile
	finder   Finder
	runners  map[types.Network]Runner
	notifier notify.Notifier
	stats    *Stats
	metrics  *metrics.ScannerMetrics
	logger   *zap.Logger

	mu       sync.Mutex
	lastScan []types.Opportunity
	lastExec time.Time

	warnedDisabled map[types.Network]bool
}

// New creates a scanner. runners maps each network to its executor; a
// network without a runner is scanned but never executed.
func New(cfg *config.Config, profile config.Profile, finder Finder, runners map[types.Network]Runner, notifier notify.Notifier, m *metrics.ScannerMetrics, logger *zap.Logger) *Scanner {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Scanner{
		cfg:            cfg,
		profile:        profile,
		finder:         finder,
		runners:        runners,
		notifier:       notifier,
		stats:          NewStats(),
		metrics:        m,
		logger:         logger,
		warnedDisabled: make(map[types.Network]bool),
	}
}

// Stats returns the scanner's lifetime counters.
func (s *Scanner) Stats() *Stats {
	return s.stats
}

// LastOpportunities returns the full opportunity snapshot from the most
// recent completed cycle, including unprofitable entries.
func (s *Scanner) LastOpportunities() []types.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Opportunity, len(s.lastScan))
	copy(out, s.lastScan)
	return out
}

// Run executes scan cycles on the profile's interval until ctx is done.
// The first cycle runs immediately.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("Scanner started",
		zap.String("profile", string(s.profile.Name)),
		zap.Duration("interval", s.profile.ScanInterval.Std()),
		zap.Float64("min_net_profit_pct", s.profile.MinNetProfitPct))

	ticker := time.NewTicker(s.profile.ScanInterval.Std())
	defer ticker.Stop()

	s.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one full scan of every configured network and pair, then
// executes the best opportunities within the profile's per-cycle budget.
func (s *Scanner) Cycle(ctx context.Context) {
	start := time.Now()
	s.stats.RecordScan()
	if s.metrics != nil {
		s.metrics.ScansTotal.Inc()
	}

	var all []types.Opportunity
	for network, nc := range s.cfg.Networks {
		if ctx.Err() != nil {
			return
		}
		if len(nc.Endpoints) == 0 {
			if !s.warnedDisabled[network] {
				s.warnedDisabled[network] = true
				s.logger.Warn("Network has no endpoints, scanning disabled",
					zap.String("network", string(network)))
			}
			continue
		}
		all = append(all, s.scanNetwork(ctx, network, nc)...)
	}

	s.mu.Lock()
	s.lastScan = all
	s.mu.Unlock()

	executable := s.selectExecutable(all)
	s.stats.RecordOpportunities(len(executable))
	if s.metrics != nil {
		s.metrics.OpportunitiesFound.Add(float64(len(executable)))
		s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}

	s.logger.Info("Scan cycle complete",
		zap.Int("priced", len(all)),
		zap.Int("executable", len(executable)),
		zap.Duration("elapsed", time.Since(start)))

	for i := range executable {
		if ctx.Err() != nil {
			return
		}
		s.executeOne(ctx, &executable[i])
	}

	if snap := s.stats.Snapshot(); snap.Scans%statsNotifyEvery == 0 {
		s.notifier.Notify(ctx, fmt.Sprintf(
			"Stats: uptime %s, %d scans, %d opportunities, %d/%d executions confirmed, realized profit %s wei",
			snap.Uptime, snap.Scans, snap.Opportunities, snap.Successes, snap.Executions, snap.RealizedProfit))
	}
}

func (s *Scanner) scanNetwork(ctx context.Context, network types.Network, nc config.NetworkConfig) []types.Opportunity {
	var out []types.Opportunity
	amountIn := s.tradeAmountWei()

	for _, pair := range nc.Pairs {
		if ctx.Err() != nil {
			return out
		}
		addrA, okA := nc.TokenAddress(pair[0])
		addrB, okB := nc.TokenAddress(pair[1])
		if !okA || !okB {
			s.logger.Warn("Pair references unknown token",
				zap.String("network", string(network)),
				zap.Strings("pair", pair[:]))
			continue
		}

		tokenA := engine.Token{Symbol: pair[0], Address: addrA}
		tokenB := engine.Token{Symbol: pair[1], Address: addrB}
		out = append(out, s.finder.FindOpportunities(ctx, network, tokenA, tokenB, amountIn)...)

		s.stats.RecordPairs(1)
		if s.metrics != nil {
			s.metrics.PairsScanned.Inc()
		}
	}
	return out
}

// selectExecutable filters the snapshot to opportunities at or above the
// profile threshold, sorts them by net profit descending, and caps the
// result at the per-cycle execution budget.
func (s *Scanner) selectExecutable(all []types.Opportunity) []types.Opportunity {
	var out []types.Opportunity
	for _, opp := range all {
		if opp.NetPct > 0 && opp.NetPct >= s.profile.MinNetProfitPct {
			out = append(out, opp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NetPct > out[j].NetPct
	})
	if len(out) > s.profile.MaxExecutionsPerCycle {
		out = out[:s.profile.MaxExecutionsPerCycle]
	}
	return out
}

func (s *Scanner) executeOne(ctx context.Context, opp *types.Opportunity) {
	runner, ok := s.runners[opp.Network]
	if !ok {
		return
	}

	if wait := s.untilNextExecution(); wait > 0 {
		s.logger.Debug("Throttling execution", zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	s.mu.Lock()
	s.lastExec = time.Now()
	s.mu.Unlock()

	s.stats.RecordExecution()
	s.notifier.Notify(ctx, fmt.Sprintf("Executing %s/%s %s→%s, est. net %.4f%%",
		opp.TokenInSym, opp.TokenOutSym, opp.BuyVenue, opp.SellVenue, opp.NetPct))

	res := runner.Execute(ctx, opp)
	switch {
	case res.Success():
		s.stats.RecordSuccess(res.RealizedProfit)
		s.notifier.Notify(ctx, fmt.Sprintf("Arbitrage confirmed %s, realized profit %s wei",
			res.TxHash.Hex(), res.RealizedProfit.String()))
	case res.State == executor.StateConfirmedReverted:
		s.stats.RecordFailure()
		s.notifier.Notify(ctx, fmt.Sprintf("Arbitrage failed %s: %s", res.TxHash.Hex(), res.Reason))
	default:
		s.stats.RecordRejection()
		s.logger.Info("Opportunity rejected", zap.String("reason", res.Reason))
	}
}

// untilNextExecution returns how long to wait before the next execution
// may start, honoring the profile's minimum spacing.
func (s *Scanner) untilNextExecution() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastExec.IsZero() || s.profile.MinExecutionInterval <= 0 {
		return 0
	}
	elapsed := time.Since(s.lastExec)
	if elapsed >= s.profile.MinExecutionInterval.Std() {
		return 0
	}
	return s.profile.MinExecutionInterval.Std() - elapsed
}

// tradeAmountWei converts the profile's trade size in whole tokens to wei.
func (s *Scanner) tradeAmountWei() *big.Int {
	amount := new(big.Float).Mul(big.NewFloat(s.profile.TradeAmountTokens), big.NewFloat(1e18))
	wei, _ := amount.Int(nil)
	return wei
}
