package executor

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/arbstack/bscarb/config"
	"github.com/arbstack/bscarb/types"
	"github.com/arbstack/bscarb/utils/metrics"
)

// Executor validates detected opportunities against the on-chain contract
// and submits the profitable ones. Every opportunity passes through
// pre-validation before any transaction is signed.
type Executor struct {
	contract   Contract
	cfg        config.ExecutorConfig
	network    types.Network
	simulation bool
	recent     *lru.Cache
	metrics    *metrics.ExecutorMetrics
	logger     *zap.Logger
}

// New creates an executor. simulation disables submission: opportunities are
// validated and reported but never sent.
func New(contract Contract, cfg config.ExecutorConfig, network types.Network, simulation bool, m *metrics.ExecutorMetrics, logger *zap.Logger) (*Executor, error) {
	size := cfg.DedupeCacheSize
	if size <= 0 {
		size = 256
	}
	recent, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedupe cache: %w", err)
	}
	return &Executor{
		contract:   contract,
		cfg:        cfg,
		network:    network,
		simulation: simulation,
		recent:     recent,
		metrics:    m,
		logger:     logger,
	}, nil
}

// opportunityKey identifies an opportunity by its trading shape, not its
// amounts, so repeated detections of the same route dedupe while the entry
// is inside the dedupe window.
func opportunityKey(opp *types.Opportunity) uint64 {
	h := xxhash.New()
	h.WriteString(string(opp.Network))
	h.WriteString("|")
	h.WriteString(opp.TokenIn.Hex())
	h.WriteString("|")
	h.WriteString(opp.TokenOut.Hex())
	h.WriteString("|")
	h.WriteString(opp.BuyVenue)
	h.WriteString("|")
	h.WriteString(opp.SellVenue)
	return h.Sum64()
}

// Execute runs the full validate-then-execute flow for one opportunity.
// It always returns a terminal Result; errors are folded into the result
// rather than surfaced, so the caller's cycle never aborts mid-batch.
func (e *Executor) Execute(ctx context.Context, opp *types.Opportunity) Result {
	if e.metrics != nil {
		e.metrics.Attempts.Inc()
	}

	var res Result
	key := opportunityKey(opp)
	if e.suppressed(key) {
		res = Rejected("duplicate opportunity")
	} else {
		res = e.execute(ctx, opp, key)
	}

	switch res.State {
	case StateRejected:
		if e.metrics != nil {
			e.metrics.Rejected.WithLabelValues(rejectionClass(res.Reason)).Inc()
		}
	case StateConfirmedSuccess:
		if e.metrics != nil {
			e.metrics.Successes.Inc()
			if res.RealizedProfit != nil {
				f, _ := new(big.Float).SetInt(res.RealizedProfit).Float64()
				e.metrics.ProfitTotal.Add(f / 1e18)
			}
		}
	case StateConfirmedReverted:
		if e.metrics != nil {
			e.metrics.Failures.Inc()
		}
	}
	return res
}

// suppressed reports whether the route was validated within the dedupe
// window. Expired entries are evicted so a rediscovered route runs again.
func (e *Executor) suppressed(key uint64) bool {
	v, ok := e.recent.Get(key)
	if !ok {
		return false
	}
	if at, ok := v.(time.Time); ok && time.Since(at) < e.cfg.DedupeWindow.Std() {
		return true
	}
	e.recent.Remove(key)
	return false
}

func (e *Executor) execute(ctx context.Context, opp *types.Opportunity, key uint64) Result {
	logger := e.logger.With(
		zap.String("network", string(opp.Network)),
		zap.String("pair", opp.TokenInSym+"/"+opp.TokenOutSym),
		zap.String("buy_venue", opp.BuyVenue),
		zap.String("sell_venue", opp.SellVenue),
		zap.Float64("estimated_net_pct", opp.NetPct),
	)

	path := opp.Path
	if len(path) == 0 {
		path = []common.Address{opp.TokenIn, opp.TokenOut, opp.TokenIn}
	}

	profitable, err := e.contract.IsProfitable(ctx, opp.AmountIn, opp.BuyRouter, opp.SellRouter, path)
	if err != nil {
		logger.Warn("Pre-validation call failed", zap.Error(err))
		return Rejected(fmt.Sprintf("pre-validation failed: %v", err))
	}
	if !profitable {
		// Contract disagrees with the off-chain estimate; log the gap
		// so persistent divergence is visible.
		if onchain, perr := e.contract.CalculateProfit(ctx, opp.AmountIn, opp.BuyRouter, opp.SellRouter, path); perr == nil {
			logger.Warn("Contract rejected opportunity",
				zap.String("onchain_profit", onchain.String()),
				zap.String("amount_in", opp.AmountIn.String()))
		} else {
			logger.Warn("Contract rejected opportunity", zap.Error(perr))
		}
		return Rejected("contract reports unprofitable")
	}

	// Only validated routes enter the dedupe cache; a rejected route stays
	// free to be rediscovered and revalidated by the next scan cycle.
	e.recent.Add(key, time.Now())

	if e.simulation {
		logger.Info("Simulation mode, skipping submission")
		return Rejected("simulation mode")
	}

	minProfit := new(big.Int).Mul(opp.AmountIn, big.NewInt(e.cfg.MinProfitGuardBps))
	minProfit.Div(minProfit, big.NewInt(10000))

	tx, err := e.contract.ExecuteArbitrage(ctx, opp.TokenIn, opp.AmountIn, opp.BuyRouter, opp.SellRouter, path, minProfit)
	if err != nil {
		if isUserRejection(err) {
			logger.Info("Submission declined", zap.Error(err))
			return Rejected("submission declined")
		}
		logger.Error("Failed to submit transaction", zap.Error(err))
		return Rejected(fmt.Sprintf("submission failed: %v", err))
	}

	logger.Info("Transaction submitted", zap.String("tx", tx.Hash().Hex()))

	waitCtx := ctx
	if e.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.cfg.ConfirmTimeout.Std())
		defer cancel()
	}

	receipt, err := e.contract.WaitMined(waitCtx, tx)
	if err != nil {
		logger.Error("Failed waiting for confirmation", zap.Error(err))
		return Failed(tx.Hash(), fmt.Sprintf("confirmation failed: %v", err))
	}
	if receipt.Status != 1 {
		logger.Warn("Transaction reverted", zap.String("tx", tx.Hash().Hex()))
		if e.metrics != nil {
			e.metrics.GasUsed.Observe(float64(receipt.GasUsed))
		}
		return Failed(tx.Hash(), "transaction failed")
	}
	if e.metrics != nil {
		e.metrics.GasUsed.Observe(float64(receipt.GasUsed))
	}

	for _, lg := range receipt.Logs {
		ev, perr := e.contract.ParseExecuted(*lg)
		if perr != nil {
			continue
		}
		logger.Info("Arbitrage executed",
			zap.String("tx", tx.Hash().Hex()),
			zap.String("realized_profit", ev.Profit.String()))
		return Confirmed(tx.Hash(), ev.Profit)
	}

	// A successful receipt without the event means the contract changed or
	// the log was pruned; report zero profit rather than trusting estimates.
	logger.Warn("Confirmed without ArbitrageExecuted event", zap.String("tx", tx.Hash().Hex()))
	return Confirmed(tx.Hash(), big.NewInt(0))
}

func rejectionClass(reason string) string {
	switch {
	case strings.Contains(reason, "duplicate"):
		return "duplicate"
	case strings.Contains(reason, "unprofitable"):
		return "unprofitable"
	case strings.Contains(reason, "pre-validation"):
		return "validation_error"
	case strings.Contains(reason, "simulation"):
		return "simulation"
	case strings.Contains(reason, "declined"):
		return "declined"
	default:
		return "other"
	}
}

var userRejectionSignatures = []string{
	"user denied",
	"user rejected",
	"rejected by user",
	"transaction was rejected",
}

func isUserRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range userRejectionSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
