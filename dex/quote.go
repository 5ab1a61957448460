// Package dex wraps venue router quote calls behind the gateway with
// probe-first querying and plausibility checks on returned prices.
package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/arbstack/bscarb/types"
)

const routerABIJson = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "getAmountsOut",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Plausibility bounds on the output/input ratio. A quote outside the
// applicable bound is a corrupted or misrouted quote, not a price.
const (
	stableRatioMin = 0.5
	stableRatioMax = 2.0
	wideRatioMin   = 1e-4
	wideRatioMax   = 1e4
)

// probeAmount is one token unit; a route that cannot price one unit has no
// usable liquidity and the full-amount call is skipped entirely.
var probeAmount = new(big.Int).SetUint64(1e18)

// CallFunc issues a read-only contract call on a network. In production it
// is the rotator+gateway chain caller.
type CallFunc func(ctx context.Context, network types.Network, to common.Address, data []byte) ([]byte, error)

// Source produces venue quotes. A zero return value means "no usable
// route"; network errors are swallowed at this layer.
type Source struct {
	call      CallFunc
	routerABI abi.ABI
	stables   map[types.Network]map[common.Address]bool
	logger    *zap.Logger
}

// NewSource creates a quote source. stables lists the stable-value token
// addresses per network, used to select tight ratio bounds.
func NewSource(call CallFunc, stables map[types.Network]map[common.Address]bool, logger *zap.Logger) (*Source, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}
	return &Source{
		call:      call,
		routerABI: parsed,
		stables:   stables,
		logger:    logger,
	}, nil
}

// Quote returns the output amount for swapping amountIn of tokenIn into
// tokenOut on a venue, or zero when the route is unusable. A one-unit probe
// runs first so dead routes cost a single call.
func (s *Source) Quote(ctx context.Context, network types.Network, venue types.Venue, tokenIn, tokenOut common.Address, amountIn *big.Int) *big.Int {
	zero := new(big.Int)
	if amountIn == nil || amountIn.Sign() <= 0 {
		return zero
	}

	probe := s.amountsOut(ctx, network, venue, tokenIn, tokenOut, probeAmount)
	if probe == nil || probe.Sign() == 0 {
		s.logger.Debug("probe returned no route",
			zap.String("venue", venue.Name),
			zap.String("token_in", tokenIn.Hex()),
			zap.String("token_out", tokenOut.Hex()))
		return zero
	}

	out := s.amountsOut(ctx, network, venue, tokenIn, tokenOut, amountIn)
	if out == nil || out.Sign() == 0 {
		return zero
	}

	if !s.plausible(network, tokenIn, tokenOut, amountIn, out) {
		return zero
	}

	return out
}

// amountsOut performs one getAmountsOut call and returns the final amount
// of the path, or nil on any failure.
func (s *Source) amountsOut(ctx context.Context, network types.Network, venue types.Venue, tokenIn, tokenOut common.Address, amountIn *big.Int) *big.Int {
	path := []common.Address{tokenIn, tokenOut}
	data, err := s.routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		s.logger.Error("failed to pack getAmountsOut", zap.Error(err))
		return nil
	}

	raw, err := s.call(ctx, network, venue.Router, data)
	if err != nil {
		// Reverts and exhausted-retry transport failures both mean "no
		// data for this route right now"; the gateway already handled
		// anything retryable.
		s.logger.Debug("quote call failed",
			zap.String("venue", venue.Name),
			zap.Error(err))
		return nil
	}

	vals, err := s.routerABI.Unpack("getAmountsOut", raw)
	if err != nil {
		s.logger.Debug("failed to unpack getAmountsOut",
			zap.String("venue", venue.Name),
			zap.Error(err))
		return nil
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil
	}
	return amounts[len(amounts)-1]
}

// plausible checks the output/input ratio against the applicable bound.
func (s *Source) plausible(network types.Network, tokenIn, tokenOut common.Address, amountIn, amountOut *big.Int) bool {
	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amountOut),
		new(big.Float).SetInt(amountIn),
	).Float64()

	min, max := wideRatioMin, wideRatioMax
	if set := s.stables[network]; set != nil && set[tokenIn] && set[tokenOut] {
		min, max = stableRatioMin, stableRatioMax
	}

	if ratio < min || ratio > max {
		s.logger.Debug("implausible quote ratio filtered",
			zap.Float64("ratio", ratio),
			zap.Float64("min", min),
			zap.Float64("max", max))
		return false
	}
	return true
}
