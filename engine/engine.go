// Package engine computes round-trip arbitrage profit across venue pairs.
package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/arbstack/bscarb/config"
	"github.com/arbstack/bscarb/types"
)

// Quoter is the quote source consumed by the engine.
type Quoter interface {
	Quote(ctx context.Context, network types.Network, venue types.Venue, tokenIn, tokenOut common.Address, amountIn *big.Int) *big.Int
}

// Token pairs a symbol with its address for opportunity reporting.
type Token struct {
	Symbol  string
	Address common.Address
}

// RoundTripResult is the outcome of one buy/sell round trip. A failed or
// missing leg yields the zero result, not an error.
type RoundTripResult struct {
	GrossPct    float64
	NetPct      float64
	FinalAmount *big.Int
}

// Engine prices round trips and enumerates opportunities between venues.
type Engine struct {
	quoter Quoter
	fees   config.FeeModel
	venues map[types.Network][]types.Venue
	logger *zap.Logger
}

// New creates a profit engine with the given fee model and venue registry.
func New(quoter Quoter, fees config.FeeModel, venues map[types.Network][]types.Venue, logger *zap.Logger) *Engine {
	return &Engine{
		quoter: quoter,
		fees:   fees,
		venues: venues,
		logger: logger,
	}
}

// RoundTrip quotes tokenA→tokenB on buyVenue, then tokenB→tokenA on
// sellVenue with leg one's output. AmountIn is held constant across both
// legs; gross and net percentages are floored at zero.
func (e *Engine) RoundTrip(ctx context.Context, network types.Network, amountIn *big.Int, tokenA, tokenB common.Address, buyVenue, sellVenue types.Venue) RoundTripResult {
	zero := RoundTripResult{FinalAmount: new(big.Int)}

	leg1 := e.quoter.Quote(ctx, network, buyVenue, tokenA, tokenB, amountIn)
	if leg1 == nil || leg1.Sign() == 0 {
		return zero
	}

	leg2 := e.quoter.Quote(ctx, network, sellVenue, tokenB, tokenA, leg1)
	if leg2 == nil || leg2.Sign() == 0 {
		return zero
	}

	gross := pctChange(amountIn, leg2)
	if gross < 0 {
		gross = 0
	}

	net := gross - e.fees.TotalPct()
	if net < 0 {
		net = 0
	}

	return RoundTripResult{
		GrossPct:    gross,
		NetPct:      net,
		FinalAmount: leg2,
	}
}

// FindOpportunities prices the round trip for every unordered pair of
// allow-listed active venues, in both directions, and returns every
// computed opportunity including unprofitable ones. Fewer than two
// qualifying venues yields none.
func (e *Engine) FindOpportunities(ctx context.Context, network types.Network, tokenA, tokenB Token, amountIn *big.Int) []types.Opportunity {
	venues := e.qualifyingVenues(network)
	if len(venues) < 2 {
		return nil
	}

	var out []types.Opportunity
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			for _, dir := range [][2]types.Venue{
				{venues[i], venues[j]},
				{venues[j], venues[i]},
			} {
				buy, sell := dir[0], dir[1]
				res := e.RoundTrip(ctx, network, amountIn, tokenA.Address, tokenB.Address, buy, sell)

				out = append(out, types.Opportunity{
					Network:     network,
					TokenIn:     tokenA.Address,
					TokenOut:    tokenB.Address,
					TokenInSym:  tokenA.Symbol,
					TokenOutSym: tokenB.Symbol,
					AmountIn:    new(big.Int).Set(amountIn),
					BuyVenue:    buy.Name,
					SellVenue:   sell.Name,
					BuyRouter:   buy.Router,
					SellRouter:  sell.Router,
					GrossPct:    res.GrossPct,
					NetPct:      res.NetPct,
					FinalAmount: res.FinalAmount,
					Path:        []common.Address{tokenA.Address, tokenB.Address, tokenA.Address},
					FoundAt:     time.Now(),
				})

				if res.NetPct > 0 {
					e.logger.Info("round trip priced",
						zap.String("network", string(network)),
						zap.String("pair", tokenA.Symbol+"/"+tokenB.Symbol),
						zap.String("buy", buy.Name),
						zap.String("sell", sell.Name),
						zap.Float64("gross_pct", res.GrossPct),
						zap.Float64("net_pct", res.NetPct))
				}
			}
		}
	}
	return out
}

// qualifyingVenues returns active venues on the major allow-list.
func (e *Engine) qualifyingVenues(network types.Network) []types.Venue {
	var out []types.Venue
	for _, v := range e.venues[network] {
		if v.Active && v.Major {
			out = append(out, v)
		}
	}
	return out
}

// pctChange returns (after-before)/before as a percentage.
func pctChange(before, after *big.Int) float64 {
	diff := new(big.Float).Sub(new(big.Float).SetInt(after), new(big.Float).SetInt(before))
	ratio := new(big.Float).Quo(diff, new(big.Float).SetInt(before))
	pct, _ := new(big.Float).Mul(ratio, big.NewFloat(100)).Float64()
	return pct
}
