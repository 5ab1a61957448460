package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Network identifies a configured chain (e.g. "bsc").
type Network string

// Venue is an on-chain exchange router a quote can be taken from.
// Venues are immutable configuration values, referenced by name.
type Venue struct {
	Name   string
	Router common.Address
	Active bool
	FeeBps uint32
	// Major marks a venue as part of the high-liquidity allow-list;
	// only major venues participate in round-trip scanning.
	Major bool
}

// Opportunity is a round-trip price discrepancy between two venues:
// buy TokenOut with TokenIn on BuyVenue, sell it back on SellVenue.
// BuyVenue and SellVenue are always distinct.
type Opportunity struct {
	Network     Network
	TokenIn     common.Address
	TokenOut    common.Address
	TokenInSym  string
	TokenOutSym string
	AmountIn    *big.Int
	BuyVenue    string
	SellVenue   string
	BuyRouter   common.Address
	SellRouter  common.Address
	GrossPct    float64
	NetPct      float64
	FinalAmount *big.Int
	Path        []common.Address
	FoundAt     time.Time
}
