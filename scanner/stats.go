package scanner

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates lifetime counters for the scan loop. Counters are
// atomics; the cumulative realized profit is mutex guarded because it is
// a big.Int.
type Stats struct {
	startTime time.Time

	scans         atomic.Uint64
	pairsScanned  atomic.Uint64
	opportunities atomic.Uint64
	executions    atomic.Uint64
	successes     atomic.Uint64
	failures      atomic.Uint64
	rejections    atomic.Uint64

	mu             sync.Mutex
	realizedProfit *big.Int
}

// StatsSnapshot is a point-in-time copy of the scanner counters.
type StatsSnapshot struct {
	Uptime         time.Duration `json:"uptime"`
	Scans          uint64        `json:"scans"`
	PairsScanned   uint64        `json:"pairs_scanned"`
	Opportunities  uint64        `json:"opportunities"`
	Executions     uint64        `json:"executions"`
	Successes      uint64        `json:"successes"`
	Failures       uint64        `json:"failures"`
	Rejections     uint64        `json:"rejections"`
	RealizedProfit string        `json:"realized_profit_wei"`
}

// NewStats creates a stats block anchored at now.
func NewStats() *Stats {
	return &Stats{
		startTime:      time.Now(),
		realizedProfit: new(big.Int),
	}
}

func (s *Stats) RecordScan()       { s.scans.Add(1) }
func (s *Stats) RecordPairs(n int) { s.pairsScanned.Add(uint64(n)) }
func (s *Stats) RecordExecution()  { s.executions.Add(1) }
func (s *Stats) RecordFailure()    { s.failures.Add(1) }
func (s *Stats) RecordRejection()  { s.rejections.Add(1) }

func (s *Stats) RecordOpportunities(n int) {
	if n > 0 {
		s.opportunities.Add(uint64(n))
	}
}

// RecordSuccess adds a confirmed execution's realized profit.
func (s *Stats) RecordSuccess(profit *big.Int) {
	s.successes.Add(1)
	if profit == nil {
		return
	}
	s.mu.Lock()
	s.realizedProfit.Add(s.realizedProfit, profit)
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	profit := s.realizedProfit.String()
	s.mu.Unlock()

	return StatsSnapshot{
		Uptime:         time.Since(s.startTime).Round(time.Second),
		Scans:          s.scans.Load(),
		PairsScanned:   s.pairsScanned.Load(),
		Opportunities:  s.opportunities.Load(),
		Executions:     s.executions.Load(),
		Successes:      s.successes.Load(),
		Failures:       s.failures.Load(),
		Rejections:     s.rejections.Load(),
		RealizedProfit: profit,
	}
}
