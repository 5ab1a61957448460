package config

import (
	"fmt"
	"time"
)

// ProfileName selects a named tuning preset. The presets replace the ad-hoc
// "aggressive" and "conservative" parameter sets that previously lived in
// separate deployments.
type ProfileName string

const (
	ProfileConservative ProfileName = "conservative"
	ProfileAggressive   ProfileName = "aggressive"
)

// FeeModel holds the modeled cost components of a flashloan round trip,
// each expressed as a percentage of the input amount.
type FeeModel struct {
	FlashloanFeePct float64 `json:"flashloan_fee_pct"`
	GasFeePct       float64 `json:"gas_fee_pct"`
	SlippagePct     float64 `json:"slippage_pct"`
}

// TotalPct returns the sum of all modeled fee components.
func (f FeeModel) TotalPct() float64 {
	return f.FlashloanFeePct + f.GasFeePct + f.SlippagePct
}

// Profile is a complete scanning/execution tuning preset.
type Profile struct {
	Name                  ProfileName `json:"name"`
	Fees                  FeeModel    `json:"fees"`
	MinNetProfitPct       float64     `json:"min_net_profit_pct"`
	ScanInterval          Duration    `json:"scan_interval"`
	MaxExecutionsPerCycle int         `json:"max_executions_per_cycle"`
	MinExecutionInterval  Duration    `json:"min_execution_interval"`
	TradeAmountTokens     float64     `json:"trade_amount_tokens"`
}

// Profiles returns the built-in presets keyed by name.
func Profiles() map[ProfileName]Profile {
	return map[ProfileName]Profile{
		ProfileConservative: {
			Name: ProfileConservative,
			Fees: FeeModel{
				FlashloanFeePct: 0.25,
				GasFeePct:       0.05,
				SlippagePct:     0.05,
			},
			MinNetProfitPct:       0.5,
			ScanInterval:          Duration(30 * time.Second),
			MaxExecutionsPerCycle: 2,
			MinExecutionInterval:  Duration(30 * time.Second),
			TradeAmountTokens:     0.1,
		},
		ProfileAggressive: {
			Name: ProfileAggressive,
			Fees: FeeModel{
				FlashloanFeePct: 0.05,
				GasFeePct:       0.05,
				SlippagePct:     0.05,
			},
			MinNetProfitPct:       0.05,
			ScanInterval:          Duration(10 * time.Second),
			MaxExecutionsPerCycle: 3,
			MinExecutionInterval:  Duration(10 * time.Second),
			TradeAmountTokens:     0.5,
		},
	}
}

// ProfileByName looks up a built-in preset.
func ProfileByName(name ProfileName) (Profile, error) {
	p, ok := Profiles()[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	return p, nil
}

// Validate checks a profile for internally consistent values.
func (p *Profile) Validate() error {
	if p.Fees.FlashloanFeePct < 0 || p.Fees.GasFeePct < 0 || p.Fees.SlippagePct < 0 {
		return fmt.Errorf("fee components must be non-negative")
	}
	if p.MinNetProfitPct < 0 {
		return fmt.Errorf("min_net_profit_pct must be non-negative")
	}
	if p.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive")
	}
	if p.MaxExecutionsPerCycle <= 0 {
		return fmt.Errorf("max_executions_per_cycle must be positive")
	}
	if p.TradeAmountTokens <= 0 {
		return fmt.Errorf("trade_amount_tokens must be positive")
	}
	return nil
}
