package executor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// State is the per-opportunity execution state machine:
// Detected → PreValidated → {Rejected | Submitted} →
// Confirmed{Success|Reverted} → Reported. Rejected and Reported are
// terminal; a rejected or reverted opportunity is never retried, it must be
// rediscovered by a later scan cycle.
type State int

const (
	StateDetected State = iota
	StatePreValidated
	StateRejected
	StateSubmitted
	StateConfirmedSuccess
	StateConfirmedReverted
	StateReported
)

func (s State) String() string {
	switch s {
	case StateDetected:
		return "detected"
	case StatePreValidated:
		return "prevalidated"
	case StateRejected:
		return "rejected"
	case StateSubmitted:
		return "submitted"
	case StateConfirmedSuccess:
		return "confirmed"
	case StateConfirmedReverted:
		return "reverted"
	case StateReported:
		return "reported"
	}
	return "unknown"
}

// Result is the terminal outcome of executing one opportunity. Exactly one
// of the constructors below produces it, so consumers can switch on State
// and handle every variant.
type Result struct {
	State          State
	TxHash         common.Hash
	RealizedProfit *big.Int
	Reason         string
}

// Rejected is an opportunity turned away before any transaction was
// submitted (failed pre-validation, duplicate, caller refusal).
func Rejected(reason string) Result {
	return Result{State: StateRejected, Reason: reason}
}

// Failed is a submitted transaction that did not succeed on-chain.
func Failed(tx common.Hash, reason string) Result {
	return Result{State: StateConfirmedReverted, TxHash: tx, Reason: reason}
}

// Confirmed is a successful trade. profit is the contract-reported realized
// profit from the emitted event, not the pre-trade estimate.
func Confirmed(tx common.Hash, profit *big.Int) Result {
	return Result{State: StateConfirmedSuccess, TxHash: tx, RealizedProfit: profit}
}

// Success reports whether the trade confirmed on-chain.
func (r Result) Success() bool {
	return r.State == StateConfirmedSuccess
}
