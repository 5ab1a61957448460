package executor

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arbstack/bscarb/config"
	"github.com/arbstack/bscarb/types"
	"github.com/arbstack/bscarb/utils/metrics"
)

const execTestNet = types.Network("bsc")

var executedTopic = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")

// mockContract scripts every contract interaction for a test.
type mockContract struct {
	profitable  bool
	profitErr   error
	onchainGain *big.Int
	submitErr   error
	receipt     *gethtypes.Receipt
	waitErr     error
	event       *ExecutedEvent
	submissions atomic.Int32
	validations atomic.Int32
}

func (m *mockContract) CalculateProfit(ctx context.Context, amount *big.Int, venueA, venueB common.Address, path []common.Address) (*big.Int, error) {
	if m.onchainGain == nil {
		return new(big.Int), nil
	}
	return m.onchainGain, nil
}

func (m *mockContract) IsProfitable(ctx context.Context, amount *big.Int, venueA, venueB common.Address, path []common.Address) (bool, error) {
	m.validations.Add(1)
	return m.profitable, m.profitErr
}

func (m *mockContract) ExecuteArbitrage(ctx context.Context, asset common.Address, amount *big.Int, venueA, venueB common.Address, path []common.Address, minProfit *big.Int) (*gethtypes.Transaction, error) {
	m.submissions.Add(1)
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return gethtypes.NewTransaction(1, common.HexToAddress("0x01"), new(big.Int), 21000, big.NewInt(1), nil), nil
}

func (m *mockContract) WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	if m.waitErr != nil {
		return nil, m.waitErr
	}
	return m.receipt, nil
}

func (m *mockContract) ParseExecuted(lg gethtypes.Log) (*ExecutedEvent, error) {
	if len(lg.Topics) > 0 && lg.Topics[0] == executedTopic && m.event != nil {
		return m.event, nil
	}
	return nil, ErrNotExecutedEvent
}

func testExecCfg() config.ExecutorConfig {
	return config.ExecutorConfig{
		MinProfitGuardBps: 10,
		ConfirmTimeout:    config.Duration(time.Second),
		DedupeCacheSize:   16,
		DedupeWindow:      config.Duration(time.Minute),
	}
}

func testOpportunity(buy, sell string) *types.Opportunity {
	return &types.Opportunity{
		Network:     execTestNet,
		TokenIn:     common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
		TokenOut:    common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56"),
		TokenInSym:  "WBNB",
		TokenOutSym: "BUSD",
		AmountIn:    new(big.Int).SetUint64(1e18),
		BuyVenue:    buy,
		SellVenue:   sell,
		BuyRouter:   common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		SellRouter:  common.HexToAddress("0x3a6d8cA21D1CF76F653A67577FA0D27453350dD8"),
		GrossPct:    0.84,
		NetPct:      0.69,
		FinalAmount: new(big.Int).SetUint64(1.0084e18),
		FoundAt:     time.Now(),
	}
}

func newTestExecutor(t *testing.T, m *mockContract, simulation bool) *Executor {
	t.Helper()
	exec, err := New(m, testExecCfg(), execTestNet, simulation, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return exec
}

func successReceipt(profit *big.Int) (*gethtypes.Receipt, *ExecutedEvent) {
	ev := &ExecutedEvent{
		Asset:  common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
		Amount: new(big.Int).SetUint64(1e18),
		Profit: profit,
		VenueA: common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		VenueB: common.HexToAddress("0x3a6d8cA21D1CF76F653A67577FA0D27453350dD8"),
	}
	receipt := &gethtypes.Receipt{
		Status:  1,
		GasUsed: 250000,
		Logs: []*gethtypes.Log{
			{Topics: []common.Hash{executedTopic}},
		},
	}
	return receipt, ev
}

func TestExecuteRejectsWhenContractDisagrees(t *testing.T) {
	m := &mockContract{profitable: false}
	exec := newTestExecutor(t, m, false)

	res := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))

	assert.Equal(t, StateRejected, res.State)
	assert.Contains(t, res.Reason, "unprofitable")
	assert.Equal(t, int32(1), m.validations.Load())
	assert.Equal(t, int32(0), m.submissions.Load(),
		"a rejected opportunity must never be submitted")
}

func TestExecuteRejectsOnValidationError(t *testing.T) {
	m := &mockContract{profitErr: errors.New("execution reverted")}
	exec := newTestExecutor(t, m, false)

	res := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))

	assert.Equal(t, StateRejected, res.State)
	assert.Equal(t, int32(0), m.submissions.Load())
}

func TestExecuteConfirmedUsesEventProfit(t *testing.T) {
	// The estimate says 0.69% of 1e18; the event reports 4.2e15 wei. The
	// event figure is the one carried on the result.
	realized := new(big.Int).SetUint64(4.2e15)
	receipt, ev := successReceipt(realized)
	m := &mockContract{profitable: true, receipt: receipt, event: ev}
	exec := newTestExecutor(t, m, false)

	res := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))

	require.True(t, res.Success())
	assert.Equal(t, 0, realized.Cmp(res.RealizedProfit))
	assert.NotEqual(t, common.Hash{}, res.TxHash)
	assert.Equal(t, int32(1), m.submissions.Load())
}

func TestExecuteConfirmedWithoutEventReportsZero(t *testing.T) {
	receipt := &gethtypes.Receipt{Status: 1, GasUsed: 250000}
	m := &mockContract{profitable: true, receipt: receipt}
	exec := newTestExecutor(t, m, false)

	res := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))

	require.True(t, res.Success())
	assert.Equal(t, 0, res.RealizedProfit.Sign(),
		"without the execution event no estimate may be reported as realized")
}

func TestExecuteRevertedTransaction(t *testing.T) {
	receipt := &gethtypes.Receipt{Status: 0, GasUsed: 250000}
	m := &mockContract{profitable: true, receipt: receipt}
	exec := newTestExecutor(t, m, false)

	res := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))

	assert.Equal(t, StateConfirmedReverted, res.State)
	assert.False(t, res.Success())
	assert.Equal(t, "transaction failed", res.Reason)
	assert.NotEqual(t, common.Hash{}, res.TxHash)
}

func TestExecuteSimulationModeNeverSubmits(t *testing.T) {
	m := &mockContract{profitable: true}
	exec := newTestExecutor(t, m, true)

	res := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))

	assert.Equal(t, StateRejected, res.State)
	assert.Contains(t, res.Reason, "simulation")
	assert.Equal(t, int32(1), m.validations.Load(), "simulation still validates")
	assert.Equal(t, int32(0), m.submissions.Load())
}

func TestExecuteDeduplicatesRepeatedOpportunities(t *testing.T) {
	receipt, ev := successReceipt(big.NewInt(1e15))
	m := &mockContract{profitable: true, receipt: receipt, event: ev}
	exec := newTestExecutor(t, m, false)

	first := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))
	require.True(t, first.Success())

	second := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))
	assert.Equal(t, StateRejected, second.State)
	assert.Contains(t, second.Reason, "duplicate")
	assert.Equal(t, int32(1), m.submissions.Load())

	// A different route is a different opportunity.
	third := exec.Execute(context.Background(), testOpportunity("biswap", "pancakeswap"))
	assert.True(t, third.Success())
}

func TestExecuteRevalidatesRediscoveredRejectedRoute(t *testing.T) {
	m := &mockContract{profitable: false}
	exec := newTestExecutor(t, m, false)

	first := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))
	assert.Equal(t, StateRejected, first.State)
	assert.Contains(t, first.Reason, "unprofitable")

	// The same route rediscovered by a later cycle gets a fresh validation
	// instead of a cached rejection.
	receipt, ev := successReceipt(big.NewInt(1e15))
	m.profitable = true
	m.receipt = receipt
	m.event = ev

	second := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))
	require.True(t, second.Success())
	assert.Equal(t, int32(2), m.validations.Load())
	assert.Equal(t, int32(1), m.submissions.Load())
}

func TestExecuteDedupeWindowExpires(t *testing.T) {
	receipt, ev := successReceipt(big.NewInt(1e15))
	m := &mockContract{profitable: true, receipt: receipt, event: ev}
	cfg := testExecCfg()
	cfg.DedupeWindow = config.Duration(20 * time.Millisecond)
	exec, err := New(m, cfg, execTestNet, false, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	first := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))
	require.True(t, first.Success())

	within := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))
	assert.Equal(t, StateRejected, within.State)
	assert.Contains(t, within.Reason, "duplicate")

	time.Sleep(30 * time.Millisecond)

	again := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))
	assert.True(t, again.Success())
	assert.Equal(t, int32(2), m.submissions.Load())
}

func TestExecuteRecordsMetrics(t *testing.T) {
	receipt, ev := successReceipt(big.NewInt(2e15))
	m := &mockContract{profitable: true, receipt: receipt, event: ev}
	em := metrics.NewExecutorMetrics("test_executor")
	exec, err := New(m, testExecCfg(), execTestNet, false, em, zaptest.NewLogger(t))
	require.NoError(t, err)

	res := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))
	require.True(t, res.Success())
	assert.Equal(t, float64(1), testutil.ToFloat64(em.Successes))
	assert.InDelta(t, 0.002, testutil.ToFloat64(em.ProfitTotal), 1e-9)

	m.receipt = &gethtypes.Receipt{Status: 0, GasUsed: 250000}
	reverted := exec.Execute(context.Background(), testOpportunity("biswap", "pancakeswap"))
	assert.Equal(t, StateConfirmedReverted, reverted.State)
	assert.Equal(t, float64(1), testutil.ToFloat64(em.Failures))
	assert.Equal(t, 1, testutil.CollectAndCount(em.GasUsed))
}

func TestExecuteUserRejection(t *testing.T) {
	m := &mockContract{profitable: true, submitErr: errors.New("transaction was rejected: user denied")}
	exec := newTestExecutor(t, m, false)

	res := exec.Execute(context.Background(), testOpportunity("pancakeswap", "biswap"))

	assert.Equal(t, StateRejected, res.State)
	assert.Contains(t, res.Reason, "declined")
}

func TestResultConstructors(t *testing.T) {
	rej := Rejected("nope")
	assert.Equal(t, StateRejected, rej.State)
	assert.False(t, rej.Success())

	tx := common.HexToHash("0xabc")
	failed := Failed(tx, "transaction failed")
	assert.Equal(t, StateConfirmedReverted, failed.State)
	assert.Equal(t, tx, failed.TxHash)
	assert.False(t, failed.Success())

	ok := Confirmed(tx, big.NewInt(42))
	assert.Equal(t, StateConfirmedSuccess, ok.State)
	assert.True(t, ok.Success())
	assert.Equal(t, int64(42), ok.RealizedProfit.Int64())
}
