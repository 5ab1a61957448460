package executor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/arbstack/bscarb/types"
)

const arbitrageABIJson = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "address", "name": "venueA", "type": "address"},
			{"internalType": "address", "name": "venueB", "type": "address"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "calculateArbitrageProfit",
		"outputs": [{"internalType": "uint256", "name": "profit", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "address", "name": "venueA", "type": "address"},
			{"internalType": "address", "name": "venueB", "type": "address"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "isArbitrageProfitable",
		"outputs": [{"internalType": "bool", "name": "profitable", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "asset", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "address", "name": "venueA", "type": "address"},
			{"internalType": "address", "name": "venueB", "type": "address"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"}
		],
		"name": "executeArbitrage",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "address", "name": "asset", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "profit", "type": "uint256"},
			{"indexed": false, "internalType": "address", "name": "venueA", "type": "address"},
			{"indexed": false, "internalType": "address", "name": "venueB", "type": "address"}
		],
		"name": "ArbitrageExecuted",
		"type": "event"
	}
]`

// ErrNotExecutedEvent marks a log that is not an ArbitrageExecuted event.
var ErrNotExecutedEvent = errors.New("executor: not an ArbitrageExecuted event")

// ExecutedEvent is the decoded ArbitrageExecuted event payload. Its profit
// field is the authoritative realized profit.
type ExecutedEvent struct {
	Asset  common.Address
	Amount *big.Int
	Profit *big.Int
	VenueA common.Address
	VenueB common.Address
}

// ReadCallFunc issues a read-only contract call on a network; in production
// it is the rotator+gateway chain caller, so pre-validation reads share the
// same rate limiting as quote traffic.
type ReadCallFunc func(ctx context.Context, network types.Network, to common.Address, data []byte) ([]byte, error)

// Contract is the authoritative arbitrage contract's ABI surface.
type Contract interface {
	CalculateProfit(ctx context.Context, amount *big.Int, venueA, venueB common.Address, path []common.Address) (*big.Int, error)
	IsProfitable(ctx context.Context, amount *big.Int, venueA, venueB common.Address, path []common.Address) (bool, error)
	ExecuteArbitrage(ctx context.Context, asset common.Address, amount *big.Int, venueA, venueB common.Address, path []common.Address, minProfit *big.Int) (*gethtypes.Transaction, error)
	WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error)
	ParseExecuted(lg gethtypes.Log) (*ExecutedEvent, error)
}

// BoundContract talks to the deployed arbitrage contract: reads via the
// gateway-backed call path, writes via a directly dialed client with a
// keyed transactor.
type BoundContract struct {
	network    types.Network
	address    common.Address
	parsedABI  abi.ABI
	readCall   ReadCallFunc
	client     *ethclient.Client
	transactor *bind.TransactOpts
	bound      *bind.BoundContract
}

// NewBoundContract creates the production contract binding. client and key
// may be nil for read-only (simulation) deployments.
func NewBoundContract(network types.Network, address common.Address, readCall ReadCallFunc, client *ethclient.Client, key *ecdsa.PrivateKey, chainID *big.Int) (*BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(arbitrageABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arbitrage ABI: %w", err)
	}

	c := &BoundContract{
		network:   network,
		address:   address,
		parsedABI: parsed,
		readCall:  readCall,
		client:    client,
	}

	if key != nil && client != nil {
		opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return nil, fmt.Errorf("failed to create transactor: %w", err)
		}
		c.transactor = opts
		c.bound = bind.NewBoundContract(address, parsed, client, client, client)
	}
	return c, nil
}

// CanSubmit reports whether a signer is configured.
func (c *BoundContract) CanSubmit() bool {
	return c.bound != nil && c.transactor != nil
}

func (c *BoundContract) CalculateProfit(ctx context.Context, amount *big.Int, venueA, venueB common.Address, path []common.Address) (*big.Int, error) {
	data, err := c.parsedABI.Pack("calculateArbitrageProfit", amount, venueA, venueB, path)
	if err != nil {
		return nil, fmt.Errorf("failed to pack calculateArbitrageProfit: %w", err)
	}
	raw, err := c.readCall(ctx, c.network, c.address, data)
	if err != nil {
		return nil, err
	}
	vals, err := c.parsedABI.Unpack("calculateArbitrageProfit", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack calculateArbitrageProfit: %w", err)
	}
	profit, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected calculateArbitrageProfit return type")
	}
	return profit, nil
}

func (c *BoundContract) IsProfitable(ctx context.Context, amount *big.Int, venueA, venueB common.Address, path []common.Address) (bool, error) {
	data, err := c.parsedABI.Pack("isArbitrageProfitable", amount, venueA, venueB, path)
	if err != nil {
		return false, fmt.Errorf("failed to pack isArbitrageProfitable: %w", err)
	}
	raw, err := c.readCall(ctx, c.network, c.address, data)
	if err != nil {
		return false, err
	}
	vals, err := c.parsedABI.Unpack("isArbitrageProfitable", raw)
	if err != nil {
		return false, fmt.Errorf("failed to unpack isArbitrageProfitable: %w", err)
	}
	profitable, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isArbitrageProfitable return type")
	}
	return profitable, nil
}

func (c *BoundContract) ExecuteArbitrage(ctx context.Context, asset common.Address, amount *big.Int, venueA, venueB common.Address, path []common.Address, minProfit *big.Int) (*gethtypes.Transaction, error) {
	if !c.CanSubmit() {
		return nil, fmt.Errorf("no signer configured")
	}
	opts := *c.transactor
	opts.Context = ctx
	return c.bound.Transact(&opts, "executeArbitrage", asset, amount, venueA, venueB, path, minProfit)
}

func (c *BoundContract) WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	if c.client == nil {
		return nil, fmt.Errorf("no client configured")
	}
	return bind.WaitMined(ctx, c.client, tx)
}

// ParseExecuted decodes an ArbitrageExecuted event from a receipt log.
func (c *BoundContract) ParseExecuted(lg gethtypes.Log) (*ExecutedEvent, error) {
	return ParseExecutedEvent(c.parsedABI, c.address, lg)
}

// ParseExecutedEvent decodes an ArbitrageExecuted log emitted by the given
// contract address.
func ParseExecutedEvent(parsedABI abi.ABI, contract common.Address, lg gethtypes.Log) (*ExecutedEvent, error) {
	ev, ok := parsedABI.Events["ArbitrageExecuted"]
	if !ok {
		return nil, fmt.Errorf("ABI missing ArbitrageExecuted event")
	}
	if lg.Address != contract || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
		return nil, ErrNotExecutedEvent
	}

	var out ExecutedEvent
	if err := parsedABI.UnpackIntoInterface(&out, "ArbitrageExecuted", lg.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack ArbitrageExecuted: %w", err)
	}
	return &out, nil
}

// ArbitrageABI returns the parsed contract ABI, used by tests and tooling.
func ArbitrageABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(arbitrageABIJson))
}
