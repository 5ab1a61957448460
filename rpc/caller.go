package rpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arbstack/bscarb/gateway"
	"github.com/arbstack/bscarb/types"
)

// ChainCaller issues read-only contract calls: endpoint chosen by the
// rotator, traffic shaped by the gateway. It is the only path by which the
// rest of the system reads from the chain.
type ChainCaller struct {
	rotator *Rotator
	gw      *gateway.Gateway
}

// NewChainCaller binds a rotator and a gateway.
func NewChainCaller(rotator *Rotator, gw *gateway.Gateway) *ChainCaller {
	return &ChainCaller{rotator: rotator, gw: gw}
}

// Call performs an eth_call of data against the contract at to.
func (c *ChainCaller) Call(ctx context.Context, network types.Network, to common.Address, data []byte) ([]byte, error) {
	client, ep, err := c.rotator.Client(ctx, network)
	if err != nil {
		return nil, err
	}

	label := fmt.Sprintf("%s:eth_call:%s", network, to.Hex())
	return c.gw.Execute(ctx, gateway.Call{
		Label: label,
		Do: func(ctx context.Context) ([]byte, error) {
			msg := ethereum.CallMsg{To: &to, Data: data}
			out, err := client.CallContract(ctx, msg, nil)
			if err != nil {
				return nil, fmt.Errorf("call via %s: %w", ep.URL, err)
			}
			return out, nil
		},
	})
}
