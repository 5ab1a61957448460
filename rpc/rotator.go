// Package rpc manages blockchain endpoint rotation and the call plumbing
// that binds the endpoint rotator to the rate-limited gateway.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/arbstack/bscarb/types"
)

// ErrNoEndpoints is returned when a network has no configured endpoints.
// Callers disable scanning for that network rather than failing outright.
var ErrNoEndpoints = errors.New("rpc: no endpoints configured for network")

// Endpoint is one RPC URL in a network's rotation.
type Endpoint struct {
	Network types.Network
	URL     string
}

// Rotator round-robins among equivalent endpoints per network to spread
// read load, caching one dialed client per URL.
type Rotator struct {
	mu        sync.Mutex
	endpoints map[types.Network][]Endpoint
	cursor    map[types.Network]int
	clients   map[string]*ethclient.Client
	logger    *zap.Logger
}

// NewRotator builds a rotator from per-network endpoint URL lists.
func NewRotator(endpoints map[types.Network][]string, logger *zap.Logger) *Rotator {
	eps := make(map[types.Network][]Endpoint, len(endpoints))
	for network, urls := range endpoints {
		for _, url := range urls {
			eps[network] = append(eps[network], Endpoint{Network: network, URL: url})
		}
	}
	return &Rotator{
		endpoints: eps,
		cursor:    make(map[types.Network]int),
		clients:   make(map[string]*ethclient.Client),
		logger:    logger,
	}
}

// Next returns the next endpoint in the network's rotation, wrapping around.
func (r *Rotator) Next(network types.Network) (Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	eps := r.endpoints[network]
	if len(eps) == 0 {
		return Endpoint{}, ErrNoEndpoints
	}

	i := r.cursor[network] % len(eps)
	r.cursor[network] = (i + 1) % len(eps)
	return eps[i], nil
}

// Client returns the next endpoint's dialed client, dialing lazily on first
// use and caching the connection.
func (r *Rotator) Client(ctx context.Context, network types.Network) (*ethclient.Client, Endpoint, error) {
	ep, err := r.Next(network)
	if err != nil {
		return nil, Endpoint{}, err
	}

	r.mu.Lock()
	client, ok := r.clients[ep.URL]
	r.mu.Unlock()
	if ok {
		return client, ep, nil
	}

	client, err = ethclient.DialContext(ctx, ep.URL)
	if err != nil {
		return nil, ep, fmt.Errorf("failed to dial %s: %w", ep.URL, err)
	}

	r.mu.Lock()
	if existing, ok := r.clients[ep.URL]; ok {
		client.Close()
		client = existing
	} else {
		r.clients[ep.URL] = client
		r.logger.Debug("dialed endpoint",
			zap.String("network", string(network)),
			zap.String("url", ep.URL))
	}
	r.mu.Unlock()

	return client, ep, nil
}

// Enabled reports whether a network has at least one endpoint.
func (r *Rotator) Enabled(network types.Network) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints[network]) > 0
}

// Networks returns all networks with at least one endpoint.
func (r *Rotator) Networks() []types.Network {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Network, 0, len(r.endpoints))
	for network, eps := range r.endpoints {
		if len(eps) > 0 {
			out = append(out, network)
		}
	}
	return out
}

// Close closes all dialed clients.
func (r *Rotator) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		c.Close()
	}
	r.clients = make(map[string]*ethclient.Client)
}
