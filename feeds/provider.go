// Package feeds wires on-chain price sources into the oracle and registry
// engines over a single shared Ethereum RPC connection.
package feeds

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"collend/feeds/chainlink"
	"collend/feeds/univ3"
	"collend/native/oracle"
)

const defaultLookupTimeout = 10 * time.Second

// ContractCaller is the subset of the Ethereum RPC the provider needs.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Provider builds feed clients on demand and caches them per contract
// address. It implements oracle.FeedProvider, and its pool-leg lookup
// satisfies the registry's PoolDirectory.
type Provider struct {
	mu     sync.Mutex
	caller ContractCaller
	rounds map[common.Address]*chainlink.Feed
	pools  map[common.Address]*univ3.Pool

	lookupTimeout time.Duration
}

func NewProvider(caller ContractCaller) *Provider {
	return &Provider{
		caller:        caller,
		rounds:        make(map[common.Address]*chainlink.Feed),
		pools:         make(map[common.Address]*univ3.Pool),
		lookupTimeout: defaultLookupTimeout,
	}
}

// SetLookupTimeout overrides the deadline applied to synchronous pool-leg
// lookups issued without a caller-supplied context.
func (p *Provider) SetLookupTimeout(d time.Duration) {
	if p == nil || d <= 0 {
		return
	}
	p.mu.Lock()
	p.lookupTimeout = d
	p.mu.Unlock()
}

// RoundFeed returns the cached round-feed client for source, creating it on
// first use.
func (p *Provider) RoundFeed(source common.Address) (oracle.RoundFeed, error) {
	if p == nil || p.caller == nil {
		return nil, fmt.Errorf("feeds: provider not initialised")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	feed, ok := p.rounds[source]
	if !ok {
		feed = chainlink.NewFeed(p.caller, source)
		p.rounds[source] = feed
	}
	return feed, nil
}

// TwapPool returns the cached pool client for pool, creating it on first use.
func (p *Provider) TwapPool(pool common.Address) (oracle.TwapPool, error) {
	client, err := p.poolClient(pool)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// PoolTokens resolves the two token legs of pool. The registry calls this
// without a context during listing validation, so the provider applies its
// own deadline.
func (p *Provider) PoolTokens(pool common.Address) (token0, token1 common.Address, err error) {
	client, err := p.poolClient(pool)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	p.mu.Lock()
	timeout := p.lookupTimeout
	p.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.TokenLegs(ctx)
}

func (p *Provider) poolClient(pool common.Address) (*univ3.Pool, error) {
	if p == nil || p.caller == nil {
		return nil, fmt.Errorf("feeds: provider not initialised")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	client, ok := p.pools[pool]
	if !ok {
		client = univ3.NewPool(p.caller, pool)
		p.pools[pool] = client
	}
	return client, nil
}
