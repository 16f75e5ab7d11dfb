package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Provider reports the chain the wallet is on.
type Provider interface {
	ChainID(ctx context.Context) (uint64, error)
	// URL is the JSON-RPC endpoint reads and writes go through.
	URL() string
}

// ChainSwitcher is implemented by providers that can change network.
type ChainSwitcher interface {
	SwitchChain(ctx context.Context, chainID uint64) error
}

// StaticProvider is a wallet whose network is set in process.
type StaticProvider struct {
	mu      sync.RWMutex
	chainID uint64
	url     string
}

// NewStaticProvider creates a provider on chainID.
func NewStaticProvider(chainID uint64, url string) *StaticProvider {
	return &StaticProvider{chainID: chainID, url: url}
}

// ChainID implements Provider.
func (p *StaticProvider) ChainID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chainID, nil
}

// URL implements Provider.
func (p *StaticProvider) URL() string { return p.url }

// SwitchChain implements ChainSwitcher.
func (p *StaticProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chainID = chainID
	return nil
}

// RPCProvider asks a JSON-RPC node for its chain id.
type RPCProvider struct {
	url string

	mu     sync.Mutex
	client *ethclient.Client
}

// NewRPCProvider creates a provider for url. The connection is dialed lazily.
func NewRPCProvider(url string) *RPCProvider {
	return &RPCProvider{url: url}
}

// ChainID implements Provider.
func (p *RPCProvider) ChainID(ctx context.Context) (uint64, error) {
	c, err := p.dial(ctx)
	if err != nil {
		return 0, err
	}
	id, err := c.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	return id.Uint64(), nil
}

// URL implements Provider.
func (p *RPCProvider) URL() string { return p.url }

// Close releases the connection.
func (p *RPCProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func (p *RPCProvider) dial(ctx context.Context) (*ethclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	c, err := ethclient.DialContext(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", p.url, err)
	}
	p.client = c
	return c, nil
}
