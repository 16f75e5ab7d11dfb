package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// deployer is the account simulated deployments are derived from.
var deployer = common.BytesToAddress(crypto.Keccak256([]byte("fheprop.simulated.deployer"))[12:])

// SimulatedRegistry lazily deploys one Simulated contract per configured chain.
// The contract on the mock chain runs in mock mode.
type SimulatedRegistry struct {
	mu          sync.Mutex
	mockChainID uint64
	deployed    map[uint64]common.Address
	contracts   map[uint64]*Simulated
	opts        []SimulatedOption
}

// NewSimulatedRegistry deploys on every chain in chainIDs.
func NewSimulatedRegistry(mockChainID uint64, chainIDs []uint64, opts ...SimulatedOption) *SimulatedRegistry {
	r := &SimulatedRegistry{
		mockChainID: mockChainID,
		deployed:    make(map[uint64]common.Address, len(chainIDs)),
		contracts:   make(map[uint64]*Simulated, len(chainIDs)),
		opts:        opts,
	}
	for _, id := range chainIDs {
		r.deployed[id] = crypto.CreateAddress(deployer, id)
	}
	return r
}

// Pin deploys at the addresses in book instead of derived ones. Chains missing
// from the registry are added. Contracts already created keep their address.
func (r *SimulatedRegistry) Pin(book map[uint64]common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, addr := range book {
		if _, ok := r.contracts[id]; ok {
			continue
		}
		r.deployed[id] = addr
	}
}

// ContractFor implements Registry.
func (r *SimulatedRegistry) ContractFor(ctx context.Context, chainID uint64, _ string) (Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contracts[chainID]; ok {
		return c, nil
	}
	addr, ok := r.deployed[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: chainId=%d", ErrNotDeployed, chainID)
	}
	opts := append([]SimulatedOption{WithMockMode(chainID == r.mockChainID)}, r.opts...)
	c := NewSimulated(addr, chainID, opts...)
	r.contracts[chainID] = c
	return c, nil
}

// Address implements Registry.
func (r *SimulatedRegistry) Address(chainID uint64) (common.Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr, ok := r.deployed[chainID]
	return addr, ok
}

// AddressBook lists the deployment address per chain.
func (r *SimulatedRegistry) AddressBook() map[uint64]common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint64]common.Address, len(r.deployed))
	for k, v := range r.deployed {
		out[k] = v
	}
	return out
}

// EVMRegistry resolves deployments from an address book and dials one client per provider URL.
type EVMRegistry struct {
	mu      sync.Mutex
	book    map[uint64]common.Address
	clients map[string]*ethclient.Client
	dial    func(ctx context.Context, url string) (*ethclient.Client, error)
}

// NewEVMRegistry creates a registry over a chain id keyed address book.
func NewEVMRegistry(book map[uint64]common.Address) *EVMRegistry {
	return &EVMRegistry{
		book:    book,
		clients: make(map[string]*ethclient.Client),
		dial:    ethclient.DialContext,
	}
}

// ContractFor implements Registry.
func (r *EVMRegistry) ContractFor(ctx context.Context, chainID uint64, rpcURL string) (Contract, error) {
	addr, ok := r.book[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: chainId=%d", ErrNotDeployed, chainID)
	}
	client, err := r.client(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewEVM(addr, chainID, client)
}

func (r *EVMRegistry) client(ctx context.Context, url string) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[url]; ok {
		return c, nil
	}
	c, err := r.dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	r.clients[url] = c
	return c, nil
}

// Address implements Registry.
func (r *EVMRegistry) Address(chainID uint64) (common.Address, bool) {
	addr, ok := r.book[chainID]
	return addr, ok
}

// AddressBook lists the configured deployments.
func (r *EVMRegistry) AddressBook() map[uint64]common.Address {
	out := make(map[uint64]common.Address, len(r.book))
	for k, v := range r.book {
		out[k] = v
	}
	return out
}

// Close closes every dialed client.
func (r *EVMRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for url, c := range r.clients {
		c.Close()
		delete(r.clients, url)
	}
}
