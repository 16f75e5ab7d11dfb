// Package wallet connects to a live wallet or to a mock development wallet and
// publishes every state transition as a model.WalletEvent.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

// State is a point-in-time view of the wallet.
type State struct {
	Connected bool             `json:"connected"`
	Mock      bool             `json:"mock"`
	ChainID   uint64           `json:"chain_id,omitempty"`
	Accounts  []common.Address `json:"accounts"`
	RPCURL    string           `json:"rpc_url,omitempty"`
}

// Account returns the selected account, the first one.
func (s State) Account() (common.Address, bool) {
	if len(s.Accounts) == 0 {
		return common.Address{}, false
	}
	return s.Accounts[0], true
}

// Publisher receives wallet events.
type Publisher interface {
	Publish(ctx context.Context, e model.WalletEvent) error
}

// Connector owns the wallet connection.
type Connector struct {
	provider       Provider
	walletKeys     *Keyring
	mockKeys       *Keyring
	mockAccount    common.Address
	mockChainID    uint64
	mockRPCURL     string
	forceMock      bool
	fallbackToMock bool
	publisher      Publisher
	logger         logger.Logger
	clock          func() time.Time

	mu    sync.RWMutex
	state State
}

// NewConnector creates a disconnected connector.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{
		mockChainID: 31337,
		logger:      logger.NewNop(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect connects to the live wallet, or to the mock wallet when mock mode is
// forced or no wallet answers and fallback is enabled.
func (c *Connector) Connect(ctx context.Context) (State, error) {
	next, err := c.detect(ctx)
	if err != nil {
		return State{}, err
	}

	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	metrics.UpdateWalletChainID(next.ChainID)
	c.logger.Info(ctx, "wallet connected",
		logger.Bool("mock", next.Mock),
		logger.Uint64("chain_id", next.ChainID),
		logger.Int("accounts", len(next.Accounts)),
	)
	c.publish(ctx, model.WalletConnected, prev, next)
	return next.clone(), nil
}

func (c *Connector) detect(ctx context.Context) (State, error) {
	if c.forceMock {
		return c.mockState(), nil
	}
	if c.provider == nil {
		if c.fallbackToMock {
			return c.mockState(), nil
		}
		return State{}, ErrUnavailable
	}
	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		if c.fallbackToMock {
			c.logger.Warn(ctx, "wallet unreachable, using mock wallet", logger.Error(err))
			return c.mockState(), nil
		}
		return State{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return State{
		Connected: true,
		ChainID:   chainID,
		Accounts:  c.walletKeys.Addresses(),
		RPCURL:    c.provider.URL(),
	}, nil
}

func (c *Connector) mockState() State {
	accounts := []common.Address{c.mockAccount}
	for _, a := range c.mockKeys.Addresses() {
		if a != c.mockAccount {
			accounts = append(accounts, a)
		}
	}
	return State{
		Connected: true,
		Mock:      true,
		ChainID:   c.mockChainID,
		Accounts:  accounts,
		RPCURL:    c.mockRPCURL,
	}
}

// Disconnect drops the connection.
func (c *Connector) Disconnect(ctx context.Context) State {
	c.mu.Lock()
	prev := c.state
	c.state = State{}
	c.mu.Unlock()

	if prev.Connected {
		metrics.UpdateWalletChainID(0)
		c.logger.Info(ctx, "wallet disconnected")
		c.publish(ctx, model.WalletDisconnected, prev, State{})
	}
	return State{}
}

// SwitchChain moves the wallet to chainID.
func (c *Connector) SwitchChain(ctx context.Context, chainID uint64) (State, error) {
	c.mu.RLock()
	cur := c.state.clone()
	c.mu.RUnlock()

	if !cur.Connected {
		return State{}, ErrNotConnected
	}
	if cur.ChainID == chainID {
		return cur, nil
	}
	if cur.Mock {
		if c.forceMock {
			return State{}, fmt.Errorf("%w: chainId=%d", ErrMockPinned, c.mockChainID)
		}
	} else {
		sw, ok := c.provider.(ChainSwitcher)
		if !ok {
			return State{}, ErrSwitchUnsupported
		}
		if err := sw.SwitchChain(ctx, chainID); err != nil {
			return State{}, fmt.Errorf("switch chain: %w", err)
		}
	}

	c.mu.Lock()
	if !c.state.Connected {
		c.mu.Unlock()
		return State{}, ErrNotConnected
	}
	prev := c.state.clone()
	c.state.ChainID = chainID
	next := c.state.clone()
	c.mu.Unlock()

	metrics.UpdateWalletChainID(chainID)
	c.logger.Info(ctx, "wallet chain changed",
		logger.Uint64("from", prev.ChainID),
		logger.Uint64("to", chainID),
	)
	c.publish(ctx, model.WalletChainChanged, prev, next)
	return next, nil
}

// SwitchAccount selects addr, which must be one of the wallet's accounts.
func (c *Connector) SwitchAccount(ctx context.Context, addr common.Address) (State, error) {
	c.mu.Lock()
	if !c.state.Connected {
		c.mu.Unlock()
		return State{}, ErrNotConnected
	}
	idx := slices.Index(c.state.Accounts, addr)
	if idx < 0 {
		c.mu.Unlock()
		return State{}, fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}
	prev := c.state.clone()
	if idx == 0 {
		c.mu.Unlock()
		return prev, nil
	}
	accounts := make([]common.Address, 0, len(prev.Accounts))
	accounts = append(accounts, addr)
	for _, a := range prev.Accounts {
		if a != addr {
			accounts = append(accounts, a)
		}
	}
	c.state.Accounts = accounts
	next := c.state.clone()
	c.mu.Unlock()

	c.logger.Info(ctx, "wallet account changed", logger.String("account", addr.Hex()))
	c.publish(ctx, model.WalletAccountsChanged, prev, next)
	return next, nil
}

// State returns a copy of the current state.
func (c *Connector) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Key returns the private key the connected wallet holds for addr.
func (c *Connector) Key(addr common.Address) (*ecdsa.PrivateKey, bool) {
	c.mu.RLock()
	mock := c.state.Mock
	c.mu.RUnlock()
	if mock {
		return c.mockKeys.Key(addr)
	}
	return c.walletKeys.Key(addr)
}

func (c *Connector) publish(ctx context.Context, t model.WalletEventType, prev, next State) {
	metrics.RecordWalletEvent(string(t))
	if c.publisher == nil {
		return
	}
	e := model.WalletEvent{
		ID:              uuid.NewString(),
		Type:            t,
		ChainID:         next.ChainID,
		PreviousChainID: prev.ChainID,
		Accounts:        next.Accounts,
		Mock:            next.Mock,
		At:              c.clock(),
	}
	if err := c.publisher.Publish(ctx, e); err != nil {
		c.logger.Error(ctx, "failed to publish wallet event",
			logger.String("type", string(t)),
			logger.Error(err),
		)
	}
}

func (s State) clone() State {
	s.Accounts = append([]common.Address(nil), s.Accounts...)
	return s
}
