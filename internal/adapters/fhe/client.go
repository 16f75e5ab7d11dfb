package fhe

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

// State is a point-in-time view of the client.
type State struct {
	ChainID uint64 `json:"chain_id"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Client owns the instance for the current chain. Recreating cancels any
// creation still in flight; a canceled creation never commits.
type Client struct {
	factory Factory
	logger  logger.Logger

	mu       sync.RWMutex
	chainID  uint64
	instance Instance
	status   Status
	err      error
	token    *Token
	done     chan struct{}

	wg sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates an idle client.
func NewClient(factory Factory, opts ...Option) *Client {
	done := make(chan struct{})
	close(done)
	c := &Client{
		factory: factory,
		logger:  logger.NewNop(),
		status:  StatusIdle,
		done:    done,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recreate starts creating an instance for chainID, canceling the previous creation.
func (c *Client) Recreate(ctx context.Context, chainID uint64) {
	token, createCtx := NewToken(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.mu.Lock()
	if c.token != nil {
		c.token.Cancel()
	}
	c.token = token
	c.done = done
	c.chainID = chainID
	c.instance = nil
	c.err = nil
	c.status = StatusIdle
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)
		c.create(createCtx, chainID, token)
	}()
}

// EnsureChain recreates only when chainID differs from the current one or the last creation failed.
func (c *Client) EnsureChain(ctx context.Context, chainID uint64) {
	c.mu.RLock()
	same := c.token != nil && c.chainID == chainID && c.err == nil
	c.mu.RUnlock()
	if !same {
		c.Recreate(ctx, chainID)
	}
}

func (c *Client) create(ctx context.Context, chainID uint64, token *Token) {
	inst, err := c.factory.Create(ctx, chainID, token, func(s Status) { c.setStatus(token, s) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if token.Canceled() || c.token != token {
		metrics.RecordInstanceCreation("aborted")
		c.logger.Debug(ctx, "encryption instance creation aborted", logger.Uint64("chain_id", chainID))
		return
	}
	if err != nil {
		c.err = err
		c.status = StatusError
		metrics.RecordInstanceCreation("failed")
		c.logger.Error(ctx, "encryption instance creation failed", logger.Uint64("chain_id", chainID), logger.Error(err))
		return
	}
	c.instance = inst
	c.status = StatusReady
	metrics.RecordInstanceCreation("ready")
	c.logger.Info(ctx, "encryption instance ready", logger.Uint64("chain_id", chainID))
}

func (c *Client) setStatus(token *Token, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token && !token.Canceled() {
		c.status = s
	}
}

// Instance returns the ready instance or ErrNotReady (wrapping the creation error, if any).
func (c *Client) Instance() (Instance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.instance != nil {
		return c.instance, nil
	}
	if c.err != nil {
		return nil, errors.Join(ErrNotReady, c.err)
	}
	return nil, ErrNotReady
}

// State returns the current status.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := State{ChainID: c.chainID, Status: c.status}
	if c.err != nil {
		st.Error = c.err.Error()
	}
	return st
}

// Wait blocks until the current creation finishes.
func (c *Client) Wait(ctx context.Context) error {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Close cancels any creation and waits for it to return.
func (c *Client) Close() {
	c.mu.Lock()
	if c.token != nil {
		c.token.Cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}
