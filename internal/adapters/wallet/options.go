package wallet

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/fheprop/pkg/logger"
)

// Option configures a Connector.
type Option func(*Connector)

// WithProvider sets the live wallet and the keys it holds.
func WithProvider(p Provider, keys *Keyring) Option {
	return func(c *Connector) {
		c.provider = p
		c.walletKeys = keys
	}
}

// WithMock configures the mock wallet: its chain, fixed account, local node URL
// and development keys.
func WithMock(chainID uint64, account common.Address, rpcURL string, keys *Keyring) Option {
	return func(c *Connector) {
		if chainID != 0 {
			c.mockChainID = chainID
		}
		c.mockAccount = account
		c.mockRPCURL = rpcURL
		c.mockKeys = keys
	}
}

// WithForceMock always connects to the mock wallet.
func WithForceMock(enabled bool) Option {
	return func(c *Connector) {
		c.forceMock = enabled
	}
}

// WithFallbackToMock connects to the mock wallet when the live one is unavailable.
func WithFallbackToMock(enabled bool) Option {
	return func(c *Connector) {
		c.fallbackToMock = enabled
	}
}

// WithPublisher sets where wallet events go.
func WithPublisher(p Publisher) Option {
	return func(c *Connector) {
		c.publisher = p
	}
}

// WithLogger sets the connector logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(c *Connector) {
		if clock != nil {
			c.clock = clock
		}
	}
}
