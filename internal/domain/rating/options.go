package rating

import (
	"time"

	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/pkg/logger"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMockChainID sets the chain that uses submitRatingMock.
func WithMockChainID(id uint64) Option {
	return func(c *Coordinator) {
		if id != 0 {
			c.mockChainID = id
		}
	}
}

// WithRefreshConcurrency bounds concurrent getProjectInfo calls.
func WithRefreshConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.refreshConcurrency = n
		}
	}
}

// WithSignatureStore sets where decryption signatures are cached.
func WithSignatureStore(s fhe.Store) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.signatures = s
		}
	}
}

// WithSignatureDays sets the validity of new decryption signatures.
func WithSignatureDays(days int) Option {
	return func(c *Coordinator) {
		if days > 0 {
			c.signatureDays = days
		}
	}
}

// WithClock overrides the clock used for signature validity.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}
