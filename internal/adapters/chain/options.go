package chain

import (
	"time"

	"github.com/okian/fheprop/internal/domain/scoring"
)

// SimulatedOption applies a configuration option to a Simulated contract.
type SimulatedOption func(*Simulated)

// WithClock sets the contract's notion of block time.
func WithClock(clock func() time.Time) SimulatedOption {
	return func(s *Simulated) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBlockTime delays confirmations.
func WithBlockTime(d time.Duration) SimulatedOption {
	return func(s *Simulated) {
		if d >= 0 {
			s.blockTime = d
		}
	}
}

// WithVerifier enables submitRating with encrypted inputs.
func WithVerifier(v InputVerifier) SimulatedOption {
	return func(s *Simulated) {
		s.verifier = v
	}
}

// WithMockMode enables submitRatingMock.
func WithMockMode(enabled bool) SimulatedOption {
	return func(s *Simulated) {
		s.mockMode = enabled
	}
}

// WithScoreRules overrides the accepted score range.
func WithScoreRules(r *scoring.Rules) SimulatedOption {
	return func(s *Simulated) {
		if r != nil {
			s.rules = r
		}
	}
}
