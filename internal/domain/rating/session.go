package rating

import (
	"context"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/domain/binding"
)

// Signer sends transactions and signs decryption requests.
type Signer interface {
	chain.Auth
	SignHash(ctx context.Context, hash []byte) ([]byte, error)
}

// Encryption hands out the ready encryption instance for the current chain.
type Encryption interface {
	Instance() (fhe.Instance, error)
}

// Session is everything an operation needs, resolved at one instant. Contract is
// nil when nothing is deployed on the chain; Signer is nil without an account.
type Session struct {
	Binding    binding.Binding
	Contract   chain.Contract
	Signer     Signer
	Encryption Encryption
}

// SessionSource resolves sessions and reports the live binding.
type SessionSource interface {
	binding.Source
	Session(ctx context.Context) (Session, error)
}

func (s Session) requireContract() error {
	if s.Contract == nil {
		return ErrNotDeployed
	}
	return nil
}

func (s Session) requireSigner() error {
	if err := s.requireContract(); err != nil {
		return err
	}
	if s.Signer == nil {
		return ErrNoSigner
	}
	return nil
}
