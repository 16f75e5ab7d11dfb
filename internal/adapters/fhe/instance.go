// Package fhe manages the encryption SDK instance used to build encrypted
// contract inputs and decryption authorizations.
package fhe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// Status reports where instance creation is.
type Status string

// Instance lifecycle statuses.
const (
	StatusIdle            Status = "idle"
	StatusSDKLoading      Status = "sdk-loading"
	StatusSDKLoaded       Status = "sdk-loaded"
	StatusSDKInitializing Status = "sdk-initializing"
	StatusSDKInitialized  Status = "sdk-initialized"
	StatusCreating        Status = "creating"
	StatusReady           Status = "ready"
	StatusError           Status = "error"
)

// Encrypted is the result of encrypting one input: a handle per added value and
// a proof binding them to (contract, user).
type Encrypted struct {
	Handles    []common.Hash
	InputProof []byte
}

// InputBuilder accumulates plaintext values for one encrypted input.
type InputBuilder interface {
	Add32(v uint32) InputBuilder
	Encrypt(ctx context.Context) (Encrypted, error)
}

// Instance is a ready encryption SDK instance bound to one chain.
type Instance interface {
	ChainID() uint64
	CreateEncryptedInput(contract, user common.Address) InputBuilder
	// GenerateKeypair creates the ephemeral keypair a decryption signature authorizes.
	GenerateKeypair() (publicKey, privateKey []byte, err error)
}

// Factory creates instances. Implementations report progress through onStatus and
// must return ErrCanceled once the token is canceled.
type Factory interface {
	Create(ctx context.Context, chainID uint64, token *Token, onStatus func(Status)) (Instance, error)
}

// Token cancels one creation. Canceling also cancels the context it was created with.
type Token struct {
	canceled atomic.Bool
	cancel   context.CancelFunc
	once     sync.Once
}

// NewToken derives a cancelable context for a creation.
func NewToken(parent context.Context) (*Token, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Token{cancel: cancel}, ctx
}

// Cancel marks the creation abandoned.
func (t *Token) Cancel() {
	t.once.Do(func() {
		t.canceled.Store(true)
		t.cancel()
	})
}

// Canceled reports whether Cancel was called.
func (t *Token) Canceled() bool {
	return t.canceled.Load()
}

// Err returns ErrCanceled after Cancel.
func (t *Token) Err() error {
	if t.Canceled() {
		return ErrCanceled
	}
	return nil
}
