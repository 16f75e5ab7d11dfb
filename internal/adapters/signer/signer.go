// Package signer resolves the account that signs transactions and decryption
// requests from the wallet connection.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/adapters/wallet"
)

// Source names where a signer came from.
type Source string

// Signer sources.
const (
	SourceWallet Source = "wallet"
	SourceLocal  Source = "local"
)

// Signer is a resolved account. Its ID is stable while (source, account, chain)
// is unchanged.
type Signer struct {
	id          uuid.UUID
	address     common.Address
	chainID     uint64
	source      Source
	providerURL string
	key         *ecdsa.PrivateKey
}

// Info is the serializable view of a Signer.
type Info struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	ChainID     uint64 `json:"chain_id"`
	Source      Source `json:"source"`
	ProviderURL string `json:"provider_url,omitempty"`
	CanSign     bool   `json:"can_sign"`
}

// ID identifies this resolution.
func (s *Signer) ID() uuid.UUID { return s.id }

// Address implements chain.Auth.
func (s *Signer) Address() common.Address { return s.address }

// ChainID is the chain the signer was resolved on.
func (s *Signer) ChainID() uint64 { return s.chainID }

// Source reports where the signer came from.
func (s *Signer) Source() Source { return s.source }

// ProviderURL is the JSON-RPC endpoint reads and writes go through.
func (s *Signer) ProviderURL() string { return s.providerURL }

// CanSign reports whether the signer holds a key.
func (s *Signer) CanSign() bool { return s.key != nil }

// Info returns the serializable view.
func (s *Signer) Info() Info {
	return Info{
		ID:          s.id.String(),
		Address:     s.address.Hex(),
		ChainID:     s.chainID,
		Source:      s.source,
		ProviderURL: s.providerURL,
		CanSign:     s.CanSign(),
	}
}

// TransactOpts implements chain.Auth.
func (s *Signer) TransactOpts(ctx context.Context, chainID uint64) (*bind.TransactOpts, error) {
	if s.key == nil {
		return nil, fmt.Errorf("%w: %s", chain.ErrNoKey, s.address.Hex())
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// SignHash signs a 32-byte digest.
func (s *Signer) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.key == nil {
		return nil, fmt.Errorf("%w: %s", chain.ErrNoKey, s.address.Hex())
	}
	return crypto.Sign(hash, s.key)
}

// WalletState is the part of the wallet connector the resolver reads.
type WalletState interface {
	State() wallet.State
	Key(addr common.Address) (*ecdsa.PrivateKey, bool)
}

type identity struct {
	source  Source
	address common.Address
	chainID uint64
}

// Resolver derives the signer from the wallet, preferring the live wallet's
// selected account and falling back to the local development node.
type Resolver struct {
	wallet       WalletState
	localURL     string
	localAccount common.Address
	localKeys    *wallet.Keyring

	mu    sync.Mutex
	cache map[identity]*Signer
}

// NewResolver creates a resolver. localAccount signs through the local node
// when neither the wallet nor the keyring offers an account.
func NewResolver(w WalletState, localURL string, localAccount common.Address, localKeys *wallet.Keyring) *Resolver {
	return &Resolver{
		wallet:       w,
		localURL:     localURL,
		localAccount: localAccount,
		localKeys:    localKeys,
		cache:        make(map[identity]*Signer),
	}
}

// Resolve returns the current signer.
func (r *Resolver) Resolve() (*Signer, error) {
	st := r.wallet.State()
	if !st.Connected {
		return nil, fmt.Errorf("%w: %w", ErrNoSigner, wallet.ErrNotConnected)
	}

	if acct, ok := st.Account(); ok && !st.Mock {
		key, _ := r.wallet.Key(acct)
		return r.memo(identity{SourceWallet, acct, st.ChainID}, st.RPCURL, key), nil
	}

	acct, ok := st.Account()
	if !ok {
		acct = r.localAccount
	}
	if acct == (common.Address{}) {
		return nil, ErrNoSigner
	}
	key, found := r.wallet.Key(acct)
	if !found {
		key, _ = r.localKeys.Key(acct)
	}
	url := st.RPCURL
	if url == "" || !st.Mock {
		url = r.localURL
	}
	return r.memo(identity{SourceLocal, acct, st.ChainID}, url, key), nil
}

func (r *Resolver) memo(id identity, url string, key *ecdsa.PrivateKey) *Signer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.cache[id]; ok && s.providerURL == url && s.key == key {
		return s
	}
	s := &Signer{
		id:          uuid.New(),
		address:     id.address,
		chainID:     id.chainID,
		source:      id.source,
		providerURL: url,
		key:         key,
	}
	r.cache[id] = s
	return s
}
