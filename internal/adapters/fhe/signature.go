package fhe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/okian/fheprop/pkg/metrics"
)

const defaultSignatureDays = 365

// DecryptionSignature authorizes decryption for a user over a set of contracts
// for a bounded period.
type DecryptionSignature struct {
	PublicKey         hexutil.Bytes    `json:"publicKey"`
	PrivateKey        hexutil.Bytes    `json:"privateKey"`
	Signature         hexutil.Bytes    `json:"signature"`
	ContractAddresses []common.Address `json:"contractAddresses"`
	UserAddress       common.Address   `json:"userAddress"`
	ChainID           uint64           `json:"chainId"`
	StartTimestamp    int64            `json:"startTimestamp"`
	DurationDays      int64            `json:"durationDays"`
}

// Valid reports whether the signature is still inside its validity window.
func (s *DecryptionSignature) Valid(now time.Time) bool {
	end := s.StartTimestamp + s.DurationDays*24*60*60
	return now.Unix() < end
}

// Covers reports whether the signature was issued for user over every contract.
func (s *DecryptionSignature) Covers(user common.Address, contracts []common.Address) bool {
	if s.UserAddress != user {
		return false
	}
	have := make(map[common.Address]bool, len(s.ContractAddresses))
	for _, a := range s.ContractAddresses {
		have[a] = true
	}
	for _, a := range contracts {
		if !have[a] {
			return false
		}
	}
	return true
}

// Recover returns the address that produced the signature.
func (s *DecryptionSignature) Recover() (common.Address, error) {
	hash, err := typedDataHash(s.ChainID, s.PublicKey, s.ContractAddresses, s.StartTimestamp, s.DurationDays)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(hash, s.Signature)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// HashSigner signs a 32-byte digest on behalf of an address.
type HashSigner interface {
	Address() common.Address
	SignHash(ctx context.Context, hash []byte) ([]byte, error)
}

// Store persists serialized signatures by key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StorageKey identifies a signature by user and contract set, independent of order.
func StorageKey(user common.Address, contracts []common.Address) string {
	sorted := append([]common.Address(nil), contracts...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	parts := [][]byte{user.Bytes()}
	for _, a := range sorted {
		parts = append(parts, a.Bytes())
	}
	return crypto.Keccak256Hash(parts...).Hex()
}

type signOptions struct {
	durationDays int64
	now          func() time.Time
}

// SignOption configures LoadOrSign.
type SignOption func(*signOptions)

// WithDurationDays sets the validity of newly created signatures.
func WithDurationDays(days int) SignOption {
	return func(o *signOptions) {
		if days > 0 {
			o.durationDays = int64(days)
		}
	}
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) SignOption {
	return func(o *signOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// LoadOrSign returns a cached signature for (signer, contracts) when it is still
// valid, otherwise it generates a keypair, signs, and stores the result.
func LoadOrSign(ctx context.Context, inst Instance, contracts []common.Address, signer HashSigner, store Store, opts ...SignOption) (*DecryptionSignature, error) {
	if inst == nil {
		return nil, ErrNotReady
	}
	if signer == nil {
		return nil, ErrSignatureRequired
	}
	o := signOptions{durationDays: defaultSignatureDays, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	user := signer.Address()
	key := StorageKey(user, contracts)
	if raw, ok, err := store.Get(ctx, key); err != nil {
		return nil, fmt.Errorf("load signature: %w", err)
	} else if ok {
		var cached DecryptionSignature
		switch {
		case json.Unmarshal([]byte(raw), &cached) != nil:
			metrics.RecordSignatureCache("corrupt")
		case cached.ChainID == inst.ChainID() && cached.Covers(user, contracts) && cached.Valid(o.now()):
			metrics.RecordSignatureCache("hit")
			return &cached, nil
		default:
			metrics.RecordSignatureCache("expired")
		}
	} else {
		metrics.RecordSignatureCache("miss")
	}

	pub, priv, err := inst.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	sig := &DecryptionSignature{
		PublicKey:         pub,
		PrivateKey:        priv,
		ContractAddresses: append([]common.Address(nil), contracts...),
		UserAddress:       user,
		ChainID:           inst.ChainID(),
		StartTimestamp:    o.now().Unix(),
		DurationDays:      o.durationDays,
	}
	hash, err := typedDataHash(sig.ChainID, sig.PublicKey, sig.ContractAddresses, sig.StartTimestamp, sig.DurationDays)
	if err != nil {
		return nil, err
	}
	if sig.Signature, err = signer.SignHash(ctx, hash); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureRequired, err)
	}

	raw, err := json.Marshal(sig)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, key, string(raw)); err != nil {
		return nil, fmt.Errorf("store signature: %w", err)
	}
	return sig, nil
}

// typedDataHash is the EIP-712 digest of a user decryption request.
func typedDataHash(chainID uint64, publicKey []byte, contracts []common.Address, start, days int64) ([]byte, error) {
	addrs := make([]interface{}, len(contracts))
	for i, a := range contracts {
		addrs[i] = a.Hex()
	}
	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"UserDecryptRequestVerification": {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: "UserDecryptRequestVerification",
		Domain: apitypes.TypedDataDomain{
			Name:    "Decryption",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(int64(chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(publicKey),
			"contractAddresses": addrs,
			"startTimestamp":    strconv.FormatInt(start, 10),
			"durationDays":      strconv.FormatInt(days, 10),
		},
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("hash decryption request: %w", err)
	}
	return hash, nil
}

// MemoryStore keeps signatures for the life of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
