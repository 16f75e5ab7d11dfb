package fhe

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/fheprop/internal/domain/model"
)

type handleRecord struct {
	value    uint32
	contract common.Address
	user     common.Address
	proof    []byte
}

// MockBackend stands in for the coprocessor: it remembers every handle it issued
// so a simulated contract can open verified inputs.
type MockBackend struct {
	mu      sync.RWMutex
	secret  [32]byte
	handles map[common.Hash]handleRecord
}

// NewMockBackend creates a backend with a random secret.
func NewMockBackend() *MockBackend {
	b := &MockBackend{handles: make(map[common.Hash]handleRecord)}
	if _, err := rand.Read(b.secret[:]); err != nil {
		panic(fmt.Sprintf("fhe: read random secret: %v", err))
	}
	return b
}

func (b *MockBackend) encrypt(contract, user common.Address, values []uint32) Encrypted {
	var nonce [16]byte
	_, _ = rand.Read(nonce[:])

	out := Encrypted{Handles: make([]common.Hash, len(values))}
	for i := range values {
		var idx [8]byte
		binary.BigEndian.PutUint64(idx[:], uint64(i))
		out.Handles[i] = crypto.Keccak256Hash(b.secret[:], contract.Bytes(), user.Bytes(), nonce[:], idx[:])
	}
	parts := [][]byte{b.secret[:], contract.Bytes(), user.Bytes()}
	for _, h := range out.Handles {
		parts = append(parts, h.Bytes())
	}
	out.InputProof = crypto.Keccak256(parts...)

	b.mu.Lock()
	for i, h := range out.Handles {
		b.handles[h] = handleRecord{value: values[i], contract: contract, user: user, proof: out.InputProof}
	}
	b.mu.Unlock()
	return out
}

// Verify opens a handle if its proof binds it to (contract, user).
func (b *MockBackend) Verify(contract, user common.Address, in model.EncryptedInput) (uint32, error) {
	b.mu.RLock()
	rec, ok := b.handles[in.Handle]
	b.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHandle, in.Handle.Hex())
	}
	if rec.contract != contract || rec.user != user || !bytes.Equal(rec.proof, in.Proof) {
		return 0, ErrInvalidProof
	}
	return rec.value, nil
}

// MockFactory creates instances backed by a MockBackend. Each creation stage
// sleeps for the configured delay so cancellation can be observed.
type MockFactory struct {
	backend     *MockBackend
	stageDelay  time.Duration
	unsupported map[uint64]bool
}

// MockFactoryOption configures a MockFactory.
type MockFactoryOption func(*MockFactory)

// WithStageDelay sets the delay of every creation stage.
func WithStageDelay(d time.Duration) MockFactoryOption {
	return func(f *MockFactory) {
		if d >= 0 {
			f.stageDelay = d
		}
	}
}

// WithUnsupportedChains makes creation fail on the given chains.
func WithUnsupportedChains(ids ...uint64) MockFactoryOption {
	return func(f *MockFactory) {
		for _, id := range ids {
			f.unsupported[id] = true
		}
	}
}

// NewMockFactory creates a factory over backend.
func NewMockFactory(backend *MockBackend, opts ...MockFactoryOption) *MockFactory {
	f := &MockFactory{backend: backend, unsupported: make(map[uint64]bool)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create implements Factory.
func (f *MockFactory) Create(ctx context.Context, chainID uint64, token *Token, onStatus func(Status)) (Instance, error) {
	for _, st := range []Status{StatusSDKLoading, StatusSDKLoaded, StatusSDKInitializing, StatusSDKInitialized, StatusCreating} {
		if err := token.Err(); err != nil {
			return nil, err
		}
		onStatus(st)
		if err := f.pause(ctx); err != nil {
			if token.Canceled() {
				return nil, ErrCanceled
			}
			return nil, err
		}
	}
	if err := token.Err(); err != nil {
		return nil, err
	}
	if f.unsupported[chainID] {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}
	return &mockInstance{chainID: chainID, backend: f.backend}, nil
}

func (f *MockFactory) pause(ctx context.Context) error {
	if f.stageDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(f.stageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type mockInstance struct {
	chainID uint64
	backend *MockBackend
}

func (m *mockInstance) ChainID() uint64 { return m.chainID }

func (m *mockInstance) CreateEncryptedInput(contract, user common.Address) InputBuilder {
	return &mockInput{backend: m.backend, contract: contract, user: user}
}

func (m *mockInstance) GenerateKeypair() ([]byte, []byte, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	return crypto.FromECDSAPub(&key.PublicKey), crypto.FromECDSA(key), nil
}

type mockInput struct {
	backend  *MockBackend
	contract common.Address
	user     common.Address
	values   []uint32
}

func (in *mockInput) Add32(v uint32) InputBuilder {
	in.values = append(in.values, v)
	return in
}

func (in *mockInput) Encrypt(ctx context.Context) (Encrypted, error) {
	if err := ctx.Err(); err != nil {
		return Encrypted{}, err
	}
	return in.backend.encrypt(in.contract, in.user, in.values), nil
}
