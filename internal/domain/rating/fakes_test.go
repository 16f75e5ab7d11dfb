package rating_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/domain/binding"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/rating"
)

const (
	mockChain    = uint64(31337)
	sepoliaChain = uint64(11155111)
)

type testSigner struct {
	id  string
	key *ecdsa.PrivateKey
}

func newTestSigner(id string) *testSigner {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &testSigner{id: id, key: key}
}

func (s *testSigner) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }

func (s *testSigner) TransactOpts(context.Context, uint64) (*bind.TransactOpts, error) {
	return nil, chain.ErrNoKey
}

func (s *testSigner) SignHash(_ context.Context, hash []byte) ([]byte, error) {
	return crypto.Sign(hash, s.key)
}

// fakeSessions is a mutable session source standing in for wallet, signer and registry.
type fakeSessions struct {
	mu       sync.Mutex
	chainID  uint64
	contract chain.Contract
	signer   *testSigner
	enc      rating.Encryption
}

func (f *fakeSessions) bindingLocked() binding.Binding {
	b := binding.Binding{ChainID: f.chainID}
	if f.contract != nil {
		b.Contract = f.contract.Address()
	}
	if f.signer != nil {
		b.SignerID = f.signer.id
	}
	return b
}

func (f *fakeSessions) Current() binding.Binding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bindingLocked()
}

func (f *fakeSessions) Session(ctx context.Context) (rating.Session, error) {
	if err := ctx.Err(); err != nil {
		return rating.Session{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := rating.Session{Binding: f.bindingLocked(), Contract: f.contract, Encryption: f.enc}
	if f.signer != nil {
		s.Signer = f.signer
	}
	return s, nil
}

func (f *fakeSessions) switchTo(chainID uint64, contract chain.Contract) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainID = chainID
	f.contract = contract
}

func (f *fakeSessions) useSigner(s *testSigner) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signer = s
}

// gatedContract holds confirmations until the gate opens and counts reads.
type gatedContract struct {
	chain.Contract
	gate      chan struct{}
	sent      chan struct{}
	infoCalls atomic.Int32

	countGate chan struct{}
	counting  chan struct{}
}

func gate(c chain.Contract) *gatedContract {
	return &gatedContract{Contract: c, sent: make(chan struct{}, 16), counting: make(chan struct{}, 16)}
}

func (g *gatedContract) hold() { g.gate = make(chan struct{}) }

func (g *gatedContract) open() { close(g.gate) }

// holdCount parks GetProjectCount until openCount is called.
func (g *gatedContract) holdCount() { g.countGate = make(chan struct{}) }

func (g *gatedContract) openCount() { close(g.countGate) }

func (g *gatedContract) GetProjectCount(ctx context.Context) (uint64, error) {
	if g.countGate != nil {
		g.counting <- struct{}{}
		select {
		case <-g.countGate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return g.Contract.GetProjectCount(ctx)
}

func (g *gatedContract) wrap(tx chain.Tx, err error) (chain.Tx, error) {
	if err != nil {
		return nil, err
	}
	g.sent <- struct{}{}
	return &gatedTx{Tx: tx, gate: g.gate}, nil
}

func (g *gatedContract) CreateProject(ctx context.Context, auth chain.Auth, p model.NewProject) (chain.Tx, error) {
	return g.wrap(g.Contract.CreateProject(ctx, auth, p))
}

func (g *gatedContract) SubmitRatingMock(ctx context.Context, auth chain.Auth, id uint64, s model.Scores) (chain.Tx, error) {
	return g.wrap(g.Contract.SubmitRatingMock(ctx, auth, id, s))
}

func (g *gatedContract) SubmitRating(ctx context.Context, auth chain.Auth, id uint64, in [model.DimensionCount]model.EncryptedInput) (chain.Tx, error) {
	return g.wrap(g.Contract.SubmitRating(ctx, auth, id, in))
}

func (g *gatedContract) GetProjectInfo(ctx context.Context, id uint64) (model.Project, error) {
	g.infoCalls.Add(1)
	return g.Contract.GetProjectInfo(ctx, id)
}

type gatedTx struct {
	chain.Tx
	gate chan struct{}
}

func (t *gatedTx) Wait(ctx context.Context) (*chain.Receipt, error) {
	if t.gate != nil {
		select {
		case <-t.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return t.Tx.Wait(ctx)
}

// recordingEncryption wraps a mock instance and records every encrypted value.
type recordingEncryption struct {
	inst      fhe.Instance
	err       error
	instances atomic.Int32
	encrypts  atomic.Int32
	// failAt makes the n-th Encrypt call fail when positive.
	failAt int32

	mu     sync.Mutex
	values []uint32
}

func (e *recordingEncryption) Instance() (fhe.Instance, error) {
	e.instances.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return &recordingInstance{Instance: e.inst, rec: e}, nil
}

func (e *recordingEncryption) encrypted() []uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint32(nil), e.values...)
}

type recordingInstance struct {
	fhe.Instance
	rec *recordingEncryption
}

func (i *recordingInstance) CreateEncryptedInput(contract, user common.Address) fhe.InputBuilder {
	return &recordingInput{InputBuilder: i.Instance.CreateEncryptedInput(contract, user), rec: i.rec}
}

type recordingInput struct {
	fhe.InputBuilder
	rec    *recordingEncryption
	values []uint32
}

func (in *recordingInput) Add32(v uint32) fhe.InputBuilder {
	in.values = append(in.values, v)
	in.InputBuilder.Add32(v)
	return in
}

var errRelayerDown = errors.New("relayer unavailable")

func (in *recordingInput) Encrypt(ctx context.Context) (fhe.Encrypted, error) {
	if n := in.rec.encrypts.Add(1); n == in.rec.failAt {
		return fhe.Encrypted{}, errRelayerDown
	}
	in.rec.mu.Lock()
	in.rec.values = append(in.rec.values, in.values...)
	in.rec.mu.Unlock()
	return in.InputBuilder.Encrypt(ctx)
}

func mockInstance(backend *fhe.MockBackend, chainID uint64) fhe.Instance {
	token, ctx := fhe.NewToken(context.Background())
	inst, err := fhe.NewMockFactory(backend).Create(ctx, chainID, token, func(fhe.Status) {})
	if err != nil {
		panic(err)
	}
	return inst
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func project(name string, d time.Duration) model.NewProject {
	return model.NewProject{
		Name:        name,
		Description: "Two-bedroom units near the waterfront",
		Location:    "Lisbon",
		Dimensions:  `["Location","Quality","Amenities","Transport","Value","Potential"]`,
		Duration:    d,
	}
}

var goodScores = model.Scores{8, 9, 7, 6, 8, 10}
