// Package service wires the wallet connector, signer resolver, encryption
// client and rating coordinator together and implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/adapters/fhe"
	eventqueue "github.com/okian/fheprop/internal/adapters/mq/queue"
	"github.com/okian/fheprop/internal/adapters/mq/worker"
	"github.com/okian/fheprop/internal/adapters/signer"
	"github.com/okian/fheprop/internal/adapters/sqlite"
	"github.com/okian/fheprop/internal/adapters/wallet"
	"github.com/okian/fheprop/internal/config"
	"github.com/okian/fheprop/internal/domain/binding"
	"github.com/okian/fheprop/internal/domain/dedupe"
	"github.com/okian/fheprop/internal/domain/rating"
	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// Service owns every component of one client session.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config

	// Core components
	registry    chain.Registry
	factory     fhe.Factory
	provider    wallet.Provider
	backend     *fhe.MockBackend
	connector   *wallet.Connector
	resolver    *signer.Resolver
	encryption  *fhe.Client
	coordinator *rating.Coordinator
	eventQueue  *eventqueue.InMemoryQueue
	reconciler  *worker.Reconciler
	deduper     dedupe.Deduper
	db          *sqlite.DB

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry replaces the contract registry the backend setting would build.
func WithRegistry(r chain.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

// WithEncryptionFactory replaces the mock encryption SDK.
func WithEncryptionFactory(f fhe.Factory) Option {
	return func(s *Service) {
		s.factory = f
	}
}

// WithWalletProvider replaces the wallet provider the backend setting would build.
func WithWalletProvider(p wallet.Provider) Option {
	return func(s *Service) {
		s.provider = p
	}
}

// New constructs a Service. Components are built by Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the service components and connects the wallet.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting rating service...", logger.String("backend", s.cfg.Backend))

	if err := s.build(ctx); err != nil {
		s.closeResources()
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.reconciler.Run(runCtx)

	s.started = true
	if _, err := s.connector.Connect(ctx); err != nil {
		s.logger.Warn(ctx, "wallet not connected at startup", logger.Error(err))
	}

	s.logger.Info(ctx, "rating service started",
		logger.Uint64("mock_chain_id", s.cfg.MockChainID),
		logger.Bool("force_mock_mode", s.cfg.ForceMockMode),
	)
	return nil
}

func (s *Service) build(ctx context.Context) error {
	walletKeys, err := wallet.ParseKeys(s.cfg.WalletPrivateKeys)
	if err != nil {
		return fmt.Errorf("wallet keys: %w", err)
	}
	mockKeys, err := wallet.ParseKeys(s.cfg.MockPrivateKeys)
	if err != nil {
		return fmt.Errorf("mock keys: %w", err)
	}

	s.backend = fhe.NewMockBackend()
	if s.registry == nil {
		if s.registry, err = s.buildRegistry(); err != nil {
			return err
		}
	}
	if s.factory == nil {
		s.factory = fhe.NewMockFactory(s.backend, fhe.WithStageDelay(s.cfg.EncryptionInitDelay()))
	}
	if s.provider == nil {
		s.provider = s.buildProvider()
	}

	var store fhe.Store = fhe.NewMemoryStore()
	if s.cfg.SignatureStore != "" {
		s.db, err = sqlite.New(ctx, s.cfg.SignatureStore)
		if err != nil {
			return fmt.Errorf("signature store: %w", err)
		}
		store = sqlite.NewSignatureStore(s.db)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.IdempotencyCacheSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.EventQueueSize))

	connOpts := []wallet.Option{
		wallet.WithMock(s.cfg.MockChainID, common.HexToAddress(s.cfg.MockAccount), s.cfg.LocalRPCURL, mockKeys),
		wallet.WithForceMock(s.cfg.ForceMockMode),
		wallet.WithFallbackToMock(s.cfg.FallbackToMock),
		wallet.WithPublisher(s.eventQueue),
		wallet.WithLogger(s.logger.Named("wallet")),
	}
	if s.provider != nil {
		connOpts = append(connOpts, wallet.WithProvider(s.provider, walletKeys))
	}
	s.connector = wallet.NewConnector(connOpts...)
	s.resolver = signer.NewResolver(s.connector, s.cfg.LocalRPCURL, common.HexToAddress(s.cfg.MockAccount), mockKeys)
	s.encryption = fhe.NewClient(s.factory, fhe.WithLogger(s.logger.Named("fhe")))
	s.coordinator = rating.NewCoordinator(s,
		rating.WithMockChainID(s.cfg.MockChainID),
		rating.WithRefreshConcurrency(s.cfg.RefreshConcurrency),
		rating.WithSignatureStore(store),
		rating.WithSignatureDays(s.cfg.DecryptionSignatureDays),
		rating.WithLogger(s.logger.Named("rating")),
	)
	s.reconciler = worker.NewReconciler(s.eventQueue, s, worker.WithLogger(s.logger))
	return nil
}

func (s *Service) buildRegistry() (chain.Registry, error) {
	book, err := s.cfg.ContractAddresses()
	if err != nil {
		return nil, err
	}
	if s.cfg.Backend == config.BackendEVM {
		return chain.NewEVMRegistry(book), nil
	}
	reg := chain.NewSimulatedRegistry(s.cfg.MockChainID, []uint64{s.cfg.MockChainID, s.cfg.WalletChainID},
		chain.WithVerifier(s.backend),
		chain.WithBlockTime(s.cfg.BlockTime()),
	)
	reg.Pin(book)
	return reg, nil
}

func (s *Service) buildProvider() wallet.Provider {
	if s.cfg.Backend == config.BackendEVM {
		if s.cfg.WalletRPCURL == "" {
			return nil
		}
		return wallet.NewRPCProvider(s.cfg.WalletRPCURL)
	}
	return wallet.NewStaticProvider(s.cfg.WalletChainID, s.cfg.WalletRPCURL)
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")

	_ = s.eventQueue.Close()
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.reconciler.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "reconciler shutdown", logger.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.closeResources()

	s.started = false
	s.logger.Info(ctx, "rating service stopped")
}

func (s *Service) closeResources() {
	if s.encryption != nil {
		s.encryption.Close()
	}
	if c, ok := s.registry.(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := s.provider.(interface{ Close() }); ok {
		c.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

// Current implements binding.Source.
func (s *Service) Current() binding.Binding {
	st := s.connector.State()
	if !st.Connected {
		return binding.Binding{}
	}
	b := binding.Binding{ChainID: st.ChainID}
	if addr, ok := s.registry.Address(st.ChainID); ok {
		b.Contract = addr
	}
	if sg, err := s.resolver.Resolve(); err == nil {
		b.SignerID = sg.ID().String()
	}
	return b
}

// Session implements rating.SessionSource.
func (s *Service) Session(ctx context.Context) (rating.Session, error) {
	st := s.connector.State()
	if !st.Connected {
		return rating.Session{}, wallet.ErrNotConnected
	}

	sess := rating.Session{
		Binding:    binding.Binding{ChainID: st.ChainID},
		Encryption: chainEncryption{client: s.encryption, chainID: st.ChainID},
	}
	url := st.RPCURL
	if sg, err := s.resolver.Resolve(); err == nil {
		sess.Signer = sg
		sess.Binding.SignerID = sg.ID().String()
		url = sg.ProviderURL()
	}

	c, err := s.registry.ContractFor(ctx, st.ChainID, url)
	switch {
	case errors.Is(err, chain.ErrNotDeployed):
	case err != nil:
		return rating.Session{}, err
	default:
		sess.Contract = c
		sess.Binding.Contract = c.Address()
	}
	return sess, nil
}

// chainEncryption only hands out an instance created for the session's chain.
type chainEncryption struct {
	client  *fhe.Client
	chainID uint64
}

func (e chainEncryption) Instance() (fhe.Instance, error) {
	inst, err := e.client.Instance()
	if err != nil {
		return nil, err
	}
	if inst.ChainID() != e.chainID {
		return nil, fmt.Errorf("%w: instance for chain %d, session on %d", fhe.ErrNotReady, inst.ChainID(), e.chainID)
	}
	return inst, nil
}

// HandleWalletEvent implements worker.Handler: it keeps the encryption instance on
// the wallet's chain and refreshes projects for the new binding.
func (s *Service) HandleWalletEvent(ctx context.Context, e eventqueue.Event) error {
	st := s.connector.State()
	if !st.Connected {
		return nil
	}
	s.encryption.EnsureChain(ctx, st.ChainID)

	_, err := s.coordinator.RefreshProjects(ctx)
	switch {
	case err == nil, errors.Is(err, rating.ErrInFlight), errors.Is(err, rating.ErrNotDeployed):
		return nil
	default:
		return fmt.Errorf("refresh after %s: %w", e.Type, err)
	}
}

// Coordinator returns the rating coordinator.
func (s *Service) Coordinator() *rating.Coordinator {
	return s.coordinator
}

// Connect connects the wallet.
func (s *Service) Connect(ctx context.Context) (wallet.State, error) {
	return s.connector.Connect(ctx)
}

// Disconnect disconnects the wallet.
func (s *Service) Disconnect(ctx context.Context) wallet.State {
	return s.connector.Disconnect(ctx)
}

// SwitchChain moves the wallet to chainID.
func (s *Service) SwitchChain(ctx context.Context, chainID uint64) (wallet.State, error) {
	return s.connector.SwitchChain(ctx, chainID)
}

// SwitchAccount selects account in the wallet.
func (s *Service) SwitchAccount(ctx context.Context, account common.Address) (wallet.State, error) {
	return s.connector.SwitchAccount(ctx, account)
}

// WalletState returns the wallet state.
func (s *Service) WalletState() wallet.State {
	return s.connector.State()
}

// Signer returns the resolved signer, if any.
func (s *Service) Signer() (signer.Info, bool) {
	sg, err := s.resolver.Resolve()
	if err != nil {
		return signer.Info{}, false
	}
	return sg.Info(), true
}

// EncryptionState returns the encryption instance status.
func (s *Service) EncryptionState() fhe.State {
	return s.encryption.State()
}

// WaitEncryption blocks until the current encryption instance creation finishes.
func (s *Service) WaitEncryption(ctx context.Context) error {
	return s.encryption.Wait(ctx)
}

// SeenAndRecord atomically checks if an idempotency key was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordIdempotentReplay()
	}
	return seen
}

// Unrecord forgets an idempotency key so the request can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// OperationTimeout bounds HTTP-triggered operations.
func (s *Service) OperationTimeout() time.Duration {
	return s.cfg.OperationTimeout()
}

// Deployments lists the known contract per chain, keyed by decimal chain id.
func (s *Service) Deployments() map[string]string {
	out := map[string]string{}
	type book interface {
		AddressBook() map[uint64]common.Address
	}
	b, ok := s.registry.(book)
	if !ok {
		return out
	}
	for id, addr := range b.AddressBook() {
		out[strconv.FormatUint(id, 10)] = addr.Hex()
	}
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"backend":       s.cfg.Backend,
		"mock_chain_id": s.cfg.MockChainID,
	}
	if !s.started {
		return stats
	}

	ws := s.connector.State()
	st := s.coordinator.State()
	inFlight := make([]string, 0, len(st.InFlight))
	for k, v := range st.InFlight {
		if v {
			inFlight = append(inFlight, string(k))
		}
	}
	sort.Strings(inFlight)

	stats["wallet_connected"] = ws.Connected
	stats["mock_wallet"] = ws.Mock
	stats["chain_id"] = ws.ChainID
	stats["encryption_status"] = string(s.encryption.State().Status)
	stats["projects_cached"] = len(st.Projects)
	stats["in_flight"] = inFlight
	stats["queue_length"] = s.eventQueue.Len()
	stats["idempotency_keys"] = s.deduper.Size()

	metrics.UpdateQueueSize(s.eventQueue.Len())
	return stats
}
