// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/adapters/http/site"
	"github.com/okian/fheprop/internal/adapters/http/swagger"
	"github.com/okian/fheprop/internal/adapters/signer"
	"github.com/okian/fheprop/internal/adapters/wallet"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/rating"
	"github.com/okian/fheprop/internal/domain/scoring"
	"github.com/okian/fheprop/pkg/logger"
)

const defaultOperationTimeout = 2 * time.Minute

// Session is the wallet side of the client session.
type Session interface {
	// Idempotency keys of write requests.
	SeenAndRecord(ctx context.Context, key string) bool
	Unrecord(ctx context.Context, key string)

	Connect(ctx context.Context) (wallet.State, error)
	Disconnect(ctx context.Context) wallet.State
	SwitchChain(ctx context.Context, chainID uint64) (wallet.State, error)
	SwitchAccount(ctx context.Context, account common.Address) (wallet.State, error)
	WalletState() wallet.State
	Signer() (signer.Info, bool)
	EncryptionState() fhe.State

	// OperationTimeout bounds write operations run on behalf of a request.
	OperationTimeout() time.Duration
}

// Ratings is the rating coordinator.
type Ratings interface {
	State() rating.State
	MockChainID() uint64
	Project(id uint64) (model.Project, bool)
	CreateProject(ctx context.Context, p model.NewProject) (rating.Outcome, error)
	SubmitRating(ctx context.Context, projectID uint64, scores model.Scores) (rating.Outcome, error)
	RefreshProjects(ctx context.Context) (rating.Outcome, error)
	ProjectStatistics(ctx context.Context, projectID uint64) (rating.Statistics, error)
	UserRating(ctx context.Context, projectID uint64, user common.Address) (model.Scores, error)
	HasUserRated(ctx context.Context, projectID uint64, user common.Address) (bool, error)
	ProjectRaters(ctx context.Context, projectID uint64) (model.ProjectRaters, error)
	MockMode(ctx context.Context) (bool, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	session Session
	ratings Ratings

	ops     *opsHandler
	limiter *RateLimiter
	origins []string
	rules   *scoring.Rules
	clock   func() time.Time
	logger  logger.Logger

	// background operations started with ?wait=false
	wg sync.WaitGroup
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithStatsProvider serves provider's stats on /stats and derives /readyz from them.
func WithStatsProvider(provider StatsProvider) Option {
	return func(s *Server) {
		s.ops.stats = provider
	}
}

// WithCORSOrigins sets the browser origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithWriteLimit throttles write endpoints per client.
func WithWriteLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.limiter = NewRateLimiter(perSecond, burst)
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock deadlines are judged against.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(session Session, ratings Ratings, opts ...Option) *Server {
	s := &Server{
		session: session,
		ratings: ratings,
		ops:     newOpsHandler(),
		limiter: NewRateLimiter(0, 1),
		origins: []string{"*"},
		rules:   scoring.NewRules(),
		clock:   time.Now,
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.ops.handleMetrics, "healthz"))
	r.Get("/readyz", MetricsMiddleware(s.ops.handleReady, "readyz"))
	r.Get("/stats", MetricsMiddleware(s.ops.handleStats, "stats"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", MetricsMiddleware(s.handleGetSession, "session"))
		r.Get("/projects", MetricsMiddleware(s.handleListProjects, "projects"))
		r.Get("/projects/{id}/statistics", MetricsMiddleware(s.handleGetStatistics, "statistics"))
		r.Get("/projects/{id}/ratings/{address}", MetricsMiddleware(s.handleGetUserRating, "user_rating"))
		r.Get("/projects/{id}/raters/{address}", MetricsMiddleware(s.handleHasUserRated, "has_rated"))
		r.Get("/projects/{id}/raters", MetricsMiddleware(s.handleListRaters, "raters"))

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Post("/wallet/connect", MetricsMiddleware(s.handleConnect, "wallet_connect"))
			r.Post("/wallet/disconnect", MetricsMiddleware(s.handleDisconnect, "wallet_disconnect"))
			r.Post("/wallet/chain", MetricsMiddleware(s.handleSwitchChain, "wallet_chain"))
			r.Post("/wallet/account", MetricsMiddleware(s.handleSwitchAccount, "wallet_account"))
			r.Post("/projects", MetricsMiddleware(s.handleCreateProject, "create_project"))
			r.Post("/projects/refresh", MetricsMiddleware(s.handleRefresh, "refresh_projects"))
			r.Post("/projects/{id}/ratings", MetricsMiddleware(s.handleSubmitRating, "submit_rating"))
		})
	})
}

// Handler returns every route, including the API document and the console,
// wrapped in CORS.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	swagger.Register(ctx, r)
	site.Register(ctx, r)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
	})
	return c.Handler(r)
}

// Wait blocks until background operations finish or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Outcome *rating.Outcome `json:"outcome,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to its status and code, keeping the outcome of a
// started operation in the body.
func writeFailure(w http.ResponseWriter, op string, out *rating.Outcome, err error) {
	status, code := classify(err)
	writeJSON(w, status, errorResponse{Code: code, Message: Wrap(op, err).Error(), Outcome: out})
}

// classify maps error kinds to HTTP status and error code.
func classify(err error) (int, string) {
	if name := chain.RevertName(err); name != "" {
		return http.StatusUnprocessableEntity, name
	}
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, rating.ErrInvalidProject),
		errors.Is(err, scoring.ErrInvalidScore),
		errors.Is(err, scoring.ErrMissingDimension),
		errors.Is(err, scoring.ErrUnknownDimension),
		errors.Is(err, wallet.ErrUnknownAccount):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, rating.ErrInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, wallet.ErrMockPinned):
		return http.StatusConflict, "mock_pinned"
	case errors.Is(err, wallet.ErrSwitchUnsupported):
		return http.StatusConflict, "switch_unsupported"
	case errors.Is(err, wallet.ErrNotConnected), errors.Is(err, wallet.ErrUnavailable):
		return http.StatusServiceUnavailable, "not_connected"
	case errors.Is(err, rating.ErrNoSigner), errors.Is(err, signer.ErrNoSigner), errors.Is(err, chain.ErrNoKey):
		return http.StatusServiceUnavailable, "no_signer"
	case errors.Is(err, rating.ErrNotDeployed), errors.Is(err, chain.ErrNotDeployed):
		return http.StatusServiceUnavailable, "not_deployed"
	case errors.Is(err, rating.ErrEncryptionNotReady), errors.Is(err, fhe.ErrNotReady):
		return http.StatusServiceUnavailable, "encryption_not_ready"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
