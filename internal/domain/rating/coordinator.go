// Package rating coordinates project creation, rating submission, project
// refresh and statistics retrieval against the PropertyRating contract.
//
// Every write captures the binding (contract, chain, signer) it started under
// and re-checks it after each suspension point. Results are committed only
// while the binding is unchanged; otherwise they are discarded.
package rating

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/domain/binding"
	"github.com/okian/fheprop/internal/domain/flight"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

const (
	defaultMockChainID        = 31337
	defaultRefreshConcurrency = 8
	defaultSignatureDays      = 365
)

type ratedKey struct {
	binding   binding.Binding
	projectID uint64
}

// State is the session view the presentation layer renders.
type State struct {
	Binding  binding.Binding      `json:"binding"`
	Projects []model.Project      `json:"projects"`
	Rated    []uint64             `json:"rated"`
	InFlight map[flight.Kind]bool `json:"in_flight"`
	Message  string               `json:"message"`
}

// Coordinator owns the session's cached projects and status message.
type Coordinator struct {
	sessions           SessionSource
	flights            *flight.Group
	mockChainID        uint64
	refreshConcurrency int
	signatures         fhe.Store
	signatureDays      int
	clock              func() time.Time
	logger             logger.Logger

	mu              sync.RWMutex
	projects        []model.Project
	projectsBinding binding.Binding
	rated           map[ratedKey]bool
	message         string
}

// NewCoordinator creates a coordinator over sessions.
func NewCoordinator(sessions SessionSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions:           sessions,
		flights:            flight.NewGroup(flight.KindCreate, flight.KindSubmit, flight.KindRefresh),
		mockChainID:        defaultMockChainID,
		refreshConcurrency: defaultRefreshConcurrency,
		signatureDays:      defaultSignatureDays,
		clock:              time.Now,
		logger:             logger.NewNop(),
		rated:              make(map[ratedKey]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.signatures == nil {
		c.signatures = fhe.NewMemoryStore()
	}
	return c
}

// State returns the current view. Cached projects are visible only while the
// chain and contract they were loaded for are current.
func (c *Coordinator) State() State {
	cur := c.sessions.Current()

	c.mu.RLock()
	defer c.mu.RUnlock()

	st := State{
		Binding:  cur,
		Projects: []model.Project{},
		Rated:    []uint64{},
		InFlight: c.flights.Snapshot(),
		Message:  c.message,
	}
	if cur.HasContract() && c.projectsBinding.SameContract(cur) {
		st.Projects = append(st.Projects, c.projects...)
	}
	for k := range c.rated {
		if k.binding.Equal(cur) {
			st.Rated = append(st.Rated, k.projectID)
		}
	}
	slices.Sort(st.Rated)
	return st
}

// Project returns a cached project visible under the current binding.
func (c *Coordinator) Project(id uint64) (model.Project, bool) {
	for _, p := range c.State().Projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

// RatedLocally reports whether the current binding committed a rating for projectID.
func (c *Coordinator) RatedLocally(projectID uint64) bool {
	cur := c.sessions.Current()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rated[ratedKey{binding: cur, projectID: projectID}]
}

// InFlight reports whether an operation of kind is running.
func (c *Coordinator) InFlight(kind flight.Kind) bool {
	return c.flights.InFlight(kind)
}

// MockChainID is the chain that selects the plaintext submission path.
func (c *Coordinator) MockChainID() uint64 {
	return c.mockChainID
}

func (c *Coordinator) setMessage(msg string) {
	c.mu.Lock()
	c.message = msg
	c.mu.Unlock()
}

// op carries the bookkeeping of one running operation.
type op struct {
	id      string
	kind    flight.Kind
	started time.Time
	guard   binding.Guard
	log     logger.Logger
}

func (c *Coordinator) begin(ctx context.Context, kind flight.Kind, sess Session) *op {
	o := &op{
		id:      uuid.NewString(),
		kind:    kind,
		started: time.Now(),
		guard:   binding.Pin(c.sessions, sess.Binding),
	}
	o.log = c.logger.With(
		logger.String("op_id", o.id),
		logger.String("kind", string(kind)),
		logger.String("binding", sess.Binding.String()),
	)
	metrics.RecordOperationStarted(string(kind))
	o.log.Debug(ctx, "operation started")
	return o
}

func (o *op) outcome(status Status, msg string) Outcome {
	return Outcome{OpID: o.id, Kind: o.kind, Status: status, Message: msg}
}

// fail sets the failure message and records the reason.
func (c *Coordinator) fail(ctx context.Context, o *op, what string, err error) (Outcome, error) {
	msg := fmt.Sprintf("Failed to %s: %v", what, err)
	c.setMessage(msg)
	reason := "error"
	if name := chain.RevertName(err); name != "" {
		reason = name
	}
	metrics.RecordOperationFailed(string(o.kind), reason)
	o.log.Error(ctx, "operation failed", logger.String("reason", reason), logger.Error(err))
	return o.outcome(StatusFailed, msg).finish(o.started), err
}

// stale sets the context-changed message and discards the result.
func (c *Coordinator) stale(ctx context.Context, o *op, msg string) Outcome {
	if msg != "" {
		c.setMessage(msg)
	}
	o.log.Info(ctx, "result discarded, binding changed",
		logger.String("current", c.sessions.Current().String()),
	)
	return o.outcome(StatusStale, msg).finish(o.started)
}

func dropped(kind flight.Kind) (Outcome, error) {
	metrics.RecordOperationDropped(string(kind))
	return Outcome{Kind: kind, Status: StatusDropped}, ErrInFlight
}
