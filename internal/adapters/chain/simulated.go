package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/scoring"
)

// InputVerifier opens encrypted inputs submitted through submitRating. The proof
// must bind the handle to (contract, user).
type InputVerifier interface {
	Verify(contract, user common.Address, in model.EncryptedInput) (uint32, error)
}

type simProject struct {
	model.Project
	stats   model.ProjectStatistics
	ratings map[common.Address]model.Scores
	raters  []common.Address
}

// Simulated is an in-process PropertyRating contract. State changes apply when a
// transaction is sent; confirmation is delayed by the block time.
type Simulated struct {
	mu        sync.RWMutex
	address   common.Address
	chainID   uint64
	mockMode  bool
	clock     func() time.Time
	blockTime time.Duration
	verifier  InputVerifier
	rules     *scoring.Rules
	projects  []*simProject
	block     uint64
}

// NewSimulated deploys a simulated contract at address on chainID.
func NewSimulated(address common.Address, chainID uint64, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		address: address,
		chainID: chainID,
		clock:   time.Now,
		rules:   scoring.NewRules(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Address implements Contract.
func (s *Simulated) Address() common.Address { return s.address }

// ChainID implements Contract.
func (s *Simulated) ChainID() uint64 { return s.chainID }

// IsMockMode implements Contract.
func (s *Simulated) IsMockMode(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.mockMode, nil
}

// CreateProject implements Contract.
func (s *Simulated) CreateProject(ctx context.Context, auth Auth, p model.NewProject) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().Truncate(time.Second)
	id := uint64(len(s.projects)) + 1
	s.projects = append(s.projects, &simProject{
		Project: model.Project{
			ID:          id,
			Name:        p.Name,
			Description: p.Description,
			Location:    p.Location,
			Dimensions:  p.Dimensions,
			Deadline:    now.Add(p.Duration.Truncate(time.Second)),
			Creator:     auth.Address(),
		},
		ratings: make(map[common.Address]model.Scores),
	})
	return s.mine(id), nil
}

// SubmitRatingMock implements Contract. Only accepted while the contract runs in mock mode.
func (s *Simulated) SubmitRatingMock(ctx context.Context, auth Auth, projectID uint64, scores model.Scores) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.mockMode {
		return nil, revert("Unauthorized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rate(auth.Address(), projectID, scores); err != nil {
		return nil, err
	}
	return s.mine(0), nil
}

// SubmitRating implements Contract.
func (s *Simulated) SubmitRating(ctx context.Context, auth Auth, projectID uint64, inputs [model.DimensionCount]model.EncryptedInput) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: no input verifier", ErrReverted)
	}
	var scores model.Scores
	for d, in := range inputs {
		v, err := s.verifier.Verify(s.address, auth.Address(), in)
		if err != nil {
			return nil, fmt.Errorf("%w: %s input: %w", ErrReverted, model.Dimension(d), err)
		}
		scores[d] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rate(auth.Address(), projectID, scores); err != nil {
		return nil, err
	}
	return s.mine(0), nil
}

func (s *Simulated) rate(rater common.Address, projectID uint64, scores model.Scores) error {
	p, err := s.project(projectID)
	if err != nil {
		return err
	}
	if p.Expired(s.clock()) {
		return revert("ProjectExpired")
	}
	if _, ok := p.ratings[rater]; ok {
		return revert("AlreadyRated")
	}
	if err := s.rules.Validate(scores); err != nil {
		return &RevertError{Name: "InvalidScore", Cause: err}
	}
	p.ratings[rater] = scores
	p.raters = append(p.raters, rater)
	p.stats.Add(scores)
	return nil
}

// GetProjectCount implements Contract.
func (s *Simulated) GetProjectCount(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.projects)), nil
}

// GetProjectInfo implements Contract.
func (s *Simulated) GetProjectInfo(ctx context.Context, projectID uint64) (model.Project, error) {
	if err := ctx.Err(); err != nil {
		return model.Project{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.project(projectID)
	if err != nil {
		return model.Project{}, err
	}
	return p.Project, nil
}

// GetProjectStatistics implements Contract.
func (s *Simulated) GetProjectStatistics(ctx context.Context, from common.Address, projectID uint64) (model.ProjectStatistics, error) {
	if err := ctx.Err(); err != nil {
		return model.ProjectStatistics{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.project(projectID)
	if err != nil {
		return model.ProjectStatistics{}, err
	}
	if from != p.Creator {
		return model.ProjectStatistics{}, revert("Unauthorized")
	}
	return p.stats, nil
}

// GetUserRating implements Contract.
func (s *Simulated) GetUserRating(ctx context.Context, from common.Address, projectID uint64, user common.Address) (model.Scores, error) {
	if err := ctx.Err(); err != nil {
		return model.Scores{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.project(projectID)
	if err != nil {
		return model.Scores{}, err
	}
	if from != user {
		return model.Scores{}, revert("Unauthorized")
	}
	return p.ratings[user], nil
}

// HasUserRated implements Contract.
func (s *Simulated) HasUserRated(ctx context.Context, projectID uint64, user common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.project(projectID)
	if err != nil {
		return false, err
	}
	_, ok := p.ratings[user]
	return ok, nil
}

// GetAllProjectRatings implements Contract.
func (s *Simulated) GetAllProjectRatings(ctx context.Context, projectID uint64) (model.ProjectRaters, error) {
	if err := ctx.Err(); err != nil {
		return model.ProjectRaters{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.project(projectID)
	if err != nil {
		return model.ProjectRaters{}, err
	}
	out := model.ProjectRaters{
		Raters:   append([]common.Address(nil), p.raters...),
		HasRated: make([]bool, len(p.raters)),
	}
	for i := range out.HasRated {
		out.HasRated[i] = true
	}
	return out, nil
}

func (s *Simulated) project(id uint64) (*simProject, error) {
	if id == 0 || id > uint64(len(s.projects)) {
		return nil, revert("ProjectNotFound")
	}
	return s.projects[id-1], nil
}

// mine records a block and returns a transaction confirmed after the block time.
// Callers hold s.mu.
func (s *Simulated) mine(projectID uint64) *simTx {
	s.block++
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], s.chainID)
	binary.BigEndian.PutUint64(buf[8:], s.block)
	hash := crypto.Keccak256Hash(s.address.Bytes(), buf[:])
	return &simTx{
		receipt: Receipt{TxHash: hash, BlockNumber: s.block, ProjectID: projectID},
		readyAt: time.Now().Add(s.blockTime),
	}
}

type simTx struct {
	receipt Receipt
	readyAt time.Time
}

func (t *simTx) Hash() common.Hash { return t.receipt.TxHash }

func (t *simTx) Wait(ctx context.Context) (*Receipt, error) {
	if d := time.Until(t.readyAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", t.receipt.TxHash.Hex(), ctx.Err())
		case <-timer.C:
		}
	}
	r := t.receipt
	return &r, nil
}
