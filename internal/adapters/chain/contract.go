// Package chain talks to the PropertyRating contract, either over JSON-RPC or
// through an in-process simulation that enforces the same rules.
package chain

import (
	"context"
	_ "embed"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/fheprop/internal/domain/model"
)

//go:embed propertyrating.abi.json
var propertyRatingABI string

// ParsedABI returns the contract ABI.
func ParsedABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(propertyRatingABI))
}

// Auth identifies the sender of a transaction and can produce go-ethereum transact options.
type Auth interface {
	Address() common.Address
	TransactOpts(ctx context.Context, chainID uint64) (*bind.TransactOpts, error)
}

// Receipt is a confirmed transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	ProjectID   uint64 // set by createProject from the ProjectCreated event
}

// Tx is a sent, possibly unconfirmed transaction.
type Tx interface {
	Hash() common.Hash
	// Wait blocks until the transaction is confirmed. A failed receipt yields ErrReverted.
	Wait(ctx context.Context) (*Receipt, error)
}

// Contract is the PropertyRating surface used by the client.
type Contract interface {
	Address() common.Address
	ChainID() uint64

	IsMockMode(ctx context.Context) (bool, error)
	CreateProject(ctx context.Context, auth Auth, p model.NewProject) (Tx, error)
	SubmitRatingMock(ctx context.Context, auth Auth, projectID uint64, scores model.Scores) (Tx, error)
	SubmitRating(ctx context.Context, auth Auth, projectID uint64, inputs [model.DimensionCount]model.EncryptedInput) (Tx, error)

	GetProjectCount(ctx context.Context) (uint64, error)
	GetProjectInfo(ctx context.Context, projectID uint64) (model.Project, error)
	// GetProjectStatistics is restricted to the project creator.
	GetProjectStatistics(ctx context.Context, from common.Address, projectID uint64) (model.ProjectStatistics, error)
	// GetUserRating is restricted to the rater.
	GetUserRating(ctx context.Context, from common.Address, projectID uint64, user common.Address) (model.Scores, error)
	HasUserRated(ctx context.Context, projectID uint64, user common.Address) (bool, error)
	GetAllProjectRatings(ctx context.Context, projectID uint64) (model.ProjectRaters, error)
}

// Registry resolves the contract deployed on a chain. rpcURL names the provider
// the caller resolved; backends that do not dial ignore it.
type Registry interface {
	ContractFor(ctx context.Context, chainID uint64, rpcURL string) (Contract, error)
	// Address reports the deployment on chainID without dialing.
	Address(chainID uint64) (common.Address, bool)
}
