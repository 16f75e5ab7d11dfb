package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/okian/fheprop/internal/domain/model"
)

// Backend is what the EVM contract needs from a node; *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// EVM calls a deployed PropertyRating contract over JSON-RPC.
type EVM struct {
	address common.Address
	chainID uint64
	backend Backend
	abi     abi.ABI
	bound   *bind.BoundContract
}

// NewEVM binds the contract at address.
func NewEVM(address common.Address, chainID uint64, backend Backend) (*EVM, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return &EVM{
		address: address,
		chainID: chainID,
		backend: backend,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address implements Contract.
func (e *EVM) Address() common.Address { return e.address }

// ChainID implements Contract.
func (e *EVM) ChainID() uint64 { return e.chainID }

func (e *EVM) call(ctx context.Context, from common.Address, method string, params ...any) ([]any, error) {
	var out []any
	err := e.bound.Call(&bind.CallOpts{Context: ctx, From: from}, &out, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, decodeRevert(e.abi, err))
	}
	return out, nil
}

func (e *EVM) transact(ctx context.Context, auth Auth, method string, params ...any) (Tx, error) {
	opts, err := auth.TransactOpts(ctx, e.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	tx, err := e.bound.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, decodeRevert(e.abi, err))
	}
	return &evmTx{tx: tx, backend: e.backend, abi: e.abi}, nil
}

// IsMockMode implements Contract.
func (e *EVM) IsMockMode(ctx context.Context) (bool, error) {
	out, err := e.call(ctx, common.Address{}, "isMockMode")
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// CreateProject implements Contract.
func (e *EVM) CreateProject(ctx context.Context, auth Auth, p model.NewProject) (Tx, error) {
	seconds := new(big.Int).SetInt64(int64(p.Duration.Seconds()))
	return e.transact(ctx, auth, "createProject", p.Name, p.Description, p.Location, p.Dimensions, seconds)
}

// SubmitRatingMock implements Contract.
func (e *EVM) SubmitRatingMock(ctx context.Context, auth Auth, projectID uint64, scores model.Scores) (Tx, error) {
	params := make([]any, 0, 1+model.DimensionCount)
	params = append(params, new(big.Int).SetUint64(projectID))
	for _, v := range scores {
		params = append(params, new(big.Int).SetUint64(uint64(v)))
	}
	return e.transact(ctx, auth, "submitRatingMock", params...)
}

// SubmitRating implements Contract.
func (e *EVM) SubmitRating(ctx context.Context, auth Auth, projectID uint64, inputs [model.DimensionCount]model.EncryptedInput) (Tx, error) {
	params := make([]any, 0, 1+2*model.DimensionCount)
	params = append(params, new(big.Int).SetUint64(projectID))
	for _, in := range inputs {
		params = append(params, [32]byte(in.Handle), in.Proof)
	}
	return e.transact(ctx, auth, "submitRating", params...)
}

// GetProjectCount implements Contract.
func (e *EVM) GetProjectCount(ctx context.Context) (uint64, error) {
	out, err := e.call(ctx, common.Address{}, "getProjectCount")
	if err != nil {
		return 0, err
	}
	return bigToUint64(out[0])
}

// GetProjectInfo implements Contract.
func (e *EVM) GetProjectInfo(ctx context.Context, projectID uint64) (model.Project, error) {
	out, err := e.call(ctx, common.Address{}, "getProjectInfo", new(big.Int).SetUint64(projectID))
	if err != nil {
		return model.Project{}, err
	}
	deadline, err := bigToUint64(out[4])
	if err != nil {
		return model.Project{}, err
	}
	return model.Project{
		ID:          projectID,
		Name:        *abi.ConvertType(out[0], new(string)).(*string),
		Description: *abi.ConvertType(out[1], new(string)).(*string),
		Location:    *abi.ConvertType(out[2], new(string)).(*string),
		Dimensions:  *abi.ConvertType(out[3], new(string)).(*string),
		Deadline:    unixTime(deadline),
		Creator:     *abi.ConvertType(out[5], new(common.Address)).(*common.Address),
	}, nil
}

type statisticsTuple struct {
	TotalScore     *big.Int
	RatingCount    *big.Int
	LocationTotal  *big.Int
	QualityTotal   *big.Int
	AmenitiesTotal *big.Int
	TransportTotal *big.Int
	ValueTotal     *big.Int
	PotentialTotal *big.Int
}

// GetProjectStatistics implements Contract.
func (e *EVM) GetProjectStatistics(ctx context.Context, from common.Address, projectID uint64) (model.ProjectStatistics, error) {
	out, err := e.call(ctx, from, "getProjectStatistics", new(big.Int).SetUint64(projectID))
	if err != nil {
		return model.ProjectStatistics{}, err
	}
	t := abi.ConvertType(out[0], new(statisticsTuple)).(*statisticsTuple)
	values := []*big.Int{
		t.TotalScore, t.RatingCount,
		t.LocationTotal, t.QualityTotal, t.AmenitiesTotal, t.TransportTotal, t.ValueTotal, t.PotentialTotal,
	}
	var parsed [2 + model.DimensionCount]uint64
	for i, v := range values {
		if parsed[i], err = bigToUint64(v); err != nil {
			return model.ProjectStatistics{}, err
		}
	}
	stats := model.ProjectStatistics{TotalScore: parsed[0], RatingCount: parsed[1]}
	copy(stats.DimensionTotals[:], parsed[2:])
	return stats, nil
}

// GetUserRating implements Contract.
func (e *EVM) GetUserRating(ctx context.Context, from common.Address, projectID uint64, user common.Address) (model.Scores, error) {
	out, err := e.call(ctx, from, "getUserRating", new(big.Int).SetUint64(projectID), user)
	if err != nil {
		return model.Scores{}, err
	}
	var scores model.Scores
	for d := range scores {
		v, err := bigToUint64(out[d])
		if err != nil {
			return model.Scores{}, err
		}
		if v > uint64(^uint32(0)) {
			return model.Scores{}, fmt.Errorf("getUserRating: %s score %d overflows uint32", model.Dimension(d), v)
		}
		scores[d] = uint32(v)
	}
	return scores, nil
}

// HasUserRated implements Contract.
func (e *EVM) HasUserRated(ctx context.Context, projectID uint64, user common.Address) (bool, error) {
	out, err := e.call(ctx, common.Address{}, "hasUserRated", new(big.Int).SetUint64(projectID), user)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// GetAllProjectRatings implements Contract.
func (e *EVM) GetAllProjectRatings(ctx context.Context, projectID uint64) (model.ProjectRaters, error) {
	out, err := e.call(ctx, common.Address{}, "getAllProjectRatings", new(big.Int).SetUint64(projectID))
	if err != nil {
		return model.ProjectRaters{}, err
	}
	return model.ProjectRaters{
		Raters:   *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address),
		HasRated: *abi.ConvertType(out[1], new([]bool)).(*[]bool),
	}, nil
}

type evmTx struct {
	tx      *types.Transaction
	backend bind.DeployBackend
	abi     abi.ABI
}

func (t *evmTx) Hash() common.Hash { return t.tx.Hash() }

func (t *evmTx) Wait(ctx context.Context) (*Receipt, error) {
	rcpt, err := bind.WaitMined(ctx, t.backend, t.tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", t.tx.Hash().Hex(), err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s in block %d", ErrReverted, rcpt.TxHash.Hex(), rcpt.BlockNumber.Uint64())
	}
	out := &Receipt{TxHash: rcpt.TxHash, BlockNumber: rcpt.BlockNumber.Uint64()}
	created := t.abi.Events["ProjectCreated"].ID
	for _, l := range rcpt.Logs {
		if len(l.Topics) > 1 && l.Topics[0] == created {
			out.ProjectID = new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64()
		}
	}
	return out, nil
}

var errNotUint64 = errors.New("value does not fit in uint64")

func bigToUint64(v any) (uint64, error) {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return 0, fmt.Errorf("unexpected abi value %T", v)
	}
	if !b.IsUint64() {
		return 0, fmt.Errorf("%w: %s", errNotUint64, b)
	}
	return b.Uint64(), nil
}

func unixTime(sec uint64) time.Time {
	return time.Unix(int64(sec), 0)
}
