package chain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Sentinel kinds for contract errors. The first five mirror the contract's custom errors.
var (
	ErrAlreadyRated    = errors.New("already rated")
	ErrInvalidScore    = errors.New("invalid score")
	ErrProjectExpired  = errors.New("project expired")
	ErrProjectNotFound = errors.New("project not found")
	ErrUnauthorized    = errors.New("unauthorized")

	ErrReverted    = errors.New("execution reverted")
	ErrNotDeployed = errors.New("contract not deployed on chain")
	ErrNoKey       = errors.New("signer holds no private key")
)

var customErrors = map[string]error{
	"AlreadyRated":    ErrAlreadyRated,
	"InvalidScore":    ErrInvalidScore,
	"ProjectExpired":  ErrProjectExpired,
	"ProjectNotFound": ErrProjectNotFound,
	"Unauthorized":    ErrUnauthorized,
}

// RevertError is a decoded custom error. It matches both its own sentinel and ErrReverted.
type RevertError struct {
	Name  string
	Cause error
}

func (e *RevertError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("execution reverted: %s: %v", e.Name, e.Cause)
	}
	return "execution reverted: " + e.Name
}

func (e *RevertError) Unwrap() []error {
	errs := []error{ErrReverted}
	if kind, ok := customErrors[e.Name]; ok {
		errs = append(errs, kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func revert(name string) error {
	return &RevertError{Name: name}
}

// RevertName returns the custom error name carried by err, or "".
func RevertName(err error) string {
	var re *RevertError
	if errors.As(err, &re) {
		return re.Name
	}
	return ""
}

// decodeRevert maps JSON-RPC revert data to a RevertError by selector.
func decodeRevert(parsed abi.ABI, err error) error {
	if err == nil {
		return nil
	}
	var de rpc.DataError
	if !errors.As(err, &de) {
		return err
	}
	raw, ok := de.ErrorData().(string)
	if !ok {
		return err
	}
	data, derr := hexutil.Decode(raw)
	if derr != nil || len(data) < 4 {
		return fmt.Errorf("%w: %w", ErrReverted, err)
	}
	for name, e := range parsed.Errors {
		if bytes.Equal(e.ID[:4], data[:4]) {
			return &RevertError{Name: name, Cause: err}
		}
	}
	return fmt.Errorf("%w: %w", ErrReverted, err)
}
