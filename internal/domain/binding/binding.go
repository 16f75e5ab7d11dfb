// Package binding describes the ambient context an asynchronous operation is
// started under and how to tell whether it still holds.
package binding

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Binding is an immutable snapshot of contract address, chain id and signer identity.
// The zero value means "nothing bound".
type Binding struct {
	Contract common.Address
	ChainID  uint64
	SignerID string
}

// Source returns the binding that is current right now.
type Source interface {
	Current() Binding
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Binding

// Current implements Source.
func (f SourceFunc) Current() Binding { return f() }

// Equal reports whether every component matches.
func (b Binding) Equal(other Binding) bool {
	return b == other
}

// SameContract compares chain id and contract address only; refresh results are
// independent of which signer fetched them.
func (b Binding) SameContract(other Binding) bool {
	return b.ChainID == other.ChainID && b.Contract == other.Contract
}

// HasContract reports whether a deployment is bound.
func (b Binding) HasContract() bool {
	return b.Contract != (common.Address{})
}

// HasSigner reports whether a signer is bound.
func (b Binding) HasSigner() bool {
	return b.SignerID != ""
}

func (b Binding) String() string {
	return fmt.Sprintf("chain=%d contract=%s signer=%s", b.ChainID, b.Contract.Hex(), b.SignerID)
}

// Guard captures the binding at operation start and answers staleness queries
// against the live source after every suspension point.
type Guard struct {
	src      Source
	snapshot Binding
}

// Capture snapshots the current binding.
func Capture(src Source) Guard {
	return Guard{src: src, snapshot: src.Current()}
}

// Pin guards an already captured snapshot.
func Pin(src Source, snapshot Binding) Guard {
	return Guard{src: src, snapshot: snapshot}
}

// Snapshot is the binding captured at start.
func (g Guard) Snapshot() Binding { return g.snapshot }

// Stale reports whether any component of the binding changed.
func (g Guard) Stale() bool {
	return !g.snapshot.Equal(g.src.Current())
}

// ContractStale reports whether the chain or contract changed.
func (g Guard) ContractStale() bool {
	return !g.snapshot.SameContract(g.src.Current())
}
