package rating

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/fheprop/internal/domain/flight"
	"github.com/okian/fheprop/pkg/metrics"
)

// Status is how an operation ended.
type Status string

// Operation statuses.
const (
	StatusDropped   Status = "dropped"
	StatusFailed    Status = "failed"
	StatusStale     Status = "stale"
	StatusCommitted Status = "committed"
)

// Outcome reports one operation.
type Outcome struct {
	OpID         string      `json:"op_id"`
	Kind         flight.Kind `json:"kind"`
	Status       Status      `json:"status"`
	TxHash       common.Hash `json:"tx_hash,omitempty"`
	BlockNumber  uint64      `json:"block_number,omitempty"`
	ProjectID    uint64      `json:"project_id,omitempty"`
	ProjectCount int         `json:"project_count,omitempty"`
	Message      string      `json:"message"`
}

// finish records metrics for a completed operation.
func (o Outcome) finish(started time.Time) Outcome {
	kind := string(o.Kind)
	switch o.Status {
	case StatusCommitted:
		metrics.RecordOperationCommitted(kind)
	case StatusStale:
		metrics.RecordOperationStale(kind)
	}
	metrics.RecordOperationFinished(kind, string(o.Status), float64(time.Since(started).Milliseconds()))
	return o
}
