package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Dimension is one of the six rated aspects of a property.
type Dimension int

// Dimensions in their fixed wire order.
const (
	DimensionLocation Dimension = iota
	DimensionQuality
	DimensionAmenities
	DimensionTransport
	DimensionValue
	DimensionPotential
)

// DimensionCount is the number of rated dimensions.
const DimensionCount = 6

var dimensionNames = [DimensionCount]string{"location", "quality", "amenities", "transport", "value", "potential"}

func (d Dimension) String() string {
	if d < 0 || int(d) >= DimensionCount {
		return fmt.Sprintf("dimension(%d)", int(d))
	}
	return dimensionNames[d]
}

// AllDimensions returns the dimensions in encryption and submission order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimensionLocation, DimensionQuality, DimensionAmenities,
		DimensionTransport, DimensionValue, DimensionPotential,
	}
}

// ParseDimension maps a dimension name back to its value.
func ParseDimension(name string) (Dimension, bool) {
	for i, n := range dimensionNames {
		if n == name {
			return Dimension(i), true
		}
	}
	return 0, false
}

// Scores holds one score per dimension, indexed by Dimension.
type Scores [DimensionCount]uint32

// Total is the sum of all six scores.
func (s Scores) Total() uint64 {
	var t uint64
	for _, v := range s {
		t += uint64(v)
	}
	return t
}

// Map returns the scores keyed by dimension name.
func (s Scores) Map() map[string]uint32 {
	out := make(map[string]uint32, DimensionCount)
	for d, v := range s {
		out[Dimension(d).String()] = v
	}
	return out
}

// Rating is one rater's scores for one project.
type Rating struct {
	ProjectID uint64         `json:"project_id"`
	Rater     common.Address `json:"rater"`
	Scores    Scores         `json:"scores"`
	HasRated  bool           `json:"has_rated"`
}

// EncryptedInput is a ciphertext handle plus the proof binding it to (contract, user).
type EncryptedInput struct {
	Handle common.Hash
	Proof  []byte
}
