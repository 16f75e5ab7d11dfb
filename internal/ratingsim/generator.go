package ratingsim

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Score bounds accepted by the service.
const (
	minScore = 1
	maxScore = 10
)

// Dimension names in contract order.
var dimensionNames = []string{"location", "quality", "amenities", "transport", "value", "potential"}

// Rater temperaments used to spread generated scores.
const (
	profileHarsh = iota
	profileAverage
	profileGenerous
	profileWide
	profileCount
)

var locations = []string{"Harbour District", "Old Town", "North Ridge", "Canal Quarter", "Airport Park", "Riverside"}

// Plan is one project to create and the scores to rate it with.
type Plan struct {
	Key     string
	Project NewProject
	Scores  map[string]int64
}

// Total is the sum of the plan's scores.
func (p Plan) Total() uint64 {
	var sum uint64
	for _, v := range p.Scores {
		sum += uint64(v)
	}
	return sum
}

// Generator produces deterministic plans from a seed.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

// Plans returns n project plans with unique names and idempotency keys.
func (g *Generator) Plans(n int) []Plan {
	plans := make([]Plan, n)
	for i := range plans {
		id := uuid.New()
		loc := locations[g.rng.IntN(len(locations))]
		plans[i] = Plan{
			Key: id.String(),
			Project: NewProject{
				Name:        fmt.Sprintf("Sim %s %s", loc, id.String()[:8]),
				Description: "Generated by rating-sim",
				Location:    loc,
				Dimensions:  dimensionNames,
			},
			Scores: g.Scores(),
		}
	}
	return plans
}

// Scores returns one score per dimension, each within [1,10].
func (g *Generator) Scores() map[string]int64 {
	lo, span := minScore, maxScore-minScore+1
	switch g.rng.IntN(profileCount) {
	case profileHarsh:
		lo, span = 1, 4
	case profileAverage:
		lo, span = 4, 4
	case profileGenerous:
		lo, span = 7, 4
	}
	out := make(map[string]int64, len(dimensionNames))
	for _, name := range dimensionNames {
		out[name] = int64(lo + g.rng.IntN(span))
	}
	return out
}
