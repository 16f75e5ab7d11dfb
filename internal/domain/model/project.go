// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Project is a rateable property project as stored by the contract.
// IDs are 1-based and sequential.
type Project struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Dimensions  string         `json:"dimensions"` // JSON array of dimension labels, opaque to the contract
	Deadline    time.Time      `json:"deadline"`
	Creator     common.Address `json:"creator"`
}

// Expired reports whether ratings are no longer accepted at now.
func (p Project) Expired(now time.Time) bool {
	return now.After(p.Deadline)
}

// NewProject is the input of project creation.
type NewProject struct {
	Name        string
	Description string
	Location    string
	Dimensions  string
	Duration    time.Duration // rating window, truncated to whole seconds on chain
}

// ProjectStatistics aggregates every rating of a project. Totals only grow.
type ProjectStatistics struct {
	TotalScore      uint64                 `json:"total_score"`
	RatingCount     uint64                 `json:"rating_count"`
	DimensionTotals [DimensionCount]uint64 `json:"dimension_totals"`
}

// Add folds one rating into the totals.
func (s *ProjectStatistics) Add(scores Scores) {
	for d, v := range scores {
		s.DimensionTotals[d] += uint64(v)
	}
	s.TotalScore += scores.Total()
	s.RatingCount++
}

// ProjectRaters lists every account that rated a project.
type ProjectRaters struct {
	Raters   []common.Address `json:"raters"`
	HasRated []bool           `json:"has_rated"`
}
