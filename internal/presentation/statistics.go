package presentation

import (
	"math"

	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/rating"
)

// ChartPoint is one axis of the radar chart.
type ChartPoint struct {
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`
	FullMark  int     `json:"full_mark"`
}

// StatisticsView is the statistics panel: the aggregate, its chart series and
// whether it is placeholder data.
type StatisticsView struct {
	rating.Statistics
	Chart  []ChartPoint `json:"chart"`
	Banner string       `json:"banner"`
}

// NewStatisticsView builds the panel for stats, labelling axes with labels
// (one per dimension, as returned by ParseDimensions).
func NewStatisticsView(stats rating.Statistics, labels []string, fullMark int) StatisticsView {
	if len(labels) != model.DimensionCount {
		labels = defaultLabels()
	}
	chart := make([]ChartPoint, 0, model.DimensionCount)
	for _, d := range model.AllDimensions() {
		chart = append(chart, ChartPoint{
			Dimension: labels[d],
			Score:     round1(stats.Average(d)),
			FullMark:  fullMark,
		})
	}
	v := StatisticsView{Statistics: stats, Chart: chart, Banner: "Live statistics"}
	if stats.Fallback {
		v.Banner = "Sample data: statistics unavailable (" + stats.Reason + ")"
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
