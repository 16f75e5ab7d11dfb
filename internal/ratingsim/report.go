package ratingsim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/fheprop/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// saveReport writes res as indented JSON to filename.
func saveReport(ctx context.Context, filename string, res *Result) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Get().Info(ctx, "report saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("projectsCreated", stats.ProjectsCreated),
		logger.Int("ratingsSubmitted", stats.RatingsSubmitted),
		logger.Int("ratingsRejected", stats.RatingsRejected),
		logger.Int("replaysDetected", stats.ReplaysDetected),
		logger.Int("statisticsRead", stats.StatisticsRead),
		logger.Int("statisticsFallback", stats.StatisticsFallback),
		logger.Int("violations", len(stats.Violations)),
		logger.String("duration", stats.Duration.String()))
}
