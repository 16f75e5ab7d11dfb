package ratingsim

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fheprop/pkg/logger"
)

// verifyResults checks the listed projects, then reads every created project's
// statistics, stored scores and raters concurrently.
func verifyResults(ctx context.Context, client *Client, cfg *Config, res *Result) error {
	log := logger.Get().Named("ratingsim")
	log.Info(ctx, "verifying results", logger.Int("projects", len(res.Created)))

	sess, err := client.Session(ctx)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	listed := make(map[uint64]Project, len(sess.Projects))
	for _, p := range sess.Projects {
		listed[p.ID] = p
	}
	for _, placed := range res.Created {
		p, ok := listed[placed.ProjectID]
		switch {
		case !ok:
			res.Stats.violate("project %d missing from the project list", placed.ProjectID)
		case p.Name != placed.Plan.Project.Name:
			res.Stats.violate("project %d listed as %q, created as %q", p.ID, p.Name, placed.Plan.Project.Name)
		case !p.Rated:
			res.Stats.violate("project %d not marked rated", p.ID)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, placed := range res.Created {
		g.Go(func() error {
			found, fallback, err := checkProject(gctx, client, res.Rater, placed)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			res.Stats.StatisticsRead++
			if fallback {
				res.Stats.StatisticsFallback++
			}
			res.Stats.Violations = append(res.Stats.Violations, found...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(res.Stats.Violations) == 0 {
		log.Info(ctx, "all invariants held")
	} else {
		for _, v := range res.Stats.Violations {
			log.Warn(ctx, "invariant violated", logger.String("detail", v))
		}
	}
	return nil
}

// checkProject compares one project's reads with its plan. A placeholder
// statistics read is counted, not treated as a violation.
func checkProject(ctx context.Context, client *Client, rater string, placed Placed) ([]string, bool, error) {
	var found []string
	id := placed.ProjectID

	st, err := client.Statistics(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("statistics for project %d: %w", id, err)
	}
	if !st.Fallback {
		if st.RatingCount != 1 {
			found = append(found, fmt.Sprintf("project %d rating_count %d, want 1", id, st.RatingCount))
		}
		if want := placed.Plan.Total(); st.TotalScore != want {
			found = append(found, fmt.Sprintf("project %d total_score %d, want %d", id, st.TotalScore, want))
		}
	}

	ur, err := client.UserRating(ctx, id, rater)
	if err != nil {
		return nil, false, fmt.Errorf("user rating for project %d: %w", id, err)
	}
	for name, want := range placed.Plan.Scores {
		if got := int64(ur.Scores[name]); got != want {
			found = append(found, fmt.Sprintf("project %d %s score %d, want %d", id, name, got, want))
		}
	}

	raters, err := client.Raters(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("raters for project %d: %w", id, err)
	}
	if len(raters.Raters) != 1 || !strings.EqualFold(raters.Raters[0], rater) {
		found = append(found, fmt.Sprintf("project %d raters %v, want [%s]", id, raters.Raters, rater))
	}
	return found, st.Fallback, nil
}
