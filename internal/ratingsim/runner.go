package ratingsim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fheprop/pkg/logger"
)

// Status strings and error codes the run reacts to.
const (
	statusCommitted  = "committed"
	codeInFlight     = "in_flight"
	codeAlreadyRated = "AlreadyRated"
)

// Polling and retry constants.
const (
	pollInterval   = 200 * time.Millisecond
	inFlightRetry  = 250 * time.Millisecond
	inFlightBudget = 20
)

// Run errors.
var (
	ErrNotReady   = errors.New("session not ready")
	ErrViolations = errors.New("invariants violated")
)

// Result is a completed run: what was written and what was counted.
type Result struct {
	Rater   string   `json:"rater"`
	ChainID uint64   `json:"chain_id"`
	Path    string   `json:"submission_path"`
	Created []Placed `json:"created"`
	Stats   *Stats   `json:"stats"`
}

// Placed is a plan and the project id the service assigned it.
type Placed struct {
	Plan      Plan   `json:"plan"`
	ProjectID uint64 `json:"project_id"`
}

// Run executes a complete simulation against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	log := logger.Get().Named("ratingsim")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting rating simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("projects", cfg.Projects),
		logger.Uint64("chainID", cfg.ChainID),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Connect and pick the chain
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect wallet: %w", err)
	}
	if cfg.ChainID != 0 {
		if err := client.SwitchChain(ctx, cfg.ChainID); err != nil {
			return nil, fmt.Errorf("switch chain: %w", err)
		}
	}

	// Step 3: Wait for the session to accept writes
	sess, err := waitReady(ctx, client, cfg.ReadyWait)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Rater:   sess.Signer.Address,
		ChainID: sess.Wallet.ChainID,
		Path:    sess.SubmissionPath,
		Stats:   stats,
	}
	log.Info(ctx, "session ready",
		logger.String("rater", res.Rater),
		logger.Uint64("chainID", res.ChainID),
		logger.String("path", res.Path),
		logger.String("contract", sess.Contract))

	// Step 4: Create projects
	plans := NewGenerator(cfg.Seed).Plans(cfg.Projects)
	for _, plan := range plans {
		out, err := retryInFlight(ctx, func() (Outcome, error) {
			return client.CreateProject(ctx, plan.Project, plan.Key)
		})
		if err != nil {
			return res, fmt.Errorf("create project %q: %w", plan.Project.Name, err)
		}
		if out.Status != statusCommitted || out.ProjectID == 0 {
			stats.violate("create %q finished %s without a project id", plan.Project.Name, out.Status)
			continue
		}
		stats.ProjectsCreated++
		res.Created = append(res.Created, Placed{Plan: plan, ProjectID: out.ProjectID})
		if cfg.Verbose {
			log.Info(ctx, "project created", logger.Uint64("projectID", out.ProjectID), logger.String("tx", out.TxHash))
		}
	}

	// Step 5: Rate each project once, replay the key, then try to rate again
	for _, placed := range res.Created {
		if err := rateOnce(ctx, client, placed, stats); err != nil {
			return res, err
		}
	}

	// Step 6: Refresh and verify
	if _, err := retryInFlight(ctx, func() (Outcome, error) { return client.Refresh(ctx) }); err != nil {
		return res, fmt.Errorf("refresh projects: %w", err)
	}
	if err := verifyResults(ctx, client, cfg, res); err != nil {
		return res, fmt.Errorf("result verification failed: %w", err)
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if cfg.ReportFile != "" {
		if err := saveReport(ctx, cfg.ReportFile, res); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	if n := len(stats.Violations); n > 0 {
		return res, fmt.Errorf("%w: %d", ErrViolations, n)
	}
	return res, nil
}

func rateOnce(ctx context.Context, client *Client, placed Placed, stats *Stats) error {
	key := placed.Plan.Key + "-rate"
	out, err := retryInFlight(ctx, func() (Outcome, error) {
		out, _, err := client.SubmitRating(ctx, placed.ProjectID, placed.Plan.Scores, key)
		return out, err
	})
	if err != nil {
		return fmt.Errorf("rate project %d: %w", placed.ProjectID, err)
	}
	if out.Status != statusCommitted {
		stats.violate("rating project %d finished %s", placed.ProjectID, out.Status)
		return nil
	}
	stats.RatingsSubmitted++

	_, ack, err := client.SubmitRating(ctx, placed.ProjectID, placed.Plan.Scores, key)
	switch {
	case err != nil:
		stats.violate("replaying rating key for project %d: %v", placed.ProjectID, err)
	case !ack.Duplicate:
		stats.violate("replaying rating key for project %d was not reported as duplicate", placed.ProjectID)
	default:
		stats.ReplaysDetected++
	}

	_, err = retryInFlight(ctx, func() (Outcome, error) {
		out, _, err := client.SubmitRating(ctx, placed.ProjectID, placed.Plan.Scores, uuid.NewString())
		return out, err
	})
	if Code(err) == codeAlreadyRated {
		stats.RatingsRejected++
		return nil
	}
	stats.violate("second rating of project %d was not rejected as %s (err: %v)", placed.ProjectID, codeAlreadyRated, err)
	return nil
}

// waitReady polls the session until it can create and submit with no refresh running.
func waitReady(ctx context.Context, client *Client, budget time.Duration) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last Session
	for {
		sess, err := client.Session(ctx)
		if err == nil {
			last = sess
			if sess.Deployed && sess.Signer != nil && sess.CanCreateProject && sess.CanSubmitRating && !sess.IsRefreshing {
				return sess, nil
			}
		}
		select {
		case <-ctx.Done():
			return last, fmt.Errorf("%w: deployed=%t create=%t submit=%t chain=%d",
				ErrNotReady, last.Deployed, last.CanCreateProject, last.CanSubmitRating, last.Wallet.ChainID)
		case <-ticker.C:
		}
	}
}

// retryInFlight repeats fn while the service reports the operation kind busy.
func retryInFlight(ctx context.Context, fn func() (Outcome, error)) (Outcome, error) {
	for attempt := 0; ; attempt++ {
		out, err := fn()
		if Code(err) != codeInFlight || attempt >= inFlightBudget {
			return out, err
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(inFlightRetry):
		}
	}
}

func (s *Stats) violate(format string, args ...any) {
	s.Violations = append(s.Violations, fmt.Sprintf(format, args...))
}
