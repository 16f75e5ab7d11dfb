package rating

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fheprop/internal/domain/flight"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

// RefreshProjects reloads every project from the contract. The list is committed
// only while the chain and contract it was loaded from are current.
func (c *Coordinator) RefreshProjects(ctx context.Context) (Outcome, error) {
	sess, err := c.sessions.Session(ctx)
	if err != nil {
		return Outcome{}, err
	}
	release, ok := c.flights.TryAcquire(flight.KindRefresh)
	if !ok {
		return dropped(flight.KindRefresh)
	}
	defer release()

	if err := sess.requireContract(); err != nil {
		c.mu.Lock()
		c.projects = nil
		c.projectsBinding = sess.Binding
		c.message = fmt.Sprintf("PropertyRating deployment not found for chainId=%d.", sess.Binding.ChainID)
		c.mu.Unlock()
		metrics.UpdateProjectsCached(0)
		return Outcome{}, err
	}

	o := c.begin(ctx, flight.KindRefresh, sess)

	count, err := sess.Contract.GetProjectCount(ctx)
	if err != nil {
		return c.fail(ctx, o, "load projects", err)
	}
	projects, err := c.fetchProjects(ctx, sess, count)
	if err != nil {
		return c.fail(ctx, o, "load projects", err)
	}

	if o.guard.ContractStale() {
		return c.stale(ctx, o, ""), nil
	}

	c.mu.Lock()
	c.projects = projects
	c.projectsBinding = o.guard.Snapshot()
	c.mu.Unlock()
	metrics.UpdateProjectsCached(len(projects))

	o.log.Debug(ctx, "projects loaded", logger.Int("count", len(projects)))
	out := o.outcome(StatusCommitted, fmt.Sprintf("Loaded %d projects", len(projects)))
	out.ProjectCount = len(projects)
	return out.finish(o.started), nil
}

func (c *Coordinator) fetchProjects(ctx context.Context, sess Session, count uint64) ([]model.Project, error) {
	projects := make([]model.Project, count)
	if count == 0 {
		return projects, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.refreshConcurrency)
	for i := uint64(0); i < count; i++ {
		id := i + 1
		g.Go(func() error {
			metrics.RecordProjectFetch()
			p, err := sess.Contract.GetProjectInfo(gctx, id)
			if err != nil {
				return fmt.Errorf("project %d: %w", id, err)
			}
			projects[id-1] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return projects, nil
}
