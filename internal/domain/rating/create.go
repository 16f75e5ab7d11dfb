package rating

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/fheprop/internal/domain/flight"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/pkg/logger"
)

// CreateProject sends createProject and, once confirmed under an unchanged
// binding, refreshes the project list.
func (c *Coordinator) CreateProject(ctx context.Context, p model.NewProject) (Outcome, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Outcome{}, fmt.Errorf("%w: name is required", ErrInvalidProject)
	}
	if p.Duration <= 0 {
		return Outcome{}, fmt.Errorf("%w: duration must be positive", ErrInvalidProject)
	}

	sess, err := c.sessions.Session(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if err := sess.requireSigner(); err != nil {
		return Outcome{}, err
	}

	release, ok := c.flights.TryAcquire(flight.KindCreate)
	if !ok {
		return dropped(flight.KindCreate)
	}
	defer release()

	o := c.begin(ctx, flight.KindCreate, sess)
	c.setMessage(fmt.Sprintf("Creating project %q...", p.Name))

	tx, err := sess.Contract.CreateProject(ctx, sess.Signer, p)
	if err != nil {
		return c.fail(ctx, o, "create project", err)
	}
	c.setMessage("Transaction submitted: " + tx.Hash().Hex())

	receipt, err := tx.Wait(ctx)
	if err != nil {
		return c.fail(ctx, o, "create project", err)
	}

	if o.guard.Stale() {
		out := c.stale(ctx, o, "Project created (context changed)")
		out.TxHash = receipt.TxHash
		out.BlockNumber = receipt.BlockNumber
		return out, nil
	}

	msg := fmt.Sprintf("Project created! Block: %d", receipt.BlockNumber)
	c.setMessage(msg)
	out := o.outcome(StatusCommitted, msg)
	out.TxHash = receipt.TxHash
	out.BlockNumber = receipt.BlockNumber
	out.ProjectID = receipt.ProjectID
	o.log.Info(ctx, "project created",
		logger.Uint64("project_id", receipt.ProjectID),
		logger.Uint64("block", receipt.BlockNumber),
	)

	// Commit is a refresh.
	if refreshed, err := c.RefreshProjects(ctx); err == nil {
		out.ProjectCount = refreshed.ProjectCount
		c.setMessage(msg)
	} else {
		o.log.Warn(ctx, "refresh after create did not run", logger.Error(err))
	}
	return out.finish(o.started), nil
}
