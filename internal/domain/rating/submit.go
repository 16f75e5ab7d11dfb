package rating

import (
	"context"
	"fmt"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/domain/flight"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

const cancelledMessage = "Rating submission cancelled (context changed)"

// SubmitRating rates projectID. On the mock chain the scores go out in
// plaintext through submitRatingMock; elsewhere each score is encrypted
// separately and submitted through submitRating.
func (c *Coordinator) SubmitRating(ctx context.Context, projectID uint64, scores model.Scores) (Outcome, error) {
	sess, err := c.sessions.Session(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if err := sess.requireSigner(); err != nil {
		return Outcome{}, err
	}

	release, ok := c.flights.TryAcquire(flight.KindSubmit)
	if !ok {
		return dropped(flight.KindSubmit)
	}
	defer release()

	o := c.begin(ctx, flight.KindSubmit, sess)
	c.setMessage(fmt.Sprintf("Submitting rating for project %d...", projectID))

	if o.guard.Stale() {
		return c.stale(ctx, o, cancelledMessage), nil
	}

	var tx chain.Tx
	if c.IsMockPath(sess.Binding.ChainID) {
		o.log.Debug(ctx, "submitting plaintext rating")
		tx, err = sess.Contract.SubmitRatingMock(ctx, sess.Signer, projectID, scores)
	} else {
		var inputs [model.DimensionCount]model.EncryptedInput
		inputs, err = c.encrypt(ctx, sess, scores)
		if err != nil {
			return c.fail(ctx, o, "submit rating", err)
		}
		if o.guard.Stale() {
			return c.stale(ctx, o, cancelledMessage), nil
		}
		c.setMessage("Submitting encrypted rating...")
		tx, err = sess.Contract.SubmitRating(ctx, sess.Signer, projectID, inputs)
	}
	if err != nil {
		return c.fail(ctx, o, "submit rating", err)
	}
	c.setMessage("Transaction submitted: " + tx.Hash().Hex())

	receipt, err := tx.Wait(ctx)
	if err != nil {
		return c.fail(ctx, o, "submit rating", err)
	}

	if o.guard.Stale() {
		out := c.stale(ctx, o, "Rating submitted (context changed)")
		out.TxHash = receipt.TxHash
		out.BlockNumber = receipt.BlockNumber
		return out, nil
	}

	msg := fmt.Sprintf("Rating submitted! Block: %d", receipt.BlockNumber)
	c.mu.Lock()
	c.rated[ratedKey{binding: o.guard.Snapshot(), projectID: projectID}] = true
	c.message = msg
	c.mu.Unlock()

	o.log.Info(ctx, "rating submitted",
		logger.Uint64("project_id", projectID),
		logger.Uint64("block", receipt.BlockNumber),
	)
	out := o.outcome(StatusCommitted, msg)
	out.TxHash = receipt.TxHash
	out.BlockNumber = receipt.BlockNumber
	out.ProjectID = projectID
	return out.finish(o.started), nil
}

// IsMockPath reports whether chainID submits plaintext scores.
func (c *Coordinator) IsMockPath(chainID uint64) bool {
	return chainID == c.mockChainID
}

// encrypt produces one encrypted input per dimension, in dimension order. The
// first failure aborts.
func (c *Coordinator) encrypt(ctx context.Context, sess Session, scores model.Scores) ([model.DimensionCount]model.EncryptedInput, error) {
	var out [model.DimensionCount]model.EncryptedInput
	if sess.Encryption == nil {
		return out, ErrEncryptionNotReady
	}
	inst, err := sess.Encryption.Instance()
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrEncryptionNotReady, err)
	}

	contract := sess.Contract.Address()
	user := sess.Signer.Address()
	for _, d := range model.AllDimensions() {
		metrics.RecordEncryptCall(d.String())
		enc, err := inst.CreateEncryptedInput(contract, user).Add32(scores[d]).Encrypt(ctx)
		if err != nil {
			metrics.RecordEncryptFailure()
			return out, fmt.Errorf("encrypt %s: %w", d, err)
		}
		if len(enc.Handles) != 1 {
			metrics.RecordEncryptFailure()
			return out, fmt.Errorf("encrypt %s: expected 1 handle, got %d", d, len(enc.Handles))
		}
		out[d] = model.EncryptedInput{Handle: enc.Handles[0], Proof: enc.InputProof}
	}
	return out, nil
}
