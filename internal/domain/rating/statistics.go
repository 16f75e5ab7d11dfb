package rating

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/scoring"
	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

// Fallback reasons.
const (
	ReasonEncryptionNotReady = "encryption_not_ready"
	ReasonSignature          = "signature"
	ReasonCall               = "call"
)

// Statistics is a project's aggregate. Fallback marks the placeholder served when
// the real aggregate could not be read.
type Statistics struct {
	ProjectID uint64 `json:"project_id"`
	scoring.Summary
	Fallback         bool      `json:"fallback"`
	Reason           string    `json:"reason,omitempty"`
	AuthorizedUntil  time.Time `json:"authorized_until,omitempty"`
	SignatureAddress string    `json:"signature_address,omitempty"`
}

// ProjectStatistics reads the aggregate for projectID behind a decryption
// authorization. Any failure after the session is resolved degrades to the
// flagged placeholder.
func (c *Coordinator) ProjectStatistics(ctx context.Context, projectID uint64) (Statistics, error) {
	sess, err := c.sessions.Session(ctx)
	if err != nil {
		return Statistics{}, err
	}
	if err := sess.requireSigner(); err != nil {
		return Statistics{}, err
	}
	log := c.logger.With(logger.Uint64("project_id", projectID), logger.String("binding", sess.Binding.String()))

	if sess.Encryption == nil {
		return c.placeholder(ctx, log, projectID, ReasonEncryptionNotReady, ErrEncryptionNotReady), nil
	}
	inst, err := sess.Encryption.Instance()
	if err != nil {
		return c.placeholder(ctx, log, projectID, ReasonEncryptionNotReady, err), nil
	}

	sig, err := fhe.LoadOrSign(ctx, inst, []common.Address{sess.Contract.Address()}, sess.Signer, c.signatures,
		fhe.WithDurationDays(c.signatureDays),
		fhe.WithNow(c.clock),
	)
	if err != nil {
		return c.placeholder(ctx, log, projectID, ReasonSignature, err), nil
	}

	stats, err := sess.Contract.GetProjectStatistics(ctx, sess.Signer.Address(), projectID)
	if err != nil {
		reason := ReasonCall
		if name := chain.RevertName(err); name != "" {
			reason = strings.ToLower(name)
		}
		return c.placeholder(ctx, log, projectID, reason, err), nil
	}

	metrics.RecordStatisticsServed()
	return Statistics{
		ProjectID:        projectID,
		Summary:          scoring.Summarize(stats),
		AuthorizedUntil:  time.Unix(sig.StartTimestamp, 0).Add(time.Duration(sig.DurationDays) * 24 * time.Hour).UTC(),
		SignatureAddress: sig.UserAddress.Hex(),
	}, nil
}

func (c *Coordinator) placeholder(ctx context.Context, log logger.Logger, projectID uint64, reason string, cause error) Statistics {
	metrics.RecordStatisticsFallback(reason)
	log.Warn(ctx, "serving placeholder statistics", logger.String("reason", reason), logger.Error(cause))
	return Statistics{
		ProjectID: projectID,
		Summary:   scoring.Placeholder(),
		Fallback:  true,
		Reason:    reason,
	}
}

// UserRating returns user's scores for projectID. The contract only answers
// the rater.
func (c *Coordinator) UserRating(ctx context.Context, projectID uint64, user common.Address) (model.Scores, error) {
	sess, err := c.readSession(ctx)
	if err != nil {
		return model.Scores{}, err
	}
	if sess.Signer == nil {
		return model.Scores{}, ErrNoSigner
	}
	return sess.Contract.GetUserRating(ctx, sess.Signer.Address(), projectID, user)
}

// HasUserRated reports whether user rated projectID.
func (c *Coordinator) HasUserRated(ctx context.Context, projectID uint64, user common.Address) (bool, error) {
	sess, err := c.readSession(ctx)
	if err != nil {
		return false, err
	}
	return sess.Contract.HasUserRated(ctx, projectID, user)
}

// ProjectRaters lists every account that rated projectID.
func (c *Coordinator) ProjectRaters(ctx context.Context, projectID uint64) (model.ProjectRaters, error) {
	sess, err := c.readSession(ctx)
	if err != nil {
		return model.ProjectRaters{}, err
	}
	return sess.Contract.GetAllProjectRatings(ctx, projectID)
}

// MockMode asks the deployed contract whether it accepts plaintext ratings.
func (c *Coordinator) MockMode(ctx context.Context) (bool, error) {
	sess, err := c.readSession(ctx)
	if err != nil {
		return false, err
	}
	return sess.Contract.IsMockMode(ctx)
}

func (c *Coordinator) readSession(ctx context.Context) (Session, error) {
	sess, err := c.sessions.Session(ctx)
	if err != nil {
		return Session{}, err
	}
	if err := sess.requireContract(); err != nil {
		return Session{}, err
	}
	return sess, nil
}
