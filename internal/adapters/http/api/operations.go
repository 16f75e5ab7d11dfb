package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/rating"
	"github.com/okian/fheprop/internal/domain/scoring"
	"github.com/okian/fheprop/internal/presentation"
	"github.com/okian/fheprop/pkg/logger"
)

// Project duration bounds.
const (
	defaultDurationDays = 7
	maxDurationDays     = 365
	maxDurationSeconds  = maxDurationDays * 24 * 60 * 60
)

// createProjectRequest mirrors the OpenAPI schema for POST /api/v1/projects.
type createProjectRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	Dimensions      []string `json:"dimensions"`
	DurationDays    int      `json:"duration_days"`
	DurationSeconds int64    `json:"duration_seconds"`
}

func (c createProjectRequest) validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return errors.New("missing name")
	case strings.TrimSpace(c.Description) == "":
		return errors.New("missing description")
	case strings.TrimSpace(c.Location) == "":
		return errors.New("missing location")
	case c.DurationSeconds < 0:
		return errors.New("duration_seconds must be positive")
	case c.DurationSeconds > maxDurationSeconds:
		return fmt.Errorf("duration_seconds must be at most %d", maxDurationSeconds)
	case c.DurationSeconds == 0 && (c.DurationDays < 0 || c.DurationDays > maxDurationDays):
		return fmt.Errorf("duration_days must be within 1..%d", maxDurationDays)
	case len(c.Dimensions) != 0 && len(c.Dimensions) != model.DimensionCount:
		return fmt.Errorf("dimensions must list %d labels", model.DimensionCount)
	}
	return nil
}

func (c createProjectRequest) project() (model.NewProject, error) {
	p := model.NewProject{
		Name:        strings.TrimSpace(c.Name),
		Description: strings.TrimSpace(c.Description),
		Location:    strings.TrimSpace(c.Location),
		Dimensions:  presentation.DefaultDimensionsJSON,
	}
	switch {
	case c.DurationSeconds > 0:
		p.Duration = time.Duration(c.DurationSeconds) * time.Second
	case c.DurationDays > 0:
		p.Duration = time.Duration(c.DurationDays) * 24 * time.Hour
	default:
		p.Duration = defaultDurationDays * 24 * time.Hour
	}
	if len(c.Dimensions) > 0 {
		raw, err := json.Marshal(c.Dimensions)
		if err != nil {
			return p, err
		}
		p.Dimensions = string(raw)
	}
	return p, nil
}

// submitRatingRequest mirrors the OpenAPI schema for POST /api/v1/projects/{id}/ratings.
type submitRatingRequest struct {
	Scores map[string]int64 `json:"scores"`
}

type operation func(ctx context.Context) (rating.Outcome, error)

// execute runs fn on a context detached from the request and bounded by the
// operation timeout. An Idempotency-Key seen before short-circuits; a failed
// operation forgets its key. With ?wait=false the response is 202 and fn
// finishes in the background.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, op string, fn operation) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && s.session.SeenAndRecord(r.Context(), key) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	timeout := s.session.OperationTimeout()
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)

	if r.URL.Query().Get("wait") == "false" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer cancel()
			if _, err := fn(ctx); err != nil {
				s.forget(ctx, key)
				s.logger.Warn(ctx, "background operation failed", logger.String("op", op), logger.Error(err))
			}
		}()
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
		return
	}

	defer cancel()
	out, err := fn(ctx)
	if err != nil {
		s.forget(ctx, key)
		var started *rating.Outcome
		if out.OpID != "" || out.Status != "" {
			started = &out
		}
		writeFailure(w, op, started, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) forget(ctx context.Context, key string) {
	if key != "" {
		s.session.Unrecord(ctx, key)
	}
}

// handleCreateProject handles POST /api/v1/projects.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_project"
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := req.project()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	s.execute(w, r, op, func(ctx context.Context) (rating.Outcome, error) {
		return s.ratings.CreateProject(ctx, p)
	})
}

// handleSubmitRating handles POST /api/v1/projects/{id}/ratings.
func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_rating"
	id, err := projectID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req submitRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	scores, err := scoring.FromMap(req.Scores)
	if err == nil {
		err = s.rules.Validate(scores)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scores", WrapKind(op, ErrBadRequest, err))
		return
	}
	s.execute(w, r, op, func(ctx context.Context) (rating.Outcome, error) {
		return s.ratings.SubmitRating(ctx, id, scores)
	})
}

// handleRefresh handles POST /api/v1/projects/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh_projects"
	s.execute(w, r, op, s.ratings.RefreshProjects)
}

func projectID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid project id %q", raw)
	}
	return id, nil
}
