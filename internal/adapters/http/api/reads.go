package api

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/scoring"
	"github.com/okian/fheprop/internal/presentation"
)

type userRatingResponse struct {
	ProjectID uint64            `json:"project_id"`
	Address   string            `json:"address"`
	Scores    map[string]uint32 `json:"scores"`
}

type hasRatedResponse struct {
	ProjectID uint64 `json:"project_id"`
	Address   string `json:"address"`
	HasRated  bool   `json:"has_rated"`
}

// handleGetStatistics handles GET /api/v1/projects/{id}/statistics.
func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_statistics"
	id, err := projectID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	stats, err := s.ratings.ProjectStatistics(r.Context(), id)
	if err != nil {
		writeFailure(w, op, nil, err)
		return
	}
	labels := presentation.DefaultDimensionLabels
	if p, ok := s.ratings.Project(id); ok {
		labels = presentation.ParseDimensions(p.Dimensions)
	}
	writeJSON(w, http.StatusOK, presentation.NewStatisticsView(stats, labels, scoring.MaxScore))
}

// handleGetUserRating handles GET /api/v1/projects/{id}/ratings/{address}.
func (s *Server) handleGetUserRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user_rating"
	id, addr, err := projectAndAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	scores, err := s.ratings.UserRating(r.Context(), id, addr)
	if err != nil {
		writeFailure(w, op, nil, err)
		return
	}
	resp := userRatingResponse{ProjectID: id, Address: addr.Hex(), Scores: make(map[string]uint32, model.DimensionCount)}
	for _, d := range model.AllDimensions() {
		resp.Scores[d.String()] = scores[d]
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHasUserRated handles GET /api/v1/projects/{id}/raters/{address}.
func (s *Server) handleHasUserRated(w http.ResponseWriter, r *http.Request) {
	const op = "api.has_user_rated"
	id, addr, err := projectAndAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rated, err := s.ratings.HasUserRated(r.Context(), id, addr)
	if err != nil {
		writeFailure(w, op, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, hasRatedResponse{ProjectID: id, Address: addr.Hex(), HasRated: rated})
}

// handleListRaters handles GET /api/v1/projects/{id}/raters.
func (s *Server) handleListRaters(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_raters"
	id, err := projectID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	raters, err := s.ratings.ProjectRaters(r.Context(), id)
	if err != nil {
		writeFailure(w, op, nil, err)
		return
	}
	if raters.Raters == nil {
		raters.Raters = []common.Address{}
		raters.HasRated = []bool{}
	}
	writeJSON(w, http.StatusOK, raters)
}

func projectAndAddress(r *http.Request) (uint64, common.Address, error) {
	id, err := projectID(r)
	if err != nil {
		return 0, common.Address{}, err
	}
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		return 0, common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return id, common.HexToAddress(raw), nil
}
