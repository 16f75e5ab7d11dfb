package presentation

import (
	"slices"
	"time"

	"github.com/okian/fheprop/internal/domain/model"
)

// DeadlineStatus tells whether a project still accepts ratings.
type DeadlineStatus string

// Deadline statuses.
const (
	DeadlineActive  DeadlineStatus = "active"
	DeadlineExpired DeadlineStatus = "expired"
)

// ProjectView is one row of the project list.
type ProjectView struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Dimensions  []string       `json:"dimensions"`
	Deadline    time.Time      `json:"deadline"`
	Remaining   string         `json:"remaining,omitempty"`
	Status      DeadlineStatus `json:"status"`
	Creator     string         `json:"creator"`
	IsCreator   bool           `json:"is_creator"`
	Rated       bool           `json:"rated"`
	CanRate     bool           `json:"can_rate"`
}

// NewProjectView derives the row for p at now. canSubmit is the session-wide
// submit capability; an expired or already rated project can never be rated.
func NewProjectView(p model.Project, now time.Time, viewer string, rated, canSubmit bool) ProjectView {
	v := ProjectView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Location:    p.Location,
		Dimensions:  ParseDimensions(p.Dimensions),
		Deadline:    p.Deadline.UTC(),
		Status:      DeadlineActive,
		Creator:     p.Creator.Hex(),
		IsCreator:   viewer != "" && viewer == p.Creator.Hex(),
		Rated:       rated,
	}
	if p.Expired(now) {
		v.Status = DeadlineExpired
	} else {
		v.Remaining = p.Deadline.Sub(now).Truncate(time.Second).String()
	}
	v.CanRate = canSubmit && v.Status == DeadlineActive && !rated
	return v
}

// ProjectViews derives rows for every project, newest first.
func ProjectViews(projects []model.Project, now time.Time, viewer string, rated []uint64, canSubmit bool) []ProjectView {
	out := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		out = append(out, NewProjectView(p, now, viewer, slices.Contains(rated, p.ID), canSubmit))
	}
	slices.SortFunc(out, func(a, b ProjectView) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return out
}
