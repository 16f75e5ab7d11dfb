// Package ratingsim drives a running rating service over HTTP and checks that
// what it reads back matches what it wrote.
package ratingsim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Projects   int           // Number of projects to create
	ChainID    uint64        // Chain to switch to before the run; 0 keeps the current one
	Seed       int64         // Seed for generated scores
	Workers    int           // Concurrent readers during verification
	Timeout    time.Duration // HTTP request timeout
	ReadyWait  time.Duration // How long to wait for the session to become writable
	ReportFile string        // Output file for the JSON report
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Session is the subset of GET /api/v1/session the simulation reads.
type Session struct {
	Wallet struct {
		Connected bool   `json:"connected"`
		Mock      bool   `json:"mock"`
		ChainID   uint64 `json:"chain_id"`
		Account   string `json:"account"`
	} `json:"wallet"`
	Signer *struct {
		Address string `json:"address"`
	} `json:"signer"`
	Contract         string    `json:"contract"`
	Deployed         bool      `json:"deployed"`
	SubmissionPath   string    `json:"submission_path"`
	Projects         []Project `json:"projects"`
	IsRefreshing     bool      `json:"is_refreshing"`
	CanCreateProject bool      `json:"can_create_project"`
	CanSubmitRating  bool      `json:"can_submit_rating"`
}

// Project is a project card as listed by the service.
type Project struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	Location   string   `json:"location"`
	Dimensions []string `json:"dimensions"`
	Status     string   `json:"status"`
	Rated      bool     `json:"rated"`
	CanRate    bool     `json:"can_rate"`
}

// NewProject is the body of POST /api/v1/projects.
type NewProject struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	Dimensions      []string `json:"dimensions,omitempty"`
	DurationSeconds int64    `json:"duration_seconds,omitempty"`
}

// Outcome is the result of a write operation.
type Outcome struct {
	OpID         string `json:"op_id"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	TxHash       string `json:"tx_hash"`
	ProjectID    uint64 `json:"project_id"`
	ProjectCount int    `json:"project_count"`
	Message      string `json:"message"`
}

// Statistics is the statistics view of one project.
type Statistics struct {
	ProjectID        uint64             `json:"project_id"`
	TotalScore       uint64             `json:"total_score"`
	RatingCount      uint64             `json:"rating_count"`
	AverageScore     float64            `json:"average_score"`
	Dimensions       map[string]float64 `json:"dimensions"`
	Fallback         bool               `json:"fallback"`
	Reason           string             `json:"reason"`
	SignatureAddress string             `json:"signature_address"`
	Banner           string             `json:"banner"`
}

// UserRating is a rater's stored scores.
type UserRating struct {
	ProjectID uint64            `json:"project_id"`
	Address   string            `json:"address"`
	Scores    map[string]uint32 `json:"scores"`
}

// Raters lists who rated a project.
type Raters struct {
	Raters   []string `json:"raters"`
	HasRated []bool   `json:"has_rated"`
}

// Ack is returned for replayed or background operations.
type Ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	ProjectsCreated    int
	RatingsSubmitted   int
	RatingsRejected    int
	ReplaysDetected    int
	StatisticsRead     int
	StatisticsFallback int
	Violations         []string
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
