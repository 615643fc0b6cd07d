// Package delivery drives proposals through their delivery lifecycle
// and maintains the flat records around it: implementation plans, PR
// records, releases, and per-target scorecards. The actual planning,
// coding, and releasing happens outside the engine — this package only
// keeps the records straight and enforces the approval gate.
package delivery

import "time"

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

// Plan is the implementation plan opened when a proposal is approved.
type Plan struct {
	ID         string   `json:"id"`
	ProposalID string   `json:"proposal_id"`
	TargetID   string   `json:"target_id"`
	Steps      []string `json:"steps"`
	Status     string   `json:"status"` // open | done
	CreatedAt  string   `json:"created_at"`
}

// PullRequest records a PR opened for a proposal.
type PullRequest struct {
	ID         string `json:"id"`
	ProposalID string `json:"proposal_id"`
	TargetID   string `json:"target_id"`
	Branch     string `json:"branch"`
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	Status     string `json:"status"` // open | merged | closed
	CreatedAt  string `json:"created_at"`
}

// Release groups released proposals for a target.
type Release struct {
	ID          string   `json:"id"`
	TargetID    string   `json:"target_id"`
	Version     string   `json:"version"`
	ProposalIDs []string `json:"proposal_ids"`
	Status      string   `json:"status"` // published
	CreatedAt   string   `json:"created_at"`
}

// Scorecard tracks per-dimension target health on a 0–100 scale,
// nudged by the impact vectors of merged proposals.
type Scorecard struct {
	TargetID    string  `json:"target_id"`
	Reliability float64 `json:"reliability"`
	Security    float64 `json:"security"`
	DevEx       float64 `json:"devex"`
	Performance float64 `json:"performance"`
	UpdatedAt   string  `json:"updated_at"`
}

// scorecardBaseline is the starting health score per dimension.
const scorecardBaseline = 50

// impactScale converts a [-1,1] impact component into scorecard points.
const impactScale = 10

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
