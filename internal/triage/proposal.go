// Package triage turns consensus findings into scored, ranked
// improvement proposals. It pulls low-confidence findings out for human
// escalation, buckets the rest by category, sub-clusters near-duplicate
// findings, scores each resulting proposal, and runs every proposal
// through policy evaluation and the anti-oscillation check.
package triage

import (
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/steward/internal/decisions"
	"github.com/HendryAvila/steward/internal/findings"
	"github.com/HendryAvila/steward/internal/policy"
)

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

// --- Category enum ---

// Category is the kind of change a proposal represents.
type Category string

const (
	CategoryBehavioral Category = "behavioral"
	CategoryRefactor   Category = "refactor"
	CategoryDocs       Category = "docs"
	CategoryPromptOnly Category = "prompt_only"
	CategorySecurity   Category = "security"
	CategoryDependency Category = "dependency"
)

// validCategories is the set of allowed proposal categories.
var validCategories = map[Category]bool{
	CategoryBehavioral: true,
	CategoryRefactor:   true,
	CategoryDocs:       true,
	CategoryPromptOnly: true,
	CategorySecurity:   true,
	CategoryDependency: true,
}

// ValidateCategory returns an error if the category is not recognized.
func ValidateCategory(c Category) error {
	if !validCategories[c] {
		return fmt.Errorf("invalid category %q: must be one of: behavioral, refactor, docs, prompt_only, security, dependency", c)
	}
	return nil
}

// categoryKeywords drives inference from claim+recommendation text.
// Checked in order; the first category with a keyword hit wins and
// behavioral is the fallback.
var categoryOrder = []Category{
	CategorySecurity, CategoryDependency, CategoryDocs,
	CategoryPromptOnly, CategoryRefactor,
}

var categoryKeywords = map[Category][]string{
	CategorySecurity: {
		"security", "vulnerability", "cve", "injection", "secret",
		"credential", "auth", "encrypt", "sanitize", "permission",
	},
	CategoryDependency: {
		"dependency", "dependencies", "upgrade", "version bump",
		"outdated", "deprecated package", "go.mod", "lockfile",
	},
	CategoryDocs: {
		"documentation", "docs", "readme", "comment", "docstring",
		"changelog", "guide",
	},
	CategoryPromptOnly: {
		"prompt", "instruction", "system message", "tool description",
	},
	CategoryRefactor: {
		"refactor", "restructure", "extract", "duplication", "dead code",
		"simplify", "rename", "decouple",
	},
}

// InferCategory buckets a finding by keyword match against its
// claim+recommendation text.
func InferCategory(text string) Category {
	lower := strings.ToLower(text)
	for _, c := range categoryOrder {
		for _, kw := range categoryKeywords[c] {
			if strings.Contains(lower, kw) {
				return c
			}
		}
	}
	return CategoryBehavioral
}

// --- Status enum and lifecycle ---

// Status is a proposal's position in its delivery lifecycle.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusTriaged    Status = "triaged"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in_progress"
	StatusPROpen     Status = "pr_open"
	StatusTesting    Status = "testing"
	StatusMerged     Status = "merged"
	StatusReleased   Status = "released"
	StatusRejected   Status = "rejected"
	StatusRolledBack Status = "rolled_back"
)

// transitions is the legal status graph. Proposals move forward through
// delivery, may be rejected while still undelivered, and may be rolled
// back once merged or released. Nothing is ever deleted.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusTriaged, StatusRejected},
	StatusTriaged:    {StatusApproved, StatusRejected},
	StatusApproved:   {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusPROpen, StatusRejected},
	StatusPROpen:     {StatusTesting, StatusRejected},
	StatusTesting:    {StatusMerged, StatusRejected},
	StatusMerged:     {StatusReleased, StatusRolledBack},
	StatusReleased:   {StatusRolledBack},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change in place.
func (p *Proposal) Transition(to Status) error {
	if !CanTransition(p.Status, to) {
		return fmt.Errorf("proposal %s cannot move %s → %s", p.ID, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	return nil
}

// --- Proposal ---

// Proposal is one unit of proposed change derived from a consensus
// finding or a cluster of them. Created at triage; mutated only through
// its status lifecycle; never deleted.
type Proposal struct {
	ID          string   `json:"id"`
	TargetID    string   `json:"target_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Status      Status   `json:"status"`

	RiskLevel          findings.RiskLevel   `json:"risk_level"`
	AcceptanceCriteria []string             `json:"acceptance_criteria"`
	EstimatedSize      int                  `json:"estimated_size"`
	Impact             findings.ImpactVector `json:"impact"`

	// PriorityScore is the clamped [0,1] triage score; Priority is its
	// 0–100 integer projection used for ranking displays.
	PriorityScore      float64 `json:"priority_score"`
	Priority           int     `json:"priority"`
	RiskAdjustedImpact float64 `json:"risk_adjusted_impact"`

	AgreementScore float64 `json:"agreement_score"`
	Confidence     float64 `json:"confidence"`
	ConsensusIDs   []string `json:"consensus_ids"`

	// Gate outcomes captured at triage time.
	Policy      policy.Result     `json:"policy"`
	Oscillation decisions.Verdict `json:"oscillation"`
	Blocked     bool              `json:"blocked"`
	BlockReason string            `json:"block_reason,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Escalation is a finding too weak to act on automatically; it always
// goes to a human instead of the proposal list. Persisted so the
// question stays answerable after the triage run that raised it.
type Escalation struct {
	ID             string  `json:"id"`
	TargetID       string  `json:"target_id"`
	ConsensusID    string  `json:"consensus_id"`
	Claim          string  `json:"claim"`
	AgreementScore float64 `json:"agreement_score"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
	CreatedAt      string  `json:"created_at"`
}

// Result is the triage output: ranked proposals, escalations, and the
// change budget left for the window.
type Result struct {
	Proposals       []Proposal   `json:"proposals"`
	Escalations     []Escalation `json:"escalations"`
	BudgetRemaining int          `json:"budget_remaining"`
}
