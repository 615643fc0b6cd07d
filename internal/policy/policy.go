// Package policy evaluates proposals against scope, budget, risk-tier,
// and autonomy rules. Evaluation is pure: it reads the proposal, the
// target's configuration, and the enabled rule set, and computes
// {allowed, requires_approval, violations} without touching state.
//
// Blocking violations (budget exhausted, category not allowed, scope
// mismatch) force allowed=false. Risk-tier and autonomy rules never
// block — they only raise the approval requirement.
package policy

import (
	"fmt"
	"strconv"
)

// --- Autonomy level enum ---

// AutonomyLevel is how much the target trusts the system to act alone.
type AutonomyLevel string

const (
	AutonomyAdvisory    AutonomyLevel = "advisory"
	AutonomyPROnly      AutonomyLevel = "pr_only"
	AutonomyAutoMerge   AutonomyLevel = "auto_merge"
	AutonomyAutoRelease AutonomyLevel = "auto_release"
)

// validAutonomy is the set of allowed autonomy levels.
var validAutonomy = map[AutonomyLevel]bool{
	AutonomyAdvisory:    true,
	AutonomyPROnly:      true,
	AutonomyAutoMerge:   true,
	AutonomyAutoRelease: true,
}

// ValidateAutonomy returns an error if the level is not recognized.
func ValidateAutonomy(a AutonomyLevel) error {
	if !validAutonomy[a] {
		return fmt.Errorf("invalid autonomy level %q: must be one of: advisory, pr_only, auto_merge, auto_release", a)
	}
	return nil
}

// --- Rule model ---

// RuleCategory classifies what a rule inspects.
type RuleCategory string

const (
	CategoryScope    RuleCategory = "scope"
	CategoryBudget   RuleCategory = "budget"
	CategoryRiskTier RuleCategory = "risk_tier"
	CategoryAutonomy RuleCategory = "autonomy"
)

// Rule is a named, enabled/disabled evaluation unit. Params are
// free-form strings interpreted per category; rules are evaluated,
// never mutated at evaluation time.
type Rule struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Category RuleCategory      `json:"category"`
	Enabled  bool              `json:"enabled"`
	Params   map[string]string `json:"params,omitempty"`
}

// DefaultRules is the rule set seeded for a fresh installation.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "rule-scope-size", Name: "change size within target ceiling", Category: CategoryScope, Enabled: true},
		{ID: "rule-scope-category", Name: "category allowed for target", Category: CategoryScope, Enabled: true},
		{ID: "rule-budget-window", Name: "change budget not exhausted", Category: CategoryBudget, Enabled: true},
		{ID: "rule-risk-escalation", Name: "high risk requires approval", Category: CategoryRiskTier, Enabled: true,
			Params: map[string]string{"min_level": "high"}},
	}
}

// --- Evaluation input / output ---

// TargetConfig is the per-target governance configuration the evaluator
// reads. It lives on the target record; policy only consumes it.
type TargetConfig struct {
	TargetID          string        `json:"target_id"`
	Autonomy          AutonomyLevel `json:"autonomy"`
	ChangeBudget      int           `json:"change_budget"`
	AllowedCategories []string      `json:"allowed_categories"`
	MaxChangeSize     int           `json:"max_change_size"`
	ReleaseTarget     bool          `json:"release_target"`
}

// ProposalFacts is the slice of a proposal the policy engine needs.
// Defined here so evaluation has no dependency on the triage package.
type ProposalFacts struct {
	Category      string
	RiskLevel     string
	EstimatedSize int
}

// Violation is one rule outcome worth reporting.
type Violation struct {
	RuleID   string       `json:"rule_id"`
	Category RuleCategory `json:"category"`
	Message  string       `json:"message"`
	Blocking bool         `json:"blocking"`
}

// Result is the evaluation verdict.
type Result struct {
	Allowed          bool        `json:"allowed"`
	RequiresApproval bool        `json:"requires_approval"`
	Violations       []Violation `json:"violations"`
}

// riskAtLeast orders the shared risk-level vocabulary.
var riskOrder = map[string]int{"low": 0, "medium": 1, "high": 2, "critical": 3}

func riskAtLeast(level, minimum string) bool {
	return riskOrder[level] >= riskOrder[minimum]
}

// Evaluate computes the verdict for one proposal. budgetUsed is the
// number of proposals already accepted in the current window.
func Evaluate(p ProposalFacts, target TargetConfig, rules []Rule, budgetUsed int) Result {
	res := Result{Allowed: true}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		switch rule.Category {
		case CategoryScope:
			res.apply(evaluateScope(rule, p, target))
		case CategoryBudget:
			if target.ChangeBudget > 0 && budgetUsed >= target.ChangeBudget {
				res.apply(&Violation{
					RuleID:   rule.ID,
					Category: CategoryBudget,
					Message: fmt.Sprintf("change budget exhausted: %d of %d used this window",
						budgetUsed, target.ChangeBudget),
					Blocking: true,
				})
			}
		case CategoryRiskTier:
			min := rule.Params["min_level"]
			if min != "" && riskAtLeast(p.RiskLevel, min) {
				res.apply(&Violation{
					RuleID:   rule.ID,
					Category: CategoryRiskTier,
					Message:  fmt.Sprintf("risk level %s requires human approval (threshold %s)", p.RiskLevel, min),
					Blocking: false,
				})
			}
		case CategoryAutonomy:
			// Custom autonomy rules may tighten but never loosen the
			// default gate below; a matching rule raises approval.
			if level := rule.Params["max_autonomy"]; level != "" && target.Autonomy == AutonomyLevel(level) {
				res.apply(&Violation{
					RuleID:   rule.ID,
					Category: CategoryAutonomy,
					Message:  fmt.Sprintf("autonomy level %s capped by rule %s", target.Autonomy, rule.Name),
					Blocking: false,
				})
			}
		}
	}

	// The autonomy level strictly gates the default approval requirement
	// regardless of which rules are installed.
	if autonomyRequiresApproval(target, p) {
		res.RequiresApproval = true
	}

	return res
}

// evaluateScope checks change size and category membership.
func evaluateScope(rule Rule, p ProposalFacts, target TargetConfig) *Violation {
	switch rule.ID {
	case "rule-scope-category":
		if len(target.AllowedCategories) == 0 {
			return nil
		}
		for _, c := range target.AllowedCategories {
			if c == p.Category {
				return nil
			}
		}
		return &Violation{
			RuleID:   rule.ID,
			Category: CategoryScope,
			Message:  fmt.Sprintf("category %q not allowed for target %s", p.Category, target.TargetID),
			Blocking: true,
		}
	default:
		// Size ceiling: rule params may override the target's ceiling.
		max := target.MaxChangeSize
		if v, ok := rule.Params["max_size"]; ok {
			if parsed, err := strconv.Atoi(v); err == nil {
				max = parsed
			}
		}
		if max > 0 && p.EstimatedSize > max {
			return &Violation{
				RuleID:   rule.ID,
				Category: CategoryScope,
				Message:  fmt.Sprintf("estimated size %d exceeds ceiling %d", p.EstimatedSize, max),
				Blocking: true,
			}
		}
		return nil
	}
}

// autonomyRequiresApproval implements the default gate:
// advisory and pr_only always require approval; auto_merge requires it
// for high/critical risk or release targets; auto_release only for
// critical risk.
func autonomyRequiresApproval(target TargetConfig, p ProposalFacts) bool {
	switch target.Autonomy {
	case AutonomyAutoMerge:
		return riskAtLeast(p.RiskLevel, "high") || target.ReleaseTarget
	case AutonomyAutoRelease:
		return riskAtLeast(p.RiskLevel, "critical")
	default:
		return true
	}
}

func (r *Result) apply(v *Violation) {
	if v == nil {
		return
	}
	r.Violations = append(r.Violations, *v)
	if v.Blocking {
		r.Allowed = false
	} else {
		r.RequiresApproval = true
	}
}
