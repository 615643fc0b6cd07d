package triage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/config"
	"github.com/HendryAvila/steward/internal/decisions"
	"github.com/HendryAvila/steward/internal/findings"
	"github.com/HendryAvila/steward/internal/policy"
	"github.com/HendryAvila/steward/internal/similarity"
	"github.com/HendryAvila/steward/internal/store"
)

// Engine runs the triage stages over a consensus result.
type Engine struct {
	cfg       *config.Config
	store     *store.Store
	decisions *decisions.Engine
	audit     audit.Sink
}

// NewEngine wires the triage engine.
func NewEngine(cfg *config.Config, st *store.Store, dec *decisions.Engine, sink audit.Sink) *Engine {
	return &Engine{cfg: cfg, store: st, decisions: dec, audit: sink}
}

// Run triages one consensus result for a target. budgetUsed is the
// number of proposals already accepted in the current window. Proposals
// are persisted and the ranked result returned.
func (e *Engine) Run(target policy.TargetConfig, consensus []findings.ConsensusFinding, rules []policy.Rule, budgetUsed int) (*Result, error) {
	res := &Result{}

	// Stage 1: escalation filter. Weak findings go to a human, never
	// into the proposal list. Each escalation is persisted as its own
	// record so the open question survives the triage run.
	var actionable []findings.ConsensusFinding
	for _, cf := range consensus {
		if cf.AgreementScore < e.cfg.Triage.EscalationAgreement &&
			cf.CombinedConfidence < e.cfg.Triage.EscalationConfidence {
			esc := Escalation{
				ID:             "esc-" + uuid.NewString(),
				TargetID:       target.TargetID,
				ConsensusID:    cf.ID,
				Claim:          cf.Claim,
				AgreementScore: cf.AgreementScore,
				Confidence:     cf.CombinedConfidence,
				Reason: fmt.Sprintf(
					"agreement %.2f < %.2f and confidence %.2f < %.2f: needs human judgement",
					cf.AgreementScore, e.cfg.Triage.EscalationAgreement,
					cf.CombinedConfidence, e.cfg.Triage.EscalationConfidence,
				),
				CreatedAt: timeNow().UTC().Format(time.RFC3339),
			}
			if err := e.store.Insert(store.Escalations, esc.ID, esc); err != nil {
				return nil, fmt.Errorf("persisting escalation: %w", err)
			}
			e.audit.Record(audit.Event{
				Action:     "finding_escalated",
				Actor:      "triage-engine",
				TargetType: "escalation",
				TargetID:   esc.ID,
				Details: map[string]string{
					"target":       target.TargetID,
					"consensus_id": cf.ID,
				},
			})
			res.Escalations = append(res.Escalations, esc)
			continue
		}
		actionable = append(actionable, cf)
	}

	// Stage 2: category bucketing.
	buckets := map[Category][]findings.ConsensusFinding{}
	for _, cf := range actionable {
		cat := InferCategory(cf.Claim + " " + cf.Recommendation)
		buckets[cat] = append(buckets[cat], cf)
	}

	// Stage 3+4: sub-cluster each bucket and score one proposal per
	// cluster. Iterate categories in fixed order for determinism.
	for _, cat := range append([]Category{CategoryBehavioral}, categoryOrder...) {
		members := buckets[cat]
		if len(members) == 0 {
			continue
		}
		for _, cluster := range e.subCluster(members) {
			p := e.buildProposal(target, cat, cluster)
			if err := e.gate(&p, target, rules, budgetUsed); err != nil {
				return nil, err
			}
			res.Proposals = append(res.Proposals, p)
		}
	}

	// Stage 5: rank by priority, persist, account for budget.
	sort.Slice(res.Proposals, func(i, j int) bool {
		if res.Proposals[i].PriorityScore != res.Proposals[j].PriorityScore {
			return res.Proposals[i].PriorityScore > res.Proposals[j].PriorityScore
		}
		return res.Proposals[i].ID < res.Proposals[j].ID
	})

	accepted := 0
	for i := range res.Proposals {
		if !res.Proposals[i].Blocked {
			accepted++
		}
		if err := e.store.Insert(store.Proposals, res.Proposals[i].ID, res.Proposals[i]); err != nil {
			return nil, fmt.Errorf("persisting proposal: %w", err)
		}
		e.audit.Record(audit.Event{
			Action:     "proposal_created",
			Actor:      "triage-engine",
			TargetType: "proposal",
			TargetID:   res.Proposals[i].ID,
			Details: map[string]string{
				"target":   target.TargetID,
				"category": string(res.Proposals[i].Category),
				"priority": fmt.Sprintf("%d", res.Proposals[i].Priority),
			},
		})
	}

	res.BudgetRemaining = target.ChangeBudget - budgetUsed - accepted
	if res.BudgetRemaining < 0 {
		res.BudgetRemaining = 0
	}
	return res, nil
}

// subCluster groups near-duplicate findings within one category bucket.
// Buckets of one or two members skip clustering: each finding stands
// alone as its own proposal.
func (e *Engine) subCluster(members []findings.ConsensusFinding) [][]findings.ConsensusFinding {
	if len(members) <= 2 {
		clusters := make([][]findings.ConsensusFinding, len(members))
		for i, m := range members {
			clusters[i] = []findings.ConsensusFinding{m}
		}
		return clusters
	}

	// Canonical order by id keeps clustering order-insensitive.
	sorted := make([]findings.ConsensusFinding, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	type cluster struct {
		repTokens map[string]bool
		members   []findings.ConsensusFinding
	}
	var clusters []*cluster
	for _, m := range sorted {
		tokens := similarity.Tokenize(m.Claim + " " + m.Recommendation)
		placed := false
		for _, c := range clusters {
			if similarity.Jaccard(tokens, c.repTokens) >= e.cfg.Triage.ClusterSimilarity {
				c.members = append(c.members, m)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{repTokens: tokens, members: []findings.ConsensusFinding{m}})
		}
	}

	out := make([][]findings.ConsensusFinding, len(clusters))
	for i, c := range clusters {
		out[i] = c.members
	}
	return out
}

// buildProposal turns one cluster into a scored proposal represented by
// its highest-scoring member (confidence × (1 + agreement)).
func (e *Engine) buildProposal(target policy.TargetConfig, cat Category, cluster []findings.ConsensusFinding) Proposal {
	rep := cluster[0]
	repScore := rep.CombinedConfidence * (1 + rep.AgreementScore)
	for _, m := range cluster[1:] {
		if s := m.CombinedConfidence * (1 + m.AgreementScore); s > repScore {
			rep, repScore = m, s
		}
	}

	consensusIDs := make([]string, 0, len(cluster))
	impacts := make([]findings.ImpactVector, 0, len(cluster))
	maxRisk := findings.RiskLow
	for _, m := range cluster {
		consensusIDs = append(consensusIDs, m.ID)
		impacts = append(impacts, m.Impact)
		maxRisk = findings.MaxRisk(maxRisk, m.MaxRisk)
	}
	impact := meanImpact(impacts)

	now := timeNow().UTC().Format(time.RFC3339)
	p := Proposal{
		ID:                 "prop-" + uuid.NewString(),
		TargetID:           target.TargetID,
		Title:              rep.Claim,
		Description:        rep.Claim + ". Recommendation: " + rep.Recommendation,
		Category:           cat,
		Status:             StatusTriaged,
		RiskLevel:          maxRisk,
		AcceptanceCriteria: acceptanceCriteria(rep, maxRisk),
		EstimatedSize:      estimateSize(cat, impact),
		Impact:             impact,
		AgreementScore:     rep.AgreementScore,
		Confidence:         rep.CombinedConfidence,
		ConsensusIDs:       consensusIDs,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	e.score(&p)
	return p
}

// score fills PriorityScore, Priority, and RiskAdjustedImpact.
func (e *Engine) score(p *Proposal) {
	w := e.cfg.Triage.Weights
	raw := p.Impact.Security*w.Security +
		p.Impact.Reliability*w.Reliability +
		p.Impact.DevEx*w.DevEx +
		p.Impact.Performance*w.Performance

	raw += p.AgreementScore * e.cfg.Triage.AgreementBonus
	raw += p.Confidence * e.cfg.Triage.ConfidenceBonus
	raw -= e.cfg.Triage.RiskPenalty[string(p.RiskLevel)]

	if raw < 0 {
		raw = 0
	}
	if raw > 1 {
		raw = 1
	}
	p.PriorityScore = raw
	p.Priority = int(raw*100 + 0.5)

	discount := e.cfg.Triage.RiskDiscount[string(p.RiskLevel)]
	p.RiskAdjustedImpact = p.Impact.Magnitude() * discount * p.Confidence
}

// gate runs policy evaluation and the anti-oscillation check, and marks
// zero-impact proposals as no-ops regardless of the other verdicts.
func (e *Engine) gate(p *Proposal, target policy.TargetConfig, rules []policy.Rule, budgetUsed int) error {
	p.Policy = policy.Evaluate(policy.ProposalFacts{
		Category:      string(p.Category),
		RiskLevel:     string(p.RiskLevel),
		EstimatedSize: p.EstimatedSize,
	}, target, rules, budgetUsed)

	verdict, err := e.decisions.Evaluate(p.TargetID, p.Description, p.Confidence)
	if err != nil {
		return fmt.Errorf("anti-oscillation check for %s: %w", p.ID, err)
	}
	p.Oscillation = verdict

	switch {
	case p.Impact.Magnitude() == 0:
		p.Blocked = true
		p.BlockReason = "no-op: proposal has zero net impact"
	case !p.Policy.Allowed:
		p.Blocked = true
		p.BlockReason = "policy violation: " + firstViolation(p.Policy)
	case p.Oscillation.Blocked:
		p.Blocked = true
		p.BlockReason = p.Oscillation.Reason
	}
	return nil
}

func firstViolation(r policy.Result) string {
	for _, v := range r.Violations {
		if v.Blocking {
			return v.Message
		}
	}
	return "blocked"
}

// acceptanceCriteria derives a checkable list from the representative
// finding and the cluster's worst risk.
func acceptanceCriteria(rep findings.ConsensusFinding, risk findings.RiskLevel) []string {
	criteria := []string{
		"implements: " + rep.Recommendation,
		"existing test suite passes",
	}
	if rep.Impact.Security > 0 {
		criteria = append(criteria, "security impact verified by a dedicated test")
	}
	if rep.Impact.Reliability > 0 {
		criteria = append(criteria, "no reliability regression under the standard load check")
	}
	if risk == findings.RiskHigh || risk == findings.RiskCritical {
		criteria = append(criteria, "rollback plan documented before merge")
	}
	return criteria
}

// estimateSize is a deterministic numeric proxy for change magnitude,
// scaled by category: docs and prompt changes are cheap, refactors
// sprawl.
var categorySizeFactor = map[Category]float64{
	CategoryBehavioral: 1.0,
	CategoryRefactor:   1.4,
	CategoryDocs:       0.3,
	CategoryPromptOnly: 0.2,
	CategorySecurity:   1.0,
	CategoryDependency: 0.5,
}

func estimateSize(cat Category, impact findings.ImpactVector) int {
	base := 40 + impact.Magnitude()*400
	return int(base * categorySizeFactor[cat])
}

// meanImpact averages impact vectors component-wise.
func meanImpact(vs []findings.ImpactVector) findings.ImpactVector {
	if len(vs) == 0 {
		return findings.ImpactVector{}
	}
	var sum findings.ImpactVector
	for _, v := range vs {
		sum.Reliability += v.Reliability
		sum.Security += v.Security
		sum.DevEx += v.DevEx
		sum.Performance += v.Performance
	}
	n := float64(len(vs))
	return findings.ImpactVector{
		Reliability: sum.Reliability / n,
		Security:    sum.Security / n,
		DevEx:       sum.DevEx / n,
		Performance: sum.Performance / n,
	}
}
