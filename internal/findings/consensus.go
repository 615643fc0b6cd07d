package findings

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/HendryAvila/steward/internal/config"
	"github.com/HendryAvila/steward/internal/similarity"
)

// Engine merges per-perspective findings into consensus findings.
//
// Grouping is order-insensitive: the input is canonicalized by finding id
// before clustering, so the same finding set always produces the same
// groups regardless of storage order.
type Engine struct {
	cfg *config.Config
}

// NewEngine creates a consensus engine reading thresholds from cfg.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Compute merges the given findings for one target. perspectivesConsulted
// is the number of perspectives that were asked (not just those that
// answered); zero means "derive from the input".
func (e *Engine) Compute(input []Finding, perspectivesConsulted int) ([]ConsensusFinding, error) {
	if len(input) == 0 {
		return nil, nil
	}

	// Canonical order: sort a copy by id so grouping never depends on
	// how the caller happened to load the findings.
	sorted := make([]Finding, len(input))
	copy(sorted, input)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	if perspectivesConsulted <= 0 {
		seen := map[string]bool{}
		for _, f := range sorted {
			seen[f.Perspective] = true
		}
		perspectivesConsulted = len(seen)
	}

	groups := e.group(sorted)

	now := timeNow().UTC().Format("2006-01-02T15:04:05Z07:00")
	result := make([]ConsensusFinding, 0, len(groups))
	for _, members := range groups {
		cf, err := e.merge(members, perspectivesConsulted)
		if err != nil {
			return nil, err
		}
		cf.CreatedAt = now
		result = append(result, cf)
	}

	// Deterministic output order: strongest agreement first, then id.
	sort.Slice(result, func(i, j int) bool {
		if result[i].AgreementScore != result[j].AgreementScore {
			return result[i].AgreementScore > result[j].AgreementScore
		}
		return result[i].MemberIDs[0] < result[j].MemberIDs[0]
	})
	return result, nil
}

// group clusters findings whose claims overlap above the configured
// threshold. Input must already be in canonical order.
func (e *Engine) group(sorted []Finding) [][]Finding {
	type cluster struct {
		repTokens map[string]bool
		members   []Finding
	}

	var clusters []*cluster
	for _, f := range sorted {
		tokens := similarity.Tokenize(f.Claim)
		placed := false
		for _, c := range clusters {
			if similarity.Jaccard(tokens, c.repTokens) >= e.cfg.Consensus.SimilarityThreshold {
				c.members = append(c.members, f)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{repTokens: tokens, members: []Finding{f}})
		}
	}

	groups := make([][]Finding, len(clusters))
	for i, c := range clusters {
		groups[i] = c.members
	}
	return groups
}

// merge folds one group of findings into a single consensus finding.
func (e *Engine) merge(members []Finding, perspectivesConsulted int) (ConsensusFinding, error) {
	if len(members) == 0 {
		return ConsensusFinding{}, fmt.Errorf("consensus: empty group")
	}

	// Representative: highest confidence, id as tiebreak (members are in
	// canonical id order already).
	rep := members[0]
	for _, m := range members[1:] {
		if m.Confidence > rep.Confidence {
			rep = m
		}
	}

	perspectives := map[string]bool{}
	impacts := make([]ImpactVector, 0, len(members))
	memberIDs := make([]string, 0, len(members))
	maxRisk := RiskLow
	confidenceSum := 0.0
	evidenceBoost := 0.0

	seenEvidence := map[string]int{} // type\x00value -> index into merged
	var evidence []Evidence

	for _, m := range members {
		perspectives[m.Perspective] = true
		impacts = append(impacts, m.ExpectedImpact)
		memberIDs = append(memberIDs, m.ID)
		maxRisk = MaxRisk(maxRisk, m.Risk.Level)
		confidenceSum += m.Confidence

		for _, ev := range m.Evidence {
			evidenceBoost += e.cfg.Consensus.EvidenceBoostPerItem * evidenceQualityWeight[ev.Quality]
			key := ev.Type + "\x00" + ev.Value
			if idx, ok := seenEvidence[key]; ok {
				// Keep the better quality grade for duplicates.
				if evidenceQualityWeight[ev.Quality] > evidenceQualityWeight[evidence[idx].Quality] {
					evidence[idx].Quality = ev.Quality
				}
				continue
			}
			seenEvidence[key] = len(evidence)
			evidence = append(evidence, ev)
		}
	}

	supporting := make([]string, 0, len(perspectives))
	for p := range perspectives {
		supporting = append(supporting, p)
	}
	sort.Strings(supporting)

	// Agreement is zero without support beyond a single perspective;
	// otherwise the supporting share of perspectives consulted, clamped.
	agreement := 0.0
	if len(supporting) > 1 && perspectivesConsulted > 0 {
		agreement = float64(len(supporting)) / float64(perspectivesConsulted)
		if agreement > 1 {
			agreement = 1
		}
	}

	if evidenceBoost > e.cfg.Consensus.MaxEvidenceBoost {
		evidenceBoost = e.cfg.Consensus.MaxEvidenceBoost
	}
	confidence := confidenceSum/float64(len(members)) + evidenceBoost
	if confidence > 1 {
		confidence = 1
	}

	return ConsensusFinding{
		ID:                     uuid.NewString(),
		TargetID:               rep.TargetID,
		Claim:                  rep.Claim,
		Recommendation:         rep.Recommendation,
		SupportingPerspectives: supporting,
		AgreementScore:         agreement,
		CombinedConfidence:     confidence,
		Impact:                 meanImpact(impacts),
		Evidence:               evidence,
		MaxRisk:                maxRisk,
		MemberIDs:              memberIDs,
	}, nil
}
