package decisions

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/HendryAvila/steward/internal/similarity"
	"github.com/HendryAvila/steward/internal/store"
)

// Verdict is the anti-oscillation outcome for one candidate proposal.
// When blocked it carries the data the caller needs to decide between
// waiting out the cooldown and superseding the decision.
type Verdict struct {
	Blocked bool `json:"blocked"`
	// ADRID is the matched decision, empty when no topic matched.
	ADRID string `json:"adr_id,omitempty"`
	// TopicSimilarity is the match strength against the ADR text.
	TopicSimilarity float64 `json:"topic_similarity,omitempty"`
	// RemainingCooldownSeconds until the ADR stops protecting its topic.
	RemainingCooldownSeconds int64 `json:"remaining_cooldown_seconds,omitempty"`
	// ConfidenceGap is how much more confidence the challenger needs
	// to clear the margin (zero when cleared).
	ConfidenceGap float64 `json:"confidence_gap,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// Evaluate runs the anti-oscillation check for a candidate proposal
// described by description with the given confidence. The same store
// state, description, and confidence always produce the same verdict. A
// blocked challenge additionally breaks the matched ADR's
// consecutive-confirmation streak: confirmations count in a row, and a
// failed challenge is the event that interrupts the row.
func (e *Engine) Evaluate(targetID, description string, confidence float64) (Verdict, error) {
	adrs, err := e.activeFor(targetID)
	if err != nil {
		return Verdict{}, err
	}

	// Closest topic wins; ties resolve to the earlier id because the
	// store lists documents in id order.
	var (
		best      *ADR
		bestScore float64
	)
	tokens := similarity.Tokenize(description)
	for i := range adrs {
		score := similarity.Jaccard(tokens, similarity.Tokenize(adrs[i].Decision+" "+adrs[i].Title))
		if score >= e.cfg.Decisions.TopicSimilarity && score > bestScore {
			best = &adrs[i]
			bestScore = score
		}
	}

	if best == nil {
		return Verdict{Blocked: false}, nil
	}

	remaining := e.remainingCooldown(best)
	if remaining <= 0 {
		return Verdict{
			Blocked:         false,
			ADRID:           best.ID,
			TopicSimilarity: bestScore,
			Reason:          fmt.Sprintf("adr %s matched but its cooldown has expired", best.ID),
		}, nil
	}

	required := best.Confidence + best.MinConfidenceMargin
	if confidence >= required {
		return Verdict{
			Blocked:         false,
			ADRID:           best.ID,
			TopicSimilarity: bestScore,
			Reason: fmt.Sprintf("challenger confidence %.2f clears adr %s (%.2f + margin %.2f)",
				confidence, best.ID, best.Confidence, best.MinConfidenceMargin),
		}, nil
	}

	if err := e.ResetConfirmations(best.ID); err != nil {
		return Verdict{}, fmt.Errorf("resetting confirmations on adr %s: %w", best.ID, err)
	}

	return Verdict{
		Blocked:                  true,
		ADRID:                    best.ID,
		TopicSimilarity:          bestScore,
		RemainingCooldownSeconds: int64(remaining.Seconds()),
		ConfidenceGap:            required - confidence,
		Reason: fmt.Sprintf(
			"proposal contradicts adr %s: confidence %.2f is %.2f short of the required %.2f; cooldown ends in %s",
			best.ID, confidence, required-confidence, required, remaining.Round(time.Second),
		),
	}, nil
}

// Active lists the accepted ADRs currently binding a target
// (target-scoped plus global).
func (e *Engine) Active(targetID string) ([]ADR, error) {
	return e.activeFor(targetID)
}

// activeFor lists accepted ADRs for a target (target-scoped plus global).
func (e *Engine) activeFor(targetID string) ([]ADR, error) {
	docs, err := e.store.ListWhere(store.Decisions, func(raw json.RawMessage) bool {
		var probe struct {
			Status   Status `json:"status"`
			TargetID string `json:"target_id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return false
		}
		return probe.Status == StatusAccepted &&
			(probe.TargetID == targetID || probe.TargetID == "")
	})
	if err != nil {
		return nil, fmt.Errorf("listing active adrs: %w", err)
	}

	adrs := make([]ADR, 0, len(docs))
	for _, d := range docs {
		var adr ADR
		if err := json.Unmarshal(d.Data, &adr); err != nil {
			return nil, fmt.Errorf("decoding adr %s: %w", d.ID, err)
		}
		adrs = append(adrs, adr)
	}
	return adrs, nil
}

// remainingCooldown returns how long the ADR keeps protecting its topic;
// zero or negative means expired.
func (e *Engine) remainingCooldown(adr *ADR) time.Duration {
	until, err := time.Parse(time.RFC3339, adr.CooldownUntil)
	if err != nil {
		return 24 * time.Hour
	}
	return until.Sub(timeNow().UTC())
}
