package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/governance"
	"github.com/HendryAvila/steward/internal/store"
	"github.com/HendryAvila/steward/internal/triage"
)

// Service moves proposals through their lifecycle and keeps the flat
// delivery records in sync.
type Service struct {
	store     *store.Store
	audit     audit.Sink
	approvals *governance.Service
}

// NewService wires the delivery service.
func NewService(st *store.Store, sink audit.Sink, approvals *governance.Service) *Service {
	return &Service{store: st, audit: sink, approvals: approvals}
}

// GetProposal loads one proposal; unknown ids carry a recovery hint.
func (s *Service) GetProposal(id string) (*triage.Proposal, int64, error) {
	var p triage.Proposal
	version, err := s.store.Get(store.Proposals, id, &p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: proposal %q unknown — list proposals to find the right id", store.ErrNotFound, id)
		}
		return nil, 0, err
	}
	return &p, version, nil
}

// ListProposals returns proposals for a target, optionally filtered by
// status (empty means all).
func (s *Service) ListProposals(targetID string, status triage.Status) ([]triage.Proposal, error) {
	docs, err := s.store.ListWhere(store.Proposals, func(raw json.RawMessage) bool {
		var probe struct {
			TargetID string        `json:"target_id"`
			Status   triage.Status `json:"status"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return false
		}
		if targetID != "" && probe.TargetID != targetID {
			return false
		}
		return status == "" || probe.Status == status
	})
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}

	proposals := make([]triage.Proposal, 0, len(docs))
	for _, d := range docs {
		var p triage.Proposal
		if err := json.Unmarshal(d.Data, &p); err != nil {
			return nil, fmt.Errorf("decoding proposal %s: %w", d.ID, err)
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// ListEscalations returns the findings triage pulled out for human
// judgement, optionally filtered by target (empty means all).
func (s *Service) ListEscalations(targetID string) ([]triage.Escalation, error) {
	docs, err := s.store.ListWhere(store.Escalations, func(raw json.RawMessage) bool {
		var probe struct {
			TargetID string `json:"target_id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return false
		}
		return targetID == "" || probe.TargetID == targetID
	})
	if err != nil {
		return nil, fmt.Errorf("listing escalations: %w", err)
	}

	escalations := make([]triage.Escalation, 0, len(docs))
	for _, d := range docs {
		var esc triage.Escalation
		if err := json.Unmarshal(d.Data, &esc); err != nil {
			return nil, fmt.Errorf("decoding escalation %s: %w", d.ID, err)
		}
		escalations = append(escalations, esc)
	}
	return escalations, nil
}

// AdvanceProposal applies one lifecycle transition. Moving into approved
// is the governance gate: when the triage-time policy verdict demanded
// approval, an approval record must exist — the engine never
// self-approves.
func (s *Service) AdvanceProposal(id string, to triage.Status, actor string) (*triage.Proposal, error) {
	p, version, err := s.GetProposal(id)
	if err != nil {
		return nil, err
	}

	if p.Blocked && to != triage.StatusRejected {
		return nil, fmt.Errorf("proposal %s is blocked (%s); it can only be rejected", id, p.BlockReason)
	}

	if to == triage.StatusApproved && p.Policy.RequiresApproval {
		ok, err := s.approvals.HasApproval("proposal", id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("needs_approval: proposal %s requires a governance approval record before it can be approved", id)
		}
	}

	if err := p.Transition(to); err != nil {
		return nil, err
	}
	if err := s.store.Update(store.Proposals, id, version, p); err != nil {
		return nil, fmt.Errorf("saving proposal %s: %w", id, err)
	}

	s.audit.Record(audit.Event{
		Action:     "proposal_status_changed",
		Actor:      actor,
		TargetType: "proposal",
		TargetID:   id,
		Details:    map[string]string{"status": string(to), "target": p.TargetID},
	})

	if err := s.onStatus(p); err != nil {
		return nil, err
	}
	return p, nil
}

// onStatus creates or updates the flat records tied to a status change.
func (s *Service) onStatus(p *triage.Proposal) error {
	now := timeNow().UTC().Format(time.RFC3339)
	switch p.Status {
	case triage.StatusApproved:
		plan := Plan{
			ID:         "plan-" + uuid.NewString(),
			ProposalID: p.ID,
			TargetID:   p.TargetID,
			Steps:      append([]string{"implement: " + p.Title}, p.AcceptanceCriteria...),
			Status:     "open",
			CreatedAt:  now,
		}
		if err := s.store.Insert(store.Plans, plan.ID, plan); err != nil {
			return fmt.Errorf("opening plan: %w", err)
		}
	case triage.StatusPROpen:
		pr := PullRequest{
			ID:         "pr-" + uuid.NewString(),
			ProposalID: p.ID,
			TargetID:   p.TargetID,
			Branch:     "steward/" + p.ID,
			Title:      p.Title,
			Status:     "open",
			CreatedAt:  now,
		}
		if err := s.store.Insert(store.PRs, pr.ID, pr); err != nil {
			return fmt.Errorf("recording pr: %w", err)
		}
	case triage.StatusMerged:
		if err := s.applyToScorecard(p); err != nil {
			return err
		}
	case triage.StatusReleased:
		rel := Release{
			ID:          "rel-" + uuid.NewString(),
			TargetID:    p.TargetID,
			Version:     timeNow().UTC().Format("2006.01.02-150405"),
			ProposalIDs: []string{p.ID},
			Status:      "published",
			CreatedAt:   now,
		}
		if err := s.store.Insert(store.Releases, rel.ID, rel); err != nil {
			return fmt.Errorf("recording release: %w", err)
		}
	}
	return nil
}

// Scorecard returns the target's scorecard, at baseline if no proposal
// has merged yet.
func (s *Service) Scorecard(targetID string) (*Scorecard, error) {
	var sc Scorecard
	_, err := s.store.Get(store.Scorecards, targetID, &sc)
	if errors.Is(err, store.ErrNotFound) {
		return &Scorecard{
			TargetID:    targetID,
			Reliability: scorecardBaseline,
			Security:    scorecardBaseline,
			DevEx:       scorecardBaseline,
			Performance: scorecardBaseline,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// applyToScorecard nudges the target's health scores by the merged
// proposal's impact vector.
func (s *Service) applyToScorecard(p *triage.Proposal) error {
	var (
		sc      Scorecard
		version int64
	)
	version, err := s.store.Get(store.Scorecards, p.TargetID, &sc)
	fresh := errors.Is(err, store.ErrNotFound)
	if err != nil && !fresh {
		return err
	}
	if fresh {
		sc = Scorecard{
			TargetID:    p.TargetID,
			Reliability: scorecardBaseline,
			Security:    scorecardBaseline,
			DevEx:       scorecardBaseline,
			Performance: scorecardBaseline,
		}
	}

	sc.Reliability = clampScore(sc.Reliability + p.Impact.Reliability*impactScale)
	sc.Security = clampScore(sc.Security + p.Impact.Security*impactScale)
	sc.DevEx = clampScore(sc.DevEx + p.Impact.DevEx*impactScale)
	sc.Performance = clampScore(sc.Performance + p.Impact.Performance*impactScale)
	sc.UpdatedAt = timeNow().UTC().Format(time.RFC3339)

	if fresh {
		return s.store.Insert(store.Scorecards, p.TargetID, sc)
	}
	return s.store.Update(store.Scorecards, p.TargetID, version, sc)
}
