// Package governance holds the human side of the system: the target
// registry with its per-target governance configuration, and the
// approval records that are the only mechanism able to satisfy a
// requires_approval gate. The engine never self-approves.
package governance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/store"
)

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

// Approval is the external approval record. Risk and rollback
// acknowledgement are explicit fields so an approval can never be given
// accidentally.
type Approval struct {
	ID                       string `json:"id"`
	TargetType               string `json:"target_type"`
	TargetID                 string `json:"target_id"`
	ApprovedBy               string `json:"approved_by"`
	RiskAcknowledged         bool   `json:"risk_acknowledged"`
	RollbackPlanAcknowledged bool   `json:"rollback_plan_acknowledged"`
	CreatedAt                string `json:"created_at"`
}

// Validate rejects incomplete approvals before any state mutation.
func (a Approval) Validate() error {
	if a.TargetType == "" || a.TargetID == "" {
		return fmt.Errorf("approval missing target_type or target_id")
	}
	if a.ApprovedBy == "" {
		return fmt.Errorf("approval missing approved_by")
	}
	if !a.RiskAcknowledged {
		return fmt.Errorf("approval requires risk_acknowledged=true")
	}
	if !a.RollbackPlanAcknowledged {
		return fmt.Errorf("approval requires rollback_plan_acknowledged=true")
	}
	return nil
}

// Service persists approvals and answers gate checks.
type Service struct {
	store *store.Store
	audit audit.Sink
}

// NewService wires the governance service.
func NewService(st *store.Store, sink audit.Sink) *Service {
	return &Service{store: st, audit: sink}
}

// Submit records an approval and audits it.
func (s *Service) Submit(a Approval) (*Approval, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.ID = "appr-" + uuid.NewString()
	a.CreatedAt = timeNow().UTC().Format(time.RFC3339)

	if err := s.store.Insert(store.Approvals, a.ID, a); err != nil {
		return nil, fmt.Errorf("recording approval: %w", err)
	}
	s.audit.Record(audit.Event{
		Action:     "approval_submitted",
		Actor:      a.ApprovedBy,
		TargetType: a.TargetType,
		TargetID:   a.TargetID,
		Details:    map[string]string{"approval_id": a.ID},
	})
	return &a, nil
}

// HasApproval reports whether an approval exists for the given entity.
func (s *Service) HasApproval(targetType, targetID string) (bool, error) {
	docs, err := s.store.ListWhere(store.Approvals, func(raw json.RawMessage) bool {
		var probe struct {
			TargetType string `json:"target_type"`
			TargetID   string `json:"target_id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return false
		}
		return probe.TargetType == targetType && probe.TargetID == targetID
	})
	if err != nil {
		return false, fmt.Errorf("checking approvals: %w", err)
	}
	return len(docs) > 0, nil
}
