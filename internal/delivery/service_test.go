package delivery

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/findings"
	"github.com/HendryAvila/steward/internal/governance"
	"github.com/HendryAvila/steward/internal/policy"
	"github.com/HendryAvila/steward/internal/store"
	"github.com/HendryAvila/steward/internal/triage"
)

func init() {
	// Freeze time for deterministic tests.
	timeNow = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
}

func testService(t *testing.T) (*Service, *governance.Service, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	approvals := governance.NewService(st, audit.Discard{})
	return NewService(st, audit.Discard{}, approvals), approvals, st
}

func seedProposal(t *testing.T, st *store.Store, p triage.Proposal) {
	t.Helper()
	if p.ID == "" {
		p.ID = "prop-1"
	}
	if p.TargetID == "" {
		p.TargetID = "payments-service"
	}
	if p.Status == "" {
		p.Status = triage.StatusTriaged
	}
	if err := st.Insert(store.Proposals, p.ID, p); err != nil {
		t.Fatalf("seed proposal: %v", err)
	}
}

// --- Approval gate ---

func TestAdvance_ApprovalGateHolds(t *testing.T) {
	svc, approvals, st := testService(t)
	seedProposal(t, st, triage.Proposal{
		Policy: policy.Result{Allowed: true, RequiresApproval: true},
	})

	_, err := svc.AdvanceProposal("prop-1", triage.StatusApproved, "agent")
	if err == nil || !strings.Contains(err.Error(), "needs_approval") {
		t.Fatalf("err = %v, want needs_approval gate", err)
	}

	if _, err := approvals.Submit(governance.Approval{
		TargetType:               "proposal",
		TargetID:                 "prop-1",
		ApprovedBy:               "reviewer@example.com",
		RiskAcknowledged:         true,
		RollbackPlanAcknowledged: true,
	}); err != nil {
		t.Fatal(err)
	}

	p, err := svc.AdvanceProposal("prop-1", triage.StatusApproved, "reviewer@example.com")
	if err != nil {
		t.Fatalf("AdvanceProposal after approval: %v", err)
	}
	if p.Status != triage.StatusApproved {
		t.Errorf("Status = %s, want approved", p.Status)
	}
}

func TestAdvance_NoApprovalNeededWhenPolicySaysSo(t *testing.T) {
	svc, _, st := testService(t)
	seedProposal(t, st, triage.Proposal{
		Policy: policy.Result{Allowed: true, RequiresApproval: false},
	})

	if _, err := svc.AdvanceProposal("prop-1", triage.StatusApproved, "agent"); err != nil {
		t.Fatalf("AdvanceProposal: %v", err)
	}
}

// --- Lifecycle side records ---

func TestAdvance_ApprovedOpensPlan(t *testing.T) {
	svc, _, st := testService(t)
	seedProposal(t, st, triage.Proposal{
		Title:              "drain worker pool on shutdown",
		AcceptanceCriteria: []string{"existing test suite passes"},
	})

	if _, err := svc.AdvanceProposal("prop-1", triage.StatusApproved, "agent"); err != nil {
		t.Fatal(err)
	}

	plans, err := st.List(store.Plans)
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 1 {
		t.Fatalf("got %d plans, want 1", len(plans))
	}
}

func TestAdvance_PROpenRecordsPR(t *testing.T) {
	svc, _, st := testService(t)
	seedProposal(t, st, triage.Proposal{Status: triage.StatusInProgress, Title: "x"})

	if _, err := svc.AdvanceProposal("prop-1", triage.StatusPROpen, "agent"); err != nil {
		t.Fatal(err)
	}

	prs, err := st.List(store.PRs)
	if err != nil {
		t.Fatal(err)
	}
	if len(prs) != 1 {
		t.Fatalf("got %d pr records, want 1", len(prs))
	}
}

func TestAdvance_MergedUpdatesScorecard(t *testing.T) {
	svc, _, st := testService(t)
	seedProposal(t, st, triage.Proposal{
		Status: triage.StatusTesting,
		Impact: findings.ImpactVector{Reliability: 0.5, Security: 0.2, DevEx: -0.1},
	})

	if _, err := svc.AdvanceProposal("prop-1", triage.StatusMerged, "agent"); err != nil {
		t.Fatal(err)
	}

	sc, err := svc.Scorecard("payments-service")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Reliability != 55 {
		t.Errorf("Reliability = %v, want 55 (baseline 50 + 0.5×10)", sc.Reliability)
	}
	if sc.DevEx != 49 {
		t.Errorf("DevEx = %v, want 49", sc.DevEx)
	}
}

func TestScorecard_BaselineWithoutMerges(t *testing.T) {
	svc, _, _ := testService(t)

	sc, err := svc.Scorecard("never-touched")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Reliability != scorecardBaseline || sc.Security != scorecardBaseline {
		t.Errorf("Scorecard = %+v, want all-baseline", sc)
	}
}

// --- Guards ---

func TestAdvance_BlockedProposalOnlyRejectable(t *testing.T) {
	svc, _, st := testService(t)
	seedProposal(t, st, triage.Proposal{Blocked: true, BlockReason: "no-op"})

	if _, err := svc.AdvanceProposal("prop-1", triage.StatusApproved, "agent"); err == nil {
		t.Error("blocked proposal advanced, want rejection-only")
	}
	if _, err := svc.AdvanceProposal("prop-1", triage.StatusRejected, "agent"); err != nil {
		t.Errorf("rejecting a blocked proposal: %v", err)
	}
}

func TestAdvance_UnknownProposalCarriesRecoveryHint(t *testing.T) {
	svc, _, _ := testService(t)

	_, err := svc.AdvanceProposal("ghost", triage.StatusApproved, "agent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "list proposals") {
		t.Error("not-found error carries no recovery suggestion")
	}
}

// --- Listing ---

func TestListProposals_FiltersByTargetAndStatus(t *testing.T) {
	svc, _, st := testService(t)
	seedProposal(t, st, triage.Proposal{ID: "prop-1", TargetID: "a", Status: triage.StatusTriaged})
	seedProposal(t, st, triage.Proposal{ID: "prop-2", TargetID: "a", Status: triage.StatusMerged})
	seedProposal(t, st, triage.Proposal{ID: "prop-3", TargetID: "b", Status: triage.StatusTriaged})

	got, err := svc.ListProposals("a", triage.StatusTriaged)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "prop-1" {
		t.Errorf("ListProposals = %+v, want just prop-1", got)
	}

	all, err := svc.ListProposals("", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered ListProposals = %d, want 3", len(all))
	}
}
