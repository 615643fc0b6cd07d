package findings

import (
	"strings"
	"testing"
)

func validInput() FindingInput {
	r, s, d, p := 0.3, 0.8, 0.1, -0.2
	return FindingInput{
		Claim:          "connection pool exhausts under load",
		Recommendation: "add a bounded pool with backpressure",
		Confidence:     0.75,
		ExpectedImpact: &ImpactInput{Reliability: &r, Security: &s, DevEx: &d, Performance: &p},
		Risk:           Risk{Level: RiskMedium, Notes: "touches the request path"},
		Evidence:       []Evidence{{Type: "profile", Value: "pprof 2026-02-18", Quality: "A"}},
	}
}

// --- FindingInput.ToFinding ---

func TestToFinding_Valid(t *testing.T) {
	f, err := validInput().ToFinding("f-1", "payments-service", "reliability")
	if err != nil {
		t.Fatalf("ToFinding: %v", err)
	}
	if f.ID != "f-1" || f.TargetID != "payments-service" || f.Perspective != "reliability" {
		t.Errorf("identity fields = %+v", f)
	}
	if f.ExpectedImpact.Security != 0.8 {
		t.Errorf("Security = %v, want 0.8", f.ExpectedImpact.Security)
	}
	if f.CreatedAt == "" {
		t.Error("CreatedAt not stamped")
	}
}

func TestToFinding_MissingImpactComponent(t *testing.T) {
	in := validInput()
	in.ExpectedImpact.DevEx = nil

	_, err := in.ToFinding("f-1", "t", "security")
	if err == nil || !strings.Contains(err.Error(), "devex") {
		t.Errorf("err = %v, want missing devex component", err)
	}
}

func TestToFinding_MissingImpactVector(t *testing.T) {
	in := validInput()
	in.ExpectedImpact = nil

	if _, err := in.ToFinding("f-1", "t", "security"); err == nil {
		t.Error("expected error for missing expected_impact")
	}
}

func TestToFinding_ImpactOutOfRange(t *testing.T) {
	in := validInput()
	bad := 1.5
	in.ExpectedImpact.Security = &bad

	if _, err := in.ToFinding("f-1", "t", "security"); err == nil {
		t.Error("expected error for impact out of [-1, 1]")
	}
}

func TestToFinding_InvalidRiskLevel(t *testing.T) {
	in := validInput()
	in.Risk.Level = RiskLevel("catastrophic")

	if _, err := in.ToFinding("f-1", "t", "security"); err == nil {
		t.Error("expected error for unknown risk level")
	}
}

func TestToFinding_InvalidEvidenceQuality(t *testing.T) {
	in := validInput()
	in.Evidence = append(in.Evidence, Evidence{Type: "log", Value: "x", Quality: "D"})

	if _, err := in.ToFinding("f-1", "t", "security"); err == nil {
		t.Error("expected error for evidence quality outside A/B/C")
	}
}

// --- Impact vector ---

func TestMagnitude_MeanOfAbsoluteComponents(t *testing.T) {
	v := ImpactVector{Reliability: 0.4, Security: -0.4, DevEx: 0, Performance: 0.8}
	if got := v.Magnitude(); got != 0.4 {
		t.Errorf("Magnitude = %v, want 0.4", got)
	}
}

func TestMagnitude_ZeroVector(t *testing.T) {
	if got := (ImpactVector{}).Magnitude(); got != 0 {
		t.Errorf("Magnitude = %v, want 0", got)
	}
}

// --- Risk ---

func TestMaxRisk_Ordering(t *testing.T) {
	if got := MaxRisk(RiskMedium, RiskCritical); got != RiskCritical {
		t.Errorf("MaxRisk = %s, want critical", got)
	}
	if got := MaxRisk(RiskHigh, RiskLow); got != RiskHigh {
		t.Errorf("MaxRisk = %s, want high", got)
	}
}
