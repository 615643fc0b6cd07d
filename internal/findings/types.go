// Package findings defines the evidence model — findings supplied by
// analysis perspectives — and the consensus engine that merges them
// across perspectives into agreement-scored consensus findings.
//
// Findings arrive as structured input from the calling agent; this
// package never produces analysis itself, it only validates, stores
// shapes, and aggregates.
package findings

import (
	"fmt"
	"math"
	"time"
)

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

// --- Risk level enum ---

// RiskLevel grades the blast radius of acting on a finding.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRank orders risk levels for max-risk merging.
var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// ValidateRiskLevel returns an error if the level is not recognized.
func ValidateRiskLevel(r RiskLevel) error {
	if _, ok := riskRank[r]; !ok {
		return fmt.Errorf("invalid risk level %q: must be one of: low, medium, high, critical", r)
	}
	return nil
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}

// Risk pairs a level with free-form reviewer notes.
type Risk struct {
	Level RiskLevel `json:"level"`
	Notes string    `json:"notes,omitempty"`
}

// --- Evidence ---

// evidence quality grades: A (strong), B (moderate), C (weak).
var evidenceQualityWeight = map[string]float64{
	"A": 1.0,
	"B": 0.6,
	"C": 0.3,
}

// Evidence is one supporting item attached to a finding.
type Evidence struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Quality string `json:"quality"`
}

// Validate checks the evidence shape.
func (e Evidence) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("evidence missing type")
	}
	if _, ok := evidenceQualityWeight[e.Quality]; !ok {
		return fmt.Errorf("invalid evidence quality %q: must be A, B, or C", e.Quality)
	}
	return nil
}

// --- Impact vector ---

// ImpactVector holds four independent expected-impact scores, each in
// [-1, +1]. Negative values mean the change is expected to hurt that
// dimension.
type ImpactVector struct {
	Reliability float64 `json:"reliability"`
	Security    float64 `json:"security"`
	DevEx       float64 `json:"devex"`
	Performance float64 `json:"performance"`
}

// Validate checks every component is within [-1, 1].
func (v ImpactVector) Validate() error {
	for name, val := range map[string]float64{
		"reliability": v.Reliability,
		"security":    v.Security,
		"devex":       v.DevEx,
		"performance": v.Performance,
	} {
		if val < -1 || val > 1 {
			return fmt.Errorf("impact component %s = %v out of range [-1, 1]", name, val)
		}
	}
	return nil
}

// Magnitude is the mean absolute impact across the four dimensions.
// Zero magnitude means the finding proposes no measurable change.
func (v ImpactVector) Magnitude() float64 {
	return (math.Abs(v.Reliability) + math.Abs(v.Security) +
		math.Abs(v.DevEx) + math.Abs(v.Performance)) / 4
}

// meanImpact averages impact vectors component-wise.
func meanImpact(vs []ImpactVector) ImpactVector {
	if len(vs) == 0 {
		return ImpactVector{}
	}
	var sum ImpactVector
	for _, v := range vs {
		sum.Reliability += v.Reliability
		sum.Security += v.Security
		sum.DevEx += v.DevEx
		sum.Performance += v.Performance
	}
	n := float64(len(vs))
	return ImpactVector{
		Reliability: sum.Reliability / n,
		Security:    sum.Security / n,
		DevEx:       sum.DevEx / n,
		Performance: sum.Performance / n,
	}
}

// --- Finding ---

// Finding is one claim + recommendation from a single analysis
// perspective. Immutable once stored.
type Finding struct {
	ID             string       `json:"id"`
	TargetID       string       `json:"target_id"`
	Perspective    string       `json:"perspective"`
	Claim          string       `json:"claim"`
	Recommendation string       `json:"recommendation"`
	Confidence     float64      `json:"confidence"`
	ExpectedImpact ImpactVector `json:"expected_impact"`
	Risk           Risk         `json:"risk"`
	Evidence       []Evidence   `json:"evidence"`
	CreatedAt      string       `json:"created_at"`
}

// Validate rejects malformed findings before any state mutation.
func (f Finding) Validate() error {
	if f.Claim == "" {
		return fmt.Errorf("finding missing claim")
	}
	if f.Perspective == "" {
		return fmt.Errorf("finding missing perspective")
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", f.Confidence)
	}
	if err := f.ExpectedImpact.Validate(); err != nil {
		return err
	}
	if err := ValidateRiskLevel(f.Risk.Level); err != nil {
		return err
	}
	for i, e := range f.Evidence {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("evidence[%d]: %w", i, err)
		}
	}
	return nil
}

// --- Ingestion input ---

// ImpactInput uses pointers so a missing component is distinguishable
// from an explicit zero: the wire contract requires all four fields.
type ImpactInput struct {
	Reliability *float64 `json:"reliability"`
	Security    *float64 `json:"security"`
	DevEx       *float64 `json:"devex"`
	Performance *float64 `json:"performance"`
}

// FindingInput is the wire shape the calling agent submits.
type FindingInput struct {
	Claim          string       `json:"claim"`
	Recommendation string       `json:"recommendation"`
	Confidence     float64      `json:"confidence"`
	ExpectedImpact *ImpactInput `json:"expected_impact"`
	Risk           Risk         `json:"risk"`
	Evidence       []Evidence   `json:"evidence"`
}

// ToFinding validates the wire shape and converts it into a Finding.
// The id is assigned by the caller (storage layer).
func (in FindingInput) ToFinding(id, targetID, perspective string) (Finding, error) {
	if in.ExpectedImpact == nil {
		return Finding{}, fmt.Errorf("expected_impact is required")
	}
	for name, p := range map[string]*float64{
		"reliability": in.ExpectedImpact.Reliability,
		"security":    in.ExpectedImpact.Security,
		"devex":       in.ExpectedImpact.DevEx,
		"performance": in.ExpectedImpact.Performance,
	} {
		if p == nil {
			return Finding{}, fmt.Errorf("expected_impact.%s is required", name)
		}
	}

	f := Finding{
		ID:             id,
		TargetID:       targetID,
		Perspective:    perspective,
		Claim:          in.Claim,
		Recommendation: in.Recommendation,
		Confidence:     in.Confidence,
		ExpectedImpact: ImpactVector{
			Reliability: *in.ExpectedImpact.Reliability,
			Security:    *in.ExpectedImpact.Security,
			DevEx:       *in.ExpectedImpact.DevEx,
			Performance: *in.ExpectedImpact.Performance,
		},
		Risk:      in.Risk,
		Evidence:  in.Evidence,
		CreatedAt: timeNow().UTC().Format(time.RFC3339),
	}
	if err := f.Validate(); err != nil {
		return Finding{}, err
	}
	return f, nil
}

// --- Consensus finding ---

// ConsensusFinding is a finding merged across perspectives. Created once
// per consensus computation; never mutated.
type ConsensusFinding struct {
	ID                     string       `json:"id"`
	TargetID               string       `json:"target_id"`
	Claim                  string       `json:"claim"`
	Recommendation         string       `json:"recommendation"`
	SupportingPerspectives []string     `json:"supporting_perspectives"`
	AgreementScore         float64      `json:"agreement_score"`
	CombinedConfidence     float64      `json:"combined_confidence"`
	Impact                 ImpactVector `json:"impact"`
	Evidence               []Evidence   `json:"evidence"`
	MaxRisk                RiskLevel    `json:"max_risk"`
	MemberIDs              []string     `json:"member_ids"`
	CreatedAt              string       `json:"created_at"`
}
