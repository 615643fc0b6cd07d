// Package config holds every tunable the engines read: scoring weights,
// similarity thresholds, cooldown defaults, budget windows, and the
// self-target alias table.
//
// The Config struct is constructed once in the composition root and passed
// by reference into each engine. There are no package-level singletons —
// two servers in one process would get two independent configurations.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the optional YAML overlay read next to the data directory.
const ConfigFile = "steward.yaml"

// CanonicalSelfTarget is the identifier every self-target alias resolves to.
const CanonicalSelfTarget = "steward-core"

// Consensus controls cross-perspective finding merging.
type Consensus struct {
	// SimilarityThreshold is the minimum keyword-Jaccard overlap between
	// two claims for them to merge into one consensus finding.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// EvidenceBoostPerItem is added to combined confidence per evidence
	// item, scaled by evidence quality.
	EvidenceBoostPerItem float64 `yaml:"evidence_boost_per_item"`
	// MaxEvidenceBoost caps the total confidence boost from evidence.
	MaxEvidenceBoost float64 `yaml:"max_evidence_boost"`
}

// ImpactWeights are the per-dimension weights in priority scoring.
// They describe how much each impact dimension matters for a target.
type ImpactWeights struct {
	Security    float64 `yaml:"security"`
	Reliability float64 `yaml:"reliability"`
	DevEx       float64 `yaml:"devex"`
	Performance float64 `yaml:"performance"`
}

// Triage controls escalation, clustering, and proposal scoring.
type Triage struct {
	// EscalationAgreement and EscalationConfidence jointly gate the
	// human-escalation filter: a finding below BOTH thresholds is never
	// turned into a proposal automatically.
	EscalationAgreement  float64 `yaml:"escalation_agreement"`
	EscalationConfidence float64 `yaml:"escalation_confidence"`
	// ClusterSimilarity is the pairwise keyword-Jaccard threshold for
	// sub-clustering within a category bucket. Tuned empirically; kept
	// configurable because no principled derivation of the value exists.
	ClusterSimilarity float64 `yaml:"cluster_similarity"`
	// Weights is the default impact weighting; a target can override it.
	Weights ImpactWeights `yaml:"weights"`
	// AgreementBonus and ConfidenceBonus scale the respective inputs
	// into the priority score.
	AgreementBonus  float64 `yaml:"agreement_bonus"`
	ConfidenceBonus float64 `yaml:"confidence_bonus"`
	// RiskPenalty is subtracted from priority per risk level.
	RiskPenalty map[string]float64 `yaml:"risk_penalty"`
	// RiskDiscount multiplies raw impact magnitude per risk level when
	// computing risk-adjusted impact.
	RiskDiscount map[string]float64 `yaml:"risk_discount"`
}

// Decisions controls ADR anti-oscillation defaults.
type Decisions struct {
	// TopicSimilarity is the claim-to-decision-text overlap above which a
	// proposal is considered to touch an existing ADR's topic.
	TopicSimilarity float64 `yaml:"topic_similarity"`
	// DefaultCooldownDays applies when an ADR is recorded without an
	// explicit cooldown.
	DefaultCooldownDays int `yaml:"default_cooldown_days"`
	// DefaultMinMargin is the confidence margin a challenger must clear.
	DefaultMinMargin float64 `yaml:"default_min_margin"`
	// DefaultMinConfirmations is how many consecutive confirmations a
	// challenger needs before it may supersede.
	DefaultMinConfirmations int `yaml:"default_min_confirmations"`
}

// Policy controls target-level governance defaults.
type Policy struct {
	// DefaultAutonomy applies to targets registered without one.
	DefaultAutonomy string `yaml:"default_autonomy"`
	// DefaultChangeBudget is the per-window proposal budget.
	DefaultChangeBudget int `yaml:"default_change_budget"`
	// DefaultMaxChangeSize is the estimated-size ceiling per proposal.
	DefaultMaxChangeSize int `yaml:"default_max_change_size"`
	// DefaultCategories are the categories allowed when unset.
	DefaultCategories []string `yaml:"default_categories"`
}

// Config is the root configuration, passed by reference into every engine.
type Config struct {
	// DataDir holds the SQLite database and the audit log.
	DataDir string `yaml:"data_dir"`

	Consensus Consensus `yaml:"consensus"`
	Triage    Triage    `yaml:"triage"`
	Decisions Decisions `yaml:"decisions"`
	Policy    Policy    `yaml:"policy"`

	// SelfAliases resolve to CanonicalSelfTarget during normalization.
	SelfAliases []string `yaml:"self_aliases"`
	// SelfSourcePath is the default source location injected into
	// pipeline context for the canonical self target.
	SelfSourcePath string `yaml:"self_source_path"`
	// SelfToolInventory is the MCP tool surface injected as default
	// context for the canonical self target.
	SelfToolInventory []string `yaml:"self_tool_inventory"`
}

// Default returns the baseline configuration. Every engine tunable has a
// working default so a missing steward.yaml is not an error.
func Default() *Config {
	return &Config{
		DataDir: ".steward",
		Consensus: Consensus{
			SimilarityThreshold:  0.3,
			EvidenceBoostPerItem: 0.02,
			MaxEvidenceBoost:     0.1,
		},
		Triage: Triage{
			EscalationAgreement:  0.33,
			EscalationConfidence: 0.5,
			ClusterSimilarity:    0.15,
			Weights: ImpactWeights{
				Security:    0.30,
				Reliability: 0.25,
				DevEx:       0.20,
				Performance: 0.15,
			},
			AgreementBonus:  0.2,
			ConfidenceBonus: 0.15,
			RiskPenalty: map[string]float64{
				"low":      0,
				"medium":   0.05,
				"high":     0.10,
				"critical": 0.15,
			},
			RiskDiscount: map[string]float64{
				"low":      1.0,
				"medium":   0.8,
				"high":     0.6,
				"critical": 0.4,
			},
		},
		Decisions: Decisions{
			TopicSimilarity:         0.3,
			DefaultCooldownDays:     14,
			DefaultMinMargin:        0.15,
			DefaultMinConfirmations: 2,
		},
		Policy: Policy{
			DefaultAutonomy:      "pr_only",
			DefaultChangeBudget:  5,
			DefaultMaxChangeSize: 400,
			DefaultCategories: []string{
				"behavioral", "refactor", "docs", "prompt_only", "security", "dependency",
			},
		},
		SelfAliases: []string{
			"self", "steward", "this project", "own codebase", "myself",
		},
		SelfSourcePath: ".",
		SelfToolInventory: []string{
			"steward_ingest_findings", "steward_pipeline_start",
			"steward_pipeline_advance", "steward_pipeline_status",
			"steward_approve", "steward_adr", "steward_proposals",
			"steward_policy", "steward_target",
		},
	}
}

// Load returns Default overlaid with the YAML file at path, if it exists.
// A missing file returns the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// IsSelfAlias reports whether target names the system's own codebase.
func (c *Config) IsSelfAlias(target string) bool {
	if target == CanonicalSelfTarget {
		return true
	}
	for _, alias := range c.SelfAliases {
		if target == alias {
			return true
		}
	}
	return false
}
