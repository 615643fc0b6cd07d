package governance

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/config"
	"github.com/HendryAvila/steward/internal/policy"
	"github.com/HendryAvila/steward/internal/store"
)

// Target is a project under improvement, carrying its governance
// configuration. The special self target is created implicitly by
// normalization; everything else is registered explicitly.
type Target struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SourcePath  string `json:"source_path,omitempty"`
	// ToolInventory lists the MCP tools available against this target;
	// injected for the self target, empty elsewhere unless registered.
	ToolInventory []string            `json:"tool_inventory,omitempty"`
	Config        policy.TargetConfig `json:"config"`
	CreatedAt     string              `json:"created_at"`
}

// Registry manages target records.
type Registry struct {
	cfg   *config.Config
	store *store.Store
	audit audit.Sink
}

// NewRegistry wires the target registry.
func NewRegistry(cfg *config.Config, st *store.Store, sink audit.Sink) *Registry {
	return &Registry{cfg: cfg, store: st, audit: sink}
}

// Normalize resolves self-target aliases to the canonical identifier and
// lazily creates the self target with injected default context. Other
// identifiers pass through untouched.
func (r *Registry) Normalize(targetID string) (string, error) {
	if !r.cfg.IsSelfAlias(targetID) {
		return targetID, nil
	}

	_, err := r.Get(config.CanonicalSelfTarget)
	if err == nil {
		return config.CanonicalSelfTarget, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	// First reference to the self target: create it with default
	// context. Only this identifier gets automatic registration.
	self := Target{
		ID:            config.CanonicalSelfTarget,
		Name:          "steward",
		Description:   "the system's own codebase",
		SourcePath:    r.cfg.SelfSourcePath,
		ToolInventory: r.cfg.SelfToolInventory,
		Config: policy.TargetConfig{
			TargetID:          config.CanonicalSelfTarget,
			Autonomy:          policy.AutonomyLevel(r.cfg.Policy.DefaultAutonomy),
			ChangeBudget:      r.cfg.Policy.DefaultChangeBudget,
			AllowedCategories: r.cfg.Policy.DefaultCategories,
			MaxChangeSize:     r.cfg.Policy.DefaultMaxChangeSize,
		},
		CreatedAt: timeNow().UTC().Format(time.RFC3339),
	}
	if err := r.store.Insert(store.Targets, self.ID, self); err != nil && !errors.Is(err, store.ErrExists) {
		return "", fmt.Errorf("registering self target: %w", err)
	}
	return config.CanonicalSelfTarget, nil
}

// Register creates a target, filling unset governance fields from the
// configured defaults.
func (r *Registry) Register(t Target) (*Target, error) {
	if t.ID == "" {
		return nil, fmt.Errorf("target missing id")
	}
	if t.Config.Autonomy == "" {
		t.Config.Autonomy = policy.AutonomyLevel(r.cfg.Policy.DefaultAutonomy)
	}
	if err := policy.ValidateAutonomy(t.Config.Autonomy); err != nil {
		return nil, err
	}
	if t.Config.ChangeBudget == 0 {
		t.Config.ChangeBudget = r.cfg.Policy.DefaultChangeBudget
	}
	if len(t.Config.AllowedCategories) == 0 {
		t.Config.AllowedCategories = r.cfg.Policy.DefaultCategories
	}
	if t.Config.MaxChangeSize == 0 {
		t.Config.MaxChangeSize = r.cfg.Policy.DefaultMaxChangeSize
	}
	t.Config.TargetID = t.ID
	t.CreatedAt = timeNow().UTC().Format(time.RFC3339)

	if err := r.store.Insert(store.Targets, t.ID, t); err != nil {
		return nil, fmt.Errorf("registering target %s: %w", t.ID, err)
	}
	r.audit.Record(audit.Event{
		Action:     "target_registered",
		Actor:      "governance",
		TargetType: "target",
		TargetID:   t.ID,
		Details:    map[string]string{"autonomy": string(t.Config.Autonomy)},
	})
	return &t, nil
}

// Get loads one target; unknown ids come back with a recovery hint.
func (r *Registry) Get(targetID string) (*Target, error) {
	var t Target
	if _, err := r.store.Get(store.Targets, targetID, &t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: target %q unknown — register it first or list targets", store.ErrNotFound, targetID)
		}
		return nil, err
	}
	return &t, nil
}

// List returns all registered targets.
func (r *Registry) List() ([]Target, error) {
	docs, err := r.store.List(store.Targets)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(docs))
	for _, d := range docs {
		var t Target
		if err := json.Unmarshal(d.Data, &t); err != nil {
			return nil, fmt.Errorf("decoding target %s: %w", d.ID, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}
