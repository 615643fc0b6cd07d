package governance

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/policy"
	"github.com/HendryAvila/steward/internal/store"
)

// Rules persists the policy rule set. The built-in rules are seeded on
// first read; after that the stored copies are authoritative, so
// enabling or disabling a rule survives restarts.
type Rules struct {
	store *store.Store
	audit audit.Sink
}

// NewRules wires the rule service.
func NewRules(st *store.Store, sink audit.Sink) *Rules {
	return &Rules{store: st, audit: sink}
}

// List returns all rules, seeding the defaults when the collection is
// empty.
func (r *Rules) List() ([]policy.Rule, error) {
	docs, err := r.store.List(store.Policies)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return r.seed()
	}

	rules := make([]policy.Rule, 0, len(docs))
	for _, d := range docs {
		var rule policy.Rule
		if err := json.Unmarshal(d.Data, &rule); err != nil {
			return nil, fmt.Errorf("decoding rule %s: %w", d.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// SetEnabled flips one rule on or off.
func (r *Rules) SetEnabled(ruleID string, enabled bool, actor string) (*policy.Rule, error) {
	// Make sure defaults exist before addressing a rule by id.
	if _, err := r.List(); err != nil {
		return nil, err
	}

	var rule policy.Rule
	version, err := r.store.Get(store.Policies, ruleID, &rule)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: rule %q unknown — list rules to see valid ids", store.ErrNotFound, ruleID)
		}
		return nil, err
	}

	rule.Enabled = enabled
	if err := r.store.Update(store.Policies, ruleID, version, rule); err != nil {
		return nil, fmt.Errorf("saving rule %s: %w", ruleID, err)
	}

	r.audit.Record(audit.Event{
		Action:     "policy_rule_toggled",
		Actor:      actor,
		TargetType: "rule",
		TargetID:   ruleID,
		Details:    map[string]string{"enabled": fmt.Sprintf("%t", enabled)},
	})
	return &rule, nil
}

func (r *Rules) seed() ([]policy.Rule, error) {
	defaults := policy.DefaultRules()
	for _, rule := range defaults {
		if err := r.store.Insert(store.Policies, rule.ID, rule); err != nil && !errors.Is(err, store.ErrExists) {
			return nil, fmt.Errorf("seeding rule %s: %w", rule.ID, err)
		}
	}
	return defaults, nil
}
