// Package decisions maintains Architecture Decision Records and the
// anti-oscillation protocol built on them. An accepted ADR protects its
// topic with a cooldown window and a confidence margin: proposals that
// would reverse it are blocked until time passes or a clearly more
// confident challenger arrives and supersedes it explicitly.
package decisions

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/config"
	"github.com/HendryAvila/steward/internal/store"
)

// timeNow is swapped in tests for deterministic cooldown math.
var timeNow = time.Now

// --- ADR model ---

// Status tracks an ADR's lifecycle: accepted → superseded.
type Status string

const (
	StatusAccepted   Status = "accepted"
	StatusSuperseded Status = "superseded"
)

// ADR is a binding decision. Apart from the supersession fields it is
// immutable once recorded.
type ADR struct {
	ID                   string  `json:"id"`
	TargetID             string  `json:"target_id"`
	Title                string  `json:"title"`
	Context              string  `json:"context"`
	Decision             string  `json:"decision"`
	Rationale            string  `json:"rationale"`
	AlternativesRejected string  `json:"alternatives_rejected,omitempty"`
	Confidence           float64 `json:"confidence"`
	CooldownUntil        string  `json:"cooldown_until"`
	MinConfidenceMargin  float64 `json:"min_confidence_margin"`
	MinConfirmations     int     `json:"min_confirmations"`
	// Confirmations counts consecutive challenger confirmations; reset
	// whenever a challenger fails the margin.
	Confirmations int    `json:"confirmations"`
	Status        Status `json:"status"`
	// SupersededBy is a weak back-reference: an identifier only, never
	// an owning pointer. The superseding ADR does not control this
	// record's lifetime.
	SupersededBy string `json:"superseded_by,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// RecordParams is the input for recording a new ADR.
type RecordParams struct {
	TargetID             string
	Title                string
	Context              string
	Decision             string
	Rationale            string
	AlternativesRejected string
	Confidence           float64
	// CooldownDays, MinConfidenceMargin, MinConfirmations fall back to
	// configured defaults when zero.
	CooldownDays        int
	MinConfidenceMargin float64
	MinConfirmations    int
	Actor               string
}

// Validate rejects malformed recording input.
func (p RecordParams) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("adr missing title")
	}
	if p.Decision == "" {
		return fmt.Errorf("adr missing decision")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("adr confidence %v out of range [0, 1]", p.Confidence)
	}
	return nil
}

// --- Engine ---

// Engine records, supersedes, and evaluates ADRs.
type Engine struct {
	cfg   *config.Config
	store *store.Store
	audit audit.Sink
}

// NewEngine wires the decision engine.
func NewEngine(cfg *config.Config, st *store.Store, sink audit.Sink) *Engine {
	return &Engine{cfg: cfg, store: st, audit: sink}
}

// Record persists a new accepted ADR and audits the recording.
func (e *Engine) Record(p RecordParams) (*ADR, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cooldownDays := p.CooldownDays
	if cooldownDays <= 0 {
		cooldownDays = e.cfg.Decisions.DefaultCooldownDays
	}
	margin := p.MinConfidenceMargin
	if margin <= 0 {
		margin = e.cfg.Decisions.DefaultMinMargin
	}
	confirmations := p.MinConfirmations
	if confirmations <= 0 {
		confirmations = e.cfg.Decisions.DefaultMinConfirmations
	}

	now := timeNow().UTC()
	adr := &ADR{
		ID:                   "adr-" + uuid.NewString(),
		TargetID:             p.TargetID,
		Title:                p.Title,
		Context:              p.Context,
		Decision:             p.Decision,
		Rationale:            p.Rationale,
		AlternativesRejected: p.AlternativesRejected,
		Confidence:           p.Confidence,
		CooldownUntil:        now.AddDate(0, 0, cooldownDays).Format(time.RFC3339),
		MinConfidenceMargin:  margin,
		MinConfirmations:     confirmations,
		Status:               StatusAccepted,
		CreatedAt:            now.Format(time.RFC3339),
	}

	if err := e.store.Insert(store.Decisions, adr.ID, adr); err != nil {
		return nil, fmt.Errorf("recording adr: %w", err)
	}

	e.audit.Record(audit.Event{
		Action:     "adr_recorded",
		Actor:      p.Actor,
		TargetType: "adr",
		TargetID:   adr.ID,
		Details:    map[string]string{"title": adr.Title, "target": adr.TargetID},
	})
	return adr, nil
}

// Supersede records a replacement ADR and retires the old one. The old
// record's status flips accepted → superseded via a compare-and-swap
// update; the record itself is never deleted. While the old ADR's
// cooldown is still running, the challenger must both clear the
// confidence margin and have accumulated the required consecutive
// confirmations.
func (e *Engine) Supersede(oldID string, p RecordParams) (*ADR, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var old ADR
	version, err := e.store.Get(store.Decisions, oldID, &old)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("adr %q not found: list decisions to find the right id", oldID)
		}
		return nil, fmt.Errorf("loading adr %s: %w", oldID, err)
	}
	if old.Status != StatusAccepted {
		return nil, fmt.Errorf("adr %s is not accepted (status: %s) and cannot be superseded", oldID, old.Status)
	}

	if e.inCooldown(&old) {
		required := old.Confidence + old.MinConfidenceMargin
		if p.Confidence < required {
			return nil, fmt.Errorf(
				"adr %s is within cooldown: challenger confidence %.2f below required %.2f (margin %.2f)",
				oldID, p.Confidence, required, old.MinConfidenceMargin,
			)
		}
		if old.Confirmations < old.MinConfirmations {
			return nil, fmt.Errorf(
				"adr %s needs %d consecutive confirmations before supersession (%d recorded)",
				oldID, old.MinConfirmations, old.Confirmations,
			)
		}
	}

	replacement, err := e.Record(p)
	if err != nil {
		return nil, err
	}

	old.Status = StatusSuperseded
	old.SupersededBy = replacement.ID
	if err := e.store.Update(store.Decisions, oldID, version, &old); err != nil {
		return nil, fmt.Errorf("retiring adr %s: %w", oldID, err)
	}

	e.audit.Record(audit.Event{
		Action:     "adr_superseded",
		Actor:      p.Actor,
		TargetType: "adr",
		TargetID:   oldID,
		Details:    map[string]string{"superseded_by": replacement.ID},
	})
	return replacement, nil
}

// Confirm records one consecutive challenger confirmation against an
// accepted ADR. Evaluate resets the counter whenever a challenger fails
// the margin, so only an unbroken run of confirmations reaches
// MinConfirmations.
func (e *Engine) Confirm(adrID string) (int, error) {
	var adr ADR
	version, err := e.store.Get(store.Decisions, adrID, &adr)
	if err != nil {
		return 0, err
	}
	if adr.Status != StatusAccepted {
		return 0, fmt.Errorf("adr %s is not accepted (status: %s)", adrID, adr.Status)
	}
	adr.Confirmations++
	if err := e.store.Update(store.Decisions, adrID, version, &adr); err != nil {
		return 0, err
	}
	return adr.Confirmations, nil
}

// ResetConfirmations zeroes the consecutive-confirmation counter.
func (e *Engine) ResetConfirmations(adrID string) error {
	var adr ADR
	version, err := e.store.Get(store.Decisions, adrID, &adr)
	if err != nil {
		return err
	}
	if adr.Confirmations == 0 {
		return nil
	}
	adr.Confirmations = 0
	return e.store.Update(store.Decisions, adrID, version, &adr)
}

// Get loads one ADR by id.
func (e *Engine) Get(adrID string) (*ADR, error) {
	var adr ADR
	if _, err := e.store.Get(store.Decisions, adrID, &adr); err != nil {
		return nil, err
	}
	return &adr, nil
}

// inCooldown reports whether the ADR's cooldown window is still open.
func (e *Engine) inCooldown(adr *ADR) bool {
	until, err := time.Parse(time.RFC3339, adr.CooldownUntil)
	if err != nil {
		// Unparseable cooldown protects forever rather than never.
		return true
	}
	return timeNow().UTC().Before(until)
}
