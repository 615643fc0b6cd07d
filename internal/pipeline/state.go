package pipeline

// --- Pipeline status ---

// Status is a pipeline's lifecycle position.
type Status string

const (
	StatusRunning      Status = "running"
	StatusWaitingAgent Status = "waiting_agent"
	StatusWaitingUser  Status = "waiting_user"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
	StatusCancelled    Status = "cancelled"
)

// terminal statuses accept no further steps; the state stays queryable.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// --- Per-overlay payloads ---

// StepData carries the accumulated per-overlay payloads. Each overlay
// writes only its own slot, selected by the overlay the pipeline is in,
// so the state stays typed across the machine's heterogeneous steps.
type StepData struct {
	Research   *ResearchData   `json:"research,omitempty"`
	Classify   *ClassifyData   `json:"classify,omitempty"`
	Deliberate *DeliberateData `json:"deliberate,omitempty"`
	Triage     *TriageData     `json:"triage,omitempty"`
	Align      *AlignData      `json:"align,omitempty"`
	Consult    *ConsultData    `json:"consult,omitempty"`
}

// ResearchData tracks the per-perspective research loop and the
// consensus it produced.
type ResearchData struct {
	Perspectives []string `json:"perspectives"`
	Completed    []string `json:"completed"`
	ConsensusIDs []string `json:"consensus_ids,omitempty"`
}

// ClassifyData records the classification outcome that drove the
// overlay transition.
type ClassifyData struct {
	NeedsDeliberation bool   `json:"needs_deliberation"`
	Reason            string `json:"reason"`
}

// SourceOutcome is the result of consulting one deliberation source.
type SourceOutcome struct {
	Source   string `json:"source"`
	Status   string `json:"status"` // ok | manual_input_required
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DeliberateData holds the multi-source deliberation session.
type DeliberateData struct {
	Outcomes  []SourceOutcome `json:"outcomes"`
	Agreement float64         `json:"agreement"`
}

// TriageData records what triage produced.
type TriageData struct {
	ProposalIDs     []string `json:"proposal_ids"`
	BlockedIDs      []string `json:"blocked_ids,omitempty"`
	EscalationIDs   []string `json:"escalation_ids,omitempty"`
	BudgetRemaining int      `json:"budget_remaining"`
}

// AlignData records the approval gate.
type AlignData struct {
	ProposalIDs []string `json:"proposal_ids"`
	Approved    bool     `json:"approved"`
}

// ConsultData is the answer-only consult overlay's payload: the binding
// decisions the answer must not contradict.
type ConsultData struct {
	ActiveADRIDs []string `json:"active_adr_ids"`
}

// --- Pipeline state ---

// State is the orchestrator's unit of work. Created on start, mutated
// on every step, terminal once completed/error/cancelled.
type State struct {
	ID       string  `json:"id"`
	TargetID string  `json:"target_id"`
	Intent   string  `json:"intent"`
	Command  Command `json:"command"`

	Overlays          []Overlay `json:"overlays"`
	OverlayIndex      int       `json:"overlay_index"`
	StepWithinOverlay int       `json:"step_within_overlay"`

	Status  Status   `json:"status"`
	Data    StepData `json:"data"`
	Message string   `json:"message,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CurrentOverlay returns the overlay the pipeline is in, or "" once the
// index has moved past the list.
func (s *State) CurrentOverlay() Overlay {
	if s.OverlayIndex < 0 || s.OverlayIndex >= len(s.Overlays) {
		return ""
	}
	return s.Overlays[s.OverlayIndex]
}

// advanceOverlay moves to the next overlay: index up, step counter
// reset. Past the end of the list the pipeline is complete.
func (s *State) advanceOverlay() {
	s.OverlayIndex++
	s.StepWithinOverlay = 0
	if s.OverlayIndex >= len(s.Overlays) {
		s.Status = StatusCompleted
	}
}

// --- Step result contract ---

// Control says who acts next.
const (
	ControlAgent = "agent"
	ControlUser  = "user"
)

// Next tells the caller who moves and what to do. Every step result
// carries one; control "user" is a hard stop until external approval.
type Next struct {
	Control     string `json:"control"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
}

// StepResult is what every orchestrator invocation returns.
type StepResult struct {
	PipelineID string    `json:"pipeline_id"`
	Overlay    Overlay   `json:"overlay"`
	Status     Status    `json:"status"`
	Data       *StepData `json:"data,omitempty"`
	Message    string    `json:"message"`
	Next       Next      `json:"next"`
}
