package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/config"
	"github.com/HendryAvila/steward/internal/decisions"
	"github.com/HendryAvila/steward/internal/findings"
	"github.com/HendryAvila/steward/internal/governance"
	"github.com/HendryAvila/steward/internal/policy"
	"github.com/HendryAvila/steward/internal/store"
	"github.com/HendryAvila/steward/internal/triage"
)

// DefaultPerspectives is the research fan-out when the caller does not
// name its own analysis perspectives.
var DefaultPerspectives = []string{
	"architecture", "reliability", "security", "developer_experience",
}

// deliberationAgreementCutoff: a high-risk consensus finding below this
// agreement sends the pipeline through a deliberate overlay before
// triage.
const deliberationAgreementCutoff = 0.5

// Deps is everything the orchestrator delegates to.
type Deps struct {
	Config    *config.Config
	Store     *store.Store
	Audit     audit.Sink
	Targets   *governance.Registry
	Approvals *governance.Service
	Rules     *governance.Rules
	Consensus *findings.Engine
	Triage    *triage.Engine
	Decisions *decisions.Engine
	Sources   []Source
}

// Engine walks pipelines through their overlay sequences, one step per
// Advance call.
type Engine struct {
	cfg       *config.Config
	store     *store.Store
	audit     audit.Sink
	targets   *governance.Registry
	approvals *governance.Service
	rules     *governance.Rules
	consensus *findings.Engine
	triage    *triage.Engine
	decisions *decisions.Engine
	sources   []Source
}

// NewEngine wires the orchestrator.
func NewEngine(d Deps) *Engine {
	return &Engine{
		cfg:       d.Config,
		store:     d.Store,
		audit:     d.Audit,
		targets:   d.Targets,
		approvals: d.Approvals,
		rules:     d.Rules,
		consensus: d.Consensus,
		triage:    d.Triage,
		decisions: d.Decisions,
		sources:   d.Sources,
	}
}

// --- Lifecycle operations ---

// Start normalizes the target, classifies the intent into a command,
// builds the overlay sequence, and persists the new pipeline.
func (e *Engine) Start(intent, targetID string, perspectives []string) (*State, error) {
	if strings.TrimSpace(intent) == "" {
		return nil, fmt.Errorf("pipeline intent is empty")
	}
	resolved, err := e.targets.Normalize(targetID)
	if err != nil {
		return nil, err
	}
	if len(perspectives) == 0 {
		perspectives = append([]string(nil), DefaultPerspectives...)
	}

	command := ClassifyIntent(intent)
	now := timeNow().UTC().Format(time.RFC3339)
	st := &State{
		ID:       "pl-" + uuid.NewString(),
		TargetID: resolved,
		Intent:   intent,
		Command:  command,
		Overlays: OverlaysFor(command),
		Status:   StatusRunning,
		Data: StepData{
			Research: &ResearchData{Perspectives: perspectives},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if command == CommandConsult {
		// Consult never researches; no perspective loop to prime.
		st.Data = StepData{}
	}

	if err := e.store.Insert(store.Pipelines, st.ID, st); err != nil {
		return nil, fmt.Errorf("starting pipeline: %w", err)
	}
	e.audit.Record(audit.Event{
		Action:     "pipeline_started",
		Actor:      "orchestrator",
		TargetType: "pipeline",
		TargetID:   st.ID,
		Details: map[string]string{
			"target":  resolved,
			"command": string(command),
		},
	})
	return st, nil
}

// Get loads one pipeline; unknown ids carry a recovery hint.
func (e *Engine) Get(id string) (*State, error) {
	st, _, err := e.load(id)
	return st, err
}

// Advance executes exactly one step of the current overlay and persists
// the result. Concurrent advances of the same pipeline race on the
// stored version; the loser gets ErrConflict and must re-read.
func (e *Engine) Advance(ctx context.Context, id string) (*StepResult, error) {
	st, version, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if st.Status.terminal() {
		return nil, fmt.Errorf("pipeline %s is %s; no further steps are valid", id, st.Status)
	}

	res, err := e.step(ctx, st)
	if err != nil {
		st.Status = StatusError
		st.Message = err.Error()
		st.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
		// Best effort: the step error is the one worth reporting.
		_ = e.store.Update(store.Pipelines, id, version, st)
		return nil, err
	}

	st.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	if err := e.store.Update(store.Pipelines, id, version, st); err != nil {
		return nil, fmt.Errorf("saving pipeline %s: %w", id, err)
	}

	e.audit.Record(audit.Event{
		Action:     "pipeline_advanced",
		Actor:      "orchestrator",
		TargetType: "pipeline",
		TargetID:   id,
		Details: map[string]string{
			"overlay": string(res.Overlay),
			"status":  string(st.Status),
		},
	})
	return res, nil
}

// Cancel moves a pipeline to the terminal cancelled status.
func (e *Engine) Cancel(id, reason string) (*State, error) {
	st, version, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if st.Status.terminal() {
		return nil, fmt.Errorf("pipeline %s is already %s", id, st.Status)
	}

	st.Status = StatusCancelled
	st.Message = reason
	st.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	if err := e.store.Update(store.Pipelines, id, version, st); err != nil {
		return nil, fmt.Errorf("cancelling pipeline %s: %w", id, err)
	}
	e.audit.Record(audit.Event{
		Action:     "pipeline_cancelled",
		Actor:      "caller",
		TargetType: "pipeline",
		TargetID:   id,
		Details:    map[string]string{"reason": reason},
	})
	return st, nil
}

// ForceAdvance skips past the current overlay by explicit caller
// instruction, whatever state its step loop is in.
func (e *Engine) ForceAdvance(id string) (*State, error) {
	st, version, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if st.Status.terminal() {
		return nil, fmt.Errorf("pipeline %s is %s; nothing to skip", id, st.Status)
	}

	skipped := st.CurrentOverlay()
	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	st.Message = fmt.Sprintf("overlay %s skipped by caller instruction", skipped)
	st.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	if err := e.store.Update(store.Pipelines, id, version, st); err != nil {
		return nil, fmt.Errorf("force-advancing pipeline %s: %w", id, err)
	}
	e.audit.Record(audit.Event{
		Action:     "pipeline_force_advanced",
		Actor:      "caller",
		TargetType: "pipeline",
		TargetID:   id,
		Details:    map[string]string{"skipped_overlay": string(skipped)},
	})
	return st, nil
}

func (e *Engine) load(id string) (*State, int64, error) {
	var st State
	version, err := e.store.Get(store.Pipelines, id, &st)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: pipeline %q unknown — start one or check the id", store.ErrNotFound, id)
		}
		return nil, 0, err
	}
	return &st, version, nil
}

// --- Step dispatch ---

func (e *Engine) step(ctx context.Context, st *State) (*StepResult, error) {
	switch st.CurrentOverlay() {
	case OverlayResearch:
		return e.stepResearch(st)
	case OverlayClassify:
		return e.stepClassify(st)
	case OverlayDeliberate:
		return e.stepDeliberate(ctx, st)
	case OverlayTriage:
		return e.stepTriage(st)
	case OverlayAlign:
		return e.stepAlign(st)
	case OverlayPlan:
		return e.stepPlan(st)
	case OverlayExecute:
		return e.stepExecute(st)
	case OverlayCleanup:
		return e.stepSimple(st, OverlayCleanup,
			"remove any scaffolding, temporary branches, and stale findings left behind by this run")
	case OverlayRelease:
		return e.stepRelease(st)
	case OverlayPropagate:
		return e.stepPropagate(st)
	case OverlayConsult:
		return e.stepConsult(st)
	default:
		return nil, fmt.Errorf("pipeline %s has no overlay at index %d", st.ID, st.OverlayIndex)
	}
}

// result fills the invariant parts of a step result. Every path goes
// through here, so next.control is never absent.
func (e *Engine) result(st *State, overlay Overlay, message, control, description, instruction string) *StepResult {
	st.Message = message
	return &StepResult{
		PipelineID: st.ID,
		Overlay:    overlay,
		Status:     st.Status,
		Data:       &st.Data,
		Message:    message,
		Next: Next{
			Control:     control,
			Description: description,
			Instruction: instruction,
		},
	}
}

// --- Research: one step per perspective, then consensus ---

func (e *Engine) stepResearch(st *State) (*StepResult, error) {
	rd := st.Data.Research
	if rd == nil {
		rd = &ResearchData{Perspectives: append([]string(nil), DefaultPerspectives...)}
		st.Data.Research = rd
	}

	if st.StepWithinOverlay < len(rd.Perspectives) {
		p := rd.Perspectives[st.StepWithinOverlay]
		rd.Completed = rd.Perspectives[:st.StepWithinOverlay]
		st.StepWithinOverlay++
		st.Status = StatusWaitingAgent
		return e.result(st, OverlayResearch,
			fmt.Sprintf("research step %d/%d: perspective %q", st.StepWithinOverlay, len(rd.Perspectives), p),
			ControlAgent,
			"analyze the target from one perspective and submit findings",
			fmt.Sprintf("Analyze target %s from the %q perspective, call steward_ingest_findings with perspective=%q, then call steward_pipeline_advance.", st.TargetID, p, p),
		), nil
	}

	// All perspectives instructed; fold whatever was ingested.
	input, err := e.findingsSince(st.TargetID, rd.Perspectives, st.CreatedAt)
	if err != nil {
		return nil, err
	}
	consensus, err := e.consensus.Compute(input, len(rd.Perspectives))
	if err != nil {
		return nil, fmt.Errorf("consensus for pipeline %s: %w", st.ID, err)
	}
	ids := make([]string, 0, len(consensus))
	for _, cf := range consensus {
		if err := e.store.Insert(store.Consensus, cf.ID, cf); err != nil {
			return nil, fmt.Errorf("saving consensus finding: %w", err)
		}
		ids = append(ids, cf.ID)
	}
	rd.Completed = rd.Perspectives
	rd.ConsensusIDs = ids

	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	return e.result(st, OverlayResearch,
		fmt.Sprintf("research complete: %d findings folded into %d consensus findings", len(input), len(consensus)),
		ControlAgent,
		"research finished",
		"Call steward_pipeline_advance to continue.",
	), nil
}

// findingsSince loads this run's findings: right target, one of the
// requested perspectives, created no earlier than the pipeline itself.
// RFC 3339 timestamps order lexicographically, so string compare is
// enough.
func (e *Engine) findingsSince(targetID string, perspectives []string, since string) ([]findings.Finding, error) {
	wanted := map[string]bool{}
	for _, p := range perspectives {
		wanted[p] = true
	}

	docs, err := e.store.ListWhere(store.Findings, func(raw json.RawMessage) bool {
		var probe struct {
			TargetID    string `json:"target_id"`
			Perspective string `json:"perspective"`
			CreatedAt   string `json:"created_at"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return false
		}
		return probe.TargetID == targetID && wanted[probe.Perspective] && probe.CreatedAt >= since
	})
	if err != nil {
		return nil, fmt.Errorf("loading findings: %w", err)
	}

	out := make([]findings.Finding, 0, len(docs))
	for _, d := range docs {
		var f findings.Finding
		if err := json.Unmarshal(d.Data, &f); err != nil {
			return nil, fmt.Errorf("decoding finding %s: %w", d.ID, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// --- Classify: decide whether deliberation is needed ---

func (e *Engine) stepClassify(st *State) (*StepResult, error) {
	consensus, err := e.loadConsensus(st)
	if err != nil {
		return nil, err
	}

	needs, reason := classifyDeliberation(consensus)
	st.Data.Classify = &ClassifyData{NeedsDeliberation: needs, Reason: reason}
	st.Overlays = nextOverlays(st.Overlays, st.OverlayIndex, needs)

	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	return e.result(st, OverlayClassify,
		"classification: "+reason,
		ControlAgent,
		"classification finished",
		"Call steward_pipeline_advance to continue.",
	), nil
}

// classifyDeliberation flags the run for multi-source deliberation when
// a high-risk consensus finding lacks convincing agreement.
func classifyDeliberation(consensus []findings.ConsensusFinding) (bool, string) {
	for _, cf := range consensus {
		highRisk := cf.MaxRisk == findings.RiskHigh || cf.MaxRisk == findings.RiskCritical
		if highRisk && cf.AgreementScore < deliberationAgreementCutoff {
			return true, fmt.Sprintf(
				"consensus finding %s is %s risk with agreement %.2f; deliberation required",
				cf.ID, cf.MaxRisk, cf.AgreementScore)
		}
	}
	return false, "no contested high-risk findings; proceeding to triage"
}

// --- Deliberate: concurrent multi-source session ---

func (e *Engine) stepDeliberate(ctx context.Context, st *State) (*StepResult, error) {
	consensus, err := e.loadConsensus(st)
	if err != nil {
		return nil, err
	}
	claims := make([]string, 0, len(consensus))
	for _, cf := range consensus {
		claims = append(claims, cf.Claim)
	}

	outcomes := consultSources(ctx, e.sources, deliberationPrompt(st.Intent, claims))
	st.Data.Deliberate = &DeliberateData{
		Outcomes:  outcomes,
		Agreement: deliberationAgreement(outcomes),
	}

	answered := 0
	for _, o := range outcomes {
		if o.Status == "ok" {
			answered++
		}
	}
	msg := fmt.Sprintf("deliberation: %d/%d sources answered, agreement %.2f",
		answered, len(outcomes), st.Data.Deliberate.Agreement)
	if answered < len(outcomes) {
		msg += "; failed sources degraded to manual input"
	}

	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	return e.result(st, OverlayDeliberate, msg,
		ControlAgent,
		"deliberation finished",
		"Review the deliberation outcomes in the step data, supply manual input for any degraded source if needed, then call steward_pipeline_advance.",
	), nil
}

// --- Triage ---

func (e *Engine) stepTriage(st *State) (*StepResult, error) {
	consensus, err := e.loadConsensus(st)
	if err != nil {
		return nil, err
	}
	target, err := e.targetConfig(st.TargetID)
	if err != nil {
		return nil, err
	}
	rules, err := e.rules.List()
	if err != nil {
		return nil, err
	}
	used, err := e.budgetUsed(st.TargetID)
	if err != nil {
		return nil, err
	}

	res, err := e.triage.Run(target, consensus, rules, used)
	if err != nil {
		return nil, fmt.Errorf("triage for pipeline %s: %w", st.ID, err)
	}

	td := &TriageData{BudgetRemaining: res.BudgetRemaining}
	for _, esc := range res.Escalations {
		td.EscalationIDs = append(td.EscalationIDs, esc.ID)
	}
	for _, p := range res.Proposals {
		if p.Blocked {
			td.BlockedIDs = append(td.BlockedIDs, p.ID)
		} else {
			td.ProposalIDs = append(td.ProposalIDs, p.ID)
		}
	}
	st.Data.Triage = td

	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	message := fmt.Sprintf("triage: %d actionable proposals, %d blocked, %d escalations, budget remaining %d",
		len(td.ProposalIDs), len(td.BlockedIDs), len(td.EscalationIDs), td.BudgetRemaining)
	instruction := "Call steward_pipeline_advance to enter the approval gate."
	if len(td.EscalationIDs) > 0 {
		instruction = "Surface the escalated findings to the user via steward_proposals action=escalations; they need a human decision. Then call steward_pipeline_advance to enter the approval gate."
	}
	return e.result(st, OverlayTriage, message,
		ControlAgent,
		"triage finished",
		instruction,
	), nil
}

// targetConfig resolves a target's governance configuration, falling
// back to the configured defaults for targets never registered.
func (e *Engine) targetConfig(targetID string) (policy.TargetConfig, error) {
	t, err := e.targets.Get(targetID)
	if err == nil {
		return t.Config, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return policy.TargetConfig{}, err
	}
	return policy.TargetConfig{
		TargetID:          targetID,
		Autonomy:          policy.AutonomyLevel(e.cfg.Policy.DefaultAutonomy),
		ChangeBudget:      e.cfg.Policy.DefaultChangeBudget,
		AllowedCategories: e.cfg.Policy.DefaultCategories,
		MaxChangeSize:     e.cfg.Policy.DefaultMaxChangeSize,
	}, nil
}

// budgetUsed counts the target's proposals already accepted into
// delivery.
func (e *Engine) budgetUsed(targetID string) (int, error) {
	inDelivery := map[triage.Status]bool{
		triage.StatusApproved:   true,
		triage.StatusInProgress: true,
		triage.StatusPROpen:     true,
		triage.StatusTesting:    true,
		triage.StatusMerged:     true,
		triage.StatusReleased:   true,
	}
	docs, err := e.store.ListWhere(store.Proposals, func(raw json.RawMessage) bool {
		var probe struct {
			TargetID string        `json:"target_id"`
			Status   triage.Status `json:"status"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return false
		}
		return probe.TargetID == targetID && inDelivery[probe.Status]
	})
	if err != nil {
		return 0, fmt.Errorf("counting delivery budget: %w", err)
	}
	return len(docs), nil
}

func (e *Engine) loadConsensus(st *State) ([]findings.ConsensusFinding, error) {
	rd := st.Data.Research
	if rd == nil {
		return nil, nil
	}
	out := make([]findings.ConsensusFinding, 0, len(rd.ConsensusIDs))
	for _, id := range rd.ConsensusIDs {
		var cf findings.ConsensusFinding
		if _, err := e.store.Get(store.Consensus, id, &cf); err != nil {
			return nil, fmt.Errorf("loading consensus finding %s: %w", id, err)
		}
		out = append(out, cf)
	}
	return out, nil
}

// --- Align: the human approval gate ---

func (e *Engine) stepAlign(st *State) (*StepResult, error) {
	var proposalIDs []string
	if st.Data.Triage != nil {
		proposalIDs = st.Data.Triage.ProposalIDs
	}

	if st.StepWithinOverlay == 0 {
		if len(proposalIDs) == 0 {
			// Nothing actionable survived triage; there is nothing for a
			// human to approve.
			st.Data.Align = &AlignData{Approved: true}
			st.advanceOverlay()
			if !st.Status.terminal() {
				st.Status = StatusWaitingAgent
			}
			return e.result(st, OverlayAlign,
				"no actionable proposals; approval gate passed empty",
				ControlAgent,
				"nothing to approve",
				"Call steward_pipeline_advance to continue.",
			), nil
		}

		st.Data.Align = &AlignData{ProposalIDs: proposalIDs}
		st.StepWithinOverlay = 1
		st.Status = StatusWaitingUser
		return e.result(st, OverlayAlign,
			fmt.Sprintf("%d proposals await human approval", len(proposalIDs)),
			ControlUser,
			"human approval required before any change takes effect",
			fmt.Sprintf("Present the proposals (%s) to the user. After review, submit steward_approve with target_type=\"pipeline\", target_id=%q, then call steward_pipeline_advance.",
				strings.Join(proposalIDs, ", "), st.ID),
		), nil
	}

	// Re-entry: only an on-record approval moves the gate.
	ok, err := e.approvals.HasApproval("pipeline", st.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		st.Status = StatusWaitingUser
		return e.result(st, OverlayAlign,
			"still waiting: no approval on record for this pipeline",
			ControlUser,
			"human approval required before any change takes effect",
			fmt.Sprintf("Submit steward_approve with target_type=\"pipeline\", target_id=%q, then call steward_pipeline_advance.", st.ID),
		), nil
	}

	st.Data.Align.Approved = true
	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	return e.result(st, OverlayAlign,
		"approval on record; gate passed",
		ControlAgent,
		"approval granted",
		"Call steward_pipeline_advance to continue.",
	), nil
}

// --- Delivery-side overlays ---

func (e *Engine) stepPlan(st *State) (*StepResult, error) {
	ids := alignedProposals(st)
	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	return e.result(st, OverlayPlan,
		fmt.Sprintf("planning %d approved proposals", len(ids)),
		ControlAgent,
		"turn approved proposals into implementation plans",
		fmt.Sprintf("For each proposal (%s): move it to \"approved\" via steward_proposals, review the opened plan, then call steward_pipeline_advance.",
			strings.Join(ids, ", ")),
	), nil
}

func (e *Engine) stepExecute(st *State) (*StepResult, error) {
	ids := alignedProposals(st)
	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	return e.result(st, OverlayExecute,
		"executing approved plans",
		ControlAgent,
		"implement the planned changes",
		fmt.Sprintf("Implement each plan and walk its proposal through in_progress → pr_open → testing → merged via steward_proposals (proposals: %s). Then call steward_pipeline_advance.",
			strings.Join(ids, ", ")),
	), nil
}

func (e *Engine) stepRelease(st *State) (*StepResult, error) {
	ids := alignedProposals(st)
	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	return e.result(st, OverlayRelease,
		"release stage",
		ControlAgent,
		"publish the merged changes",
		fmt.Sprintf("Move merged proposals (%s) to \"released\" via steward_proposals; the release record is created automatically. Then call steward_pipeline_advance.",
			strings.Join(ids, ", ")),
	), nil
}

func (e *Engine) stepPropagate(st *State) (*StepResult, error) {
	targets, err := e.targets.List()
	if err != nil {
		return nil, err
	}
	var others []string
	for _, t := range targets {
		if t.ID != st.TargetID {
			others = append(others, t.ID)
		}
	}
	sort.Strings(others)

	st.advanceOverlay()
	if !st.Status.terminal() {
		st.Status = StatusWaitingAgent
	}
	instruction := "No other targets are registered; call steward_pipeline_advance."
	if len(others) > 0 {
		instruction = fmt.Sprintf(
			"Check whether this release's learnings apply to the other registered targets (%s); ingest findings for any that do. Then call steward_pipeline_advance.",
			strings.Join(others, ", "))
	}
	return e.result(st, OverlayPropagate,
		fmt.Sprintf("propagation: %d other targets registered", len(others)),
		ControlAgent,
		"carry learnings to sibling targets",
		instruction,
	), nil
}

func (e *Engine) stepSimple(st *State, overlay Overlay, task string) (*StepResult, error) {
	st.advanceOverlay()
	msg := string(overlay) + " stage"
	instruction := strings.ToUpper(task[:1]) + task[1:] + ". Then call steward_pipeline_advance."
	if st.Status.terminal() {
		msg = "pipeline complete"
		instruction = strings.ToUpper(task[:1]) + task[1:] + ". The pipeline is finished; no further advance is needed."
	} else {
		st.Status = StatusWaitingAgent
	}
	return e.result(st, overlay, msg, ControlAgent, task, instruction), nil
}

// --- Consult: answer-only, no pipeline side effects ---

func (e *Engine) stepConsult(st *State) (*StepResult, error) {
	adrs, err := e.decisions.Active(st.TargetID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(adrs))
	summaries := make([]string, 0, len(adrs))
	for _, a := range adrs {
		ids = append(ids, a.ID)
		summaries = append(summaries, fmt.Sprintf("%s: %s", a.ID, a.Title))
	}
	st.Data.Consult = &ConsultData{ActiveADRIDs: ids}

	st.advanceOverlay()
	instruction := "Answer the user's question directly. No binding decisions constrain the answer."
	if len(adrs) > 0 {
		instruction = fmt.Sprintf(
			"Answer the user's question directly without contradicting the binding decisions on record (%s). To revisit one, use steward_adr to supersede it.",
			strings.Join(summaries, "; "))
	}
	return e.result(st, OverlayConsult,
		fmt.Sprintf("consultation prepared with %d binding decisions in scope", len(adrs)),
		ControlAgent,
		"advisory answer, no state changes",
		instruction,
	), nil
}

func alignedProposals(st *State) []string {
	if st.Data.Align != nil {
		return st.Data.Align.ProposalIDs
	}
	return nil
}
