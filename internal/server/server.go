// Package server wires all MCP components and creates the server
// instance.
//
// This is the composition root: it loads configuration, opens the
// record store and audit log, constructs the engines, and injects them
// into the tools. No business logic lives here — only wiring.
package server

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/config"
	"github.com/HendryAvila/steward/internal/decisions"
	"github.com/HendryAvila/steward/internal/delivery"
	"github.com/HendryAvila/steward/internal/findings"
	"github.com/HendryAvila/steward/internal/governance"
	"github.com/HendryAvila/steward/internal/pipeline"
	"github.com/HendryAvila/steward/internal/store"
	"github.com/HendryAvila/steward/internal/tools"
	"github.com/HendryAvila/steward/internal/triage"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with every tool
// registered. The returned cleanup function flushes the audit log and
// closes the store; it is always non-nil and safe to call.
func New() (*server.MCPServer, func(), error) {
	// Stdout is the MCP transport; zap's production config already
	// writes to stderr.
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, noop, fmt.Errorf("creating logger: %w", err)
	}

	cfg, err := config.Load(config.ConfigFile)
	if err != nil {
		return nil, noop, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, noop, fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}

	auditLog, err := audit.NewLog(cfg.DataDir)
	if err != nil {
		st.Close()
		return nil, noop, fmt.Errorf("opening audit log: %w", err)
	}

	cleanup := func() {
		if err := auditLog.Sync(); err != nil {
			logger.Warn("audit log sync", zap.Error(err))
		}
		if err := st.Close(); err != nil {
			logger.Warn("store close", zap.Error(err))
		}
		_ = logger.Sync()
	}

	// --- Engines ---

	dec := decisions.NewEngine(cfg, st, auditLog)
	approvals := governance.NewService(st, auditLog)
	registry := governance.NewRegistry(cfg, st, auditLog)
	rules := governance.NewRules(st, auditLog)
	deliverySvc := delivery.NewService(st, auditLog, approvals)
	engine := pipeline.NewEngine(pipeline.Deps{
		Config:    cfg,
		Store:     st,
		Audit:     auditLog,
		Targets:   registry,
		Approvals: approvals,
		Rules:     rules,
		Consensus: findings.NewEngine(cfg),
		Triage:    triage.NewEngine(cfg, st, dec, auditLog),
		Decisions: dec,
		// No external deliberation sources are wired by default; a
		// deliberate overlay degrades its sources to manual input.
	})

	// --- MCP server ---

	s := server.NewMCPServer(
		"steward",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	ingest := tools.NewIngestFindingsTool(st, registry, auditLog)
	s.AddTool(ingest.Definition(), ingest.Handle)

	start := tools.NewPipelineStartTool(engine)
	s.AddTool(start.Definition(), start.Handle)

	advance := tools.NewPipelineAdvanceTool(engine)
	s.AddTool(advance.Definition(), advance.Handle)

	status := tools.NewPipelineStatusTool(engine)
	s.AddTool(status.Definition(), status.Handle)

	approve := tools.NewApproveTool(approvals)
	s.AddTool(approve.Definition(), approve.Handle)

	adr := tools.NewADRTool(dec)
	s.AddTool(adr.Definition(), adr.Handle)

	proposals := tools.NewProposalsTool(deliverySvc)
	s.AddTool(proposals.Definition(), proposals.Handle)

	policyTool := tools.NewPolicyTool(rules)
	s.AddTool(policyTool.Definition(), policyTool.Handle)

	target := tools.NewTargetTool(registry, deliverySvc)
	s.AddTool(target.Definition(), target.Handle)

	logger.Info("steward ready",
		zap.String("version", Version),
		zap.String("data_dir", cfg.DataDir),
	)
	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails early.
func noop() {}

// serverInstructions tells the calling agent how to drive the pipeline.
func serverInstructions() string {
	return `You have access to Steward, a governed improvement-pipeline MCP server.

Steward does not analyze code and does not write code. YOU are the analyst and
implementer; Steward sequences the work, merges your findings across
perspectives, scores and gates proposals, and refuses to act without human
approval.

## Core loop

1. steward_pipeline_start with an intent ("improve X", "review Y",
   "release Z", or a question for consult mode) and a target.
2. steward_pipeline_advance, repeatedly. Every result carries next.control:
   - "agent": do what next.instruction says, then advance again.
   - "user": HARD STOP. A human must review and approve (steward_approve)
     before the next advance means anything. Never fabricate an approval.
3. During research steps, analyze the target yourself from the named
   perspective and submit findings via steward_ingest_findings. Real claims,
   real evidence, honest confidence values — the consensus and triage math is
   only as good as what you feed it.

## Rules that are not negotiable

- Approvals: only a human approves. steward_approve records who and requires
  explicit risk and rollback acknowledgements. Do not call it on your own
  initiative.
- Binding decisions: steward_adr records decisions with a cooldown. Proposals
  that contradict a recorded decision get blocked; do not fight the block by
  rephrasing — either wait out the cooldown or supersede with genuinely higher
  confidence and confirmations.
- Policy: steward_policy shows the rules a proposal is evaluated against.
  Disabled rules stay disabled across sessions.
- Delivery: walk proposals through their lifecycle with steward_proposals
  (triaged → approved → in_progress → pr_open → testing → merged → released).
  Skipping states is rejected. Moving to approved may require a
  steward_approve record for that proposal.
- A stuck pipeline is cancelled or force-advanced only when the USER says so
  (steward_pipeline_status with action=cancel or force_advance).

## Findings format

Each finding: claim, recommendation, confidence in [0,1], expected_impact with
all four dimensions (reliability, security, devex, performance in [-1,1]), a
risk level, and evidence items graded A (strong) to C (weak). Submit per
perspective, as instructed by the research steps.`
}
