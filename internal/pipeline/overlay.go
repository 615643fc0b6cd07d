// Package pipeline is the orchestrator: a state machine that walks an
// ordered overlay list, executes exactly one step per invocation, and
// hands control back either to the calling agent (auto-continue) or to
// the human user (approval required). It delegates the actual analysis
// work to the findings, triage, decisions, and policy engines.
package pipeline

import (
	"strings"
	"time"
)

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

// --- Overlay catalog ---

// Overlay is one named stage of the improvement pipeline.
type Overlay string

const (
	OverlayResearch   Overlay = "research"
	OverlayClassify   Overlay = "classify"
	OverlayDeliberate Overlay = "deliberate"
	OverlayTriage     Overlay = "triage"
	OverlayAlign      Overlay = "align"
	OverlayPlan       Overlay = "plan"
	OverlayExecute    Overlay = "execute"
	OverlayCleanup    Overlay = "cleanup"
	OverlayRelease    Overlay = "release"
	OverlayPropagate  Overlay = "propagate"
	OverlayConsult    Overlay = "consult"
)

// --- Command classification ---

// Command is the caller's intent, classified from the free-form intent
// string. It selects the overlay sequence.
type Command string

const (
	CommandImprove Command = "improve"
	CommandReview  Command = "review"
	CommandRelease Command = "release"
	CommandConsult Command = "consult"
)

// commandKeywords drives intent classification. Checked in order; the
// first command with a keyword hit wins and improve is the fallback.
var commandOrder = []Command{CommandRelease, CommandConsult, CommandReview}

var commandKeywords = map[Command][]string{
	CommandRelease: {"release", "ship", "publish", "cut a version", "roll out"},
	CommandConsult: {"consult", "advice", "advise", "question", "what do you think", "should we", "opinion"},
	CommandReview:  {"review", "audit", "assess", "evaluate", "inspect", "health check"},
}

// ClassifyIntent maps a free-form intent string onto a command.
func ClassifyIntent(intent string) Command {
	lower := strings.ToLower(intent)
	for _, c := range commandOrder {
		for _, kw := range commandKeywords[c] {
			if strings.Contains(lower, kw) {
				return c
			}
		}
	}
	return CommandImprove
}

// commandOverlays is the base overlay sequence per command. The
// deliberate overlay is never part of a base sequence; it is introduced
// by the classify transition when classification calls for it.
var commandOverlays = map[Command][]Overlay{
	CommandImprove: {OverlayResearch, OverlayClassify, OverlayTriage, OverlayAlign, OverlayPlan, OverlayExecute, OverlayCleanup},
	CommandReview:  {OverlayResearch, OverlayClassify, OverlayTriage, OverlayAlign},
	CommandRelease: {OverlayResearch, OverlayTriage, OverlayAlign, OverlayRelease, OverlayPropagate, OverlayCleanup},
	CommandConsult: {OverlayConsult},
}

// OverlaysFor returns a fresh copy of the overlay sequence for a command.
func OverlaysFor(c Command) []Overlay {
	base := commandOverlays[c]
	out := make([]Overlay, len(base))
	copy(out, base)
	return out
}

// nextOverlays is the classify transition: it computes the overlay
// sequence that follows from the current one given the classification
// outcome. The list is never mutated in place — a changed sequence is a
// new value, which keeps every pipeline's history replayable from its
// stored states.
func nextOverlays(current []Overlay, idx int, needsDeliberation bool) []Overlay {
	out := make([]Overlay, len(current))
	copy(out, current)
	if !needsDeliberation || idx < 0 || idx >= len(out) || out[idx] != OverlayClassify {
		return out
	}
	if idx+1 < len(out) && out[idx+1] == OverlayDeliberate {
		return out
	}
	out = append(out[:idx+1], append([]Overlay{OverlayDeliberate}, out[idx+1:]...)...)
	return out
}
