package engine

import (
	"context"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

// SolvabilityOutcome is the oracle's verdict plus search effort, as carried
// across the dependency boundary.
type SolvabilityOutcome struct {
	Verdict    SolvabilityVerdict
	Nodes      int
	DurationMs int64
}

// Bundle is the four-operation dependency contract between the state
// machine and the solvability oracle / fit finder / orientation catalog.
//
// SolvabilityCheck and GenerateHint are potentially long-running; the
// reducer never calls them. The driver performs them out of band while the
// game sits in PhaseResolving, then re-injects the result as an event.
// ComputeRepairPlan and IsPuzzleComplete are pure and synchronous; the
// reducer calls them inside a dispatch.
type Bundle interface {
	// SolvabilityCheck reports whether the board can still be completed.
	SolvabilityCheck(ctx context.Context, state *GameState) SolvabilityOutcome

	// ComputeRepairPlan derives an ordered removal plan from the current
	// state, framed with leading message and trailing done steps.
	ComputeRepairPlan(state *GameState) []RepairStep

	// GenerateHint proposes a placement covering the anchor, or nil when
	// none exists.
	GenerateHint(ctx context.Context, state *GameState, anchor lattice.Cell) *HintSuggestion

	// IsPuzzleComplete reports whether every target cell is covered.
	IsPuzzleComplete(state *GameState) bool
}

// StubBundle is a deterministic Bundle for tests and offline tooling. Each
// operation can be overridden with a function field; unset fields fall back
// to a fixed default (solvable, empty plan, no hint, geometric completion).
type StubBundle struct {
	SolvabilityCheckFunc  func(ctx context.Context, state *GameState) SolvabilityOutcome
	ComputeRepairPlanFunc func(state *GameState) []RepairStep
	GenerateHintFunc      func(ctx context.Context, state *GameState, anchor lattice.Cell) *HintSuggestion
	IsPuzzleCompleteFunc  func(state *GameState) bool
}

var _ Bundle = (*StubBundle)(nil)

func (b *StubBundle) SolvabilityCheck(ctx context.Context, state *GameState) SolvabilityOutcome {
	if b.SolvabilityCheckFunc != nil {
		return b.SolvabilityCheckFunc(ctx, state)
	}
	return SolvabilityOutcome{Verdict: Solvable}
}

func (b *StubBundle) ComputeRepairPlan(state *GameState) []RepairStep {
	if b.ComputeRepairPlanFunc != nil {
		return b.ComputeRepairPlanFunc(state)
	}
	return nil
}

func (b *StubBundle) GenerateHint(ctx context.Context, state *GameState, anchor lattice.Cell) *HintSuggestion {
	if b.GenerateHintFunc != nil {
		return b.GenerateHintFunc(ctx, state, anchor)
	}
	return nil
}

func (b *StubBundle) IsPuzzleComplete(state *GameState) bool {
	if b.IsPuzzleCompleteFunc != nil {
		return b.IsPuzzleCompleteFunc(state)
	}
	occupied := state.OccupiedCells()
	for _, c := range state.Spec.TargetCells() {
		if !occupied.Has(c) {
			return false
		}
	}
	return true
}
