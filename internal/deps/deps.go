// Package deps assembles the production dependency bundle behind the game
// engine: the orientation catalog, the geometric fit finder and the
// solvability oracle, composed into the four-operation contract the state
// machine consumes.
package deps

import (
	"context"
	"sort"
	"time"

	"github.com/ABakker30/koospuzzlev1-sub002/internal/catalog"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/fitfind"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/solver"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/engine"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

const (
	// DefaultSolveTimeout bounds a single oracle query.
	DefaultSolveTimeout = 3 * time.Second

	// DefaultMaxRemovalsPerRepair bounds how many placements a single repair
	// session may take back.
	DefaultMaxRemovalsPerRepair = 3

	// DefaultHintVerifyMaxEmptyCells is the board-size ceiling below which a
	// hint candidate is verified with a full solvability search instead of
	// the cheaper topological screen.
	DefaultHintVerifyMaxEmptyCells = 24
)

// Options tunes the bundle. Zero values select the defaults.
type Options struct {
	SolveTimeout            time.Duration
	MaxRemovalsPerRepair    int
	HintVerifyMaxEmptyCells int
}

func (o Options) withDefaults() Options {
	if o.SolveTimeout <= 0 {
		o.SolveTimeout = DefaultSolveTimeout
	}
	if o.MaxRemovalsPerRepair <= 0 {
		o.MaxRemovalsPerRepair = DefaultMaxRemovalsPerRepair
	}
	if o.HintVerifyMaxEmptyCells <= 0 {
		o.HintVerifyMaxEmptyCells = DefaultHintVerifyMaxEmptyCells
	}
	return o
}

// Bundle is the production engine.Bundle implementation.
type Bundle struct {
	cat    *catalog.Catalog
	finder *fitfind.Finder
	oracle *solver.Oracle
	opts   Options
}

var _ engine.Bundle = (*Bundle)(nil)

// New creates a bundle over the given catalog.
func New(cat *catalog.Catalog, opts Options) *Bundle {
	return &Bundle{
		cat:    cat,
		finder: fitfind.New(cat),
		oracle: solver.New(cat),
		opts:   opts.withDefaults(),
	}
}

// SolvabilityCheck asks the oracle whether the board can still be completed.
// The query is bounded by the configured timeout on top of any deadline the
// caller already carries.
func (b *Bundle) SolvabilityCheck(ctx context.Context, state *engine.GameState) engine.SolvabilityOutcome {
	ctx, cancel := context.WithTimeout(ctx, b.opts.SolveTimeout)
	defer cancel()

	verdict, stats := b.oracle.Solvable(ctx, state.Spec, state.OccupiedCells(), state.Inventory)
	return engine.SolvabilityOutcome{
		Verdict:    toEngineVerdict(verdict),
		Nodes:      stats.Nodes,
		DurationMs: stats.Duration.Milliseconds(),
	}
}

func toEngineVerdict(v solver.Verdict) engine.SolvabilityVerdict {
	switch v {
	case solver.VerdictSolvable:
		return engine.Solvable
	case solver.VerdictUnsolvable:
		return engine.Unsolvable
	default:
		return engine.Unknown
	}
}

// ComputeRepairPlan derives a bounded most-recent-first removal plan. Pieces
// are taken back newest placement first until the empty cells pass the
// region-divisibility screen or the removal budget runs out. At least one
// placement is removed whenever the board has any; a repair that removes
// nothing cannot unstick the position the oracle just rejected.
func (b *Bundle) ComputeRepairPlan(state *engine.GameState) []engine.RepairStep {
	steps := []engine.RepairStep{{
		Kind:    engine.RepairStepMessage,
		Message: "the board cannot be completed from here; taking back recent placements",
	}}

	placements := make([]engine.PlacedPiece, 0, len(state.Board))
	for _, p := range state.Board {
		placements = append(placements, p)
	}
	sort.Slice(placements, func(a, c int) bool {
		if placements[a].PlacedAtMs != placements[c].PlacedAtMs {
			return placements[a].PlacedAtMs > placements[c].PlacedAtMs
		}
		return placements[a].ID < placements[c].ID
	})

	occupied := state.OccupiedCells()
	viable := func() bool {
		empty := state.Spec.Targets()
		for c := range occupied {
			empty.Remove(c)
		}
		return lattice.AllRegionsDivisibleBy4(empty)
	}

	removed := 0
	for _, p := range placements {
		if removed >= b.opts.MaxRemovalsPerRepair {
			break
		}
		if removed > 0 && viable() {
			break
		}
		for _, c := range p.Cells {
			occupied.Remove(c)
		}
		removed++
		steps = append(steps, engine.RepairStep{
			Kind:        engine.RepairStepRemovePiece,
			PlacementID: p.ID,
			OwnerID:     p.PlayerID,
			ScoreDelta:  -1,
		})
	}

	return append(steps, engine.RepairStep{Kind: engine.RepairStepDone, Solvable: viable()})
}

// GenerateHint proposes a placement covering the anchor. Candidates come from
// the fit finder in deterministic order; each is screened by the region
// divisibility test, and on small boards additionally verified with a full
// solvability search so the suggestion never paints the board into a corner.
func (b *Bundle) GenerateHint(ctx context.Context, state *engine.GameState, anchor lattice.Cell) *engine.HintSuggestion {
	occupied := state.OccupiedCells()
	fits := b.finder.FitsAt(state.Spec, occupied, anchor, b.availablePieces(state))

	for _, fit := range fits {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		hypothetical := occupied.Clone()
		for _, c := range fit.Cells {
			hypothetical.Add(c)
		}
		empty := state.Spec.Targets()
		for c := range hypothetical {
			empty.Remove(c)
		}
		if !lattice.AllRegionsDivisibleBy4(empty) {
			continue
		}

		if len(empty) <= b.opts.HintVerifyMaxEmptyCells {
			verdict, _ := b.oracle.Solvable(ctx, state.Spec, hypothetical, decrement(state.Inventory, fit.PieceID))
			switch verdict {
			case solver.VerdictUnsolvable:
				continue
			case solver.VerdictUnknown:
				// Verification timed out; the topological screen already
				// passed, so fall back to the candidate rather than nothing.
			}
		}

		return &engine.HintSuggestion{
			PieceID:       fit.PieceID,
			OrientationID: fit.OrientationID,
			Cells:         fit.Cells,
		}
	}
	return nil
}

// IsPuzzleComplete reports whether every target cell is covered.
func (b *Bundle) IsPuzzleComplete(state *engine.GameState) bool {
	occupied := state.OccupiedCells()
	for _, c := range state.Spec.TargetCells() {
		if !occupied.Has(c) {
			return false
		}
	}
	return true
}

// availablePieces lists catalog pieces with inventory remaining, in catalog
// order so hint candidates stay deterministic.
func (b *Bundle) availablePieces(state *engine.GameState) []string {
	var out []string
	for _, id := range b.cat.PieceIDs() {
		if count, ok := state.Inventory[id]; ok && (count > 0 || count == engine.InventoryUnlimited) {
			out = append(out, id)
		}
	}
	return out
}

func decrement(inventory map[string]int, pieceID string) map[string]int {
	out := make(map[string]int, len(inventory))
	for k, v := range inventory {
		out[k] = v
	}
	if count := out[pieceID]; count != engine.InventoryUnlimited {
		out[pieceID] = count - 1
	}
	return out
}
