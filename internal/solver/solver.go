// Package solver implements the solvability oracle: an exact-cover decision
// procedure that determines whether the remaining empty target cells can be
// exactly partitioned by the remaining piece inventory.
//
// The search picks the most constrained empty cell first (fewest geometric
// fits), prunes every branch whose stranded regions fail the mod-4 test, and
// honors context cancellation by reporting an unknown verdict rather than an
// answer.
package solver

import (
	"context"
	"time"

	"github.com/ABakker30/koospuzzlev1-sub002/internal/catalog"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/fitfind"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

// Unlimited is the inventory sentinel for a piece with no count limit.
const Unlimited = -1

// Verdict is the oracle's answer.
type Verdict string

const (
	// VerdictSolvable means a complete tiling of the empty cells exists.
	VerdictSolvable Verdict = "solvable"

	// VerdictUnsolvable means no complete tiling exists.
	VerdictUnsolvable Verdict = "unsolvable"

	// VerdictUnknown means the search was cut off (timeout/cancellation)
	// before reaching a definitive answer.
	VerdictUnknown Verdict = "unknown"
)

// Stats reports search effort for observability.
type Stats struct {
	Nodes    int
	Duration time.Duration
}

// Oracle answers solvability questions against a fixed catalog.
type Oracle struct {
	cat    *catalog.Catalog
	finder *fitfind.Finder
}

// New creates an oracle over the given catalog.
func New(cat *catalog.Catalog) *Oracle {
	return &Oracle{cat: cat, finder: fitfind.New(cat)}
}

// search carries the mutable state of one solvability query.
type search struct {
	oracle    *Oracle
	spec      *lattice.PuzzleSpec
	occupied  lattice.CellSet
	empty     lattice.CellSet
	inventory map[string]int
	pieceIDs  []string
	nodes     int
	aborted   bool
}

// Solvable decides whether the container can still be completed from the
// given occupancy and inventory. Inventory maps piece id to remaining count,
// with Unlimited (-1) meaning no limit; pieces absent from the map are
// treated as unavailable.
func (o *Oracle) Solvable(ctx context.Context, spec *lattice.PuzzleSpec, occupied lattice.CellSet, inventory map[string]int) (Verdict, Stats) {
	start := time.Now()

	empty := spec.Targets()
	for c := range occupied {
		empty.Remove(c)
	}

	s := &search{
		oracle:    o,
		spec:      spec,
		occupied:  occupied.Clone(),
		empty:     empty,
		inventory: cloneInventory(inventory),
	}
	for _, id := range o.cat.PieceIDs() {
		if count, ok := s.inventory[id]; ok && (count > 0 || count == Unlimited) {
			s.pieceIDs = append(s.pieceIDs, id)
		}
	}

	solved := s.run(ctx)
	stats := Stats{Nodes: s.nodes, Duration: time.Since(start)}
	switch {
	case s.aborted:
		return VerdictUnknown, stats
	case solved:
		return VerdictSolvable, stats
	default:
		return VerdictUnsolvable, stats
	}
}

func (s *search) run(ctx context.Context) bool {
	if len(s.empty) == 0 {
		return true
	}
	if !lattice.AllRegionsDivisibleBy4(s.empty) {
		return false
	}
	return s.step(ctx)
}

func (s *search) step(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		s.aborted = true
		return false
	default:
	}
	s.nodes++

	if len(s.empty) == 0 {
		return true
	}

	fits, ok := s.mostConstrainedCellFits()
	if !ok {
		// Some empty cell admits no placement at all.
		return false
	}

	for _, fit := range fits {
		s.place(fit)
		viable := lattice.AllRegionsDivisibleBy4(s.empty)
		if viable && s.step(ctx) {
			s.unplace(fit)
			return true
		}
		s.unplace(fit)
		if s.aborted {
			return false
		}
	}
	return false
}

// mostConstrainedCellFits finds the empty cell with the fewest available
// placements and returns those placements. Returns ok=false when a cell has
// none, which proves the current branch dead.
func (s *search) mostConstrainedCellFits() ([]fitfind.Placement, bool) {
	available := s.availablePieces()
	var best []fitfind.Placement
	found := false
	for _, cell := range s.empty.Cells() {
		fits := s.oracle.finder.FitsAt(s.spec, s.occupied, cell, available)
		if len(fits) == 0 {
			return nil, false
		}
		if !found || len(fits) < len(best) {
			best = fits
			found = true
			if len(best) == 1 {
				break
			}
		}
	}
	return best, found
}

func (s *search) availablePieces() []string {
	out := make([]string, 0, len(s.pieceIDs))
	for _, id := range s.pieceIDs {
		if count := s.inventory[id]; count > 0 || count == Unlimited {
			out = append(out, id)
		}
	}
	return out
}

func (s *search) place(fit fitfind.Placement) {
	for _, c := range fit.Cells {
		s.occupied.Add(c)
		s.empty.Remove(c)
	}
	if count := s.inventory[fit.PieceID]; count != Unlimited {
		s.inventory[fit.PieceID] = count - 1
	}
}

func (s *search) unplace(fit fitfind.Placement) {
	for _, c := range fit.Cells {
		s.occupied.Remove(c)
		s.empty.Add(c)
	}
	if count := s.inventory[fit.PieceID]; count != Unlimited {
		s.inventory[fit.PieceID] = count + 1
	}
}

func cloneInventory(inv map[string]int) map[string]int {
	out := make(map[string]int, len(inv))
	for k, v := range inv {
		out[k] = v
	}
	return out
}
