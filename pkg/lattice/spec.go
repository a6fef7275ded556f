package lattice

import "fmt"

// PuzzleSpec is the immutable container geometry: the fixed set of target
// cells that must be fully covered for completion. Created once per game and
// never mutated afterwards.
type PuzzleSpec struct {
	name    string
	targets CellSet
}

// NewPuzzleSpec builds a container from the given target cells.
// Returns an error if the container is empty or its size is not a multiple
// of 4 (such a container could never be tiled by 4-cell pieces).
func NewPuzzleSpec(name string, cells []Cell) (*PuzzleSpec, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("puzzle spec %q has no target cells", name)
	}
	targets := NewCellSet(cells...)
	if len(targets) != len(cells) {
		return nil, fmt.Errorf("puzzle spec %q contains duplicate cells", name)
	}
	if len(targets)%4 != 0 {
		return nil, fmt.Errorf("puzzle spec %q has %d cells: not a multiple of 4", name, len(targets))
	}
	return &PuzzleSpec{name: name, targets: targets}, nil
}

// Name returns the container's display name.
func (p *PuzzleSpec) Name() string { return p.name }

// Size returns the number of target cells.
func (p *PuzzleSpec) Size() int { return len(p.targets) }

// Contains reports whether the cell is a target cell of the container.
func (p *PuzzleSpec) Contains(c Cell) bool { return p.targets.Has(c) }

// Targets returns a copy of the target cell set. Callers may mutate the
// returned set freely; the spec itself stays immutable.
func (p *PuzzleSpec) Targets() CellSet { return p.targets.Clone() }

// TargetCells returns the target cells in canonical sorted order.
func (p *PuzzleSpec) TargetCells() []Cell { return p.targets.Cells() }
