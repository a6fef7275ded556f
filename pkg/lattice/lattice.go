// Package lattice provides the three-axis lattice geometry shared by every
// component of the puzzle engine: cell coordinates and their canonical string
// keys, the fixed 12-neighbor adjacency of the face-centered-cubic lattice,
// cell sets, connected-region analysis, and the immutable puzzle container
// specification.
//
// All higher layers (catalog, fit finder, solver, game engine) treat cells as
// opaque values from this package; no other package defines geometry.
package lattice

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Cell is a discrete lattice position. Adjacency between cells is defined by
// the fixed Neighbors offset list, not by coordinate distance.
type Cell struct {
	I int `json:"i"`
	J int `json:"j"`
	K int `json:"k"`
}

// Neighbors is the fixed neighbor-offset list of the face-centered-cubic
// lattice: the 12 permutations of (±1, ±1, 0).
var Neighbors = [12]Cell{
	{I: 1, J: 1, K: 0}, {I: 1, J: -1, K: 0}, {I: -1, J: 1, K: 0}, {I: -1, J: -1, K: 0},
	{I: 1, J: 0, K: 1}, {I: 1, J: 0, K: -1}, {I: -1, J: 0, K: 1}, {I: -1, J: 0, K: -1},
	{I: 0, J: 1, K: 1}, {I: 0, J: 1, K: -1}, {I: 0, J: -1, K: 1}, {I: 0, J: -1, K: -1},
}

// Key returns the canonical string form "i,j,k" used as map keys and in
// serialized snapshots.
func (c Cell) Key() string {
	return fmt.Sprintf("%d,%d,%d", c.I, c.J, c.K)
}

// Add returns the cell translated by the given offset.
func (c Cell) Add(o Cell) Cell {
	return Cell{c.I + o.I, c.J + o.J, c.K + o.K}
}

// Sub returns the offset from o to c.
func (c Cell) Sub(o Cell) Cell {
	return Cell{c.I - o.I, c.J - o.J, c.K - o.K}
}

// Less orders cells lexicographically by (i, j, k).
func (c Cell) Less(o Cell) bool {
	if c.I != o.I {
		return c.I < o.I
	}
	if c.J != o.J {
		return c.J < o.J
	}
	return c.K < o.K
}

// Adjacent reports whether o is one of the 12 lattice neighbors of c.
func (c Cell) Adjacent(o Cell) bool {
	d := o.Sub(c)
	for _, n := range Neighbors {
		if d == n {
			return true
		}
	}
	return false
}

// ParseCell parses the canonical "i,j,k" key form back into a Cell.
func ParseCell(key string) (Cell, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 3 {
		return Cell{}, fmt.Errorf("invalid cell key %q: expected 3 comma-separated integers", key)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Cell{}, fmt.Errorf("invalid cell key %q: %w", key, err)
		}
		v[i] = n
	}
	return Cell{v[0], v[1], v[2]}, nil
}

// SortCells sorts cells in place into canonical lexicographic order.
func SortCells(cells []Cell) {
	sort.Slice(cells, func(a, b int) bool { return cells[a].Less(cells[b]) })
}

// CellSet is a set of lattice cells.
type CellSet map[Cell]struct{}

// NewCellSet builds a set from the given cells.
func NewCellSet(cells ...Cell) CellSet {
	s := make(CellSet, len(cells))
	for _, c := range cells {
		s[c] = struct{}{}
	}
	return s
}

// Has reports set membership.
func (s CellSet) Has(c Cell) bool {
	_, ok := s[c]
	return ok
}

// Add inserts a cell.
func (s CellSet) Add(c Cell) {
	s[c] = struct{}{}
}

// Remove deletes a cell. Removing an absent cell is a no-op.
func (s CellSet) Remove(c Cell) {
	delete(s, c)
}

// Clone returns an independent copy of the set.
func (s CellSet) Clone() CellSet {
	out := make(CellSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Cells returns the members in canonical sorted order.
func (s CellSet) Cells() []Cell {
	out := make([]Cell, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	SortCells(out)
	return out
}

// Intersects reports whether the two sets share any cell.
func (s CellSet) Intersects(o CellSet) bool {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for c := range small {
		if large.Has(c) {
			return true
		}
	}
	return false
}
