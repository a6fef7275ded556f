// Package fitfind implements the geometric fit finder: given a container,
// the currently occupied cells, and an anchor cell, it enumerates every
// placement of the requested pieces that covers the anchor.
package fitfind

import (
	"strings"

	"github.com/ABakker30/koospuzzlev1-sub002/internal/catalog"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

// Placement is one geometric placement candidate.
type Placement struct {
	PieceID       string
	OrientationID string
	Cells         []lattice.Cell // sorted, len == catalog.PieceCells
}

// Finder enumerates placements against a fixed orientation catalog.
type Finder struct {
	cat *catalog.Catalog
}

// New creates a finder over the given catalog.
func New(cat *catalog.Catalog) *Finder {
	return &Finder{cat: cat}
}

// FitsAt returns every placement of the given pieces that covers the anchor
// cell, lies fully inside the container, and overlaps no occupied cell.
//
// Results are deterministic: pieces in the order given, orientations in
// catalog order, and duplicate cell coverings of the same piece collapsed to
// their first occurrence. Returns nil if the anchor is outside the container
// or already occupied.
func (f *Finder) FitsAt(spec *lattice.PuzzleSpec, occupied lattice.CellSet, anchor lattice.Cell, pieceIDs []string) []Placement {
	if !spec.Contains(anchor) || occupied.Has(anchor) {
		return nil
	}

	var out []Placement
	for _, pieceID := range pieceIDs {
		seen := make(map[string]struct{})
		for _, orient := range f.cat.Orientations(pieceID) {
			// Try each cell of the orientation as the one landing on the anchor.
			for _, covering := range orient.Offsets {
				base := anchor.Sub(covering)
				cells, ok := f.placeAt(spec, occupied, orient, base)
				if !ok {
					continue
				}
				key := cellsKey(cells)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, Placement{
					PieceID:       pieceID,
					OrientationID: orient.ID,
					Cells:         cells,
				})
			}
		}
	}
	return out
}

// placeAt materializes an orientation at the given base translation,
// returning false if any cell leaves the container or hits an occupied cell.
func (f *Finder) placeAt(spec *lattice.PuzzleSpec, occupied lattice.CellSet, orient catalog.Orientation, base lattice.Cell) ([]lattice.Cell, bool) {
	cells := orient.Cells(base)
	for _, c := range cells {
		if !spec.Contains(c) || occupied.Has(c) {
			return nil, false
		}
	}
	lattice.SortCells(cells)
	return cells, true
}

func cellsKey(cells []lattice.Cell) string {
	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = c.Key()
	}
	return strings.Join(keys, "|")
}
