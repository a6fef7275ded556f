// Package catalog implements the orientation catalog: per piece id, the
// cell-offset patterns representing its valid orientations. Orientations are
// generated by applying the 24 proper cubic rotations to a piece's base
// offsets, normalizing each image to a canonical anchored form, and
// de-duplicating symmetric results.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

// PieceCells is the fixed number of lattice cells every piece covers.
const PieceCells = 4

// Orientation is one concrete rotation variant of a piece, expressed as
// offsets from an anchor at the origin.
type Orientation struct {
	ID      string                  // unique within the catalog, e.g. "T-o3"
	PieceID string                  // owning piece
	Offsets [PieceCells]lattice.Cell // canonical: sorted, smallest offset at origin
}

// Cells returns the absolute cells covered when the orientation is anchored
// at the given cell.
func (o Orientation) Cells(anchor lattice.Cell) []lattice.Cell {
	cells := make([]lattice.Cell, PieceCells)
	for i, off := range o.Offsets {
		cells[i] = anchor.Add(off)
	}
	return cells
}

// PieceDef defines a piece by its base cell offsets.
type PieceDef struct {
	ID    string
	Cells [PieceCells]lattice.Cell
}

// Catalog holds the pieces and their precomputed orientations.
type Catalog struct {
	ids          []string
	orientations map[string][]Orientation
	byID         map[string]Orientation
}

// New builds a catalog from piece definitions. Each piece must have a unique
// non-empty id and 4 distinct, lattice-connected cells.
func New(defs ...PieceDef) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog requires at least one piece")
	}
	c := &Catalog{
		orientations: make(map[string][]Orientation, len(defs)),
		byID:         make(map[string]Orientation),
	}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("piece id cannot be empty")
		}
		if _, exists := c.orientations[def.ID]; exists {
			return nil, fmt.Errorf("duplicate piece id %q", def.ID)
		}
		if err := validateShape(def); err != nil {
			return nil, fmt.Errorf("piece %q: %w", def.ID, err)
		}
		orients := enumerateOrientations(def)
		c.ids = append(c.ids, def.ID)
		c.orientations[def.ID] = orients
		for _, o := range orients {
			c.byID[o.ID] = o
		}
	}
	sort.Strings(c.ids)
	return c, nil
}

// PieceIDs returns all piece ids in sorted order.
func (c *Catalog) PieceIDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// HasPiece reports whether the catalog contains the piece.
func (c *Catalog) HasPiece(pieceID string) bool {
	_, ok := c.orientations[pieceID]
	return ok
}

// Orientations returns the distinct orientations of a piece, or nil for an
// unknown piece id.
func (c *Catalog) Orientations(pieceID string) []Orientation {
	return c.orientations[pieceID]
}

// Orientation looks up a single orientation by its id.
func (c *Catalog) Orientation(orientationID string) (Orientation, bool) {
	o, ok := c.byID[orientationID]
	return o, ok
}

// validateShape checks that a piece's cells are distinct and connected under
// lattice adjacency.
func validateShape(def PieceDef) error {
	set := lattice.NewCellSet(def.Cells[:]...)
	if len(set) != PieceCells {
		return fmt.Errorf("cells must be %d distinct lattice positions", PieceCells)
	}
	if regions := lattice.Regions(set); len(regions) != 1 {
		return fmt.Errorf("cells must form a single connected shape, got %d components", len(regions))
	}
	return nil
}

// enumerateOrientations applies every proper rotation to the base cells,
// normalizes each image, and keeps one representative per distinct shape.
func enumerateOrientations(def PieceDef) []Orientation {
	seen := make(map[string]struct{})
	var out []Orientation
	for _, m := range properRotations {
		var img [PieceCells]lattice.Cell
		for i, c := range def.Cells {
			img[i] = m.transform(c)
		}
		norm := normalize(img)
		key := shapeKey(norm)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Orientation{
			ID:      fmt.Sprintf("%s-o%d", def.ID, len(out)),
			PieceID: def.ID,
			Offsets: norm,
		})
	}
	return out
}

// normalize sorts the cells and translates them so the smallest sits at the
// origin, giving every congruent image the same representation.
func normalize(cells [PieceCells]lattice.Cell) [PieceCells]lattice.Cell {
	sorted := cells[:]
	lattice.SortCells(sorted)
	base := sorted[0]
	var out [PieceCells]lattice.Cell
	for i, c := range sorted {
		out[i] = c.Sub(base)
	}
	return out
}

func shapeKey(cells [PieceCells]lattice.Cell) string {
	keys := make([]string, PieceCells)
	for i, c := range cells {
		keys[i] = c.Key()
	}
	return strings.Join(keys, "|")
}
