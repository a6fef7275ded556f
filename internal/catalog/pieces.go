package catalog

import "github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"

// defaultPieces is the shipped 4-cell piece set. Offsets are expressed in
// lattice coordinates; consecutive cells of each shape differ by one of the
// 12 neighbor offsets.
var defaultPieces = []PieceDef{
	// I: straight chain.
	{ID: "I", Cells: [PieceCells]lattice.Cell{
		{I: 0, J: 0, K: 0}, {I: 1, J: 1, K: 0}, {I: 2, J: 2, K: 0}, {I: 3, J: 3, K: 0},
	}},
	// L: chain with a bent end.
	{ID: "L", Cells: [PieceCells]lattice.Cell{
		{I: 0, J: 0, K: 0}, {I: 1, J: 1, K: 0}, {I: 2, J: 2, K: 0}, {I: 2, J: 1, K: 1},
	}},
	// S: zigzag.
	{ID: "S", Cells: [PieceCells]lattice.Cell{
		{I: 0, J: 0, K: 0}, {I: 1, J: 1, K: 0}, {I: 2, J: 0, K: 0}, {I: 3, J: 1, K: 0},
	}},
	// O: planar parallelogram.
	{ID: "O", Cells: [PieceCells]lattice.Cell{
		{I: 0, J: 0, K: 0}, {I: 1, J: 1, K: 0}, {I: 1, J: 0, K: 1}, {I: 2, J: 1, K: 1},
	}},
	// T: regular tetrahedron, all four cells mutually adjacent.
	{ID: "T", Cells: [PieceCells]lattice.Cell{
		{I: 0, J: 0, K: 0}, {I: 1, J: 1, K: 0}, {I: 1, J: 0, K: 1}, {I: 0, J: 1, K: 1},
	}},
	// Y: planar triangle with an out-of-plane apex.
	{ID: "Y", Cells: [PieceCells]lattice.Cell{
		{I: 0, J: 0, K: 0}, {I: 1, J: 1, K: 0}, {I: 2, J: 0, K: 0}, {I: 1, J: 0, K: 1},
	}},
}

// Default returns the shipped piece catalog. The piece set is validated at
// package init; a malformed default is a programming error.
func Default() *Catalog {
	c, err := New(defaultPieces...)
	if err != nil {
		panic("catalog: invalid default piece set: " + err.Error())
	}
	return c
}
