package lattice

// Regions partitions the given set into connected components under the fixed
// 12-neighbor lattice adjacency. Each component is returned in canonical
// sorted order; components themselves are ordered by their smallest cell.
func Regions(cells CellSet) [][]Cell {
	remaining := cells.Clone()
	var regions [][]Cell

	for _, seed := range cells.Cells() {
		if !remaining.Has(seed) {
			continue
		}
		// Flood fill from the seed.
		var region []Cell
		frontier := []Cell{seed}
		remaining.Remove(seed)
		for len(frontier) > 0 {
			c := frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
			region = append(region, c)
			for _, n := range Neighbors {
				next := c.Add(n)
				if remaining.Has(next) {
					remaining.Remove(next)
					frontier = append(frontier, next)
				}
			}
		}
		SortCells(region)
		regions = append(regions, region)
	}
	return regions
}

// AllRegionsDivisibleBy4 reports whether every connected component of the
// given cell set has a size divisible by 4. An empty set trivially passes.
//
// Every piece covers exactly 4 cells, so a stranded region whose size is not
// a multiple of 4 can never be exactly tiled; this is the cheap pre-check
// run before any exact-cover computation is attempted.
func AllRegionsDivisibleBy4(cells CellSet) bool {
	if len(cells)%4 != 0 {
		return false
	}
	for _, region := range Regions(cells) {
		if len(region)%4 != 0 {
			return false
		}
	}
	return true
}
