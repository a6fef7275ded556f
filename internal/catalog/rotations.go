package catalog

import "github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"

// matrix is an integer 3x3 rotation matrix. The lattice adjacency offsets are
// the permutations of (±1, ±1, 0), a set closed under signed axis
// permutations, so every matrix here maps lattice neighbors to lattice
// neighbors.
type matrix [3][3]int

func (m matrix) transform(c lattice.Cell) lattice.Cell {
	return lattice.Cell{
		I: m[0][0]*c.I + m[0][1]*c.J + m[0][2]*c.K,
		J: m[1][0]*c.I + m[1][1]*c.J + m[1][2]*c.K,
		K: m[2][0]*c.I + m[2][1]*c.J + m[2][2]*c.K,
	}
}

func (m matrix) determinant() int {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// properRotations holds the 24 signed axis permutations with determinant +1:
// the full proper rotation group of the cubic lattice. Reflections (det -1)
// are excluded; physical pieces cannot be mirrored.
var properRotations = buildProperRotations()

func buildProperRotations() []matrix {
	perms := [][3]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	var out []matrix
	for _, perm := range perms {
		for signs := 0; signs < 8; signs++ {
			var m matrix
			for row := 0; row < 3; row++ {
				sign := 1
				if signs&(1<<row) != 0 {
					sign = -1
				}
				m[row][perm[row]] = sign
			}
			if m.determinant() == 1 {
				out = append(out, m)
			}
		}
	}
	return out
}
