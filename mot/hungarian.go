package mot

import (
	"math"

	"github.com/pkg/errors"
)

// ForbiddenCost marks a cell of integer cost matrix which must never be used as a match.
// No real scaled distance can reach it: NewCentroidTracker rejects maxDistance
// for which maxDistance*CostScale >= ForbiddenCost.
const ForbiddenCost int64 = math.MaxInt32

// CostScale converts distances into integer costs keeping three decimal digits
const CostScale = 1000.0

// HungarianMin solves the minimum-cost assignment problem for square n×n integer
// cost matrix using Kuhn-Munkres with potentials (Jonker-Volgenant flavour).
// It returns assignment where assignment[i] is the column assigned to row i.
// Every row gets a column: forbidden cells can be selected when the matrix
// leaves no other choice, so callers must reject them.
//
// Ties are resolved deterministically: the same matrix always gives the same
// assignment, with rows processed in index order and columns scanned ascending.
func HungarianMin(cost [][]int64) ([]int, error) {
	n := len(cost)
	if n == 0 {
		return []int{}, nil
	}
	for i := range cost {
		if len(cost[i]) != n {
			return nil, errors.Wrapf(ErrAssociation, "cost matrix is not square: row %d has %d columns, expected %d", i, len(cost[i]), n)
		}
	}

	// Potentials are bounded by n*ForbiddenCost, so int64 does not overflow here
	const inf = math.MaxInt64 / 4

	u := make([]int64, n+1) // Row potentials
	v := make([]int64, n+1) // Column potentials
	p := make([]int, n+1)   // p[j] = row assigned to column j (1-indexed, 0 = none)
	way := make([]int, n+1) // way[j] = previous column in augmenting path
	minv := make([]int64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= n; j++ {
			minv[j] = inf
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := int64(inf)
			j1 := -1
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				return nil, errors.Wrapf(ErrAssociation, "no augmenting path for row %d", i-1)
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		// Augment along the path
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assignment := make([]int, n)
	for j := 1; j <= n; j++ {
		assignment[p[j]-1] = j - 1
	}
	return assignment, nil
}

// padSquare returns a dim×dim copy of rows×cols matrix where dim = max(rows, cols).
// Dummy rows and columns are filled with ForbiddenCost.
func padSquare(cost [][]int64, rows, cols int) [][]int64 {
	dim := maxInt(rows, cols)
	padded := make([][]int64, dim)
	for i := 0; i < dim; i++ {
		padded[i] = make([]int64, dim)
		for j := 0; j < dim; j++ {
			if i < rows && j < cols {
				padded[i][j] = cost[i][j]
			} else {
				padded[i][j] = ForbiddenCost
			}
		}
	}
	return padded
}

// quantizeDistance turns distance into integer cost, or ForbiddenCost if distance exceeds the gate
func quantizeDistance(distance, maxDistance float64) int64 {
	if distance > maxDistance || math.IsNaN(distance) {
		return ForbiddenCost
	}
	return int64(math.Round(distance * CostScale))
}
