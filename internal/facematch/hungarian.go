package facematch

import "math"

// hungarianAssign returns the (row, col) pairs of a maximum-cardinality
// assignment with the highest total score among those. Edges with noEdge
// are never returned.
//
// Every edge weighs k + score with k larger than the largest possible
// assignment, so one extra match always outweighs any score difference.
func hungarianAssign(scores [][]float64, cols int) [][2]int {
	rows := len(scores)
	if rows == 0 || cols == 0 {
		return nil
	}

	k := float64(min(rows, cols)) + 1
	top := k + 1 // above any edge weight

	n := max(rows, cols)
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			weight := 0.0
			if i < rows && j < cols && scores[i][j] != noEdge {
				weight = k + scores[i][j]
			}
			cost[i][j] = top - weight
		}
	}

	var pairs [][2]int
	for i, j := range solveAssignment(cost) {
		if i < rows && j < cols && scores[i][j] != noEdge {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}

// solveAssignment is the O(n³) Hungarian method with potentials on a square
// cost matrix. It returns the column assigned to each row.
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) // p[j]: row matched to column j, 1-based, 0 = free
	way := make([]int, n+1)

	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
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

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assignment := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			assignment[p[j]-1] = j - 1
		}
	}
	return assignment
}
