package sparse

// Coloring computes a greedy partial-distance-2 coloring for the
// columns of an m by n sparsity pattern.
//
// pattern holds every (i, j) entry that may be nonzero; subPattern is
// the subset of pattern whose values are wanted. The result has one
// color per column. Columns that appear in no subPattern entry get the
// sentinel color n; all other colors are assigned densely starting at
// zero, in ascending column order.
//
// If color[j1] == color[j2] for j1 != j2, then no row i has both
// (i, j1) and (i, j2) in subPattern, so one directional sweep per
// color recovers every wanted entry.
//
// Reference: the GreedyPartialD2Coloring algorithm, section 3.6.2 of
// "Graph Coloring in Optimization Revisited" by Gebremedhin, Manne and
// Pothen, restricted here to the requested subset.
func Coloring(m, n int, pattern, subPattern Pattern) []int {
	colOrder, colBegin := colIndex(n, pattern)
	rowOrder, rowBegin := rowIndex(m, subPattern)

	inSub := make([]bool, n)
	for _, e := range subPattern {
		inSub[e[1]] = true
	}

	color := make([]int, n)
	for j := range color {
		color[j] = n
	}

	forbidden := make([]bool, n)
	nColor := 0
	for j := 0; j < n; j++ {
		if !inSub[j] {
			continue
		}
		for k := 0; k < nColor; k++ {
			forbidden[k] = false
		}
		// A color is forbidden when an earlier column of that color
		// shares a subPattern row with any pattern row of column j.
		for _, ell := range colOrder[colBegin[j]:colBegin[j+1]] {
			i := pattern[ell][0]
			if i >= m {
				continue
			}
			for _, p := range rowOrder[rowBegin[i]:rowBegin[i+1]] {
				j1 := subPattern[p][1]
				if j1 < j && color[j1] < n {
					forbidden[color[j1]] = true
				}
			}
		}
		k := 0
		for k < nColor && forbidden[k] {
			k++
		}
		color[j] = k
		if k == nColor {
			nColor++
		}
	}
	return color
}

// NumColors returns the number of colors in use, ignoring the
// sentinel value n.
func NumColors(color []int, n int) int {
	num := 0
	for _, k := range color {
		if k < n && k+1 > num {
			num = k + 1
		}
	}
	return num
}
