package sparse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// The worked coloring case:
//
//	  pattern       subPattern
//	[ 1 0 0 0 0 ]  [ 1 0 0 0 0 ]
//	[ 0 1 0 0 0 ]  [ 0 1 0 0 0 ]
//	[ 1 1 1 0 0 ]  [ 1 1 1 0 0 ]
//	[ 1 1 1 1 1 ]  [ 0 0 0 0 0 ]
func TestColoringSubset(t *testing.T) {
	m, n := 4, 5
	pattern := Pattern{
		{0, 0},
		{1, 1},
		{2, 0}, {2, 1}, {2, 2},
		{3, 0}, {3, 1}, {3, 2}, {3, 3}, {3, 4},
	}
	subPattern := Pattern{
		{0, 0},
		{1, 1},
		{2, 0}, {2, 1}, {2, 2},
	}
	color := Coloring(m, n, pattern, subPattern)
	want := []int{0, 1, 2, n, n}
	if diff := cmp.Diff(want, color); diff != "" {
		t.Errorf("color mismatch (-want +got):\n%s", diff)
	}
	if got := NumColors(color, n); got != 3 {
		t.Errorf("NumColors: got %d, want 3", got)
	}
}

// Bidiagonal pattern f_i depends on x_i and x_{i+1}: two colors suffice.
func TestColoringBidiagonal(t *testing.T) {
	n := 5
	m := n - 1
	var pattern Pattern
	for i := 0; i < m; i++ {
		pattern = append(pattern, [2]int{i, i}, [2]int{i, i + 1})
	}
	color := Coloring(m, n, pattern, pattern)
	if got := NumColors(color, n); got != 2 {
		t.Fatalf("NumColors: got %d, want 2", got)
	}
	checkProper(t, m, n, pattern, pattern, color)
}

// checkProper verifies the partial-distance-2 property: two columns of
// equal color never share a row within subPattern (given the row also
// appears for both columns in pattern).
func checkProper(t *testing.T, m, n int, pattern, subPattern Pattern, color []int) {
	t.Helper()
	inSub := make(map[[2]int]bool, len(subPattern))
	for _, e := range subPattern {
		inSub[e] = true
	}
	byRow := make([][]int, m)
	for _, e := range pattern {
		byRow[e[0]] = append(byRow[e[0]], e[1])
	}
	for i := 0; i < m; i++ {
		for _, j1 := range byRow[i] {
			for _, j2 := range byRow[i] {
				if j1 >= j2 || color[j1] != color[j2] || color[j1] == n {
					continue
				}
				if inSub[[2]int{i, j1}] || inSub[[2]int{i, j2}] {
					t.Errorf("columns %d and %d share color %d and row %d",
						j1, j2, color[j1], i)
				}
			}
		}
	}
}

func TestColoringEmptySub(t *testing.T) {
	color := Coloring(2, 3, Pattern{{0, 0}, {1, 2}}, nil)
	for j, k := range color {
		if k != 3 {
			t.Errorf("column %d: got color %d, want sentinel 3", j, k)
		}
	}
}
