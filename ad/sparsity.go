package ad

// Jacobian sparsity: the backward subgraph method, the forward
// set-union method, and compressed sparse evaluation driven by a
// partial-distance-2 coloring.

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"adtape/sparse"
)

// SubSparsity computes a Jacobian sparsity pattern with the subgraph
// method: one backward depth-first walk per variable range component,
// with a per-row visited mark so work stays linear in the subgraph.
//
// The pattern is a dependency pattern: an entry (i, j) means range
// component i may depend on domain component j; an absent entry means
// the derivative is structurally zero.
func (f *Fn[V]) SubSparsity() sparse.Pattern {
	infos := opInfoVec[V]()
	done := make([]int, f.nVar)
	for i := range done {
		done[i] = -1
	}
	var pattern sparse.Pattern
	var stack []int
	for row, a := range f.rng {
		if a.Kind() != KindVar {
			continue
		}
		stack = append(stack[:0], a.Index())
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if done[idx] == row {
				continue
			}
			done[idx] = row
			if idx < f.nVarDom {
				pattern = append(pattern, [2]int{row, idx})
				continue
			}
			k := f.dypOpCount + (idx - f.nVarDom)
			stack = append(stack,
				infos[f.op[k]].argVarIndex(f.flag, f.argsOf(k))...)
		}
	}
	return pattern
}

// vecSet is a store of integer sets with shared identity: equal sets
// get equal ids. Sets are kept sorted; dedup goes through a hash of
// the elements.
type vecSet struct {
	sets  [][]int
	byKey map[uint64][]int
}

func newVecSet() *vecSet {
	return &vecSet{byKey: map[uint64][]int{}}
}

func hashElems(elems []int) uint64 {
	var h xxhash.Digest
	h.Reset()
	var b [8]byte
	for _, e := range elems {
		binary.LittleEndian.PutUint64(b[:], uint64(e))
		h.Write(b[:])
	}
	return h.Sum64()
}

// intern returns the id of the sorted element list, storing it if new.
func (s *vecSet) intern(elems []int) int {
	key := hashElems(elems)
	for _, id := range s.byKey[key] {
		if equalInts(s.sets[id], elems) {
			return id
		}
	}
	id := len(s.sets)
	stored := make([]int, len(elems))
	copy(stored, elems)
	s.sets = append(s.sets, stored)
	s.byKey[key] = append(s.byKey[key], id)
	return id
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *vecSet) singleton(j int) int { return s.intern([]int{j}) }

// union merges the identified sets into one deduplicated set.
func (s *vecSet) union(ids []int) int {
	switch len(ids) {
	case 0:
		return s.intern(nil)
	case 1:
		return ids[0]
	}
	var merged []int
	for _, id := range ids {
		merged = mergeSorted(merged, s.sets[id])
	}
	return s.intern(merged)
}

func (s *vecSet) elems(id int) []int { return s.sets[id] }

func mergeSorted(a, b []int) []int {
	if len(a) == 0 {
		out := make([]int, len(b))
		copy(out, b)
		return out
	}
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// ForSparsity computes the same dependency pattern as SubSparsity by
// forward propagation: every variable carries the set of domain
// indices it depends on, with equal sets shared through the store.
func (f *Fn[V]) ForSparsity() sparse.Pattern {
	infos := opInfoVec[V]()
	store := newVecSet()
	setID := make([]int, f.nVar)
	for j := 0; j < f.nVarDom; j++ {
		setID[j] = store.singleton(j)
	}
	var ids []int
	for k := f.dypOpCount; k < len(f.op); k++ {
		op := f.op[k]
		if op == OpCallRes {
			// Covered by the owning call operator.
			continue
		}
		res := f.varResOf(k)
		args := infos[op].argVarIndex(f.flag, f.argsOf(k))
		ids = ids[:0]
		for _, j := range args {
			ids = append(ids, setID[j])
		}
		id := store.union(ids)
		if op == OpCall {
			for j := 0; j < f.callVarResCount(k); j++ {
				setID[res+j] = id
			}
		} else {
			setID[res] = id
		}
	}
	var pattern sparse.Pattern
	for row, a := range f.rng {
		if a.Kind() != KindVar {
			continue
		}
		for _, j := range store.elems(setID[a.Index()]) {
			pattern = append(pattern, [2]int{row, j})
		}
	}
	return pattern
}

// ForSparseJac recovers the pattern's Jacobian entries with one
// forward directional sweep per color: the seed direction is one on
// every domain component of the color and zero elsewhere, and the
// resulting range direction is scattered into the rows of the
// pattern. color comes from sparse.Coloring over the same pattern.
func (f *Fn[V]) ForSparseJac(
	pBoth, vBoth []V, pattern sparse.Pattern, color []int,
) ([]V, error) {
	if len(color) != f.nVarDom {
		return nil, shapeMismatch("ForSparseJac", "color", len(color), f.nVarDom)
	}
	var z V
	jac := make([]V, len(pattern))
	for ell := range jac {
		jac[ell] = z.Zero()
	}
	nColor := sparse.NumColors(color, f.nVarDom)
	dx := make([]V, f.nVarDom)
	for k := 0; k < nColor; k++ {
		for j := range dx {
			if color[j] == k {
				dx[j] = z.One()
			} else {
				dx[j] = z.Zero()
			}
		}
		dy, err := f.ForwardDer(pBoth, vBoth, dx)
		if err != nil {
			return nil, err
		}
		for ell, e := range pattern {
			if color[e[1]] == k {
				jac[ell] = dy[e[0]]
			}
		}
	}
	return jac, nil
}

// RevSparseJac is the reverse mode analogue. pattern is a sparsity
// pattern for the transpose of the Jacobian (entries are
// (domain, range) pairs) and color colors the range components.
func (f *Fn[V]) RevSparseJac(
	pBoth, vBoth []V, pattern sparse.Pattern, color []int,
) ([]V, error) {
	m := len(f.rng)
	if len(color) != m {
		return nil, shapeMismatch("RevSparseJac", "color", len(color), m)
	}
	var z V
	jac := make([]V, len(pattern))
	for ell := range jac {
		jac[ell] = z.Zero()
	}
	nColor := sparse.NumColors(color, m)
	dy := make([]V, m)
	for k := 0; k < nColor; k++ {
		for i := range dy {
			if color[i] == k {
				dy[i] = z.One()
			} else {
				dy[i] = z.Zero()
			}
		}
		dx, err := f.ReverseDer(pBoth, vBoth, dy)
		if err != nil {
			return nil, err
		}
		for ell, e := range pattern {
			if color[e[1]] == k {
				jac[ell] = dx[e[0]]
			}
		}
	}
	return jac, nil
}
