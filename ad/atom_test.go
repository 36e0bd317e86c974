package ad

// Atomic functions embedded in recordings.

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// sumsqAtom registers an atomic function computing the scalar
// sum of squares of its domain.
func sumsqAtom(t *testing.T) int {
	t.Helper()
	return RegisterAtom(Callback[F]{
		Name: "sumsq",
		ForwardFun: func(domain []F, _ int) ([]F, error) {
			sum := F(0)
			for _, v := range domain {
				sum = sum.Add(v.Mul(v))
			}
			return []F{sum}, nil
		},
		ForwardDer: func(domain, der []F, _ int) ([]F, error) {
			sum := F(0)
			for j, v := range domain {
				sum = sum.Add(F(2).Mul(v).Mul(der[j]))
			}
			return []F{sum}, nil
		},
		ReverseDer: func(domain, weight []F, _ int) ([]F, error) {
			adj := make([]F, len(domain))
			for j, v := range domain {
				adj[j] = F(2).Mul(v).Mul(weight[0])
			}
			return adj, nil
		},
		RevDepend: func(_, nArg int, _ int) ([]int, error) {
			deps := make([]int, nArg)
			for j := range deps {
				deps[j] = j
			}
			return deps, nil
		},
	})
}

func TestAtomSumsqCalledTwice(t *testing.T) {
	id := sumsqAtom(t)
	x := []F{1, 2, 3, 4}
	_, ax := StartRecording(nil, x)
	s1, err := CallAtom(ax[:2], id, 0)
	require.NoError(t, err)
	s2, err := CallAtom(ax[2:], id, 0)
	require.NoError(t, err)
	f := StopRecording([]AD[F]{s1[0].Add(s2[0])})

	y, vBoth, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)
	require.Equal(t, []F{30}, y)

	// reverse_der with dy=(1) yields 2x.
	dx, err := f.ReverseDer([]F{}, vBoth, []F{1})
	require.NoError(t, err)
	require.Equal(t, []F{2, 4, 6, 8}, dx)

	// forward agrees: directional derivative along e_j is 2*x_j.
	dy, err := f.ForwardDer([]F{}, vBoth, []F{1, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, []F{2}, dy)
}

func TestAtomConstantArgumentsFold(t *testing.T) {
	id := sumsqAtom(t)
	// Outside a recording, a call is evaluated eagerly.
	out, err := CallAtom([]AD[F]{Constant[F](3), Constant[F](4)}, id, 0)
	require.NoError(t, err)
	require.Equal(t, F(25), out[0].Value())
}

func TestAtomMultiResult(t *testing.T) {
	// An atomic identity with two results, so a call is followed by
	// one placeholder operator.
	id := RegisterAtom(Callback[F]{
		Name: "pair",
		ForwardFun: func(domain []F, _ int) ([]F, error) {
			return []F{domain[0], domain[1]}, nil
		},
		ForwardDer: func(_, der []F, _ int) ([]F, error) {
			return []F{der[0], der[1]}, nil
		},
		ReverseDer: func(_, weight []F, _ int) ([]F, error) {
			return []F{weight[0], weight[1]}, nil
		},
	})
	x := []F{5, 6}
	_, ax := StartRecording(nil, x)
	w, err := CallAtom(ax, id, 0)
	require.NoError(t, err)
	f := StopRecording([]AD[F]{w[1], w[0]})

	require.Equal(t, OpCall, f.OpAt(0))
	require.Equal(t, OpCallRes, f.OpAt(1))

	y, vBoth, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)
	require.Equal(t, []F{6, 5}, y)

	dx, err := f.ReverseDer([]F{}, vBoth, []F{1, 10})
	require.NoError(t, err)
	require.Equal(t, []F{10, 1}, dx)
}

func TestAtomMissingCallback(t *testing.T) {
	id := RegisterAtom(Callback[F]{
		Name: "forward_only",
		ForwardFun: func(domain []F, _ int) ([]F, error) {
			return []F{domain[0]}, nil
		},
	})
	x := []F{2}
	_, ax := StartRecording(nil, x)
	w, err := CallAtom(ax, id, 0)
	require.NoError(t, err)
	f := StopRecording(w)

	_, vBoth, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)
	_, err = f.ReverseDer([]F{}, vBoth, []F{1})
	var missing *MissingCallbackError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "ReverseDer", missing.Slot)
}

func TestAtomCallbackErrorPropagates(t *testing.T) {
	id := RegisterAtom(Callback[F]{
		Name: "flaky",
		ForwardFun: func(domain []F, _ int) ([]F, error) {
			if domain[0].IsZero() {
				return nil, errors.New("domain[0] is zero")
			}
			return []F{domain[0]}, nil
		},
	})
	x := []F{2}
	_, ax := StartRecording(nil, x)
	w, err := CallAtom(ax, id, 0)
	require.NoError(t, err)
	f := StopRecording(w)

	_, _, err = f.ForwardVar([]F{}, []F{0})
	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	require.Contains(t, cbErr.Error(), "domain[0] is zero")
}

func TestCallsOnBothSubTapes(t *testing.T) {
	// One call lands on the dynamic parameter sub-tape, a second on
	// the variable sub-tape; the concatenated sequence must keep both
	// calls' flag blocks straight.
	id := RegisterAtom(Callback[F]{
		Name: "double",
		ForwardFun: func(domain []F, _ int) ([]F, error) {
			out := make([]F, len(domain))
			for i, v := range domain {
				out[i] = v.Add(v)
			}
			return out, nil
		},
	})
	p := []F{3}
	x := []F{5}
	ap, ax := StartRecording(p, x)
	aq, err := CallAtom(ap, id, 0) // dyp sub-tape
	require.NoError(t, err)
	aw, err := CallAtom([]AD[F]{ax[0], aq[0]}, id, 0) // var sub-tape
	require.NoError(t, err)
	f := StopRecording([]AD[F]{aw[0], aw[1]})
	f.checkInvariants()

	pBoth, err := f.ForwardDyp(p)
	require.NoError(t, err)
	y, _, err := f.ForwardVar(pBoth, x)
	require.NoError(t, err)
	require.Equal(t, []F{10, 12}, y)
}

func TestAtomCallInfoReachesCallback(t *testing.T) {
	id := RegisterAtom(Callback[F]{
		Name: "scale_by_info",
		ForwardFun: func(domain []F, callInfo int) ([]F, error) {
			return []F{domain[0].Mul(F(callInfo))}, nil
		},
	})
	x := []F{3}
	_, ax := StartRecording(nil, x)
	w, err := CallAtom(ax, id, 4)
	require.NoError(t, err)
	f := StopRecording(w)

	y, _, err := f.ForwardVar([]F{}, []F{5})
	require.NoError(t, err)
	require.Equal(t, []F{20}, y)
}
