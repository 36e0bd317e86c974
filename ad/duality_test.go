package ad

// Quantified derivative properties: forward/reverse duality and
// linearity of the forward sweep.

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// composite builds a function mixing every differentiable operator
// family.
func composite() *Fn[F] {
	x := []F{0.7, 1.3, -0.4}
	return record(nil, x, func(_, ax []AD[F]) []AD[F] {
		a := ax[0].Mul(ax[1]).Add(ax[2].Sin())
		b := ax[1].Exp().Div(ax[0].AddVal(2))
		c := a.Sub(b.Cos()).Mul(ax[2].Neg())
		return []AD[F]{a, b, c}
	})
}

func dot(a, b []F) F {
	sum := F(0)
	for i := range a {
		sum = sum.Add(a[i].Mul(b[i]))
	}
	return sum
}

func TestForwardReverseDuality(t *testing.T) {
	f := composite()
	x := []F{0.7, 1.3, -0.4}
	_, vBoth, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)

	directions := [][2][]F{
		{{1, 0, 0}, {1, 1, 1}},
		{{0.5, -2, 3}, {2, 0, -1}},
		{{1, 1, 1}, {0, 0.25, 4}},
	}
	for _, d := range directions {
		dx, dy := d[0], d[1]
		fwd, err := f.ForwardDer([]F{}, vBoth, dx)
		require.NoError(t, err)
		rev, err := f.ReverseDer([]F{}, vBoth, dy)
		require.NoError(t, err)
		// <dy, F'dx> == <F'^T dy, dx>
		require.InDelta(t, float64(dot(dy, fwd)), float64(dot(rev, dx)), 1e-12)
	}
}

func TestForwardDerLinearity(t *testing.T) {
	f := composite()
	x := []F{0.7, 1.3, -0.4}
	_, vBoth, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)

	dx1 := []F{1, -1, 2}
	dx2 := []F{0.5, 3, 0}
	a, b := F(2), F(-0.25)

	mixed := make([]F, len(dx1))
	for j := range mixed {
		mixed[j] = a.Mul(dx1[j]).Add(b.Mul(dx2[j]))
	}
	dyMixed, err := f.ForwardDer([]F{}, vBoth, mixed)
	require.NoError(t, err)
	dy1, err := f.ForwardDer([]F{}, vBoth, dx1)
	require.NoError(t, err)
	dy2, err := f.ForwardDer([]F{}, vBoth, dx2)
	require.NoError(t, err)

	for i := range dyMixed {
		want := a.Mul(dy1[i]).Add(b.Mul(dy2[i]))
		require.InDelta(t, float64(want), float64(dyMixed[i]), 1e-12)
	}
}
