package ad

// End to end evaluation of recorded functions.

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// f(x) = (x0+x1, x1+x2)
func sumPairs() *Fn[F] {
	return record(nil, []F{1, 2, 3}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Add(ax[1]), ax[1].Add(ax[2])}
	})
}

// f(x) = (x0*x1, x1*x2)
func mulPairs() *Fn[F] {
	return record(nil, []F{1, 2, 3}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Mul(ax[1]), ax[1].Mul(ax[2])}
	})
}

func TestSumPairsSweeps(t *testing.T) {
	f := sumPairs()
	x := []F{1, 2, 3}

	y, vBoth, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)
	require.Equal(t, []F{3, 5}, y)

	dy, err := f.ForwardDer([]F{}, vBoth, []F{4, 5, 6})
	require.NoError(t, err)
	require.Equal(t, []F{9, 11}, dy)

	dx, err := f.ReverseDer([]F{}, vBoth, []F{7, 8})
	require.NoError(t, err)
	require.Equal(t, []F{7, 15, 8}, dx)
}

func TestMulPairsSweeps(t *testing.T) {
	f := mulPairs()
	x := []F{1, 2, 3}

	y, vBoth, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)
	require.Equal(t, []F{2, 6}, y)

	dx, err := f.ReverseDer([]F{}, vBoth, []F{7, 8})
	require.NoError(t, err)
	// (7*x1, 7*x0+8*x2, 8*x1)
	require.Equal(t, []F{14, 31, 16}, dx)
}

func TestSumOfSquares(t *testing.T) {
	const n = 15
	x := make([]F, n)
	for j := range x {
		x[j] = F(j + 1)
	}
	f := record(nil, x, func(_, ax []AD[F]) []AD[F] {
		sum := Constant[F](0)
		for j := range ax {
			sum = sum.Add(ax[j].Mul(ax[j]))
		}
		return []AD[F]{sum}
	})
	y, _, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)
	// 6 * sum_{j=1}^{n} j^2 == 2n^3 + 3n^2 + n, exactly.
	require.Equal(t, F(2*n*n*n+3*n*n+n), y[0].Mul(6))
}

func TestRangeConstantAndDyp(t *testing.T) {
	f := record([]F{7}, []F{1, 2}, func(ap, ax []AD[F]) []AD[F] {
		q := ap[0].Add(ap[0])
		return []AD[F]{ax[0].Add(ax[1]), Constant[F](11), q}
	})
	pBoth, err := f.ForwardDyp([]F{7})
	require.NoError(t, err)
	y, vBoth, err := f.ForwardVar(pBoth, []F{1, 2})
	require.NoError(t, err)
	require.Equal(t, []F{3, 11, 14}, y)

	// Constants and dynamic parameters in the range have zero
	// derivative.
	dy, err := f.ForwardDer(pBoth, vBoth, []F{1, 1})
	require.NoError(t, err)
	require.Equal(t, []F{2, 0, 0}, dy)

	dx, err := f.ReverseDer(pBoth, vBoth, []F{1, 5, 9})
	require.NoError(t, err)
	require.Equal(t, []F{1, 1}, dx)
}

func TestShapeMismatch(t *testing.T) {
	f := sumPairs()
	_, _, err := f.ForwardVar([]F{}, []F{1, 2})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, vBoth, err := f.ForwardVar([]F{}, []F{1, 2, 3})
	require.NoError(t, err)
	_, err = f.ForwardDer([]F{}, vBoth, []F{1})
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = f.ReverseDer([]F{}, vBoth, []F{1, 2, 3})
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = f.ForwardDyp([]F{1})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestDivisionByZero(t *testing.T) {
	f := record(nil, []F{1, 2}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Div(ax[1])}
	})
	y, _, err := f.ForwardVar([]F{}, []F{8, 2})
	require.NoError(t, err)
	require.Equal(t, []F{4}, y)

	_, _, err = f.ForwardVar([]F{}, []F{8, 0})
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestUnaryDerivatives(t *testing.T) {
	x := []F{0.5}
	f := record(nil, x, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{
			ax[0].Neg(),
			ax[0].Exp(),
			ax[0].Sin(),
			ax[0].Cos(),
		}
	})
	y, vBoth, err := f.ForwardVar([]F{}, x)
	require.NoError(t, err)
	require.Equal(t, x[0].Neg(), y[0])
	require.Equal(t, x[0].Exp(), y[1])
	require.Equal(t, x[0].Sin(), y[2])
	require.Equal(t, x[0].Cos(), y[3])

	dy, err := f.ForwardDer([]F{}, vBoth, []F{1})
	require.NoError(t, err)
	require.Equal(t, F(-1), dy[0])
	require.Equal(t, x[0].Exp(), dy[1])
	require.Equal(t, x[0].Cos(), dy[2])
	require.Equal(t, x[0].Sin().Neg(), dy[3])

	// Reverse agrees with forward, one weight at a time.
	for i := 0; i < f.RangeLen(); i++ {
		w := []F{0, 0, 0, 0}
		w[i] = 1
		dx, err := f.ReverseDer([]F{}, vBoth, w)
		require.NoError(t, err)
		require.Equal(t, dy[i], dx[0], "component %d", i)
	}
}

func TestComparisonAsNumber(t *testing.T) {
	x := []F{1, 2}
	f := record(nil, x, func(_, ax []AD[F]) []AD[F] {
		lt := ax[0].NumLt(ax[1])
		ge := ax[0].NumGe(ax[1])
		// Branch-free select: lt*x0 + ge*x1 picks min(x0, x1).
		sel := lt.Mul(ax[0]).Add(ge.Mul(ax[1]))
		return []AD[F]{lt, ge, sel, ax[0].NumLt(ax[1]).NumNot()}
	})
	y, vBoth, err := f.ForwardVar([]F{}, []F{1, 2})
	require.NoError(t, err)
	require.Equal(t, []F{1, 0, 1, 0}, y)

	y, _, err = f.ForwardVar([]F{}, []F{3, 2})
	require.NoError(t, err)
	require.Equal(t, []F{0, 1, 2, 1}, y)

	// The comparison itself carries derivative zero everywhere.
	_, vBoth, err = f.ForwardVar([]F{}, []F{1, 2})
	require.NoError(t, err)
	dy, err := f.ForwardDer([]F{}, vBoth, []F{1, 0})
	require.NoError(t, err)
	require.Equal(t, []F{0, 0, 1, 0}, dy)
}

func TestComparisonAsValue(t *testing.T) {
	// Value on the right-hand side.
	f := record(nil, []F{2}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{
			ax[0].NumLtVal(3),
			ax[0].NumLeVal(2),
			ax[0].NumEqVal(2),
			ax[0].NumNeVal(2),
			ax[0].NumGeVal(3),
			ax[0].NumGtVal(2),
		}
	})
	y, vBoth, err := f.ForwardVar([]F{}, []F{2})
	require.NoError(t, err)
	require.Equal(t, []F{1, 1, 1, 0, 0, 0}, y)

	y, _, err = f.ForwardVar([]F{}, []F{5})
	require.NoError(t, err)
	require.Equal(t, []F{0, 0, 0, 1, 1, 1}, y)

	// The recorded comparisons carry zero derivative.
	_, vBoth, err = f.ForwardVar([]F{}, []F{2})
	require.NoError(t, err)
	dy, err := f.ForwardDer([]F{}, vBoth, []F{1})
	require.NoError(t, err)
	require.Equal(t, []F{0, 0, 0, 0, 0, 0}, dy)

	// Value on the left-hand side.
	g := record(nil, []F{2}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{
			ValNumLt(F(1), ax[0]),
			ValNumLe(F(2), ax[0]),
			ValNumEq(F(2), ax[0]),
			ValNumNe(F(2), ax[0]),
			ValNumGe(F(1), ax[0]),
			ValNumGt(F(1), ax[0]),
		}
	})
	y, _, err = g.ForwardVar([]F{}, []F{2})
	require.NoError(t, err)
	require.Equal(t, []F{1, 1, 1, 0, 0, 0}, y)

	y, _, err = g.ForwardVar([]F{}, []F{0})
	require.NoError(t, err)
	require.Equal(t, []F{0, 0, 0, 1, 1, 1}, y)
}

func TestNestedRecordingBuildsGradientFn(t *testing.T) {
	// f(x) = x0*x0 + x1*x1; g = grad f recorded through the AD
	// flavor of the sweeps.
	x := []F{3, 4}
	f := record(nil, x, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Mul(ax[0]).Add(ax[1].Mul(ax[1]))}
	})

	_, ax := StartRecording(nil, x)
	_, vBoth, err := f.ForwardVarAD([]AD[F]{}, ax)
	require.NoError(t, err)
	dx, err := f.ReverseDerAD([]AD[F]{}, vBoth, []AD[F]{Constant[F](1)})
	require.NoError(t, err)
	g := StopRecording(dx)

	u := []F{5, 7}
	grad, _, err := g.ForwardVar([]F{}, u)
	require.NoError(t, err)
	require.Equal(t, []F{10, 14}, grad)
}

func TestCallbackErrorWraps(t *testing.T) {
	base := errors.New("boom")
	err := callbackErr("atom", base)
	require.ErrorIs(t, err, base)
	require.Contains(t, err.Error(), "atom")
}
