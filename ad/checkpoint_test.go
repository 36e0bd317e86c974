package ad

// Checkpoints: recorded functions used as atomic operators.

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckpointSimple(t *testing.T) {
	// f(x) = (x0+x1, x1*x2)
	f := record(nil, []F{1, 2, 3}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Add(ax[1]), ax[1].Mul(ax[2])}
	})
	id, err := Checkpoint(f, "f", Forward|Reverse)
	require.NoError(t, err)

	// g(u) = f(u0, u0+u1, u1) = (u0+u0+u1, (u0+u1)*u1)
	u := []F{4, 5}
	_, au := StartRecording(nil, u)
	ax := []AD[F]{au[0], au[0].Add(au[1]), au[1]}
	ay, err := CallAtom(ax, id, 0)
	require.NoError(t, err)
	g := StopRecording(ay)

	w, _, err := g.ForwardVar([]F{}, u)
	require.NoError(t, err)
	require.Equal(t, []F{13, 45}, w)
}

func TestCheckpointConstantInRange(t *testing.T) {
	f := record(nil, []F{1, 2, 3}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Add(ax[1]), ax[1].Mul(ax[2]), Constant[F](11)}
	})
	id, err := Checkpoint(f, "f_const_range", Forward|Reverse)
	require.NoError(t, err)

	u := []F{4, 5}
	_, au := StartRecording(nil, u)
	ax := []AD[F]{au[0], au[0].Add(au[1]), au[1]}
	ay, err := CallAtom(ax, id, 0)
	require.NoError(t, err)
	g := StopRecording(ay)

	w, _, err := g.ForwardVar([]F{}, u)
	require.NoError(t, err)
	require.Equal(t, []F{13, 45, 11}, w)
}

func TestCheckpointDerivatives(t *testing.T) {
	// f(x) = (x0+x1, x1*x2), checkpointed inside
	// g(u) = f(u0, u0+u1, u1).
	f := record(nil, []F{1, 2, 3}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Add(ax[1]), ax[1].Mul(ax[2])}
	})
	id, err := Checkpoint(f, "f_der", Forward|Reverse)
	require.NoError(t, err)

	u := []F{4, 5}
	_, au := StartRecording(nil, u)
	ax := []AD[F]{au[0], au[0].Add(au[1]), au[1]}
	ay, err := CallAtom(ax, id, 0)
	require.NoError(t, err)
	g := StopRecording(ay)

	_, vBoth, err := g.ForwardVar([]F{}, u)
	require.NoError(t, err)

	// w0 = 2*u0 + u1, w1 = (u0+u1)*u1:
	// dw0 = (2, 1), dw1 = (u1, u0+2*u1)
	dx, err := g.ReverseDer([]F{}, vBoth, []F{1, 0})
	require.NoError(t, err)
	require.Equal(t, []F{2, 1}, dx)
	dx, err = g.ReverseDer([]F{}, vBoth, []F{0, 1})
	require.NoError(t, err)
	require.Equal(t, []F{5, 14}, dx)

	dy, err := g.ForwardDer([]F{}, vBoth, []F{1, 0})
	require.NoError(t, err)
	require.Equal(t, []F{2, 5}, dy)
}

func TestCheckpointMissingDirection(t *testing.T) {
	f := record(nil, []F{1}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Mul(ax[0])}
	})
	id, err := Checkpoint(f, "forward_only_cp", Forward)
	require.NoError(t, err)

	x := []F{2}
	_, ax := StartRecording(nil, x)
	ay, err := CallAtom(ax, id, 0)
	require.NoError(t, err)
	g := StopRecording(ay)

	_, vBoth, err := g.ForwardVar([]F{}, x)
	require.NoError(t, err)

	// The forward direction was registered...
	dy, err := g.ForwardDer([]F{}, vBoth, []F{1})
	require.NoError(t, err)
	require.Equal(t, []F{4}, dy)

	// ...the reverse direction was not.
	_, err = g.ReverseDer([]F{}, vBoth, []F{1})
	var missing *MissingCallbackError
	require.ErrorAs(t, err, &missing)
}

func TestCheckpointRejectsDynamicParameters(t *testing.T) {
	f := record([]F{1}, []F{2}, func(ap, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Add(ap[0])}
	})
	_, err := Checkpoint(f, "with_dyp", Forward)
	require.Error(t, err)
}

func TestCheckpointNested(t *testing.T) {
	// A checkpoint used from an AD sweep of another recording: the
	// AD flavor of its slots must be present.
	f := record(nil, []F{1}, func(_, ax []AD[F]) []AD[F] {
		return []AD[F]{ax[0].Mul(ax[0])}
	})
	id, err := Checkpoint(f, "nested_cp", Forward|Reverse)
	require.NoError(t, err)

	x := []F{3}
	_, ax := StartRecording(nil, x)
	ay, err := CallAtom(ax, id, 0)
	require.NoError(t, err)
	g := StopRecording(ay)

	// Record the gradient of g; the call's AD reverse slot runs.
	_, ax = StartRecording(nil, x)
	_, vBoth, err := g.ForwardVarAD([]AD[F]{}, ax)
	require.NoError(t, err)
	dx, err := g.ReverseDerAD([]AD[F]{}, vBoth, []AD[F]{Constant[F](1)})
	require.NoError(t, err)
	h := StopRecording(dx)

	grad, _, err := h.ForwardVar([]F{}, []F{7})
	require.NoError(t, err)
	require.Equal(t, []F{14}, grad)
}
