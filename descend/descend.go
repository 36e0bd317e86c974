// Package descend drives gradient descent over a recorded scalar
// function.
package descend

import (
	"github.com/pkg/errors"

	"adtape/ad"
	"adtape/value"
)

// SGD is gradient descent with momentum. The function's range must
// have exactly one component; dynamic parameters are fixed for the
// whole run.
type SGD[V value.Value[V]] struct {
	// Parameters
	Steps int     // number of steps
	Eta   float32 // learning rate
	Alpha float32 // momentum (0 is plain gradient descent)
}

// Run descends from x and returns the final point. The gradient is
// evaluated with a reverse sweep at every step.
func (s *SGD[V]) Run(f *ad.Fn[V], p, x []V) ([]V, error) {
	s.setDefaults()
	if f.RangeLen() != 1 {
		return nil, errors.Errorf(
			"descend: function has %d range components, want 1",
			f.RangeLen())
	}
	var z V
	eta := z.FromFloat32(s.Eta)
	keep := z.FromFloat32(s.Alpha)
	one := []V{z.One()}

	pBoth, err := f.ForwardDyp(p)
	if err != nil {
		return nil, err
	}
	cur := make([]V, len(x))
	copy(cur, x)
	r := make([]V, len(x))
	for j := range r {
		r[j] = z.Zero()
	}
	for step := 0; step < s.Steps; step++ {
		_, vBoth, err := f.ForwardVar(pBoth, cur)
		if err != nil {
			return nil, err
		}
		grad, err := f.ReverseDer(pBoth, vBoth, one)
		if err != nil {
			return nil, err
		}
		for j := range cur {
			r[j] = r[j].Mul(keep).Add(eta.Mul(grad[j]))
			cur[j] = cur[j].Sub(r[j])
		}
	}
	return cur, nil
}

// setDefaults sets the default value for auxiliary parameters.
func (s *SGD[V]) setDefaults() {
	if s.Steps == 0 {
		s.Steps = 100
	}
	if s.Eta == 0 {
		s.Eta = 0.1
	}
}
