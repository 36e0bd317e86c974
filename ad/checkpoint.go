package ad

// Checkpoints: a recorded function re-packaged as an atomic operator,
// so it occupies a single call in any new recording instead of being
// spliced in operator by operator.

import (
	"sync"

	"github.com/pkg/errors"

	"adtape/value"
)

// Direction selects which derivative sweeps a checkpoint supports.
type Direction int

const (
	// Forward enables the forward derivative slots.
	Forward Direction = 1 << iota
	// Reverse enables the reverse derivative slots.
	Reverse
)

// Checkpoint registers f as an atomic function and returns the atom
// id for CallAtom. The zero order slots always delegate to f's
// forward sweep; the derivative slots are registered only for the
// listed directions, so a sweep needing an absent direction fails
// with a MissingCallbackError.
//
// f must have an empty dynamic parameter domain.
func Checkpoint[V value.Value[V]](f *Fn[V], name string, dir Direction) (int, error) {
	if f.nDypDom != 0 {
		return 0, errors.Errorf(
			"ad: checkpoint %q: function has %d dynamic parameters",
			name, f.nDypDom)
	}
	noDyp := []V{}
	noDypAD := []AD[V]{}

	// The dependency pattern is computed once, on first use by the
	// optimizer.
	pattern := sync.OnceValue(func() map[int][]int {
		deps := map[int][]int{}
		for _, e := range f.SubSparsity() {
			deps[e[0]] = append(deps[e[0]], e[1])
		}
		return deps
	})

	cb := Callback[V]{
		Name: name,
		ForwardFun: func(domain []V, _ int) ([]V, error) {
			y, _, err := f.ForwardVar(noDyp, domain)
			return y, err
		},
		ForwardFunAD: func(domain []AD[V], _ int) ([]AD[V], error) {
			y, _, err := f.ForwardVarAD(noDypAD, domain)
			return y, err
		},
		RevDepend: func(resIndex, _ int, _ int) ([]int, error) {
			return pattern()[resIndex], nil
		},
	}
	if dir&Forward != 0 {
		cb.ForwardDer = func(domain, der []V, _ int) ([]V, error) {
			_, vBoth, err := f.ForwardVar(noDyp, domain)
			if err != nil {
				return nil, err
			}
			return f.ForwardDer(noDyp, vBoth, der)
		}
		cb.ForwardDerAD = func(domain, der []AD[V], _ int) ([]AD[V], error) {
			_, vBoth, err := f.ForwardVarAD(noDypAD, domain)
			if err != nil {
				return nil, err
			}
			return f.ForwardDerAD(noDypAD, vBoth, der)
		}
	}
	if dir&Reverse != 0 {
		cb.ReverseDer = func(domain, weight []V, _ int) ([]V, error) {
			_, vBoth, err := f.ForwardVar(noDyp, domain)
			if err != nil {
				return nil, err
			}
			return f.ReverseDer(noDyp, vBoth, weight)
		}
		cb.ReverseDerAD = func(domain, weight []AD[V], _ int) ([]AD[V], error) {
			_, vBoth, err := f.ForwardVarAD(noDypAD, domain)
			if err != nil {
				return nil, err
			}
			return f.ReverseDerAD(noDypAD, vBoth, weight)
		}
	}
	return RegisterAtom(cb), nil
}
