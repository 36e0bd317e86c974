package ad

// Derivative function objects, built by running the AD flavor of the
// sweeps inside a fresh recording.

import "adtape/value"

// GradientFn records and returns the gradient of f as a new function
// object. f must have a scalar range and an empty dynamic parameter
// domain. The Jacobian of the returned function is the Hessian of f.
func GradientFn[V value.Value[V]](f *Fn[V], x []V) (*Fn[V], error) {
	if len(f.rng) != 1 {
		return nil, shapeMismatch("GradientFn", "range", len(f.rng), 1)
	}
	if f.nDypDom != 0 {
		return nil, shapeMismatch("GradientFn", "dyp domain", f.nDypDom, 0)
	}
	var z V
	_, ax := StartRecording(nil, x)
	_, vBoth, err := f.ForwardVarAD([]AD[V]{}, ax)
	if err != nil {
		stopAbandoned[V]()
		return nil, err
	}
	dx, err := f.ReverseDerAD([]AD[V]{}, vBoth, []AD[V]{Constant(z.One())})
	if err != nil {
		stopAbandoned[V]()
		return nil, err
	}
	return StopRecording(dx), nil
}

// stopAbandoned closes a recording whose range never materialized.
func stopAbandoned[V value.Value[V]]() {
	StopRecording[V](nil)
}
