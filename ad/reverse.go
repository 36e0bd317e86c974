package ad

// Reverse sweep: adjoints of the variable sub-tape.

// ReverseDer evaluates the adjoint of the recorded function with
// range weights dy, reading zero order values from a prior
// ForwardVar. The result is the weighted gradient over the variable
// domain.
func (f *Fn[V]) ReverseDer(pBoth, vBoth, dy []V) ([]V, error) {
	if len(pBoth) != f.nDyp {
		return nil, shapeMismatch("ReverseDer", "pBoth", len(pBoth), f.nDyp)
	}
	if len(vBoth) != f.nVar {
		return nil, shapeMismatch("ReverseDer", "vBoth", len(vBoth), f.nVar)
	}
	if len(dy) != len(f.rng) {
		return nil, shapeMismatch("ReverseDer", "dy", len(dy), len(f.rng))
	}
	var z V
	der := make([]V, f.nVar)
	for i := range der {
		der[i] = z.Zero()
	}
	for i, a := range f.rng {
		if a.Kind() == KindVar {
			der[a.Index()] = der[a.Index()].Add(dy[i])
		}
	}
	infos := opInfoVec[V]()
	for k := len(f.op) - 1; k >= f.dypOpCount; k-- {
		err := infos[f.op[k]].reverse1(
			der, vBoth, pBoth, f.cop, f.flag, f.argsOf(k), f.varResOf(k))
		if err != nil {
			return nil, err
		}
	}
	dx := make([]V, f.nVarDom)
	copy(dx, der[:f.nVarDom])
	return dx, nil
}

// ReverseDerAD is ReverseDer over AD elements.
func (f *Fn[V]) ReverseDerAD(pBoth, vBoth, dy []AD[V]) ([]AD[V], error) {
	if len(pBoth) != f.nDyp {
		return nil, shapeMismatch("ReverseDerAD", "pBoth", len(pBoth), f.nDyp)
	}
	if len(vBoth) != f.nVar {
		return nil, shapeMismatch("ReverseDerAD", "vBoth", len(vBoth), f.nVar)
	}
	if len(dy) != len(f.rng) {
		return nil, shapeMismatch("ReverseDerAD", "dy", len(dy), len(f.rng))
	}
	var z V
	der := make([]AD[V], f.nVar)
	for i := range der {
		der[i] = Constant(z.Zero())
	}
	for i, a := range f.rng {
		if a.Kind() == KindVar {
			der[a.Index()] = der[a.Index()].Add(dy[i])
		}
	}
	infos := opInfoVec[V]()
	for k := len(f.op) - 1; k >= f.dypOpCount; k-- {
		err := infos[f.op[k]].reverse1AD(
			der, vBoth, pBoth, f.cop, f.flag, f.argsOf(k), f.varResOf(k))
		if err != nil {
			return nil, err
		}
	}
	dx := make([]AD[V], f.nVarDom)
	copy(dx, der[:f.nVarDom])
	return dx, nil
}
