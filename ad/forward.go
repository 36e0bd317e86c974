package ad

// Forward sweeps over the operation sequence, in value and AD
// flavors. The AD flavor runs the same loops over AD elements, so its
// arithmetic records onto the goroutine's live tape; this is how
// derivative functions of recorded functions are themselves recorded.

// ForwardDyp evaluates the dynamic parameter sub-tape. The result is
// the dynamic parameter domain followed by every dependent dynamic
// parameter; it is the pBoth argument of the other sweeps.
func (f *Fn[V]) ForwardDyp(p []V) ([]V, error) {
	if len(p) != f.nDypDom {
		return nil, shapeMismatch("ForwardDyp", "p", len(p), f.nDypDom)
	}
	var z V
	pBoth := make([]V, f.nDyp)
	copy(pBoth, p)
	for i := f.nDypDom; i < f.nDyp; i++ {
		pBoth[i] = z.NaN()
	}
	infos := opInfoVec[V]()
	for k := 0; k < f.dypOpCount; k++ {
		err := infos[f.op[k]].forward0(
			pBoth, pBoth, f.cop, f.flag, f.argsOf(k), f.dypResOf(k))
		if err != nil {
			return nil, err
		}
	}
	return pBoth, nil
}

// ForwardVar evaluates the variable sub-tape at x. It returns the
// range values together with the full variable vector, which the
// derivative sweeps take as scratch input.
func (f *Fn[V]) ForwardVar(pBoth, x []V) (y, vBoth []V, err error) {
	if len(pBoth) != f.nDyp {
		return nil, nil, shapeMismatch("ForwardVar", "pBoth", len(pBoth), f.nDyp)
	}
	if len(x) != f.nVarDom {
		return nil, nil, shapeMismatch("ForwardVar", "x", len(x), f.nVarDom)
	}
	var z V
	vBoth = make([]V, f.nVar)
	copy(vBoth, x)
	for i := f.nVarDom; i < f.nVar; i++ {
		vBoth[i] = z.NaN()
	}
	infos := opInfoVec[V]()
	for k := f.dypOpCount; k < len(f.op); k++ {
		err := infos[f.op[k]].forward0(
			vBoth, pBoth, f.cop, f.flag, f.argsOf(k), f.varResOf(k))
		if err != nil {
			return nil, nil, err
		}
	}
	y = make([]V, len(f.rng))
	for i, a := range f.rng {
		switch a.Kind() {
		case KindVar:
			y[i] = vBoth[a.Index()]
		case KindDyp:
			y[i] = pBoth[a.Index()]
		default:
			y[i] = f.cop[a.Index()]
		}
	}
	return y, vBoth, nil
}

// ForwardDer evaluates the directional derivative along dx, reading
// the zero order values from a prior ForwardVar.
func (f *Fn[V]) ForwardDer(pBoth, vBoth, dx []V) ([]V, error) {
	if len(pBoth) != f.nDyp {
		return nil, shapeMismatch("ForwardDer", "pBoth", len(pBoth), f.nDyp)
	}
	if len(vBoth) != f.nVar {
		return nil, shapeMismatch("ForwardDer", "vBoth", len(vBoth), f.nVar)
	}
	if len(dx) != f.nVarDom {
		return nil, shapeMismatch("ForwardDer", "dx", len(dx), f.nVarDom)
	}
	var z V
	der := make([]V, f.nVar)
	copy(der, dx)
	for i := f.nVarDom; i < f.nVar; i++ {
		der[i] = z.Zero()
	}
	infos := opInfoVec[V]()
	for k := f.dypOpCount; k < len(f.op); k++ {
		err := infos[f.op[k]].forward1(
			der, vBoth, pBoth, f.cop, f.flag, f.argsOf(k), f.varResOf(k))
		if err != nil {
			return nil, err
		}
	}
	dy := make([]V, len(f.rng))
	for i, a := range f.rng {
		if a.Kind() == KindVar {
			dy[i] = der[a.Index()]
		} else {
			dy[i] = z.Zero()
		}
	}
	return dy, nil
}

// The AD flavor of the sweeps above.

// ForwardDypAD is ForwardDyp over AD elements.
func (f *Fn[V]) ForwardDypAD(p []AD[V]) ([]AD[V], error) {
	if len(p) != f.nDypDom {
		return nil, shapeMismatch("ForwardDypAD", "p", len(p), f.nDypDom)
	}
	var z V
	pBoth := make([]AD[V], f.nDyp)
	copy(pBoth, p)
	for i := f.nDypDom; i < f.nDyp; i++ {
		pBoth[i] = Constant(z.NaN())
	}
	infos := opInfoVec[V]()
	for k := 0; k < f.dypOpCount; k++ {
		err := infos[f.op[k]].forward0AD(
			pBoth, pBoth, f.cop, f.flag, f.argsOf(k), f.dypResOf(k))
		if err != nil {
			return nil, err
		}
	}
	return pBoth, nil
}

// ForwardVarAD is ForwardVar over AD elements.
func (f *Fn[V]) ForwardVarAD(pBoth, x []AD[V]) (y, vBoth []AD[V], err error) {
	if len(pBoth) != f.nDyp {
		return nil, nil, shapeMismatch("ForwardVarAD", "pBoth", len(pBoth), f.nDyp)
	}
	if len(x) != f.nVarDom {
		return nil, nil, shapeMismatch("ForwardVarAD", "x", len(x), f.nVarDom)
	}
	var z V
	vBoth = make([]AD[V], f.nVar)
	copy(vBoth, x)
	for i := f.nVarDom; i < f.nVar; i++ {
		vBoth[i] = Constant(z.NaN())
	}
	infos := opInfoVec[V]()
	for k := f.dypOpCount; k < len(f.op); k++ {
		err := infos[f.op[k]].forward0AD(
			vBoth, pBoth, f.cop, f.flag, f.argsOf(k), f.varResOf(k))
		if err != nil {
			return nil, nil, err
		}
	}
	y = make([]AD[V], len(f.rng))
	for i, a := range f.rng {
		switch a.Kind() {
		case KindVar:
			y[i] = vBoth[a.Index()]
		case KindDyp:
			y[i] = pBoth[a.Index()]
		default:
			y[i] = Constant(f.cop[a.Index()])
		}
	}
	return y, vBoth, nil
}

// ForwardDerAD is ForwardDer over AD elements.
func (f *Fn[V]) ForwardDerAD(pBoth, vBoth, dx []AD[V]) ([]AD[V], error) {
	if len(pBoth) != f.nDyp {
		return nil, shapeMismatch("ForwardDerAD", "pBoth", len(pBoth), f.nDyp)
	}
	if len(vBoth) != f.nVar {
		return nil, shapeMismatch("ForwardDerAD", "vBoth", len(vBoth), f.nVar)
	}
	if len(dx) != f.nVarDom {
		return nil, shapeMismatch("ForwardDerAD", "dx", len(dx), f.nVarDom)
	}
	var z V
	der := make([]AD[V], f.nVar)
	copy(der, dx)
	for i := f.nVarDom; i < f.nVar; i++ {
		der[i] = Constant(z.Zero())
	}
	infos := opInfoVec[V]()
	for k := f.dypOpCount; k < len(f.op); k++ {
		err := infos[f.op[k]].forward1AD(
			der, vBoth, pBoth, f.cop, f.flag, f.argsOf(k), f.varResOf(k))
		if err != nil {
			return nil, err
		}
	}
	dy := make([]AD[V], len(f.rng))
	for i, a := range f.rng {
		if a.Kind() == KindVar {
			dy[i] = der[a.Index()]
		} else {
			dy[i] = Constant(z.Zero())
		}
	}
	return dy, nil
}
