package ad

// Sweep callbacks for the call operator.
//
// Argument layout of a call operator:
//
//	arg[0]  atom id
//	arg[1]  call info word
//	arg[2]  number of call arguments (nArg)
//	arg[3]  number of call results (nRes)
//	arg[4]  index of the operator's first boolean flag
//	arg[5:] one tagged address per call argument
//
// The flag block holds nArg booleans ("argument is a variable of this
// sub-tape") followed by nRes booleans ("result is a variable"). A
// call with nVarRes variable results is followed by nVarRes-1
// placeholder operators, each carrying the address of the call's
// first result, so variable indices keep tracking operator indices.

import "adtape/value"

// callSpans decodes a call's flag spans.
func callSpans(flag []bool, arg []Addr) (isArgVar, isResVar []bool) {
	_, _, nArg, nRes, fb := callHeader(arg)
	return flag[fb : fb+nArg], flag[fb+nArg : fb+nArg+nRes]
}

func callArgVarIndex(flag []bool, arg []Addr) []int {
	nArg := int(arg[2])
	var out []int
	for _, a := range arg[5 : 5+nArg] {
		if a.Kind() == KindVar {
			out = append(out, a.Index())
		}
	}
	return out
}

func callResVarIndex(_ []bool, arg []Addr) []int {
	if arg[0].Kind() == KindVar {
		return []int{arg[0].Index()}
	}
	return nil
}

func setCallOpInfo[V value.Value[V]](
	infos []opInfo[V], val evalSet[V, V], adf evalSet[V, AD[V]]) {
	infos[OpCall] = opInfo[V]{
		name: OpCall.Name(),
		forward0: func(varv, dypv []V, cop []V, flag []bool,
			arg []Addr, res int) error {
			return callForward0(val, varv, dypv, cop, flag, arg, res,
				func(cb Callback[V], dom []V, ci int) ([]V, error) {
					if cb.ForwardFun == nil {
						return nil, &MissingCallbackError{cb.Name, "ForwardFun"}
					}
					return cb.ForwardFun(dom, ci)
				})
		},
		forward0AD: func(varv, dypv []AD[V], cop []V, flag []bool,
			arg []Addr, res int) error {
			return callForward0(adf, varv, dypv, cop, flag, arg, res,
				func(cb Callback[V], dom []AD[V], ci int) ([]AD[V], error) {
					if cb.ForwardFunAD == nil {
						return nil, &MissingCallbackError{cb.Name, "ForwardFunAD"}
					}
					return cb.ForwardFunAD(dom, ci)
				})
		},
		forward1: func(der []V, varv, dypv []V, cop []V, flag []bool,
			arg []Addr, res int) error {
			return callForward1(val, der, varv, dypv, cop, flag, arg, res,
				func(cb Callback[V], dom, dd []V, ci int) ([]V, error) {
					if cb.ForwardDer == nil {
						return nil, &MissingCallbackError{cb.Name, "ForwardDer"}
					}
					return cb.ForwardDer(dom, dd, ci)
				})
		},
		forward1AD: func(der []AD[V], varv, dypv []AD[V], cop []V, flag []bool,
			arg []Addr, res int) error {
			return callForward1(adf, der, varv, dypv, cop, flag, arg, res,
				func(cb Callback[V], dom, dd []AD[V], ci int) ([]AD[V], error) {
					if cb.ForwardDerAD == nil {
						return nil, &MissingCallbackError{cb.Name, "ForwardDerAD"}
					}
					return cb.ForwardDerAD(dom, dd, ci)
				})
		},
		reverse1: func(der []V, varv, dypv []V, cop []V, flag []bool,
			arg []Addr, res int) error {
			return callReverse1(val, der, varv, dypv, cop, flag, arg, res,
				func(cb Callback[V], dom, w []V, ci int) ([]V, error) {
					if cb.ReverseDer == nil {
						return nil, &MissingCallbackError{cb.Name, "ReverseDer"}
					}
					return cb.ReverseDer(dom, w, ci)
				})
		},
		reverse1AD: func(der []AD[V], varv, dypv []AD[V], cop []V, flag []bool,
			arg []Addr, res int) error {
			return callReverse1(adf, der, varv, dypv, cop, flag, arg, res,
				func(cb Callback[V], dom, w []AD[V], ci int) ([]AD[V], error) {
					if cb.ReverseDerAD == nil {
						return nil, &MissingCallbackError{cb.Name, "ReverseDerAD"}
					}
					return cb.ReverseDerAD(dom, w, ci)
				})
		},
		argVarIndex: callArgVarIndex,
	}
	infos[OpCallRes] = opInfo[V]{
		name:        OpCallRes.Name(),
		forward0:    nopSweep0[V, V],
		forward0AD:  nopSweep0[V, AD[V]],
		forward1:    nopSweep1[V, V],
		forward1AD:  nopSweep1[V, AD[V]],
		reverse1:    nopSweep1[V, V],
		reverse1AD:  nopSweep1[V, AD[V]],
		argVarIndex: callResVarIndex,
	}
}

func callForward0[V value.Value[V], E num[E]](
	s evalSet[V, E], varv, dypv []E, cop []V, flag []bool,
	arg []Addr, res int,
	invoke func(Callback[V], []E, int) ([]E, error),
) error {
	atomID, callInfo, nArg, _, _ := callHeader(arg)
	_, isResVar := callSpans(flag, arg)
	cb, err := atomByID[V](atomID)
	if err != nil {
		return err
	}
	domain := make([]E, nArg)
	for i, a := range arg[5 : 5+nArg] {
		domain[i] = s.operand(varv, dypv, cop, a)
	}
	out, err := invoke(cb, domain, callInfo)
	if err != nil {
		if _, ok := err.(*MissingCallbackError); ok {
			return err
		}
		return callbackErr(cb.Name, err)
	}
	j := 0
	for i, isVar := range isResVar {
		if isVar {
			varv[res+j] = out[i]
			j++
		}
	}
	return nil
}

func callForward1[V value.Value[V], E num[E]](
	s evalSet[V, E], der []E, varv, dypv []E, cop []V, flag []bool,
	arg []Addr, res int,
	invoke func(Callback[V], []E, []E, int) ([]E, error),
) error {
	atomID, callInfo, nArg, _, _ := callHeader(arg)
	_, isResVar := callSpans(flag, arg)
	cb, err := atomByID[V](atomID)
	if err != nil {
		return err
	}
	domain := make([]E, nArg)
	domDer := make([]E, nArg)
	for i, a := range arg[5 : 5+nArg] {
		domain[i] = s.operand(varv, dypv, cop, a)
		domDer[i] = s.operandDer(der, a)
	}
	out, err := invoke(cb, domain, domDer, callInfo)
	if err != nil {
		if _, ok := err.(*MissingCallbackError); ok {
			return err
		}
		return callbackErr(cb.Name, err)
	}
	j := 0
	for i, isVar := range isResVar {
		if isVar {
			der[res+j] = out[i]
			j++
		}
	}
	return nil
}

func callReverse1[V value.Value[V], E num[E]](
	s evalSet[V, E], der []E, varv, dypv []E, cop []V, flag []bool,
	arg []Addr, res int,
	invoke func(Callback[V], []E, []E, int) ([]E, error),
) error {
	atomID, callInfo, nArg, nRes, _ := callHeader(arg)
	_, isResVar := callSpans(flag, arg)
	cb, err := atomByID[V](atomID)
	if err != nil {
		return err
	}
	domain := make([]E, nArg)
	for i, a := range arg[5 : 5+nArg] {
		domain[i] = s.operand(varv, dypv, cop, a)
	}
	weight := make([]E, nRes)
	j := 0
	for i, isVar := range isResVar {
		if isVar {
			weight[i] = der[res+j]
			j++
		} else {
			weight[i] = s.zero
		}
	}
	adj, err := invoke(cb, domain, weight, callInfo)
	if err != nil {
		if _, ok := err.(*MissingCallbackError); ok {
			return err
		}
		return callbackErr(cb.Name, err)
	}
	for i, a := range arg[5 : 5+nArg] {
		s.bump(der, a, adj[i])
	}
	return nil
}
