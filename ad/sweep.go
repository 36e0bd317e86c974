package ad

// Sweep callbacks for the built-in arithmetic operators. Each callback
// is written once, generic over the evaluation element type E: plain V
// for value sweeps, AD[V] for sweeps that record onto a new tape.

import (
	"github.com/pkg/errors"

	"adtape/value"
)

// num is the arithmetic surface a sweep element must provide. Both V
// and AD[V] satisfy it.
type num[E any] interface {
	Add(E) E
	Sub(E) E
	Mul(E) E
	Div(E) E
	Neg() E
	Exp() E
	Sin() E
	Cos() E
	Less(E) bool
	Equal(E) bool
	IsZero() bool
}

// evalSet bundles what a callback needs to run over element type E:
// a lift from the constant pool's value type and the zero and one
// elements.
type evalSet[V value.Value[V], E num[E]] struct {
	lift func(V) E
	zero E
	one  E
}

// operand resolves a tagged address against the executing sub-tape's
// pools.
func (s evalSet[V, E]) operand(varv, dypv []E, cop []V, a Addr) E {
	switch a.Kind() {
	case KindVar:
		return varv[a.Index()]
	case KindDyp:
		return dypv[a.Index()]
	default:
		return s.lift(cop[a.Index()])
	}
}

// operandDer resolves the partial of an operand; only variables carry
// derivatives.
func (s evalSet[V, E]) operandDer(der []E, a Addr) E {
	if a.Kind() == KindVar {
		return der[a.Index()]
	}
	return s.zero
}

// bump accumulates an adjoint contribution into a variable operand.
func (s evalSet[V, E]) bump(der []E, a Addr, w E) {
	if a.Kind() == KindVar {
		der[a.Index()] = der[a.Index()].Add(w)
	}
}

// Addition

func (s evalSet[V, E]) addForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	lhs := s.operand(varv, dypv, cop, arg[0])
	rhs := s.operand(varv, dypv, cop, arg[1])
	varv[res] = lhs.Add(rhs)
	return nil
}

func (s evalSet[V, E]) addForward1(
	der []E, _, _ []E, _ []V, _ []bool, arg []Addr, res int) error {
	der[res] = s.operandDer(der, arg[0]).Add(s.operandDer(der, arg[1]))
	return nil
}

func (s evalSet[V, E]) addReverse1(
	der []E, _, _ []E, _ []V, _ []bool, arg []Addr, res int) error {
	a := der[res]
	s.bump(der, arg[0], a)
	s.bump(der, arg[1], a)
	return nil
}

// Subtraction

func (s evalSet[V, E]) subForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	lhs := s.operand(varv, dypv, cop, arg[0])
	rhs := s.operand(varv, dypv, cop, arg[1])
	varv[res] = lhs.Sub(rhs)
	return nil
}

func (s evalSet[V, E]) subForward1(
	der []E, _, _ []E, _ []V, _ []bool, arg []Addr, res int) error {
	der[res] = s.operandDer(der, arg[0]).Sub(s.operandDer(der, arg[1]))
	return nil
}

func (s evalSet[V, E]) subReverse1(
	der []E, _, _ []E, _ []V, _ []bool, arg []Addr, res int) error {
	a := der[res]
	s.bump(der, arg[0], a)
	s.bump(der, arg[1], a.Neg())
	return nil
}

// Multiplication

func (s evalSet[V, E]) mulForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	lhs := s.operand(varv, dypv, cop, arg[0])
	rhs := s.operand(varv, dypv, cop, arg[1])
	varv[res] = lhs.Mul(rhs)
	return nil
}

func (s evalSet[V, E]) mulForward1(
	der []E, varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	lhs := s.operand(varv, dypv, cop, arg[0])
	rhs := s.operand(varv, dypv, cop, arg[1])
	dl := s.operandDer(der, arg[0])
	dr := s.operandDer(der, arg[1])
	der[res] = dl.Mul(rhs).Add(lhs.Mul(dr))
	return nil
}

func (s evalSet[V, E]) mulReverse1(
	der []E, varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	lhs := s.operand(varv, dypv, cop, arg[0])
	rhs := s.operand(varv, dypv, cop, arg[1])
	a := der[res]
	s.bump(der, arg[0], a.Mul(rhs))
	s.bump(der, arg[1], a.Mul(lhs))
	return nil
}

// Division

func (s evalSet[V, E]) divForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	lhs := s.operand(varv, dypv, cop, arg[0])
	rhs := s.operand(varv, dypv, cop, arg[1])
	if rhs.IsZero() {
		return errors.Wrap(ErrDivisionByZero, "div forward zero")
	}
	varv[res] = lhs.Div(rhs)
	return nil
}

func (s evalSet[V, E]) divForward1(
	der []E, varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	rhs := s.operand(varv, dypv, cop, arg[1])
	if rhs.IsZero() {
		return errors.Wrap(ErrDivisionByZero, "div forward one")
	}
	dl := s.operandDer(der, arg[0])
	dr := s.operandDer(der, arg[1])
	// d(l/r) = (dl - (l/r)*dr) / r, reusing the zero order result.
	der[res] = dl.Sub(varv[res].Mul(dr)).Div(rhs)
	return nil
}

func (s evalSet[V, E]) divReverse1(
	der []E, varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	rhs := s.operand(varv, dypv, cop, arg[1])
	if rhs.IsZero() {
		return errors.Wrap(ErrDivisionByZero, "div reverse one")
	}
	a := der[res]
	ax := a.Div(rhs)
	s.bump(der, arg[0], ax)
	s.bump(der, arg[1], ax.Mul(varv[res]).Neg())
	return nil
}

// Unary operators

func (s evalSet[V, E]) negForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	varv[res] = s.operand(varv, dypv, cop, arg[0]).Neg()
	return nil
}

func (s evalSet[V, E]) negForward1(
	der []E, _, _ []E, _ []V, _ []bool, arg []Addr, res int) error {
	der[res] = s.operandDer(der, arg[0]).Neg()
	return nil
}

func (s evalSet[V, E]) negReverse1(
	der []E, _, _ []E, _ []V, _ []bool, arg []Addr, res int) error {
	s.bump(der, arg[0], der[res].Neg())
	return nil
}

func (s evalSet[V, E]) expForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	varv[res] = s.operand(varv, dypv, cop, arg[0]).Exp()
	return nil
}

func (s evalSet[V, E]) expForward1(
	der []E, varv, _ []E, _ []V, _ []bool, arg []Addr, res int) error {
	der[res] = s.operandDer(der, arg[0]).Mul(varv[res])
	return nil
}

func (s evalSet[V, E]) expReverse1(
	der []E, varv, _ []E, _ []V, _ []bool, arg []Addr, res int) error {
	s.bump(der, arg[0], der[res].Mul(varv[res]))
	return nil
}

func (s evalSet[V, E]) sinForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	varv[res] = s.operand(varv, dypv, cop, arg[0]).Sin()
	return nil
}

func (s evalSet[V, E]) sinForward1(
	der []E, varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	x := s.operand(varv, dypv, cop, arg[0])
	der[res] = s.operandDer(der, arg[0]).Mul(x.Cos())
	return nil
}

func (s evalSet[V, E]) sinReverse1(
	der []E, varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	x := s.operand(varv, dypv, cop, arg[0])
	s.bump(der, arg[0], der[res].Mul(x.Cos()))
	return nil
}

func (s evalSet[V, E]) cosForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	varv[res] = s.operand(varv, dypv, cop, arg[0]).Cos()
	return nil
}

func (s evalSet[V, E]) cosForward1(
	der []E, varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	x := s.operand(varv, dypv, cop, arg[0])
	der[res] = s.operandDer(der, arg[0]).Mul(x.Sin()).Neg()
	return nil
}

func (s evalSet[V, E]) cosReverse1(
	der []E, varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	x := s.operand(varv, dypv, cop, arg[0])
	s.bump(der, arg[0], der[res].Mul(x.Sin()).Neg())
	return nil
}

// zeroForward1 and zeroReverse1 serve operators whose derivative is
// identically zero (the comparison family).

func (s evalSet[V, E]) zeroForward1(
	der []E, _, _ []E, _ []V, _ []bool, _ []Addr, res int) error {
	der[res] = s.zero
	return nil
}

func (s evalSet[V, E]) zeroReverse1(
	_ []E, _, _ []E, _ []V, _ []bool, _ []Addr, _ int) error {
	return nil
}

// cmp evaluates one comparison as the number one or zero.
func (s evalSet[V, E]) cmp(op OpID, lhs, rhs E) E {
	var truth bool
	switch op {
	case OpLt:
		truth = lhs.Less(rhs)
	case OpLe:
		truth = !rhs.Less(lhs)
	case OpEq:
		truth = lhs.Equal(rhs)
	case OpNe:
		truth = !lhs.Equal(rhs)
	case OpGe:
		truth = !lhs.Less(rhs)
	case OpGt:
		truth = rhs.Less(lhs)
	default:
		panic("ad: not a comparison operator")
	}
	if truth {
		return s.one
	}
	return s.zero
}

func (s evalSet[V, E]) cmpForward0(op OpID) sweep0Fn[V, E] {
	return func(varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
		lhs := s.operand(varv, dypv, cop, arg[0])
		rhs := s.operand(varv, dypv, cop, arg[1])
		varv[res] = s.cmp(op, lhs, rhs)
		return nil
	}
}

func (s evalSet[V, E]) notForward0(
	varv, dypv []E, cop []V, _ []bool, arg []Addr, res int) error {
	x := s.operand(varv, dypv, cop, arg[0])
	if x.IsZero() {
		varv[res] = s.one
	} else {
		varv[res] = s.zero
	}
	return nil
}

// Registration

func setBinaryOpInfo[V value.Value[V]](
	infos []opInfo[V], val evalSet[V, V], adf evalSet[V, AD[V]]) {
	families := []struct {
		base OpID
		f0   sweep0Fn[V, V]
		f0ad sweep0Fn[V, AD[V]]
		f1   sweep1Fn[V, V]
		f1ad sweep1Fn[V, AD[V]]
		r1   sweep1Fn[V, V]
		r1ad sweep1Fn[V, AD[V]]
	}{
		{OpAddPP, val.addForward0, adf.addForward0,
			val.addForward1, adf.addForward1, val.addReverse1, adf.addReverse1},
		{OpSubPP, val.subForward0, adf.subForward0,
			val.subForward1, adf.subForward1, val.subReverse1, adf.subReverse1},
		{OpMulPP, val.mulForward0, adf.mulForward0,
			val.mulForward1, adf.mulForward1, val.mulReverse1, adf.mulReverse1},
		{OpDivPP, val.divForward0, adf.divForward0,
			val.divForward1, adf.divForward1, val.divReverse1, adf.divReverse1},
	}
	for _, fam := range families {
		// The four operand-kind variants share callbacks; tagged
		// addresses resolve each operand at sweep time.
		for off := OpID(0); off < 4; off++ {
			id := fam.base + off
			infos[id] = opInfo[V]{
				name:        id.Name(),
				forward0:    fam.f0,
				forward0AD:  fam.f0ad,
				forward1:    fam.f1,
				forward1AD:  fam.f1ad,
				reverse1:    fam.r1,
				reverse1AD:  fam.r1ad,
				argVarIndex: tagVarIndex,
			}
		}
	}
}

func setUnaryOpInfo[V value.Value[V]](
	infos []opInfo[V], val evalSet[V, V], adf evalSet[V, AD[V]]) {
	unary := []struct {
		id   OpID
		f0   sweep0Fn[V, V]
		f0ad sweep0Fn[V, AD[V]]
		f1   sweep1Fn[V, V]
		f1ad sweep1Fn[V, AD[V]]
		r1   sweep1Fn[V, V]
		r1ad sweep1Fn[V, AD[V]]
	}{
		{OpNeg, val.negForward0, adf.negForward0,
			val.negForward1, adf.negForward1, val.negReverse1, adf.negReverse1},
		{OpExp, val.expForward0, adf.expForward0,
			val.expForward1, adf.expForward1, val.expReverse1, adf.expReverse1},
		{OpSin, val.sinForward0, adf.sinForward0,
			val.sinForward1, adf.sinForward1, val.sinReverse1, adf.sinReverse1},
		{OpCos, val.cosForward0, adf.cosForward0,
			val.cosForward1, adf.cosForward1, val.cosReverse1, adf.cosReverse1},
	}
	for _, u := range unary {
		infos[u.id] = opInfo[V]{
			name:        u.id.Name(),
			forward0:    u.f0,
			forward0AD:  u.f0ad,
			forward1:    u.f1,
			forward1AD:  u.f1ad,
			reverse1:    u.r1,
			reverse1AD:  u.r1ad,
			argVarIndex: tagVarIndex,
		}
	}
}

func setCompareOpInfo[V value.Value[V]](
	infos []opInfo[V], val evalSet[V, V], adf evalSet[V, AD[V]]) {
	for _, id := range []OpID{OpLt, OpLe, OpEq, OpNe, OpGe, OpGt} {
		id := id
		infos[id] = opInfo[V]{
			name:     id.Name(),
			forward0: val.cmpForward0(id),
			// The AD flavor re-records the comparison so the new
			// tape keeps the branch-free conditional.
			forward0AD: func(varv, dypv []AD[V], cop []V, _ []bool,
				arg []Addr, res int) error {
				lhs := adf.operand(varv, dypv, cop, arg[0])
				rhs := adf.operand(varv, dypv, cop, arg[1])
				varv[res] = numCompare(id, lhs, rhs)
				return nil
			},
			forward1:    val.zeroForward1,
			forward1AD:  adf.zeroForward1,
			reverse1:    val.zeroReverse1,
			reverse1AD:  adf.zeroReverse1,
			argVarIndex: tagVarIndex,
		}
	}
	infos[OpNot] = opInfo[V]{
		name:     OpNot.Name(),
		forward0: val.notForward0,
		forward0AD: func(varv, dypv []AD[V], cop []V, _ []bool,
			arg []Addr, res int) error {
			x := adf.operand(varv, dypv, cop, arg[0])
			varv[res] = x.NumNot()
			return nil
		},
		forward1:    val.zeroForward1,
		forward1AD:  adf.zeroForward1,
		reverse1:    val.zeroReverse1,
		reverse1AD:  adf.zeroReverse1,
		argVarIndex: tagVarIndex,
	}
}
