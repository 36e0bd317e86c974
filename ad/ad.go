// Package ad implements operator-recording automatic differentiation.
//
// A computation is written against the active scalar AD[V]; every
// arithmetic operation both computes its value eagerly and appends an
// operator to the calling goroutine's tape. StopRecording turns the
// tape into an immutable function object Fn[V] which evaluates the
// recorded function and its first-order forward and reverse
// derivatives, embeds other recorded functions as atomic operators,
// computes Jacobian sparsity, and optimizes its operation sequence in
// place.
//
// Three kinds of values live in a recording: constants, dynamic
// parameters (inputs that change between evaluations but carry no
// derivative), and variables. Recording distinguishes them by tagged
// addresses; the result kind of an operation is the maximum of its
// operand kinds.
package ad

import "adtape/value"

// AD acts like V but additionally records the operations applied to
// it. An AD object is a variable (or dynamic parameter) when its tape
// id matches the goroutine's live recording; any other AD object,
// including one left over from an earlier recording, behaves as a
// constant.
type AD[V value.Value[V]] struct {
	value  V
	tapeID uint64
	addr   Addr
}

// Constant wraps a value with no variable information.
func Constant[V value.Value[V]](v V) AD[V] {
	return AD[V]{value: v}
}

// Value returns the value; the variable information is dropped.
func (a AD[V]) Value() V { return a.value }

func (a AD[V]) String() string { return a.value.String() }

// binary families, indexed so that the operand-kind variant can be
// added to the family's PP id.
type family OpID

const (
	famAdd = family(OpAddPP)
	famSub = family(OpSubPP)
	famMul = family(OpMulPP)
	famDiv = family(OpDivPP)
)

func evalBinary[V value.Value[V]](fam family, a, b V) V {
	switch fam {
	case famAdd:
		return a.Add(b)
	case famSub:
		return a.Sub(b)
	case famMul:
		return a.Mul(b)
	default:
		return a.Div(b)
	}
}

// record2 computes a binary operation eagerly and, when the result is
// not a constant, appends the operator to the live tape.
func record2[V value.Value[V]](fam family, lhs, rhs AD[V]) AD[V] {
	v := evalBinary(fam, lhs.value, rhs.value)
	t := liveTape[V]()
	kl := t.kindOf(lhs)
	kr := t.kindOf(rhs)
	kind := maxKind(kl, kr)
	if kind == KindCop {
		return Constant(v)
	}
	id := OpID(fam)
	if kl == kind {
		id += 2
	}
	if kr == kind {
		id++
	}
	st, res := t.result(kind)
	st.push(id, t.addrOf(lhs), t.addrOf(rhs))
	return AD[V]{value: v, tapeID: t.tapeID, addr: res}
}

// record1 is record2 for unary operators.
func record1[V value.Value[V]](id OpID, x AD[V], v V) AD[V] {
	t := liveTape[V]()
	kind := t.kindOf(x)
	if kind == KindCop {
		return Constant(v)
	}
	st, res := t.result(kind)
	st.push(id, t.addrOf(x))
	return AD[V]{value: v, tapeID: t.tapeID, addr: res}
}

// result claims the next slot of the sub-tape matching kind and
// returns the sub-tape together with the slot's address.
func (t *tape[V]) result(kind Kind) (*subTape, Addr) {
	if kind == KindVar {
		res := varAddr(t.nVar)
		t.nVar++
		return &t.vr, res
	}
	res := dypAddr(t.nDyp)
	t.nDyp++
	return &t.dyp, res
}

// Add returns a + b.
func (a AD[V]) Add(b AD[V]) AD[V] { return record2(famAdd, a, b) }

// Sub returns a - b.
func (a AD[V]) Sub(b AD[V]) AD[V] { return record2(famSub, a, b) }

// Mul returns a * b.
func (a AD[V]) Mul(b AD[V]) AD[V] { return record2(famMul, a, b) }

// Div returns a / b. The value follows V's own division; a zero
// divisor only surfaces as an error when a function object sweep
// re-evaluates the operation.
func (a AD[V]) Div(b AD[V]) AD[V] { return record2(famDiv, a, b) }

// AddVal returns a + v; the value is interned as a constant.
func (a AD[V]) AddVal(v V) AD[V] { return a.Add(Constant(v)) }

// SubVal returns a - v.
func (a AD[V]) SubVal(v V) AD[V] { return a.Sub(Constant(v)) }

// MulVal returns a * v.
func (a AD[V]) MulVal(v V) AD[V] { return a.Mul(Constant(v)) }

// DivVal returns a / v.
func (a AD[V]) DivVal(v V) AD[V] { return a.Div(Constant(v)) }

// Compound assignment.

func (a *AD[V]) AddEq(b AD[V]) { *a = a.Add(b) }
func (a *AD[V]) SubEq(b AD[V]) { *a = a.Sub(b) }
func (a *AD[V]) MulEq(b AD[V]) { *a = a.Mul(b) }
func (a *AD[V]) DivEq(b AD[V]) { *a = a.Div(b) }

// Unary operators.

// Neg returns -a.
func (a AD[V]) Neg() AD[V] { return record1(OpNeg, a, a.value.Neg()) }

// Exp returns e**a.
func (a AD[V]) Exp() AD[V] { return record1(OpExp, a, a.value.Exp()) }

// Sin returns sin(a).
func (a AD[V]) Sin() AD[V] { return record1(OpSin, a, a.value.Sin()) }

// Cos returns cos(a).
func (a AD[V]) Cos() AD[V] { return record1(OpCos, a, a.value.Cos()) }

// Less compares values; the comparison itself is not recorded.
func (a AD[V]) Less(b AD[V]) bool { return a.value.Less(b.value) }

// Equal compares values under V's NaN-equal relation.
func (a AD[V]) Equal(b AD[V]) bool { return a.value.Equal(b.value) }

// IsZero reports whether the value is zero.
func (a AD[V]) IsZero() bool { return a.value.IsZero() }

// Comparison as number: the result is the recorded literal one or
// zero, with derivative zero everywhere. This is the building block
// for branch-free conditionals.

// numCompare records one comparison-as-number operation.
func numCompare[V value.Value[V]](id OpID, lhs, rhs AD[V]) AD[V] {
	var z V
	val := evalSet[V, V]{lift: func(v V) V { return v }, zero: z.Zero(), one: z.One()}
	v := val.cmp(id, lhs.value, rhs.value)
	t := liveTape[V]()
	kind := maxKind(t.kindOf(lhs), t.kindOf(rhs))
	if kind == KindCop {
		return Constant(v)
	}
	st, res := t.result(kind)
	st.push(id, t.addrOf(lhs), t.addrOf(rhs))
	return AD[V]{value: v, tapeID: t.tapeID, addr: res}
}

// NumLt evaluates to one when a < b and zero otherwise.
func (a AD[V]) NumLt(b AD[V]) AD[V] { return numCompare(OpLt, a, b) }

// NumLe evaluates to one when a <= b and zero otherwise.
func (a AD[V]) NumLe(b AD[V]) AD[V] { return numCompare(OpLe, a, b) }

// NumEq evaluates to one when a == b and zero otherwise.
func (a AD[V]) NumEq(b AD[V]) AD[V] { return numCompare(OpEq, a, b) }

// NumNe evaluates to one when a != b and zero otherwise.
func (a AD[V]) NumNe(b AD[V]) AD[V] { return numCompare(OpNe, a, b) }

// NumGe evaluates to one when a >= b and zero otherwise.
func (a AD[V]) NumGe(b AD[V]) AD[V] { return numCompare(OpGe, a, b) }

// NumGt evaluates to one when a > b and zero otherwise.
func (a AD[V]) NumGt(b AD[V]) AD[V] { return numCompare(OpGt, a, b) }

// The comparison-as-value family records a comparison against a
// plain value. The ...Val methods put the value on the right-hand
// side; the ValNum... functions put it on the left.

// NumLtVal evaluates to one when a < v and zero otherwise.
func (a AD[V]) NumLtVal(v V) AD[V] { return a.NumLt(Constant(v)) }

// NumLeVal evaluates to one when a <= v and zero otherwise.
func (a AD[V]) NumLeVal(v V) AD[V] { return a.NumLe(Constant(v)) }

// NumEqVal evaluates to one when a == v and zero otherwise.
func (a AD[V]) NumEqVal(v V) AD[V] { return a.NumEq(Constant(v)) }

// NumNeVal evaluates to one when a != v and zero otherwise.
func (a AD[V]) NumNeVal(v V) AD[V] { return a.NumNe(Constant(v)) }

// NumGeVal evaluates to one when a >= v and zero otherwise.
func (a AD[V]) NumGeVal(v V) AD[V] { return a.NumGe(Constant(v)) }

// NumGtVal evaluates to one when a > v and zero otherwise.
func (a AD[V]) NumGtVal(v V) AD[V] { return a.NumGt(Constant(v)) }

// ValNumLt evaluates to one when v < b and zero otherwise.
func ValNumLt[V value.Value[V]](v V, b AD[V]) AD[V] {
	return Constant(v).NumLt(b)
}

// ValNumLe evaluates to one when v <= b and zero otherwise.
func ValNumLe[V value.Value[V]](v V, b AD[V]) AD[V] {
	return Constant(v).NumLe(b)
}

// ValNumEq evaluates to one when v == b and zero otherwise.
func ValNumEq[V value.Value[V]](v V, b AD[V]) AD[V] {
	return Constant(v).NumEq(b)
}

// ValNumNe evaluates to one when v != b and zero otherwise.
func ValNumNe[V value.Value[V]](v V, b AD[V]) AD[V] {
	return Constant(v).NumNe(b)
}

// ValNumGe evaluates to one when v >= b and zero otherwise.
func ValNumGe[V value.Value[V]](v V, b AD[V]) AD[V] {
	return Constant(v).NumGe(b)
}

// ValNumGt evaluates to one when v > b and zero otherwise.
func ValNumGt[V value.Value[V]](v V, b AD[V]) AD[V] {
	return Constant(v).NumGt(b)
}

// NumNot maps zero to one and anything else to zero.
func (a AD[V]) NumNot() AD[V] {
	var z V
	v := z.Zero()
	if a.value.IsZero() {
		v = z.One()
	}
	return record1(OpNot, a, v)
}
