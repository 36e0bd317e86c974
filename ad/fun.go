package ad

// Fn is the immutable function object produced by StopRecording.

import (
	"fmt"
	"strings"

	"adtape/value"
)

// Fn stores a single-assignment operation sequence together with its
// constant pool and range descriptor. A Fn is immutable after
// construction, except for Optimize which rewrites it in place.
type Fn[V value.Value[V]] struct {
	nDypDom int
	nVarDom int
	nDyp    int
	nVar    int

	// Operators with index below dypOpCount form the dynamic
	// parameter sub-tape; the rest form the variable sub-tape.
	dypOpCount int

	cop    []V
	op     []OpID
	op2arg []int
	arg    []Addr
	flag   []bool

	// rng describes the range: one tagged address per component.
	rng []Addr
}

// DomainLen returns the dimension of the variable domain.
func (f *Fn[V]) DomainLen() int { return f.nVarDom }

// DypDomainLen returns the dimension of the dynamic parameter domain.
func (f *Fn[V]) DypDomainLen() int { return f.nDypDom }

// RangeLen returns the dimension of the range.
func (f *Fn[V]) RangeLen() int { return len(f.rng) }

// CopLen returns the size of the constant pool.
func (f *Fn[V]) CopLen() int { return len(f.cop) }

// DypDepLen returns the number of dependent dynamic parameters.
func (f *Fn[V]) DypDepLen() int { return f.nDyp - f.nDypDom }

// VarDepLen returns the number of dependent variables.
func (f *Fn[V]) VarDepLen() int { return f.nVar - f.nVarDom }

// OpLen returns the length of the operation sequence.
func (f *Fn[V]) OpLen() int { return len(f.op) }

// DypLen returns the total number of dynamic parameters.
func (f *Fn[V]) DypLen() int { return f.nDyp }

// VarLen returns the total number of variables.
func (f *Fn[V]) VarLen() int { return f.nVar }

// DypOpCount returns the boundary index: operators below it form the
// dynamic parameter sub-tape.
func (f *Fn[V]) DypOpCount() int { return f.dypOpCount }

// OpAt returns the operator id at sequence index k.
func (f *Fn[V]) OpAt(k int) OpID { return f.op[k] }

// ArgsAt returns the packed arguments of operator k. The slice
// aliases the operation sequence and must not be modified.
func (f *Fn[V]) ArgsAt(k int) []Addr { return f.argsOf(k) }

// Constants returns the constant pool. The slice aliases the
// function object and must not be modified.
func (f *Fn[V]) Constants() []V { return f.cop }

// Range returns the range descriptor, one tagged address per range
// component. The slice aliases the function object and must not be
// modified.
func (f *Fn[V]) Range() []Addr { return f.rng }

// argsOf returns the packed arguments of operator k.
func (f *Fn[V]) argsOf(k int) []Addr {
	return f.arg[f.op2arg[k]:f.op2arg[k+1]]
}

// varResOf returns the variable index produced by variable sub-tape
// operator k.
func (f *Fn[V]) varResOf(k int) int {
	return f.nVarDom + (k - f.dypOpCount)
}

// dypResOf returns the dynamic parameter index produced by dynamic
// parameter sub-tape operator k.
func (f *Fn[V]) dypResOf(k int) int {
	return f.nDypDom + k
}

// callHeader decodes the fixed argument header of a call operator.
func callHeader(arg []Addr) (atomID, callInfo, nArg, nRes, flagBegin int) {
	return int(arg[0]), int(arg[1]), int(arg[2]), int(arg[3]), int(arg[4])
}

// callVarResCount returns how many results of the call operator at
// sequence index k are variables of its sub-tape.
func (f *Fn[V]) callVarResCount(k int) int {
	arg := f.argsOf(k)
	_, _, nArg, nRes, fb := callHeader(arg)
	n := 0
	for _, isVar := range f.flag[fb+nArg : fb+nArg+nRes] {
		if isVar {
			n++
		}
	}
	return n
}

// checkInvariants verifies single assignment and argument ordering for
// the whole sequence; violations are programming errors and panic.
// StopRecording guarantees these by construction; the sweeps do not
// call this check.
func (f *Fn[V]) checkInvariants() {
	for k := range f.op {
		if f.op2arg[k] > f.op2arg[k+1] {
			panic(fmt.Sprintf("ad: op2arg not monotone at %d", k))
		}
		onDyp := k < f.dypOpCount
		res := 0
		if onDyp {
			res = f.dypResOf(k)
		} else {
			res = f.varResOf(k)
		}
		for _, a := range f.addrArgs(k) {
			switch a.Kind() {
			case KindVar:
				if onDyp {
					panic(fmt.Sprintf(
						"ad: dyp operator %d references a variable", k))
				}
				if a.Index() >= res {
					panic(fmt.Sprintf(
						"ad: operator %d argument %s not before result v%d",
						k, a, res))
				}
			case KindDyp:
				if onDyp && a.Index() >= res {
					panic(fmt.Sprintf(
						"ad: operator %d argument %s not before result p%d",
						k, a, res))
				}
			}
		}
	}
}

// addrArgs returns the argument entries of operator k that are tagged
// addresses, skipping the fixed header of call operators.
func (f *Fn[V]) addrArgs(k int) []Addr {
	arg := f.argsOf(k)
	if f.op[k] == OpCall {
		return arg[5:]
	}
	return arg
}

// String renders the operation sequence for inspection.
func (f *Fn[V]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "n_dyp_dom=%d n_var_dom=%d n_dyp=%d n_var=%d n_cop=%d\n",
		f.nDypDom, f.nVarDom, f.nDyp, f.nVar, len(f.cop))
	for i, c := range f.cop {
		fmt.Fprintf(&b, "c%-3d %s\n", i, c.String())
	}
	for k, op := range f.op {
		var res string
		if k < f.dypOpCount {
			res = fmt.Sprintf("p%d", f.dypResOf(k))
		} else {
			res = fmt.Sprintf("v%d", f.varResOf(k))
		}
		fmt.Fprintf(&b, "%-4d %-8s %-4s", k, op.Name(), res)
		if op == OpCall {
			arg := f.argsOf(k)
			atomID, callInfo, nArg, _, _ := callHeader(arg)
			fmt.Fprintf(&b, " atom=%d info=%d", atomID, callInfo)
			for _, a := range arg[5 : 5+nArg] {
				fmt.Fprintf(&b, " %s", a)
			}
		} else {
			for _, a := range f.argsOf(k) {
				fmt.Fprintf(&b, " %s", a)
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("range:")
	for _, a := range f.rng {
		fmt.Fprintf(&b, " %s", a)
	}
	b.WriteByte('\n')
	return b.String()
}
