package ad

// The operator registry. One registry per value type, discovered by
// reflection and initialized lazily on first use. Registration is
// guarded by a reader-writer lock; sweeps only read.

import (
	"reflect"
	"sync"

	"adtape/value"
)

// OpID identifies an operator in the registry. The id space is small
// enough for a byte.
type OpID uint8

// Binary operator ids are partitioned by operand kinds. The V suffix
// letter means the operand lives in the executing sub-tape's variable
// pool; P means anything else. An operation recorded on the dynamic
// parameter sub-tape plays the same game with dynamic parameters in
// the variable role.
const (
	OpAddPP OpID = iota
	OpAddPV
	OpAddVP
	OpAddVV
	OpSubPP
	OpSubPV
	OpSubVP
	OpSubVV
	OpMulPP
	OpMulPV
	OpMulVP
	OpMulVV
	OpDivPP
	OpDivPV
	OpDivVP
	OpDivVV

	OpNeg
	OpExp
	OpSin
	OpCos

	OpLt
	OpLe
	OpEq
	OpNe
	OpGe
	OpGt
	OpNot

	OpCall
	OpCallRes
	OpNop

	numOp
)

var opNames = [numOp]string{
	OpAddPP: "add_pp", OpAddPV: "add_pv", OpAddVP: "add_vp", OpAddVV: "add_vv",
	OpSubPP: "sub_pp", OpSubPV: "sub_pv", OpSubVP: "sub_vp", OpSubVV: "sub_vv",
	OpMulPP: "mul_pp", OpMulPV: "mul_pv", OpMulVP: "mul_vp", OpMulVV: "mul_vv",
	OpDivPP: "div_pp", OpDivPV: "div_pv", OpDivVP: "div_vp", OpDivVV: "div_vv",
	OpNeg: "neg", OpExp: "exp", OpSin: "sin", OpCos: "cos",
	OpLt: "lt", OpLe: "le", OpEq: "eq", OpNe: "ne", OpGe: "ge", OpGt: "gt",
	OpNot: "not",
	OpCall: "call", OpCallRes: "call_res", OpNop: "no_op",
}

// Name returns the human readable operator name.
func (op OpID) Name() string { return opNames[op] }

// sweep0Fn evaluates zero order forward for one operator. varv is the
// executing sub-tape's variable pool, dypv the dynamic parameter pool
// and cop the constant pool; res is the index of the operator's first
// result in varv.
type sweep0Fn[V value.Value[V], E any] func(
	varv, dypv []E, cop []V, flag []bool, arg []Addr, res int) error

// sweep1Fn evaluates first order forward or reverse for one operator.
// der holds the partials, parallel to varv.
type sweep1Fn[V value.Value[V], E any] func(
	der []E, varv, dypv []E, cop []V, flag []bool, arg []Addr, res int) error

// opInfo is one registry record: the callback tuple for every sweep
// kind, in both value and AD flavors, plus the variable argument
// extractor used by sparsity and the optimizer.
type opInfo[V value.Value[V]] struct {
	name string

	forward0   sweep0Fn[V, V]
	forward0AD sweep0Fn[V, AD[V]]
	forward1   sweep1Fn[V, V]
	forward1AD sweep1Fn[V, AD[V]]
	reverse1   sweep1Fn[V, V]
	reverse1AD sweep1Fn[V, AD[V]]

	// argVarIndex returns the variable-pool indices among the
	// operator's arguments.
	argVarIndex func(flag []bool, arg []Addr) []int
}

var (
	registryMu sync.RWMutex
	registries = map[reflect.Type]any{}
)

func typeKey[V value.Value[V]]() reflect.Type {
	return reflect.TypeOf((*V)(nil)).Elem()
}

// opInfoVec returns the operator registry for V, building it on first
// use.
func opInfoVec[V value.Value[V]]() []opInfo[V] {
	key := typeKey[V]()
	registryMu.RLock()
	v, ok := registries[key]
	registryMu.RUnlock()
	if ok {
		return v.([]opInfo[V])
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if v, ok := registries[key]; ok {
		return v.([]opInfo[V])
	}
	infos := newOpInfoVec[V]()
	registries[key] = infos
	return infos
}

// tagVarIndex extracts variable references by address tag; it serves
// every operator whose argument slice holds addresses only.
func tagVarIndex(_ []bool, arg []Addr) []int {
	var out []int
	for _, a := range arg {
		if a.Kind() == KindVar {
			out = append(out, a.Index())
		}
	}
	return out
}

// newOpInfoVec builds the registry records for all built-in operators.
func newOpInfoVec[V value.Value[V]]() []opInfo[V] {
	var z V
	val := evalSet[V, V]{
		lift: func(v V) V { return v },
		zero: z.Zero(),
		one:  z.One(),
	}
	adf := evalSet[V, AD[V]]{
		lift: Constant[V],
		zero: Constant(z.Zero()),
		one:  Constant(z.One()),
	}

	infos := make([]opInfo[V], numOp)
	setBinaryOpInfo(infos, val, adf)
	setUnaryOpInfo(infos, val, adf)
	setCompareOpInfo(infos, val, adf)
	setCallOpInfo(infos, val, adf)

	infos[OpNop] = opInfo[V]{
		name:        OpNop.Name(),
		forward0:    nopSweep0[V, V],
		forward0AD:  nopSweep0[V, AD[V]],
		forward1:    nopSweep1[V, V],
		forward1AD:  nopSweep1[V, AD[V]],
		reverse1:    nopSweep1[V, V],
		reverse1AD:  nopSweep1[V, AD[V]],
		argVarIndex: func(_ []bool, _ []Addr) []int { return nil },
	}
	return infos
}

func nopSweep0[V value.Value[V], E any](
	_, _ []E, _ []V, _ []bool, _ []Addr, _ int) error {
	return nil
}

func nopSweep1[V value.Value[V], E any](
	_ []E, _, _ []E, _ []V, _ []bool, _ []Addr, _ int) error {
	return nil
}
