package ad

// Atomic functions: user-supplied opaque operators with their own
// sweep callbacks. The registry is process wide, one per value type,
// guarded by a reader-writer lock; registration writes, sweeps read.

import (
	"reflect"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"adtape/value"
)

// Callback is the record registered for one atomic function. Name is
// required, as is ForwardFun (recording evaluates it eagerly). The
// remaining slots are optional; a sweep that needs a nil slot fails
// with a MissingCallbackError.
//
// Callbacks receive slices that alias the engine's evaluation storage
// and must not retain them past the call.
type Callback[V value.Value[V]] struct {
	Name string

	// RevDepend maps one range component of the atomic function to
	// the domain components it depends on. The optimizer consults it
	// to keep only the arguments a partially used call still needs;
	// when nil, every argument of a live call stays live.
	RevDepend func(resIndex, nArg int, callInfo int) ([]int, error)

	// ForwardType computes the result kinds from the argument kinds.
	// When nil, every result gets the maximum argument kind.
	ForwardType func(callInfo int, argKind []Kind) ([]Kind, error)

	ForwardFun   func(domain []V, callInfo int) ([]V, error)
	ForwardFunAD func(domain []AD[V], callInfo int) ([]AD[V], error)

	// ForwardDer receives the zero order domain and the domain
	// direction and returns the range direction.
	ForwardDer   func(domain, der []V, callInfo int) ([]V, error)
	ForwardDerAD func(domain, der []AD[V], callInfo int) ([]AD[V], error)

	// ReverseDer receives the zero order domain and the range
	// weights and returns the weighted domain adjoints.
	ReverseDer   func(domain, weight []V, callInfo int) ([]V, error)
	ReverseDerAD func(domain, weight []AD[V], callInfo int) ([]AD[V], error)
}

type atomRegistry[V value.Value[V]] struct {
	mu    sync.RWMutex
	atoms []Callback[V]
}

var (
	atomStoresMu sync.RWMutex
	atomStores   = map[reflect.Type]any{}
)

func atomsOf[V value.Value[V]]() *atomRegistry[V] {
	key := typeKey[V]()
	atomStoresMu.RLock()
	v, ok := atomStores[key]
	atomStoresMu.RUnlock()
	if !ok {
		atomStoresMu.Lock()
		if v, ok = atomStores[key]; !ok {
			v = &atomRegistry[V]{}
			atomStores[key] = v
		}
		atomStoresMu.Unlock()
	}
	return v.(*atomRegistry[V])
}

// RegisterAtom adds an atomic function for value type V and returns
// its id.
func RegisterAtom[V value.Value[V]](cb Callback[V]) int {
	if cb.Name == "" {
		panic("ad: atomic function must be named")
	}
	if cb.ForwardFun == nil {
		panic("ad: atomic function must register ForwardFun")
	}
	reg := atomsOf[V]()
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, prev := range reg.atoms {
		if prev.Name == cb.Name {
			glog.Warningf("ad: atomic function %q registered more than once",
				cb.Name)
			break
		}
	}
	reg.atoms = append(reg.atoms, cb)
	return len(reg.atoms) - 1
}

// atomByID returns a copy of the callback record.
func atomByID[V value.Value[V]](id int) (Callback[V], error) {
	reg := atomsOf[V]()
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if id < 0 || id >= len(reg.atoms) {
		return Callback[V]{}, errors.Errorf("ad: no atomic function with id %d", id)
	}
	return reg.atoms[id], nil
}

// callbackErr wraps a callback failure, keeping the message verbatim.
func callbackErr(name string, err error) error {
	return &CallbackError{Atom: name, Err: err}
}

// CallAtom applies a registered atomic function to ax inside the
// current recording. The call is recorded as one opaque operator;
// results that turn out constant are interned instead of recorded.
func CallAtom[V value.Value[V]](ax []AD[V], atomID, callInfo int) ([]AD[V], error) {
	cb, err := atomByID[V](atomID)
	if err != nil {
		return nil, err
	}

	domain := make([]V, len(ax))
	for i, a := range ax {
		domain[i] = a.value
	}
	y, err := cb.ForwardFun(domain, callInfo)
	if err != nil {
		return nil, callbackErr(cb.Name, err)
	}

	t := liveTape[V]()
	argKind := make([]Kind, len(ax))
	top := KindCop
	for i, a := range ax {
		argKind[i] = t.kindOf(a)
		top = maxKind(top, argKind[i])
	}

	resKind := make([]Kind, len(y))
	if cb.ForwardType != nil {
		resKind, err = cb.ForwardType(callInfo, argKind)
		if err != nil {
			return nil, callbackErr(cb.Name, err)
		}
		if len(resKind) != len(y) {
			return nil, callbackErr(cb.Name, errors.Errorf(
				"ForwardType returned %d kinds for %d results",
				len(resKind), len(y)))
		}
	} else {
		for i := range resKind {
			resKind[i] = top
		}
	}

	out := make([]AD[V], len(y))
	if t == nil || top == KindCop {
		for i, v := range y {
			out[i] = Constant(v)
		}
		return out, nil
	}

	// The call lands on the variable sub-tape when any argument is a
	// variable, otherwise on the dynamic parameter sub-tape. Constant
	// results are interned; every other result stays a variable of
	// the chosen sub-tape so parameter changes keep reaching it.
	tapeKind := top
	isResVar := make([]bool, len(y))
	nVarRes := 0
	for i, k := range resKind {
		isResVar[i] = k != KindCop
		if isResVar[i] {
			nVarRes++
		}
	}
	if nVarRes == 0 {
		for i, v := range y {
			out[i] = Constant(v)
		}
		return out, nil
	}

	var st *subTape
	if tapeKind == KindVar {
		st = &t.vr
	} else {
		st = &t.dyp
	}
	isArgVar := make([]bool, len(ax))
	argAddr := make([]Addr, len(ax))
	for i, a := range ax {
		isArgVar[i] = argKind[i] == tapeKind
		argAddr[i] = t.addrOf(a)
	}

	fb := len(st.flag)
	st.flag = append(st.flag, isArgVar...)
	st.flag = append(st.flag, isResVar...)

	args := make([]Addr, 0, 5+len(ax))
	args = append(args, Addr(atomID), Addr(callInfo),
		Addr(len(ax)), Addr(len(y)), Addr(fb))
	args = append(args, argAddr...)

	var res0 Addr
	if tapeKind == KindVar {
		res0 = varAddr(t.nVar)
		t.nVar += nVarRes
	} else {
		res0 = dypAddr(t.nDyp)
		t.nDyp += nVarRes
	}
	st.push(OpCall, args...)
	// Placeholders so each further variable result owns an operator
	// index.
	for j := 1; j < nVarRes; j++ {
		st.push(OpCallRes, res0)
	}

	j := 0
	for i, v := range y {
		if isResVar[i] {
			out[i] = AD[V]{
				value:  v,
				tapeID: t.tapeID,
				addr:   newAddr(res0.Kind(), res0.Index()+j),
			}
			j++
		} else {
			out[i] = Constant(v)
		}
	}
	return out, nil
}
