package ad

// In-place optimization of a function object: common subexpression
// compression over the constant pool, then reverse dependency
// analysis that drops every operator with no used result.

import (
	"github.com/golang/glog"
)

// Optimize rewrites the operation sequence in place. The function it
// computes is unchanged; the operation sequence, constant pool and
// dependent counts shrink. Optimize is idempotent.
//
// The only error source is a RevDepend callback of an atomic function
// failing. When an error is returned the constant pool may already be
// compressed; no operator has been dropped and the function computed
// is unchanged.
func (f *Fn[V]) Optimize() error {
	f.compressCop()
	if err := f.eliminateDead(); err != nil {
		return err
	}
	glog.V(2).Infof("ad: optimized to %d operators, %d constants",
		len(f.op), len(f.cop))
	return nil
}

// compressCop canonicalizes the constant pool: equal constants (under
// the value type's NaN-equal relation) share one entry, and every
// constant reference is remapped to the canonical index.
func (f *Fn[V]) compressCop() {
	newIndex := make([]int, len(f.cop))
	newCop := f.cop[:0:0]
	byHash := map[uint64][]int{}
	for i, v := range f.cop {
		h := v.Hash()
		found := -1
		for _, ci := range byHash[h] {
			if newCop[ci].Equal(v) {
				found = ci
				break
			}
		}
		if found < 0 {
			found = len(newCop)
			newCop = append(newCop, v)
			byHash[h] = append(byHash[h], found)
		}
		newIndex[i] = found
	}
	f.cop = newCop
	for k := range f.op {
		args := f.addrArgs(k)
		for i, a := range args {
			if a.Kind() == KindCop {
				args[i] = copAddr(newIndex[a.Index()])
			}
		}
	}
	for i, a := range f.rng {
		if a.Kind() == KindCop {
			f.rng[i] = copAddr(newIndex[a.Index()])
		}
	}
}

// eliminateDead drops every operator with no used result, compacts
// the constant, dynamic parameter and variable pools, and remaps all
// indices. A call operator with some but not all results used is
// kept with the unused result slots masked out and its unneeded
// arguments replaced by the constant at index zero.
func (f *Fn[V]) eliminateDead() error {
	usedVar := make([]bool, f.nVar)
	usedDyp := make([]bool, f.nDyp)
	usedCop := make([]bool, len(f.cop))
	usedCop[0] = true

	mark := func(a Addr) {
		switch a.Kind() {
		case KindVar:
			usedVar[a.Index()] = true
		case KindDyp:
			usedDyp[a.Index()] = true
		default:
			usedCop[a.Index()] = true
		}
	}
	for _, a := range f.rng {
		mark(a)
	}

	// markCall marks the arguments a live call still needs. The
	// reverse dependency callback narrows per-result dependencies;
	// constant arguments are kept conservatively.
	markCall := func(k int, usedPool []bool, res int) error {
		arg := f.argsOf(k)
		atomID, callInfo, nArg, nRes, fb := callHeader(arg)
		isResVar := f.flag[fb+nArg : fb+nArg+nRes]
		addrs := arg[5 : 5+nArg]
		var usedRes []int
		j := 0
		for i := 0; i < nRes; i++ {
			if !isResVar[i] {
				continue
			}
			if usedPool[res+j] {
				usedRes = append(usedRes, i)
			}
			j++
		}
		if len(usedRes) == 0 {
			return nil
		}
		cb, err := atomByID[V](atomID)
		if err != nil {
			return err
		}
		if cb.RevDepend == nil {
			for _, a := range addrs {
				mark(a)
			}
			return nil
		}
		for _, i := range usedRes {
			deps, err := cb.RevDepend(i, nArg, callInfo)
			if err != nil {
				return callbackErr(cb.Name, err)
			}
			for _, d := range deps {
				mark(addrs[d])
			}
		}
		for _, a := range addrs {
			if a.Kind() == KindCop {
				mark(a)
			}
		}
		return nil
	}

	for k := len(f.op) - 1; k >= 0; k-- {
		onDyp := k < f.dypOpCount
		switch f.op[k] {
		case OpCallRes:
			// Accounted for by the owning call operator.
		case OpCall:
			var err error
			if onDyp {
				err = markCall(k, usedDyp, f.dypResOf(k))
			} else {
				err = markCall(k, usedVar, f.varResOf(k))
			}
			if err != nil {
				return err
			}
		default:
			var live bool
			if onDyp {
				live = usedDyp[f.dypResOf(k)]
			} else {
				live = usedVar[f.varResOf(k)]
			}
			if !live {
				continue
			}
			for _, a := range f.addrArgs(k) {
				mark(a)
			}
		}
	}

	// Compact the pools. Domain indices are never dropped.
	newCopIdx := make([]int, len(f.cop))
	newCop := f.cop[:0:0]
	for i, v := range f.cop {
		newCopIdx[i] = -1
		if usedCop[i] {
			newCopIdx[i] = len(newCop)
			newCop = append(newCop, v)
		}
	}
	newVarIdx := make([]int, f.nVar)
	newDypIdx := make([]int, f.nDyp)
	for i := range newVarIdx {
		newVarIdx[i] = -1
	}
	for i := range newDypIdx {
		newDypIdx[i] = -1
	}
	for j := 0; j < f.nVarDom; j++ {
		newVarIdx[j] = j
	}
	for j := 0; j < f.nDypDom; j++ {
		newDypIdx[j] = j
	}

	remap := func(a Addr) Addr {
		switch a.Kind() {
		case KindVar:
			return varAddr(newVarIdx[a.Index()])
		case KindDyp:
			return dypAddr(newDypIdx[a.Index()])
		default:
			return copAddr(newCopIdx[a.Index()])
		}
	}
	isLive := func(a Addr) bool {
		switch a.Kind() {
		case KindVar:
			return usedVar[a.Index()]
		case KindDyp:
			return usedDyp[a.Index()]
		default:
			return usedCop[a.Index()]
		}
	}

	var (
		newOp      []OpID
		newOp2Arg  = []int{0}
		newArg     []Addr
		newFlag    []bool
		newDypOps  int
		nextVar    = f.nVarDom
		nextDyp    = f.nDypDom
	)
	emit := func(onDyp bool, op OpID, args ...Addr) {
		newOp = append(newOp, op)
		newArg = append(newArg, args...)
		newOp2Arg = append(newOp2Arg, len(newArg))
		if onDyp {
			newDypOps++
		}
	}

	for k := 0; k < len(f.op); k++ {
		onDyp := k < f.dypOpCount
		usedPool, newIdx := usedVar, newVarIdx
		res := f.varResOf(k)
		next := &nextVar
		poolAddr := varAddr
		if onDyp {
			usedPool, newIdx = usedDyp, newDypIdx
			res = f.dypResOf(k)
			next = &nextDyp
			poolAddr = dypAddr
		}
		switch f.op[k] {
		case OpCallRes:
			// Re-emitted with its call.
		case OpCall:
			arg := f.argsOf(k)
			atomID, callInfo, nArg, nRes, fb := callHeader(arg)
			isArgVar := f.flag[fb : fb+nArg]
			isResVar := f.flag[fb+nArg : fb+nArg+nRes]
			addrs := arg[5 : 5+nArg]

			nKeep := 0
			maskedRes := make([]bool, nRes)
			j := 0
			for i := 0; i < nRes; i++ {
				if !isResVar[i] {
					continue
				}
				if usedPool[res+j] {
					maskedRes[i] = true
					newIdx[res+j] = *next + nKeep
					nKeep++
				}
				j++
			}
			if nKeep == 0 {
				continue
			}
			newFb := len(newFlag)
			newArgs := make([]Addr, 0, 5+nArg)
			newArgs = append(newArgs, Addr(atomID), Addr(callInfo),
				Addr(nArg), Addr(nRes), Addr(newFb))
			maskedArg := make([]bool, nArg)
			for i, a := range addrs {
				if isLive(a) {
					maskedArg[i] = isArgVar[i]
					newArgs = append(newArgs, remap(a))
				} else {
					// The callback no longer needs this argument;
					// feed it the pool's NaN constant.
					newArgs = append(newArgs, copAddr(0))
				}
			}
			newFlag = append(newFlag, maskedArg...)
			newFlag = append(newFlag, maskedRes...)
			emit(onDyp, OpCall, newArgs...)
			res0 := poolAddr(*next)
			for j := 1; j < nKeep; j++ {
				emit(onDyp, OpCallRes, res0)
			}
			*next += nKeep
		default:
			if !usedPool[res] {
				continue
			}
			args := f.argsOf(k)
			remapped := make([]Addr, len(args))
			for i, a := range args {
				remapped[i] = remap(a)
			}
			newIdx[res] = *next
			*next++
			emit(onDyp, f.op[k], remapped...)
		}
	}

	for i, a := range f.rng {
		f.rng[i] = remap(a)
	}
	f.cop = newCop
	f.op = newOp
	f.op2arg = newOp2Arg
	f.arg = newArg
	f.flag = newFlag
	f.dypOpCount = newDypOps
	f.nVar = nextVar
	f.nDyp = nextDyp
	return nil
}
