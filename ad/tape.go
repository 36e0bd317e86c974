package ad

// The recording tape. There is one tape per (goroutine, value type);
// tapes live in a mutex-guarded store keyed by goroutine id. A tape's
// buffers are moved into a Fn by StopRecording and replaced by fresh
// empty vectors, so the tape is immediately reusable.

import (
	"reflect"
	"sync"

	"adtape/value"
)

// subTape is one appendable operation sequence. op2arg always has one
// more entry than op; the arguments of operator k are
// arg[op2arg[k]:op2arg[k+1]].
type subTape struct {
	op     []OpID
	op2arg []int
	arg    []Addr
	flag   []bool
}

func newSubTape() subTape {
	return subTape{op2arg: []int{0}}
}

func (t *subTape) push(op OpID, args ...Addr) {
	t.op = append(t.op, op)
	t.arg = append(t.arg, args...)
	t.op2arg = append(t.op2arg, len(t.arg))
}

// tape records one function evaluation for one goroutine.
type tape[V value.Value[V]] struct {
	recording bool
	tapeID    uint64

	nDypDom int
	nVarDom int
	nDyp    int
	nVar    int

	cop []V
	dyp subTape // dynamic parameter sub-tape
	vr  subTape // variable sub-tape
}

// constant interns a value into the constant pool. The pool is not
// deduplicated while recording; the optimizer canonicalizes it.
func (t *tape[V]) constant(v V) Addr {
	t.cop = append(t.cop, v)
	return copAddr(len(t.cop) - 1)
}

// kindOf classifies an AD object relative to this tape. A stale tape
// id means the object belongs to an earlier recording and is treated
// as a constant.
func (t *tape[V]) kindOf(a AD[V]) Kind {
	if t == nil || !t.recording || a.tapeID != t.tapeID {
		return KindCop
	}
	return a.addr.Kind()
}

// addrOf returns a's address in this recording, interning constants.
func (t *tape[V]) addrOf(a AD[V]) Addr {
	if t.kindOf(a) == KindCop {
		return t.constant(a.value)
	}
	return a.addr
}

// tapeStore holds the tapes of all goroutines for one value type.
type tapeStore[V value.Value[V]] struct {
	mu    sync.Mutex
	tapes map[int64]*tape[V]
}

func (s *tapeStore[V]) get() *tape[V] {
	id := goid()
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tapes[id]
	if !ok {
		t = &tape[V]{dyp: newSubTape(), vr: newSubTape()}
		s.tapes[id] = t
	}
	return t
}

var (
	tapeStoresMu sync.RWMutex
	tapeStores   = map[reflect.Type]any{}
)

// thisThreadTape returns the calling goroutine's tape for V.
func thisThreadTape[V value.Value[V]]() *tape[V] {
	key := typeKey[V]()
	tapeStoresMu.RLock()
	v, ok := tapeStores[key]
	tapeStoresMu.RUnlock()
	if !ok {
		tapeStoresMu.Lock()
		if v, ok = tapeStores[key]; !ok {
			v = &tapeStore[V]{tapes: map[int64]*tape[V]{}}
			tapeStores[key] = v
		}
		tapeStoresMu.Unlock()
	}
	return v.(*tapeStore[V]).get()
}

// liveTape returns the calling goroutine's tape when it is recording,
// nil otherwise.
func liveTape[V value.Value[V]]() *tape[V] {
	t := thisThreadTape[V]()
	if !t.recording {
		return nil
	}
	return t
}

// DropTape discards the calling goroutine's tape for V. Long-lived
// programs that record from short-lived goroutines call it so the
// tape store does not accumulate dead entries.
func DropTape[V value.Value[V]]() {
	key := typeKey[V]()
	tapeStoresMu.RLock()
	v, ok := tapeStores[key]
	tapeStoresMu.RUnlock()
	if !ok {
		return
	}
	s := v.(*tapeStore[V])
	id := goid()
	s.mu.Lock()
	delete(s.tapes, id)
	s.mu.Unlock()
}

// Tape ids are process wide and never reused, so values from an
// earlier recording can be recognized as stale.
var (
	tapeIDMu   sync.Mutex
	nextTapeID uint64 = 1
)

func newTapeID() uint64 {
	tapeIDMu.Lock()
	defer tapeIDMu.Unlock()
	id := nextTapeID
	nextTapeID++
	return id
}

// StartRecording begins a recording on the calling goroutine's tape.
// p are the dynamic parameter domain values and x the variable domain
// values; the returned slices hold the corresponding AD objects.
// It panics if the tape is already recording.
func StartRecording[V value.Value[V]](p, x []V) (ap, ax []AD[V]) {
	t := thisThreadTape[V]()
	if t.recording {
		panic("ad: tape is already recording")
	}
	var z V
	t.recording = true
	t.tapeID = newTapeID()
	t.nDypDom, t.nDyp = len(p), len(p)
	t.nVarDom, t.nVar = len(x), len(x)
	t.cop = append(t.cop[:0], z.NaN())

	ap = make([]AD[V], len(p))
	for i, v := range p {
		ap[i] = AD[V]{value: v, tapeID: t.tapeID, addr: dypAddr(i)}
	}
	ax = make([]AD[V], len(x))
	for i, v := range x {
		ax[i] = AD[V]{value: v, tapeID: t.tapeID, addr: varAddr(i)}
	}
	return ap, ax
}

// StopRecording ends the recording on the calling goroutine's tape and
// moves its buffers into a new function object whose range is ay.
// It panics if the tape is not recording.
func StopRecording[V value.Value[V]](ay []AD[V]) *Fn[V] {
	t := thisThreadTape[V]()
	if !t.recording {
		panic("ad: tape is not recording")
	}

	rng := make([]Addr, len(ay))
	for i, a := range ay {
		rng[i] = t.addrOf(a)
	}

	f := &Fn[V]{
		nDypDom:    t.nDypDom,
		nVarDom:    t.nVarDom,
		nDyp:       t.nDyp,
		nVar:       t.nVar,
		dypOpCount: len(t.dyp.op),
		cop:        t.cop,
		rng:        rng,
	}

	// Concatenate the sub-tapes, dynamic parameter operators first,
	// so the boundary index separates them.
	nOp := len(t.dyp.op) + len(t.vr.op)
	f.op = make([]OpID, 0, nOp)
	f.op = append(f.op, t.dyp.op...)
	f.op = append(f.op, t.vr.op...)

	f.arg = make([]Addr, 0, len(t.dyp.arg)+len(t.vr.arg))
	f.arg = append(f.arg, t.dyp.arg...)
	f.arg = append(f.arg, t.vr.arg...)

	f.op2arg = make([]int, 0, nOp+1)
	f.op2arg = append(f.op2arg, t.dyp.op2arg...)
	shift := len(t.dyp.arg)
	for _, end := range t.vr.op2arg[1:] {
		f.op2arg = append(f.op2arg, end+shift)
	}

	f.flag = make([]bool, 0, len(t.dyp.flag)+len(t.vr.flag))
	f.flag = append(f.flag, t.dyp.flag...)
	f.flag = append(f.flag, t.vr.flag...)

	// Call operators on the variable sub-tape index their flag block
	// relative to that sub-tape; shift for the concatenation.
	if flagShift := len(t.dyp.flag); flagShift > 0 {
		for k := f.dypOpCount; k < len(f.op); k++ {
			if f.op[k] == OpCall {
				a := f.op2arg[k]
				f.arg[a+4] += Addr(flagShift)
			}
		}
	}

	// Reset the tape; the moved buffers now belong to f.
	t.recording = false
	t.nDypDom, t.nVarDom, t.nDyp, t.nVar = 0, 0, 0, 0
	t.cop = nil
	t.dyp = newSubTape()
	t.vr = newSubTape()
	return f
}
