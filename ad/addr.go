package ad

import "fmt"

// Kind classifies a recorded value. The ordering matters: the kind of
// an operator result is the pointwise maximum of its operand kinds.
type Kind int

const (
	// KindCop is a constant: a literal promoted from the value type.
	KindCop Kind = iota
	// KindDyp is a dynamic parameter: a domain input that may change
	// between evaluations but has no derivative.
	KindDyp
	// KindVar is a variable: a domain input that participates in
	// derivatives, or an intermediate produced from one.
	KindVar
)

func (k Kind) String() string {
	switch k {
	case KindCop:
		return "cop"
	case KindDyp:
		return "dyp"
	case KindVar:
		return "var"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func maxKind(a, b Kind) Kind {
	if a < b {
		return b
	}
	return a
}

// Addr is a tagged address: an index into one of the three value
// pools, with the kind packed into the low bits.
type Addr int

func newAddr(k Kind, index int) Addr { return Addr(index<<2) | Addr(k) }

func copAddr(index int) Addr { return newAddr(KindCop, index) }
func dypAddr(index int) Addr { return newAddr(KindDyp, index) }
func varAddr(index int) Addr { return newAddr(KindVar, index) }

func (a Addr) Kind() Kind { return Kind(a & 3) }
func (a Addr) Index() int { return int(a >> 2) }

func (a Addr) String() string {
	switch a.Kind() {
	case KindCop:
		return fmt.Sprintf("c%d", a.Index())
	case KindDyp:
		return fmt.Sprintf("p%d", a.Index())
	default:
		return fmt.Sprintf("v%d", a.Index())
	}
}
