package value

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// F64 is the float64 reference implementation of the Value contract.
type F64 float64

func (a F64) Add(b F64) F64 { return a + b }
func (a F64) Sub(b F64) F64 { return a - b }
func (a F64) Mul(b F64) F64 { return a * b }
func (a F64) Div(b F64) F64 { return a / b }
func (a F64) Neg() F64      { return -a }

func (a F64) Exp() F64 { return F64(math.Exp(float64(a))) }
func (a F64) Sin() F64 { return F64(math.Sin(float64(a))) }
func (a F64) Cos() F64 { return F64(math.Cos(float64(a))) }

func (a F64) Less(b F64) bool { return a < b }

// Equal is NaN-equal: NaN compares equal to NaN.
func (a F64) Equal(b F64) bool {
	if a.IsNaN() && b.IsNaN() {
		return true
	}
	return a == b
}

func (a F64) IsZero() bool { return a == 0 }
func (a F64) IsOne() bool  { return a == 1 }
func (a F64) IsNaN() bool  { return math.IsNaN(float64(a)) }

func (F64) Zero() F64 { return 0 }
func (F64) One() F64  { return 1 }
func (F64) NaN() F64  { return F64(math.NaN()) }

func (F64) FromFloat32(x float32) F64 { return F64(x) }

// Hash collapses every NaN to one canonical bit pattern and negative
// zero to zero, so the hash is stable under Equal.
func (a F64) Hash() uint64 {
	f := float64(a)
	if math.IsNaN(f) {
		f = math.NaN()
	}
	if f == 0 {
		f = 0
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	return xxhash.Sum64(b[:])
}

func (a F64) String() string {
	return strconv.FormatFloat(float64(a), 'g', -1, 64)
}
