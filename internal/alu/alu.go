// Package alu implements the machine's 32-bit signed arithmetic unit: wrap-
// on-overflow addition/subtraction, floor division and modulo, and the small
// {Z,N,W} flag set the control unit latches into PS after arithmetic ops.
package alu

import "fmt"

const (
	Max int64 = 1<<31 - 1
	Min int64 = -(1 << 31)
)

// Op identifies one ALU operation.
type Op int

const (
	Add Op = iota
	Sub
	Mod
	Div
	IncLeft
	IncRight
	DecLeft
	DecRight
	SkipLeft
	SkipRight
)

// Flags holds the three flag bits an arithmetic operation can affect. Z and
// N are recomputed by every arithmetic op's Execute; W is set when a result
// wraps and is never cleared by this package — once set, it stays set.
// Skip* operations touch none of the three.
type Flags struct {
	Z bool
	N bool
	W bool
}

// ALU holds the two staged operands, the last result, and the flag set.
type ALU struct {
	Left   int64
	Right  int64
	Result int64
	Flags  Flags
}

// Configure stages the left/right operands for the next Execute call.
func (a *ALU) Configure(left, right int64) {
	a.Left = left
	a.Right = right
}

// Execute runs op against the staged operands, updating Result and (for
// every op except SkipLeft/SkipRight) Z and N. Every arithmetic op — Add,
// Sub, and the Inc/Dec single-operand forms — wraps a result outside
// [Min, Max] back into range and sets W; §8's worked wraparound scenario
// (mov r0, 2147483647; inc r0 -> PS.W=true) exercises the Inc path
// specifically. Div and Mod use floor semantics (result rounds toward
// negative infinity, matching the sign of the divisor) and report an error
// on division by zero rather than panicking, since the source treats it as
// a fatal runtime condition.
func (a *ALU) Execute(op Op) error {
	switch op {
	case Add:
		a.Result = a.wrap(a.Left + a.Right)
		a.setFlags()
	case Sub:
		a.Result = a.wrap(a.Left - a.Right)
		a.setFlags()
	case Mod:
		if a.Right == 0 {
			return fmt.Errorf("alu: modulo by zero")
		}
		a.Result = floorMod(a.Left, a.Right)
		a.setFlags()
	case Div:
		if a.Right == 0 {
			return fmt.Errorf("alu: division by zero")
		}
		a.Result = floorDiv(a.Left, a.Right)
		a.setFlags()
	case IncLeft:
		a.Result = a.wrap(a.Left + 1)
		a.setFlags()
	case IncRight:
		a.Result = a.wrap(a.Right + 1)
		a.setFlags()
	case DecLeft:
		a.Result = a.wrap(a.Left - 1)
		a.setFlags()
	case DecRight:
		a.Result = a.wrap(a.Right - 1)
		a.setFlags()
	case SkipLeft:
		a.Result = a.Left
	case SkipRight:
		a.Result = a.Right
	default:
		return fmt.Errorf("alu: unknown operation %d", op)
	}
	return nil
}

// span is the number of representable 32-bit signed values (2^32), used to
// wrap an out-of-range result back into [Min, Max] via true modulo-2^32
// arithmetic rather than the source's asymmetric (and off-by-one) folding.
const span = Max - Min + 1

// wrap folds an out-of-range result back into [Min, Max] by reducing it
// modulo 2^32 and re-biasing into the signed range, setting W. A plain Go
// `%` would leave a negative remainder for a negative dividend, so the
// remainder is normalized into [0, span) before re-biasing.
func (a *ALU) wrap(result int64) int64 {
	if result > Max || result < Min {
		result = (result - Min) % span
		if result < 0 {
			result += span
		}
		result += Min
		a.Flags.W = true
	}
	return result
}

func (a *ALU) setFlags() {
	a.Flags.N = a.Result < 0
	a.Flags.Z = a.Result == 0
}

func floorDiv(a, b int64) int64 {
	q := a / b
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
