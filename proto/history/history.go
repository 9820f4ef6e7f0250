// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Global History Register - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// A fixed-width shift register of the most recent branch outcomes (1 = taken, 0 = not taken).
// The newest outcome enters at bit 0; every push moves older outcomes one position up and the
// oldest outcome falls off the top.
//
//   after pushes T, T, N (width 4):   bit3 bit2 bit1 bit0
//                                       0    1    1    0
//
// GShare reads the whole register as an integer. The perceptron reads individual bits as ±1
// inputs. TAGE keeps one master register as wide as its longest table and lets every table
// read only its own prefix (the N newest bits).
//
// STORAGE:
//   Backed by 64-bit words so any width works (TAGE history lengths grow geometrically and can
//   pass 64). Width 0 is legal: pushes are dropped and every read returns 0.
//
// SystemVerilog equivalent:
//   history <= {history[WIDTH-2:0], taken};
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package history

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWidth is returned for a negative width.
var ErrWidth = errors.New("history width must not be negative")

// Register is a fixed-width outcome shift register.
type Register struct {
	words   []uint64
	width   int
	topMask uint64
}

// New returns an all-zero register of the given width.
func New(width int) (*Register, error) {
	if width < 0 {
		return nil, fmt.Errorf("%w: %d", ErrWidth, width)
	}
	r := &Register{
		words: make([]uint64, (width+63)/64),
		width: width,
	}
	r.topMask = ^uint64(0)
	if rem := width % 64; rem != 0 {
		r.topMask = (uint64(1) << rem) - 1
	}
	return r, nil
}

// MustNew is New for widths already validated by the caller.
func MustNew(width int) *Register {
	r, err := New(width)
	if err != nil {
		panic(err)
	}
	return r
}

// Width returns the number of outcomes the register holds.
func (r *Register) Width() int { return r.width }

// Push shifts a new outcome in at bit 0 and discards the oldest.
//
// Hardware: one shift-or per word, carry from word w-1 into word w.
func (r *Register) Push(taken bool) {
	n := len(r.words)
	if n == 0 {
		return
	}
	for w := n - 1; w > 0; w-- {
		r.words[w] = r.words[w]<<1 | r.words[w-1]>>63
	}
	var b uint64
	if taken {
		b = 1
	}
	r.words[0] = r.words[0]<<1 | b
	r.words[n-1] &= r.topMask
}

// Bit returns outcome i, where 0 is the most recent. Out-of-range positions read as not taken.
func (r *Register) Bit(i int) bool {
	if i < 0 || i >= r.width {
		return false
	}
	return (r.words[i>>6]>>(uint(i)&63))&1 == 1
}

// Value returns the register as an integer (the low 64 bits when wider than 64).
func (r *Register) Value() uint64 {
	if len(r.words) == 0 {
		return 0
	}
	return r.words[0]
}

// Fold returns the n newest outcomes XOR-folded into 64 bits. For n ≤ 64 this is exactly the
// n-bit prefix as an integer. n is clamped to [0, Width].
func (r *Register) Fold(n int) uint64 {
	if n > r.width {
		n = r.width
	}
	if n <= 0 {
		return 0
	}
	var folded uint64
	full := n >> 6
	for w := 0; w < full; w++ {
		folded ^= r.words[w]
	}
	if rem := n & 63; rem != 0 {
		folded ^= r.words[full] & ((uint64(1) << rem) - 1)
	}
	return folded
}

// Reset clears every outcome.
func (r *Register) Reset() {
	for i := range r.words {
		r.words[i] = 0
	}
}

// String renders oldest-to-newest as a bit string, e.g. "0110".
func (r *Register) String() string {
	var sb strings.Builder
	sb.Grow(r.width)
	for i := r.width - 1; i >= 0; i-- {
		if r.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
