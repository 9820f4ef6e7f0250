// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Saturating Counter - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// A saturating counter is the smallest unit of learned state in every dynamic predictor in
// this repository. It counts up on taken outcomes and down on not-taken outcomes, but clamps
// at its minimum and maximum instead of wrapping.
//
// For a 2-bit counter:
//   0 = strongly not taken
//   1 = weakly not taken
//   2 = weakly taken
//   3 = strongly taken
//
// The prediction is the counter's most significant bit: value ≥ 2^(bits-1) → taken.
//
// HYSTERESIS:
//   A strongly-biased counter needs two consecutive surprises to flip its prediction.
//   One-off outcomes (loop exits, rare error paths) do not destroy a learned bias.
//
// SystemVerilog equivalent:
//   always_ff @(posedge clk)
//     if (update_en)
//       if (taken && value != MAX)       value <= value + 1;
//       else if (!taken && value != 0)   value <= value - 1;
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package counter

import (
	"errors"
	"fmt"
)

const (
	// MinBits and MaxBits bound the counter width. 8 bits keeps the value in a uint8.
	MinBits = 1
	MaxBits = 8

	// TwoBit is the width used by Bimodal, GShare and the TAGE prediction counters.
	TwoBit = 2

	// WeaklyNotTaken is the documented initial state of every 2-bit pattern table entry.
	WeaklyNotTaken = 1

	// WeaklyTaken is the lowest 2-bit value that predicts taken.
	WeaklyTaken = 2
)

// ErrWidth is returned when a counter width falls outside [MinBits, MaxBits].
var ErrWidth = errors.New("counter width out of range")

// Saturating is an N-bit up/down counter clamped to [0, 2^N-1].
//
// The zero value is not usable; construct with New or MustNew.
type Saturating struct {
	value uint8
	bits  uint8
}

// New returns a counter of the given width preset to initial. An initial value above the
// maximum is clamped to the maximum.
func New(bits int, initial int) (Saturating, error) {
	if bits < MinBits || bits > MaxBits {
		return Saturating{}, fmt.Errorf("%w: %d bits (want %d..%d)", ErrWidth, bits, MinBits, MaxBits)
	}
	c := Saturating{bits: uint8(bits)}
	c.Set(initial)
	return c, nil
}

// MustNew is New for widths known at compile time. It panics on an invalid width.
func MustNew(bits int, initial int) Saturating {
	c, err := New(bits, initial)
	if err != nil {
		panic(err)
	}
	return c
}

// Bits returns the counter width.
func (c Saturating) Bits() int { return int(c.bits) }

// Value returns the current count.
func (c Saturating) Value() int { return int(c.value) }

// Max returns 2^bits - 1.
func (c Saturating) Max() int { return (1 << c.bits) - 1 }

// Threshold returns the lowest value that predicts taken (the MSB boundary).
func (c Saturating) Threshold() int { return 1 << (c.bits - 1) }

// Taken reports the counter's most significant bit.
//
// Hardware: the MSB wire itself, no comparator needed.
func (c Saturating) Taken() bool {
	return int(c.value) >= c.Threshold()
}

// Set writes v, clamped to [0, Max].
func (c *Saturating) Set(v int) {
	switch {
	case v < 0:
		v = 0
	case v > c.Max():
		v = c.Max()
	}
	c.value = uint8(v)
}

// Inc adds one unless already saturated at Max.
func (c *Saturating) Inc() {
	if int(c.value) < c.Max() {
		c.value++
	}
}

// Dec subtracts one unless already at zero.
func (c *Saturating) Dec() {
	if c.value > 0 {
		c.value--
	}
}

// Train moves the counter one step toward the observed outcome.
func (c *Saturating) Train(taken bool) {
	if taken {
		c.Inc()
		return
	}
	c.Dec()
}

// IsZero reports value == 0. TAGE uses it on usefulness counters to find replaceable entries.
func (c Saturating) IsZero() bool { return c.value == 0 }

func (c Saturating) String() string {
	return fmt.Sprintf("%d/%d", c.value, c.Max())
}
