package predictor

import (
	"math"

	"bpsim/proto/history"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PERCEPTRON PREDICTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// A table of single-layer perceptrons selected by branch address. Each perceptron holds one
// bias weight plus one weight per global history bit.
//
// INPUTS:
//   x_0 = 1 (bias)
//   x_i = +1 if history bit i-1 was taken, -1 otherwise   (bit 0 = most recent branch)
//
// OUTPUT:
//   y = Σ w_i · x_i
//   predict taken iff y ≥ 0
//
// TRAINING (after the outcome t ∈ {+1, -1} is known):
//   if sign(y) was wrong OR |y| ≤ θ:
//     w_i ← w_i + t · x_i      (agreeing inputs are reinforced, disagreeing ones weakened)
//   then shift the outcome into history.
//
//   Training on correct-but-weak outputs keeps pushing |y| past θ, so confident perceptrons
//   stop changing while uncertain ones keep learning.
//
// WEIGHT RANGE:
//   Weights are 8-bit signed and saturate at [-128, 127].
//
// STORAGE:
//   One flat arena of table_size × (history_length + 1) ints. Entry e owns
//   weights[e·stride : (e+1)·stride].
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

const (
	DefaultPerceptronTableSize     = 256
	DefaultPerceptronHistoryLength = 8
	DefaultPerceptronThreshold     = 1.5

	MaxWeight = 127
	MinWeight = -128
)

// PerceptronConfig configures a Perceptron predictor.
type PerceptronConfig struct {
	TableSize     int     `json:"table_size"`
	HistoryLength int     `json:"history_length"`
	Threshold     float64 `json:"threshold"`
	// InitialWeights, when set, seeds every perceptron: bias first, then one weight per history
	// bit. Its length must be HistoryLength + 1.
	InitialWeights []int `json:"initial_weights,omitempty"`
}

// DefaultPerceptronConfig returns the default Perceptron geometry.
func DefaultPerceptronConfig() PerceptronConfig {
	return PerceptronConfig{
		TableSize:     DefaultPerceptronTableSize,
		HistoryLength: DefaultPerceptronHistoryLength,
		Threshold:     DefaultPerceptronThreshold,
	}
}

// Validate checks the geometry and that any seed weight vector matches the history length.
func (c PerceptronConfig) Validate() error {
	if c.TableSize < 1 {
		return configErr(Perceptron, "table_size", "must be >= 1, got %d", c.TableSize)
	}
	if c.HistoryLength < 1 {
		return configErr(Perceptron, "history_length", "must be >= 1, got %d", c.HistoryLength)
	}
	if !(c.Threshold > 0) || math.IsInf(c.Threshold, 0) {
		return configErr(Perceptron, "threshold", "must be a positive finite number, got %v", c.Threshold)
	}
	if c.InitialWeights != nil && len(c.InitialWeights) != c.HistoryLength+1 {
		return configErr(Perceptron, "initial_weights", "length %d does not match history_length+1 = %d",
			len(c.InitialWeights), c.HistoryLength+1)
	}
	for i, w := range c.InitialWeights {
		if w < MinWeight || w > MaxWeight {
			return configErr(Perceptron, "initial_weights", "weight %d = %d outside [%d, %d]", i, w, MinWeight, MaxWeight)
		}
	}
	return nil
}

// PerceptronPredictor is the perceptron branch predictor.
type PerceptronPredictor struct {
	weights   []int
	stride    int
	entries   int
	threshold float64
	seed      []int
	history   *history.Register
}

// NewPerceptron constructs a Perceptron predictor.
func NewPerceptron(cfg PerceptronConfig) (*PerceptronPredictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stride := cfg.HistoryLength + 1
	p := &PerceptronPredictor{
		weights:   make([]int, cfg.TableSize*stride),
		stride:    stride,
		entries:   cfg.TableSize,
		threshold: cfg.Threshold,
		history:   history.MustNew(cfg.HistoryLength),
	}
	if cfg.InitialWeights != nil {
		p.seed = append([]int(nil), cfg.InitialWeights...)
	}
	p.Reset()
	return p, nil
}

func (p *PerceptronPredictor) Name() string { return Perceptron.String() }

func (p *PerceptronPredictor) Kind() Kind { return Perceptron }

func (p *PerceptronPredictor) entry(addr uint64) []int {
	e := int(addr % uint64(p.entries))
	return p.weights[e*p.stride : (e+1)*p.stride]
}

// output computes y for the perceptron selected by addr against the current history.
func (p *PerceptronPredictor) output(w []int) int {
	y := w[0]
	for i := 1; i < p.stride; i++ {
		if p.history.Bit(i - 1) {
			y += w[i]
		} else {
			y -= w[i]
		}
	}
	return y
}

// Output returns the raw perceptron output for addr.
func (p *PerceptronPredictor) Output(addr uint64) int {
	return p.output(p.entry(addr))
}

func (p *PerceptronPredictor) Predict(addr uint64) bool {
	return p.output(p.entry(addr)) >= 0
}

func (p *PerceptronPredictor) Update(addr uint64, taken bool) {
	w := p.entry(addr)
	y := p.output(w)

	if (y >= 0) != taken || math.Abs(float64(y)) <= p.threshold {
		t := -1
		if taken {
			t = 1
		}
		w[0] = clampWeight(w[0] + t)
		for i := 1; i < p.stride; i++ {
			x := -1
			if p.history.Bit(i - 1) {
				x = 1
			}
			w[i] = clampWeight(w[i] + t*x)
		}
	}

	p.history.Push(taken)
}

func (p *PerceptronPredictor) Reset() {
	for e := 0; e < p.entries; e++ {
		w := p.weights[e*p.stride : (e+1)*p.stride]
		if p.seed != nil {
			copy(w, p.seed)
			continue
		}
		for i := range w {
			w[i] = 0
		}
	}
	p.history.Reset()
}

// Weights returns a copy of the weight vector selected by addr.
func (p *PerceptronPredictor) Weights(addr uint64) []int {
	return append([]int(nil), p.entry(addr)...)
}

func clampWeight(w int) int {
	if w > MaxWeight {
		return MaxWeight
	}
	if w < MinWeight {
		return MinWeight
	}
	return w
}
