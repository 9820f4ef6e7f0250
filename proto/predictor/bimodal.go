package predictor

import "bpsim/proto/counter"

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PATTERN TABLE
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// A pattern table is an array of 2-bit saturating counters. Bimodal, GShare and the TAGE base
// predictor all use one.
//
// INITIAL STATE:
//   Every counter starts at 1 (weakly not taken). A single taken outcome moves it to 2 and
//   flips the prediction; a single not-taken outcome moves it to 0.
//
// Hardware: size × 2-bit SRAM, counters preset on reset.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type patternTable []counter.Saturating

func newPatternTable(size int) patternTable {
	t := make(patternTable, size)
	t.reset()
	return t
}

func (t patternTable) slot(index uint64) *counter.Saturating {
	return &t[index%uint64(len(t))]
}

func (t patternTable) reset() {
	for i := range t {
		t[i] = counter.MustNew(counter.TwoBit, counter.WeaklyNotTaken)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BIMODAL PREDICTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// One 2-bit counter per table slot, selected by the branch address alone.
//
//   index   = addr mod table_size
//   predict = counter ≥ 2
//   update  = counter ± 1, clamped to [0, 3]
//
// With table_size = 1 every branch shares one global counter.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// DefaultBimodalTableSize is the default number of counters.
const DefaultBimodalTableSize = 1024

// BimodalConfig configures a Bimodal predictor.
type BimodalConfig struct {
	TableSize int `json:"table_size"`
}

// DefaultBimodalConfig returns the default Bimodal geometry.
func DefaultBimodalConfig() BimodalConfig {
	return BimodalConfig{TableSize: DefaultBimodalTableSize}
}

// Validate rejects a non-positive table size.
func (c BimodalConfig) Validate() error {
	if c.TableSize < 1 {
		return configErr(Bimodal, "table_size", "must be >= 1, got %d", c.TableSize)
	}
	return nil
}

// BimodalPredictor is the address-indexed 2-bit counter predictor.
type BimodalPredictor struct {
	table patternTable
}

// NewBimodal constructs a Bimodal predictor.
func NewBimodal(cfg BimodalConfig) (*BimodalPredictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BimodalPredictor{table: newPatternTable(cfg.TableSize)}, nil
}

func (p *BimodalPredictor) Name() string { return Bimodal.String() }

func (p *BimodalPredictor) Kind() Kind { return Bimodal }

func (p *BimodalPredictor) Predict(addr uint64) bool {
	return p.table.slot(addr).Taken()
}

func (p *BimodalPredictor) Update(addr uint64, taken bool) {
	p.table.slot(addr).Train(taken)
}

func (p *BimodalPredictor) Reset() { p.table.reset() }

// Counter returns the counter value currently selected by addr.
func (p *BimodalPredictor) Counter(addr uint64) int {
	return p.table.slot(addr).Value()
}
