package predictor

import "bpsim/proto/history"

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// GSHARE PREDICTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Bimodal table indexed by the branch address XORed with the global history register.
//
//   index   = (addr ⊕ history) mod table_size
//   predict = counter ≥ 2
//   update  = train counter, then shift the outcome into history
//
// The same branch lands in different counters depending on how the last N branches went, so
// correlated branches get separate state. Collisions between unrelated (addr, history) pairs
// are accepted as aliasing.
//
// With history_bits = 0 the history is always 0 and GShare is exactly Bimodal.
//
// SystemVerilog:
//   assign index = (pc ^ ghr) % TABLE_SIZE;
//   always_ff @(posedge clk) if (update_en) begin
//     pht[index] <= sat_update(pht[index], taken);
//     ghr <= {ghr[HIST-2:0], taken};
//   end
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

const (
	DefaultGShareTableSize   = 1024
	DefaultGShareHistoryBits = 10

	// MaxGShareHistoryBits keeps the history readable as one 64-bit integer.
	MaxGShareHistoryBits = 64
)

// GShareConfig configures a GShare predictor.
type GShareConfig struct {
	TableSize   int `json:"table_size"`
	HistoryBits int `json:"history_bits"`
}

// DefaultGShareConfig returns the default GShare geometry.
func DefaultGShareConfig() GShareConfig {
	return GShareConfig{
		TableSize:   DefaultGShareTableSize,
		HistoryBits: DefaultGShareHistoryBits,
	}
}

// Validate checks the table size and history width.
func (c GShareConfig) Validate() error {
	if c.TableSize < 1 {
		return configErr(GShare, "table_size", "must be >= 1, got %d", c.TableSize)
	}
	if c.HistoryBits < 0 || c.HistoryBits > MaxGShareHistoryBits {
		return configErr(GShare, "history_bits", "must be in [0, %d], got %d", MaxGShareHistoryBits, c.HistoryBits)
	}
	return nil
}

// GSharePredictor is the global-history XOR predictor.
type GSharePredictor struct {
	table   patternTable
	history *history.Register
}

// NewGShare constructs a GShare predictor.
func NewGShare(cfg GShareConfig) (*GSharePredictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GSharePredictor{
		table:   newPatternTable(cfg.TableSize),
		history: history.MustNew(cfg.HistoryBits),
	}, nil
}

func (p *GSharePredictor) Name() string { return GShare.String() }

func (p *GSharePredictor) Kind() Kind { return GShare }

func (p *GSharePredictor) index(addr uint64) uint64 {
	return addr ^ p.history.Value()
}

func (p *GSharePredictor) Predict(addr uint64) bool {
	return p.table.slot(p.index(addr)).Taken()
}

func (p *GSharePredictor) Update(addr uint64, taken bool) {
	p.table.slot(p.index(addr)).Train(taken)
	p.history.Push(taken)
}

func (p *GSharePredictor) Reset() {
	p.table.reset()
	p.history.Reset()
}

// History returns the current global history as an integer.
func (p *GSharePredictor) History() uint64 { return p.history.Value() }
