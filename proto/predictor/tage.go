package predictor

import (
	"bpsim/proto/counter"
	"bpsim/proto/history"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TAGE Branch Predictor - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// TAGE (TAgged GEometric history length) combines a tag-less base predictor with N tagged
// tables. Each tagged table looks at a longer slice of global history than the one before it.
//
//   Table      History   Tagged   Role
//   ────────── ───────── ──────── ────────────────────────────────────────
//   base       0         no       Bimodal fallback, always provides
//   T0         2         yes      short correlations (tight loops)
//   T1         4         yes
//   T2         8         yes
//   T3         16        yes      long correlations (nested conditions)
//
// LONGEST MATCH:
//   The provider is the longest-history table whose entry at the computed index is valid and
//   carries the computed tag. If no tagged table matches, the base table provides.
//
// TAGGED ENTRIES:
//   Tags separate different (branch, history) pairs that alias to the same index. An entry is
//   only consulted after it has been allocated; a fresh predictor has no valid tagged entries,
//   so the first prediction of any branch always comes from the base table.
//
// USEFULNESS:
//   Each tagged entry carries a 2-bit usefulness counter. It rises when the entry provides a
//   correct prediction and falls when it provides a wrong one. Only entries with zero
//   usefulness may be overwritten by allocation.
//
// DEGENERATE GEOMETRY:
//   With num_tables = 0 there is no tagged table and no history; TAGE is exactly Bimodal on
//   its base table.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

const (
	DefaultTAGETables        = 4
	DefaultTAGEBaseTableSize = 1024

	// DefaultTagBits: 8-bit partial tags (1/256 false-match probability per lookup).
	DefaultTagBits = 8
	MaxTagBits     = 16

	// UsefulBits: width of the per-entry usefulness counter (0-3).
	UsefulBits = 2

	// Geometry ceilings. The history register is sized by the longest length, and every table
	// is allocated up front, so unbounded values would exhaust memory at construction.
	MaxTAGETables        = 16
	MaxTAGEHistoryLength = 4096
	MaxTAGETableSize     = 1 << 22

	// HashPrime: golden ratio prime (φ × 2^64) used to spread history bits into the tag.
	HashPrime = 0x9E3779B97F4A7C15
)

// DefaultHistoryLength returns the geometric history length of tagged table i: 2, 4, 8, 16, ...
func DefaultHistoryLength(i int) int {
	return 1 << (i + 1)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// TAGEConfig configures a TAGE predictor.
//
// HistoryLengths and TableSizes are optional; when nil they default to the doubling series and
// to BaseTableSize respectively. When set, each must have exactly NumTables elements.
type TAGEConfig struct {
	NumTables      int   `json:"num_tables"`
	BaseTableSize  int   `json:"base_table_size"`
	HistoryLengths []int `json:"history_lengths,omitempty"`
	TableSizes     []int `json:"table_sizes,omitempty"`
	TagBits        int   `json:"tag_bits"`
}

// DefaultTAGEConfig returns the default TAGE geometry.
func DefaultTAGEConfig() TAGEConfig {
	return TAGEConfig{
		NumTables:     DefaultTAGETables,
		BaseTableSize: DefaultTAGEBaseTableSize,
		TagBits:       DefaultTagBits,
	}
}

// Validate checks table counts, sizes, the history series and the tag width.
func (c TAGEConfig) Validate() error {
	if c.NumTables < 0 || c.NumTables > MaxTAGETables {
		return configErr(TAGE, "num_tables", "must be in [0, %d], got %d", MaxTAGETables, c.NumTables)
	}
	if c.BaseTableSize < 1 || c.BaseTableSize > MaxTAGETableSize {
		return configErr(TAGE, "base_table_size", "must be in [1, %d], got %d", MaxTAGETableSize, c.BaseTableSize)
	}
	if c.TagBits < 1 || c.TagBits > MaxTagBits {
		return configErr(TAGE, "tag_bits", "must be in [1, %d], got %d", MaxTagBits, c.TagBits)
	}
	if c.HistoryLengths != nil {
		if len(c.HistoryLengths) != c.NumTables {
			return configErr(TAGE, "history_lengths", "has %d entries, num_tables is %d", len(c.HistoryLengths), c.NumTables)
		}
		prev := 0
		for i, l := range c.HistoryLengths {
			if l <= prev {
				return configErr(TAGE, "history_lengths", "must be positive and strictly increasing, entry %d = %d", i, l)
			}
			if l > MaxTAGEHistoryLength {
				return configErr(TAGE, "history_lengths", "entry %d = %d exceeds %d", i, l, MaxTAGEHistoryLength)
			}
			prev = l
		}
	} else if c.NumTables > 0 && DefaultHistoryLength(c.NumTables-1) > MaxTAGEHistoryLength {
		return configErr(TAGE, "history_lengths", "default series reaches %d with %d tables, exceeds %d",
			DefaultHistoryLength(c.NumTables-1), c.NumTables, MaxTAGEHistoryLength)
	}
	if c.TableSizes != nil {
		if len(c.TableSizes) != c.NumTables {
			return configErr(TAGE, "table_sizes", "has %d entries, num_tables is %d", len(c.TableSizes), c.NumTables)
		}
		for i, s := range c.TableSizes {
			if s < 1 || s > MaxTAGETableSize {
				return configErr(TAGE, "table_sizes", "entry %d must be in [1, %d], got %d", i, MaxTAGETableSize, s)
			}
		}
	}
	return nil
}

// ResolvedHistoryLengths returns the effective history length of every tagged table.
func (c TAGEConfig) ResolvedHistoryLengths() []int {
	if c.HistoryLengths != nil {
		return append([]int(nil), c.HistoryLengths...)
	}
	out := make([]int, c.NumTables)
	for i := range out {
		out[i] = DefaultHistoryLength(i)
	}
	return out
}

// ResolvedTableSizes returns the effective entry count of every tagged table.
func (c TAGEConfig) ResolvedTableSizes() []int {
	if c.TableSizes != nil {
		return append([]int(nil), c.TableSizes...)
	}
	out := make([]int, c.NumTables)
	for i := range out {
		out[i] = c.BaseTableSize
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TAGE ENTRY
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// TAGEEntry is one slot of a tagged table.
//
// FIELDS:
//   Tag:     partial hash of (address, history prefix)
//   Counter: 2-bit prediction counter
//   Useful:  2-bit usefulness counter gating replacement
//
// Validity is tracked outside the entry in the table's valid bitmap.
//
// SystemVerilog equivalent:
//   typedef struct packed {
//     logic [TAG_BITS-1:0] tag;
//     logic [1:0]          counter;
//     logic [1:0]          useful;
//   } tage_entry_t;
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type TAGEEntry struct {
	Tag     uint16
	Counter counter.Saturating
	Useful  counter.Saturating
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TAGE TABLE
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// TAGETable is one tagged table.
//
// WHY SEPARATE VALID BITS:
//   - Bulk clear: Reset() invalidates the table by zeroing a few words
//   - Never-allocated slots can never produce a tag match, whatever their stale tag is
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type TAGETable struct {
	Entries    []TAGEEntry
	ValidBits  []uint64
	HistoryLen int
}

func newTAGETable(size, historyLen int) TAGETable {
	t := TAGETable{
		Entries:    make([]TAGEEntry, size),
		ValidBits:  make([]uint64, (size+63)/64),
		HistoryLen: historyLen,
	}
	t.clear()
	return t
}

// Valid reports whether slot idx holds an allocated entry.
func (t *TAGETable) Valid(idx int) bool {
	return (t.ValidBits[idx>>6]>>(uint(idx)&63))&1 != 0
}

func (t *TAGETable) setValid(idx int) {
	t.ValidBits[idx>>6] |= 1 << (uint(idx) & 63)
}

func (t *TAGETable) clear() {
	for w := range t.ValidBits {
		t.ValidBits[w] = 0
	}
	for i := range t.Entries {
		t.Entries[i] = TAGEEntry{
			Counter: counter.MustNew(counter.TwoBit, counter.WeaklyNotTaken),
			Useful:  counter.MustNew(UsefulBits, 0),
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PROVIDER METADATA
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// BaseProvider is the Provider.Table value for the tag-less base table.
const BaseProvider = -1

// Provider identifies the table and slot that supplies a prediction.
type Provider struct {
	Table int // tagged table number, or BaseProvider
	Index int // slot within that table
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TAGE PREDICTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// TAGEPredictor holds the base table, the tagged tables and the master history register.
type TAGEPredictor struct {
	Base    []counter.Saturating
	Tables  []TAGETable
	History *history.Register

	tagBits uint
	tagMask uint64

	allocations uint64
	decays      uint64
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// INITIAL STATE:
//   - Base table: every counter at 1 (weakly not taken), same as Bimodal
//   - Tagged tables: every slot invalid (allocated on demand)
//   - Master history: width = longest table history, all zero
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// NewTAGE constructs a TAGE predictor.
func NewTAGE(cfg TAGEConfig) (*TAGEPredictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lengths := cfg.ResolvedHistoryLengths()
	sizes := cfg.ResolvedTableSizes()

	p := &TAGEPredictor{
		Base:    newPatternTable(cfg.BaseTableSize),
		Tables:  make([]TAGETable, cfg.NumTables),
		tagBits: uint(cfg.TagBits),
		tagMask: (uint64(1) << uint(cfg.TagBits)) - 1,
	}

	maxHistory := 0
	for i := range p.Tables {
		p.Tables[i] = newTAGETable(sizes[i], lengths[i])
		if lengths[i] > maxHistory {
			maxHistory = lengths[i]
		}
	}
	p.History = history.MustNew(maxHistory)

	return p, nil
}

func (p *TAGEPredictor) Name() string { return TAGE.String() }

func (p *TAGEPredictor) Kind() Kind { return TAGE }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HASH FUNCTIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Each tagged table reads only its own prefix of the master history: h = fold(HistoryLen).
//
//   index = (addr ⊕ h) mod size
//   tag   = ((addr / size) ⊕ top_bits(h × φ)) mod 2^TAG_BITS
//
// The index consumes the low address bits, so the tag is built from the address bits above
// the index plus a golden-ratio mix of the history. Two branches that collide on the index
// therefore still differ in their tag unless they also agree in the higher bits.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func (p *TAGEPredictor) hashIndex(addr uint64, t int) int {
	table := &p.Tables[t]
	h := p.History.Fold(table.HistoryLen)
	return int((addr ^ h) % uint64(len(table.Entries)))
}

func (p *TAGEPredictor) hashTag(addr uint64, t int) uint16 {
	table := &p.Tables[t]
	h := p.History.Fold(table.HistoryLen)
	mixed := h * HashPrime
	return uint16(((addr / uint64(len(table.Entries))) ^ (mixed >> (64 - p.tagBits))) & p.tagMask)
}

func (p *TAGEPredictor) baseIndex(addr uint64) int {
	return int(addr % uint64(len(p.Base)))
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PREDICTION
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// ALGORITHM:
//   1. For each tagged table, longest history first:
//      a. compute index and tag from addr and the table's history prefix
//      b. hit if the slot is valid and its tag matches
//   2. First hit is the provider
//   3. No hit: base table provides
//   4. Prediction = provider counter MSB
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// FindProvider returns the table and slot that would supply the prediction for addr now.
func (p *TAGEPredictor) FindProvider(addr uint64) Provider {
	for t := len(p.Tables) - 1; t >= 0; t-- {
		idx := p.hashIndex(addr, t)
		table := &p.Tables[t]
		if table.Valid(idx) && table.Entries[idx].Tag == p.hashTag(addr, t) {
			return Provider{Table: t, Index: idx}
		}
	}
	return Provider{Table: BaseProvider, Index: p.baseIndex(addr)}
}

func (p *TAGEPredictor) counterAt(pr Provider) *counter.Saturating {
	if pr.Table == BaseProvider {
		return &p.Base[pr.Index]
	}
	return &p.Tables[pr.Table].Entries[pr.Index].Counter
}

func (p *TAGEPredictor) Predict(addr uint64) bool {
	return p.counterAt(p.FindProvider(addr)).Taken()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// UPDATE
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// STAGES:
//   1. Recompute the provider (same history as the prediction)
//   2. Train the provider counter toward the outcome
//   3. Tagged provider: usefulness +1 if it was right, -1 if it was wrong
//   4. Misprediction with a provider shorter than the longest table: allocate (see below)
//   5. Shift the outcome into the master history
//
// The base table is trained only when it is the provider.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func (p *TAGEPredictor) Update(addr uint64, taken bool) {
	pr := p.FindProvider(addr)
	c := p.counterAt(pr)
	correct := c.Taken() == taken

	c.Train(taken)

	if pr.Table != BaseProvider {
		useful := &p.Tables[pr.Table].Entries[pr.Index].Useful
		if correct {
			useful.Inc()
		} else {
			useful.Dec()
		}
	}

	if !correct && pr.Table < len(p.Tables)-1 {
		p.allocate(addr, pr.Table, taken)
	}

	p.History.Push(taken)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ALLOCATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Candidates are the slots addr maps to in every table longer than the provider.
//
// POLICY:
//   1. Walk candidates from the shortest history upward
//   2. First slot that is invalid or has zero usefulness is overwritten:
//        tag     ← computed tag
//        counter ← weak toward the actual outcome (2 if taken, 1 if not)
//        useful  ← 0
//   3. No such slot: decay the usefulness of the shortest-history candidate by one instead
//
// Useful entries survive a one-off misprediction elsewhere; repeated pressure decays them
// until they become replaceable.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func (p *TAGEPredictor) allocate(addr uint64, providerTable int, taken bool) {
	first := providerTable + 1

	for t := first; t < len(p.Tables); t++ {
		idx := p.hashIndex(addr, t)
		table := &p.Tables[t]
		if table.Valid(idx) && !table.Entries[idx].Useful.IsZero() {
			continue
		}

		initial := counter.WeaklyNotTaken
		if taken {
			initial = counter.WeaklyTaken
		}
		table.Entries[idx] = TAGEEntry{
			Tag:     p.hashTag(addr, t),
			Counter: counter.MustNew(counter.TwoBit, initial),
			Useful:  counter.MustNew(UsefulBits, 0),
		}
		table.setValid(idx)
		p.allocations++
		return
	}

	idx := p.hashIndex(addr, first)
	p.Tables[first].Entries[idx].Useful.Dec()
	p.decays++
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// RESET
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Reset restores the freshly constructed state: base counters at 1, tagged tables invalid,
// history cleared, statistics zeroed.
func (p *TAGEPredictor) Reset() {
	patternTable(p.Base).reset()
	for t := range p.Tables {
		p.Tables[t].clear()
	}
	p.History.Reset()
	p.allocations = 0
	p.decays = 0
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// STATISTICS (Debug Only)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type TAGEStats struct {
	EntriesUsed   []int  // valid entries per tagged table
	UsefulEntries []int  // valid entries with nonzero usefulness per tagged table
	Allocations   uint64 // entries written by allocation
	Decays        uint64 // allocations refused in favor of a usefulness decay
}

func (p *TAGEPredictor) Stats() TAGEStats {
	stats := TAGEStats{
		EntriesUsed:   make([]int, len(p.Tables)),
		UsefulEntries: make([]int, len(p.Tables)),
		Allocations:   p.allocations,
		Decays:        p.decays,
	}
	for t := range p.Tables {
		table := &p.Tables[t]
		for i := range table.Entries {
			if !table.Valid(i) {
				continue
			}
			stats.EntriesUsed[t]++
			if !table.Entries[i].Useful.IsZero() {
				stats.UsefulEntries[t]++
			}
		}
	}
	return stats
}
