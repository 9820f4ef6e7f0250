package predictor

import (
	"errors"
	"math/rand"
	"testing"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Branch Predictor Set - Test Suite
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// TEST ORGANIZATION:
// ──────────────────
// 1. KIND TESTS
//    Names, slugs, parsing
//
// 2. CONFIGURATION TESTS
//    Defaults valid, every rejected field reported as *ConfigError
//
// 3. STATIC PREDICTOR TESTS
//
// 4. BIMODAL TESTS
//    Initial state, cold-start walkthrough, aliasing, reset
//
// 5. GSHARE TESTS
//    Zero-history equivalence with Bimodal, history correlation
//
// 6. PERCEPTRON TESTS
//    Zero-weight output, seeded weights, clamping, learning
//
// TAGE has its own file.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type step struct {
	addr  uint64
	taken bool
}

// replay runs predict-then-update over steps and returns the predictions and the correct count.
func replay(p Predictor, steps []step) ([]bool, int) {
	preds := make([]bool, len(steps))
	correct := 0
	for i, s := range steps {
		preds[i] = p.Predict(s.addr)
		if preds[i] == s.taken {
			correct++
		}
		p.Update(s.addr, s.taken)
	}
	return preds, correct
}

func randomSteps(seed int64, n int, addrs int) []step {
	rng := rand.New(rand.NewSource(seed))
	out := make([]step, n)
	for i := range out {
		out[i] = step{addr: uint64(0x1000 + rng.Intn(addrs)*4), taken: rng.Intn(100) < 65}
	}
	return out
}

// periodic returns n outcomes of the T,T,N pattern at a single address.
func periodic(addr uint64, n int) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = step{addr: addr, taken: i%3 != 2}
	}
	return out
}

func mustNew(t *testing.T, k Kind, cfg Config) Predictor {
	t.Helper()
	p, err := New(k, cfg)
	if err != nil {
		t.Fatalf("New(%s): %v", k, err)
	}
	return p
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 1. KIND TESTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestKind_NamesAndSlugs(t *testing.T) {
	want := map[Kind][2]string{
		AlwaysTaken: {"Always Taken", "always_taken"},
		NeverTaken:  {"Never Taken", "never_taken"},
		Bimodal:     {"Bimodal", "bimodal"},
		GShare:      {"GShare", "gshare"},
		Perceptron:  {"Perceptron", "perceptron"},
		TAGE:        {"TAGE", "tage"},
	}
	if len(Kinds()) != len(want) {
		t.Fatalf("Kinds() returned %d kinds, want %d", len(Kinds()), len(want))
	}
	for _, k := range Kinds() {
		if k.String() != want[k][0] || k.Slug() != want[k][1] {
			t.Errorf("kind %d: got (%q, %q), want %v", int(k), k.String(), k.Slug(), want[k])
		}
	}
}

func TestKind_Parse(t *testing.T) {
	cases := map[string]Kind{
		"gshare":       GShare,
		"GShare":       GShare,
		" tage ":       TAGE,
		"Always Taken": AlwaysTaken,
		"never_taken":  NeverTaken,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKind("neural"); err == nil {
		t.Error("ParseKind should reject unknown names")
	}
}

func TestKind_ParseList(t *testing.T) {
	all, err := ParseKinds("")
	if err != nil || len(all) != 6 {
		t.Fatalf("empty list should select all kinds, got %v, %v", all, err)
	}

	got, err := ParseKinds("tage,bimodal")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != TAGE || got[1] != Bimodal {
		t.Errorf("order not preserved: %v", got)
	}

	if _, err := ParseKinds("tage,,bimodal"); err == nil {
		t.Error("empty element should be rejected")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 2. CONFIGURATION TESTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestConfig_DefaultsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	for _, k := range Kinds() {
		if p := mustNew(t, k, cfg); p.Kind() != k || p.Name() != k.String() {
			t.Errorf("New(%s) returned %s/%q", k, p.Kind(), p.Name())
		}
	}
}

func TestConfig_DefaultsAreFreshValues(t *testing.T) {
	a := DefaultConfig()
	a.Bimodal.TableSize = 7
	if DefaultConfig().Bimodal.TableSize != DefaultBimodalTableSize {
		t.Error("mutating one default config leaked into the next")
	}
}

func TestConfig_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		kind  Kind
		field string
		edit  func(*Config)
	}{
		{"bimodal zero size", Bimodal, "table_size", func(c *Config) { c.Bimodal.TableSize = 0 }},
		{"gshare zero size", GShare, "table_size", func(c *Config) { c.GShare.TableSize = 0 }},
		{"gshare negative history", GShare, "history_bits", func(c *Config) { c.GShare.HistoryBits = -1 }},
		{"gshare history too wide", GShare, "history_bits", func(c *Config) { c.GShare.HistoryBits = 65 }},
		{"perceptron zero size", Perceptron, "table_size", func(c *Config) { c.Perceptron.TableSize = 0 }},
		{"perceptron zero history", Perceptron, "history_length", func(c *Config) { c.Perceptron.HistoryLength = 0 }},
		{"perceptron zero threshold", Perceptron, "threshold", func(c *Config) { c.Perceptron.Threshold = 0 }},
		{"perceptron short seed", Perceptron, "initial_weights", func(c *Config) { c.Perceptron.InitialWeights = []int{1, 2} }},
		{"perceptron seed out of range", Perceptron, "initial_weights", func(c *Config) {
			c.Perceptron.InitialWeights = make([]int, c.Perceptron.HistoryLength+1)
			c.Perceptron.InitialWeights[3] = 200
		}},
		{"tage zero base", TAGE, "base_table_size", func(c *Config) { c.TAGE.BaseTableSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.edit(&cfg)

			_, err := New(tc.kind, cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("want ErrInvalidConfig, got %v", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("want *ConfigError, got %T", err)
			}
			if ce.Kind != tc.kind || ce.Field != tc.field {
				t.Errorf("got %s/%s, want %s/%s", ce.Kind, ce.Field, tc.kind, tc.field)
			}
			if cfg.Validate() == nil {
				t.Error("Config.Validate accepted the same configuration")
			}
		})
	}
}

func TestConfig_NewReturnsNilOnError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GShare.TableSize = -4
	p, err := New(GShare, cfg)
	if err == nil || p != nil {
		t.Fatalf("want (nil, err), got (%v, %v)", p, err)
	}
}

func TestConfig_NewSetIndependentInstances(t *testing.T) {
	cfg := DefaultConfig()
	set, err := NewSet([]Kind{Bimodal, Bimodal}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	set[0].Update(0x40, true)
	if set[0].Predict(0x40) == set[1].Predict(0x40) {
		t.Error("training one instance changed the other")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 3. STATIC PREDICTOR TESTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestStatic_MatchesTakenFraction(t *testing.T) {
	steps := randomSteps(3, 500, 16)
	taken := 0
	for _, s := range steps {
		if s.taken {
			taken++
		}
	}

	_, at := replay(NewAlwaysTaken(), steps)
	_, nt := replay(NewNeverTaken(), steps)

	if at != taken {
		t.Errorf("Always Taken correct = %d, want %d", at, taken)
	}
	if nt != len(steps)-taken {
		t.Errorf("Never Taken correct = %d, want %d", nt, len(steps)-taken)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 4. BIMODAL TESTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestBimodal_InitialWeaklyNotTaken(t *testing.T) {
	p, _ := NewBimodal(DefaultBimodalConfig())
	for _, addr := range []uint64{0, 1, 0x400, 0xFFFF_FFFF} {
		if p.Predict(addr) {
			t.Errorf("fresh counter at %#x predicts taken", addr)
		}
		if p.Counter(addr) != 1 {
			t.Errorf("fresh counter at %#x = %d, want 1", addr, p.Counter(addr))
		}
	}
}

func TestBimodal_ColdStartWalkthrough(t *testing.T) {
	// WHAT: Exact predictions of a one-entry table on T,T,N,T
	//
	//   counter  1 → predict N, actual T → 2
	//   counter  2 → predict T, actual T → 3
	//   counter  3 → predict T, actual N → 2
	//   counter  2 → predict T, actual T → 3

	p, err := NewBimodal(BimodalConfig{TableSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	steps := []step{{0x100, true}, {0x100, true}, {0x100, false}, {0x100, true}}

	preds, correct := replay(p, steps)

	want := []bool{false, true, true, true}
	for i := range want {
		if preds[i] != want[i] {
			t.Errorf("prediction %d = %v, want %v", i, preds[i], want[i])
		}
	}
	if correct != 2 {
		t.Errorf("correct = %d, want 2", correct)
	}
	if p.Counter(0x100) != 3 {
		t.Errorf("final counter = %d, want 3", p.Counter(0x100))
	}
}

func TestBimodal_AliasingSharesCounter(t *testing.T) {
	p, _ := NewBimodal(BimodalConfig{TableSize: 16})
	p.Update(0x3, true)
	if !p.Predict(0x13) {
		t.Error("addresses congruent mod table size must share a counter")
	}
	if p.Predict(0x4) {
		t.Error("neighbouring slot must be unaffected")
	}
}

func TestBimodal_Reset(t *testing.T) {
	p, _ := NewBimodal(BimodalConfig{TableSize: 8})
	steps := randomSteps(9, 200, 8)
	first, _ := replay(p, steps)
	p.Reset()
	second, _ := replay(p, steps)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("prediction %d differs after Reset", i)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 5. GSHARE TESTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestGShare_ZeroHistoryEqualsBimodal(t *testing.T) {
	g, err := NewGShare(GShareConfig{TableSize: 64, HistoryBits: 0})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewBimodal(BimodalConfig{TableSize: 64})

	steps := randomSteps(11, 2000, 100)
	gp, gc := replay(g, steps)
	bp, bc := replay(b, steps)

	if gc != bc {
		t.Fatalf("correct counts differ: gshare %d, bimodal %d", gc, bc)
	}
	for i := range gp {
		if gp[i] != bp[i] {
			t.Fatalf("prediction %d differs", i)
		}
	}
	if g.History() != 0 {
		t.Errorf("zero-width history = %d", g.History())
	}
}

func TestGShare_HistoryTracksOutcomes(t *testing.T) {
	g, _ := NewGShare(GShareConfig{TableSize: 1024, HistoryBits: 4})
	for _, taken := range []bool{true, false, true, true, true} {
		g.Update(0x10, taken)
	}
	// Last four outcomes, newest in bit 0: T,T,T,F (bit 3) → 0b0111
	if g.History() != 0b0111 {
		t.Errorf("history = %04b, want 0111", g.History())
	}
}

func TestGShare_LearnsPeriodicPattern(t *testing.T) {
	g, _ := NewGShare(DefaultGShareConfig())
	b, _ := NewBimodal(DefaultBimodalConfig())
	steps := periodic(0x2000, 3000)

	_, gc := replay(g, steps)
	_, bc := replay(b, steps)

	if float64(gc)/3000 < 0.95 {
		t.Errorf("gshare accuracy %.3f on T,T,N", float64(gc)/3000)
	}
	if gc <= bc {
		t.Errorf("gshare (%d) should beat bimodal (%d) on a history-correlated pattern", gc, bc)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 6. PERCEPTRON TESTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestPerceptron_ZeroWeightsPredictTaken(t *testing.T) {
	p, _ := NewPerceptron(DefaultPerceptronConfig())
	if p.Output(0x80) != 0 || !p.Predict(0x80) {
		t.Errorf("zero weights: output %d, want 0 and taken", p.Output(0x80))
	}
}

func TestPerceptron_FirstUpdate(t *testing.T) {
	// Empty history means every x_i = -1. y = 0 ≤ θ, so a taken outcome trains:
	//   w0 += 1, w_i += (+1)(-1)
	p, _ := NewPerceptron(PerceptronConfig{TableSize: 4, HistoryLength: 3, Threshold: 1.5})
	p.Update(0x1, true)

	want := []int{1, -1, -1, -1}
	got := p.Weights(0x1)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("weights = %v, want %v", got, want)
		}
	}
	if other := p.Weights(0x2); other[0] != 0 {
		t.Errorf("untouched perceptron changed: %v", other)
	}
}

func TestPerceptron_SeededWeights(t *testing.T) {
	cfg := PerceptronConfig{TableSize: 2, HistoryLength: 2, Threshold: 1.5, InitialWeights: []int{-5, 1, 1}}
	p, err := NewPerceptron(cfg)
	if err != nil {
		t.Fatal(err)
	}
	// history empty: y = -5 - 1 - 1 = -7
	if p.Output(0) != -7 || p.Predict(0) {
		t.Errorf("seeded output = %d", p.Output(0))
	}

	p.Update(0, true)
	p.Reset()
	if w := p.Weights(1); w[0] != -5 || w[1] != 1 || w[2] != 1 {
		t.Errorf("Reset should restore the seed, got %v", w)
	}

	cfg.InitialWeights[0] = 99
	if w := p.Weights(0); w[0] != -5 {
		t.Error("predictor aliases the caller's seed slice")
	}
}

func TestPerceptron_WeightsSaturate(t *testing.T) {
	cfg := PerceptronConfig{TableSize: 1, HistoryLength: 1, Threshold: 1e9, InitialWeights: []int{MaxWeight, MaxWeight}}
	p, _ := NewPerceptron(cfg)

	// Threshold is huge, so every update trains.
	for i := 0; i < 3; i++ {
		p.Update(0, true)
	}
	w := p.Weights(0)
	if w[0] != MaxWeight || w[1] != MaxWeight {
		t.Errorf("weights = %v, want saturated at %d", w, MaxWeight)
	}

	cfg.InitialWeights = []int{MinWeight, 0}
	p, _ = NewPerceptron(cfg)
	for i := 0; i < 5; i++ {
		p.Update(0, false)
	}
	if w := p.Weights(0); w[0] != MinWeight {
		t.Errorf("bias = %d, want saturated at %d", w[0], MinWeight)
	}
}

func TestPerceptron_Deterministic(t *testing.T) {
	steps := randomSteps(5, 3000, 64)
	a, _ := NewPerceptron(DefaultPerceptronConfig())
	b, _ := NewPerceptron(DefaultPerceptronConfig())
	pa, ca := replay(a, steps)
	pb, cb := replay(b, steps)
	if ca != cb {
		t.Fatalf("correct counts differ: %d vs %d", ca, cb)
	}
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("prediction %d differs", i)
		}
	}
}

func TestPerceptron_LearnsPeriodicPattern(t *testing.T) {
	// N follows exactly when the last two outcomes were T,T: linearly separable.
	p, _ := NewPerceptron(DefaultPerceptronConfig())
	_, correct := replay(p, periodic(0x3000, 3000))
	if acc := float64(correct) / 3000; acc < 0.9 {
		t.Errorf("accuracy %.3f on T,T,N", acc)
	}
}
