// Package tracegen synthesizes branch traces that imitate three application classes.
//
// Every workload is deterministic for a given (size, seed): the generator owns its own
// math/rand source and never touches the global one.
package tracegen

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"bpsim/proto/trace"
)

var (
	ErrUnknownWorkload = errors.New("unknown workload")
	ErrInvalidSize     = errors.New("trace size must be positive")
)

// DefaultSize is the number of branches generated per workload when none is requested.
const DefaultSize = 2000

// Workload describes one synthetic trace family.
type Workload struct {
	Name        string // identifier, e.g. "ml_app"
	Title       string // display name, e.g. "ML App"
	Description string
	// BaseAddress is the address of branch 0; branch i sits at BaseAddress+i.
	BaseAddress uint64

	outcome func(i int, rng *rand.Rand) bool
}

// Filename is the conventional CSV file name of the workload.
func (w Workload) Filename() string {
	return w.Name + "_branch_dataset.csv"
}

// Generate produces size branches.
func (w Workload) Generate(size int, seed int64) (trace.Trace, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	rng := rand.New(rand.NewSource(seed ^ int64(w.BaseAddress)))
	tr := make(trace.Trace, size)
	for i := range tr {
		tr[i] = trace.Entry{
			Address: w.BaseAddress + uint64(i),
			Outcome: trace.Outcome(w.outcome(i, rng)),
		}
	}
	return tr, nil
}

// noisy replaces the outcome with a biased coin flip with probability p.
func noisy(rng *rand.Rand, outcome bool, p, takenBias float64) bool {
	if rng.Float64() < p {
		return rng.Float64() < takenBias
	}
	return outcome
}

var workloads = []Workload{
	{
		Name:        "ml_app",
		Title:       "ML App",
		Description: "Machine learning application with repetitive training/inference loops",
		BaseAddress: 2000,
		// 15 taken then 5 not taken, 5% of branches data dependent (70% taken).
		outcome: func(i int, rng *rand.Rand) bool {
			return noisy(rng, i%20 < 15, 0.05, 0.7)
		},
	},
	{
		Name:        "io_app",
		Title:       "I/O Heavy App",
		Description: "I/O heavy application with wait loops and data availability checks",
		BaseAddress: 3000,
		// 5 not taken then 20 taken, 15% of branches follow external state (50/50).
		outcome: func(i int, rng *rand.Rand) bool {
			return noisy(rng, i%25 >= 5, 0.15, 0.5)
		},
	},
	{
		Name:        "general_app",
		Title:       "General App",
		Description: "General application with weakly biased, unpredictable branches",
		BaseAddress: 4000,
		outcome: func(_ int, rng *rand.Rand) bool {
			return rng.Float64() < 0.6
		},
	},
}

// Workloads returns every built-in workload in canonical order.
func Workloads() []Workload {
	return append([]Workload(nil), workloads...)
}

// Names returns the workload identifiers in canonical order.
func Names() []string {
	out := make([]string, len(workloads))
	for i, w := range workloads {
		out[i] = w.Name
	}
	return out
}

// Lookup finds a workload by name.
func Lookup(name string) (Workload, error) {
	for _, w := range workloads {
		if w.Name == name {
			return w, nil
		}
	}
	known := Names()
	sort.Strings(known)
	return Workload{}, fmt.Errorf("%w %q (known: %v)", ErrUnknownWorkload, name, known)
}

// Generate produces size branches of the named workload.
func Generate(name string, size int, seed int64) (trace.Trace, error) {
	w, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return w.Generate(size, seed)
}
