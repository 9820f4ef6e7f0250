// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Replay Harness - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// The harness is the testbench around a predictor. For every trace entry, in order:
//
//   1. prediction ← Predict(address)
//   2. correct   += prediction == outcome
//   3. Update(address, outcome)
//
// The predictor never sees the outcome before it commits to a prediction, and the trace is
// never reordered: history-based predictors give different results on a permuted trace.
//
// PARALLEL COMPARISON:
//   Compare replays every (dataset, predictor kind) pair on its own freshly constructed
//   predictor. Pairs share nothing but the read-only trace, so they run on a bounded pool of
//   goroutines. Results come back in (dataset, kind) order regardless of completion order.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"bpsim/proto/predictor"
	"bpsim/proto/trace"
)

// Result is the score of one predictor over one dataset.
type Result struct {
	Predictor string         `json:"predictor"`
	Kind      predictor.Kind `json:"kind"`
	Dataset   string         `json:"dataset"`
	Correct   int            `json:"correct"`
	Total     int            `json:"total"`
}

// Accuracy returns Correct/Total. ok is false when the trace was empty.
func (r Result) Accuracy() (acc float64, ok bool) {
	if r.Total == 0 {
		return 0, false
	}
	return float64(r.Correct) / float64(r.Total), true
}

// Mispredictions returns Total - Correct.
func (r Result) Mispredictions() int { return r.Total - r.Correct }

// MispredictionRate returns Mispredictions/Total. ok is false when the trace was empty.
func (r Result) MispredictionRate() (rate float64, ok bool) {
	if r.Total == 0 {
		return 0, false
	}
	return float64(r.Mispredictions()) / float64(r.Total), true
}

func (r Result) String() string {
	acc, ok := r.Accuracy()
	if !ok {
		return fmt.Sprintf("%s/%s: no data", r.Dataset, r.Predictor)
	}
	return fmt.Sprintf("%s/%s: %d/%d (%.2f%%)", r.Dataset, r.Predictor, r.Correct, r.Total, acc*100)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SEQUENTIAL REPLAY
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Run replays tr through p, which is mutated by the replay. Pass a fresh or Reset predictor to
// score from a cold start.
func Run(p predictor.Predictor, dataset string, tr trace.Trace) Result {
	res := Result{
		Predictor: p.Name(),
		Kind:      p.Kind(),
		Dataset:   dataset,
		Total:     len(tr),
	}
	for _, e := range tr {
		taken := bool(e.Outcome)
		if p.Predict(e.Address) == taken {
			res.Correct++
		}
		p.Update(e.Address, taken)
	}
	return res
}

// RunFresh constructs a new predictor of the given kind and replays tr through it.
func RunFresh(kind predictor.Kind, cfg predictor.Config, dataset string, tr trace.Trace) (Result, error) {
	p, err := predictor.New(kind, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("construct %s: %w", kind, err)
	}
	return Run(p, dataset, tr), nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PARALLEL COMPARISON
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Dataset is a named trace.
type Dataset struct {
	Name  string
	Trace trace.Trace
}

// Options controls Compare.
type Options struct {
	// Kinds to evaluate, in report order. Empty means every kind.
	Kinds  []predictor.Kind
	Config predictor.Config
	// Workers bounds the goroutine pool. Zero or negative means GOMAXPROCS.
	Workers int
}

// ErrNoDatasets is returned by Compare when called without datasets.
var ErrNoDatasets = errors.New("no datasets to compare")

type job struct {
	slot    int
	kind    predictor.Kind
	dataset *Dataset
}

// Compare replays every dataset through every requested kind, each pair on a fresh predictor.
//
// The context is checked between replays; a replay in progress always runs to completion.
// The first construction error or context error aborts the remaining jobs.
func Compare(ctx context.Context, datasets []Dataset, opts Options) ([]Result, error) {
	if len(datasets) == 0 {
		return nil, ErrNoDatasets
	}
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = predictor.Kinds()
	}

	// Reject bad geometry before any goroutine starts.
	for _, k := range kinds {
		if _, err := predictor.New(k, opts.Config); err != nil {
			return nil, fmt.Errorf("construct %s: %w", k, err)
		}
	}

	jobs := make([]job, 0, len(datasets)*len(kinds))
	for d := range datasets {
		for _, k := range kinds {
			jobs = append(jobs, job{slot: len(jobs), kind: k, dataset: &datasets[d]})
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		results  = make([]Result, len(jobs))
		queue    = make(chan job)
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				if err := ctx.Err(); err != nil {
					fail(err)
					continue
				}
				res, err := RunFresh(j.kind, opts.Config, j.dataset.Name, j.dataset.Trace)
				if err != nil {
					fail(fmt.Errorf("dataset %s: %w", j.dataset.Name, err))
					continue
				}
				results[j.slot] = res
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case queue <- j:
		case <-ctx.Done():
			fail(ctx.Err())
			break feed
		}
	}
	close(queue)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
