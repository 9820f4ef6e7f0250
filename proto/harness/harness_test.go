package harness_test

import (
	"context"
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bpsim/proto/harness"
	"bpsim/proto/predictor"
	"bpsim/proto/trace"
)

func randomTrace(seed int64, n int) trace.Trace {
	rng := rand.New(rand.NewSource(seed))
	tr := make(trace.Trace, n)
	for i := range tr {
		tr[i] = trace.Entry{
			Address: uint64(0x4000 + rng.Intn(64)),
			Outcome: trace.Outcome(rng.Intn(10) < 6),
		}
	}
	return tr
}

func seq(addr uint64, outcomes ...bool) trace.Trace {
	tr := make(trace.Trace, len(outcomes))
	for i, o := range outcomes {
		tr[i] = trace.Entry{Address: addr, Outcome: trace.Outcome(o)}
	}
	return tr
}

var _ = Describe("Result", func() {
	It("should report accuracy and misprediction rate", func() {
		r := harness.Result{Correct: 3, Total: 4}
		acc, ok := r.Accuracy()
		Expect(ok).To(BeTrue())
		Expect(acc).To(Equal(0.75))

		rate, ok := r.MispredictionRate()
		Expect(ok).To(BeTrue())
		Expect(rate).To(Equal(0.25))
		Expect(r.Mispredictions()).To(Equal(1))
	})

	It("should report no data for an empty trace", func() {
		r := harness.Result{Dataset: "empty", Predictor: "Bimodal"}
		_, ok := r.Accuracy()
		Expect(ok).To(BeFalse())
		_, ok = r.MispredictionRate()
		Expect(ok).To(BeFalse())
		Expect(r.String()).To(ContainSubstring("no data"))
	})
})

var _ = Describe("Run", func() {
	cfg := predictor.DefaultConfig()

	It("should score the one-counter Bimodal walkthrough", func() {
		c := cfg
		c.Bimodal.TableSize = 1
		res, err := harness.RunFresh(predictor.Bimodal, c, "e2e", seq(0x100, true, true, false, true))
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Correct).To(Equal(2))
		Expect(res.Total).To(Equal(4))
		Expect(res.Kind).To(Equal(predictor.Bimodal))
		Expect(res.Predictor).To(Equal("Bimodal"))
		Expect(res.Dataset).To(Equal("e2e"))
		acc, _ := res.Accuracy()
		Expect(acc).To(Equal(0.5))
	})

	It("should score static predictors by the taken fraction", func() {
		tr := randomTrace(1, 1000)
		at, _ := harness.RunFresh(predictor.AlwaysTaken, cfg, "d", tr)
		nt, _ := harness.RunFresh(predictor.NeverTaken, cfg, "d", tr)

		Expect(at.Correct).To(Equal(tr.TakenCount()))
		Expect(at.Correct + nt.Correct).To(Equal(len(tr)))
	})

	It("should return no data for every kind on an empty trace", func() {
		for _, k := range predictor.Kinds() {
			res, err := harness.RunFresh(k, cfg, "empty", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Total).To(BeZero())
			_, ok := res.Accuracy()
			Expect(ok).To(BeFalse())
		}
	})

	It("should be order sensitive for stateful predictors", func() {
		tr := seq(0x8, true, true, false, false)

		fwd, _ := harness.RunFresh(predictor.Bimodal, cfg, "d", tr)
		rev, _ := harness.RunFresh(predictor.Bimodal, cfg, "d", tr.Reversed())

		Expect(fwd.Correct).To(Equal(1))
		Expect(rev.Correct).To(Equal(2))
	})

	It("should be order sensitive for history-based predictors", func() {
		short := cfg
		short.GShare.HistoryBits = 1

		cases := []struct {
			kind     predictor.Kind
			cfg      predictor.Config
			tr       trace.Trace
			fwd, rev int
		}{
			// one history bit: forward never lands on a trained counter, reversed repeats index 8
			{predictor.GShare, short, seq(0x8, true, true, false, false), 0, 2},
			// zero weights predict taken; training on the first outcome flips the second prediction
			{predictor.Perceptron, cfg, seq(0x8, true, false), 1, 0},
			// the base counter provides both lookups; only the forward order trains it to taken
			{predictor.TAGE, cfg, seq(0x8, true, false), 0, 1},
		}
		for _, tc := range cases {
			fwd, err := harness.RunFresh(tc.kind, tc.cfg, "d", tc.tr)
			Expect(err).NotTo(HaveOccurred())
			rev, err := harness.RunFresh(tc.kind, tc.cfg, "d", tc.tr.Reversed())
			Expect(err).NotTo(HaveOccurred())

			Expect(fwd.Correct).To(Equal(tc.fwd), tc.kind.String())
			Expect(rev.Correct).To(Equal(tc.rev), tc.kind.String())
		}
	})

	It("should be order invariant for static predictors", func() {
		tr := randomTrace(2, 500)
		for _, k := range []predictor.Kind{predictor.AlwaysTaken, predictor.NeverTaken} {
			fwd, _ := harness.RunFresh(k, cfg, "d", tr)
			rev, _ := harness.RunFresh(k, cfg, "d", tr.Reversed())
			Expect(fwd.Correct).To(Equal(rev.Correct))
		}
	})

	It("should continue from the predictor's current state", func() {
		c := cfg
		c.Bimodal.TableSize = 1
		p, err := predictor.New(predictor.Bimodal, c)
		Expect(err).NotTo(HaveOccurred())

		first := harness.Run(p, "d", seq(0x1, true, true))
		second := harness.Run(p, "d", seq(0x1, true, true))
		Expect(first.Correct).To(Equal(1))
		Expect(second.Correct).To(Equal(2))

		p.Reset()
		Expect(harness.Run(p, "d", seq(0x1, true, true)).Correct).To(Equal(1))
	})

	It("should surface configuration errors", func() {
		c := cfg
		c.Perceptron.InitialWeights = []int{1}
		_, err := harness.RunFresh(predictor.Perceptron, c, "d", randomTrace(3, 10))
		Expect(errors.Is(err, predictor.ErrInvalidConfig)).To(BeTrue())
	})
})

var _ = Describe("Compare", func() {
	var datasets []harness.Dataset

	BeforeEach(func() {
		datasets = []harness.Dataset{
			{Name: "alpha", Trace: randomTrace(10, 800)},
			{Name: "beta", Trace: randomTrace(11, 800)},
			{Name: "empty"},
		}
	})

	It("should return results in dataset, kind order", func() {
		kinds := []predictor.Kind{predictor.TAGE, predictor.Bimodal}
		results, err := harness.Compare(context.Background(), datasets, harness.Options{
			Kinds:   kinds,
			Config:  predictor.DefaultConfig(),
			Workers: 4,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(6))

		i := 0
		for _, d := range datasets {
			for _, k := range kinds {
				Expect(results[i].Dataset).To(Equal(d.Name))
				Expect(results[i].Kind).To(Equal(k))
				i++
			}
		}
	})

	It("should match sequential replays on fresh predictors", func() {
		cfg := predictor.DefaultConfig()
		results, err := harness.Compare(context.Background(), datasets, harness.Options{Config: cfg, Workers: 8})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(len(datasets) * len(predictor.Kinds())))

		for _, r := range results {
			var tr trace.Trace
			for _, d := range datasets {
				if d.Name == r.Dataset {
					tr = d.Trace
				}
			}
			want, err := harness.RunFresh(r.Kind, cfg, r.Dataset, tr)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(Equal(want))
		}
	})

	It("should not depend on the worker count", func() {
		opts := harness.Options{Config: predictor.DefaultConfig(), Workers: 1}
		one, err := harness.Compare(context.Background(), datasets, opts)
		Expect(err).NotTo(HaveOccurred())

		opts.Workers = 16
		many, err := harness.Compare(context.Background(), datasets, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(many).To(Equal(one))
	})

	It("should leave the shared traces untouched", func() {
		before := append(trace.Trace(nil), datasets[0].Trace...)
		_, err := harness.Compare(context.Background(), datasets, harness.Options{Config: predictor.DefaultConfig()})
		Expect(err).NotTo(HaveOccurred())
		Expect(datasets[0].Trace).To(Equal(before))
	})

	It("should reject an empty dataset list", func() {
		_, err := harness.Compare(context.Background(), nil, harness.Options{Config: predictor.DefaultConfig()})
		Expect(err).To(MatchError(harness.ErrNoDatasets))
	})

	It("should reject invalid geometry before running", func() {
		cfg := predictor.DefaultConfig()
		cfg.TAGE.TagBits = 0
		_, err := harness.Compare(context.Background(), datasets, harness.Options{Config: cfg})
		Expect(errors.Is(err, predictor.ErrInvalidConfig)).To(BeTrue())
	})

	It("should stop on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := harness.Compare(ctx, datasets, harness.Options{Config: predictor.DefaultConfig()})
		Expect(err).To(MatchError(context.Canceled))
	})
})
