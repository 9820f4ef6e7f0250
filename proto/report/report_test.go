package report_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bpsim/proto/harness"
	"bpsim/proto/predictor"
	"bpsim/proto/report"
)

func result(dataset string, k predictor.Kind, correct, total int) harness.Result {
	return harness.Result{Predictor: k.String(), Kind: k, Dataset: dataset, Correct: correct, Total: total}
}

func names(rows []harness.Result) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Predictor
	}
	return out
}

var _ = Describe("Build", func() {
	var rep report.Report

	BeforeEach(func() {
		rep = report.Build([]harness.Result{
			result("a", predictor.AlwaysTaken, 5, 10),
			result("a", predictor.Bimodal, 8, 10),
			result("a", predictor.TAGE, 9, 10),
			result("b", predictor.AlwaysTaken, 7, 10),
			result("b", predictor.Bimodal, 6, 10),
			result("b", predictor.TAGE, 6, 10),
			result("empty", predictor.AlwaysTaken, 0, 0),
			result("empty", predictor.Bimodal, 0, 0),
			result("empty", predictor.NeverTaken, 0, 0),
		})
	})

	Describe("sections", func() {
		It("should keep datasets in first-appearance order", func() {
			Expect(rep.Datasets()).To(Equal([]string{"a", "b", "empty"}))
		})

		It("should rank rows by accuracy", func() {
			a, ok := rep.Section("a")
			Expect(ok).To(BeTrue())
			Expect(names(a.Rows)).To(Equal([]string{"TAGE", "Bimodal", "Always Taken"}))
		})

		It("should keep input order on ties", func() {
			b, _ := rep.Section("b")
			Expect(names(b.Rows)).To(Equal([]string{"Always Taken", "Bimodal", "TAGE"}))
		})

		It("should pick the best predictor per dataset", func() {
			a, _ := rep.Section("a")
			best, ok := a.Best()
			Expect(ok).To(BeTrue())
			Expect(best.Kind).To(Equal(predictor.TAGE))

			b, _ := rep.Section("b")
			best, _ = b.Best()
			Expect(best.Kind).To(Equal(predictor.AlwaysTaken))
		})

		It("should report no best predictor when a dataset has no data", func() {
			e, _ := rep.Section("empty")
			_, ok := e.Best()
			Expect(ok).To(BeFalse())
			Expect(e.Rows).To(HaveLen(3))
		})

		It("should place no-data rows last", func() {
			r := report.Build([]harness.Result{
				result("mixed", predictor.Bimodal, 0, 0),
				result("mixed", predictor.NeverTaken, 1, 10),
			})
			Expect(names(r.Sections[0].Rows)).To(Equal([]string{"Never Taken", "Bimodal"}))
		})

		It("should report a missing dataset", func() {
			_, ok := rep.Section("missing")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("summaries", func() {
		It("should sort by average accuracy", func() {
			var order []string
			for _, s := range rep.Summaries {
				order = append(order, s.Predictor)
			}
			Expect(order).To(Equal([]string{"TAGE", "Bimodal", "Always Taken", "Never Taken"}))
		})

		It("should skip datasets without data", func() {
			s := rep.Summaries[1]
			Expect(s.Kind).To(Equal(predictor.Bimodal))
			Expect(s.Datasets).To(Equal(2))
			Expect(s.Average).To(BeNumerically("~", 0.7, 1e-12))
			Expect(s.Min).To(BeNumerically("~", 0.6, 1e-12))
			Expect(s.Max).To(BeNumerically("~", 0.8, 1e-12))
		})

		It("should compute the population standard deviation", func() {
			s := rep.Summaries[0]
			Expect(s.Kind).To(Equal(predictor.TAGE))
			Expect(s.StdDev).To(BeNumerically("~", 0.15, 1e-12))
		})

		It("should keep predictors without any data", func() {
			last := rep.Summaries[len(rep.Summaries)-1]
			Expect(last.Kind).To(Equal(predictor.NeverTaken))
			Expect(last.HasData()).To(BeFalse())
		})

		It("should name the overall winner", func() {
			best, ok := rep.Overall()
			Expect(ok).To(BeTrue())
			Expect(best.Kind).To(Equal(predictor.TAGE))
		})
	})

	Describe("lookups", func() {
		It("should find a single result", func() {
			r, ok := rep.Lookup("b", "Bimodal")
			Expect(ok).To(BeTrue())
			Expect(r.Correct).To(Equal(6))

			_, ok = rep.Lookup("b", "Perceptron")
			Expect(ok).To(BeFalse())
		})

		It("should list predictors in first-appearance order", func() {
			Expect(rep.Predictors()).To(Equal([]string{"Always Taken", "Bimodal", "TAGE", "Never Taken"}))
		})

		It("should not alias the input slice", func() {
			in := []harness.Result{result("a", predictor.Bimodal, 1, 2)}
			r := report.Build(in)
			in[0].Correct = 2
			Expect(r.Results[0].Correct).To(Equal(1))
			Expect(r.Sections[0].Rows[0].Correct).To(Equal(1))
		})
	})

	It("should handle no results", func() {
		r := report.Build(nil)
		Expect(r.Sections).To(BeEmpty())
		_, ok := r.Overall()
		Expect(ok).To(BeFalse())
	})
})
