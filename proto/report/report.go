// Package report aggregates harness results into a comparison: per-dataset rankings, the best
// predictor of each dataset and per-predictor statistics across datasets.
//
// Build is pure aggregation. Rendering lives with the callers (see internal/export).
package report

import (
	"math"
	"sort"

	"bpsim/proto/harness"
	"bpsim/proto/predictor"
)

// Section is the ranking of every predictor on one dataset.
type Section struct {
	Dataset string
	// Rows are sorted by accuracy, highest first. Rows without data come last. Ties keep the
	// input order.
	Rows []harness.Result
}

// Best returns the top row with data. ok is false when no predictor produced data.
func (s Section) Best() (harness.Result, bool) {
	if len(s.Rows) == 0 {
		return harness.Result{}, false
	}
	if _, ok := s.Rows[0].Accuracy(); !ok {
		return harness.Result{}, false
	}
	return s.Rows[0], true
}

// Summary is one predictor's accuracy across the datasets where it produced data.
type Summary struct {
	Predictor string
	Kind      predictor.Kind
	Datasets  int // datasets with data
	Average   float64
	Min       float64
	Max       float64
	StdDev    float64 // population standard deviation
}

// HasData reports whether any dataset contributed to the summary.
func (s Summary) HasData() bool { return s.Datasets > 0 }

// Report is the aggregated comparison.
type Report struct {
	// Sections in order of first appearance in the input.
	Sections []Section
	// Summaries sorted by average accuracy, highest first. Predictors with no data come last.
	Summaries []Summary
	// Results is a copy of the input, in input order.
	Results []harness.Result
}

// Build aggregates results. Dataset and predictor order follow first appearance.
func Build(results []harness.Result) Report {
	rep := Report{Results: append([]harness.Result(nil), results...)}

	sectionIdx := make(map[string]int)
	for _, r := range results {
		i, ok := sectionIdx[r.Dataset]
		if !ok {
			i = len(rep.Sections)
			sectionIdx[r.Dataset] = i
			rep.Sections = append(rep.Sections, Section{Dataset: r.Dataset})
		}
		rep.Sections[i].Rows = append(rep.Sections[i].Rows, r)
	}
	for i := range rep.Sections {
		sortRows(rep.Sections[i].Rows)
	}

	rep.Summaries = summarize(results)
	return rep
}

func sortRows(rows []harness.Result) {
	sort.SliceStable(rows, func(i, j int) bool {
		ai, iok := rows[i].Accuracy()
		aj, jok := rows[j].Accuracy()
		if iok != jok {
			return iok
		}
		return ai > aj
	})
}

func summarize(results []harness.Result) []Summary {
	type acc struct {
		Summary
		values []float64
	}
	var order []string
	byName := make(map[string]*acc)

	for _, r := range results {
		a, ok := byName[r.Predictor]
		if !ok {
			a = &acc{Summary: Summary{Predictor: r.Predictor, Kind: r.Kind}}
			byName[r.Predictor] = a
			order = append(order, r.Predictor)
		}
		if v, ok := r.Accuracy(); ok {
			a.values = append(a.values, v)
		}
	}

	out := make([]Summary, 0, len(order))
	for _, name := range order {
		a := byName[name]
		s := a.Summary
		if n := len(a.values); n > 0 {
			s.Datasets = n
			s.Min, s.Max = a.values[0], a.values[0]
			sum := 0.0
			for _, v := range a.values {
				sum += v
				s.Min = math.Min(s.Min, v)
				s.Max = math.Max(s.Max, v)
			}
			s.Average = sum / float64(n)
			variance := 0.0
			for _, v := range a.values {
				variance += (v - s.Average) * (v - s.Average)
			}
			s.StdDev = math.Sqrt(variance / float64(n))
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HasData() != out[j].HasData() {
			return out[i].HasData()
		}
		return out[i].Average > out[j].Average
	})
	return out
}

// Section returns the section of the named dataset.
func (r Report) Section(dataset string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Dataset == dataset {
			return s, true
		}
	}
	return Section{}, false
}

// Datasets returns dataset names in section order.
func (r Report) Datasets() []string {
	out := make([]string, len(r.Sections))
	for i, s := range r.Sections {
		out[i] = s.Dataset
	}
	return out
}

// Predictors returns predictor names in order of first appearance in the input.
func (r Report) Predictors() []string {
	seen := make(map[string]bool)
	var out []string
	for _, res := range r.Results {
		if !seen[res.Predictor] {
			seen[res.Predictor] = true
			out = append(out, res.Predictor)
		}
	}
	return out
}

// Lookup returns the result of one predictor on one dataset.
func (r Report) Lookup(dataset, predictorName string) (harness.Result, bool) {
	for _, res := range r.Results {
		if res.Dataset == dataset && res.Predictor == predictorName {
			return res, true
		}
	}
	return harness.Result{}, false
}

// Overall returns the summary with the highest average accuracy. ok is false when no predictor
// produced data.
func (r Report) Overall() (Summary, bool) {
	if len(r.Summaries) == 0 || !r.Summaries[0].HasData() {
		return Summary{}, false
	}
	return r.Summaries[0], true
}
