// Package export renders comparison reports as CSV files and console text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bpsim/proto/harness"
	"bpsim/proto/report"
)

// NoData is written wherever a ratio is undefined because the trace was empty.
const NoData = "no data"

// StampLayout formats the timestamp embedded in exported file names.
const StampLayout = "20060102_150405"

// Stamp formats t for file names.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

func ratio(v float64, ok bool) string {
	if !ok {
		return NoData
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteSummary writes one row per dataset and one accuracy column per predictor.
func WriteSummary(w io.Writer, rep report.Report) error {
	writer := csv.NewWriter(w)
	predictors := rep.Predictors()

	if err := writer.Write(append([]string{"Dataset"}, predictors...)); err != nil {
		return err
	}
	for _, dataset := range rep.Datasets() {
		row := []string{dataset}
		for _, name := range predictors {
			r, ok := rep.Lookup(dataset, name)
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, ratio(r.Accuracy()))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDetailed writes the counts of every predictor on one dataset, in input order.
func WriteDetailed(w io.Writer, rep report.Report, dataset string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Predictor", "Accuracy", "Correct", "Total", "Mispredictions", "Misprediction_Rate"}); err != nil {
		return err
	}
	for _, r := range rep.Results {
		if r.Dataset != dataset {
			continue
		}
		if err := writer.Write(detailRow(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func detailRow(r harness.Result) []string {
	return []string{
		r.Predictor,
		ratio(r.Accuracy()),
		strconv.Itoa(r.Correct),
		strconv.Itoa(r.Total),
		strconv.Itoa(r.Mispredictions()),
		ratio(r.MispredictionRate()),
	}
}

// WriteComparative writes each predictor's accuracy statistics across datasets, best first.
func WriteComparative(w io.Writer, rep report.Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Predictor", "Avg_Accuracy", "Min_Accuracy", "Max_Accuracy", "Std_Dev"}); err != nil {
		return err
	}
	for _, s := range rep.Summaries {
		ok := s.HasData()
		row := []string{s.Predictor, ratio(s.Average, ok), ratio(s.Min, ok), ratio(s.Max, ok), ratio(s.StdDev, ok)}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePlotData writes one long-format row per (dataset, predictor) for plotting tools.
func WritePlotData(w io.Writer, rep report.Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Dataset", "Predictor", "Accuracy", "Misprediction_Rate"}); err != nil {
		return err
	}
	for _, r := range rep.Results {
		row := []string{r.Dataset, r.Predictor, ratio(r.Accuracy()), ratio(r.MispredictionRate())}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAll writes every CSV export into dir and returns the paths written, in order: summary,
// one detailed file per dataset, comparative analysis, plot data.
func WriteAll(dir string, rep report.Report, stamp string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}

	if err := write(fmt.Sprintf("summary_%s.csv", stamp), func(w io.Writer) error {
		return WriteSummary(w, rep)
	}); err != nil {
		return paths, err
	}
	fragments := detailFragments(rep.Datasets())
	for i, dataset := range rep.Datasets() {
		if err := write(fmt.Sprintf("%s_detailed_%s.csv", fragments[i], stamp), func(w io.Writer) error {
			return WriteDetailed(w, rep, dataset)
		}); err != nil {
			return paths, err
		}
	}
	if err := write(fmt.Sprintf("comparative_analysis_%s.csv", stamp), func(w io.Writer) error {
		return WriteComparative(w, rep)
	}); err != nil {
		return paths, err
	}
	if err := write(fmt.Sprintf("plot_data_%s.csv", stamp), func(w io.Writer) error {
		return WritePlotData(w, rep)
	}); err != nil {
		return paths, err
	}
	return paths, nil
}

// detailFragments returns one distinct file name fragment per dataset. Names that FileSafe
// maps to the same fragment get a numeric suffix in order of appearance: "a b", "a_b" become
// "a_b", "a_b_2".
func detailFragments(datasets []string) []string {
	used := make(map[string]bool, len(datasets))
	out := make([]string, len(datasets))
	for i, dataset := range datasets {
		base := FileSafe(dataset)
		frag := base
		for n := 2; used[frag]; n++ {
			frag = fmt.Sprintf("%s_%d", base, n)
		}
		used[frag] = true
		out[i] = frag
	}
	return out
}

// FileSafe maps a dataset name to a file name fragment: letters, digits, '-' and '_' are kept,
// everything else becomes '_'.
func FileSafe(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "dataset"
	}
	return string(out)
}
