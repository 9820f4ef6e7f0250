package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"bpsim/internal/config"
	"bpsim/internal/export"
	"bpsim/internal/store"
	"bpsim/internal/tracefile"
	"bpsim/internal/tracegen"
	"bpsim/proto/harness"
	"bpsim/proto/predictor"
	"bpsim/proto/report"
)

func main() {
	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		color:  colorEnabled(os.Stdout),
	}
	if err := a.run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func colorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	color  bool
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "generate":
		return a.runGenerate(ctx, args[1:])
	case "compare":
		return a.runCompare(ctx, args[1:])
	case "export":
		return a.runExport(ctx, args[1:])
	case "runs":
		return a.runRuns(ctx, args[1:])
	case "show":
		return a.runShow(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: bpsim <generate|compare|export|runs|show> [flags]", msg)
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// ─────────────────────────────────────────────────────────────────────────────────────────────
// Shared flags
// ─────────────────────────────────────────────────────────────────────────────────────────────

type runFlags struct {
	configPath *string
	size       *int
	seed       *int64
	workers    *int
	kinds      *string
	traceDir   *string
	storeKind  *string
	dbPath     *string
}

func addRunFlags(fs *flag.FlagSet) runFlags {
	return runFlags{
		configPath: fs.String("config", "", "JSON run configuration"),
		size:       fs.Int("size", 0, "branches per generated trace (overrides config)"),
		seed:       fs.Int64("seed", 0, "generator seed (overrides config)"),
		workers:    fs.Int("workers", -1, "parallel replays (0 = GOMAXPROCS, overrides config)"),
		kinds:      fs.String("predictors", "", "comma-separated predictor list (overrides config)"),
		traceDir:   fs.String("traces", "", "load <workload>_branch_dataset.csv from this directory when present"),
		storeKind:  fs.String("store", "", "result store: memory|sqlite (overrides config)"),
		dbPath:     fs.String("db", "", "sqlite database path (overrides config)"),
	}
}

// resolve loads the configuration file, if any, and applies the flag overrides.
func (f runFlags) resolve(fs *flag.FlagSet) (config.File, error) {
	cfg := config.Default()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return config.File{}, err
		}
		cfg = loaded
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["size"] {
		cfg.Size = *f.size
	}
	if set["seed"] {
		cfg.Seed = *f.seed
	}
	if set["workers"] {
		cfg.Workers = *f.workers
	}
	if set["predictors"] {
		kinds, err := predictor.ParseKinds(*f.kinds)
		if err != nil {
			return config.File{}, err
		}
		cfg.Kinds = nil
		for _, k := range kinds {
			cfg.Kinds = append(cfg.Kinds, k.Slug())
		}
	}
	if set["store"] {
		cfg.Store = *f.storeKind
	}
	if set["db"] {
		cfg.DBPath = *f.dbPath
	}
	if *f.traceDir != "" {
		for i, d := range cfg.Datasets {
			if d.Path != "" {
				continue
			}
			w, err := tracegen.Lookup(d.GeneratorName())
			if err != nil {
				continue
			}
			path := filepath.Join(*f.traceDir, w.Filename())
			if _, err := os.Stat(path); err == nil {
				cfg.Datasets[i].Path = path
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.File{}, err
	}
	return cfg, nil
}

func loadDatasets(cfg config.File) ([]harness.Dataset, error) {
	out := make([]harness.Dataset, 0, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		if d.Path != "" {
			tr, err := tracefile.Load(d.Path)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
			}
			out = append(out, harness.Dataset{Name: d.Name, Trace: tr})
			continue
		}
		tr, err := tracegen.Generate(d.GeneratorName(), cfg.Size, cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
		}
		out = append(out, harness.Dataset{Name: d.Name, Trace: tr})
	}
	return out, nil
}

// evaluate runs the full comparison described by cfg.
func evaluate(ctx context.Context, cfg config.File) ([]harness.Result, error) {
	datasets, err := loadDatasets(cfg)
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.PredictorKinds()
	if err != nil {
		return nil, err
	}
	return harness.Compare(ctx, datasets, harness.Options{
		Kinds:   kinds,
		Config:  cfg.Predictors,
		Workers: cfg.Workers,
	})
}

// ─────────────────────────────────────────────────────────────────────────────────────────────
// generate
// ─────────────────────────────────────────────────────────────────────────────────────────────

func (a *app) runGenerate(_ context.Context, args []string) error {
	fs := a.newFlagSet("generate")
	size := fs.Int("size", tracegen.DefaultSize, "branches per workload")
	seed := fs.Int64("seed", config.DefaultSeed, "generator seed")
	outDir := fs.String("out", ".", "output directory")
	quiet := fs.Bool("quiet", false, "skip the trace characteristics")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *size <= 0 {
		return errors.New("size must be > 0")
	}

	txt := export.NewText(a.stdout, a.color)
	fmt.Fprintf(a.stdout, "generating %s branches per workload (seed %d)\n\n", humanize.Comma(int64(*size)), *seed)
	for _, w := range tracegen.Workloads() {
		tr, err := w.Generate(*size, *seed)
		if err != nil {
			return err
		}
		path := filepath.Join(*outDir, w.Filename())
		if err := tracefile.Save(path, tr); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "wrote %s (%s entries)\n", path, humanize.Comma(int64(len(tr))))
		if !*quiet {
			txt.Characteristics(w.Title, tr)
		}
	}
	return txt.Err()
}

// ─────────────────────────────────────────────────────────────────────────────────────────────
// compare
// ─────────────────────────────────────────────────────────────────────────────────────────────

func (a *app) runCompare(ctx context.Context, args []string) error {
	fs := a.newFlagSet("compare")
	rf := addRunFlags(fs)
	exportDir := fs.String("export", "", "also write CSV exports into this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := rf.resolve(fs)
	if err != nil {
		return err
	}

	results, err := evaluate(ctx, cfg)
	if err != nil {
		return err
	}
	rep := report.Build(results)
	if err := export.NewText(a.stdout, a.color).Report(rep); err != nil {
		return err
	}

	s, err := store.Open(ctx, cfg.Store, cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	run := store.NewRun(cfg.Seed, cfg.Size, cfg.Predictors, results)
	if err := s.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if kind := storeName(cfg.Store); kind == "sqlite" {
		fmt.Fprintf(a.stdout, "run %s saved to sqlite store %s\n", run.ID, cfg.DBPath)
	} else {
		fmt.Fprintf(a.stdout, "run %s kept in %s store (not persisted)\n", run.ID, kind)
	}

	if *exportDir != "" {
		return a.writeExports(*exportDir, rep, run.CreatedAt)
	}
	return nil
}

func storeName(kind string) string {
	if kind == "" {
		return "memory"
	}
	return kind
}

func (a *app) writeExports(dir string, rep report.Report, at time.Time) error {
	paths, err := export.WriteAll(dir, rep, export.Stamp(at))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "exported %d files to %s\n", len(paths), dir)
	for _, p := range paths {
		fmt.Fprintf(a.stdout, "  - %s\n", filepath.Base(p))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────────────────────
// export
// ─────────────────────────────────────────────────────────────────────────────────────────────

func (a *app) runExport(ctx context.Context, args []string) error {
	fs := a.newFlagSet("export")
	rf := addRunFlags(fs)
	runID := fs.String("run", "", "export a stored run instead of evaluating")
	outDir := fs.String("out", "", "output directory (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := rf.resolve(fs)
	if err != nil {
		return err
	}
	dir := cfg.OutputDir
	if *outDir != "" {
		dir = *outDir
	}

	if *runID != "" {
		s, err := store.Open(ctx, cfg.Store, cfg.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()
		run, err := store.FindRun(ctx, s, *runID)
		if err != nil {
			return err
		}
		return a.writeExports(dir, report.Build(run.Results), run.CreatedAt)
	}

	results, err := evaluate(ctx, cfg)
	if err != nil {
		return err
	}
	return a.writeExports(dir, report.Build(results), time.Now())
}

// ─────────────────────────────────────────────────────────────────────────────────────────────
// runs / show
// ─────────────────────────────────────────────────────────────────────────────────────────────

type storeFlags struct {
	configPath *string
	kind       *string
	dbPath     *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		configPath: fs.String("config", "", "JSON run configuration naming the store"),
		kind:       fs.String("store", "", "result store: memory|sqlite (overrides config)"),
		dbPath:     fs.String("db", "", "sqlite database path (overrides config)"),
	}
}

// open resolves the store the same way compare does: defaults, then the config file, then flags.
func (f storeFlags) open(ctx context.Context, fs *flag.FlagSet) (store.Store, error) {
	cfg := config.Default()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "store":
			cfg.Store = *f.kind
		case "db":
			cfg.DBPath = *f.dbPath
		}
	})
	return store.Open(ctx, cfg.Store, cfg.DBPath)
}

func (a *app) runRuns(ctx context.Context, args []string) error {
	fs := a.newFlagSet("runs")
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}
	s, err := sf.open(ctx, fs)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "no runs found")
		return nil
	}
	if len(runs) > *limit {
		runs = runs[:*limit]
	}

	type runsItem struct {
		RunID     string  `json:"run_id"`
		CreatedAt string  `json:"created_at_utc"`
		Seed      int64   `json:"seed"`
		Size      int     `json:"size"`
		Results   int     `json:"results"`
		Best      string  `json:"best,omitempty"`
		BestAvg   float64 `json:"best_avg_accuracy,omitempty"`
	}
	items := make([]runsItem, 0, len(runs))
	for _, r := range runs {
		item := runsItem{
			RunID:     r.ID,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
			Seed:      r.Seed,
			Size:      r.Size,
			Results:   len(r.Results),
		}
		if best, ok := report.Build(r.Results).Overall(); ok {
			item.Best = best.Predictor
			item.BestAvg = best.Average
		}
		items = append(items, item)
	}

	if *jsonOut {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	for _, it := range items {
		best := export.NoData
		if it.Best != "" {
			best = fmt.Sprintf("%s %.2f%%", it.Best, it.BestAvg*100)
		}
		fmt.Fprintf(a.stdout, "%s  %s  seed=%d size=%s  best=%s\n",
			it.RunID, it.CreatedAt, it.Seed, humanize.Comma(int64(it.Size)), best)
	}
	return nil
}

func (a *app) runShow(ctx context.Context, args []string) error {
	fs := a.newFlagSet("show")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("show needs exactly one run ID")
	}
	s, err := sf.open(ctx, fs)
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := store.FindRun(ctx, s, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "run %s  created %s  seed=%d size=%s (%s)\n\n",
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339), run.Seed,
		humanize.Comma(int64(run.Size)), humanize.Time(run.CreatedAt))
	return export.NewText(a.stdout, a.color).Report(report.Build(run.Results))
}
