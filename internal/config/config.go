// Package config loads the JSON run configuration shared by the bpsim subcommands.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"bpsim/internal/tracegen"
	"bpsim/proto/predictor"
)

// Dataset names one trace. A dataset with a Path is loaded from CSV; otherwise Workload (or
// Name when Workload is empty) selects a generator.
type Dataset struct {
	Name     string `json:"name"`
	Workload string `json:"workload,omitempty"`
	Path     string `json:"path,omitempty"`
}

// GeneratorName returns the workload used when the dataset is synthesized.
func (d Dataset) GeneratorName() string {
	if d.Workload != "" {
		return d.Workload
	}
	return d.Name
}

// File is the on-disk run configuration.
type File struct {
	Predictors predictor.Config `json:"predictors"`
	// Kinds lists predictor slugs in report order. Empty selects every predictor.
	Kinds     []string  `json:"kinds,omitempty"`
	Datasets  []Dataset `json:"datasets"`
	Size      int       `json:"size"`
	Seed      int64     `json:"seed"`
	Workers   int       `json:"workers"`
	Store     string    `json:"store"`
	DBPath    string    `json:"db_path"`
	OutputDir string    `json:"output_dir"`
}

const (
	DefaultSeed      = 42
	DefaultStore     = "sqlite"
	DefaultDBPath    = "bpsim.db"
	DefaultOutputDir = "results"
)

// Default returns a configuration that evaluates every predictor on every built-in workload.
func Default() File {
	f := File{
		Predictors: predictor.DefaultConfig(),
		Size:       tracegen.DefaultSize,
		Seed:       DefaultSeed,
		Store:      DefaultStore,
		DBPath:     DefaultDBPath,
		OutputDir:  DefaultOutputDir,
	}
	for _, name := range tracegen.Names() {
		f.Datasets = append(f.Datasets, Dataset{Name: name})
	}
	return f
}

// Load reads path over the defaults: fields absent from the file keep their default values.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f := Default()
	// Slices decode element-wise into existing backing arrays, so a partial dataset object
	// would inherit a default's name. Decode into an empty slice and restore when absent.
	defaults := f.Datasets
	f.Datasets = nil
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Datasets == nil {
		f.Datasets = defaults
	}
	if err := f.Validate(); err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Save writes f as indented JSON.
func (f File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate checks every field and joins the failures.
func (f File) Validate() error {
	var errs []error
	if err := f.Predictors.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := f.PredictorKinds(); err != nil {
		errs = append(errs, err)
	}
	if len(f.Datasets) == 0 {
		errs = append(errs, errors.New("datasets: at least one dataset is required"))
	}
	seen := make(map[string]bool)
	for i, d := range f.Datasets {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("datasets[%d]: name is required", i))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("datasets[%d]: duplicate name %q", i, d.Name))
		}
		seen[d.Name] = true
		if d.Path == "" {
			if _, err := tracegen.Lookup(d.GeneratorName()); err != nil {
				errs = append(errs, fmt.Errorf("datasets[%d]: %w", i, err))
			}
		}
	}
	if f.Size <= 0 {
		errs = append(errs, fmt.Errorf("size must be > 0, got %d", f.Size))
	}
	if f.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", f.Workers))
	}
	switch f.Store {
	case "", "memory":
	case "sqlite":
		if f.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store backend: %s", f.Store))
	}
	return errors.Join(errs...)
}

// PredictorKinds parses Kinds.
func (f File) PredictorKinds() ([]predictor.Kind, error) {
	return predictor.ParseKinds(strings.Join(f.Kinds, ","))
}
