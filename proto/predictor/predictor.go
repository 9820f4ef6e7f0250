// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Branch Predictor Set - Go Reference Models
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// Six predictors share one capability:
//
//   Predict(addr) → taken?          combinational, no state change
//   Update(addr, actual)            sequential, the only place state changes
//
// The predictor set is closed:
//
//   Kind          State                                   Index
//   ───────────── ─────────────────────────────────────── ──────────────────────────────
//   AlwaysTaken   none                                    -
//   NeverTaken    none                                    -
//   Bimodal       2-bit counter table                     addr mod size
//   GShare        2-bit counter table + global history    (addr ⊕ history) mod size
//   Perceptron    weight table + global history           addr mod size
//   TAGE          base table + N tagged tables + history  per-table (addr ⊕ fold(hist))
//
// OWNERSHIP:
//   Every instance exclusively owns its tables and history register. Nothing is shared between
//   instances, so independent replays can run on different goroutines without locks. One
//   instance is NOT safe for concurrent use.
//
// CONFIGURATION:
//   All geometry comes from an explicit Config passed to New. There are no package-level
//   mutable defaults; DefaultConfig returns a fresh value every call. Invalid geometry fails
//   construction with a *ConfigError (errors.Is(err, ErrInvalidConfig)); nothing is clamped.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package predictor

import (
	"errors"
	"fmt"
	"strings"
)

// Predictor is the capability shared by every branch predictor model.
type Predictor interface {
	// Name is the human-readable predictor name used in reports.
	Name() string
	Kind() Kind
	// Predict returns the predicted direction for the branch at addr.
	Predict(addr uint64) bool
	// Update trains the predictor with the resolved direction. Callers must invoke Predict for
	// the same branch first; Update never feeds the outcome back into that prediction.
	Update(addr uint64, taken bool)
	// Reset returns the predictor to its freshly constructed state.
	Reset()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// KINDS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Kind enumerates the predictor variants.
type Kind int

const (
	AlwaysTaken Kind = iota
	NeverTaken
	Bimodal
	GShare
	Perceptron
	TAGE
	numKinds
)

var kindNames = [numKinds]string{
	AlwaysTaken: "Always Taken",
	NeverTaken:  "Never Taken",
	Bimodal:     "Bimodal",
	GShare:      "GShare",
	Perceptron:  "Perceptron",
	TAGE:        "TAGE",
}

var kindSlugs = [numKinds]string{
	AlwaysTaken: "always_taken",
	NeverTaken:  "never_taken",
	Bimodal:     "bimodal",
	GShare:      "gshare",
	Perceptron:  "perceptron",
	TAGE:        "tage",
}

// Kinds returns every predictor kind in report order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Slug is the lower-case identifier used on the command line and in config files.
func (k Kind) Slug() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind_%d", int(k))
	}
	return kindSlugs[k]
}

// ParseKind accepts a slug ("gshare") or a display name ("Always Taken"), case-insensitive.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for k := Kind(0); k < numKinds; k++ {
		if norm == kindSlugs[k] || norm == strings.ToLower(kindNames[k]) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown predictor kind: %q", s)
}

// MarshalText encodes the kind as its slug.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || k >= numKinds {
		return nil, fmt.Errorf("invalid predictor kind %d", int(k))
	}
	return []byte(kindSlugs[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKinds parses a comma-separated list. An empty string selects every kind.
func ParseKinds(s string) ([]Kind, error) {
	if strings.TrimSpace(s) == "" {
		return Kinds(), nil
	}
	var out []Kind
	for _, part := range strings.Split(s, ",") {
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ERRORS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ErrInvalidConfig is the sentinel wrapped by every *ConfigError.
var ErrInvalidConfig = errors.New("invalid predictor configuration")

// ConfigError reports one rejected configuration field.
type ConfigError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Kind, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func configErr(k Kind, field, format string, args ...any) error {
	return &ConfigError{Kind: k, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Config groups the construction parameters of every configurable kind.
type Config struct {
	Bimodal    BimodalConfig    `json:"bimodal"`
	GShare     GShareConfig     `json:"gshare"`
	Perceptron PerceptronConfig `json:"perceptron"`
	TAGE       TAGEConfig       `json:"tage"`
}

// DefaultConfig returns the documented default geometry.
func DefaultConfig() Config {
	return Config{
		Bimodal:    DefaultBimodalConfig(),
		GShare:     DefaultGShareConfig(),
		Perceptron: DefaultPerceptronConfig(),
		TAGE:       DefaultTAGEConfig(),
	}
}

// Validate checks every sub-configuration and joins the failures.
func (c Config) Validate() error {
	return errors.Join(
		c.Bimodal.Validate(),
		c.GShare.Validate(),
		c.Perceptron.Validate(),
		c.TAGE.Validate(),
	)
}

// New constructs a fresh, independently owned predictor of the given kind.
func New(kind Kind, cfg Config) (Predictor, error) {
	var (
		p   Predictor
		err error
	)
	switch kind {
	case AlwaysTaken:
		p = NewAlwaysTaken()
	case NeverTaken:
		p = NewNeverTaken()
	case Bimodal:
		p, err = wrap(NewBimodal(cfg.Bimodal))
	case GShare:
		p, err = wrap(NewGShare(cfg.GShare))
	case Perceptron:
		p, err = wrap(NewPerceptron(cfg.Perceptron))
	case TAGE:
		p, err = wrap(NewTAGE(cfg.TAGE))
	default:
		return nil, fmt.Errorf("unsupported predictor kind: %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewSet constructs one fresh predictor per kind, in the order given.
func NewSet(kinds []Kind, cfg Config) ([]Predictor, error) {
	out := make([]Predictor, 0, len(kinds))
	for _, k := range kinds {
		p, err := New(k, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func wrap[P Predictor](p P, err error) (Predictor, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
