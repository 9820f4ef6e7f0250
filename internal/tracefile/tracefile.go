// Package tracefile reads and writes branch traces as CSV.
//
// Format:
//
//	address,outcome
//	0x07d0,taken
//	2001,not_taken
//
// The header row is optional on read and always written. Addresses are hexadecimal with a 0x
// prefix or plain decimal. Outcomes are "taken" or "not_taken". Any malformed row fails the
// whole read with a *FormatError.
package tracefile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bpsim/proto/trace"
)

var (
	// ErrTraceFormat is wrapped by every *FormatError.
	ErrTraceFormat = errors.New("malformed trace file")
	// ErrEmptyTrace is returned when a file holds no data rows.
	ErrEmptyTrace = errors.New("trace file has no entries")
)

// FormatError locates a malformed row. Line is 1-based and counts the header.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrTraceFormat }

var header = []string{"address", "outcome"}

// Read parses a trace from r.
func Read(r io.Reader) (trace.Trace, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var tr trace.Trace
	for record := 1; ; record++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &FormatError{Line: pe.Line, Reason: pe.Err.Error()}
			}
			return nil, err
		}
		if record == 1 && isHeader(row) {
			continue
		}
		// Blank lines are skipped by the reader; report the physical line of the row.
		line, _ := cr.FieldPos(0)
		if len(row) != 2 {
			return nil, &FormatError{Line: line, Reason: fmt.Sprintf("want 2 fields, got %d", len(row))}
		}

		addr, err := ParseAddress(row[0])
		if err != nil {
			return nil, &FormatError{Line: line, Reason: err.Error()}
		}
		outcome, err := trace.ParseOutcome(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, &FormatError{Line: line, Reason: err.Error()}
		}
		tr = append(tr, trace.Entry{Address: addr, Outcome: outcome})
	}

	if len(tr) == 0 {
		return nil, ErrEmptyTrace
	}
	return tr, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), header[0])
}

// ParseAddress accepts "0x"-prefixed hexadecimal or decimal.
func ParseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty address")
	}
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid hex address %q", s)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return v, nil
}

// FormatAddress renders an address the way generated traces spell it: 0x and at least four
// hex digits.
func FormatAddress(addr uint64) string {
	return fmt.Sprintf("0x%04x", addr)
}

// Load reads the trace stored at path.
func Load(path string) (trace.Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tr, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

// Write encodes tr with a header row.
func Write(w io.Writer, tr trace.Trace) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, e := range tr {
		if err := writer.Write([]string{FormatAddress(e.Address), e.Outcome.String()}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Save writes tr to path, creating parent directories.
func Save(path string, tr trace.Trace) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, tr); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
