package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"cohortSnapshot/internal/aggregate"
)

const (
	DefaultOutput = "blue-pill.json"

	ReportTable = "table"
	ReportJSON  = "json"
)

// WriterConfig configures the snapshot artifact and console report.
type WriterConfig struct {
	Path   string
	Report string
}

// Writer prints cohort sizes and writes the snapshot artifact.
type Writer struct {
	cfg     WriterConfig
	console io.Writer
	logger  *zap.Logger
}

func NewWriter(cfg WriterConfig, console io.Writer, logger *zap.Logger) *Writer {
	if cfg.Path == "" {
		cfg.Path = DefaultOutput
	}
	if cfg.Report == "" {
		cfg.Report = ReportTable
	}
	if console == nil {
		console = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{cfg: cfg, console: console, logger: logger}
}

// Write prints every cohort size in mapping order, then replaces the artifact.
func (w *Writer) Write(cohorts *aggregate.Cohorts) error {
	if err := PrintReport(w.console, cohorts.Sizes(), w.cfg.Report); err != nil {
		return err
	}
	if err := WriteFile(w.cfg.Path, cohorts.Sorted()); err != nil {
		return err
	}
	w.logger.Info("snapshot written", zap.String("out", w.cfg.Path), zap.Int("cohorts", cohorts.Len()))
	return nil
}

// PrintReport prints cohort sizes as a fixed-width table or a JSON size mapping.
func PrintReport(out io.Writer, sizes *orderedmap.OrderedMap[string, int], format string) error {
	switch format {
	case "", ReportTable:
		for pair := sizes.Oldest(); pair != nil; pair = pair.Next() {
			if _, err := fmt.Fprintf(out, "%-24s %d\n", pair.Key, pair.Value); err != nil {
				return fmt.Errorf("print report: %w", err)
			}
		}
		return nil
	case ReportJSON:
		data, err := json.MarshalIndent(sizes, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return fmt.Errorf("print report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// WriteFile writes the cohort mapping with 2-space indentation. The file is
// written beside path and renamed into place.
func WriteFile(path string, cohorts *orderedmap.OrderedMap[string, []string]) error {
	data, err := json.MarshalIndent(cohorts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// ReadFile loads a snapshot artifact, keeping cohort order.
func ReadFile(path string) (*orderedmap.OrderedMap[string, []string], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	cohorts := orderedmap.New[string, []string]()
	if err := json.Unmarshal(data, cohorts); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return cohorts, nil
}

// Sizes maps each cohort in a loaded artifact to its member count.
func Sizes(cohorts *orderedmap.OrderedMap[string, []string]) *orderedmap.OrderedMap[string, int] {
	sizes := orderedmap.New[string, int]()
	for pair := cohorts.Oldest(); pair != nil; pair = pair.Next() {
		sizes.Set(pair.Key, len(pair.Value))
	}
	return sizes
}
