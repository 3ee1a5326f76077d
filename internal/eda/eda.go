// Package eda produces the exploratory report for the placement dataset: one
// boxplot per numeric column split by placement status, and the IQR outlier
// report printed to the console and saved as JSON.
package eda

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"placement-predictor/internal/common"
	"placement-predictor/internal/dataset"
	"placement-predictor/internal/outlier"
)

// ReportFile is the name of the JSON outlier report inside the output dir.
const ReportFile = "outliers.json"

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 6 * vg.Inch
	boxWidth   = 40 // points
)

// Options configures a run. Empty Target and IDColumn fall back to the
// dataset's status and student_id columns; a nil Out prints to stdout.
type Options struct {
	DataPath  string
	OutputDir string
	Target    string
	IDColumn  string
	Out       io.Writer
}

func (o *Options) defaults() {
	if o.Target == "" {
		o.Target = common.StatusColumn
	}
	if o.IDColumn == "" {
		o.IDColumn = common.StudentIDColumn
	}
	if o.OutputDir == "" {
		o.OutputDir = common.DefaultOutputDir
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
}

// Run loads the dataset and writes the boxplots and outlier report.
func Run(opts Options) (outlier.Report, error) {
	opts.defaults()

	tbl, err := dataset.Load(opts.DataPath)
	if err != nil {
		return outlier.Report{}, err
	}
	fmt.Fprintln(opts.Out, "Data loaded successfully.")
	fmt.Fprintf(opts.Out, "Shape: (%d, %d)\n", tbl.Len(), len(tbl.Columns()))

	columns := NumericColumns(tbl, opts.IDColumn, opts.Target)
	fmt.Fprintf(opts.Out, "Numerical columns found: %v\n", columns)

	if !tbl.Has(opts.Target) {
		return outlier.Report{}, fmt.Errorf("target column %q not found in dataset", opts.Target)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return outlier.Report{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeBoxplots(tbl, columns, opts); err != nil {
		return outlier.Report{}, err
	}

	report, err := outlier.Detect(tbl, columns)
	if err != nil {
		return outlier.Report{}, err
	}
	PrintReport(opts.Out, report)

	path := filepath.Join(opts.OutputDir, ReportFile)
	if err := WriteReport(path, report); err != nil {
		return outlier.Report{}, err
	}

	log.Info().
		Str("output_dir", opts.OutputDir).
		Int("columns", len(columns)).
		Int("flagged_columns", len(report.Flagged())).
		Msg("EDA complete")
	return report, nil
}

// NumericColumns returns the numeric columns of tbl without the excluded ones.
func NumericColumns(tbl *dataset.Table, exclude ...string) []string {
	var out []string
	for _, col := range tbl.NumericColumns() {
		if slices.Contains(exclude, col) {
			continue
		}
		out = append(out, col)
	}
	return out
}

func writeBoxplots(tbl *dataset.Table, columns []string, opts Options) error {
	classes, err := tbl.Strings(opts.Target)
	if err != nil {
		return err
	}

	for _, col := range columns {
		values, err := tbl.Floats(col)
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}

		path := filepath.Join(opts.OutputDir, "boxplot_"+fileSafe(col)+".png")
		if err := boxplot(path, col, opts.Target, values, classes); err != nil {
			return fmt.Errorf("boxplot %s: %w", col, err)
		}
		fmt.Fprintf(opts.Out, "Saved boxplot for %s to %s\n", col, path)
	}
	return nil
}

// boxplot draws one box per target class. Missing values and rows without a
// class are left out.
func boxplot(path, col, target string, values []float64, classes []string) error {
	groups := make(map[string]plotter.Values)
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || classes[i] == "" {
			continue
		}
		groups[classes[i]] = append(groups[classes[i]], v)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Boxplot of %s by %s", col, target)
	p.X.Label.Text = target
	p.Y.Label.Text = col

	for i, name := range names {
		box, err := plotter.NewBoxPlot(vg.Points(boxWidth), float64(i), groups[name])
		if err != nil {
			return err
		}
		p.Add(box)
	}
	if len(names) > 0 {
		p.NominalX(names...)
	}

	return p.Save(plotWidth, plotHeight, path)
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, name)
}

// PrintReport writes the human-readable outlier report.
func PrintReport(w io.Writer, report outlier.Report) {
	fmt.Fprintln(w, "\n--- Outlier Detection (IQR Method) ---")
	for _, c := range report.Columns {
		if c.Empty() {
			fmt.Fprintf(w, "\nFeature: %s - No outliers detected.\n", c.Column)
			continue
		}
		fmt.Fprintf(w, "\nFeature: %s\n", c.Column)
		fmt.Fprintf(w, "  IQR: %.2f (Q1=%.2f, Q3=%.2f)\n", c.IQR, c.Q1, c.Q3)
		fmt.Fprintf(w, "  Bounds: [%.2f, %.2f]\n", c.Lower, c.Upper)
		fmt.Fprintf(w, "  Number of Outliers: %d\n", c.Count)
		fmt.Fprintf(w, "  Outlier Indices: %v\n", c.Indices)
	}
}

type jsonColumn struct {
	Column  string    `json:"column"`
	Q1      *float64  `json:"q1,omitempty"`
	Q3      *float64  `json:"q3,omitempty"`
	IQR     *float64  `json:"iqr,omitempty"`
	Lower   *float64  `json:"lower_bound,omitempty"`
	Upper   *float64  `json:"upper_bound,omitempty"`
	Count   int       `json:"count"`
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// WriteReport saves report as indented JSON. Statistics of columns without
// any finite value are omitted.
func WriteReport(path string, report outlier.Report) error {
	cols := make([]jsonColumn, 0, len(report.Columns))
	for _, c := range report.Columns {
		cols = append(cols, jsonColumn{
			Column:  c.Column,
			Q1:      finite(c.Q1),
			Q3:      finite(c.Q3),
			IQR:     finite(c.IQR),
			Lower:   finite(c.Lower),
			Upper:   finite(c.Upper),
			Count:   c.Count,
			Indices: c.Indices,
			Values:  c.Values,
		})
	}

	data, err := json.MarshalIndent(map[string]any{"columns": cols}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal outlier report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write outlier report: %w", err)
	}
	return nil
}
