// Package outlier flags rows whose value in a numeric column falls outside the
// Tukey fences Q1 - 1.5*IQR and Q3 + 1.5*IQR.
package outlier

import (
	"fmt"
	"math"
	"sort"
)

// Fence is the IQR multiplier for the lower and upper bounds.
const Fence = 1.5

// Source exposes numeric columns of a dataset. Missing cells are NaN.
type Source interface {
	Floats(column string) ([]float64, error)
}

// ColumnReport describes the outliers of one column.
type ColumnReport struct {
	Column  string    `json:"column"`
	Q1      float64   `json:"q1"`
	Q3      float64   `json:"q3"`
	IQR     float64   `json:"iqr"`
	Lower   float64   `json:"lower_bound"`
	Upper   float64   `json:"upper_bound"`
	Count   int       `json:"count"`
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// Empty reports whether no row was flagged.
func (c ColumnReport) Empty() bool { return c.Count == 0 }

// Report holds one entry per requested column, in request order.
type Report struct {
	Columns []ColumnReport `json:"columns"`
}

// Column returns the entry of name.
func (r Report) Column(name string) (ColumnReport, bool) {
	for _, c := range r.Columns {
		if c.Column == name {
			return c, true
		}
	}
	return ColumnReport{}, false
}

// Flagged returns the entries with at least one outlier.
func (r Report) Flagged() []ColumnReport {
	var out []ColumnReport
	for _, c := range r.Columns {
		if !c.Empty() {
			out = append(out, c)
		}
	}
	return out
}

// Detect analyses every column of columns. The source is only read.
func Detect(src Source, columns []string) (Report, error) {
	report := Report{Columns: make([]ColumnReport, 0, len(columns))}
	for _, col := range columns {
		values, err := src.Floats(col)
		if err != nil {
			return Report{}, fmt.Errorf("column %s: %w", col, err)
		}
		report.Columns = append(report.Columns, Analyze(col, values))
	}
	return report, nil
}

// Analyze computes the report of a single column. Quartiles are taken over
// the finite values; NaN is never flagged. Indices refer to positions in values.
func Analyze(column string, values []float64) ColumnReport {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	rep := ColumnReport{Column: column, Indices: []int{}, Values: []float64{}}
	if len(finite) == 0 {
		nan := math.NaN()
		rep.Q1, rep.Q3, rep.IQR, rep.Lower, rep.Upper = nan, nan, nan, nan, nan
		return rep
	}
	sort.Float64s(finite)

	rep.Q1 = Percentile(finite, 25)
	rep.Q3 = Percentile(finite, 75)
	rep.IQR = rep.Q3 - rep.Q1
	rep.Lower = rep.Q1 - Fence*rep.IQR
	rep.Upper = rep.Q3 + Fence*rep.IQR

	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v < rep.Lower || v > rep.Upper {
			rep.Indices = append(rep.Indices, i)
			rep.Values = append(rep.Values, v)
		}
	}
	rep.Count = len(rep.Indices)
	return rep
}

// Percentile returns the p-th percentile of sorted using linear interpolation
// between closest ranks, rank = p/100 * (n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
