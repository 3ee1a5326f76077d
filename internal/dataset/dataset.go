// Package dataset loads the tabular student data used for training and EDA.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"placement-predictor/internal/common"
	"placement-predictor/internal/features"
	"placement-predictor/internal/schema"
)

// Table is a loaded dataset. Column types are detected on load: columns whose
// every non-empty cell parses as a number are numeric.
type Table struct {
	df dataframe.DataFrame
}

// Load reads a .csv or .xlsx file. Only the first sheet of a workbook is read.
func Load(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dataset %s: %w", path, common.ErrFileNotFound)
		}
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	var (
		t   *Table
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		t, err = loadCSV(path)
	case ".xlsx":
		t, err = loadXLSX(path)
	default:
		return nil, fmt.Errorf("dataset %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	log.Debug().
		Str("path", path).
		Int("rows", t.Len()).
		Int("columns", len(t.Columns())).
		Msg("Dataset loaded")
	return t, nil
}

func loadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, loadOptions()...)
	if df.Err != nil {
		return nil, fmt.Errorf("parse csv: %w", df.Err)
	}
	return &Table{df: df}, nil
}

func loadXLSX(path string) (*Table, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return FromRecords(rows)
}

// FromRecords builds a table from a header row followed by data rows. Short
// rows are padded with empty cells.
func FromRecords(rows [][]string) (*Table, error) {
	if len(rows) < 2 {
		return nil, errors.New("dataset needs a header row and at least one data row")
	}
	width := len(rows[0])
	padded := make([][]string, len(rows))
	for i, r := range rows {
		if len(r) > width {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", i, len(r), width)
		}
		p := make([]string, width)
		copy(p, r)
		padded[i] = p
	}

	df := dataframe.LoadRecords(padded, loadOptions()...)
	if df.Err != nil {
		return nil, fmt.Errorf("load records: %w", df.Err)
	}
	return &Table{df: df}, nil
}

func loadOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN", "nan", "N/A"}),
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int { return t.df.Nrow() }

// Columns returns the column names in file order.
func (t *Table) Columns() []string { return t.df.Names() }

// Has reports whether the table has column name.
func (t *Table) Has(name string) bool {
	for _, c := range t.df.Names() {
		if c == name {
			return true
		}
	}
	return false
}

// NumericColumns returns the columns detected as int or float, in file order.
func (t *Table) NumericColumns() []string {
	var out []string
	types := t.df.Types()
	for i, name := range t.df.Names() {
		if types[i] == series.Int || types[i] == series.Float {
			out = append(out, name)
		}
	}
	return out
}

func (t *Table) column(name string) (series.Series, error) {
	if !t.Has(name) {
		return series.Series{}, fmt.Errorf("unknown column %s", name)
	}
	s := t.df.Col(name)
	if s.Err != nil {
		return series.Series{}, s.Err
	}
	return s, nil
}

// Floats returns a column as numbers. Missing or non-numeric cells are NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	s, err := t.column(name)
	if err != nil {
		return nil, err
	}
	return s.Float(), nil
}

// Strings returns a column as text. Missing cells are empty strings.
func (t *Table) Strings(name string) ([]string, error) {
	s, err := t.column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, s.Len())
	for i := range out {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		out[i] = strings.TrimSpace(e.String())
	}
	return out, nil
}

// Records converts every row into a record holding the given fields. Numeric
// fields become numbers and categorical fields labels; a missing column yields
// a SchemaMismatchError listing every absent field.
func (t *Table) Records(fields []schema.Field) ([]features.Record, error) {
	var missing []string
	for _, f := range fields {
		if !t.Has(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &features.SchemaMismatchError{Missing: missing}
	}

	recs := make([]features.Record, t.Len())
	for i := range recs {
		recs[i] = make(features.Record, len(fields))
	}
	for _, f := range fields {
		switch f.Kind {
		case schema.Numeric:
			vals, err := t.Floats(f.Name)
			if err != nil {
				return nil, err
			}
			for i, v := range vals {
				recs[i][f.Name] = features.Num(v)
			}
		default:
			vals, err := t.Strings(f.Name)
			if err != nil {
				return nil, err
			}
			for i, v := range vals {
				recs[i][f.Name] = features.Cat(v)
			}
		}
	}
	return recs, nil
}
