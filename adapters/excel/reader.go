// Package excel loads tabular data sets from Excel workbooks and CSV files.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gocp/domain/dataset"
	"gocp/internal"
	"gocp/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Table is the raw content of a sheet: a header row and string cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Frame is a table converted into a numeric data set.
type Frame struct {
	Data     dataset.DataSet
	Features []string
	Target   string
	// Classes holds the original target values when the target column was
	// not numeric; label i stands for Classes[i].
	Classes []string
	// Skipped counts rows dropped for empty or non-numeric feature cells.
	Skipped int
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

// Option configures a DataReader.
type Option func(*DataReader)

// WithSheet reads the named sheet instead of the first one.
func WithSheet(name string) Option {
	return func(r *DataReader) { r.sheet = name }
}

// WithLogger sets the reader's logger.
func WithLogger(l *internal.Logger) Option {
	return func(r *DataReader) { r.logger = l }
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, opts ...Option) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	r := &DataReader{filePath: filePath, fileType: fileType, logger: internal.NewNopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads path and converts it with target as the label column. An
// empty target picks the last column.
func Load(path, target string, opts ...Option) (*Frame, error) {
	table, err := NewDataReader(path, opts...).ReadData()
	if err != nil {
		return nil, err
	}
	return table.DataSet(target)
}

// ReadData reads data from Excel or CSV files into a table
func (r *DataReader) ReadData() (*Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath))
	}

	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	default:
		rows, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.InvalidInput(fmt.Sprintf("%s file must have a header row and at least one data row", strings.ToUpper(r.fileType)))
	}

	table := newTable(rows)
	r.logger.Debug("read %s in %.2fms (%d columns, %d rows)",
		r.filePath, float64(time.Since(start).Nanoseconds())/1e6, len(table.Headers), len(table.Rows))
	return table, nil
}

func (r *DataReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// newTable trims cells and pads short rows; excelize drops trailing empty cells.
func newTable(rows [][]string) *Table {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	t := &Table{Headers: headers, Rows: make([][]string, 0, len(rows)-1)}
	for _, raw := range rows[1:] {
		row := make([]string, len(headers))
		empty := true
		for j := 0; j < len(headers) && j < len(raw); j++ {
			row[j] = strings.TrimSpace(raw[j])
			empty = empty && row[j] == ""
		}
		if !empty {
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// Column returns the index of the named column.
func (t *Table) Column(name string) (int, bool) {
	for i, h := range t.Headers {
		if strings.EqualFold(h, name) {
			return i, true
		}
	}
	return 0, false
}

// DataSet converts the table: every column but target becomes a numeric
// feature. A numeric target is used as is; any other target is encoded as
// the index of its value among the sorted distinct values.
func (t *Table) DataSet(target string) (*Frame, error) {
	if len(t.Headers) < 2 {
		return nil, errors.InvalidInput("a data set needs at least one feature column and a target column")
	}
	targetIdx := len(t.Headers) - 1
	if target != "" {
		idx, ok := t.Column(target)
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("target column %q not found (columns: %s)", target, strings.Join(t.Headers, ", ")))
		}
		targetIdx = idx
	}

	frame := &Frame{Target: t.Headers[targetIdx]}
	for i, h := range t.Headers {
		if i != targetIdx {
			frame.Features = append(frame.Features, h)
		}
	}

	var (
		rows    [][]float64
		targets []string
	)
	for _, raw := range t.Rows {
		row, ok := parseFeatures(raw, targetIdx)
		if !ok || raw[targetIdx] == "" {
			frame.Skipped++
			continue
		}
		rows = append(rows, row)
		targets = append(targets, raw[targetIdx])
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput("no row has a complete numeric feature vector and a target")
	}

	y, classes := encodeTargets(targets)
	ds, err := dataset.FromRows(rows, y)
	if err != nil {
		return nil, err
	}
	frame.Data = ds
	frame.Classes = classes
	return frame, nil
}

func parseFeatures(raw []string, skip int) ([]float64, bool) {
	row := make([]float64, 0, len(raw)-1)
	for j, cell := range raw {
		if j == skip {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		row = append(row, v)
	}
	return row, true
}

// encodeTargets parses numeric targets, falling back to class indices when
// any value is not a number.
func encodeTargets(values []string) ([]float64, []string) {
	y := make([]float64, len(values))
	numeric := true
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			break
		}
		y[i] = f
	}
	if numeric {
		return y, nil
	}

	seen := make(map[string]bool)
	var classes []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	for i, v := range values {
		y[i] = float64(index[v])
	}
	return y, classes
}
