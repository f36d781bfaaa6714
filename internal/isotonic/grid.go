// Package isotonic calibrates the accuracy of conformal point predictions
// over a sparse (confidence, credibility) grid, forcing the calibrated
// accuracy to be non-decreasing along both axes.
package isotonic

import (
	"math"
	"sort"
)

// Config controls the grid.
type Config struct {
	// Resolution is the number of buckets per unit on each axis; values are
	// discretised as floor(v*Resolution)/Resolution.
	Resolution int
	// MaxPasses caps the alternating row/column passes. Zero means one pass
	// per populated row plus one per populated column.
	MaxPasses int
	// Tolerance is the smallest change that counts as an update.
	Tolerance float64
}

// DefaultConfig returns the standard five-bucket configuration.
func DefaultConfig() Config {
	return Config{Resolution: 5, Tolerance: 1e-12}
}

// Cell is one populated grid point.
type Cell struct {
	Row         int     `json:"row"`
	Column      int     `json:"column"`
	Confidence  float64 `json:"confidence"`
	Credibility float64 `json:"credibility"`
	Correct     float64 `json:"correct"`
	Total       float64 `json:"total"`
	Value       float64 `json:"value"`
}

type cell struct {
	correct float64
	total   float64
	value   float64
}

// Grid accumulates calibration outcomes and answers bracket lookups. Add and
// Fit must complete before concurrent lookups begin.
type Grid struct {
	cfg    Config
	cells  map[int]map[int]*cell
	passes int
	fitted bool
}

// NewGrid creates an empty grid. A non-positive resolution falls back to the default.
func NewGrid(cfg Config) *Grid {
	def := DefaultConfig()
	if cfg.Resolution <= 0 {
		cfg.Resolution = def.Resolution
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	return &Grid{cfg: cfg, cells: make(map[int]map[int]*cell)}
}

// Bucket discretises v in [0, 1] onto the grid axis.
func (g *Grid) Bucket(v float64) int {
	b := int(v * float64(g.cfg.Resolution))
	if b < 0 {
		return 0
	}
	if b > g.cfg.Resolution {
		return g.cfg.Resolution
	}
	return b
}

// Add records one calibration outcome.
func (g *Grid) Add(confidence, credibility float64, correct bool) {
	r, c := g.Bucket(confidence), g.Bucket(credibility)
	row, ok := g.cells[r]
	if !ok {
		row = make(map[int]*cell)
		g.cells[r] = row
	}
	cl, ok := row[c]
	if !ok {
		cl = &cell{}
		row[c] = cl
	}
	cl.total++
	if correct {
		cl.correct++
	}
	g.fitted = false
}

// Len returns the number of populated cells.
func (g *Grid) Len() int {
	n := 0
	for _, row := range g.cells {
		n += len(row)
	}
	return n
}

// Fit sets each cell to its observed accuracy and then alternates weighted
// pool-adjacent-violators passes over rows and columns until no value moves
// or the pass cap is reached. It returns the number of passes made.
func (g *Grid) Fit() int {
	rows := g.rowKeys()
	columns := map[int]struct{}{}
	for _, r := range rows {
		for c, cl := range g.cells[r] {
			cl.value = cl.correct / cl.total
			columns[c] = struct{}{}
		}
	}
	colKeys := make([]int, 0, len(columns))
	for c := range columns {
		colKeys = append(colKeys, c)
	}
	sort.Ints(colKeys)

	maxPasses := g.cfg.MaxPasses
	if maxPasses <= 0 {
		maxPasses = len(rows) + len(colKeys)
	}
	if maxPasses < 1 {
		maxPasses = 1
	}

	g.passes = 0
	for g.passes < maxPasses {
		g.passes++
		changed := false
		for _, r := range rows {
			if g.pool(g.rowCells(r)) {
				changed = true
			}
		}
		for _, c := range colKeys {
			if g.pool(g.columnCells(rows, c)) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	g.fitted = true
	return g.passes
}

// Passes returns the number of passes the last Fit made.
func (g *Grid) Passes() int { return g.passes }

// Fitted reports whether Fit ran after the last Add.
func (g *Grid) Fitted() bool { return g.fitted }

// pool runs weighted PAVA over cells ordered along one axis and reports
// whether any value moved by more than the tolerance.
func (g *Grid) pool(line []*cell) bool {
	if len(line) < 2 {
		return false
	}
	type block struct {
		value  float64
		weight float64
		size   int
	}
	blocks := make([]block, 0, len(line))
	for _, cl := range line {
		blocks = append(blocks, block{value: cl.value, weight: cl.total, size: 1})
		for len(blocks) > 1 && blocks[len(blocks)-2].value > blocks[len(blocks)-1].value {
			a, b := blocks[len(blocks)-2], blocks[len(blocks)-1]
			w := a.weight + b.weight
			merged := block{value: (a.value*a.weight + b.value*b.weight) / w, weight: w, size: a.size + b.size}
			blocks = append(blocks[:len(blocks)-2], merged)
		}
	}

	changed := false
	i := 0
	for _, b := range blocks {
		for k := 0; k < b.size; k++ {
			if math.Abs(line[i].value-b.value) > g.cfg.Tolerance {
				changed = true
			}
			line[i].value = b.value
			i++
		}
	}
	return changed
}

func (g *Grid) rowKeys() []int {
	keys := make([]int, 0, len(g.cells))
	for r := range g.cells {
		keys = append(keys, r)
	}
	sort.Ints(keys)
	return keys
}

func columnKeys(row map[int]*cell) []int {
	keys := make([]int, 0, len(row))
	for c := range row {
		keys = append(keys, c)
	}
	sort.Ints(keys)
	return keys
}

func (g *Grid) rowCells(r int) []*cell {
	row := g.cells[r]
	out := make([]*cell, 0, len(row))
	for _, c := range columnKeys(row) {
		out = append(out, row[c])
	}
	return out
}

func (g *Grid) columnCells(rows []int, c int) []*cell {
	out := make([]*cell, 0, len(rows))
	for _, r := range rows {
		if cl, ok := g.cells[r][c]; ok {
			out = append(out, cl)
		}
	}
	return out
}

func (g *Grid) key(bucket int) float64 {
	return float64(bucket) / float64(g.cfg.Resolution)
}

// Lower returns the value of the nearest populated cell at or below
// (confidence, credibility): the last row key <= confidence, then the last
// column key <= credibility within it.
func (g *Grid) Lower(confidence, credibility float64) (float64, bool) {
	rowKey, found := 0, false
	for _, r := range g.rowKeys() {
		if g.key(r) > confidence {
			break
		}
		rowKey, found = r, true
	}
	if !found {
		return 0, false
	}
	row := g.cells[rowKey]
	var value float64
	found = false
	for _, c := range columnKeys(row) {
		if g.key(c) > credibility {
			break
		}
		value, found = row[c].value, true
	}
	return value, found
}

// Upper returns the value of the first populated cell strictly above
// (confidence, credibility) on each axis, falling back to the last key when
// nothing lies above.
func (g *Grid) Upper(confidence, credibility float64) (float64, bool) {
	rows := g.rowKeys()
	if len(rows) == 0 {
		return 0, false
	}
	rowKey := rows[len(rows)-1]
	for _, r := range rows {
		if g.key(r) > confidence {
			rowKey = r
			break
		}
	}
	cols := columnKeys(g.cells[rowKey])
	colKey := cols[len(cols)-1]
	for _, c := range cols {
		if g.key(c) > credibility {
			colKey = c
			break
		}
	}
	return g.cells[rowKey][colKey].value, true
}

// Bounds returns the calibrated accuracy interval, defaulting to 0 for a
// missing lower bracket and 1 for a missing upper bracket.
func (g *Grid) Bounds(confidence, credibility float64) (lower, upper float64) {
	lower, ok := g.Lower(confidence, credibility)
	if !ok {
		lower = 0
	}
	upper, ok = g.Upper(confidence, credibility)
	if !ok {
		upper = 1
	}
	return lower, upper
}

// Cells returns the populated cells ordered by row then column.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, 0, g.Len())
	for _, r := range g.rowKeys() {
		row := g.cells[r]
		for _, c := range columnKeys(row) {
			cl := row[c]
			out = append(out, Cell{
				Row:         r,
				Column:      c,
				Confidence:  g.key(r),
				Credibility: g.key(c),
				Correct:     cl.correct,
				Total:       cl.total,
				Value:       cl.value,
			})
		}
	}
	return out
}

// Resolution returns the buckets per unit.
func (g *Grid) Resolution() int { return g.cfg.Resolution }
