package raster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const DefaultNoData = -9999

// maxCells bounds ncols*nrows so a bad header cannot overflow or exhaust memory.
const maxCells = 1 << 28

// Grid is an ESRI ASCII grid held in memory. Rows are stored north to south.
type Grid struct {
	Cols      int
	Rows      int
	XLL       float64 // west edge of the grid
	YLL       float64 // south edge of the grid
	CellW     float64
	CellH     float64
	NoData    float64
	HasNoData bool
	Values    []float64
}

var errMalformed = errors.New("malformed ascii grid")

// LoadASC reads the .asc file at path.
func LoadASC(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ParseASC(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseASC decodes an ESRI ASCII grid. Header keys are case-insensitive and
// either corner or center registration is accepted.
func ParseASC(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	header := make(map[string]float64)
	var pending string
	for sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)
		if !isHeaderKey(key) {
			pending = tok
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: header %s has no value", errMalformed, tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: header %s: %v", errMalformed, tok, err)
		}
		if _, dup := header[key]; dup {
			return nil, fmt.Errorf("%w: duplicate header %s", errMalformed, tok)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	g, err := gridFromHeader(header)
	if err != nil {
		return nil, err
	}

	n := g.Cols * g.Rows
	g.Values = make([]float64, 0, min(n, 1<<20))
	if pending != "" {
		v, err := strconv.ParseFloat(pending, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown header or bad value %q", errMalformed, pending)
		}
		g.Values = append(g.Values, v)
	}
	for len(g.Values) < n && sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", errMalformed, len(g.Values), err)
		}
		g.Values = append(g.Values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(g.Values) < n {
		return nil, fmt.Errorf("%w: expected %d values, got %d", errMalformed, n, len(g.Values))
	}
	if sc.Scan() {
		return nil, fmt.Errorf("%w: more than %d values", errMalformed, n)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

func isHeaderKey(k string) bool {
	switch k {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter",
		"cellsize", "dx", "dy", "nodata_value":
		return true
	}
	return false
}

func gridFromHeader(h map[string]float64) (*Grid, error) {
	cols, okc := h["ncols"]
	rows, okr := h["nrows"]
	if !okc || !okr {
		return nil, fmt.Errorf("%w: ncols and nrows are required", errMalformed)
	}
	if cols < 1 || rows < 1 || cols != math.Trunc(cols) || rows != math.Trunc(rows) {
		return nil, fmt.Errorf("%w: invalid dimensions %vx%v", errMalformed, cols, rows)
	}
	if cols > maxCells || rows > maxCells || cols*rows > maxCells {
		return nil, fmt.Errorf("%w: grid %vx%v exceeds %d cells", errMalformed, cols, rows, maxCells)
	}
	g := &Grid{Cols: int(cols), Rows: int(rows), NoData: DefaultNoData}

	if cs, ok := h["cellsize"]; ok {
		g.CellW, g.CellH = cs, cs
	} else {
		dx, okx := h["dx"]
		dy, oky := h["dy"]
		if !okx || !oky {
			return nil, fmt.Errorf("%w: cellsize is required", errMalformed)
		}
		g.CellW, g.CellH = dx, dy
	}
	if g.CellW <= 0 || g.CellH <= 0 {
		return nil, fmt.Errorf("%w: cell size must be positive", errMalformed)
	}

	switch {
	case has(h, "xllcorner"):
		g.XLL = h["xllcorner"]
	case has(h, "xllcenter"):
		g.XLL = h["xllcenter"] - g.CellW/2
	default:
		return nil, fmt.Errorf("%w: xllcorner or xllcenter is required", errMalformed)
	}
	switch {
	case has(h, "yllcorner"):
		g.YLL = h["yllcorner"]
	case has(h, "yllcenter"):
		g.YLL = h["yllcenter"] - g.CellH/2
	default:
		return nil, fmt.Errorf("%w: yllcorner or yllcenter is required", errMalformed)
	}

	if nd, ok := h["nodata_value"]; ok {
		g.NoData = nd
		g.HasNoData = true
	}
	return g, nil
}

func has(h map[string]float64, k string) bool {
	_, ok := h[k]
	return ok
}

// Bounds returns the west, south, east and north edges.
func (g *Grid) Bounds() (minX, minY, maxX, maxY float64) {
	return g.XLL, g.YLL, g.XLL + float64(g.Cols)*g.CellW, g.YLL + float64(g.Rows)*g.CellH
}

// Cell returns the row and column covering x, y in grid units.
func (g *Grid) Cell(x, y float64) (row, col int, ok bool) {
	minX, minY, maxX, maxY := g.Bounds()
	if math.IsNaN(x) || math.IsNaN(y) || x < minX || x > maxX || y < minY || y > maxY {
		return 0, 0, false
	}
	col = int(math.Floor((x - minX) / g.CellW))
	row = int(math.Floor((maxY - y) / g.CellH))
	// points on the east or south edge belong to the last cell
	if col == g.Cols {
		col--
	}
	if row == g.Rows {
		row--
	}
	return row, col, true
}

// At returns the stored value at row, col.
func (g *Grid) At(row, col int) float64 {
	return g.Values[row*g.Cols+col]
}

func (g *Grid) isNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return v == g.NoData
}
