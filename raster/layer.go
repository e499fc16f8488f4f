package raster

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrOutOfBounds       = errors.New("the specified coordinates are out of the raster bounds")
	ErrNoData            = errors.New("no data at the specified coordinates")
)

// Layer is a grid together with the CRS its cell coordinates are expressed in.
type Layer struct {
	Name string
	Path string
	CRS  CRS
	Grid *Grid
}

// Open loads an .asc layer. When crs is empty the .prj sidecar decides, and
// without one the grid is taken to be WGS84.
func Open(name, path, crs string) (*Layer, error) {
	var (
		c   CRS
		err error
	)
	if crs != "" {
		c, err = ParseCRS(crs)
	} else {
		c, err = readPRJ(path)
	}
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", name, err)
	}
	g, err := LoadASC(path)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", name, err)
	}
	return &Layer{Name: name, Path: path, CRS: c, Grid: g}, nil
}

// ValidateLatLon checks that lat and lon are plausible WGS84 degrees.
func ValidateLatLon(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: lat %v lon %v", ErrInvalidCoordinate, lat, lon)
	}
	return nil
}

// ValueAt returns the cell value under lat, lon given in src. For a projected
// src, lat is the northing and lon the easting.
func (l *Layer) ValueAt(lat, lon float64, src CRS) (float64, error) {
	if src == WGS84 {
		if err := ValidateLatLon(lat, lon); err != nil {
			return 0, err
		}
	}
	x, y, err := Transform(src, l.CRS, lon, lat)
	if err != nil {
		return 0, err
	}
	row, col, ok := l.Grid.Cell(x, y)
	if !ok {
		return 0, ErrOutOfBounds
	}
	v := l.Grid.At(row, col)
	if l.Grid.isNoData(v) {
		return 0, ErrNoData
	}
	return v, nil
}
