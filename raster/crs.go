package raster

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/wroge/wgs84"
)

const mercMaxLat = 85.06

type crsKind int

const (
	kindGeographic crsKind = iota
	kindWebMercator
	kindUTM
)

// CRS is one of the coordinate reference systems the sampler can project to.
type CRS struct {
	kind  crsKind
	zone  int
	south bool
}

var (
	WGS84       = CRS{kind: kindGeographic}
	WebMercator = CRS{kind: kindWebMercator}

	ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")
)

// UTM returns the WGS84 UTM zone CRS.
func UTM(zone int, south bool) (CRS, error) {
	if zone < 1 || zone > 60 {
		return CRS{}, fmt.Errorf("%w: utm zone %d", ErrUnsupportedCRS, zone)
	}
	return CRS{kind: kindUTM, zone: zone, south: south}, nil
}

func (c CRS) String() string {
	switch c.kind {
	case kindWebMercator:
		return "EPSG:3857"
	case kindUTM:
		if c.south {
			return fmt.Sprintf("EPSG:%d", 32700+c.zone)
		}
		return fmt.Sprintf("EPSG:%d", 32600+c.zone)
	default:
		return "EPSG:4326"
	}
}

// ParseCRS accepts an authority code such as "EPSG:4326". An empty string is WGS84.
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return WGS84, nil
	}
	code, ok := strings.CutPrefix(s, "EPSG:")
	if !ok {
		return CRS{}, fmt.Errorf("%w: %q", ErrUnsupportedCRS, s)
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return CRS{}, fmt.Errorf("%w: %q", ErrUnsupportedCRS, s)
	}
	switch {
	case n == 4326:
		return WGS84, nil
	case n == 3857 || n == 900913 || n == 3785:
		return WebMercator, nil
	case n > 32600 && n <= 32660:
		return UTM(n-32600, false)
	case n > 32700 && n <= 32760:
		return UTM(n-32700, true)
	}
	return CRS{}, fmt.Errorf("%w: %q", ErrUnsupportedCRS, s)
}

var (
	utmZoneRe   = regexp.MustCompile(`UTM[ _]ZONE[ _](\d{1,2})([NS])`)
	authorityRe = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"?(\d+)"?\]\s*\]\s*$`)
)

// ParseWKT recognises the .prj contents written by common GIS tools.
func ParseWKT(wkt string) (CRS, error) {
	w := strings.ToUpper(strings.TrimSpace(wkt))
	if w == "" {
		return WGS84, nil
	}
	if m := authorityRe.FindStringSubmatch(w); m != nil {
		if c, err := ParseCRS("EPSG:" + m[1]); err == nil {
			return c, nil
		}
	}
	switch {
	case strings.HasPrefix(w, "GEOGCS") || strings.HasPrefix(w, "GEOGCRS"):
		return WGS84, nil
	case strings.Contains(w, "MERCATOR_AUXILIARY_SPHERE"),
		strings.Contains(w, "POPULAR VISUALISATION"),
		strings.Contains(w, "PSEUDO-MERCATOR"),
		strings.Contains(w, "PSEUDO_MERCATOR"):
		return WebMercator, nil
	}
	if m := utmZoneRe.FindStringSubmatch(w); m != nil {
		zone, _ := strconv.Atoi(m[1])
		return UTM(zone, m[2] == "S")
	}
	return CRS{}, fmt.Errorf("%w: %.60s", ErrUnsupportedCRS, wkt)
}

// readPRJ returns the CRS described by the sidecar next to an .asc file, or
// WGS84 when there is none.
func readPRJ(ascPath string) (CRS, error) {
	prj := strings.TrimSuffix(ascPath, filepath.Ext(ascPath)) + ".prj"
	data, err := os.ReadFile(prj)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return WGS84, nil
		}
		return CRS{}, err
	}
	return ParseWKT(string(data))
}

// Transform converts x, y from src to dst. Geographic coordinates are
// longitude, latitude in degrees.
func Transform(src, dst CRS, x, y float64) (float64, float64, error) {
	if src == dst {
		return x, y, nil
	}
	if dst.kind == kindWebMercator {
		lat := y
		if src.kind != kindGeographic {
			_, lat, _ = wgs84.Transform(src.system(), wgs84.LonLat())(x, y, 0)
		}
		if math.Abs(lat) > mercMaxLat {
			return 0, 0, fmt.Errorf("%w: latitude %v outside web mercator", ErrInvalidCoordinate, lat)
		}
	}
	a, b, _ := wgs84.Transform(src.system(), dst.system())(x, y, 0)
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0, 0, fmt.Errorf("%w: %v, %v has no position in %s", ErrInvalidCoordinate, x, y, dst)
	}
	return a, b, nil
}

func (c CRS) system() wgs84.CoordinateReferenceSystem {
	switch c.kind {
	case kindWebMercator:
		return wgs84.WebMercator()
	case kindUTM:
		return wgs84.UTM(float64(c.zone), !c.south)
	default:
		return wgs84.LonLat()
	}
}
