package raster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCRS(t *testing.T) {
	cases := map[string]string{
		"":            "EPSG:4326",
		"epsg:4326":   "EPSG:4326",
		"EPSG:3857":   "EPSG:3857",
		"EPSG:900913": "EPSG:3857",
		"EPSG:32643":  "EPSG:32643",
		"EPSG:32733":  "EPSG:32733",
	}
	for in, want := range cases {
		c, err := ParseCRS(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, c.String(), in)
	}

	for _, in := range []string{"EPSG:27700", "EPSG:32600", "EPSG:32661", "WGS84", "EPSG:abc"} {
		_, err := ParseCRS(in)
		assert.ErrorIs(t, err, ErrUnsupportedCRS, in)
	}
}

func TestParseWKT(t *testing.T) {
	geo := `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	utmESRI := `PROJCS["WGS_1984_UTM_Zone_43N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],UNIT["Meter",1.0]]`
	utmEPSG := `PROJCS["WGS 84 / UTM zone 20S",GEOGCS["WGS 84",AUTHORITY["EPSG","4326"]],PROJECTION["Transverse_Mercator"],AUTHORITY["EPSG","32720"]]`
	merc := `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984"],PROJECTION["Mercator_Auxiliary_Sphere"]]`

	cases := map[string]string{
		geo:     "EPSG:4326",
		utmESRI: "EPSG:32643",
		utmEPSG: "EPSG:32720",
		merc:    "EPSG:3857",
		"":      "EPSG:4326",
	}
	for wkt, want := range cases {
		c, err := ParseWKT(wkt)
		require.NoError(t, err)
		assert.Equal(t, want, c.String())
	}

	_, err := ParseWKT(`PROJCS["British_National_Grid",PROJECTION["Transverse_Mercator"]]`)
	assert.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestReadPRJ(t *testing.T) {
	dir := t.TempDir()
	asc := filepath.Join(dir, "layer.asc")

	c, err := readPRJ(asc)
	require.NoError(t, err)
	assert.Equal(t, WGS84, c)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "layer.prj"),
		[]byte(`PROJCS["WGS 84 / UTM zone 43N",AUTHORITY["EPSG","32643"]]`), 0o644))
	c, err = readPRJ(asc)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:32643", c.String())
}

func TestTransformWebMercator(t *testing.T) {
	x, y, err := Transform(WGS84, WebMercator, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)

	x, y, err = Transform(WGS84, WebMercator, 180, 0)
	require.NoError(t, err)
	assert.InDelta(t, 20037508.342789244, x, 1e-6)

	lon, lat, err := Transform(WebMercator, WGS84, x, y)
	require.NoError(t, err)
	assert.InDelta(t, 180, lon, 1e-9)
	assert.InDelta(t, 0, lat, 1e-9)

	_, _, err = Transform(WGS84, WebMercator, 0, 89)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestTransformUTM(t *testing.T) {
	zone31, err := UTM(31, false)
	require.NoError(t, err)

	// the central meridian on the equator sits on the false origin
	x, y, err := Transform(WGS84, zone31, 3, 0)
	require.NoError(t, err)
	assert.InDelta(t, 500000, x, 1e-3)
	assert.InDelta(t, 0, y, 1e-3)

	zone43, err := UTM(43, false)
	require.NoError(t, err)
	x, y, err = Transform(WGS84, zone43, 76.142, 25.9)
	require.NoError(t, err)
	assert.Greater(t, x, 500000.0)
	assert.InDelta(t, 2.865e6, y, 2e4)

	lon, lat, err := Transform(zone43, WGS84, x, y)
	require.NoError(t, err)
	assert.InDelta(t, 76.142, lon, 1e-6)
	assert.InDelta(t, 25.9, lat, 1e-6)

	// web mercator input reaches the same UTM position
	mx, my, err := Transform(WGS84, WebMercator, 76.142, 25.9)
	require.NoError(t, err)
	ux, uy, err := Transform(WebMercator, zone43, mx, my)
	require.NoError(t, err)
	assert.InDelta(t, x, ux, 1e-3)
	assert.InDelta(t, y, uy, 1e-3)

	zone33s, err := UTM(33, true)
	require.NoError(t, err)
	x, y, err = Transform(WGS84, zone33s, 14.5, -33.9)
	require.NoError(t, err)
	lon, lat, err = Transform(zone33s, WGS84, x, y)
	require.NoError(t, err)
	assert.InDelta(t, 14.5, lon, 1e-6)
	assert.InDelta(t, -33.9, lat, 1e-6)

	_, err = UTM(61, false)
	assert.ErrorIs(t, err, ErrUnsupportedCRS)
}
