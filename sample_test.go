package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/krau/agrotagger/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSources(t *testing.T) {
	got := fileSources([]string{"gis_files/fclayey.asc", "/tmp/sandy.ASC"})
	assert.Equal(t, []raster.Source{
		{Name: "fclayey", Path: "gis_files/fclayey.asc"},
		{Name: "sandy", Path: "/tmp/sandy.ASC"},
	}, got)
}

func TestPrintSamples(t *testing.T) {
	dir := t.TempDir()
	loamy := filepath.Join(dir, "floamy.asc")
	require.NoError(t, os.WriteFile(loamy, []byte("ncols 2\nnrows 1\nxllcorner 76\nyllcorner 25.5\ncellsize 0.5\n12.5 -9999\n"), 0o644))
	far := filepath.Join(dir, "far.asc")
	require.NoError(t, os.WriteFile(far, []byte("ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"), 0o644))

	set, err := raster.LoadSet(context.Background(), fileSources([]string{loamy, far}), raster.LoadOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printSamples(&buf, set, 25.9, 76.142, raster.WGS84))
	assert.Equal(t,
		"floamy value: 12.5\nfar error: the specified coordinates are out of the raster bounds\n",
		buf.String())

	buf.Reset()
	require.NoError(t, printSamples(&buf, set, 25.9, 76.7, raster.WGS84))
	assert.Contains(t, buf.String(), "floamy value: None\n")

	assert.ErrorIs(t, printSamples(&buf, set, -91, 0, raster.WGS84), raster.ErrInvalidCoordinate)
}

func TestSetupLoggerAcceptsUnknownLevel(t *testing.T) {
	assert.NotPanics(t, func() {
		setupLogger("loud", "json")
		setupLogger("debug", "text")
	})
}
