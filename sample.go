package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/krau/agrotagger/config"
	"github.com/krau/agrotagger/raster"
	"github.com/krau/agrotagger/server"
	"github.com/spf13/cobra"
)

var (
	sampleLat float64
	sampleLon float64
	sampleCRS string
)

var sampleCmd = &cobra.Command{
	Use:   "sample [file.asc ...]",
	Short: "Print raster values at a latitude/longitude",
	Long: "Print the value of every configured raster layer, or of the given .asc files, " +
		"at the cell under --lat/--lon.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
			return errors.New("--lat and --lon are required")
		}
		src, err := raster.ParseCRS(sampleCRS)
		if err != nil {
			return err
		}
		sources := server.RasterSources(config.C().Rasters)
		skipMissing := true
		if len(args) > 0 {
			sources = fileSources(args)
			skipMissing = false
		}
		set, err := raster.LoadSet(cmd.Context(), sources, raster.LoadOptions{SkipMissing: skipMissing})
		if err != nil {
			return err
		}
		if len(set.Names()) == 0 {
			return errors.New("no raster layers found")
		}
		return printSamples(cmd.OutOrStdout(), set, sampleLat, sampleLon, src)
	},
}

func init() {
	sampleCmd.Flags().Float64Var(&sampleLat, "lat", 0, "latitude, or northing for a projected --crs")
	sampleCmd.Flags().Float64Var(&sampleLon, "lon", 0, "longitude, or easting for a projected --crs")
	sampleCmd.Flags().StringVar(&sampleCRS, "crs", "EPSG:4326", "CRS of the input coordinates")
}

func fileSources(paths []string) []raster.Source {
	out := make([]raster.Source, len(paths))
	for i, p := range paths {
		out[i] = raster.Source{Name: strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)), Path: p}
	}
	return out
}

// printSamples writes one "name value: v" line per layer. Per-layer errors are
// printed in place of the value.
func printSamples(w io.Writer, set *raster.Set, lat, lon float64, src raster.CRS) error {
	results, err := set.Sample(lat, lon, src)
	if err != nil {
		return err
	}
	for _, r := range results {
		switch {
		case r.Err == nil:
			fmt.Fprintf(w, "%s value: %v\n", r.Name, r.Value)
		case errors.Is(r.Err, raster.ErrNoData):
			fmt.Fprintf(w, "%s value: None\n", r.Name)
		default:
			fmt.Fprintf(w, "%s error: %v\n", r.Name, r.Err)
		}
	}
	return nil
}
