package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrUnknownLayer = errors.New("unknown raster layer")

type Source struct {
	Name string
	Path string
	CRS  string
}

// Set is a fixed collection of named layers, safe for concurrent reads.
type Set struct {
	layers map[string]*Layer
	order  []string
}

type LoadOptions struct {
	// SkipMissing drops sources whose file does not exist instead of failing.
	SkipMissing bool
	Concurrency int
}

// LoadSet opens every source concurrently.
func LoadSet(ctx context.Context, sources []Source, opts LoadOptions) (*Set, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	var mu sync.Mutex
	loaded := make(map[string]*Layer, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := Open(src.Name, src.Path, src.CRS)
			if err != nil {
				if opts.SkipMissing && errors.Is(err, os.ErrNotExist) {
					slog.Warn("Raster layer not found, skipping", slog.String("layer", src.Name), slog.String("path", src.Path))
					return nil
				}
				return err
			}
			mu.Lock()
			loaded[src.Name] = l
			mu.Unlock()
			slog.Debug("Loaded raster layer", slog.String("layer", src.Name), slog.String("crs", l.CRS.String()),
				slog.Int("cols", l.Grid.Cols), slog.Int("rows", l.Grid.Rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Set{layers: loaded}
	for _, src := range sources {
		if _, ok := loaded[src.Name]; ok {
			s.order = append(s.order, src.Name)
		}
	}
	return s, nil
}

// Names lists the loaded layers in configuration order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

func (s *Set) Layer(name string) (*Layer, bool) {
	l, ok := s.layers[name]
	return l, ok
}

type Result struct {
	Name  string
	Value float64
	Err   error
}

// Sample reads every named layer at lat, lon concurrently, or all layers when
// names is empty. Results keep the order of names. Per-layer failures are
// reported in the results; unknown names and invalid coordinates fail the
// whole call.
func (s *Set) Sample(lat, lon float64, src CRS, names ...string) ([]Result, error) {
	if src == WGS84 {
		if err := ValidateLatLon(lat, lon); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		names = s.order
	}
	layers := make([]*Layer, len(names))
	for i, n := range names {
		l, ok := s.layers[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, n)
		}
		layers[i] = l
	}
	out := make([]Result, len(layers))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, l := range layers {
		g.Go(func() error {
			v, err := l.ValueAt(lat, lon, src)
			out[i] = Result{Name: l.Name, Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}
