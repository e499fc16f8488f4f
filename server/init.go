package server

import (
	"context"
	"fmt"

	"github.com/krau/agrotagger/config"
	"github.com/krau/agrotagger/raster"
	"github.com/krau/agrotagger/service"
	"github.com/krau/agrotagger/storage"
)

// App holds everything the router serves.
type App struct {
	Endpoints   []Endpoint
	Layers      *raster.Set
	classifiers []*service.Classifier
}

// Init loads every configured classifier and raster layer. Missing raster
// files are skipped so the classifiers can run without GIS data.
func Init(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{}
	for _, cl := range cfg.Classifiers {
		store, err := storage.New(cl.InputDir, cl.OutputDir)
		if err != nil {
			app.Close()
			return nil, err
		}
		clf, err := service.NewClassifier(cl)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("classifier %s: %w", cl.Name, err)
		}
		app.classifiers = append(app.classifiers, clf)
		app.Endpoints = append(app.Endpoints, Endpoint{
			Route:     cl.Route,
			FormField: cl.FormField,
			Predictor: clf,
			Store:     store,
		})
	}

	layers, err := raster.LoadSet(ctx, RasterSources(cfg.Rasters), raster.LoadOptions{SkipMissing: true})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Layers = layers
	return app, nil
}

func RasterSources(rs []config.Raster) []raster.Source {
	out := make([]raster.Source, len(rs))
	for i, r := range rs {
		out[i] = raster.Source{Name: r.Name, Path: r.Path, CRS: r.CRS}
	}
	return out
}

func (a *App) Close() {
	for _, c := range a.classifiers {
		c.Close()
	}
	a.classifiers = nil
}
