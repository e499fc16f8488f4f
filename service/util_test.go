package service

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/krau/agrotagger/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) image.Image {
	return imaging.New(w, h, c)
}

func TestPreprocessNHWC(t *testing.T) {
	img := solid(40, 20, color.NRGBA{R: 255, G: 51, B: 0, A: 255})
	out, err := Preprocess(img, Geometry{Size: 4, Layout: NHWC, Filter: imaging.NearestNeighbor})
	require.NoError(t, err)
	require.Len(t, out, 3*4*4)

	for i := 0; i < len(out); i += 3 {
		assert.InDelta(t, 1.0, out[i], 1e-6)
		assert.InDelta(t, 0.2, out[i+1], 1e-6)
		assert.InDelta(t, 0.0, out[i+2], 1e-6)
	}
}

func TestPreprocessBGRAndNCHW(t *testing.T) {
	img := solid(8, 8, color.NRGBA{R: 255, G: 102, B: 51, A: 255})

	out, err := Preprocess(img, Geometry{Size: 2, Layout: NHWC, BGR: true, Filter: imaging.Linear})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, out[0], 1e-6)
	assert.InDelta(t, 0.4, out[1], 1e-6)
	assert.InDelta(t, 1.0, out[2], 1e-6)

	out, err = Preprocess(img, Geometry{Size: 2, Layout: NCHW, Filter: imaging.Linear})
	require.NoError(t, err)
	require.Len(t, out, 12)
	for i := range 4 {
		assert.InDelta(t, 1.0, out[i], 1e-6)
		assert.InDelta(t, 0.4, out[4+i], 1e-6)
		assert.InDelta(t, 0.2, out[8+i], 1e-6)
	}
}

func TestPreprocessRejectsEmpty(t *testing.T) {
	_, err := Preprocess(image.NewNRGBA(image.Rect(0, 0, 0, 5)), Geometry{Size: 2})
	assert.Error(t, err)
	_, err = Preprocess(nil, Geometry{Size: 2})
	assert.Error(t, err)
	_, err = Preprocess(solid(2, 2, color.NRGBA{A: 255}), Geometry{})
	assert.Error(t, err)
}

func TestArgmaxAndProbabilities(t *testing.T) {
	assert.Equal(t, -1, Argmax(nil))
	assert.Equal(t, 2, Argmax([]float32{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, Argmax([]float32{0.5, 0.5}))

	dist := []float32{0.1, 0.2, 0.7}
	assert.Equal(t, dist, Probabilities(dist))

	p := Probabilities([]float32{1, 3, -2})
	var sum float32
	for _, v := range p {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Equal(t, 1, Argmax(p))
}

func TestShapeGeometry(t *testing.T) {
	size, layout, err := shapeGeometry([]int64{-1, 150, 150, 3})
	require.NoError(t, err)
	assert.Equal(t, 150, size)
	assert.Equal(t, NHWC, layout)

	size, layout, err = shapeGeometry([]int64{1, 3, 224, 224})
	require.NoError(t, err)
	assert.Equal(t, 224, size)
	assert.Equal(t, NCHW, layout)

	size, _, err = shapeGeometry([]int64{-1, -1, -1, 3})
	require.NoError(t, err)
	assert.Equal(t, -1, size)

	_, _, err = shapeGeometry([]int64{1, 150, 150})
	assert.Error(t, err)
	_, _, err = shapeGeometry([]int64{1, 150, 120, 3})
	assert.Error(t, err)
	_, _, err = shapeGeometry([]int64{1, 4, 150, 150})
	assert.Error(t, err)
}

func TestGeometryFor(t *testing.T) {
	g, err := geometryFor(config.Classifier{ChannelOrder: "bgr", Resample: "nearest"}, []int64{-1, -1, -1, 3})
	require.NoError(t, err)
	assert.Equal(t, DefaultInputSize, g.Size)
	assert.True(t, g.BGR)

	g, err = geometryFor(config.Classifier{InputSize: 96}, []int64{-1, -1, -1, 3})
	require.NoError(t, err)
	assert.Equal(t, 96, g.Size)

	_, err = geometryFor(config.Classifier{InputSize: 96}, []int64{-1, 150, 150, 3})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	c := &Classifier{
		name:         "soil",
		labels:       DefaultLabels["soil"],
		descriptions: map[string]string{"Black Soil": "dark"},
	}
	p, err := c.decode([]float32{0.1, 0.6, 0.2, 0.1})
	require.NoError(t, err)
	assert.Equal(t, "Black Soil", p.Label)
	assert.Equal(t, "dark", p.Description)
	assert.Equal(t, 1, p.Index)
	assert.InDelta(t, 0.6, p.Score, 1e-6)

	p, err = c.decode([]float32{0.1, 0.1, 0.1, 0.7})
	require.NoError(t, err)
	assert.Equal(t, NoDescription, p.Description)

	_, err = c.decode([]float32{1})
	assert.Error(t, err)

	noDesc := &Classifier{name: "disease", labels: []string{"a", "b"}}
	p, err = noDesc.decode([]float32{0.9, 0.1})
	require.NoError(t, err)
	assert.Empty(t, p.Description)
}

func TestPredictClosed(t *testing.T) {
	c := &Classifier{name: "x", labels: []string{"a"}, geometry: Geometry{Size: 2}}
	_, err := c.Predict(context.Background(), solid(4, 4, color.NRGBA{A: 255}))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPredictWaitsForBusyPool(t *testing.T) {
	// the only model is borrowed, so Predict blocks until ctx ends
	busy := &Model{}
	c := &Classifier{
		name:     "x",
		labels:   []string{"a"},
		geometry: Geometry{Size: 2},
		models:   []*Model{busy},
		pool:     make(chan *Model, 1),
	}
	img := solid(4, 4, color.NRGBA{A: 255})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Predict(ctx, img)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.Predict(ctx, img)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// nothing was pushed back into the pool on the cancelled paths
	assert.Empty(t, c.pool)
	c.pool <- busy
	assert.Len(t, c.pool, 1)
}

func TestLoadLabelsAndDescriptions(t *testing.T) {
	labels, err := loadLabels(config.Classifier{Name: "disease"})
	require.NoError(t, err)
	assert.Len(t, labels, 42)

	_, err = loadLabels(config.Classifier{Name: "unknown"})
	assert.Error(t, err)

	dir := t.TempDir()
	lf := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(lf, []byte("rust\n\n  blight  \n"), 0o644))
	labels, err = loadLabels(config.Classifier{Name: "unknown", LabelsFile: lf})
	require.NoError(t, err)
	assert.Equal(t, []string{"rust", "blight"}, labels)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = loadLabels(config.Classifier{Name: "x", LabelsFile: empty})
	assert.Error(t, err)

	df := filepath.Join(dir, "descriptions.toml")
	require.NoError(t, os.WriteFile(df, []byte(`rust = "orange pustules"`+"\n"), 0o644))
	d, err := loadDescriptions(config.Classifier{Name: "x", DescriptionsFile: df})
	require.NoError(t, err)
	assert.Equal(t, "orange pustules", d["rust"])

	d, err = loadDescriptions(config.Classifier{Name: "soil"})
	require.NoError(t, err)
	assert.Len(t, d, 4)
	d, err = loadDescriptions(config.Classifier{Name: "disease"})
	require.NoError(t, err)
	assert.Nil(t, d)
}
