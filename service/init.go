package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/krau/agrotagger/config"
	ort "github.com/yalue/onnxruntime_go"
)

// NewClassifier loads labels and descriptions, inspects the model and opens
// cfg.Workers sessions. The ONNX Runtime environment must be initialised.
func NewClassifier(cfg config.Classifier) (*Classifier, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	labels, err := loadLabels(cfg)
	if err != nil {
		return nil, err
	}
	descriptions, err := loadDescriptions(cfg)
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("model has no inputs or outputs")
	}
	geometry, err := geometryFor(cfg, inputs[0].Dimensions)
	if err != nil {
		return nil, err
	}
	if n := lastDim(outputs[0].Dimensions); n > 0 && int(n) != len(labels) {
		return nil, fmt.Errorf("model has %d outputs but %d labels are configured", n, len(labels))
	}

	c := &Classifier{
		name:         cfg.Name,
		labels:       labels,
		descriptions: descriptions,
		geometry:     geometry,
		pool:         make(chan *Model, cfg.Workers),
	}
	for range cfg.Workers {
		m, err := newModel(cfg.ModelFile, inputs[0].Name, outputs[0].Name, geometry, len(labels))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.models = append(c.models, m)
		c.pool <- m
	}

	slog.Info("Loaded classifier",
		slog.String("name", c.name),
		slog.String("model", cfg.ModelFile),
		slog.Int("labels", len(labels)),
		slog.Int("size", geometry.Size),
		slog.String("layout", geometry.Layout.String()),
		slog.Int("workers", cfg.Workers))
	return c, nil
}

func newModel(path, inputName, outputName string, g Geometry, classes int) (*Model, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	shape := ort.NewShape(1, int64(g.Size), int64(g.Size), 3)
	if g.Layout == NCHW {
		shape = ort.NewShape(1, 3, int64(g.Size), int64(g.Size))
	}
	inputTensor, err := ort.NewTensor(shape, make([]float32, 3*g.Size*g.Size))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(classes)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}
	return &Model{session: session, input: inputTensor, output: outputTensor}, nil
}

func (m *Model) destroy() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}

// Close destroys every session. It must not race with Predict.
func (c *Classifier) Close() {
	for _, m := range c.models {
		m.destroy()
	}
	c.models = nil
}

func loadLabels(cfg config.Classifier) ([]string, error) {
	if cfg.LabelsFile != "" {
		labels, err := ReadLines(cfg.LabelsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read labels: %w", err)
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("labels file %s is empty", cfg.LabelsFile)
		}
		return labels, nil
	}
	labels, ok := DefaultLabels[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("classifier %s: labels_file is required", cfg.Name)
	}
	return labels, nil
}

func loadDescriptions(cfg config.Classifier) (map[string]string, error) {
	if cfg.DescriptionsFile != "" {
		d, err := ReadDescriptions(cfg.DescriptionsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptions: %w", err)
		}
		return d, nil
	}
	return DefaultDescriptions[cfg.Name], nil
}

func geometryFor(cfg config.Classifier, dims ort.Shape) (Geometry, error) {
	size, layout, err := shapeGeometry(dims)
	if err != nil {
		return Geometry{}, err
	}
	switch {
	case cfg.InputSize > 0 && size > 0 && cfg.InputSize != size:
		return Geometry{}, fmt.Errorf("model expects %dx%d input, configured %d", size, size, cfg.InputSize)
	case size <= 0 && cfg.InputSize > 0:
		size = cfg.InputSize
	case size <= 0:
		size = DefaultInputSize
	}
	return Geometry{
		Size:   size,
		Layout: layout,
		BGR:    cfg.ChannelOrder == "bgr",
		Filter: resampleFilter(cfg.Resample),
	}, nil
}

// shapeGeometry reads the square image size and layout from a [batch, ...]
// input shape. Dynamic dimensions are negative and yield size 0.
func shapeGeometry(dims []int64) (int, Layout, error) {
	if len(dims) != 4 {
		return 0, NHWC, fmt.Errorf("unsupported input rank %d, want 4", len(dims))
	}
	switch {
	case dims[3] == 3:
		if dims[1] != dims[2] {
			return 0, NHWC, fmt.Errorf("non-square input %dx%d", dims[1], dims[2])
		}
		return int(dims[1]), NHWC, nil
	case dims[1] == 3:
		if dims[2] != dims[3] {
			return 0, NCHW, fmt.Errorf("non-square input %dx%d", dims[2], dims[3])
		}
		return int(dims[2]), NCHW, nil
	}
	return 0, NHWC, fmt.Errorf("input shape %v has no 3-channel axis", dims)
}

func lastDim(dims []int64) int64 {
	if len(dims) == 0 {
		return 0
	}
	return dims[len(dims)-1]
}

func resampleFilter(name string) imaging.ResampleFilter {
	switch name {
	case "nearest":
		return imaging.NearestNeighbor
	case "lanczos":
		return imaging.Lanczos
	default:
		return imaging.Linear
	}
}
