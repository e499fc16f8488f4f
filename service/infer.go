package service

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var ErrClosed = errors.New("classifier closed")

func (c *Classifier) Predict(ctx context.Context, img image.Image) (*Prediction, error) {
	inputData, err := Preprocess(img, c.geometry)
	if err != nil {
		return nil, err
	}
	if len(c.models) == 0 {
		return nil, ErrClosed
	}

	var m *Model
	select {
	case m = <-c.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { c.pool <- m }()

	copy(m.input.GetData(), inputData)
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w", c.name, err)
	}

	out := m.output.GetData()
	probs := make([]float32, len(out))
	copy(probs, out)
	return c.decode(probs)
}

// decode maps the model output to the best label.
func (c *Classifier) decode(out []float32) (*Prediction, error) {
	if len(out) != len(c.labels) {
		return nil, fmt.Errorf("model returned %d scores for %d labels", len(out), len(c.labels))
	}
	probs := Probabilities(out)
	idx := Argmax(probs)
	if idx < 0 {
		return nil, errors.New("empty model output")
	}
	p := &Prediction{
		Label: c.labels[idx],
		Score: probs[idx],
		Index: idx,
	}
	if c.descriptions != nil {
		p.Description = c.descriptions[p.Label]
		if p.Description == "" {
			p.Description = NoDescription
		}
	}
	return p, nil
}
