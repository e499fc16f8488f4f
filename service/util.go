package service

import (
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"strings"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/pelletier/go-toml/v2"
)

// Probabilities returns out unchanged when it already looks like a
// distribution, otherwise its softmax.
func Probabilities(out []float32) []float32 {
	var sum float64
	normalized := true
	for _, v := range out {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			normalized = false
			break
		}
		sum += float64(v)
	}
	if normalized && math.Abs(sum-1) < 1e-3 {
		return out
	}
	return Softmax(out)
}

func Softmax(x []float32) []float32 {
	if len(x) == 0 {
		return nil
	}
	hi := x[0]
	for _, v := range x[1:] {
		hi = max(hi, v)
	}
	res := make([]float32, len(x))
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - hi))
		res[i] = float32(e)
		sum += e
	}
	for i := range res {
		res[i] = float32(float64(res[i]) / sum)
	}
	return res
}

// Argmax returns the index of the largest value, the first on ties, or -1.
func Argmax(x []float32) int {
	idx := -1
	for i, v := range x {
		if idx < 0 || v > x[idx] {
			idx = i
		}
	}
	return idx
}

func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(b), "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

// ReadDescriptions reads a TOML table of label = "description" pairs.
func ReadDescriptions(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d := make(map[string]string)
	if err := toml.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// Preprocess stretches img to the model input size and lays it out as float
// pixels scaled to [0, 1].
func Preprocess(img image.Image, g Geometry) ([]float32, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("empty image")
	}
	if g.Size <= 0 {
		return nil, errors.New("invalid input size")
	}
	size := g.Size
	resized := imaging.Resize(img, size, size, g.Filter)

	order := [3]int{0, 1, 2}
	if g.BGR {
		order = [3]int{2, 1, 0}
	}

	plane := size * size
	out := make([]float32, 3*plane)
	for y := range size {
		row := resized.Pix[y*resized.Stride:]
		for x := range size {
			px := row[x*4 : x*4+3]
			for c, src := range order {
				v := float32(px[src]) / 255.0
				if g.Layout == NCHW {
					out[c*plane+y*size+x] = v
				} else {
					out[(y*size+x)*3+c] = v
				}
			}
		}
	}
	return out, nil
}
