package service

import (
	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultInputSize = 150
	NoDescription    = "No description available."
)

type Layout int

const (
	NHWC Layout = iota
	NCHW
)

func (l Layout) String() string {
	if l == NCHW {
		return "NCHW"
	}
	return "NHWC"
}

// Geometry describes the tensor a model expects for a single image.
type Geometry struct {
	Size   int
	Layout Layout
	BGR    bool
	Filter imaging.ResampleFilter
}

type Prediction struct {
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Score       float32 `json:"score"`
	Index       int     `json:"-"`
}

type Model struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// Classifier owns a pool of sessions over one model file. Predict may be
// called from many goroutines; each call borrows one session.
type Classifier struct {
	name         string
	labels       []string
	descriptions map[string]string
	geometry     Geometry
	models       []*Model
	pool         chan *Model
}

func (c *Classifier) Name() string       { return c.name }
func (c *Classifier) Labels() []string   { return c.labels }
func (c *Classifier) Geometry() Geometry { return c.geometry }
