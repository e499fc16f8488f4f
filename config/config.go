package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Token       string   `toml:"token" mapstructure:"token"`
	Host        string   `toml:"host" mapstructure:"host"`
	Port        string   `toml:"port" mapstructure:"port"`
	Libonnx     string   `toml:"libonnx" mapstructure:"libonnx"`
	LogLevel    string   `toml:"log_level" mapstructure:"log_level"`
	LogFormat   string   `toml:"log_format" mapstructure:"log_format"`
	MaxUploadMB int64    `toml:"max_upload_mb" mapstructure:"max_upload_mb"`
	RateLimit   float64  `toml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `toml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `toml:"cors_origins" mapstructure:"cors_origins"`

	Classifiers []Classifier `toml:"classifiers" mapstructure:"classifiers"`
	Rasters     []Raster     `toml:"rasters" mapstructure:"rasters"`
}

// Classifier describes one image classification endpoint and the model behind it.
type Classifier struct {
	Name             string `toml:"name" mapstructure:"name"`
	Route            string `toml:"route" mapstructure:"route"`
	FormField        string `toml:"form_field" mapstructure:"form_field"`
	ModelFile        string `toml:"model_file" mapstructure:"model_file"`
	LabelsFile       string `toml:"labels_file" mapstructure:"labels_file"`
	DescriptionsFile string `toml:"descriptions_file" mapstructure:"descriptions_file"`
	InputSize        int    `toml:"input_size" mapstructure:"input_size"`
	ChannelOrder     string `toml:"channel_order" mapstructure:"channel_order"`
	Resample         string `toml:"resample" mapstructure:"resample"`
	Workers          int    `toml:"workers" mapstructure:"workers"`
	InputDir         string `toml:"input_dir" mapstructure:"input_dir"`
	OutputDir        string `toml:"output_dir" mapstructure:"output_dir"`
}

// Raster is a named grid layer available to the sampler.
type Raster struct {
	Name string `toml:"name" mapstructure:"name"`
	Path string `toml:"path" mapstructure:"path"`
	CRS  string `toml:"crs" mapstructure:"crs"`
}

const EnvPath = "AGROTAGGER_CONFIG"

var (
	path     = "config.toml"
	pathSet  bool
	cfg      Config
	loadOnce sync.Once
)

func Default() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        "8000",
		LogLevel:    "info",
		LogFormat:   "text",
		MaxUploadMB: 16,
		RateBurst:   10,
		CORSOrigins: []string{"*"},
		Classifiers: []Classifier{
			{
				Name:         "disease",
				Route:        "/predict",
				ModelFile:    "models/bimar_model.onnx",
				InputSize:    150,
				ChannelOrder: "rgb",
				Resample:     "nearest",
				Workers:      1,
				InputDir:     "input",
				OutputDir:    "output",
			},
			{
				Name:         "soil",
				Route:        "/classify-soil",
				ModelFile:    "models/soilcrop.onnx",
				InputSize:    150,
				ChannelOrder: "bgr",
				Resample:     "linear",
				Workers:      1,
				InputDir:     "soil_input",
				OutputDir:    "soil_output",
			},
		},
		Rasters: []Raster{
			{Name: "inorganic", Path: "gis_files/meanticd.asc"},
			{Name: "organic", Path: "gis_files/meanocd.asc"},
			{Name: "clayey", Path: "gis_files/fclayey.asc"},
			{Name: "clayskeletal", Path: "gis_files/fclayskeletal.asc"},
			{Name: "loamy", Path: "gis_files/floamy.asc"},
			{Name: "sandy", Path: "gis_files/fsandy.asc"},
			{Name: "soildepth0_25", Path: "gis_files/fsoildep0_25.asc"},
			{Name: "soildepth25_50", Path: "gis_files/fsoildep25_50.asc"},
			{Name: "soildepth50_75", Path: "gis_files/fsoildep50_75.asc"},
			{Name: "soildepth75_100", Path: "gis_files/fsoildep75_100.asc"},
			{Name: "soildepth100_150", Path: "gis_files/fsoildep100_150.asc"},
			{Name: "soildepth150_200", Path: "gis_files/fsoildep150_200.asc"},
		},
	}
}

// SetPath changes the file C reads. It has no effect once C has been called.
func SetPath(p string) {
	if p != "" {
		path = p
		pathSet = true
	}
}

func C() Config {
	loadOnce.Do(func() {
		c, err := Load(resolvePath(path, pathSet, os.Getenv(EnvPath)))
		if err != nil {
			panic(err)
		}
		cfg = c
	})
	return cfg
}

// resolvePath prefers an explicitly set path, then env, then the default.
func resolvePath(p string, set bool, env string) string {
	if !set && env != "" {
		return env
	}
	return p
}

// Load reads the TOML file at p over the defaults. A missing file yields the defaults.
func Load(p string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.fillClassifierDefaults()
			return c, c.Validate()
		}
		return c, err
	}
	// tables given in the file replace the default lists entirely
	var probe struct {
		Classifiers []Classifier `toml:"classifiers"`
		Rasters     []Raster     `toml:"rasters"`
	}
	if err := toml.Unmarshal(data, &probe); err != nil {
		return c, fmt.Errorf("parse %s: %w", p, err)
	}
	if probe.Classifiers != nil {
		c.Classifiers = nil
	}
	if probe.Rasters != nil {
		c.Rasters = nil
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", p, err)
	}
	c.fillClassifierDefaults()
	return c, c.Validate()
}

func (c *Config) fillClassifierDefaults() {
	for i := range c.Classifiers {
		cl := &c.Classifiers[i]
		if cl.FormField == "" {
			cl.FormField = "image"
		}
		if cl.ChannelOrder == "" {
			cl.ChannelOrder = "rgb"
		}
		if cl.Resample == "" {
			cl.Resample = "linear"
		}
		if cl.Workers <= 0 {
			cl.Workers = 1
		}
		if cl.Route == "" {
			cl.Route = "/" + cl.Name
		}
		if cl.InputDir == "" {
			cl.InputDir = cl.Name + "_input"
		}
		if cl.OutputDir == "" {
			cl.OutputDir = cl.Name + "_output"
		}
	}
}

func (c Config) Validate() error {
	names := make(map[string]bool)
	routes := make(map[string]bool)
	for _, cl := range c.Classifiers {
		if cl.Name == "" {
			return errors.New("classifier without name")
		}
		if names[cl.Name] {
			return fmt.Errorf("duplicate classifier %q", cl.Name)
		}
		names[cl.Name] = true
		if routes[cl.Route] {
			return fmt.Errorf("classifier %q: route %s already taken", cl.Name, cl.Route)
		}
		routes[cl.Route] = true
		switch cl.ChannelOrder {
		case "rgb", "bgr", "":
		default:
			return fmt.Errorf("classifier %q: unknown channel order %q", cl.Name, cl.ChannelOrder)
		}
		switch cl.Resample {
		case "nearest", "linear", "lanczos", "":
		default:
			return fmt.Errorf("classifier %q: unknown resample filter %q", cl.Name, cl.Resample)
		}
		if cl.InputSize < 0 {
			return fmt.Errorf("classifier %q: input size must not be negative", cl.Name)
		}
		if cl.ModelFile == "" {
			return fmt.Errorf("classifier %q: model_file is required", cl.Name)
		}
	}
	layers := make(map[string]bool)
	for _, r := range c.Rasters {
		if r.Name == "" || r.Path == "" {
			return errors.New("raster layers need a name and a path")
		}
		if layers[r.Name] {
			return fmt.Errorf("duplicate raster layer %q", r.Name)
		}
		layers[r.Name] = true
	}
	if c.MaxUploadMB < 0 {
		return errors.New("max_upload_mb must not be negative")
	}
	return nil
}

// Classifier looks up a classifier by name.
func (c Config) Classifier(name string) (Classifier, bool) {
	for _, cl := range c.Classifiers {
		if cl.Name == name {
			return cl, true
		}
	}
	return Classifier{}, false
}
