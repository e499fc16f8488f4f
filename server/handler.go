package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krau/agrotagger/raster"
	"github.com/krau/agrotagger/service"
	"github.com/krau/agrotagger/storage"
)

var (
	errUnauthorized = errors.New("unauthorized")
)

// Predictor classifies a decoded image.
type Predictor interface {
	Name() string
	Predict(ctx context.Context, img image.Image) (*service.Prediction, error)
}

// Endpoint binds a classifier to its route and upload directories.
type Endpoint struct {
	Route     string
	FormField string
	Predictor Predictor
	Store     *storage.Store
}

type PredictResponse struct {
	Label           string  `json:"label"`
	Description     string  `json:"description,omitempty"`
	Score           float32 `json:"score"`
	OutputImagePath string  `json:"output_image_path"`
}

type SampleResponse struct {
	Lat    float64             `json:"lat"`
	Lon    float64             `json:"lon"`
	CRS    string              `json:"crs"`
	Values map[string]*float64 `json:"values"`
	Errors map[string]string   `json:"errors,omitempty"`
}

func authenticate(c *gin.Context, expectedToken string) error {
	if expectedToken == "" {
		return nil
	}
	auth := c.GetHeader("Authorization")
	providedToken := ""
	if len(auth) > 7 && auth[:7] == "Bearer " {
		providedToken = auth[7:]
	}
	if subtle.ConstantTimeCompare([]byte(providedToken), []byte(expectedToken)) != 1 {
		return errUnauthorized
	}
	return nil
}

func AuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authenticate(c, token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func PredictHandler(ep Endpoint) gin.HandlerFunc {
	field := ep.FormField
	if field == "" {
		field = "image"
	}
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile(field)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
				return
			}
			// a part without a file name is parsed as a plain form value
			if _, ok := c.GetPostForm(field); ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
			return
		}
		if fileHeader.Filename == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to open uploaded file"})
			return
		}
		defer file.Close()

		imgPath, err := ep.Store.Save(file, fileHeader.Filename)
		if err != nil {
			slog.Error("Failed to store upload", slog.String("classifier", ep.Predictor.Name()), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
			return
		}

		img, err := decodeFile(imgPath)
		if err != nil {
			discard(ep.Store, imgPath)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to decode image"})
			return
		}

		start := time.Now()
		pred, err := ep.Predictor.Predict(c.Request.Context(), img)
		observeInference(ep.Predictor.Name(), time.Since(start), err)
		if err != nil {
			discard(ep.Store, imgPath)
			slog.Error("Prediction failed", slog.String("classifier", ep.Predictor.Name()), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction failed"})
			return
		}
		predictionsTotal.WithLabelValues(ep.Predictor.Name(), pred.Label).Inc()

		outPath, err := ep.Store.Promote(imgPath)
		if err != nil {
			discard(ep.Store, imgPath)
			slog.Error("Failed to move upload", slog.String("path", imgPath), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
			return
		}

		slog.Debug("Classified upload",
			slog.String("classifier", ep.Predictor.Name()),
			slog.String("label", pred.Label),
			slog.String("path", outPath))
		c.JSON(http.StatusOK, PredictResponse{
			Label:           pred.Label,
			Description:     pred.Description,
			Score:           pred.Score,
			OutputImagePath: outPath,
		})
	}
}

func decodeFile(p string) (image.Image, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func discard(s *storage.Store, p string) {
	if err := s.Discard(p); err != nil {
		slog.Warn("Failed to remove upload", slog.String("path", p), slog.String("error", err.Error()))
	}
}

func SampleHandler(layers *raster.Set) gin.HandlerFunc {
	return func(c *gin.Context) {
		if layers == nil || len(layers.Names()) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "No raster layers loaded"})
			return
		}
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
		if errLat != nil || errLon != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon must be numbers"})
			return
		}
		crs, err := raster.ParseCRS(c.Query("crs"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var names []string
		if q := c.Query("layers"); q != "" {
			for n := range strings.SplitSeq(q, ",") {
				if n = strings.TrimSpace(n); n != "" {
					names = append(names, n)
				}
			}
		}

		results, err := layers.Sample(lat, lon, crs, names...)
		switch {
		case errors.Is(err, raster.ErrUnknownLayer):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case errors.Is(err, raster.ErrInvalidCoordinate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := SampleResponse{
			Lat:    lat,
			Lon:    lon,
			CRS:    crs.String(),
			Values: make(map[string]*float64, len(results)),
		}
		for _, r := range results {
			rasterSamplesTotal.WithLabelValues(r.Name, sampleOutcome(r.Err)).Inc()
			switch {
			case r.Err == nil:
				v := r.Value
				resp.Values[r.Name] = &v
			case errors.Is(r.Err, raster.ErrNoData):
				resp.Values[r.Name] = nil
			default:
				if resp.Errors == nil {
					resp.Errors = make(map[string]string)
				}
				resp.Errors[r.Name] = r.Err.Error()
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func sampleOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, raster.ErrNoData):
		return "nodata"
	case errors.Is(err, raster.ErrOutOfBounds):
		return "out_of_bounds"
	default:
		return "error"
	}
}

func HealthHandler(names []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "classifiers": names})
	}
}
