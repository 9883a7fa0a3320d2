// Package ocr provides text detection backends. Each backend returns word
// level detections with a box, text and confidence for one page image.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/billparse/internal/execrun"
	"github.com/MeKo-Tech/billparse/internal/layout"
)

// Backend names.
const (
	BackendTesseract = "tesseract"
	BackendGosseract = "gosseract"
	BackendPogo      = "pogo"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendTesseract, BackendGosseract, BackendPogo}

// ErrNoBackend is returned when a backend was not compiled in.
var ErrNoBackend = errors.New("ocr: backend not linked; build with -tags=gosseract")

// Engine detects text in a page image. A blank page yields an empty slice and
// no error.
type Engine interface {
	Detect(ctx context.Context, img image.Image) ([]layout.TextDetection, error)
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	TesseractPath string
	Language      string
	PSM           int
	Timeout       time.Duration
	PogoURL       string
	MaxImageSide  int
	MinConfidence float64
	Runner        execrun.Runner
	Logger        *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.TesseractPath == "" {
		c.TesseractPath = "tesseract"
	}
	if c.Language == "" {
		c.Language = "eng"
	}
	if c.PSM == 0 {
		c.PSM = 6
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Runner == nil {
		c.Runner = execrun.Exec{Logger: c.Logger}
	}
	return c
}

// New builds the configured backend, wrapped with resizing and filtering.
func New(cfg Config) (Engine, error) {
	cfg = cfg.withDefaults()
	var inner Engine
	switch strings.ToLower(cfg.Backend) {
	case "", BackendTesseract:
		inner = NewTesseract(cfg)
	case BackendGosseract:
		g, err := NewGosseract(cfg)
		if err != nil {
			return nil, err
		}
		inner = g
	case BackendPogo:
		inner = NewPogo(cfg)
	default:
		return nil, fmt.Errorf("unknown ocr backend: %s", cfg.Backend)
	}
	return &engine{inner: inner, maxSide: cfg.MaxImageSide, minConf: cfg.MinConfidence, timeout: cfg.Timeout}, nil
}

type engine struct {
	inner   Engine
	maxSide int
	minConf float64
	timeout time.Duration
}

func (e *engine) Name() string { return e.inner.Name() }

// Close releases backends that hold native resources.
func (e *engine) Close() error {
	if c, ok := e.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *engine) Detect(ctx context.Context, img image.Image) ([]layout.TextDetection, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	dets, err := e.inner.Detect(ctx, Prepare(img, e.maxSide))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.inner.Name(), err)
	}
	return Filter(dets, e.minConf), nil
}

// Prepare downsizes img so its longest side is at most maxSide. Zero disables.
func Prepare(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxSide && b.Dy() <= maxSide {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// Filter drops blank-text detections and those below minConf.
func Filter(dets []layout.TextDetection, minConf float64) []layout.TextDetection {
	out := make([]layout.TextDetection, 0, len(dets))
	for _, d := range dets {
		if strings.TrimSpace(d.Text) == "" || d.Confidence < minConf {
			continue
		}
		out = append(out, d)
	}
	return out
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
