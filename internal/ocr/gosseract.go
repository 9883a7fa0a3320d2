//go:build gosseract

package ocr

import (
	"context"
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/billparse/internal/layout"
)

// Gosseract uses the libtesseract binding. The client is not safe for
// concurrent use, so calls are serialized.
type Gosseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewGosseract creates the cgo backend.
func NewGosseract(cfg Config) (*Gosseract, error) {
	cfg = cfg.withDefaults()
	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Language); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Gosseract{client: client}, nil
}

// Name returns the backend identifier.
func (g *Gosseract) Name() string { return BackendGosseract }

// Close releases the tesseract handle.
func (g *Gosseract) Close() error { return g.client.Close() }

// Detect returns word bounding boxes.
func (g *Gosseract) Detect(ctx context.Context, img image.Image) ([]layout.TextDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.client.SetImageFromBytes(data); err != nil {
		return nil, err
	}
	boxes, err := g.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}

	dets := make([]layout.TextDetection, 0, len(boxes))
	for _, b := range boxes {
		r := b.Box
		dets = append(dets, layout.NewRectDetection(b.Word,
			float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), b.Confidence/100))
	}
	return dets, nil
}
