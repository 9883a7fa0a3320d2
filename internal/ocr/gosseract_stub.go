//go:build !gosseract

package ocr

import (
	"context"
	"image"

	"github.com/MeKo-Tech/billparse/internal/layout"
)

// Gosseract is unavailable without the gosseract build tag.
type Gosseract struct{}

// NewGosseract reports ErrNoBackend.
func NewGosseract(Config) (*Gosseract, error) { return nil, ErrNoBackend }

// Name returns the backend identifier.
func (g *Gosseract) Name() string { return BackendGosseract }

// Close is a no-op.
func (g *Gosseract) Close() error { return nil }

// Detect reports ErrNoBackend.
func (g *Gosseract) Detect(context.Context, image.Image) ([]layout.TextDetection, error) {
	return nil, ErrNoBackend
}
