// Package raster converts a fetched document into page images: PDFs through a
// rasterizer backend, everything else decoded as a single image.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/MeKo-Tech/billparse/internal/execrun"
)

// Backend names.
const (
	BackendPdftoppm = "pdftoppm"
	BackendPDFCPU   = "pdfcpu"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendPdftoppm, BackendPDFCPU}

// ErrNoPages is returned when a PDF produced no page images.
var ErrNoPages = errors.New("no page images produced")

var pdfMagic = []byte("%PDF")

// Rasterizer renders PDF bytes into page images in physical page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]image.Image, error)
	Name() string
}

// Config selects and configures a rasterizer.
type Config struct {
	Backend      string
	DPI          int
	MaxPages     int
	PdftoppmPath string
	Runner       execrun.Runner
	Logger       *slog.Logger
}

// New builds the configured rasterizer.
func New(cfg Config) (Rasterizer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	switch strings.ToLower(cfg.Backend) {
	case "", BackendPdftoppm:
		return NewPdftoppm(cfg), nil
	case BackendPDFCPU:
		return NewPDFCPU(cfg), nil
	default:
		return nil, fmt.Errorf("unknown raster backend: %s", cfg.Backend)
	}
}

// IsPDF reports whether a document is a PDF, by magic bytes or content type.
func IsPDF(data []byte, contentType string) bool {
	if bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "pdf")
}

// DecodeImage decodes a raster image applying EXIF orientation.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Pages returns the page images of a document: rasterized when it is a PDF,
// otherwise the document decoded as one image.
func Pages(ctx context.Context, r Rasterizer, data []byte, contentType string) ([]image.Image, error) {
	if IsPDF(data, contentType) {
		return r.Rasterize(ctx, data)
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

type numberedFile struct {
	path  string
	page  int
	index string
}

func sortNumbered(files []numberedFile) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].page != files[j].page {
			return files[i].page < files[j].page
		}
		return files[i].index < files[j].index
	})
}

var reTrailingNumber = regexp.MustCompile(`-(\d+)\.[A-Za-z]+$`)

// pageNumberFromSuffix reads N from names like "prefix-N.png".
func pageNumberFromSuffix(name string) (int, bool) {
	m := reTrailingNumber.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func loadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func writeTempPDF(data []byte) (dir string, path string, err error) {
	dir, err = os.MkdirTemp("", "billparse-raster-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp dir: %w", err)
	}
	path = filepath.Join(dir, "page.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", fmt.Errorf("write temp pdf: %w", err)
	}
	return dir, path, nil
}
