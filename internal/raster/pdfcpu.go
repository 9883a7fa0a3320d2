package raster

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFCPU extracts the embedded page images of scanned PDFs. Pages without an
// embedded image are not rendered; use pdftoppm for text-native PDFs.
type PDFCPU struct {
	maxPages int
	logger   *slog.Logger
}

// NewPDFCPU creates the pure-Go rasterizer.
func NewPDFCPU(cfg Config) *PDFCPU {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	return &PDFCPU{maxPages: cfg.MaxPages, logger: l}
}

// Name returns the backend identifier.
func (p *PDFCPU) Name() string { return BackendPDFCPU }

// Rasterize extracts images and keeps the largest image of each page.
func (p *PDFCPU) Rasterize(ctx context.Context, pdf []byte) ([]image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, in, err := writeTempPDF(pdf)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	outDir := filepath.Join(dir, "images")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	var pages []string
	if p.maxPages > 0 {
		pages = []string{fmt.Sprintf("1-%d", p.maxPages)}
	}
	if err := api.ExtractImagesFile(in, outDir, pages, nil); err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	out, err := collectPageImages(outDir)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("rasterized pdf", "backend", BackendPDFCPU, "pages", len(out))
	return out, nil
}

// collectPageImages loads extracted files named page_<page>_<id>.<ext> and
// returns the largest image per page in page order.
func collectPageImages(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	var files []numberedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		page, id, ok := parseExtractedName(e.Name())
		if !ok {
			continue
		}
		files = append(files, numberedFile{path: filepath.Join(dir, e.Name()), page: page, index: id})
	}
	sortNumbered(files)

	var (
		pages    []image.Image
		lastPage = -1
		bestArea int
	)
	for _, f := range files {
		img, err := loadImage(f.path)
		if err != nil {
			continue
		}
		b := img.Bounds()
		area := b.Dx() * b.Dy()
		if f.page != lastPage {
			pages = append(pages, img)
			lastPage, bestArea = f.page, area
			continue
		}
		if area > bestArea {
			pages[len(pages)-1] = img
			bestArea = area
		}
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return pages, nil
}

func parseExtractedName(name string) (page int, id string, ok bool) {
	if !strings.HasPrefix(name, "page_") {
		return 0, "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(name, "page_"), "_", 2)
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	if len(parts) == 2 {
		id = strings.TrimSuffix(parts[1], filepath.Ext(parts[1]))
	}
	return n, id, true
}
