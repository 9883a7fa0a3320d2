package raster

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MeKo-Tech/billparse/internal/execrun"
)

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct {
	path     string
	dpi      int
	maxPages int
	runner   execrun.Runner
	logger   *slog.Logger
}

// NewPdftoppm creates the exec rasterizer.
func NewPdftoppm(cfg Config) *Pdftoppm {
	p := &Pdftoppm{
		path:     cfg.PdftoppmPath,
		dpi:      cfg.DPI,
		maxPages: cfg.MaxPages,
		runner:   cfg.Runner,
		logger:   cfg.Logger,
	}
	if p.path == "" {
		p.path = "pdftoppm"
	}
	if p.dpi <= 0 {
		p.dpi = 200
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.runner == nil {
		p.runner = execrun.Exec{Logger: p.logger}
	}
	return p
}

// Name returns the backend identifier.
func (p *Pdftoppm) Name() string { return BackendPdftoppm }

// Rasterize runs `pdftoppm -r <dpi> -png in.pdf <prefix>` and reads the pages
// back in numeric order.
func (p *Pdftoppm) Rasterize(ctx context.Context, pdf []byte) ([]image.Image, error) {
	dir, in, err := writeTempPDF(pdf)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	prefix := filepath.Join(dir, "out")
	args := []string{"-r", strconv.Itoa(p.dpi), "-png"}
	if p.maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(p.maxPages))
	}
	args = append(args, in, prefix)
	if _, _, err := p.runner.Run(ctx, p.path, args...); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("glob pages: %w", err)
	}
	files := make([]numberedFile, 0, len(matches))
	for _, m := range matches {
		n, ok := pageNumberFromSuffix(m)
		if !ok {
			continue
		}
		files = append(files, numberedFile{path: m, page: n})
	}
	if len(files) == 0 {
		return nil, ErrNoPages
	}
	sortNumbered(files)

	pages := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, err := loadImage(f.path)
		if err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}
	p.logger.Debug("rasterized pdf", "backend", BackendPdftoppm, "pages", len(pages), "dpi", p.dpi)
	return pages, nil
}
