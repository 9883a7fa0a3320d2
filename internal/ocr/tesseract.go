package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/billparse/internal/execrun"
	"github.com/MeKo-Tech/billparse/internal/layout"
)

// Tesseract runs the tesseract CLI in TSV mode.
type Tesseract struct {
	path   string
	lang   string
	psm    int
	runner execrun.Runner
	logger *slog.Logger
}

// NewTesseract creates the exec backend.
func NewTesseract(cfg Config) *Tesseract {
	cfg = cfg.withDefaults()
	return &Tesseract{
		path:   cfg.TesseractPath,
		lang:   cfg.Language,
		psm:    cfg.PSM,
		runner: cfg.Runner,
		logger: cfg.Logger,
	}
}

// Name returns the backend identifier.
func (t *Tesseract) Name() string { return BackendTesseract }

// Detect writes the image to a temp file and parses word boxes from TSV.
func (t *Tesseract) Detect(ctx context.Context, img image.Image) ([]layout.TextDetection, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp("", "billparse-page-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang> --psm <n> tsv
	args := []string{f.Name(), "stdout", "-l", t.lang, "--psm", strconv.Itoa(t.psm), "tsv"}
	out, _, err := t.runner.Run(ctx, t.path, args...)
	if err != nil {
		return nil, err
	}
	dets, err := ParseTSV(out)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("tesseract words", "count", len(dets))
	return dets, nil
}

// ParseTSV converts tesseract TSV output into word detections. Only level 5
// (word) rows with text are kept; confidence is scaled to [0,1].
func ParseTSV(out []byte) ([]layout.TextDetection, error) {
	var dets []layout.TextDetection
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	header := true
	for sc.Scan() {
		ln := strings.TrimRight(sc.Text(), "\r")
		if header {
			header = false
			if strings.HasPrefix(ln, "level") {
				continue
			}
		}
		if ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		if text == "" {
			continue
		}
		var nums [4]float64
		for i := range nums {
			v, err := strconv.ParseFloat(cols[6+i], 64)
			if err != nil {
				return nil, fmt.Errorf("tsv: bad geometry %q: %w", cols[6+i], err)
			}
			nums[i] = v
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			conf = 0
		}
		dets = append(dets, layout.NewRectDetection(text, nums[0], nums[1], nums[2], nums[3], conf/100))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tsv: %w", err)
	}
	return dets, nil
}
