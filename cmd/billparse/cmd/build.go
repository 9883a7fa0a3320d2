package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/billparse/internal/billpipe"
	"github.com/MeKo-Tech/billparse/internal/config"
	"github.com/MeKo-Tech/billparse/internal/extract"
	"github.com/MeKo-Tech/billparse/internal/fetch"
	"github.com/MeKo-Tech/billparse/internal/llm"
	"github.com/MeKo-Tech/billparse/internal/ocr"
	"github.com/MeKo-Tech/billparse/internal/raster"
)

// buildPipeline wires the configured backends into a pipeline. The returned
// close function releases backend resources.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*billpipe.Pipeline, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	rasterizer, err := raster.New(cfg.ToRasterConfig(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("rasterizer: %w", err)
	}

	engine, err := ocr.New(cfg.ToOCRConfig(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("ocr engine: %w", err)
	}

	completer, err := llm.New(ctx, cfg.ToLLMConfig(logger))
	if err != nil {
		_ = closeIfCloser(engine)
		return nil, nil, fmt.Errorf("llm client: %w", err)
	}

	extractor := extract.New(completer,
		extract.WithLogger(logger),
		extract.WithTimeout(cfg.ToLLMConfig(logger).Timeout))

	pl, err := billpipe.New(billpipe.Options{
		Fetcher:        fetch.NewHTTP(cfg.ToFetchConfig(logger)),
		Rasterizer:     rasterizer,
		OCR:            engine,
		Extractor:      extractor,
		Layout:         cfg.ToLayoutOptions(),
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
	})
	if err != nil {
		_ = closeIfCloser(engine)
		_ = closeIfCloser(completer)
		return nil, nil, err
	}

	logger.Info("pipeline ready",
		"raster", rasterizer.Name(),
		"ocr", engine.Name(),
		"llm", completer.Name(),
		"model", cfg.LLM.Model)

	closeFn := func() error {
		return errors.Join(closeIfCloser(engine), closeIfCloser(completer))
	}
	return pl, closeFn, nil
}

func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
