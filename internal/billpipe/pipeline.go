// Package billpipe runs the bill extraction pipeline for one document:
// rasterize, detect text, rebuild rows, prompt the model per page, then
// aggregate and total the line items.
package billpipe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"time"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/execrun"
	"github.com/MeKo-Tech/billparse/internal/extract"
	"github.com/MeKo-Tech/billparse/internal/fetch"
	"github.com/MeKo-Tech/billparse/internal/layout"
	"github.com/MeKo-Tech/billparse/internal/ocr"
	"github.com/MeKo-Tech/billparse/internal/raster"
)

const maxLoggedRaw = 2 << 10

// PageExtractor turns one page of text into raw line items.
type PageExtractor interface {
	Extract(ctx context.Context, pageText string) (*extract.Result, error)
}

// Options wires the pipeline collaborators.
type Options struct {
	Fetcher        fetch.Fetcher
	Rasterizer     raster.Rasterizer
	OCR            ocr.Engine
	Extractor      PageExtractor
	Layout         layout.Options
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Pipeline processes documents. It holds no per-request state and is safe
// for concurrent use when its collaborators are.
type Pipeline struct {
	fetcher    fetch.Fetcher
	rasterizer raster.Rasterizer
	ocr        ocr.Engine
	extractor  PageExtractor
	layout     layout.Options
	timeout    time.Duration
	logger     *slog.Logger
}

// New validates opts and creates a Pipeline. Fetcher may be nil when only
// ProcessDocument is used.
func New(opts Options) (*Pipeline, error) {
	if opts.Rasterizer == nil {
		return nil, errors.New("billpipe: rasterizer is required")
	}
	if opts.OCR == nil {
		return nil, errors.New("billpipe: ocr engine is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("billpipe: extractor is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		fetcher:    opts.Fetcher,
		rasterizer: opts.Rasterizer,
		ocr:        opts.OCR,
		extractor:  opts.Extractor,
		layout:     opts.Layout,
		timeout:    opts.RequestTimeout,
		logger:     opts.Logger,
	}, nil
}

// PageFailure describes a skipped page.
type PageFailure struct {
	Page    int    `json:"page"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Result is the outcome of one document.
type Result struct {
	Document bill.Document
	Usage    bill.TokenUsage
	Pages    int
	Skipped  []PageFailure
	// Partial is set when the request deadline stopped processing early.
	Partial bool
}

func (p *Pipeline) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

// ProcessURL downloads and processes a document.
func (p *Pipeline) ProcessURL(ctx context.Context, url string, obs Observer) (*Result, error) {
	if p.fetcher == nil {
		return nil, newError(KindDownload, 0, "no fetcher configured", nil)
	}
	ctx, cancel := p.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	doc, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		documentsTotal.WithLabelValues(string(KindDownload)).Inc()
		return nil, newError(KindDownload, 0, "failed to download document", err)
	}
	p.logger.Info("document fetched", "bytes", len(doc.Data), "content_type", doc.ContentType,
		"duration_ms", time.Since(start).Milliseconds())
	return p.process(ctx, doc, obs)
}

// ProcessDocument processes already fetched bytes.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc *fetch.Document, obs Observer) (*Result, error) {
	ctx, cancel := p.withDeadline(ctx)
	defer cancel()
	return p.process(ctx, doc, obs)
}

func (p *Pipeline) process(ctx context.Context, doc *fetch.Document, obs Observer) (*Result, error) {
	if obs == nil {
		obs = NoOpObserver{}
	}
	start := time.Now()

	pages, err := raster.Pages(ctx, p.rasterizer, doc.Data, doc.ContentType)
	if err != nil {
		documentsTotal.WithLabelValues(string(KindRasterization)).Inc()
		return nil, newError(KindRasterization, 0, "failed to convert document to images", err)
	}

	res, err := p.ProcessPages(ctx, pages, obs)
	if err != nil {
		documentsTotal.WithLabelValues(string(KindOf(err))).Inc()
		return nil, err
	}

	outcome := "success"
	if res.Partial {
		outcome = "partial"
	}
	documentsTotal.WithLabelValues(outcome).Inc()
	extractionDuration.Observe(time.Since(start).Seconds())
	billItemsExtracted.Observe(float64(res.Document.TotalItemCount))
	return res, nil
}

// ProcessPages runs OCR, row reconstruction and extraction sequentially over
// page images. Page-level extraction failures skip the page; an OCR failure
// aborts. When ctx expires, the pages completed so far are returned.
func (p *Pipeline) ProcessPages(ctx context.Context, pages []image.Image, obs Observer) (*Result, error) {
	if obs == nil {
		obs = NoOpObserver{}
	}
	res := &Result{Pages: len(pages)}
	obs.OnStart(len(pages))

	out := make([]bill.Page, 0, len(pages))
	for i, img := range pages {
		pageNo := i + 1
		if ctx.Err() != nil {
			res.Partial = true
			break
		}
		pageStart := time.Now()
		ev := PageEvent{Page: pageNo, Total: len(pages)}
		emit := func(status PageStatus, items int, err error) {
			ev.Status, ev.Items, ev.Duration = status, items, time.Since(pageStart)
			if err != nil {
				ev.Error = err.Error()
			}
			pagesTotal.WithLabelValues(string(status)).Inc()
			obs.OnPage(ev)
		}

		dets, err := p.ocr.Detect(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				res.Partial = true
				break
			}
			return nil, newError(KindOCR, pageNo, "text detection failed", err)
		}

		text, rows, err := p.layout.Render(dets, pageNo)
		if err != nil {
			return nil, newError(KindOCR, pageNo, "malformed text detections", err)
		}
		if text == "" {
			p.logger.Info("page has no text, skipping", "page", pageNo)
			emit(PageEmpty, 0, nil)
			continue
		}
		p.logger.Debug("page text built", "page", pageNo, "detections", len(dets), "rows", len(rows))

		ext, err := p.extractor.Extract(ctx, text)
		if ext != nil {
			res.Usage.Add(ext.Usage)
			llmTokensTotal.WithLabelValues("input").Add(float64(ext.Usage.Input))
			llmTokensTotal.WithLabelValues("output").Add(float64(ext.Usage.Output))
		}
		if err != nil {
			perr := classifyPageError(pageNo, err)
			res.Skipped = append(res.Skipped, PageFailure{Page: pageNo, Kind: perr.Kind, Message: perr.Error()})
			status := PageSkippedLLM
			attrs := []any{"page", pageNo, "kind", perr.Kind, "error", err}
			var mErr *extract.MalformedOutputError
			if errors.As(err, &mErr) {
				status = PageSkippedMalformed
				attrs = append(attrs, "raw", execrun.Truncate(mErr.Raw, maxLoggedRaw))
			}
			p.logger.Warn("skipping page", attrs...)
			emit(status, 0, perr)
			if ctx.Err() != nil {
				res.Partial = true
				break
			}
			continue
		}

		page := bill.Page{
			PageNo:   strconv.Itoa(pageNo),
			PageType: ext.Document.PageType(),
			Items:    bill.Aggregate(ext.Document.Items()),
		}
		out = append(out, page)
		emit(PageOK, len(page.Items), nil)
	}

	res.Document = bill.Finalize(out)
	if res.Partial {
		p.logger.Warn("request deadline reached, returning partial document",
			"completed_pages", len(out), "total_pages", len(pages))
	}
	p.logger.Info("document processed",
		"pages", len(pages),
		"extracted_pages", len(res.Document.Pages),
		"skipped_pages", len(res.Skipped),
		"items", res.Document.TotalItemCount,
		"total_tokens", res.Usage.Total)
	obs.OnComplete(res.Document, res.Usage)
	return res, nil
}

// Summary renders a one-line description of a result.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d/%d pages, %d items, total %.2f",
		len(r.Document.Pages), r.Pages, r.Document.TotalItemCount, r.Document.FinalTotalAmount)
}
