// Package support holds the state and step definitions of the API feature suite.
package support

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strconv"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/billpipe"
	"github.com/MeKo-Tech/billparse/internal/extract"
	"github.com/MeKo-Tech/billparse/internal/fetch"
	"github.com/MeKo-Tech/billparse/internal/layout"
	"github.com/MeKo-Tech/billparse/internal/llm"
	"github.com/MeKo-Tech/billparse/internal/server"
	"github.com/MeKo-Tech/billparse/internal/testutil"
)

// pageSpec is what one page of the fake document contains.
type pageSpec struct {
	pageType bill.PageType
	items    []bill.Item
	llmErr   error
	garbage  string
	ocrErr   error
}

// TestContext holds the state of one scenario.
type TestContext struct {
	pages []*pageSpec

	Fetcher    *testutil.FakeFetcher
	Rasterizer *testutil.FakeRasterizer
	OCR        *testutil.FakeOCR
	Completer  *testutil.FakeCompleter

	Server *httptest.Server

	LastStatus  int
	LastBody    []byte
	LastHeaders map[string]string
	LastJSON    map[string]any
}

// NewTestContext creates an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{
		Fetcher: &testutil.FakeFetcher{
			Doc: &fetch.Document{Data: testutil.FakePDF, ContentType: "application/pdf"},
		},
		Rasterizer: &testutil.FakeRasterizer{},
		OCR:        &testutil.FakeOCR{},
		Completer: &testutil.FakeCompleter{
			Usage: llm.Usage{Total: 120, Input: 100, Output: 20},
		},
	}
}

func (tc *TestContext) page(n int) (*pageSpec, error) {
	if n < 1 || n > len(tc.pages) {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", n, len(tc.pages))
	}
	return tc.pages[n-1], nil
}

// start builds the real pipeline and server around the fakes.
func (tc *TestContext) start() error {
	if tc.Server != nil {
		return nil
	}
	logger := slog.New(slog.DiscardHandler)
	pl, err := billpipe.New(billpipe.Options{
		Fetcher:    tc.Fetcher,
		Rasterizer: tc.Rasterizer,
		OCR:        tc.OCR,
		Extractor:  extract.New(tc.Completer, extract.WithLogger(logger)),
		Layout:     layout.DefaultOptions(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	srv, err := server.NewServer(server.Config{TimeoutSec: 30, MetricsEnabled: true, WebSocketEnabled: true, Logger: logger}, pl)
	if err != nil {
		return err
	}
	tc.Server = httptest.NewServer(srv.Handler())
	return nil
}

// sync translates the page specs into fake OCR output and model replies.
func (tc *TestContext) sync() {
	tc.Rasterizer.Pages = len(tc.pages)
	tc.OCR.Reset()
	tc.OCR.Pages = make([][]layout.TextDetection, len(tc.pages))
	tc.OCR.Errs = map[int]error{}
	tc.Completer.Replies = map[int]string{}
	tc.Completer.Errs = map[int]error{}

	for i, p := range tc.pages {
		n := i + 1
		lines := make([][]layout.TextDetection, 0, len(p.items))
		for j, it := range p.items {
			lines = append(lines, testutil.Line(float64(40+j*30), it.Name,
				strconv.FormatFloat(it.Rate, 'f', 2, 64), strconv.FormatFloat(it.Amount, 'f', 2, 64)))
		}
		tc.OCR.Pages[i] = testutil.Page(lines...)
		if p.ocrErr != nil {
			tc.OCR.Errs[n] = p.ocrErr
		}
		switch {
		case p.llmErr != nil:
			tc.Completer.Errs[n] = p.llmErr
		case p.garbage != "":
			tc.Completer.Replies[n] = p.garbage
		default:
			tc.Completer.Replies[n] = testutil.Reply(p.pageType, p.items...)
		}
	}
}

// Cleanup stops the test server.
func (tc *TestContext) Cleanup() {
	if tc.Server != nil {
		tc.Server.Close()
		tc.Server = nil
	}
}

var errModelUnavailable = errors.New("model unavailable: 503 service unavailable")
