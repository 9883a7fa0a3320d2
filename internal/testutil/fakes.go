package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strconv"
	"sync"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/fetch"
	"github.com/MeKo-Tech/billparse/internal/layout"
	"github.com/MeKo-Tech/billparse/internal/llm"
)

// Line lays out tokens left to right on one row at height y.
func Line(y float64, tokens ...string) []layout.TextDetection {
	out := make([]layout.TextDetection, 0, len(tokens))
	for i, tok := range tokens {
		out = append(out, layout.NewRectDetection(tok, float64(20+i*200), y, float64(8*len(tok)), 14, 0.95))
	}
	return out
}

// Page concatenates lines into one page of detections.
func Page(lines ...[]layout.TextDetection) []layout.TextDetection {
	var out []layout.TextDetection
	for _, l := range lines {
		out = append(out, l...)
	}
	return out
}

// FakeFetcher returns a fixed document or error.
type FakeFetcher struct {
	Doc  *fetch.Document
	Err  error
	mu   sync.Mutex
	URLs []string
}

// Fetch implements fetch.Fetcher.
func (f *FakeFetcher) Fetch(_ context.Context, url string) (*fetch.Document, error) {
	f.mu.Lock()
	f.URLs = append(f.URLs, url)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Doc, nil
}

// FakeRasterizer returns Pages blank images.
type FakeRasterizer struct {
	Pages int
	Err   error
}

// Name implements raster.Rasterizer.
func (r *FakeRasterizer) Name() string { return "fake" }

// Rasterize implements raster.Rasterizer.
func (r *FakeRasterizer) Rasterize(ctx context.Context, _ []byte) ([]image.Image, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]image.Image, r.Pages)
	for i := range out {
		out[i] = BlankPage(10+i, 10)
	}
	return out, ctx.Err()
}

// FakeOCR returns detections in call order; Errs is keyed by 1-based call.
type FakeOCR struct {
	Pages [][]layout.TextDetection
	Errs  map[int]error
	mu    sync.Mutex
	calls int
}

// Name implements ocr.Engine.
func (o *FakeOCR) Name() string { return "fake" }

// Detect implements ocr.Engine.
func (o *FakeOCR) Detect(_ context.Context, _ image.Image) ([]layout.TextDetection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if err := o.Errs[o.calls]; err != nil {
		return nil, err
	}
	if o.calls > len(o.Pages) {
		return nil, nil
	}
	return o.Pages[o.calls-1], nil
}

// Reset rewinds the call counter.
func (o *FakeOCR) Reset() {
	o.mu.Lock()
	o.calls = 0
	o.mu.Unlock()
}

var rePageHeader = regexp.MustCompile(`--- Page (\d+) ---`)

// FakeCompleter answers per page number, read from the page header of the
// user message.
type FakeCompleter struct {
	Replies map[int]string
	Errs    map[int]error
	Usage   llm.Usage
	// Hook runs before each reply.
	Hook  func(page int)
	mu    sync.Mutex
	Seen  []int
	Texts []string
}

// Name implements llm.Completer.
func (c *FakeCompleter) Name() string { return "fake" }

// Complete implements llm.Completer.
func (c *FakeCompleter) Complete(ctx context.Context, _, user string) (*llm.Completion, error) {
	page := 0
	if m := rePageHeader.FindStringSubmatch(user); m != nil {
		page, _ = strconv.Atoi(m[1])
	}
	c.mu.Lock()
	c.Seen = append(c.Seen, page)
	c.Texts = append(c.Texts, user)
	c.mu.Unlock()
	if c.Hook != nil {
		c.Hook(page)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Errs[page]; err != nil {
		return &llm.Completion{Usage: c.Usage}, err
	}
	reply, ok := c.Replies[page]
	if !ok {
		return nil, fmt.Errorf("no reply for page %d", page)
	}
	return &llm.Completion{Text: reply, Usage: c.Usage}, nil
}

// Reply renders a model reply for one page.
func Reply(pageType bill.PageType, items ...bill.Item) string {
	if items == nil {
		items = []bill.Item{}
	}
	b, _ := json.Marshal(map[string]any{
		"pagewise_line_items": []any{map[string]any{
			"page_no":    "1",
			"page_type":  pageType,
			"bill_items": items,
		}},
		"total_item_count": len(items),
	})
	return "```json\n" + string(b) + "\n```"
}
