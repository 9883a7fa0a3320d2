package billpipe

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/billparse/internal/bill"
)

// PageStatus is the outcome of one page.
type PageStatus string

const (
	PageOK               PageStatus = "ok"
	PageEmpty            PageStatus = "empty"
	PageSkippedLLM       PageStatus = "skipped_llm"
	PageSkippedMalformed PageStatus = "skipped_malformed"
)

// PageEvent reports a processed page.
type PageEvent struct {
	Page     int           `json:"page"`
	Total    int           `json:"total"`
	Status   PageStatus    `json:"status"`
	Items    int           `json:"items"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Observer receives progress while a document is processed. Calls arrive in
// page order from the processing goroutine.
type Observer interface {
	// OnStart is called once the page count is known.
	OnStart(pages int)
	// OnPage is called after each page.
	OnPage(ev PageEvent)
	// OnComplete is called with the final document.
	OnComplete(doc bill.Document, usage bill.TokenUsage)
}

// NoOpObserver ignores all events.
type NoOpObserver struct{}

func (NoOpObserver) OnStart(int)                               {}
func (NoOpObserver) OnPage(PageEvent)                          {}
func (NoOpObserver) OnComplete(bill.Document, bill.TokenUsage) {}

// ConsoleObserver prints one line per page.
type ConsoleObserver struct {
	mu     sync.Mutex
	writer io.Writer
	start  time.Time
}

// NewConsoleObserver writes to w, or stderr when w is nil.
func NewConsoleObserver(w io.Writer) *ConsoleObserver {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleObserver{writer: w}
}

func (c *ConsoleObserver) OnStart(pages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	_, _ = fmt.Fprintf(c.writer, "processing %d page(s)\n", pages)
}

func (c *ConsoleObserver) OnPage(ev PageEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := fmt.Sprintf("page %d/%d: %s", ev.Page, ev.Total, ev.Status)
	switch {
	case ev.Status == PageOK:
		line += fmt.Sprintf(" (%d items)", ev.Items)
	case ev.Error != "":
		line += " (" + ev.Error + ")"
	}
	_, _ = fmt.Fprintf(c.writer, "%s [%v]\n", line, ev.Duration.Round(time.Millisecond))
}

func (c *ConsoleObserver) OnComplete(doc bill.Document, usage bill.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "done: %d items, total %.2f, %d tokens in %v\n",
		doc.TotalItemCount, doc.FinalTotalAmount, usage.Total, time.Since(c.start).Round(time.Millisecond))
}
