package billpipe

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/billparse/internal/bill"
)

func TestConsoleObserver(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleObserver(&buf)

	c.OnStart(2)
	c.OnPage(PageEvent{Page: 1, Total: 2, Status: PageOK, Items: 4})
	c.OnPage(PageEvent{Page: 2, Total: 2, Status: PageSkippedLLM, Error: "page 2: extraction failed"})
	c.OnComplete(bill.Document{TotalItemCount: 4, FinalTotalAmount: 1250.5}, bill.TokenUsage{Total: 99})

	out := buf.String()
	assert.Contains(t, out, "processing 2 page(s)")
	assert.Contains(t, out, "page 1/2: ok (4 items)")
	assert.Contains(t, out, "page 2/2: skipped_llm (page 2: extraction failed)")
	assert.Contains(t, out, "done: 4 items, total 1250.50, 99 tokens")
}
