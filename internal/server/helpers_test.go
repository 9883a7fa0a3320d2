package server

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/billpipe"
)

// mockProcessor replays canned progress events and a fixed outcome.
type mockProcessor struct {
	mu     sync.Mutex
	result *billpipe.Result
	err    error
	events []billpipe.PageEvent
	urls   []string
	// deadline records whether the context had a deadline.
	deadline bool
}

func (m *mockProcessor) ProcessURL(ctx context.Context, url string, obs billpipe.Observer) (*billpipe.Result, error) {
	m.mu.Lock()
	m.urls = append(m.urls, url)
	_, m.deadline = ctx.Deadline()
	m.mu.Unlock()

	if obs != nil {
		obs.OnStart(len(m.events))
		for _, ev := range m.events {
			obs.OnPage(ev)
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if obs != nil {
		obs.OnComplete(m.result.Document, m.result.Usage)
	}
	return m.result, nil
}

func sampleResult() *billpipe.Result {
	return &billpipe.Result{
		Document: bill.Document{
			Pages: []bill.Page{{
				PageNo:   "1",
				PageType: bill.PageTypeBillDetail,
				Items: []bill.Item{
					{Name: "DRUG A", Amount: 4500, Rate: 1500, Quantity: 3},
					{Name: "WARD CHARGES", Amount: 2500, Rate: 500, Quantity: 5},
				},
				Subtotal: 7000,
			}},
			TotalItemCount:   2,
			FinalTotalAmount: 7000,
		},
		Usage: bill.TokenUsage{Total: 150, Input: 100, Output: 50},
		Pages: 1,
	}
}

func sampleEvents() []billpipe.PageEvent {
	return []billpipe.PageEvent{
		{Page: 1, Total: 2, Status: billpipe.PageOK, Items: 2},
		{Page: 2, Total: 2, Status: billpipe.PageSkippedLLM, Error: "rate limited"},
	}
}

func newTestServer(t *testing.T, p Processor) *Server {
	t.Helper()
	s, err := NewServer(Config{TimeoutSec: 30, MetricsEnabled: true, WebSocketEnabled: true}, p)
	require.NoError(t, err)
	return s
}
