package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/extract"
)

func TestRenderPage(t *testing.T) {
	img := RenderPage([]string{"Room Charges   2000.00", "Nursing   500.00"}, 2)
	assert.Greater(t, img.Bounds().Dx(), 100)
	assert.Equal(t, (22*2+20)*2, img.Bounds().Dy())
}

func TestReplyDecodes(t *testing.T) {
	raw := Reply(bill.PageTypePharmacy, bill.Item{Name: "DRUG A", Amount: 4500, Rate: 1500, Quantity: 3})
	doc, _, err := extract.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, bill.PageTypePharmacy, doc.PageType())
	assert.Len(t, doc.Items(), 1)
}

func TestFakeCompleterRoutesByPage(t *testing.T) {
	c := &FakeCompleter{Replies: map[int]string{2: "two"}}
	out, err := c.Complete(context.Background(), "sys", "--- Page 2 ---\nRoom")
	require.NoError(t, err)
	assert.Equal(t, "two", out.Text)

	_, err = c.Complete(context.Background(), "sys", "--- Page 3 ---\nRoom")
	assert.Error(t, err)
	assert.Equal(t, []int{2, 3}, c.Seen)
}
