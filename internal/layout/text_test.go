package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageText(t *testing.T) {
	rows := []Row{
		{word("Room", 0, 0), word("2000.00", 100, 0)},
		{word("Nursing", 0, 30), word("500.00", 100, 30)},
	}

	got := PageText(rows, 2, DefaultSeparator)
	assert.Equal(t, "--- Page 2 ---\nRoom    2000.00\nNursing    500.00", got)
}

func TestPageText_EmptyPage(t *testing.T) {
	assert.Equal(t, "", PageText(nil, 1, DefaultSeparator))
	assert.Equal(t, "", PageText([]Row{{word("  ", 0, 0)}}, 1, DefaultSeparator))
}

func TestRender(t *testing.T) {
	text, rows, err := DefaultOptions().Render([]TextDetection{
		word("Total", 0, 300),
		word("Item", 0, 10),
		word("Amount", 200, 14),
	}, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "--- Page 1 ---\nItem    Amount\nTotal", text)
}
