package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(text string, x, y float64) TextDetection {
	return NewRectDetection(text, x, y, 40, 10, 0.9)
}

func rowTexts(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Texts()
	}
	return out
}

func TestBuildRows_GroupsAndOrders(t *testing.T) {
	dets := []TextDetection{
		word("B", 50, 105),
		word("A", 10, 100),
		word("C", 10, 200),
	}

	rows, err := BuildRows(dets, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B"}, {"C"}}, rowTexts(rows))
}

func TestBuildRows_Empty(t *testing.T) {
	rows, err := BuildRows(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBuildRows_ToleranceBoundary(t *testing.T) {
	tests := []struct {
		name string
		dy   float64
		want int
	}{
		{"equal to tolerance joins", 12, 1},
		{"just over tolerance splits", 12.01, 2},
		{"zero distance joins", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := BuildRows([]TextDetection{word("a", 0, 100), word("b", 50, 100+tt.dy)}, DefaultOptions())
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestBuildRows_AnchorModes(t *testing.T) {
	// A slowly descending line: each step is within tolerance of the previous
	// token but the last token is far from the first.
	dets := []TextDetection{
		word("a", 0, 100),
		word("b", 50, 110),
		word("c", 100, 120),
	}

	rows, err := BuildRows(dets, Options{RowTolerance: 12, Anchor: AnchorLast})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, rowTexts(rows))

	rows, err = BuildRows(dets, Options{RowTolerance: 12, Anchor: AnchorStart})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, rowTexts(rows))
}

func TestBuildRows_DoesNotMutateInput(t *testing.T) {
	dets := []TextDetection{word("second", 0, 50), word("first", 0, 10)}
	_, err := BuildRows(dets, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "second", dets[0].Text)
}

func TestBuildRows_MalformedBox(t *testing.T) {
	tests := []struct {
		name string
		det  TextDetection
	}{
		{"too few points", TextDetection{Box: []Point{{0, 0}, {1, 0}}, Text: "x"}},
		{"no box", TextDetection{Text: "x"}},
		{"nan coordinate", TextDetection{Box: []Point{{math.NaN(), 0}, {1, 0}, {1, 1}, {0, 1}}, Text: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRows([]TextDetection{word("ok", 0, 0), tt.det}, DefaultOptions())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedBox)
		})
	}
}

func TestParseAnchor(t *testing.T) {
	a, err := ParseAnchor("START")
	require.NoError(t, err)
	assert.Equal(t, AnchorStart, a)

	a, err = ParseAnchor("")
	require.NoError(t, err)
	assert.Equal(t, AnchorLast, a)

	_, err = ParseAnchor("middle")
	assert.Error(t, err)
}
