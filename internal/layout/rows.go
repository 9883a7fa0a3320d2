package layout

import (
	"fmt"
	"sort"
	"strings"
)

// Anchor selects which Y a new detection is compared against when deciding
// whether it continues the current row.
type Anchor string

const (
	// AnchorLast compares against the previous detection, so rows may drift.
	AnchorLast Anchor = "last"
	// AnchorStart compares against the first detection of the row.
	AnchorStart Anchor = "start"
)

const (
	// DefaultRowTolerance is the maximum vertical distance in pixels between
	// consecutive detections of one row.
	DefaultRowTolerance = 12.0
	// DefaultSeparator joins tokens of a row so column boundaries survive.
	DefaultSeparator = "    "
)

// Options configures row reconstruction and page rendering.
type Options struct {
	RowTolerance float64
	Anchor       Anchor
	Separator    string
}

// DefaultOptions returns the reconstruction defaults.
func DefaultOptions() Options {
	return Options{
		RowTolerance: DefaultRowTolerance,
		Anchor:       AnchorLast,
		Separator:    DefaultSeparator,
	}
}

func (o Options) normalized() Options {
	if o.RowTolerance <= 0 {
		o.RowTolerance = DefaultRowTolerance
	}
	if o.Anchor != AnchorStart {
		o.Anchor = AnchorLast
	}
	if o.Separator == "" {
		o.Separator = DefaultSeparator
	}
	return o
}

// ParseAnchor accepts "last" or "start" (case-insensitive).
func ParseAnchor(s string) (Anchor, error) {
	switch Anchor(strings.ToLower(strings.TrimSpace(s))) {
	case "", AnchorLast:
		return AnchorLast, nil
	case AnchorStart:
		return AnchorStart, nil
	default:
		return "", fmt.Errorf("invalid row anchor: %q (must be one of: last, start)", s)
	}
}

// BuildRows groups detections into rows. Detections are visited in ascending
// top Y; a detection whose Y differs from the anchor by more than the tolerance
// starts a new row. Each row is then sorted by leftmost X. Ties keep input order.
func BuildRows(detections []TextDetection, opts Options) ([]Row, error) {
	opts = opts.normalized()
	for i := range detections {
		if err := detections[i].Validate(); err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
	}
	if len(detections) == 0 {
		return nil, nil
	}

	sorted := make([]TextDetection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Top() < sorted[j].Top()
	})

	var rows []Row
	current := Row{sorted[0]}
	anchorY := sorted[0].Top()
	for _, d := range sorted[1:] {
		y := d.Top()
		if abs(y-anchorY) > opts.RowTolerance {
			rows = append(rows, current)
			current = Row{d}
			anchorY = y
			continue
		}
		current = append(current, d)
		if opts.Anchor == AnchorLast {
			anchorY = y
		}
	}
	rows = append(rows, current)

	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool {
			return r[i].Left() < r[j].Left()
		})
	}
	return rows, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
