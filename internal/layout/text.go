package layout

import (
	"fmt"
	"strings"
)

// PageHeader is the marker line that opens every rendered page.
func PageHeader(pageIndex int) string {
	return fmt.Sprintf("--- Page %d ---", pageIndex)
}

// PageText renders rows under a page header, one line per row. Rows with no
// text are dropped; a page with no text at all renders as the empty string.
func PageText(rows []Row, pageIndex int, separator string) string {
	if separator == "" {
		separator = DefaultSeparator
	}
	lines := make([]string, 0, len(rows)+1)
	for _, r := range rows {
		if texts := r.Texts(); len(texts) > 0 {
			lines = append(lines, strings.Join(texts, separator))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return PageHeader(pageIndex) + "\n" + strings.Join(lines, "\n")
}

// Render is BuildRows followed by PageText.
func (o Options) Render(detections []TextDetection, pageIndex int) (string, []Row, error) {
	o = o.normalized()
	rows, err := BuildRows(detections, o)
	if err != nil {
		return "", nil, err
	}
	return PageText(rows, pageIndex, o.Separator), rows, nil
}
