package bill

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reNumber = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?|-?\.\d+`)
	// dd/mm/yyyy, yyyy-mm-dd, dd.mm.yy and similar.
	reDate = regexp.MustCompile(`\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}`)
)

// ErrPayloadShape reports model JSON that has no usable line-item structure.
var ErrPayloadShape = errors.New("unexpected payload shape")

// RawPage is a page as the model reports it, before aggregation.
type RawPage struct {
	PageNo   string `json:"page_no"`
	PageType string `json:"page_type"`
	Items    []Item `json:"bill_items"`
}

// RawDocument is the decoded model payload for one page of text.
type RawDocument struct {
	Pages          []RawPage `json:"pagewise_line_items"`
	TotalItemCount int       `json:"total_item_count"`
}

// Items flattens every page's items in order.
func (d RawDocument) Items() []Item {
	var out []Item
	for _, p := range d.Pages {
		out = append(out, p.Items...)
	}
	return out
}

// PageType returns the first non-empty page type.
func (d RawDocument) PageType() PageType {
	for _, p := range d.Pages {
		if strings.TrimSpace(p.PageType) != "" {
			return ParsePageType(p.PageType)
		}
	}
	return PageTypeBillDetail
}

// ParseNumber reads a number from loosely typed JSON. Strings may carry
// thousands separators and currency text ("Rs. 1,500.00"). nil reads as 0.
// Strings that look like dates are rejected.
func ParseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		if reDate.MatchString(t) {
			return 0, false
		}
		m := reNumber.FindString(t)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// Coerce normalizes decoded model JSON into the canonical payload shape.
// Unknown fields are dropped, numeric strings become numbers, a numeric
// page_no becomes a string. A payload with top-level bill_items, or a single
// page object in place of the pagewise_line_items array, is treated as one
// page. A payload with neither, a page without bill_items, or bill_items
// that is neither an array nor null fails with ErrPayloadShape. The returned notes describe each repair made.
func Coerce(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, nil, err
	}

	var notes []string
	var rawPages []any
	switch v := m["pagewise_line_items"].(type) {
	case []any:
		rawPages = v
	case map[string]any:
		rawPages = []any{v}
		notes = append(notes, "wrapped single pagewise_line_items object as one page")
	case nil:
		if _, ok := m["bill_items"]; !ok {
			return nil, nil, fmt.Errorf("%w: no pagewise_line_items or bill_items", ErrPayloadShape)
		}
		rawPages = []any{m}
		notes = append(notes, "wrapped top-level bill_items as one page")
	default:
		return nil, nil, fmt.Errorf("%w: pagewise_line_items is %T", ErrPayloadShape, v)
	}

	pages := make([]any, 0, len(rawPages))
	itemCount := 0
	for pi, rp := range rawPages {
		pm, ok := rp.(map[string]any)
		if !ok {
			notes = append(notes, fmt.Sprintf("page %d: dropped non-object", pi))
			continue
		}
		if _, ok := pm["bill_items"]; !ok {
			return nil, nil, fmt.Errorf("%w: page %d has no bill_items", ErrPayloadShape, pi)
		}
		items, err := coerceItems(pm["bill_items"], pi, &notes)
		if err != nil {
			return nil, nil, err
		}
		itemCount += len(items)
		pages = append(pages, map[string]any{
			"page_no":    coerceString(pm["page_no"]),
			"page_type":  coerceString(pm["page_type"]),
			"bill_items": items,
		})
	}
	if len(pages) == 0 && len(rawPages) > 0 {
		return nil, nil, fmt.Errorf("%w: no page objects", ErrPayloadShape)
	}

	total := itemCount
	if raw := m["total_item_count"]; raw != nil {
		if f, ok := ParseNumber(raw); ok && f >= 0 && f <= math.MaxInt32 && f == math.Trunc(f) {
			total = int(f)
		} else {
			notes = append(notes, fmt.Sprintf("ignored total_item_count %v", raw))
		}
	}

	out, err := json.Marshal(map[string]any{
		"pagewise_line_items": pages,
		"total_item_count":    total,
	})
	if err != nil {
		return nil, nil, err
	}
	return out, notes, nil
}

func coerceItems(v any, page int, notes *[]string) ([]any, error) {
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case nil:
		*notes = append(*notes, fmt.Sprintf("page %d: bill_items is null", page))
		return []any{}, nil
	default:
		return nil, fmt.Errorf("%w: page %d bill_items is %T", ErrPayloadShape, page, v)
	}
	items := make([]any, 0, len(list))
	for ii, raw := range list {
		im, ok := raw.(map[string]any)
		if !ok {
			*notes = append(*notes, fmt.Sprintf("page %d item %d: dropped non-object", page, ii))
			continue
		}
		item := map[string]any{"item_name": coerceString(im["item_name"])}
		for _, k := range []string{"item_amount", "item_rate", "item_quantity"} {
			f, ok := ParseNumber(im[k])
			if !ok {
				*notes = append(*notes, fmt.Sprintf("page %d item %d: unreadable %s %v", page, ii, k, im[k]))
				f = 0
			}
			item[k] = f
		}
		items = append(items, item)
	}
	return items, nil
}
