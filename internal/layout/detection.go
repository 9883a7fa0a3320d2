// Package layout turns unordered OCR word detections into reading-order rows
// and renders them as page text for the extractor.
package layout

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedBox is returned when a detection does not carry a four-point box
// with finite coordinates.
var ErrMalformedBox = errors.New("malformed detection box")

// Point is a pixel coordinate in the page image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextDetection is one recognized token: a quadrilateral in clockwise order
// starting at the top-left corner, the recognized text and a confidence in [0,1].
type TextDetection struct {
	Box        []Point `json:"box"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// NewRectDetection builds a detection from an axis-aligned rectangle.
func NewRectDetection(text string, left, top, width, height, confidence float64) TextDetection {
	return TextDetection{
		Box: []Point{
			{X: left, Y: top},
			{X: left + width, Y: top},
			{X: left + width, Y: top + height},
			{X: left, Y: top + height},
		},
		Text:       text,
		Confidence: confidence,
	}
}

// Validate reports whether the box is usable for ordering.
func (d TextDetection) Validate() error {
	if len(d.Box) != 4 {
		return fmt.Errorf("%w: %d points (want 4) for %q", ErrMalformedBox, len(d.Box), d.Text)
	}
	for i, p := range d.Box {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: non-finite point %d for %q", ErrMalformedBox, i, d.Text)
		}
	}
	return nil
}

// Top is the topmost Y of the box.
func (d TextDetection) Top() float64 {
	top := d.Box[0].Y
	for _, p := range d.Box[1:] {
		top = math.Min(top, p.Y)
	}
	return top
}

// Left is the leftmost X of the box.
func (d TextDetection) Left() float64 {
	left := d.Box[0].X
	for _, p := range d.Box[1:] {
		left = math.Min(left, p.X)
	}
	return left
}

// Row is a horizontal band of detections sorted left to right.
type Row []TextDetection

// Texts returns the trimmed, non-empty token texts of the row.
func (r Row) Texts() []string {
	out := make([]string, 0, len(r))
	for _, d := range r {
		if t := strings.TrimSpace(d.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Top returns the topmost Y across the row.
func (r Row) Top() float64 {
	if len(r) == 0 {
		return 0
	}
	top := r[0].Top()
	for _, d := range r[1:] {
		top = math.Min(top, d.Top())
	}
	return top
}
