// Package export writes extraction results for the CLI.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/billparse/internal/bill"
)

// Formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Formats lists the supported output formats.
var Formats = []string{FormatJSON, FormatYAML, FormatCSV, FormatXLSX}

// Response is the envelope shared by the HTTP API and CLI output.
type Response struct {
	IsSuccess  bool            `json:"is_success" yaml:"is_success"`
	TokenUsage bill.TokenUsage `json:"token_usage" yaml:"token_usage"`
	Data       bill.Document   `json:"data" yaml:"data"`
}

// Write renders resp in the given format.
func Write(w io.Writer, format string, resp Response) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return WriteJSON(w, resp)
	case FormatYAML, "yml":
		return WriteYAML(w, resp)
	case FormatCSV:
		return WriteCSV(w, resp.Data)
	case FormatXLSX:
		return WriteXLSX(w, resp.Data)
	default:
		return fmt.Errorf("unsupported output format: %s (must be one of: %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteJSON writes indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteYAML writes YAML.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

var itemHeader = []string{"page_no", "page_type", "item_name", "item_amount", "item_rate", "item_quantity"}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes one row per line item.
func WriteCSV(w io.Writer, doc bill.Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(itemHeader); err != nil {
		return err
	}
	for _, p := range doc.Pages {
		for _, it := range p.Items {
			rec := []string{p.PageNo, string(p.PageType), it.Name,
				formatNumber(it.Amount), formatNumber(it.Rate), formatNumber(it.Quantity)}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
