package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/MeKo-Tech/billparse/internal/bill"
)

// Sheet names of the workbook.
const (
	ItemsSheet   = "Line Items"
	SummarySheet = "Summary"
)

// WriteXLSX writes a workbook with a line item sheet and a per-page summary.
func WriteXLSX(w io.Writer, doc bill.Document) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ItemsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}

	row := 1
	write := func(sheet string, col int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	for i, h := range itemHeader {
		if err := write(ItemsSheet, i+1, h); err != nil {
			return err
		}
	}
	for _, p := range doc.Pages {
		for _, it := range p.Items {
			row++
			for i, v := range []any{p.PageNo, string(p.PageType), it.Name, it.Amount, it.Rate, it.Quantity} {
				if err := write(ItemsSheet, i+1, v); err != nil {
					return err
				}
			}
		}
	}
	_ = f.SetColWidth(ItemsSheet, "C", "C", 40)

	row = 1
	for i, h := range []string{"page_no", "page_type", "items", "page_subtotal"} {
		if err := write(SummarySheet, i+1, h); err != nil {
			return err
		}
	}
	for _, p := range doc.Pages {
		row++
		for i, v := range []any{p.PageNo, string(p.PageType), len(p.Items), p.Subtotal} {
			if err := write(SummarySheet, i+1, v); err != nil {
				return err
			}
		}
	}
	row += 2
	if err := write(SummarySheet, 1, "total_item_count"); err != nil {
		return err
	}
	if err := write(SummarySheet, 2, doc.TotalItemCount); err != nil {
		return err
	}
	row++
	if err := write(SummarySheet, 1, "final_total_amount"); err != nil {
		return err
	}
	if err := write(SummarySheet, 2, doc.FinalTotalAmount); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}
