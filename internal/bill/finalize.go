package bill

// Subtotal sums item amounts, rounded to two decimals.
func Subtotal(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Amount
	}
	return Round2(sum)
}

// Finalize fills defaults, computes page subtotals and the document totals.
// Final Bill pages are summaries and do not contribute to the grand total.
func Finalize(pages []Page) Document {
	doc := Document{Pages: make([]Page, 0, len(pages))}
	var total float64
	for _, p := range pages {
		if p.PageNo == "" {
			p.PageNo = DefaultPageNo
		}
		if p.PageType == "" {
			p.PageType = PageTypeBillDetail
		}
		if p.Items == nil {
			p.Items = []Item{}
		}
		p.Subtotal = Subtotal(p.Items)
		if p.PageType != PageTypeFinalBill {
			total += p.Subtotal
		}
		doc.TotalItemCount += len(p.Items)
		doc.Pages = append(doc.Pages, p)
	}
	doc.FinalTotalAmount = Round2(total)
	return doc
}
