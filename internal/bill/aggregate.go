package bill

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName returns the merge key for an item name: trimmed and
// upper-cased with Unicode case mapping.
func NormalizeName(name string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(name))
}

type bucket struct {
	name     string
	amount   float64
	quantity float64
	rate     float64
}

// Aggregate merges items sharing a normalized name. Amounts and quantities
// are summed; the rate is the first positive rate seen. When a rate exists and
// differs from the merged amount, quantity is recomputed as amount / rate.
// Items with blank names are dropped. Output keeps first-seen order and the
// first-seen display name.
func Aggregate(items []Item) []Item {
	order := make([]string, 0, len(items))
	buckets := make(map[string]*bucket, len(items))

	for _, it := range items {
		key := NormalizeName(it.Name)
		if key == "" {
			continue
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{name: strings.TrimSpace(it.Name)}
			buckets[key] = b
			order = append(order, key)
		}
		b.amount += it.Amount
		b.quantity += it.Quantity
		if b.rate == 0 && it.Rate > 0 {
			b.rate = it.Rate
		}
	}

	out := make([]Item, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		amount := Round2(b.amount)
		quantity := b.quantity
		if b.rate > 0 && b.rate != amount {
			quantity = amount / b.rate
		}
		out = append(out, Item{
			Name:     b.name,
			Amount:   amount,
			Rate:     b.rate,
			Quantity: Round2(quantity),
		})
	}
	return out
}
