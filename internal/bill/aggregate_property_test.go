package bill

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genItem() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("Ward Charges", "ward charges", "DRUG A", "Drug a", "Xray", " ", "Consultation"),
		gen.Float64Range(0, 100000),
		gen.OneConstOf(0.0, 0.0, 150.0, 1500.0, 33.3),
		gen.Float64Range(0, 10),
	).Map(func(vals []interface{}) Item {
		return Item{
			Name:     vals[0].(string),
			Amount:   vals[1].(float64),
			Rate:     vals[2].(float64),
			Quantity: vals[3].(float64),
		}
	})
}

func TestAggregateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("aggregating twice is a no-op", prop.ForAll(
		func(items []Item) bool {
			once := Aggregate(items)
			return reflect.DeepEqual(once, Aggregate(once))
		},
		gen.SliceOf(genItem()),
	))

	properties.Property("names are unique after aggregation", prop.ForAll(
		func(items []Item) bool {
			seen := map[string]bool{}
			for _, it := range Aggregate(items) {
				key := NormalizeName(it.Name)
				if seen[key] {
					return false
				}
				seen[key] = true
			}
			return true
		},
		gen.SliceOf(genItem()),
	))

	properties.Property("merged amount equals the rounded input sum", prop.ForAll(
		func(items []Item) bool {
			var in float64
			for _, it := range items {
				if NormalizeName(it.Name) != "" {
					in += it.Amount
				}
			}
			var out float64
			for _, it := range Aggregate(items) {
				out += it.Amount
			}
			return Round2(in)-out < 0.01*float64(len(items)+1) && out-Round2(in) < 0.01*float64(len(items)+1)
		},
		gen.SliceOf(genItem()),
	))

	properties.TestingRun(t)
}
