package extract

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "fenced with prose",
			raw:  "Here is the result:\n```json\n{\"a\":1,\"b\":{\"c\":2}}\n```\nLet me know if you need more.",
			want: `{"a":1,"b":{"c":2}}`,
		},
		{
			name: "bare object",
			raw:  `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "second object ignored",
			raw:  `{"a":1} and also {"b":2}`,
			want: `{"a":1}`,
		},
		{
			name: "braces inside strings",
			raw:  `prefix {"name":"Misc {x} }","n":1} suffix }`,
			want: `{"name":"Misc {x} }","n":1}`,
		},
		{
			name: "escaped quote in string",
			raw:  `{"name":"say \"}\" here"}`,
			want: `{"name":"say \"}\" here"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Candidate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)))
		})
	}
}

func TestCandidate_Failures(t *testing.T) {
	for _, raw := range []string{"no json here", `{"a": {"b": 1}`, ""} {
		_, err := Candidate(raw)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrMalformedOutput)

		var mErr *MalformedOutputError
		require.True(t, errors.As(err, &mErr))
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```JSON\n{\"a\":1}\n```"))
}

func TestDecode(t *testing.T) {
	raw := "```json\n" + `{
	  "pagewise_line_items": [{
	    "page_no": "7",
	    "page_type": "Pharmacy",
	    "bill_items": [
	      {"item_name": "DRUG A", "item_amount": 4500, "item_rate": 1500, "item_quantity": 3},
	      {"item_name": "Syringe", "item_amount": "1,200.00", "item_rate": 0, "item_quantity": 1}
	    ]
	  }],
	  "total_item_count": 2
	}` + "\n```"

	doc, _, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Pharmacy", doc.Pages[0].PageType)
	assert.Len(t, doc.Items(), 2)
	assert.Equal(t, 1200.0, doc.Items()[1].Amount)
}

func TestDecode_InvalidJSONKeepsRaw(t *testing.T) {
	_, _, err := Decode(`Sure! {"pagewise_line_items": [oops]}`)
	require.Error(t, err)

	var mErr *MalformedOutputError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, `{"pagewise_line_items": [oops]}`, mErr.Raw)
}

func TestDecode_ItemsMissingAreEmpty(t *testing.T) {
	doc, _, err := Decode(`{"pagewise_line_items": [{"page_no": "1", "page_type": "Bill Detail"}]}`)
	require.NoError(t, err)
	assert.Empty(t, doc.Items())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]byte(`{"pagewise_line_items": [], "total_item_count": 0}`)))
	assert.Error(t, Validate([]byte(`{"pagewise_line_items": [{"bill_items": [{"item_name": 1}]}]}`)))
	assert.Error(t, Validate([]byte(`{"total_item_count": 0}`)))
}
