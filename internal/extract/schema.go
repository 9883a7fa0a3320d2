package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func itemSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"item_name", "item_amount", "item_rate", "item_quantity"},
		"properties": map[string]any{
			"item_name":     map[string]any{"type": "string"},
			"item_amount":   map[string]any{"type": "number"},
			"item_rate":     map[string]any{"type": "number"},
			"item_quantity": map[string]any{"type": "number"},
		},
	}
}

// PayloadSchema is the JSON schema of a coerced model payload.
func PayloadSchema() map[string]any {
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"pagewise_line_items"},
		"properties": map[string]any{
			"pagewise_line_items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"bill_items"},
					"properties": map[string]any{
						"page_no":    map[string]any{"type": "string"},
						"page_type":  map[string]any{"type": "string"},
						"bill_items": map[string]any{"type": "array", "items": itemSchema()},
					},
				},
			},
			"total_item_count": map[string]any{"type": "integer", "minimum": 0},
		},
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	errSchema      error
)

func payloadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(PayloadSchema())
		if err != nil {
			errSchema = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("payload.json", bytes.NewReader(b)); err != nil {
			errSchema = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, errSchema = compiler.Compile("payload.json")
	})
	return compiledSchema, errSchema
}

// Validate checks a payload against PayloadSchema.
func Validate(data []byte) error {
	schema, err := payloadSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match schema: %w", err)
	}
	return nil
}
