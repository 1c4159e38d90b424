package xjson

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/samber/lo"
)

// Transform decodes a raw JSON Schema, applies transform to every schema node
// reachable from the root, and re-encodes it.
func Transform(rawSchema json.RawMessage, transform func(*jsonschema.Schema)) (json.RawMessage, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(rawSchema, &schema); err != nil {
		return nil, err
	}

	walkSchema(&schema, transform)

	return json.Marshal(&schema)
}

func walkSchema(schema *jsonschema.Schema, transform func(*jsonschema.Schema)) {
	if schema == nil {
		return
	}

	transform(schema)

	lo.ForEach([]*jsonschema.Schema{
		schema.Items,
		schema.AdditionalItems,
		schema.Contains,
		schema.Not,
		schema.If,
		schema.Then,
		schema.Else,
		schema.PropertyNames,
	}, func(sub *jsonschema.Schema, _ int) {
		walkSchema(sub, transform)
	})

	lo.ForEach([][]*jsonschema.Schema{
		schema.PrefixItems,
		schema.ItemsArray,
		schema.AllOf,
		schema.AnyOf,
		schema.OneOf,
	}, func(subs []*jsonschema.Schema, _ int) {
		lo.ForEach(subs, func(sub *jsonschema.Schema, _ int) {
			walkSchema(sub, transform)
		})
	})

	lo.ForEach([]map[string]*jsonschema.Schema{
		schema.Defs,
		schema.Definitions,
		schema.Properties,
		schema.PatternProperties,
	}, func(subMap map[string]*jsonschema.Schema, _ int) {
		lo.ForEach(lo.Values(subMap), func(sub *jsonschema.Schema, _ int) {
			walkSchema(sub, transform)
		})
	})
}

// StripSchemaMetadata removes draft metadata keywords ($schema, $id, $comment)
// from every node. Providers that embed schemas inside their own request
// envelopes tend to choke on them.
func StripSchemaMetadata(rawSchema json.RawMessage) (json.RawMessage, error) {
	return Transform(rawSchema, func(schema *jsonschema.Schema) {
		schema.Schema = ""
		schema.ID = ""
		schema.Comment = ""
	})
}
