package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func compileSchema(a Action) (*jsonschema.Schema, error) {
	doc, err := json.Marshal(schemaDocument(a))
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", a.Name, err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://fleetpilot.schemas.local/actions/%s.schema.json", a.Name)
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", a.Name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", a.Name, err)
	}
	return compiled, nil
}

func schemaDocument(a Action) map[string]any {
	props := make(map[string]any, len(a.Params))
	required := make([]string, 0, len(a.Params))
	for _, p := range a.Params {
		props[p.Name] = propertySchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func propertySchema(p ParamSpec) map[string]any {
	var s map[string]any
	switch p.Type {
	case ParamStringList:
		s = map[string]any{"type": "array", "items": map[string]any{"type": "string", "minLength": 1}}
	case ParamStringMap:
		s = map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}}
	case ParamString:
		s = map[string]any{"type": "string", "minLength": 1}
	default:
		s = map[string]any{"type": string(p.Type)}
	}
	if p.Pattern != "" {
		s["pattern"] = p.Pattern
	}
	if p.Minimum != nil {
		s["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		s["maximum"] = *p.Maximum
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	return s
}

// normalizeParams round-trips params through JSON so the validator only sees
// decoded JSON values.
func normalizeParams(params map[string]any) (any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
