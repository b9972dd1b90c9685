package normalize

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Top-level shapes only. Field contents are never validated here; per-field
// problems are absorbed by coercion defaults and non-object array elements are
// skipped by the caller.
const (
	numericSchema = `{
  "type": "array"
}`
	chartSchema = `{
  "type": "object",
  "required": ["charts"],
  "properties": {
    "charts": {"type": "array"}
  }
}`
	templateSchema = `{
  "type": "object",
  "required": ["filledTemplate"],
  "properties": {
    "filledTemplate": {"type": "string"},
    "values": {"type": "array", "items": {"type": "object"}}
  }
}`
)

type shape struct {
	name   string
	schema *jsonschema.Schema
}

var (
	numericShape  = mustShape("numeric.json", "a JSON array of record objects", numericSchema)
	chartShape    = mustShape("chart.json", `an object with a "charts" array`, chartSchema)
	templateShape = mustShape("template.json", `an object with "filledTemplate" and "values"`, templateSchema)
)

func mustShape(url, name, schema string) shape {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return shape{name: name, schema: compiler.MustCompile(url)}
}

func (s shape) check(v any) error {
	if err := s.schema.Validate(v); err != nil {
		detail := ""
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			for len(ve.Causes) > 0 {
				ve = ve.Causes[0]
			}
			detail = ve.Message
		}
		return &ShapeError{Expected: s.name, Got: describe(v), Detail: detail}
	}
	return nil
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case map[string]any:
		if len(t) == 0 {
			return "an empty object"
		}
		return "an object"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return "a number"
	}
}
