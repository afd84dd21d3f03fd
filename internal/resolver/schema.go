package resolver

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// matchSchema is the contract one oracle entry must satisfy before it
// becomes a Match. Confidence bounds live here so an out-of-range value
// is a validation failure, never a silent clamp.
const matchSchema = `{
  "type": "object",
  "required": ["field_name", "value", "confidence"],
  "properties": {
    "field_name": {"type": "string", "minLength": 1},
    "value": {"type": ["string", "number", "boolean", "null"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "source": {"type": "string"},
    "rationale": {"type": "string"},
    "is_checkbox": {"type": "boolean"}
  }
}`

var compileMatchSchema = sync.OnceValue(func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("match.json", strings.NewReader(matchSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("match.json")
})

// validateEntry checks a decoded oracle entry against the match schema.
func validateEntry(entry any) error {
	return compileMatchSchema().Validate(entry)
}
