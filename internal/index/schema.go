package index

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// indexSchema describes metadata.json: an object keyed by prompt identifier.
// Fields are optional because older files omit some of them, but present
// fields must have the right type.
const indexSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "label":     {"type": ["string", "null"]},
      "component": {"type": ["string", "null"]},
      "tags": {
        "type": ["array", "null"],
        "items": {"type": "string"}
      },
      "history": {
        "type": ["array", "null"],
        "items": {
          "type": "object",
          "required": ["filename"],
          "properties": {
            "filename":  {"type": "string"},
            "timestamp": {"type": "string"}
          }
        }
      }
    }
  }
}`

var compiledSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(indexSchema))
	if err != nil {
		panic("index: invalid built-in schema: " + err.Error())
	}
	compiledSchema = s
}

// validate checks raw metadata bytes against the index schema and returns a
// readable reason when they do not conform.
func validate(data []byte) (string, bool, error) {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return "", false, err
	}
	if result.Valid() {
		return "", true, nil
	}
	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; "), false, nil
}
