// Package schema generates JSON schemas for configuration structs.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/luabridge/domain/entities"
)

var durationType = reflect.TypeOf(entities.Duration(0))

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go struct.
// Nested structs are inlined, and only fields tagged jsonschema:"required" are required.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		Mapper:                     mapType,
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}

// ConfigSchema returns the schema of the bridge configuration file.
func ConfigSchema() ([]byte, error) {
	return GenerateSchema(entities.Config{})
}

func mapType(t reflect.Type) *jsonschema.Schema {
	if t == durationType {
		return &jsonschema.Schema{
			Type:        "string",
			Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
			Description: "Go duration, e.g. 4s or 1m30s",
		}
	}
	return nil
}
