package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fulmenhq/repodeploy/internal/assets"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// EventV1 is the registry name of the deployment event schema.
const EventV1 = "event-v1.0.0"

// ValidationError represents a single validation error.
type ValidationError struct {
	Path    string `json:"path,omitempty"` // Single string path (e.g., "patterns.0")
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Path + ": " + e.Message
}

// Result holds the validation result.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// registry holds pre-compiled schemas keyed by assets.Registry name.
var registry = make(map[string]*gojsonschema.Schema)

func init() {
	for _, info := range assets.Registry {
		schema, err := compile(info.Path)
		if err != nil {
			// A broken embedded schema surfaces as "not found" from Validate.
			continue
		}
		registry[info.Name] = schema
	}
}

// compile converts an embedded YAML schema to JSON for gojsonschema.
func compile(path string) (*gojsonschema.Schema, error) {
	schemaBytes, ok := assets.GetSchema(path)
	if !ok || len(schemaBytes) == 0 {
		return nil, fmt.Errorf("schema %s not embedded", path)
	}
	var schemaData interface{}
	if err := yaml.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, err
	}
	jsonBytes, err := json.Marshal(schemaData)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jsonBytes))
}

// Names lists the compiled schemas.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate validates data (interface{}) against the named schema.
func Validate(data interface{}, schemaName string) (*Result, error) {
	schema, ok := registry[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema %s not found in registry", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	res := &Result{Valid: result.Valid()}
	if !result.Valid() {
		for _, verr := range result.Errors() {
			field := verr.Field()
			if field == "" || field == "(root)" {
				field = "root"
			}
			res.Errors = append(res.Errors, ValidationError{
				Path:    field,
				Message: verr.Description(),
			})
		}
	}

	return res, nil
}
