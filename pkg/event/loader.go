package event

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/repodeploy/internal/schema"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of an event file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// DetectFormat picks the format from the file extension; unknown extensions are read as YAML,
// which also covers JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// Load reads, validates and decodes the event file at path.
func Load(path string) (*Event, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied event file
	if err != nil {
		return nil, fmt.Errorf("reading event file: %w", err)
	}
	ev, err := Parse(data, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ev, nil
}

// Parse decodes data in the given format, checks it against the event schema
// and then against the semantic rules of Event.Validate.
func Parse(data []byte, format Format) (*Event, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	res, err := schema.Validate(doc, schema.EventV1)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		msgs := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(msgs, "; "))
	}

	normalized, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	var raw rawEvent
	if err := yaml.Unmarshal(normalized, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	ev, err := raw.toEvent()
	if err != nil {
		return nil, err
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeDocument(data []byte, format Format) (map[string]interface{}, error) {
	var doc map[string]interface{}
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case FormatYAML, FormatJSON:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if doc == nil {
		return nil, fmt.Errorf("empty document")
	}
	out, _ := normalize(doc).(map[string]interface{})
	if id, ok := out["id"]; ok {
		switch id.(type) {
		case int, int64, uint64, float64:
			out["id"] = fmt.Sprint(id)
		}
	}
	return out, nil
}

// normalize turns decoder-specific values into the plain JSON types the schema
// validator understands.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case toml.LocalDateTime:
		return val.String()
	case toml.LocalDate:
		return val.String()
	case toml.LocalTime:
		return val.String()
	default:
		return v
	}
}
