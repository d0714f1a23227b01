package assets

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaInfo holds schema metadata.
type SchemaInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Draft string `json:"draft"`
}

// GetSchema returns the embedded schema bytes by embed path (e.g., "embedded_schemas/event/v1.0.0/event.yaml").
func GetSchema(relPath string) ([]byte, bool) {
	data, err := Schemas.ReadFile(relPath)
	return data, err == nil
}

// GetSchemaNames returns the registered schemas that are actually embedded, sorted by name.
func GetSchemaNames() []SchemaInfo {
	var infos []SchemaInfo
	for _, info := range Registry {
		if _, ok := GetSchema(info.Path); ok {
			infos = append(infos, SchemaInfo{Name: info.Name, Path: info.Path, Draft: detectDraft(info.Path)})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// detectDraft heuristically detects draft from schema bytes via $schema key.
func detectDraft(path string) string {
	bytes, ok := GetSchema(path)
	if !ok {
		return "Unknown"
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(bytes, &doc); err != nil {
		return "Unknown"
	}
	v, _ := doc["$schema"].(string)
	switch {
	case strings.Contains(v, "draft-07"):
		return "Draft-07"
	case strings.Contains(v, "2020-12"):
		return "Draft-2020-12"
	default:
		return "Unknown"
	}
}
