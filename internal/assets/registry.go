package assets

// Registry lists embedded schemas available at runtime.
// Update this when adding/removing schemas.

type AssetInfo struct {
	Name    string // registry name used by internal/schema
	Family  string // e.g., event
	Version string // e.g., v1.0.0
	Path    string // embed path
}

var Registry = []AssetInfo{
	{
		Name:    "event-v1.0.0",
		Family:  "event",
		Version: "v1.0.0",
		Path:    "embedded_schemas/event/v1.0.0/event.yaml",
	},
}

// Lookup returns the registry entry with the given name.
func Lookup(name string) (AssetInfo, bool) {
	for _, info := range Registry {
		if info.Name == name {
			return info, true
		}
	}
	return AssetInfo{}, false
}
