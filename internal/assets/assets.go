package assets

import (
	"embed"
	"io/fs"
)

//go:embed embedded_schemas
var Schemas embed.FS

func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(Schemas, "embedded_schemas"); err == nil {
		return sub
	}
	return Schemas
}

// GetEmbeddedAsset retrieves an embedded asset by path relative to embedded_schemas
func GetEmbeddedAsset(path string) ([]byte, error) {
	if data, err := fs.ReadFile(GetSchemasFS(), path); err == nil {
		return data, nil
	}
	return nil, fs.ErrNotExist
}
