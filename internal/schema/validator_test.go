package schema

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, src string) interface{} {
	t.Helper()
	var doc interface{}
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestValidate(t *testing.T) {
	validYAML := `
name: docs sync
description: push the handbook
origin: https://example.com/src.git
destination: https://example.com/dst.git
date: "2026-05-01T09:00:00Z"
patterns:
  - ["docs/**/*.md"]
  - ["README.md", "handbook/README.md"]
  - ["assets", null]
  - source: "c/*.txt"
    destination: out
dry_run: true
`
	res, err := Validate(decode(t, validYAML), EventV1)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Errorf("expected valid event, got errors: %v", res.Errors)
	}

	invalidYAML := `
name: ""
description: missing origin
destination: https://example.com/dst.git
date: "2026-05-01T09:00:00Z"
patterns:
  - ["a", "b", "c"]
  - 42
unknown: true
`
	res, err = Validate(decode(t, invalidYAML), EventV1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Error("expected invalid event")
	}
	if len(res.Errors) < 4 {
		t.Errorf("expected several validation errors, got %v", res.Errors)
	}

	_, err = Validate(decode(t, validYAML), "nonexistent")
	if err == nil || !strings.Contains(err.Error(), "not found in registry") {
		t.Errorf("expected schema not found error, got %v", err)
	}
}

func TestValidate_IDPattern(t *testing.T) {
	doc := decode(t, `
id: "../escape"
name: n
description: d
origin: o
destination: d
date: "2026-05-01 09:00"
patterns: []
`)
	res, err := Validate(doc, EventV1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("expected id with path separators to be rejected")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e.Path, "id") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error on id, got %v", res.Errors)
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 1 || names[0] != EventV1 {
		t.Errorf("unexpected schema names %v", names)
	}
}
