// Package event defines deployment events and loads them from JSON, YAML or TOML files.
package event

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/fulmenhq/repodeploy/pkg/pattern"
	"gopkg.in/yaml.v3"
)

// ErrInvalidEvent marks an event file that cannot be parsed or fails validation.
var ErrInvalidEvent = errors.New("invalid event")

// ids end up in file names (run directories, lock files).
var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// CheckID rejects ids that are empty or not safe to use in a file name.
func CheckID(id string) error {
	if !idPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("%w: id %q must match %s", ErrInvalidEvent, id, idPattern)
	}
	return nil
}

// Event is a one-shot deployment between two repositories.
type Event struct {
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Origin      string         `json:"origin" yaml:"origin"`
	Destination string         `json:"destination" yaml:"destination"`
	Date        time.Time      `json:"date" yaml:"date"`
	Patterns    []pattern.Pair `json:"patterns" yaml:"patterns"`
	DryRun      bool           `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// Validate checks the semantic rules a schema cannot express.
func (e *Event) Validate() error {
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEvent)
	}
	for i, p := range e.Patterns {
		if _, err := pattern.CleanSource(p.Source); err != nil {
			return fmt.Errorf("%w: patterns[%d]: %w", ErrInvalidEvent, i, err)
		}
		if p.Destination == nil {
			continue
		}
		if _, _, err := pattern.CleanDestination(*p.Destination); err != nil {
			return fmt.Errorf("%w: patterns[%d]: %w", ErrInvalidEvent, i, err)
		}
	}
	return nil
}

// Label is the short human name used in logs and tables.
func (e *Event) Label() string {
	if e.ID == "" {
		return e.Name
	}
	return e.ID + " (" + e.Name + ")"
}

// dateLayouts are tried in order; layouts without a zone use local time.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDate accepts RFC 3339 or a local "YYYY-MM-DD[T ]HH:MM[:SS]" wall-clock time.
func ParseDate(s string) (time.Time, error) {
	for i, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q is not RFC 3339 or YYYY-MM-DD HH:MM[:SS]", ErrInvalidEvent, s)
}

// patternItem accepts either the tuple form ["src"] / ["src", "dst"|null]
// or the mapping form {source: ..., destination: ...}.
type patternItem pattern.Pair

func (p *patternItem) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var parts []*string
		if err := node.Decode(&parts); err != nil {
			return err
		}
		if len(parts) == 0 || len(parts) > 2 || parts[0] == nil {
			return fmt.Errorf("line %d: pattern must be [source] or [source, destination]", node.Line)
		}
		p.Source = *parts[0]
		if len(parts) == 2 {
			p.Destination = parts[1]
		}
		return nil
	case yaml.MappingNode:
		var pair pattern.Pair
		if err := node.Decode(&pair); err != nil {
			return err
		}
		*p = patternItem(pair)
		return nil
	default:
		return fmt.Errorf("line %d: pattern must be a list or a mapping", node.Line)
	}
}

// rawEvent is the decoded document before dates and patterns are typed.
type rawEvent struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Origin      string        `yaml:"origin"`
	Destination string        `yaml:"destination"`
	Date        string        `yaml:"date"`
	Patterns    []patternItem `yaml:"patterns"`
	DryRun      *bool         `yaml:"dry_run"`
	IsDryRun    *bool         `yaml:"is_dry_run"`
}

func (r rawEvent) toEvent() (*Event, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return nil, err
	}
	ev := &Event{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Origin:      r.Origin,
		Destination: r.Destination,
		Date:        date,
		Patterns:    make([]pattern.Pair, 0, len(r.Patterns)),
	}
	for _, item := range r.Patterns {
		ev.Patterns = append(ev.Patterns, pattern.Pair(item))
	}
	switch {
	case r.DryRun != nil:
		ev.DryRun = *r.DryRun
	case r.IsDryRun != nil:
		ev.DryRun = *r.IsDryRun
	}
	return ev, nil
}
