/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package ops

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/spf13/cobra"
)

// CommandGroup represents the operational classification of commands
type CommandGroup string

const (
	GroupEvent    CommandGroup = "event"    // register, deregister, list
	GroupWorkflow CommandGroup = "workflow" // run, plan, validate
	GroupSupport  CommandGroup = "support"  // version, help
)

// Groups lists the groups in help order.
var Groups = []CommandGroup{GroupEvent, GroupWorkflow, GroupSupport}

// Title is the help heading of a group.
func (g CommandGroup) Title() string {
	switch g {
	case GroupEvent:
		return "Event Commands"
	case GroupWorkflow:
		return "Workflow Commands"
	case GroupSupport:
		return "Support Commands"
	default:
		return string(g)
	}
}

// CommandCategory refines a group.
type CommandCategory string

const (
	CategoryScheduling  CommandCategory = "scheduling"
	CategoryInventory   CommandCategory = "inventory"
	CategoryExecution   CommandCategory = "execution"
	CategoryValidation  CommandCategory = "validation"
	CategoryInformation CommandCategory = "information"
)

// categories lists the categories each group may hold.
var categories = map[CommandGroup][]CommandCategory{
	GroupEvent:    {CategoryScheduling, CategoryInventory},
	GroupWorkflow: {CategoryExecution, CategoryValidation},
	GroupSupport:  {CategoryInformation},
}

// Allows reports whether category belongs to group.
func (g CommandGroup) Allows(category CommandCategory) bool {
	return slices.Contains(categories[g], category)
}

// CommandRegistration represents a registered command with its classification
type CommandRegistration struct {
	Name        string
	Group       CommandGroup
	Category    CommandCategory
	Command     *cobra.Command
	Description string
}

// Registry manages command classifications and registrations. Each root
// command owns one, so command trees can be built repeatedly in tests.
type Registry struct {
	mu         sync.RWMutex
	commands   map[string]*CommandRegistration
	groupIndex map[CommandGroup][]*CommandRegistration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:   make(map[string]*CommandRegistration),
		groupIndex: make(map[CommandGroup][]*CommandRegistration),
	}
}

// Register adds a command to the registry. The name must match the command's
// own name, and the category must belong to the group.
func (r *Registry) Register(name string, group CommandGroup, category CommandCategory, cmd *cobra.Command, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}
	if _, known := categories[group]; !known {
		return fmt.Errorf("command %s: unknown group %s", name, group)
	}
	if !group.Allows(category) {
		return fmt.Errorf("command %s: category %s not allowed for group %s", name, category, group)
	}
	if cmd != nil && cmd.Name() != name {
		return fmt.Errorf("command %s: registered as %s", cmd.Name(), name)
	}

	registration := &CommandRegistration{
		Name:        name,
		Group:       group,
		Category:    category,
		Command:     cmd,
		Description: description,
	}

	r.commands[name] = registration
	r.groupIndex[group] = append(r.groupIndex[group], registration)

	return nil
}

// GetCommand returns a registered command by name
func (r *Registry) GetCommand(name string) (*CommandRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetCommandsByGroup returns the commands of a group in registration order
func (r *Registry) GetCommandsByGroup(group CommandGroup) []*CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*CommandRegistration(nil), r.groupIndex[group]...)
}

// Names returns all registered command names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListGroups returns all command groups and their command counts
func (r *Registry) ListGroups() map[CommandGroup]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[CommandGroup]int)
	for group, commands := range r.groupIndex {
		result[group] = len(commands)
	}
	return result
}
