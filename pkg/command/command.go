// Package command converts command configurations into the command line that
// is sent to a machine.
package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Configuration is a named, typed command as written in foreman.yaml.
// Attributes are decoded into the type-specific settings when the command line is built.
type Configuration struct {
	Name       string         `yaml:"name" json:"name" mapstructure:"name"`
	Type       string         `yaml:"type" json:"type" mapstructure:"type"`
	Attributes map[string]any `yaml:"attributes" json:"attributes" mapstructure:"attributes"`
}

// Builder turns decoded attributes into a command line.
type Builder interface {
	CommandLine() (string, error)
}

// BuilderFactory returns an empty Builder for mapstructure to decode into.
type BuilderFactory func() Builder

var (
	mu       sync.RWMutex
	registry = map[string]BuilderFactory{
		TypeCustom: func() Builder { return &Custom{} },
		TypeMaven:  func() Builder { return &Maven{} },
	}
)

// Register makes a command type available. Registering an existing type replaces it.
func Register(commandType string, factory BuilderFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[commandType] = factory
}

// Types returns the registered command types, sorted.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CommandLine builds the command line for c.
func (c Configuration) CommandLine() (string, error) {
	mu.RLock()
	factory, ok := registry[c.Type]
	mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownCommandType, c.Type)
	}

	builder := factory()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           builder,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to prepare decoder for %q: %w", c.Name, err)
	}
	if err := decoder.Decode(c.Attributes); err != nil {
		return "", fmt.Errorf("invalid attributes for command %q: %w", c.Name, err)
	}

	line, err := builder.CommandLine()
	if err != nil {
		return "", fmt.Errorf("command %q: %w", c.Name, err)
	}
	return line, nil
}

// Find returns the configuration with the given name.
func Find(configs []Configuration, name string) (Configuration, bool) {
	for _, c := range configs {
		if c.Name == name {
			return c, true
		}
	}
	return Configuration{}, false
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
