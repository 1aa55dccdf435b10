// Package config loads foreman.yaml.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/foreman/pkg/command"
	"github.com/aretw0/foreman/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "foreman.yaml"

//go:embed Dockerfile
var defaultDockerfile string

// DefaultDockerfile returns the recipe script used when no script path is configured.
func DefaultDockerfile() string { return defaultDockerfile }

type Project struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

type Recipe struct {
	Type       string `yaml:"type" json:"type"`
	Filename   string `yaml:"filename" json:"filename"`
	ScriptPath string `yaml:"script_path" json:"script_path"`
}

type Redis struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

type Service struct {
	URL string `yaml:"url" json:"url"`
}

// Config is the contents of foreman.yaml.
type Config struct {
	Workspace     string                  `yaml:"workspace" json:"workspace"`
	Project       Project                 `yaml:"project" json:"project"`
	Recipe        Recipe                  `yaml:"recipe" json:"recipe"`
	Redis         Redis                   `yaml:"redis" json:"redis"`
	Service       Service                 `yaml:"service" json:"service"`
	Listen        string                  `yaml:"listen" json:"listen"`
	MetricsListen string                  `yaml:"metrics_listen" json:"metrics_listen"`
	LogLevel      string                  `yaml:"log_level" json:"log_level"`
	Commands      []command.Configuration `yaml:"commands" json:"commands"`

	// dir is the directory of the loaded file; relative paths resolve against it.
	dir string
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Workspace: "default",
		Recipe: Recipe{
			Type:     domain.RecipeTypeDocker,
			Filename: domain.RecipeFileDockerfile,
		},
		Redis: Redis{
			Addr:   "localhost:6379",
			Prefix: "foreman:",
		},
		Service:  Service{URL: "http://localhost:8080"},
		Listen:   ":8080",
		LogLevel: "info",
	}
}

// Load reads the YAML (or JSON, by extension) file at path over the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	cfg.dir = filepath.Dir(path)

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Workspace) == "" {
		return errors.New("workspace is required")
	}
	if strings.TrimSpace(c.Service.URL) == "" {
		return errors.New("service.url is required")
	}
	if c.Recipe.Type != "" && c.Recipe.Type != domain.RecipeTypeDocker {
		return fmt.Errorf("unsupported recipe type %q", c.Recipe.Type)
	}
	seen := make(map[string]bool, len(c.Commands))
	for i, cmd := range c.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("commands[%d]: name is required", i)
		}
		if seen[cmd.Name] {
			return fmt.Errorf("commands[%d]: duplicate name %q", i, cmd.Name)
		}
		seen[cmd.Name] = true
	}
	return nil
}

// MachineRecipe builds the recipe sent to the machine service, reading the
// script from ScriptPath when set.
func (c Config) MachineRecipe() (domain.Recipe, error) {
	script := defaultDockerfile
	if c.Recipe.ScriptPath != "" {
		path := c.Recipe.ScriptPath
		if !filepath.IsAbs(path) && c.dir != "" {
			path = filepath.Join(c.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Recipe{}, fmt.Errorf("failed to read recipe script: %w", err)
		}
		script = string(data)
	}

	recipe := domain.DockerRecipe(script)
	if c.Recipe.Filename != "" {
		recipe.Filename = c.Recipe.Filename
	}
	return recipe, nil
}

// ActiveProject returns the configured project, defaulting its name to the
// base of its path.
func (c Config) ActiveProject() (domain.Project, error) {
	if c.Project.Path == "" {
		return domain.Project{}, domain.ErrNoActiveProject
	}
	name := c.Project.Name
	if name == "" {
		name = filepath.Base(c.Project.Path)
	}
	return domain.Project{Name: name, Path: c.Project.Path}, nil
}
