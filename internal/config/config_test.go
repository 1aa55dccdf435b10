package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/foreman/internal/config"
	"github.com/aretw0/foreman/pkg/command"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func commandNamed(name string) command.Configuration {
	return command.Configuration{Name: name, Type: command.TypeCustom}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "foreman.yaml", `
workspace: team-a
project:
  path: /projects/shop
service:
  url: http://machines:9000
redis:
  addr: redis:6379
commands:
  - name: build
    type: mvn
    attributes:
      goals: [clean, install]
      skip_tests: true
  - name: hello
    type: custom
    attributes:
      command_line: echo hello
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "team-a", cfg.Workspace)
	assert.Equal(t, "http://machines:9000", cfg.Service.URL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "foreman:", cfg.Redis.Prefix, "unset fields keep defaults")

	project, err := cfg.ActiveProject()
	require.NoError(t, err)
	assert.Equal(t, domain.Project{Name: "shop", Path: "/projects/shop"}, project)

	require.Len(t, cfg.Commands, 2)
	line, err := cfg.Commands[0].CommandLine()
	require.NoError(t, err)
	assert.Equal(t, "mvn clean install -DskipTests", line)

	line, err = cfg.Commands[1].CommandLine()
	require.NoError(t, err)
	assert.Equal(t, "echo hello", line)
}

func TestLoad_JSON(t *testing.T) {
	path := write(t, "foreman.json", `{"workspace":"ci","log_level":"debug"}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ci", cfg.Workspace)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Malformed(t *testing.T) {
	path := write(t, "foreman.yaml", "workspace: [unterminated")

	_, err := config.Load(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing workspace", func(c *config.Config) { c.Workspace = " " }, "workspace is required"},
		{"missing service", func(c *config.Config) { c.Service.URL = "" }, "service.url is required"},
		{"bad recipe", func(c *config.Config) { c.Recipe.Type = "compose" }, `unsupported recipe type "compose"`},
		{"unnamed command", func(c *config.Config) {
			c.Commands = append(c.Commands, commandNamed(""))
		}, "name is required"},
		{"duplicate command", func(c *config.Config) {
			c.Commands = append(c.Commands, commandNamed("build"), commandNamed("build"))
		}, `duplicate name "build"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestMachineRecipe(t *testing.T) {
	// 1. Embedded default
	recipe, err := config.Default().MachineRecipe()
	require.NoError(t, err)
	assert.Equal(t, domain.RecipeTypeDocker, recipe.Type)
	assert.Equal(t, domain.RecipeFileDockerfile, recipe.Filename)
	assert.Equal(t, config.DefaultDockerfile(), recipe.Script)
	assert.Contains(t, recipe.Script, "FROM ")

	// 2. Script relative to the config file
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dev.Dockerfile"), []byte("FROM alpine\n"), 0o644))
	path := filepath.Join(dir, "foreman.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recipe:\n  script_path: dev.Dockerfile\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	recipe, err = cfg.MachineRecipe()
	require.NoError(t, err)
	assert.Equal(t, "FROM alpine\n", recipe.Script)

	// 3. Missing script
	cfg.Recipe.ScriptPath = "nope.Dockerfile"
	_, err = cfg.MachineRecipe()
	assert.ErrorContains(t, err, "failed to read recipe script")
}

func TestActiveProject_Unset(t *testing.T) {
	_, err := config.Default().ActiveProject()
	assert.ErrorIs(t, err, domain.ErrNoActiveProject)
}
