package command

import (
	"errors"
	"strings"
)

const (
	TypeCustom = "custom"
	TypeMaven  = "mvn"
)

// Custom runs an arbitrary shell command line.
type Custom struct {
	Line string `mapstructure:"command_line"`
}

func (c *Custom) CommandLine() (string, error) {
	line := strings.TrimSpace(c.Line)
	if line == "" {
		return "", errors.New("command_line is required")
	}
	return line, nil
}

// Maven runs maven goals, optionally inside a working directory.
type Maven struct {
	WorkingDir  string   `mapstructure:"working_dir"`
	Goals       []string `mapstructure:"goals"`
	Profiles    []string `mapstructure:"profiles"`
	SkipTests   bool     `mapstructure:"skip_tests"`
	Offline     bool     `mapstructure:"offline"`
	ExtraParams string   `mapstructure:"extra_params"`
}

func (m *Maven) CommandLine() (string, error) {
	if len(m.Goals) == 0 {
		return "", errors.New("at least one goal is required")
	}

	mvn := []string{"mvn"}
	if m.Offline {
		mvn = append(mvn, "-o")
	}
	if len(m.Profiles) > 0 {
		mvn = append(mvn, "-P"+strings.Join(m.Profiles, ","))
	}
	mvn = append(mvn, m.Goals...)
	if m.SkipTests {
		mvn = append(mvn, "-DskipTests")
	}

	line := joinNonEmpty(strings.Join(mvn, " "), m.ExtraParams)
	if m.WorkingDir != "" {
		line = "cd " + m.WorkingDir + " && " + line
	}
	return line, nil
}
