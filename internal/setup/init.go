// Package setup handles deckplan workspace initialization.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/deckplan/internal/model"
	"github.com/msageha/deckplan/templates"
)

const deckplanDir = ".deckplan"

// Run initializes the .deckplan/ directory structure in the given
// project directory. projectName overrides the auto-detected name
// (defaults to the directory basename when empty).
func Run(projectDir, projectName string) error {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, deckplanDir)

	if _, err := os.Stat(base); err == nil {
		return fmt.Errorf("%s already exists", base)
	}

	cfg, err := generateConfig(absDir, projectName)
	if err != nil {
		return fmt.Errorf("generate config: %w", err)
	}

	dirs := []string{
		cfg.Storage.Dir,
		cfg.Storage.ConfigsDir,
		"protocols",
		"locks",
		"logs",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	if err := writeYAML(filepath.Join(base, "config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}

	if err := copyTemplateFile("protocols/example_protocol.yaml",
		filepath.Join(base, "protocols", "example_protocol.yaml")); err != nil {
		return err
	}

	// The session lock file must exist before the first wizard command.
	if err := os.WriteFile(filepath.Join(base, "locks", "session.lock"), nil, 0600); err != nil {
		return fmt.Errorf("create session.lock: %w", err)
	}

	return nil
}

func copyTemplateFile(name, dst string) error {
	data, err := fs.ReadFile(templates.FS, name)
	if err != nil {
		return fmt.Errorf("read template %s: %w", name, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func generateConfig(projectDir, projectName string) (*model.Config, error) {
	data, err := fs.ReadFile(templates.FS, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("read config template: %w", err)
	}

	var cfg model.Config
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}

	if projectName != "" {
		cfg.Project.Name = projectName
	} else {
		cfg.Project.Name = filepath.Base(projectDir)
	}
	cfg.Deckplan.WorkspaceRoot = projectDir
	cfg.Deckplan.Created = time.Now().Format(time.RFC3339)
	cfg.ApplyDefaults()

	return &cfg, nil
}

func writeYAML(path string, v any) error {
	data, err := yamlv3.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
