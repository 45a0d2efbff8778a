package setup

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/msageha/deckplan/internal/model"
)

func TestRun_CreatesDirectoryStructure(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "myproject")
	if err := os.Mkdir(projectDir, 0755); err != nil {
		t.Fatalf("create project dir: %v", err)
	}

	if err := Run(projectDir, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	base := filepath.Join(projectDir, ".deckplan")

	expectedDirs := []string{
		"state",
		"configurations",
		"protocols",
		"locks",
		"logs",
	}
	for _, d := range expectedDirs {
		path := filepath.Join(base, d)
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("directory %s does not exist: %v", d, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", d)
		}
	}

	if _, err := os.Stat(filepath.Join(base, "locks", "session.lock")); err != nil {
		t.Errorf("session.lock does not exist: %v", err)
	}
}

func TestRun_GeneratesConfig(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "myproject")
	os.Mkdir(projectDir, 0755)

	if err := Run(projectDir, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(projectDir, ".deckplan", "config.yaml"))
	if err != nil {
		t.Fatalf("read config.yaml: %v", err)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("parse config.yaml: %v", err)
	}

	if cfg.Project.Name != "myproject" {
		t.Errorf("project name = %q, want myproject", cfg.Project.Name)
	}
	if cfg.Deckplan.Created == "" {
		t.Error("created timestamp not set")
	}
	if cfg.Inference.StartingRail != 1 {
		t.Errorf("starting rail = %d, want 1", cfg.Inference.StartingRail)
	}
	if cfg.Matcher.CacheSize != 256 {
		t.Errorf("cache size = %d, want 256", cfg.Matcher.CacheSize)
	}
}

func TestRun_ProjectNameOverride(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "myproject")
	os.Mkdir(projectDir, 0755)

	if err := Run(projectDir, "custom-name"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(projectDir, ".deckplan", "config.yaml"))
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("parse config.yaml: %v", err)
	}
	if cfg.Project.Name != "custom-name" {
		t.Errorf("project name = %q, want custom-name", cfg.Project.Name)
	}
}

func TestRun_SeedsExampleProtocol(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "myproject")
	os.Mkdir(projectDir, 0755)

	if err := Run(projectDir, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(projectDir, ".deckplan", "protocols", "example_protocol.yaml"))
	if err != nil {
		t.Fatalf("read example protocol: %v", err)
	}

	var p model.Protocol
	if err := yaml.Unmarshal(data, &p); err != nil {
		t.Fatalf("parse example protocol: %v", err)
	}
	if p.ID == "" || len(p.Assets) == 0 {
		t.Errorf("example protocol incomplete: id=%q assets=%d", p.ID, len(p.Assets))
	}
}

func TestRun_FailsIfAlreadyInitialized(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "myproject")
	os.Mkdir(projectDir, 0755)

	if err := Run(projectDir, ""); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := Run(projectDir, ""); err == nil {
		t.Error("second Run should fail")
	}
}
