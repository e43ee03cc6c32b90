package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "name: munin\nlimit: 42\n")
	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "munin" || cfg.Limit != 42 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("MUNIN_TEST_NAME", "expanded")
	path := writeConfig(t, "name: ${MUNIN_TEST_NAME}\n")
	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "expanded" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want wrapped ErrNotExist", err)
	}
}

func TestLoadIfPresent_MissingFileKeepsDefaults(t *testing.T) {
	cfg := testConfig{Name: "default", Limit: 7}
	if err := LoadIfPresent(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" || cfg.Limit != 7 {
		t.Errorf("cfg = %+v, defaults should be untouched", cfg)
	}
}

type invalidConfig struct {
	Name string `yaml:"name"`
}

func (c *invalidConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name required")
	}
	return nil
}

func TestLoad_RunsValidator(t *testing.T) {
	path := writeConfig(t, "name: \"\"\n")
	var cfg invalidConfig
	if err := Load(path, &cfg); err == nil {
		t.Error("expected validation error")
	}
}
