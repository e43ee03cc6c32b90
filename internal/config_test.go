package internal

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate_Backend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Index.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg = NewDefaultConfig()
	cfg.Index.Backend = BackendSQLite
	cfg.Index.SQLitePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("sqlite backend without a path should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Index.Backend = BackendJSON
	cfg.Index.JSONPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("json backend without a path should fail")
	}
}

func TestConfigValidate_RequiredPaths(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Corpus.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty corpus path should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Plans.TeamDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty team dir should fail")
	}
}
