package config

import (
	"strings"
	"testing"

	apperrors "github.com/AllianceSoftware/csvpermissions-go/errors"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("CSV_PERMISSIONS_PATHS", "permissions.csv,extra/permissions.csv")
	t.Setenv("CSV_PERMISSIONS_STRICT", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if len(cfg.Paths) != 2 || cfg.Paths[0] != "permissions.csv" || cfg.Paths[1] != "extra/permissions.csv" {
		t.Fatalf("paths = %v", cfg.Paths)
	}
	if !cfg.Strict {
		t.Fatal("expected strict mode")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("CSV_PERMISSIONS_PATHS", "permissions.csv")
	t.Setenv("CSV_PERMISSIONS_STRICT", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Strict {
		t.Fatal("strict should default off")
	}
}

func TestFromEnvRequiresPaths(t *testing.T) {
	t.Setenv("CSV_PERMISSIONS_PATHS", "")

	_, err := FromEnv()
	if !apperrors.IsCode(err, apperrors.CodeConfigPathsMissing) {
		t.Fatalf("expected missing paths error, got %v", err)
	}
}

func TestFromEnvParseError(t *testing.T) {
	t.Setenv("CSV_PERMISSIONS_PATHS", "permissions.csv")
	t.Setenv("CSV_PERMISSIONS_STRICT", "not-a-bool")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestSources(t *testing.T) {
	cfg := Config{Paths: []string{"a.csv", "b.csv"}}
	sources := cfg.Sources()
	if len(sources) != 2 {
		t.Fatalf("sources = %v", sources)
	}
	if sources[0].Identity() != "a.csv" || sources[1].Identity() != "b.csv" {
		t.Fatalf("identities = %q, %q", sources[0].Identity(), sources[1].Identity())
	}
}
