package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.IndexPath == "" {
		t.Error("IndexPath should not be empty")
	}

	if cfg.ListenAddr != ":43655" {
		t.Errorf("ListenAddr = %v, want :43655", cfg.ListenAddr)
	}

	if !cfg.EnableMultipleEntities {
		t.Error("EnableMultipleEntities should be true by default")
	}

	if cfg.DateTimeFormat != DefaultDateTimeFormat {
		t.Errorf("DateTimeFormat = %v, want %v", cfg.DateTimeFormat, DefaultDateTimeFormat)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DefaultLimit != Default().DefaultLimit {
		t.Errorf("DefaultLimit = %v, want %v", cfg.DefaultLimit, Default().DefaultLimit)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected default config to be written: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
index_path = ""
enable_multiple_entities = false
default_analyzer = "standard"
mapping_version = "7"
default_limit = 5
read_only = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IndexPath != "" {
		t.Errorf("IndexPath = %q, want empty", cfg.IndexPath)
	}
	if cfg.EnableMultipleEntities {
		t.Error("EnableMultipleEntities should be false")
	}
	if cfg.DefaultAnalyzer != "standard" {
		t.Errorf("DefaultAnalyzer = %v, want standard", cfg.DefaultAnalyzer)
	}
	if cfg.MappingVersion != "7" {
		t.Errorf("MappingVersion = %v, want 7", cfg.MappingVersion)
	}
	if !cfg.ReadOnly {
		t.Error("ReadOnly should be true")
	}
	if cfg.DateTimeFormat != DefaultDateTimeFormat {
		t.Errorf("DateTimeFormat should keep its default, got %v", cfg.DateTimeFormat)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "default_limit = ["},
		{"negative limit", "default_limit = -1"},
		{"limit above max", "default_limit = 50\nmax_limit = 10"},
		{"empty analyzer", "default_analyzer = \"\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errdefs.Is(err, errdefs.ErrTypeInvalidConfig) {
				t.Errorf("error type = %v, want invalid config", err)
			}
		})
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.ExternalAnalyzer = "standard"
	cfg.WatchSchema = false

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.ExternalAnalyzer != "standard" {
		t.Errorf("ExternalAnalyzer = %v, want standard", loaded.ExternalAnalyzer)
	}
	if loaded.WatchSchema {
		t.Error("WatchSchema should be false")
	}
}

func TestConfig_ClampLimit(t *testing.T) {
	cfg := Default()
	cfg.DefaultLimit = 20
	cfg.MaxLimit = 100

	tests := []struct {
		in   int
		want int
	}{
		{0, 20},
		{-3, 20},
		{7, 7},
		{100, 100},
		{500, 100},
	}

	for _, tt := range tests {
		if got := cfg.ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	got := GetDefaultConfigPath()
	if filepath.Base(got) != "config.toml" {
		t.Errorf("GetDefaultConfigPath() = %v", got)
	}
}
