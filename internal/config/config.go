package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/BurntSushi/toml"
)

const DefaultDateTimeFormat = "2006-01-02T15:04:05"

type Config struct {
	IndexPath              string `toml:"index_path"`
	SchemaPath             string `toml:"schema_path"`
	ListenAddr             string `toml:"listen_addr"`
	EnableMultipleEntities bool   `toml:"enable_multiple_entities"`
	DefaultAnalyzer        string `toml:"default_analyzer"`
	ExternalAnalyzer       string `toml:"external_analyzer,omitempty"`
	MappingVersion         string `toml:"mapping_version"`
	DateTimeFormat         string `toml:"datetime_format"`
	ReadOnly               bool   `toml:"read_only"`
	WatchSchema            bool   `toml:"watch_schema"`
	DefaultLimit           int    `toml:"default_limit"`
	MaxLimit               int    `toml:"max_limit"`
	LogLevel               string `toml:"log_level"`
}

func Default() *Config {
	return &Config{
		IndexPath:              getDefaultIndexPath(),
		SchemaPath:             getDefaultSchemaPath(),
		ListenAddr:             ":43655",
		EnableMultipleEntities: true,
		DefaultAnalyzer:        "keyword",
		MappingVersion:         "1",
		DateTimeFormat:         DefaultDateTimeFormat,
		WatchSchema:            true,
		DefaultLimit:           20,
		MaxLimit:               1000,
		LogLevel:               "info",
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cfg.Save(path); err != nil {
			log.Warnf("failed to create default config at %s: %v", path, err)
		} else {
			log.Infof("created default config at %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	f.WriteString("# DankQuery Configuration\n")
	f.WriteString("# index_path = \"\" keeps the index in memory\n\n")

	return toml.NewEncoder(f).Encode(c)
}

func (c *Config) Validate() error {
	var problems []string

	if c.DefaultLimit <= 0 {
		problems = append(problems, "default_limit must be positive")
	}
	if c.MaxLimit > 0 && c.DefaultLimit > c.MaxLimit {
		problems = append(problems, fmt.Sprintf("default_limit %d exceeds max_limit %d", c.DefaultLimit, c.MaxLimit))
	}
	if strings.TrimSpace(c.DefaultAnalyzer) == "" {
		problems = append(problems, "default_analyzer must be set")
	}
	if c.DateTimeFormat == "" {
		problems = append(problems, "datetime_format must be set")
	}

	if len(problems) > 0 {
		return errdefs.NewCustomError(errdefs.ErrTypeInvalidConfig, strings.Join(problems, "; "), nil)
	}
	return nil
}

// ClampLimit applies DefaultLimit to non-positive limits and caps at MaxLimit.
func (c *Config) ClampLimit(limit int) int {
	if limit <= 0 {
		return c.DefaultLimit
	}
	if c.MaxLimit > 0 && limit > c.MaxLimit {
		return c.MaxLimit
	}
	return limit
}

func cacheBase() string {
	if runtime.GOOS == "windows" {
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}
		return base
	}
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".cache")
	}
	return base
}

func configBase() string {
	if runtime.GOOS == "windows" {
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return base
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return base
}

func getDefaultIndexPath() string {
	return filepath.Join(cacheBase(), "dankquery", "index")
}

func getDefaultSchemaPath() string {
	return filepath.Join(configBase(), "dankquery", "schema.toml")
}

func GetDefaultConfigPath() string {
	return filepath.Join(configBase(), "dankquery", "config.toml")
}
