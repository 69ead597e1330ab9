package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoCachePath is returned when a rebuild is requested without a cache location.
var ErrNoCachePath = errors.New("no folksonomy cache path configured")

type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
)

const (
	FormatSQLite = "sqlite"
	FormatBolt   = "bolt"
)

// Config holds every recognised option. Rendering decorations are carried for the
// renderer only; indexing and ranking never read them.
type Config struct {
	Path string `yaml:"-"`

	DataDir              string   `yaml:"datadir"`
	BaseURL              string   `yaml:"base_url"`
	TagURL               string   `yaml:"tag_url"`
	TagURLDisplay        string   `yaml:"tag_url_display"`
	IgnoreTags           []string `yaml:"ignore_tags"`
	IgnoreDirectories    []string `yaml:"ignore_directories"`
	TaggableExtensions   []string `yaml:"taggable_extensions"`
	CachePath            string   `yaml:"cache_path"`
	CacheFormat          string   `yaml:"cache_format"`
	PreText              string   `yaml:"pretext"`
	PostText             string   `yaml:"posttext"`
	TagSep               string   `yaml:"tagsep"`
	RelatedStoriesHeader string   `yaml:"relatedstories_header"`

	// Sources records where the path-like options were resolved from.
	Sources map[string]ValueSource `yaml:"-"`
}

type Overrides struct {
	ConfigPath string
	DataDir    string
	CachePath  string
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".folksonomy", "config.yaml")
}

// Load resolves configuration with precedence defaults < file < env < CLI.
// A missing configuration file is not an error.
func Load(o Overrides) (Config, error) {
	path := strings.TrimSpace(o.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg.Path = path
	cfg.Sources = map[string]ValueSource{}
	if cfg.DataDir != "" {
		cfg.Sources["datadir"] = SourceConfig
	}
	if cfg.CachePath != "" {
		cfg.Sources["cache_path"] = SourceConfig
	}

	cfg.applyEnv("datadir", &cfg.DataDir, "FOLKSONOMY_DATADIR")
	cfg.applyEnv("cache_path", &cfg.CachePath, "FOLKSONOMY_CACHE")
	cfg.applyEnv("cache_format", &cfg.CacheFormat, "FOLKSONOMY_CACHE_FORMAT")
	cfg.applyEnv("base_url", &cfg.BaseURL, "FOLKSONOMY_BASE_URL")

	cfg.apply("datadir", &cfg.DataDir, o.DataDir, SourceCLI)
	cfg.apply("cache_path", &cfg.CachePath, o.CachePath, SourceCLI)

	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.DataDir == "" {
		c.DataDir = "."
		c.Sources["datadir"] = SourceDefault
	}
	c.DataDir = expandUserPath(c.DataDir)
	c.CachePath = expandUserPath(c.CachePath)

	if len(c.TaggableExtensions) == 0 {
		c.TaggableExtensions = []string{"txt"}
	}
	if c.CacheFormat == "" {
		c.CacheFormat = FormatSQLite
	}
	if c.TagURL == "" {
		c.TagURL = strings.TrimSuffix(c.BaseURL, "/") + "/tags/"
	}
	if c.TagURLDisplay == "" {
		c.TagURLDisplay = c.TagURL
	}
	if c.TagSep == "" {
		c.TagSep = ", "
	}
}

// RequireCachePath fails with ErrNoCachePath when caching is disabled.
func (c Config) RequireCachePath() (string, error) {
	if strings.TrimSpace(c.CachePath) == "" {
		return "", fmt.Errorf("%w (set cache_path in %s or FOLKSONOMY_CACHE)", ErrNoCachePath, c.Path)
	}
	return c.CachePath, nil
}

func (c *Config) apply(key string, dst *string, raw string, source ValueSource) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = v
	c.Sources[key] = source
}

func (c *Config) applyEnv(key string, dst *string, envKey string) {
	c.apply(key, dst, os.Getenv(envKey), SourceEnv)
}

func loadFile(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
