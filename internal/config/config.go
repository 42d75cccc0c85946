package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/physical-ai-textbook/textbook-search/internal/search"
	"github.com/physical-ai-textbook/textbook-search/internal/storage"
)

const defaultConfigPath = "textbook-search.json"

// Config matches the JSON config file shared by the build, server and
// search commands.
type Config struct {
	Site       string        `json:"site"`
	ContentDir string        `json:"content_dir"`
	OutputDir  string        `json:"output_dir"`
	IndexFile  string        `json:"index_file"`
	SQLite     bool          `json:"sqlite"`
	Workers    int           `json:"workers"`
	RootModule string        `json:"root_module"`
	BaseURL    string        `json:"base_url"`
	LogLevel   string        `json:"log_level"`
	Search     search.Config `json:"search"`
	Server     Server        `json:"server"`
}

type Server struct {
	Addr      string  `json:"addr"`
	PublicDir string  `json:"public_dir"`
	RateLimit float64 `json:"rate_limit"` // requests per second on /api/
	Burst     int     `json:"burst"`
	CacheSize int     `json:"cache_size"`
}

func DefaultPath() string {
	if path := os.Getenv("TEXTBOOK_SEARCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		ContentDir: "docs",
		OutputDir:  "static",
		IndexFile:  storage.DefaultIndexName,
		LogLevel:   "info",
		Search:     search.DefaultConfig(),
		Server: Server{
			Addr:      ":8080",
			RateLimit: 20,
			Burst:     40,
			CacheSize: 512,
		},
	}
}

// Load reads path over the defaults and validates the result. Keys absent
// from the file keep their default values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.ContentDir == "" {
		return errors.New("config content_dir is required")
	}
	if c.OutputDir == "" {
		return errors.New("config output_dir is required")
	}
	if c.IndexFile == "" || strings.ContainsAny(c.IndexFile, `/\`) {
		return fmt.Errorf("config index_file must be a plain file name, got %q", c.IndexFile)
	}
	if c.Workers < 0 {
		return errors.New("config workers must not be negative")
	}
	if c.Site != "" && !strings.HasPrefix(c.Site, "http://") && !strings.HasPrefix(c.Site, "https://") {
		return fmt.Errorf("config site must be an http(s) URL, got %q", c.Site)
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
		return errors.New("config server rate_limit and burst must not be negative")
	}
	if c.Server.CacheSize < 0 {
		return errors.New("config server cache_size must not be negative")
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("config search: %w", err)
	}
	return nil
}

// IndexPath is where the build writes the JSON artifact and where the
// server loads it from.
func (c *Config) IndexPath() string {
	return filepath.Join(c.OutputDir, c.IndexFile)
}

// SQLitePath is the SQLite mirror next to the artifact.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.OutputDir, strings.TrimSuffix(c.IndexFile, filepath.Ext(c.IndexFile))+".db")
}

func (c *Config) SiteURL() string {
	return strings.TrimRight(c.Site, "/")
}

// PublicDir is the directory the server serves static files from. It
// defaults to the build output directory.
func (c *Config) PublicDir() string {
	if c.Server.PublicDir != "" {
		return c.Server.PublicDir
	}
	return c.OutputDir
}
