package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Library    LibraryConfig    `toml:"library"`
	Tidal      TidalConfig      `toml:"tidal"`
	Downloader DownloaderConfig `toml:"downloader"`
	Sync       SyncConfig       `toml:"sync"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LibraryConfig describes the on-disk music library layout.
type LibraryConfig struct {
	MusicRoot    string `toml:"music_root"`    // Root of the music library
	PlaylistsDir string `toml:"playlists_dir"` // Directory name under the root holding playlist folders
	FileFormat   string `toml:"file_format"`   // Target download format extension, e.g. "mp3" or "flac"
}

// TidalConfig contains Tidal API credentials and endpoint settings.
type TidalConfig struct {
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	BaseURL      string  `toml:"base_url"`
	TokenURL     string  `toml:"token_url"`
	RateLimit    float64 `toml:"rate_limit"` // Requests per second against the API
}

// DownloaderConfig configures the external download command.
type DownloaderConfig struct {
	Command string   `toml:"command"` // Executable invoked per track, e.g. "tidal-dl"
	Args    []string `toml:"args"`    // Extra arguments placed before the track id
}

// SyncConfig tunes reconciliation behavior.
type SyncConfig struct {
	DedupStrategy string `toml:"dedup_strategy"` // first_alphabetically, largest_playlist or prefer_existing
	DryRun        bool   `toml:"dry_run"`
}

// PlaylistsRoot returns the absolute directory holding one folder per playlist.
func (c *Config) PlaylistsRoot() string {
	dir := c.Library.PlaylistsDir
	if dir == "" {
		dir = "Playlists"
	}
	return filepath.Join(c.Library.MusicRoot, dir)
}

// Validate checks the settings a reconciliation run cannot proceed without.
func (c *Config) Validate() error {
	if c.Library.MusicRoot == "" {
		return fmt.Errorf("%w: library.music_root is required", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
