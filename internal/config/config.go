// Package config handles the XDG configuration directory, its files, and
// the settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	// AppName is the application directory name.
	AppName = "cloudtodo"

	// SettingsFile is the TOML settings filename.
	SettingsFile = "config.toml"

	// OAuthClientFile is the Google OAuth client credentials filename,
	// used for federated sign-in.
	OAuthClientFile = "oauth_client.json"

	// SessionFile is the persisted auth session filename.
	SessionFile = "session.json"

	// DefaultLocalDB is the SQLite filename used by the local backend.
	DefaultLocalDB = "todo.db"
)

// Backend names accepted in Settings.Backend.
const (
	BackendFirestore = "firestore"
	BackendLocal     = "local"
)

// Firebase holds the hosted project identifiers.
type Firebase struct {
	ProjectID string `toml:"project_id"`
	APIKey    string `toml:"api_key"`
	Database  string `toml:"database"`
}

// Local configures the embedded SQLite backend.
type Local struct {
	DBPath string `toml:"db_path"`
}

// Settings is the content of config.toml.
type Settings struct {
	Backend       string   `toml:"backend"`
	DefaultFilter string   `toml:"default_filter"`
	LogLevel      string   `toml:"log_level"`
	Firebase      Firebase `toml:"firebase"`
	Local         Local    `toml:"local"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Settings is loaded from config.toml, or defaults when it is absent.
	Settings Settings

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool
}

// New creates a Config for the default or specified config directory and
// loads config.toml from it when present.
// If configDir is empty, uses XDG_CONFIG_HOME/cloudtodo or $HOME/.config/cloudtodo.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir, Settings: DefaultSettings()}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultSettings returns the settings used when config.toml is absent.
func DefaultSettings() Settings {
	return Settings{
		Backend:       BackendFirestore,
		DefaultFilter: "all",
		LogLevel:      "warn",
		Firebase:      Firebase{Database: "(default)"},
		Local:         Local{DBPath: DefaultLocalDB},
	}
}

// Load reads config.toml over the current settings. A missing file is not
// an error.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.SettingsPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	}
	if err := toml.Unmarshal(data, &c.Settings); err != nil {
		return fmt.Errorf("invalid %s: %w", SettingsFile, err)
	}
	if c.Settings.Firebase.Database == "" {
		c.Settings.Firebase.Database = "(default)"
	}
	if c.Settings.Local.DBPath == "" {
		c.Settings.Local.DBPath = DefaultLocalDB
	}
	return nil
}

// Save writes the current settings to config.toml.
func (c *Config) Save() error {
	if err := c.EnsureDir(); err != nil {
		return err
	}
	data, err := toml.Marshal(c.Settings)
	if err != nil {
		return err
	}
	return os.WriteFile(c.SettingsPath(), data, 0600)
}

// SettingsPath returns the path to config.toml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// SessionPath returns the path to the persisted session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// LocalDBPath returns the SQLite path; relative paths resolve inside Dir.
func (c *Config) LocalDBPath() string {
	p := c.Settings.Local.DBPath
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasSession checks if the session file exists.
func (c *Config) HasSession() bool {
	_, err := os.Stat(c.SessionPath())
	return err == nil
}

// RemoveSession deletes the session file.
func (c *Config) RemoveSession() error {
	return os.Remove(c.SessionPath())
}
