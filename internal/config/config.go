// ABOUTME: Forma configuration loaded with viper from file, environment and defaults.
// ABOUTME: Also builds the storage options for the configured backend.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/snapshot"
	"github.com/harperreed/forma/internal/storage"
)

// EnvPrefix is the prefix of environment overrides, e.g. FORMA_BACKEND.
const EnvPrefix = "FORMA"

// Backends lists the accepted values of the backend key.
var Backends = []string{"sqlite", "badger", "charm", "flat", "memory"}

// Config stores forma configuration.
type Config struct {
	// Backend selects the storage engine. Defaults to "sqlite".
	Backend string `mapstructure:"backend"`

	// DataDir is the root directory for data storage. Supports ~ expansion.
	// Defaults to ~/.local/share/forma.
	DataDir string `mapstructure:"data_dir"`

	Session  SessionConfig     `mapstructure:"session"`
	Seed     SeedConfig        `mapstructure:"seed"`
	Security SecurityConfig    `mapstructure:"security"`
	Charm    CharmConfig       `mapstructure:"charm"`
	S3       snapshot.S3Config `mapstructure:"s3"`
}

type SessionConfig struct {
	Dir    string        `mapstructure:"dir"`
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type SeedConfig struct {
	Dir          string `mapstructure:"dir"`
	DemoPassword string `mapstructure:"demo_password"`
	Disabled     bool   `mapstructure:"disabled"`
}

type SecurityConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type CharmConfig struct {
	Host     string `mapstructure:"host"`
	DBName   string `mapstructure:"db_name"`
	AutoSync bool   `mapstructure:"auto_sync"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return "sqlite"
	}
	return strings.ToLower(c.Backend)
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetSessionDir returns the directory holding the session file.
func (c *Config) GetSessionDir() string {
	if c.Session.Dir == "" {
		return auth.RuntimeDir()
	}
	return ExpandPath(c.Session.Dir)
}

// GetSeedDir returns the seed dataset override directory, or "".
func (c *Config) GetSeedDir() string {
	return ExpandPath(c.Seed.Dir)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Opener returns the storage opener of the configured backend.
func (c *Config) Opener() (storage.Opener, error) {
	dataDir := c.GetDataDir()

	switch c.GetBackend() {
	case "sqlite":
		return storage.SQLiteOpener(filepath.Join(dataDir, "forma.db")), nil
	case "badger":
		return storage.BadgerOpener(c.BackendDir("badger")), nil
	case "charm":
		return storage.CharmOpener(c.CharmOptions()), nil
	case "flat":
		return storage.FlatDirOpener(c.BackendDir("flat")), nil
	case "memory":
		return storage.MemoryOpener(), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q (use %s)", c.Backend, strings.Join(Backends, ", "))
	}
}

// CharmOptions returns the options of the charm engine.
func (c *Config) CharmOptions() storage.CharmOptions {
	return storage.CharmOptions{
		DBName:   c.Charm.DBName,
		Host:     c.Charm.Host,
		AutoSync: c.Charm.AutoSync,
	}
}

// BackendDir returns the directory a backend keeps to itself, or "" for
// backends stored in a single file or outside the data directory.
func (c *Config) BackendDir(backend string) string {
	switch strings.ToLower(backend) {
	case "badger":
		return filepath.Join(c.GetDataDir(), "badger")
	case "flat":
		return c.FlatDir()
	default:
		return ""
	}
}

// FlatDir is where the flat fallback engine keeps its files.
func (c *Config) FlatDir() string {
	return filepath.Join(c.GetDataDir(), "flat")
}

// StoreOptions builds storage options: the configured backend, falling back
// to the flat engine under the data directory.
func (c *Config) StoreOptions(logger *zap.Logger) (storage.Options, error) {
	opener, err := c.Opener()
	if err != nil {
		return storage.Options{}, err
	}
	opts := storage.Options{Durable: opener, Logger: logger}
	switch c.GetBackend() {
	case "memory":
		opts.Fallback = storage.MemoryOpener()
	default:
		opts.Fallback = storage.FlatDirOpener(c.FlatDir())
	}
	return opts, nil
}

// SessionSecret returns the key signing session tokens. Without a configured
// secret a random key is created once under the data directory.
func (c *Config) SessionSecret() ([]byte, error) {
	if c.Session.Secret != "" {
		return []byte(c.Session.Secret), nil
	}

	path := filepath.Join(c.GetDataDir(), "session.key")
	data, err := os.ReadFile(path)
	if err == nil && len(strings.TrimSpace(string(data))) > 0 {
		return []byte(strings.TrimSpace(string(data))), nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	key := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(key), 0600); err != nil {
		return nil, fmt.Errorf("write session key: %w", err)
	}
	return []byte(key), nil
}

// GetConfigDir returns the directory searched for config.yaml.
func GetConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "forma")
}

// GetConfigPath returns the default config file path.
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "sqlite")
	v.SetDefault("data_dir", "")
	v.SetDefault("session.dir", "")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", auth.DefaultSessionTTL)
	v.SetDefault("seed.dir", "")
	v.SetDefault("seed.demo_password", "")
	v.SetDefault("seed.disabled", false)
	v.SetDefault("security.bcrypt_cost", 0)
	v.SetDefault("charm.host", storage.CharmHost)
	v.SetDefault("charm.db_name", storage.CharmDBName)
	v.SetDefault("charm.auto_sync", true)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
}

// Load reads config.yaml from the config directory, applies FORMA_*
// environment overrides and defaults. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load reading an explicit file. An empty path searches the
// default config directory.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(GetConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Opener(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
