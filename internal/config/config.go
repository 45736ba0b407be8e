package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
)

// Duration is a time.Duration that decodes from strings such as "1s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	str := strings.TrimSpace(string(text))
	if str == "" {
		return fmt.Errorf("invalid duration: empty string")
	}
	parsed, err := time.ParseDuration(str)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", str, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("duration %q must be positive", str)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type StorageConfig struct {
	// Driver is "file" or "sqlite".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type BridgeConfig struct {
	Listen         string   `toml:"listen"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DBusConfig struct {
	Enabled *bool `toml:"enabled"`
	// Bus is "system" or "session".
	Bus string `toml:"bus"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type Config struct {
	NumSets int           `toml:"num_sets"`
	Tick    Duration      `toml:"tick"`
	Storage StorageConfig `toml:"storage"`
	Bridge  BridgeConfig  `toml:"bridge"`
	DBus    DBusConfig    `toml:"dbus"`
	Log     LogConfig     `toml:"log"`
}

const (
	DefaultStoragePath = "/var/lib/tabwarden/options.json"
	DefaultListen      = "127.0.0.1:8731"
)

// SetDefault fills in every option left unset.
func (c *Config) SetDefault() {
	if c.NumSets <= 0 {
		c.NumSets = blockset.DefaultNumSets
	}
	if c.Tick.Duration <= 0 {
		c.Tick.Duration = time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Bridge.Listen == "" {
		c.Bridge.Listen = DefaultListen
	}
	if c.DBus.Enabled == nil {
		defaultVal := true
		c.DBus.Enabled = &defaultVal
	}
	if c.DBus.Bus == "" {
		c.DBus.Bus = "system"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File != "" {
		if c.Log.MaxSizeMB <= 0 {
			c.Log.MaxSizeMB = 10
		}
		if c.Log.MaxBackups <= 0 {
			c.Log.MaxBackups = 3
		}
		if c.Log.MaxAgeDays <= 0 {
			c.Log.MaxAgeDays = 28
		}
	}
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.DBus.Bus {
	case "system", "session":
	default:
		return fmt.Errorf("unknown dbus bus %q", c.DBus.Bus)
	}
	return nil
}

var AppConfig Config

func LoadConfigFromFile(path string) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		// A missing config file means defaults everywhere.
		return LoadConfigFromBytes(nil)
	}
	if err != nil {
		return err
	}
	defer file.Close()
	decoder := toml.NewDecoder(file)
	var config Config
	err = decoder.Decode(&config)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return apply(config)
}

func LoadConfigFromBytes(data []byte) error {
	var config Config
	err := toml.Unmarshal(data, &config)
	if err != nil {
		return err
	}
	return apply(config)
}

func apply(config Config) error {
	config.SetDefault()
	if err := config.Validate(); err != nil {
		return err
	}
	AppConfig = config
	return nil
}
