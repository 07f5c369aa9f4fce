package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ClientConfig holds settings for the offline client.
type ClientConfig struct {
	API   APIConfig
	Store StoreConfig
	Sync  SyncConfig
	User  UserConfig
	Log   LogConfig
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig holds the local sqlite settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type SyncConfig struct {
	Workers       int           `mapstructure:"workers"`
	PullInterval  time.Duration `mapstructure:"pull_interval"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type UserConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LoadClient reads configuration from file, env and flags, in increasing
// precedence. Env var overrides use prefix LEDGERSYNC_. flags may be nil.
func LoadClient(flags *pflag.FlagSet) (ClientConfig, error) {
	v := viper.New()

	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("store.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "ledgersync", "ledgersync.db"))
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.pull_interval", 5*time.Minute)
	v.SetDefault("sync.probe_interval", 30*time.Second)
	v.SetDefault("user.id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("LEDGERSYNC_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "ledgersync"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LEDGERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return ClientConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	// read config file if present
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && cfgPath != "" {
			return ClientConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c ClientConfig
	if err := v.Unmarshal(&c); err != nil {
		return ClientConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.Sync.Workers < 1 {
		c.Sync.Workers = 1
	}
	if c.Sync.Workers > 4 {
		c.Sync.Workers = 4
	}
	return c, nil
}

// ClientFlags declares the flags LoadClient understands. Flag names match
// config keys so viper binds them directly.
func ClientFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("api.base_url", "", "remote API base URL")
	fs.String("api.token", "", "bearer token for the remote API")
	fs.Duration("api.timeout", 0, "timeout for each remote call")
	fs.String("store.path", "", "path of the local sqlite store")
	fs.Int("sync.workers", 0, "entities synced concurrently (max 4)")
	fs.Duration("sync.pull_interval", 0, "interval between scheduled pulls")
	fs.Duration("sync.probe_interval", 0, "interval between connectivity probes")
	fs.String("user.id", "", "current user id")
	fs.String("log.level", "", "log level")
	return fs
}
