package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	API       APIConfig
	Download  DownloadConfig
	Log       LogConfig
	Chat      ChatConfig
	DevServer DevServerConfig `mapstructure:"devserver"`
}

// APIConfig points the client at the document backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DownloadConfig controls where generated documents are saved.
type DownloadConfig struct {
	Dir string
}

// LogConfig holds zap settings. Path "-" logs to stderr.
type LogConfig struct {
	Level  string
	Format string
	Path   string
}

// ChatConfig toggles the assistant pane.
type ChatConfig struct {
	Enabled bool
}

// DevServerConfig holds settings for the local reference backend.
type DevServerConfig struct {
	Addr         string
	DatabasePath string `mapstructure:"database_path"`
	Seed         bool
}

// Load reads configuration from .env, file and env. Env var overrides use prefix FORMDESK_.
func Load() (Config, error) {
	// a missing .env is the common case
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("FORMDESK_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(homeDir(), ".config", "formdesk"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("FORMDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		return Config{}, fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.Timeout <= 0 {
		return Config{}, fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	c.Download.Dir = expandHome(c.Download.Dir)
	c.Log.Path = expandHome(c.Log.Path)
	c.DevServer.DatabasePath = expandHome(c.DevServer.DatabasePath)
	return c, nil
}

func setDefaults(v *viper.Viper) {
	cache := cacheDir()
	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("download.dir", filepath.Join(homeDir(), "Downloads"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.path", filepath.Join(cache, "formdesk.log"))
	v.SetDefault("chat.enabled", true)
	v.SetDefault("devserver.addr", ":5000")
	v.SetDefault("devserver.database_path", filepath.Join(cache, "devserver.db"))
	v.SetDefault("devserver.seed", true)
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return os.Getenv("HOME")
}

func cacheDir() string {
	if d, err := os.UserCacheDir(); err == nil {
		return filepath.Join(d, "formdesk")
	}
	return filepath.Join(homeDir(), ".cache", "formdesk")
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
