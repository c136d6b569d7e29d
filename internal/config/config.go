// Package config loads service settings from defaults, an optional YAML
// file, SIMGUARD_* environment variables and bound command line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SIMGUARD"

// Config is the resolved service configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Bus       BusConfig       `mapstructure:"bus"`
	WS        WSConfig        `mapstructure:"ws"`
	SeedFile  string          `mapstructure:"seed_file"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GeneratorConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
	Seed        uint64        `mapstructure:"seed"`
}

type BusConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type WSConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

const (
	defaultMinInterval  = 10 * time.Second
	defaultMaxInterval  = 25 * time.Second
	defaultQueueSize    = 32
	maxQueueSize        = 1024
	defaultWriteTimeout = 5 * time.Second
)

// SetDefaults registers every key with its default value so environment
// overrides resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", defaultAddr())
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("generator.enabled", true)
	v.SetDefault("generator.min_interval", defaultMinInterval)
	v.SetDefault("generator.max_interval", defaultMaxInterval)
	v.SetDefault("generator.seed", 0)
	v.SetDefault("bus.queue_size", defaultQueueSize)
	v.SetDefault("ws.write_timeout", defaultWriteTimeout)
	v.SetDefault("ws.ping_interval", 30*time.Second)
	v.SetDefault("seed_file", "")
}

// Load resolves the configuration held by v. When file is non-empty it is
// read as YAML first. The bare PORT variable only changes the default
// address, so a file or SIMGUARD_HTTP_ADDR still wins.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaultAddr listens on $PORT when set, else :8080.
func defaultAddr() string {
	addr := ":" + strings.TrimSpace(os.Getenv("PORT"))
	if addr == ":" {
		addr = ":8080"
	}
	return addr
}

func (c *Config) normalize() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr: empty address")
	}

	if c.Generator.MinInterval <= 0 {
		c.Generator.MinInterval = defaultMinInterval
	}
	if c.Generator.MaxInterval < c.Generator.MinInterval {
		c.Generator.MaxInterval = c.Generator.MinInterval
	}
	if c.Bus.QueueSize < 1 {
		c.Bus.QueueSize = defaultQueueSize
	}
	if c.Bus.QueueSize > maxQueueSize {
		c.Bus.QueueSize = maxQueueSize
	}
	if c.WS.WriteTimeout <= 0 {
		c.WS.WriteTimeout = defaultWriteTimeout
	}
	if c.WS.PingInterval < 0 {
		c.WS.PingInterval = 0
	}
	return nil
}
