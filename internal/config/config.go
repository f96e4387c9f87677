package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultSecret signs session cookies when no secret is configured. It is
// only fit for local development.
const DefaultSecret = "prompter-dev-secret"

type RateLimitConfig struct {
	Messages int           `mapstructure:"messages"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode         string          `mapstructure:"mode"`
	Port         int             `mapstructure:"port"`
	StaticPath   string          `mapstructure:"static_path"`
	ReadLimit    int64           `mapstructure:"read_limit"`
	MaxMessage   int             `mapstructure:"max_message"`
	PingPeriod   time.Duration   `mapstructure:"ping_period"`
	WriteWait    time.Duration   `mapstructure:"write_wait"`
	SendBuffer   int             `mapstructure:"send_buffer"`
	Secret       string          `mapstructure:"secret"`
	LogLevel     string          `mapstructure:"log_level"`
	EnforceRoles bool            `mapstructure:"enforce_roles"`
	SeedDemo     bool            `mapstructure:"seed_demo"`
	MaxDrops     int             `mapstructure:"max_drops"`
	Backpressure string          `mapstructure:"backpressure"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

// PongWait is how long a connection may stay silent before it is dropped.
// It must exceed PingPeriod.
func (c *Config) PongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 2<<20)
	v.SetDefault("max_message", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", DefaultSecret)
	v.SetDefault("log_level", "info")
	v.SetDefault("enforce_roles", true)
	v.SetDefault("seed_demo", true)
	v.SetDefault("max_drops", 8)
	v.SetDefault("backpressure", "drop")
	v.SetDefault("rate_limit.messages", 60)
	v.SetDefault("rate_limit.interval", "1s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (CONFIG_FILE overrides the
// path), then PROMPTER_* environment variables, then any flags that were
// set explicitly. A missing file is not an error.
func Load(flags *pflag.FlagSet, logger zerolog.Logger) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if flags != nil {
		if f := flags.Lookup("config-env"); f != nil && f.Changed {
			env = f.Value.String()
		}
	}
	if env == "" {
		env = "dev"
	}
	fileName := os.Getenv("CONFIG_FILE")
	if fileName == "" {
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("PROMPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{"port", "mode", "static_path"} {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
		}
	}

	log := logger.With().Str("module", "config").Logger()
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PingPeriod <= 0 {
		return nil, fmt.Errorf("ping_period must be positive, got %s", cfg.PingPeriod)
	}
	if cfg.WriteWait <= 0 {
		return nil, fmt.Errorf("write_wait must be positive, got %s", cfg.WriteWait)
	}
	if cfg.ReadLimit > 0 && int64(cfg.MaxMessage) > cfg.ReadLimit {
		return nil, fmt.Errorf("max_message (%d) must not exceed read_limit (%d)", cfg.MaxMessage, cfg.ReadLimit)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("secret must not be empty")
	}
	if cfg.Secret == DefaultSecret && cfg.Mode != "debug" {
		log.Warn().Str("mode", cfg.Mode).Msg("session cookies are signed with the built-in development secret, set PROMPTER_SECRET")
	}
	log.Info().Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}
