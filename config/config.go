package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Recycle  RecycleConfig  `mapstructure:"recycle"`
	Import   ImportConfig   `mapstructure:"import"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

type DatabaseConfig struct {
	DSN           string `mapstructure:"dsn"`
	MaxConns      int    `mapstructure:"max_conns"`
	LogLevel      string `mapstructure:"log_level"`
	PrivilegedDSN string `mapstructure:"privileged_dsn"`
	// SSMParameter names an SSM parameter holding yaml database entries.
	// When set, the entry named Schema replaces DSN.
	SSMParameter string `mapstructure:"ssm_parameter"`
	Schema       string `mapstructure:"schema"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	RevalidateAfter time.Duration `mapstructure:"revalidate_after"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RecycleConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type ImportConfig struct {
	MaxBytes      int64  `mapstructure:"max_bytes"`
	ChunkSize     int    `mapstructure:"chunk_size"`
	ArchiveBucket string `mapstructure:"archive_bucket"`
}

type SlackConfig struct {
	Token        string `mapstructure:"token"`
	InfoChannel  string `mapstructure:"info_channel"`
	ErrorChannel string `mapstructure:"error_channel"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration with precedence env > file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.static_dir", "./public")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.log_level", "warn")
	v.SetDefault("db.privileged_dsn", "")
	v.SetDefault("db.ssm_parameter", "")
	v.SetDefault("db.schema", "piecework")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.revalidate_after", "24h")
	v.SetDefault("auth.query_timeout", "8s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("recycle.retention", "2400h")
	v.SetDefault("recycle.sweep_schedule", "@every 1h")

	v.SetDefault("import.max_bytes", 10<<20)
	v.SetDefault("import.chunk_size", 100)
	v.SetDefault("import.archive_bucket", "")

	v.SetDefault("slack.token", "")
	v.SetDefault("slack.info_channel", "")
	v.SetDefault("slack.error_channel", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PIECEWORK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the process cannot start with at all.
// Missing credentials are not fatal; see Problems.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be between 1 and 65535")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("config: db.max_conns must be positive")
	}
	if c.Import.ChunkSize <= 0 {
		return fmt.Errorf("config: import.chunk_size must be positive")
	}
	if c.Import.MaxBytes <= 0 {
		return fmt.Errorf("config: import.max_bytes must be positive")
	}
	if c.Recycle.Retention <= 0 {
		return fmt.Errorf("config: recycle.retention must be positive")
	}
	return nil
}

var placeholders = []string{
	"changeme",
	"change-me",
	"your-",
	"placeholder",
	"<",
	"xxx",
}

func isPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	for _, p := range placeholders {
		if strings.Contains(v, p) {
			return true
		}
	}
	return false
}

// Problems lists configuration errors that force degraded mode.
func (c *Config) Problems() []string {
	var problems []string
	if c.Database.SSMParameter == "" && isPlaceholder(c.Database.DSN) {
		problems = append(problems, "db.dsn is missing or a placeholder")
	}
	if isPlaceholder(c.Auth.JWTSecret) {
		problems = append(problems, "auth.jwt_secret is missing or a placeholder")
	} else if len(c.Auth.JWTSecret) < 16 {
		problems = append(problems, "auth.jwt_secret must be at least 16 characters")
	}
	return problems
}

func (c *Config) Degraded() bool {
	return len(c.Problems()) > 0
}
