package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds the configuration for the application.
type Config struct {
	Environment string `mapstructure:"environment"`
	Server      struct {
		Port            int           `mapstructure:"port"`
		CORSOrigins     []string      `mapstructure:"cors_origins"`
		BodyLimit       string        `mapstructure:"body_limit"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Storage struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"storage"`
	DB struct {
		URL      string `mapstructure:"url"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Solana struct {
		DefaultRPCURL string        `mapstructure:"default_rpc_url"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"solana"`
	Bags struct {
		BaseURL string        `mapstructure:"base_url"`
		APIKey  string        `mapstructure:"api_key"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"bags"`
	AI struct {
		BaseURL      string        `mapstructure:"base_url"`
		APIKey       string        `mapstructure:"api_key"`
		Model        string        `mapstructure:"model"`
		SuggestModel string        `mapstructure:"suggest_model"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"ai"`
	Cache struct {
		Enabled   bool          `mapstructure:"enabled"`
		Driver    string        `mapstructure:"driver"`
		TTL       time.Duration `mapstructure:"ttl"`
		Size      int           `mapstructure:"size"`
		RedisAddr string        `mapstructure:"redis_addr"`
	} `mapstructure:"cache"`
	Workflow struct {
		MaxNodes int `mapstructure:"max_nodes"`
		MaxEdges int `mapstructure:"max_edges"`
	} `mapstructure:"workflow"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	// ConfigFile is the config file viper read, empty when running on defaults and env only.
	ConfigFile string `mapstructure:"-"`
}

// legacyEnv maps config keys to the environment variable names used by existing deployments.
var legacyEnv = map[string]string{
	"server.port":            "PORT",
	"environment":            "ENVIRONMENT",
	"server.cors_origins":    "CORS_ORIGIN",
	"solana.default_rpc_url": "SOLANA_RPC_URL",
	"ai.api_key":             "OPENAI_API_KEY",
	"bags.api_key":           "BAGS_API_KEY",
	"log.level":              "LOG_LEVEL",
	"cache.enabled":          "CACHE_ENABLED",
	"cache.ttl":              "CACHE_TTL",
	"db.url":                 "DATABASE_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.body_limit", "10M")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("solana.default_rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.timeout", 30*time.Second)
	v.SetDefault("bags.base_url", "https://public-api-v2.bags.fm/api/v1")
	v.SetDefault("bags.timeout", 15*time.Second)
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o")
	v.SetDefault("ai.suggest_model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("workflow.max_nodes", 100)
	v.SetDefault("workflow.max_edges", 200)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("tls.cert_file", "certs/server.crt")
	v.SetDefault("tls.key_file", "certs/server.key")
}

// LoadConfig loads the configuration from an optional .env file, an optional
// config.yaml and the environment, in increasing order of precedence.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	config.ConfigFile = v.ConfigFileUsed()
	config.Server.CORSOrigins = splitOrigins(config.Server.CORSOrigins)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number %d", c.Server.Port)
	}
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("invalid environment %q", c.Environment)
	}
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Cache.Enabled && c.Cache.Driver == "redis" && c.Cache.RedisAddr == "" {
		return errors.New("cache.redis_addr is required for the redis cache driver")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// DatabaseURL returns the configured DSN, assembling one from the discrete
// fields when no URL was given.
func (c *Config) DatabaseURL() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

// splitOrigins accepts both a yaml list and a single comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, origin := range strings.Split(item, ",") {
			origin = strings.TrimRight(strings.TrimSpace(origin), "/")
			if origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}
