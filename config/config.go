package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// Config holds all application configuration
type Config struct {
	ServerPort   string     `mapstructure:"SERVER_PORT"`
	GinMode      string     `mapstructure:"GIN_MODE"`
	DatabaseURL  string     `mapstructure:"DATABASE_URL"` // empty keeps settings in SETTINGS_FILE
	SettingsFile string     `mapstructure:"SETTINGS_FILE"`
	ResourceDir  string     `mapstructure:"RESOURCE_DIR"`
	OutputRoot   string     `mapstructure:"OUTPUT_ROOT"` // served requests may only write below this directory
	Auth         AuthConfig `mapstructure:"AUTH"`
	Log          LogConfig  `mapstructure:"LOG"`
}

// AuthConfig holds bearer-token settings for the HTTP surface
type AuthConfig struct {
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"` // auth is disabled when empty
	Issuer        string `mapstructure:"ISSUER"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"LEVEL"`
	Format string `mapstructure:"FORMAT"`
	File   string `mapstructure:"FILE"`
}

// AuthEnabled reports whether requests must carry a signed token.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSigningKey != ""
}

// IsLoopback reports whether a listen address only accepts local connections.
// An empty host (":8080") listens on every interface.
func IsLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// CheckServe rejects a configuration that would expose the unauthenticated
// server beyond the local machine.
func (c *Config) CheckServe() error {
	if !c.AuthEnabled() && !IsLoopback(c.ServerPort) {
		return fmt.Errorf("refusing to listen on %q without AUTH.JWT_SIGNING_KEY; bind to 127.0.0.1 or enable auth", c.ServerPort)
	}
	return nil
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "127.0.0.1:8080")
	v.SetDefault("GIN_MODE", "debug") // gin.DebugMode, gin.ReleaseMode, gin.TestMode
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SETTINGS_FILE", "tma_generator_config.yaml")
	v.SetDefault("RESOURCE_DIR", ".")
	v.SetDefault("OUTPUT_ROOT", ".")
	v.SetDefault("AUTH.JWT_SIGNING_KEY", "")
	v.SetDefault("AUTH.ISSUER", "tmagen")
	v.SetDefault("LOG.LEVEL", "info")
	v.SetDefault("LOG.FORMAT", "text")
	v.SetDefault("LOG.FILE", "")
}

// LoadConfig loads configuration from .env, config.yaml (or configFile when set)
// and TMAGEN_* environment variables, in increasing priority.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("loaded environment from .env")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logrus.Debug("config.yaml not found, using environment variables and defaults")
		} else {
			return nil, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	// Override with environment variables (e.g., TMAGEN_SERVER_PORT, TMAGEN_AUTH_ISSUER)
	v.SetEnvPrefix("TMAGEN")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}
