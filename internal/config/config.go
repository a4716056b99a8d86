package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "FRIENDBOOK"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "friendbook.db"
	defaultLogLevel          = "info"
	defaultAccessTTLMinutes  = 30
	defaultRefreshTTLHours   = 168
	defaultSendBuffer        = 16
	defaultHandshakeTimeoutS = 5
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	SigningSecret    string
	DatabasePath     string
	LogLevel         string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	SendBuffer       int
	HandshakeTimeout time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.access_ttl_minutes", defaultAccessTTLMinutes)
	configViper.SetDefault("auth.refresh_ttl_hours", defaultRefreshTTLHours)
	configViper.SetDefault("realtime.send_buffer", defaultSendBuffer)
	configViper.SetDefault("realtime.handshake_timeout_seconds", defaultHandshakeTimeoutS)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		AccessTokenTTL:   time.Duration(configViper.GetInt("auth.access_ttl_minutes")) * time.Minute,
		RefreshTokenTTL:  time.Duration(configViper.GetInt("auth.refresh_ttl_hours")) * time.Hour,
		SendBuffer:       configViper.GetInt("realtime.send_buffer"),
		HandshakeTimeout: time.Duration(configViper.GetInt("realtime.handshake_timeout_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_ttl_minutes must be positive")
	}
	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_ttl_hours must be positive")
	}
	return nil
}
