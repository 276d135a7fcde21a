package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds the settings for the server binary. Fallback token lifetimes
// live in EngineConfig so they can be injected into the token service without
// dragging server settings along.
type Config struct {
	Env     string
	AppName string
	Port    string
	Issuer  string

	Redis RedisConfig
	Log   LogConfig
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from the environment (GRANT_ENGINE_* variables)
// with sane development defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GRANT_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("appname", "Grant Engine")
	v.SetDefault("port", ":8080")
	v.SetDefault("issuer", "http://localhost:8080")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	cfg := &Config{
		Env:     v.GetString("env"),
		AppName: v.GetString("appname"),
		Port:    v.GetString("port"),
		Issuer:  v.GetString("issuer"),
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
	}
	return cfg, nil
}

// EngineConfig supplies the token lifetimes used when a client has no
// explicit policy configured. Refresh and device flow defaults are client
// policy concerns and live with their managers.
type EngineConfig interface {
	GetDefaultIdentityTokenLifetime() time.Duration
	GetDefaultAccessTokenLifetime() time.Duration
}

type Engine struct{}

var _ EngineConfig = Engine{}

func (Engine) GetDefaultIdentityTokenLifetime() time.Duration {
	return 5 * time.Minute
}

func (Engine) GetDefaultAccessTokenLifetime() time.Duration {
	return 1 * time.Hour
}
