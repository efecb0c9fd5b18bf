// Package config loads process configuration from environment
// variables over built-in defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process configuration.
type Config struct {
	Server ServerConfig
	GitHub GitHubConfig
	Cache  CacheConfig
	Data   DataConfig
	AI     AIConfig
	Log    LogConfig
}

type ServerConfig struct {
	Port int
}

type GitHubConfig struct {
	// Token is optional; unauthenticated calls are valid but carry
	// lower rate limits and cannot query pinned items.
	Token string
}

type CacheConfig struct {
	Dir string
	TTL time.Duration
}

type DataConfig struct {
	Dir string
}

type AIConfig struct {
	APIKey string
	Model  string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Cache:  CacheConfig{TTL: time.Hour},
		AI:     AIConfig{Model: "gemini-2.0-flash"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from the environment. CHILLGITS_* variables
// override defaults; the two credentials use their conventional
// ambient names (GITHUB_TOKEN, GOOGLE_AI_API_KEY).
func Load() Config {
	cfg := defaults()

	if v := os.Getenv("CHILLGITS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CHILLGITS_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("CHILLGITS_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil && ttl > 0 {
			cfg.Cache.TTL = ttl
		}
	}
	if v := os.Getenv("CHILLGITS_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("CHILLGITS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CHILLGITS_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	cfg.AI.APIKey = os.Getenv("GOOGLE_AI_API_KEY")

	return cfg
}
