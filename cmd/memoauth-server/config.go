package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/memoauth"
	"github.com/joho/godotenv"
)

type serverConfig struct {
	Auth memoauth.Config

	HTTPAddr       string
	RedisAddr      string
	RedisPassword  string
	DatabaseURL    string
	LogLevel       slog.Level
	PasswordHasher string
	BcryptCost     int
	ShutdownGrace  time.Duration
}

// loadConfig reads MEMOAUTH_* variables. A .env.local in the working
// directory or its parent is applied first; variables already set win.
func loadConfig() (serverConfig, error) {
	loadEnvFile()

	cfg := serverConfig{
		Auth:           memoauth.DefaultConfig(),
		HTTPAddr:       getEnv("MEMOAUTH_HTTP_ADDR", ":8080"),
		RedisAddr:      getEnv("MEMOAUTH_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:  getEnv("MEMOAUTH_REDIS_PASSWORD", ""),
		DatabaseURL:    getEnv("MEMOAUTH_DATABASE_URL", ""),
		PasswordHasher: getEnv("MEMOAUTH_PASSWORD_HASHER", "bcrypt"),
	}

	var err error
	cfg.Auth.JWT.Secret = []byte(os.Getenv("MEMOAUTH_JWT_SECRET"))
	cfg.Auth.JWT.Issuer = getEnv("MEMOAUTH_JWT_ISSUER", "")
	if cfg.Auth.JWT.AccessTTL, err = getEnvDuration("MEMOAUTH_ACCESS_TTL", cfg.Auth.JWT.AccessTTL); err != nil {
		return cfg, err
	}
	if cfg.Auth.JWT.RefreshTTL, err = getEnvDuration("MEMOAUTH_REFRESH_TTL", cfg.Auth.JWT.RefreshTTL); err != nil {
		return cfg, err
	}
	if cfg.Auth.Login.Disclosure, err = memoauth.ParseDisclosure(os.Getenv("MEMOAUTH_DISCLOSURE")); err != nil {
		return cfg, fmt.Errorf("MEMOAUTH_DISCLOSURE: %w", err)
	}
	if cfg.Auth.Logout.BlacklistAccessToken, err = getEnvBool("MEMOAUTH_BLACKLIST_ON_LOGOUT", cfg.Auth.Logout.BlacklistAccessToken); err != nil {
		return cfg, err
	}
	if cfg.Auth.Store.Timeout, err = getEnvDuration("MEMOAUTH_STORE_TIMEOUT", cfg.Auth.Store.Timeout); err != nil {
		return cfg, err
	}
	cfg.Auth.Store.KeyPrefix = getEnv("MEMOAUTH_REDIS_PREFIX", "")
	if cfg.Auth.Audit.Enabled, err = getEnvBool("MEMOAUTH_AUDIT_ENABLED", false); err != nil {
		return cfg, err
	}
	if cfg.BcryptCost, err = getEnvInt("MEMOAUTH_BCRYPT_COST", 0); err != nil {
		return cfg, err
	}
	if cfg.ShutdownGrace, err = getEnvDuration("MEMOAUTH_SHUTDOWN_GRACE", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.LogLevel, err = parseLevel(getEnv("MEMOAUTH_LOG_LEVEL", "info")); err != nil {
		return cfg, err
	}

	if err := cfg.Auth.Validate(); err != nil {
		return cfg, fmt.Errorf("auth config: %w", err)
	}
	return cfg, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}
	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("MEMOAUTH_LOG_LEVEL: %w", err)
	}
	return level, nil
}
