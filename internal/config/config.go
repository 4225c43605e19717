package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultScope is used when WALL_SCOPE is not set
const DefaultScope = "memorial-2025-demo"

// Config holds application configuration
type Config struct {
	// MariaDB接続設定
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// サーバー設定
	ServerPort string
	Env        string

	// CORS設定
	AllowedOrigins []string

	// 投稿レート制限 (per client)
	RateLimitRPS   float64
	RateLimitBurst int

	// メッセージウォール設定
	Scope     string
	RemoteURL string
	LocalDir  string
	Origin    string
}

// Load loads configuration from environment variables
func Load() Config {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "3306"
	}

	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://127.0.0.1:3000"
	}

	rps := 1.0
	if v, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64); err == nil && v > 0 {
		rps = v
	}

	burst := 5
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil && v > 0 {
		burst = v
	}

	scope := strings.TrimSpace(os.Getenv("WALL_SCOPE"))
	if scope == "" {
		scope = DefaultScope
	}

	localDir := os.Getenv("WALL_LOCAL_DIR")
	if localDir == "" {
		localDir = ".wall"
	}

	cfg := Config{
		DBHost:         dbHost,
		DBPort:         dbPort,
		DBUser:         dbUser,
		DBPassword:     dbPassword,
		DBName:         dbName,
		ServerPort:     serverPort,
		Env:            env,
		AllowedOrigins: strings.Split(allowedOrigins, ","),
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
		Scope:          scope,
		RemoteURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("WALL_REMOTE_URL")), "/"),
		LocalDir:       localDir,
		Origin:         os.Getenv("WALL_ORIGIN"),
	}

	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}

	if cfg.Origin == "" && len(cfg.AllowedOrigins) > 0 {
		cfg.Origin = cfg.AllowedOrigins[0]
	}

	return cfg
}

// UsesRemote reports whether the message wall should talk to a remote row-store.
// The choice is made once at startup; a missing URL selects the local store.
func (c Config) UsesRemote() bool {
	return c.RemoteURL != ""
}

// fileConfig mirrors the subset of Config that can be set from a YAML file
type fileConfig struct {
	Scope     string `yaml:"scope"`
	RemoteURL string `yaml:"remote_url"`
	LocalDir  string `yaml:"local_dir"`
	Origin    string `yaml:"origin"`
	Env       string `yaml:"env"`
}

// ApplyFile overlays values from a YAML file onto cfg. Empty values in the file
// leave the existing setting untouched.
func ApplyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if s := strings.TrimSpace(fc.Scope); s != "" {
		cfg.Scope = s
	}
	if fc.RemoteURL != "" {
		cfg.RemoteURL = strings.TrimRight(strings.TrimSpace(fc.RemoteURL), "/")
	}
	if fc.LocalDir != "" {
		cfg.LocalDir = fc.LocalDir
	}
	if fc.Origin != "" {
		cfg.Origin = fc.Origin
	}
	if fc.Env != "" {
		cfg.Env = fc.Env
	}

	return nil
}
