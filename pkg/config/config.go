// Package config carga la configuración del servidor: valores por defecto,
// un archivo YAML opcional y variables de entorno, en ese orden.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Drivers de almacenamiento de snapshots
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

const defaultSystemPrompt = "Du bist ein hilfreicher Assistent der Kampagne ERKENNEN. STOPPEN. " +
	"Beantworte Fragen zu Kinderschutz, Warnsignalen und Hilfsangeboten kurz, sachlich und einfühlsam. " +
	"Verweise bei akuter Gefahr immer auf den Notruf 110 oder die Nummer gegen Kummer 116 111."

type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Catalog CatalogConfig `yaml:"catalog"`
	Storage StorageConfig `yaml:"storage"`
	Chat    ChatConfig    `yaml:"chat"`
	Log     LogConfig     `yaml:"log"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// URL pública usada en los enlaces para compartir
	PublicURL      string   `yaml:"public_url"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type CatalogConfig struct {
	// Vacío usa el catálogo embebido
	Path string `yaml:"path"`
}

type StorageConfig struct {
	Driver        string        `yaml:"driver"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	DSN           string        `yaml:"dsn"`
	SnapshotTTL   time.Duration `yaml:"snapshot_ttl"`
}

type ChatConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	SystemPrompt string        `yaml:"system_prompt"`
	HistoryLimit int           `yaml:"history_limit"`
	Timeout      time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default devuelve la configuración con la que arranca el servidor sin archivo
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:           ":8080",
			PublicURL:      "http://localhost:8080",
			StaticDir:      "./static",
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Driver:      StorageMemory,
			RedisAddr:   "localhost:6379",
			SnapshotTTL: 30 * 24 * time.Hour,
		},
		Chat: ChatConfig{
			BaseURL:      "https://api.deepseek.com/v1",
			Model:        "deepseek-chat",
			SystemPrompt: defaultSystemPrompt,
			HistoryLimit: 10,
			Timeout:      30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load aplica, sobre Default, el archivo YAML en path (si no está vacío) y
// luego las variables de entorno. El resultado está validado.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTP.Addr = envOr("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.PublicURL = strings.TrimSuffix(envOr("PUBLIC_URL", c.HTTP.PublicURL), "/")
	c.HTTP.StaticDir = envOr("STATIC_DIR", c.HTTP.StaticDir)
	c.HTTP.AllowedOrigins = csvOr("ALLOWED_ORIGINS", c.HTTP.AllowedOrigins)
	c.Catalog.Path = envOr("CATALOG_PATH", c.Catalog.Path)
	c.Storage.Driver = strings.ToLower(envOr("STORAGE_DRIVER", c.Storage.Driver))
	c.Storage.RedisAddr = envOr("REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = envOr("REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.DSN = envOr("DB_DSN", c.Storage.DSN)
	c.Chat.APIKey = envOr("DEEPSEEK_API_KEY", c.Chat.APIKey)
	c.Chat.BaseURL = envOr("CHAT_BASE_URL", c.Chat.BaseURL)
	c.Chat.Model = envOr("CHAT_MODEL", c.Chat.Model)
	c.Log.Level = envOr("LOG_LEVEL", c.Log.Level)

	var err error
	if c.Storage.RedisDB, err = envInt("REDIS_DB", c.Storage.RedisDB); err != nil {
		return err
	}
	if c.Storage.SnapshotTTL, err = envDuration("SNAPSHOT_TTL", c.Storage.SnapshotTTL); err != nil {
		return err
	}
	c.Log.Development = envBool("LOG_DEVELOPMENT", c.Log.Development)
	return nil
}

// Validate reporta todos los valores inválidos a la vez
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for the redis driver"))
		}
		if c.Storage.RedisDB < 0 {
			errs = append(errs, fmt.Errorf("storage.redis_db must not be negative, got %d", c.Storage.RedisDB))
		}
	case StoragePostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of memory, redis, sqlite, postgres", c.Storage.Driver))
	}
	if c.Storage.SnapshotTTL < 0 {
		errs = append(errs, errors.New("storage.snapshot_ttl must not be negative"))
	}
	if c.Chat.HistoryLimit < 0 {
		errs = append(errs, errors.New("chat.history_limit must not be negative"))
	}
	if c.Chat.Timeout <= 0 {
		errs = append(errs, errors.New("chat.timeout must be positive"))
	}
	if c.Chat.Model == "" {
		errs = append(errs, errors.New("chat.model must not be empty"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}

func envOr(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func envInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func csvOr(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
