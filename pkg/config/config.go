package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends.
const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
}

// StorageConfig selects the persistence backend and its file locations.
type StorageConfig struct {
	Backend      string
	DataDir      string
	StudentsFile string
	TeachersFile string
	CoursesFile  string
	SQLitePath   string
	// Autosave writes the json files after every change, not only on exit.
	Autosave      bool
	AutosaveRetry time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs report caching.
type CacheConfig struct {
	Driver string
	TTL    time.Duration
}

// AuthConfig gates token protection of mutating routes.
type AuthConfig struct {
	Enabled           bool
	Secret            string
	Expiration        time.Duration
	AdminUsername     string
	AdminPasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith reads configuration using the provided viper instance, allowing
// callers (the CLI) to bind flags before values are resolved.
func LoadWith(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load()

	if v.ConfigFileUsed() == "" {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	dataDir := v.GetString("DATA_DIR")
	cfg.Storage = StorageConfig{
		Backend:      strings.ToLower(v.GetString("STORAGE_BACKEND")),
		DataDir:      dataDir,
		StudentsFile: v.GetString("STUDENTS_FILE"),
		TeachersFile: v.GetString("TEACHERS_FILE"),
		CoursesFile:  v.GetString("COURSES_FILE"),
		SQLitePath:   v.GetString("SQLITE_PATH"),

		Autosave:      v.GetBool("STORAGE_AUTOSAVE"),
		AutosaveRetry: parseDuration(v.GetString("STORAGE_AUTOSAVE_RETRY"), 2*time.Second),
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(dataDir, "registration.db")
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Driver: strings.ToLower(v.GetString("CACHE_DRIVER")),
		TTL:    parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.Auth = AuthConfig{
		Enabled:           v.GetBool("AUTH_ENABLED"),
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		AdminUsername:     v.GetString("ADMIN_USERNAME"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORAGE_BACKEND", BackendJSON)
	v.SetDefault("DATA_DIR", ".")
	v.SetDefault("STUDENTS_FILE", "student.json")
	v.SetDefault("TEACHERS_FILE", "teacher.json")
	v.SetDefault("COURSES_FILE", "course.json")
	v.SetDefault("SQLITE_PATH", "")
	v.SetDefault("STORAGE_AUTOSAVE", true)
	v.SetDefault("STORAGE_AUTOSAVE_RETRY", "2s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_registration")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_DRIVER", CacheNone)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
