package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Storage drivers.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store    StoreConfig
	Mongo    MongoConfig
	Files    FilesConfig
	Delta    DeltaConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Events   EventsConfig
	Audit    AuditConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Blobs    BlobConfig
	Download DownloadConfig
}

// StoreConfig selects the node store backend.
type StoreConfig struct {
	Driver string
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// FilesConfig bounds file versioning.
type FilesConfig struct {
	MaxFileVersion int
}

// DeltaConfig tunes the delta feed.
type DeltaConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// StorageConfig selects and configures the blob adapter.
type StorageConfig struct {
	Driver string
	Dir    string
	S3     S3Config
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// EventsConfig toggles publishing lifecycle events to a Redis stream.
type EventsConfig struct {
	Enabled bool
	Stream  string
	MaxLen  int64
}

// AuditConfig toggles the Postgres audit sink.
type AuditConfig struct {
	Enabled  bool
	Database DatabaseConfig
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

type JWTConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BlobConfig configures asynchronous blob release.
type BlobConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// DownloadConfig configures signed content download links.
type DownloadConfig struct {
	Secret string
	TTL    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{Driver: strings.ToLower(v.GetString("STORE_DRIVER"))}

	cfg.Mongo = MongoConfig{
		URI:      v.GetString("MONGO_URI"),
		Database: v.GetString("MONGO_DATABASE"),
		Timeout:  parseDuration(v.GetString("MONGO_TIMEOUT"), 10*time.Second),
	}

	// A file keeps its added entry and at least one version.
	maxVersion := v.GetInt("MAX_FILE_VERSION")
	if maxVersion < 2 {
		return nil, fmt.Errorf("MAX_FILE_VERSION must be at least 2, got %d", maxVersion)
	}
	cfg.Files = FilesConfig{MaxFileVersion: maxVersion}

	cfg.Delta = DeltaConfig{
		DefaultLimit: v.GetInt("DELTA_LIMIT"),
		MaxLimit:     v.GetInt("DELTA_MAX_LIMIT"),
	}

	cfg.Storage = StorageConfig{
		Driver: strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:    v.GetString("STORAGE_DIR"),
		S3: S3Config{
			Bucket:    v.GetString("S3_BUCKET"),
			Region:    v.GetString("S3_REGION"),
			Endpoint:  v.GetString("S3_ENDPOINT"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			Prefix:    v.GetString("S3_PREFIX"),
		},
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Events = EventsConfig{
		Enabled: v.GetBool("ENABLE_EVENTS"),
		Stream:  v.GetString("EVENTS_STREAM"),
		MaxLen:  v.GetInt64("EVENTS_STREAM_MAXLEN"),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("ENABLE_AUDIT"),
		Database: DatabaseConfig{
			Host:         v.GetString("AUDIT_DB_HOST"),
			Port:         v.GetInt("AUDIT_DB_PORT"),
			User:         v.GetString("AUDIT_DB_USER"),
			Password:     v.GetString("AUDIT_DB_PASSWORD"),
			Name:         v.GetString("AUDIT_DB_NAME"),
			SSLMode:      v.GetString("AUDIT_DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("AUDIT_DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("AUDIT_DB_MAX_IDLE_CONNS"),
		},
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
		Expiry: parseDuration(v.GetString("JWT_EXPIRY"), time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Blobs = BlobConfig{
		Workers:    v.GetInt("BLOB_WORKERS"),
		Retries:    v.GetInt("BLOB_RETRIES"),
		RetryDelay: parseDuration(v.GetString("BLOB_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Download = DownloadConfig{
		Secret: v.GetString("DOWNLOAD_URL_SECRET"),
		TTL:    parseDuration(v.GetString("DOWNLOAD_URL_TTL"), 15*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "drive")
	v.SetDefault("MONGO_TIMEOUT", "10s")

	v.SetDefault("MAX_FILE_VERSION", 16)
	v.SetDefault("DELTA_LIMIT", 250)
	v.SetDefault("DELTA_MAX_LIMIT", 1000)

	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("STORAGE_DIR", "./blobs")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_PREFIX", "blobs/")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("EVENTS_STREAM", "drive:events")
	v.SetDefault("EVENTS_STREAM_MAXLEN", 100000)

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("AUDIT_DB_HOST", "localhost")
	v.SetDefault("AUDIT_DB_PORT", 5432)
	v.SetDefault("AUDIT_DB_USER", "postgres")
	v.SetDefault("AUDIT_DB_PASSWORD", "postgres")
	v.SetDefault("AUDIT_DB_NAME", "drive_audit")
	v.SetDefault("AUDIT_DB_SSL_MODE", "disable")
	v.SetDefault("AUDIT_DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("AUDIT_DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_EXPIRY", "1h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BLOB_WORKERS", 2)
	v.SetDefault("BLOB_RETRIES", 3)
	v.SetDefault("BLOB_RETRY_DELAY", "5s")

	v.SetDefault("DOWNLOAD_URL_SECRET", "dev_download_secret")
	v.SetDefault("DOWNLOAD_URL_TTL", "15m")
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
