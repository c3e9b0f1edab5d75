package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string
	// TrustForwardedFor makes per-IP limits use X-Forwarded-For. Enable only
	// behind a reverse proxy that sets the header.
	TrustForwardedFor bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	MoodCacheTTL  time.Duration

	// StorageBackend selects where artifacts go: "local" or "minio".
	StorageBackend string
	UploadDir      string // Base directory for local artifacts (audio/ and covers/ live under it)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	FFprobePath string

	UploadMaxSizeMB     int64
	UploadMaxConcurrent int
	UploadRatePerMinute int
	UploadKeepOrphans   bool
	ExtractTimeout      time.Duration
	DBTimeout           time.Duration

	RecommendLimit int

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel string
	LogFile  string
}

// fileConfig mirrors the optional TOML file. Zero values mean "not set".
type fileConfig struct {
	Server struct {
		Addr              string `toml:"addr"`
		TrustForwardedFor bool   `toml:"trust_forwarded_for"`
	} `toml:"server"`
	Database struct {
		Host     string `toml:"host"`
		Port     string `toml:"port"`
		User     string `toml:"user"`
		Password string `toml:"password"`
		Name     string `toml:"name"`
	} `toml:"database"`
	Redis struct {
		Host     string `toml:"host"`
		Port     string `toml:"port"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`
	Storage struct {
		Backend   string `toml:"backend"`
		UploadDir string `toml:"upload_dir"`
		Endpoint  string `toml:"minio_endpoint"`
		AccessKey string `toml:"minio_access_key"`
		SecretKey string `toml:"minio_secret_key"`
		Bucket    string `toml:"minio_bucket"`
		Region    string `toml:"minio_region"`
		UseSSL    bool   `toml:"minio_use_ssl"`
	} `toml:"storage"`
	Kafka struct {
		Brokers []string `toml:"brokers"`
		Topic   string   `toml:"topic"`
	} `toml:"kafka"`
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load loads configuration from the environment (via .env file), an optional TOML
// file named by MOODFM_CONFIG, and defaults. Environment variables win over the file.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	cfg := Defaults()
	if path := os.Getenv("MOODFM_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			log.Printf("Ignoring config file %s: %v", path, err)
		}
	}
	cfg.applyEnv()
	return cfg
}

// Defaults returns the built-in configuration without consulting the environment.
func Defaults() *Config {
	uploadBase := "uploads"
	return &Config{
		HTTPAddr:            ":8080",
		DBHost:              "127.0.0.1",
		DBPort:              "3306",
		DBUser:              "root",
		DBName:              "moodfm",
		RedisHost:           "127.0.0.1",
		RedisPort:           "6379",
		MoodCacheTTL:        10 * time.Minute,
		StorageBackend:      "local",
		UploadDir:           uploadBase,
		MinioBucket:         "moodfm",
		MinioRegion:         "us-east-1",
		FFprobePath:         "ffprobe",
		UploadMaxSizeMB:     100,
		UploadMaxConcurrent: 5,
		UploadRatePerMinute: 30,
		ExtractTimeout:      30 * time.Second,
		DBTimeout:           5 * time.Second,
		RecommendLimit:      10,
		KafkaTopic:          "moodfm-events",
		LogLevel:            "info",
	}
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.HTTPAddr, fc.Server.Addr)
	if fc.Server.TrustForwardedFor {
		c.TrustForwardedFor = true
	}
	set(&c.DBHost, fc.Database.Host)
	set(&c.DBPort, fc.Database.Port)
	set(&c.DBUser, fc.Database.User)
	set(&c.DBPassword, fc.Database.Password)
	set(&c.DBName, fc.Database.Name)
	set(&c.RedisHost, fc.Redis.Host)
	set(&c.RedisPort, fc.Redis.Port)
	set(&c.RedisPassword, fc.Redis.Password)
	if fc.Redis.DB != 0 {
		c.RedisDB = fc.Redis.DB
	}
	set(&c.StorageBackend, fc.Storage.Backend)
	set(&c.UploadDir, fc.Storage.UploadDir)
	set(&c.MinioEndpoint, fc.Storage.Endpoint)
	set(&c.MinioAccessKey, fc.Storage.AccessKey)
	set(&c.MinioSecretKey, fc.Storage.SecretKey)
	set(&c.MinioBucket, fc.Storage.Bucket)
	set(&c.MinioRegion, fc.Storage.Region)
	if fc.Storage.UseSSL {
		c.MinioUseSSL = true
	}
	if len(fc.Kafka.Brokers) > 0 {
		c.KafkaBrokers = fc.Kafka.Brokers
	}
	set(&c.KafkaTopic, fc.Kafka.Topic)
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.TrustForwardedFor = getEnvBool("TRUST_FORWARDED_FOR", c.TrustForwardedFor)

	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	// For password, better not to have a hardcoded default
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)

	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnv("REDIS_PORT", c.RedisPort)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.MoodCacheTTL = getEnvDuration("MOOD_CACHE_TTL", c.MoodCacheTTL)

	c.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", c.StorageBackend))
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.MinioEndpoint = getEnv("MINIO_ENDPOINT", c.MinioEndpoint)
	c.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", c.MinioAccessKey)
	c.MinioSecretKey = getEnv("MINIO_SECRET_KEY", c.MinioSecretKey)
	c.MinioBucket = getEnv("MINIO_BUCKET", c.MinioBucket)
	c.MinioRegion = getEnv("MINIO_REGION", c.MinioRegion)
	c.MinioUseSSL = getEnvBool("MINIO_USE_SSL", c.MinioUseSSL)

	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)

	c.UploadMaxSizeMB = int64(getEnvInt("UPLOAD_MAX_SIZE_MB", int(c.UploadMaxSizeMB)))
	c.UploadMaxConcurrent = getEnvInt("UPLOAD_MAX_CONCURRENT", c.UploadMaxConcurrent)
	c.UploadRatePerMinute = getEnvInt("UPLOAD_RATE_PER_MINUTE", c.UploadRatePerMinute)
	c.UploadKeepOrphans = getEnvBool("UPLOAD_KEEP_ORPHANS", c.UploadKeepOrphans)
	c.ExtractTimeout = getEnvDuration("EXTRACT_TIMEOUT", c.ExtractTimeout)
	c.DBTimeout = getEnvDuration("DB_TIMEOUT", c.DBTimeout)

	c.RecommendLimit = getEnvInt("RECOMMEND_LIMIT", c.RecommendLimit)

	c.KafkaBrokers = getEnvList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
}

// DSN builds the MySQL data source name.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// RedisAddr returns host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// UploadMaxBytes is the upload size cap in bytes.
func (c *Config) UploadMaxBytes() int64 {
	return c.UploadMaxSizeMB << 20
}
