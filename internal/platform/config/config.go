package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"live_contest/internal/domain/repository"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort         string
	JWTKey          []byte
	ShutdownTimeout time.Duration

	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSslMode     string
	DBConnStr     string
	DBMaxConns    int
	DBAutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// KeyNamespace prefixes every Fast Store key; it is slugified by livestore.
	KeyNamespace    string
	LeaderboardSize int

	FlushEnabled   bool
	FlushInterval  time.Duration
	FlushBatchSize int
	FlushLockKey   string
	FlushLockTTL   time.Duration

	WSWriteTimeout   time.Duration
	WSReadLimitBytes int64

	LogLevel  string
	LogFormat string
}

// Load reads the optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:         getEnv("API_PORT", "8080"),
		JWTKey:          []byte(getEnv("JWT_SECRET", "")),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "live_contest_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		DBMaxConns:    getEnvAsInt("DB_MAX_CONNS", 25),
		DBAutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		KeyNamespace:    getEnv("KEY_NAMESPACE", "live contest"),
		LeaderboardSize: getEnvAsInt("LEADERBOARD_SIZE", 10),

		FlushEnabled:   getEnvAsBool("FLUSH_ENABLED", true),
		FlushInterval:  getEnvAsDuration("FLUSH_INTERVAL", 10*time.Second),
		FlushBatchSize: getEnvAsInt("FLUSH_BATCH_SIZE", 500),
		FlushLockKey:   getEnv("FLUSH_LOCK_KEY", "flush_lock"),
		FlushLockTTL:   getEnvAsDuration("FLUSH_LOCK_TTL", 30*time.Second),

		WSWriteTimeout:   getEnvAsDuration("WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadLimitBytes: int64(getEnvAsInt("WS_READ_LIMIT_BYTES", 4096)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWTKey) == 0 {
		return errors.New("JWT_SECRET must be set")
	}
	if c.LeaderboardSize <= 0 {
		return errors.New("LEADERBOARD_SIZE must be positive")
	}
	if c.FlushInterval <= 0 {
		return errors.New("FLUSH_INTERVAL must be positive")
	}
	if c.FlushBatchSize <= 0 || c.FlushBatchSize > repository.MaxInsertBatch {
		return fmt.Errorf("FLUSH_BATCH_SIZE must be between 1 and %d", repository.MaxInsertBatch)
	}
	if c.FlushLockTTL <= 0 {
		return errors.New("FLUSH_LOCK_TTL must be positive")
	}
	if strings.TrimSpace(c.FlushLockKey) == "" {
		return errors.New("FLUSH_LOCK_KEY must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("10s") or bare seconds ("10").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
